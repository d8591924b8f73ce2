package executor

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/windflowlabs/windflow/pkg/types"
)

// Result is the outcome of one executed command.
type Result struct {
	ExitStatus int
	Stdout     string
	Stderr     string
}

// CommandExecutor runs shell commands on an execution host, either the
// local machine or a remote one over SSH. Implementations must be safe
// for concurrent use; each Run is independent.
//
// Run returns an error for infrastructure faults (spawn failure,
// connection loss, timeout) and, when requireSuccess is set, for a
// non-zero exit. With requireSuccess=false a non-zero exit is a normal
// Result so probes can inspect it.
type CommandExecutor interface {
	Run(ctx context.Context, command string, timeout time.Duration, requireSuccess bool) (*Result, error)

	// WriteFile places a file on the execution host, creating parent
	// directories. Used for rendered compose files.
	WriteFile(ctx context.Context, path string, data []byte, mode os.FileMode) error

	// Describe identifies the execution host for log lines.
	Describe() string

	Close() error
}

// DefaultTimeout bounds commands that don't specify their own.
const DefaultTimeout = 30 * time.Second

// Quote single-quotes s for safe interpolation into sh -c.
func Quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// sudoWrap rewrites command to run as sudoUser. The caller pipes the
// sudo password followed by a newline on stdin (-S reads it there, -p ''
// suppresses the prompt).
func sudoWrap(command, sudoUser string) string {
	return fmt.Sprintf("sudo -S -p '' -u %s sh -c %s", sudoUser, Quote(command))
}

// IsLocal reports whether host refers to the machine we're running on.
func IsLocal(host string) bool {
	switch strings.ToLower(host) {
	case "", "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}

// ForTarget builds the right executor for a target: local subprocess
// for the local machine, SSH otherwise. Remote targets need
// credentials with at least a username.
func ForTarget(target *types.Target) (CommandExecutor, error) {
	if IsLocal(target.Host) {
		local := NewLocal()
		if c := target.Credentials; c != nil && c.SudoUser != "" {
			local.SudoUser = c.SudoUser
			local.SudoPassword = c.SudoPassword
		}
		return local, nil
	}

	if target.Credentials == nil || target.Credentials.Username == "" {
		return nil, fmt.Errorf("target %s: remote execution requires credentials", target.ID)
	}
	cfg := SSHConfig{
		Host:         target.Host,
		Port:         target.Port,
		User:         target.Credentials.Username,
		Password:     target.Credentials.Password,
		PrivateKey:   target.Credentials.PrivateKey,
		SudoUser:     target.Credentials.SudoUser,
		SudoPassword: target.Credentials.SudoPassword,
	}
	return NewSSH(cfg)
}
