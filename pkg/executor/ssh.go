package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
)

// SSHConfig describes how to reach a remote execution host.
type SSHConfig struct {
	Host           string
	Port           int    // defaults to 22
	User           string
	Password       string
	PrivateKey     string // PEM; tried before password auth when set
	SudoUser       string // non-empty wraps every command in sudo
	SudoPassword   string
	ConnectTimeout time.Duration // defaults to 10s
}

// SSH executes commands on a remote host over one multiplexed SSH
// connection, opening a session per command.
type SSH struct {
	cfg    SSHConfig
	client *ssh.Client
}

// NewSSH dials the host and returns a connected executor.
func NewSSH(cfg SSHConfig) (*SSH, error) {
	if cfg.Port == 0 {
		cfg.Port = 22
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}

	var auth []ssh.AuthMethod
	if cfg.PrivateKey != "" {
		signer, err := ssh.ParsePrivateKey([]byte(cfg.PrivateKey))
		if err != nil {
			return nil, fmt.Errorf("parse private key: %w", err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if cfg.Password != "" {
		auth = append(auth, ssh.Password(cfg.Password))
	}
	if len(auth) == 0 {
		return nil, fmt.Errorf("ssh %s@%s: no authentication method configured", cfg.User, cfg.Host)
	}

	clientCfg := &ssh.ClientConfig{
		User: cfg.User,
		Auth: auth,
		// Targets are registered by their owners with explicit
		// credentials; host keys are not pinned.
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         cfg.ConnectTimeout,
	}

	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	client, err := ssh.Dial("tcp", addr, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("ssh dial %s: %w", addr, err)
	}
	return &SSH{cfg: cfg, client: client}, nil
}

// Run executes command in a fresh session with a bounded timeout.
func (s *SSH) Run(ctx context.Context, command string, timeout time.Duration, requireSuccess bool) (*Result, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	session, err := s.client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("ssh session: %w", err)
	}
	defer session.Close()

	if s.cfg.SudoUser != "" {
		command = sudoWrap(command, s.cfg.SudoUser)
		session.Stdin = strings.NewReader(s.cfg.SudoPassword + "\n")
	}

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	if err := session.Start(command); err != nil {
		return nil, fmt.Errorf("ssh start: %w", err)
	}

	done := make(chan error, 1)
	go func() { done <- session.Wait() }()

	select {
	case <-runCtx.Done():
		// Closing the session tears down the remote process.
		session.Close()
		<-done
		return &Result{ExitStatus: -1, Stdout: stdout.String(), Stderr: stderr.String()},
			fmt.Errorf("command timed out after %s: %w", timeout, context.DeadlineExceeded)
	case err = <-done:
	}

	res := &Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if err != nil {
		var exitErr *ssh.ExitError
		if errors.As(err, &exitErr) {
			res.ExitStatus = exitErr.ExitStatus()
			if requireSuccess {
				return res, fmt.Errorf("command exited %d: %s", res.ExitStatus, firstLine(res.Stderr))
			}
			return res, nil
		}
		res.ExitStatus = -1
		return res, fmt.Errorf("ssh command: %w", err)
	}
	return res, nil
}

// WriteFile streams data into path on the remote host via cat.
func (s *SSH) WriteFile(ctx context.Context, filePath string, data []byte, mode os.FileMode) error {
	session, err := s.client.NewSession()
	if err != nil {
		return fmt.Errorf("ssh session: %w", err)
	}
	defer session.Close()

	dir := path.Dir(filePath)
	session.Stdin = bytes.NewReader(data)
	command := fmt.Sprintf("mkdir -p %s && cat > %s && chmod %o %s",
		Quote(dir), Quote(filePath), mode.Perm(), Quote(filePath))
	if s.cfg.SudoUser != "" {
		// Password on stdin would corrupt the file content; sudo must
		// be passwordless for remote file placement.
		command = fmt.Sprintf("sudo -n -u %s sh -c %s", s.cfg.SudoUser, Quote(command))
	}

	var stderr bytes.Buffer
	session.Stderr = &stderr
	if err := session.Run(command); err != nil {
		return fmt.Errorf("remote write %s: %s: %w", filePath, firstLine(stderr.String()), err)
	}
	return nil
}

// Describe identifies this executor in logs.
func (s *SSH) Describe() string {
	return fmt.Sprintf("ssh %s@%s:%d", s.cfg.User, s.cfg.Host, s.cfg.Port)
}

// Close tears down the underlying connection.
func (s *SSH) Close() error {
	return s.client.Close()
}
