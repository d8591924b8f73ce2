package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// Local executes commands as subprocesses on this machine through
// sh -c, so pipelines and redirections in probe commands work.
type Local struct {
	SudoUser     string
	SudoPassword string
}

// NewLocal creates a local subprocess executor.
func NewLocal() *Local {
	return &Local{}
}

// Run executes command with a bounded timeout, capturing both output
// streams.
func (l *Local) Run(ctx context.Context, command string, timeout time.Duration, requireSuccess bool) (*Result, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var stdin string
	if l.SudoUser != "" {
		command = sudoWrap(command, l.SudoUser)
		stdin = l.SudoPassword + "\n"
	}

	cmd := exec.CommandContext(runCtx, "sh", "-c", command)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}

	err := cmd.Run()
	res := &Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			res.ExitStatus = -1
			return res, fmt.Errorf("command timed out after %s: %w", timeout, context.DeadlineExceeded)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitStatus = exitErr.ExitCode()
			if requireSuccess {
				return res, fmt.Errorf("command exited %d: %s", res.ExitStatus, firstLine(res.Stderr))
			}
			return res, nil
		}
		res.ExitStatus = -1
		return res, fmt.Errorf("command failed to start: %w", err)
	}

	res.ExitStatus = 0
	return res, nil
}

// WriteFile writes data to path, creating parent directories.
func (l *Local) WriteFile(ctx context.Context, path string, data []byte, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create parent directories: %w", err)
	}
	if err := os.WriteFile(path, data, mode); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// Describe identifies this executor in logs.
func (l *Local) Describe() string {
	return "local"
}

// Close is a no-op for local execution.
func (l *Local) Close() error {
	return nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
