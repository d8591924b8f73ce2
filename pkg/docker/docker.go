package docker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/windflowlabs/windflow/pkg/executor"
	"github.com/windflowlabs/windflow/pkg/log"
)

// TimeoutOutput is the failure output reported when an operation
// exceeds its deadline. Surfaced verbatim in deployment logs.
const TimeoutOutput = "Timeout"

// DefaultStopTimeout is the grace period, in seconds, handed to
// docker stop when the caller does not choose one.
const DefaultStopTimeout = 10

// Config tunes the executor. The zero value is usable.
type Config struct {
	// Timeout bounds each one-shot docker command. Stop and Restart
	// extend it by the container's own grace period. Defaults to
	// executor.DefaultTimeout.
	Timeout time.Duration
}

// Executor wraps the docker CLI as typed operations over a
// CommandExecutor, so the same code drives local and SSH targets.
//
// Mutating operations report (ok, output): on success output is the
// command's stdout, on a non-zero exit it is stderr, and on a missed
// deadline it is TimeoutOutput. Callers append output to deployment
// logs either way.
type Executor struct {
	exec    executor.CommandExecutor
	timeout time.Duration
	log     zerolog.Logger
}

// New returns an Executor running commands through exec.
func New(exec executor.CommandExecutor, cfg Config) *Executor {
	if cfg.Timeout <= 0 {
		cfg.Timeout = executor.DefaultTimeout
	}
	return &Executor{
		exec:    exec,
		timeout: cfg.Timeout,
		log:     log.WithComponent("docker"),
	}
}

// DeployContainer validates spec, assembles docker run and executes it.
// On success output is the new container ID.
func (e *Executor) DeployContainer(ctx context.Context, spec *ContainerSpec) (bool, string) {
	if err := spec.Validate(); err != nil {
		return false, err.Error()
	}
	e.log.Info().
		Str("image", spec.Image).
		Str("container", spec.Name).
		Str("host", e.exec.Describe()).
		Msg("deploying container")
	return e.run(ctx, spec.RunCommand(), e.timeout)
}

// ContainerStatus is the parsed subset of docker inspect output the
// platform acts on.
type ContainerStatus struct {
	Status       string // created, running, paused, restarting, exited, dead
	Running      bool
	StartedAt    time.Time
	Health       string // healthy, unhealthy, starting; empty without a healthcheck
	RestartCount int
}

type inspectState struct {
	Status    string
	Running   bool
	StartedAt string
	Health    *struct {
		Status string
	}
}

type inspectRecord struct {
	RestartCount int
	State        inspectState
}

// GetStatus inspects a container by name.
func (e *Executor) GetStatus(ctx context.Context, name string) (*ContainerStatus, error) {
	if !containerNameRe.MatchString(name) {
		return nil, fmt.Errorf("invalid container name %q", name)
	}
	ok, out := e.run(ctx, "docker inspect "+name, e.timeout)
	if !ok {
		return nil, fmt.Errorf("inspect %s: %s", name, out)
	}
	return parseInspect(out)
}

func parseInspect(out string) (*ContainerStatus, error) {
	var records []inspectRecord
	if err := json.Unmarshal([]byte(out), &records); err != nil {
		return nil, fmt.Errorf("parse inspect output: %w", err)
	}
	if len(records) == 0 {
		return nil, errors.New("parse inspect output: empty result")
	}
	rec := records[0]
	status := &ContainerStatus{
		Status:       rec.State.Status,
		Running:      rec.State.Running,
		RestartCount: rec.RestartCount,
	}
	if rec.State.Health != nil {
		status.Health = rec.State.Health.Status
	}
	if rec.State.StartedAt != "" {
		if t, err := time.Parse(time.RFC3339Nano, rec.State.StartedAt); err == nil {
			status.StartedAt = t
		}
	}
	return status, nil
}

// Stop sends docker stop with a grace period of timeout seconds.
func (e *Executor) Stop(ctx context.Context, name string, timeout int) (bool, string) {
	if !containerNameRe.MatchString(name) {
		return false, fmt.Sprintf("invalid container name %q", name)
	}
	if timeout <= 0 {
		timeout = DefaultStopTimeout
	}
	command := fmt.Sprintf("docker stop -t %d %s", timeout, name)
	return e.run(ctx, command, e.timeout+time.Duration(timeout)*time.Second)
}

// Remove deletes a container. force removes it even while running;
// removeVolumes also deletes its anonymous volumes.
func (e *Executor) Remove(ctx context.Context, name string, force, removeVolumes bool) (bool, string) {
	if !containerNameRe.MatchString(name) {
		return false, fmt.Sprintf("invalid container name %q", name)
	}
	command := "docker rm"
	if force {
		command += " -f"
	}
	if removeVolumes {
		command += " -v"
	}
	return e.run(ctx, command+" "+name, e.timeout)
}

// Logs fetches the last tail lines of a container's output, optionally
// limited to entries after since (docker-parseable timestamp or
// relative duration).
func (e *Executor) Logs(ctx context.Context, name string, tail int, since string) (bool, string) {
	if !containerNameRe.MatchString(name) {
		return false, fmt.Sprintf("invalid container name %q", name)
	}
	if tail <= 0 {
		tail = 100
	}
	command := "docker logs --tail " + strconv.Itoa(tail)
	if since != "" {
		command += " --since " + executor.Quote(since)
	}
	return e.run(ctx, command+" "+name, e.timeout)
}

// Restart bounces a container with a grace period of timeout seconds.
func (e *Executor) Restart(ctx context.Context, name string, timeout int) (bool, string) {
	if !containerNameRe.MatchString(name) {
		return false, fmt.Sprintf("invalid container name %q", name)
	}
	if timeout <= 0 {
		timeout = DefaultStopTimeout
	}
	command := fmt.Sprintf("docker restart -t %d %s", timeout, name)
	return e.run(ctx, command, e.timeout+time.Duration(timeout)*time.Second)
}

// RemoveVolume deletes a named volume. A volume that is already gone
// counts as success so teardown stays idempotent.
func (e *Executor) RemoveVolume(ctx context.Context, name string, force bool) (bool, string) {
	if !containerNameRe.MatchString(name) {
		return false, fmt.Sprintf("invalid volume name %q", name)
	}
	command := "docker volume rm"
	if force {
		command += " -f"
	}
	ok, out := e.run(ctx, command+" "+name, e.timeout)
	if !ok && volumeGone(out) {
		return true, out
	}
	return ok, out
}

func volumeGone(output string) bool {
	lower := strings.ToLower(output)
	return strings.Contains(lower, "not found") || strings.Contains(lower, "no such volume")
}

// run executes one docker command and folds the result into the
// (ok, output) contract.
func (e *Executor) run(ctx context.Context, command string, timeout time.Duration) (bool, string) {
	res, err := e.exec.Run(ctx, command, timeout, false)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			e.log.Warn().Str("command", command).Dur("timeout", timeout).Msg("docker command timed out")
			return false, TimeoutOutput
		}
		e.log.Error().Err(err).Str("command", command).Msg("docker command failed to run")
		return false, err.Error()
	}
	if res.ExitStatus != 0 {
		return false, strings.TrimSpace(res.Stderr)
	}
	return true, strings.TrimSpace(res.Stdout)
}
