package compose

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/windflowlabs/windflow/pkg/executor"
	"github.com/windflowlabs/windflow/pkg/log"
)

// TimeoutOutput is the failure output reported when an operation
// exceeds its deadline. Surfaced verbatim in deployment logs.
const TimeoutOutput = "Timeout"

const (
	// DefaultUpTimeout bounds docker compose up; a first deployment
	// pulls every image in the project.
	DefaultUpTimeout = 300 * time.Second
	// DefaultDownTimeout bounds docker compose down.
	DefaultDownTimeout = 120 * time.Second
)

var (
	projectRe = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)
	envKeyRe  = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	serviceRe = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)
)

// Config tunes the executor. The zero value is usable.
type Config struct {
	UpTimeout   time.Duration
	DownTimeout time.Duration
	// Timeout bounds the remaining operations (ps, logs).
	Timeout time.Duration
}

// Executor wraps docker compose as typed operations over a
// CommandExecutor. The (ok, output) contract matches pkg/docker:
// stdout on success, stderr on non-zero exit, TimeoutOutput on a
// missed deadline.
type Executor struct {
	exec executor.CommandExecutor
	cfg  Config
	log  zerolog.Logger
}

// New returns an Executor running commands through exec.
func New(exec executor.CommandExecutor, cfg Config) *Executor {
	if cfg.UpTimeout <= 0 {
		cfg.UpTimeout = DefaultUpTimeout
	}
	if cfg.DownTimeout <= 0 {
		cfg.DownTimeout = DefaultDownTimeout
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = executor.DefaultTimeout
	}
	return &Executor{exec: exec, cfg: cfg, log: log.WithComponent("compose")}
}

// Deploy brings a project up detached. env is exported to the compose
// process for variable substitution inside the file; keys are emitted
// in sorted order so the command line is deterministic.
func (e *Executor) Deploy(ctx context.Context, composeFile, projectName string, env map[string]string) (bool, string) {
	if !projectRe.MatchString(projectName) {
		return false, fmt.Sprintf("invalid project name %q", projectName)
	}
	var b strings.Builder
	for _, k := range sortedEnvKeys(env) {
		if !envKeyRe.MatchString(k) {
			return false, fmt.Sprintf("invalid environment key %q", k)
		}
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(executor.Quote(env[k]))
		b.WriteString(" ")
	}
	command := fmt.Sprintf("%sdocker compose -f %s -p %s up -d",
		b.String(), executor.Quote(composeFile), projectName)
	e.log.Info().
		Str("project", projectName).
		Str("file", composeFile).
		Str("host", e.exec.Describe()).
		Msg("compose up")
	return e.run(ctx, command, e.cfg.UpTimeout)
}

// ContainerSummary is one row of docker compose ps.
type ContainerSummary struct {
	ID       string
	Name     string
	Image    string
	Service  string
	State    string // running, exited, restarting, ...
	Health   string
	ExitCode int
}

// Status lists the project's containers. Compose emits one JSON object
// per line; older releases emit a single array, both are accepted.
func (e *Executor) Status(ctx context.Context, projectName string) ([]ContainerSummary, error) {
	if !projectRe.MatchString(projectName) {
		return nil, fmt.Errorf("invalid project name %q", projectName)
	}
	command := fmt.Sprintf("docker compose -p %s ps --format json", projectName)
	ok, out := e.run(ctx, command, e.cfg.Timeout)
	if !ok {
		return nil, fmt.Errorf("compose ps for %s: %s", projectName, out)
	}
	return parseStatus(out)
}

func parseStatus(out string) ([]ContainerSummary, error) {
	out = strings.TrimSpace(out)
	if out == "" {
		return nil, nil
	}
	if strings.HasPrefix(out, "[") {
		var all []ContainerSummary
		if err := json.Unmarshal([]byte(out), &all); err != nil {
			return nil, fmt.Errorf("parse compose ps output: %w", err)
		}
		return all, nil
	}
	var all []ContainerSummary
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var one ContainerSummary
		if err := json.Unmarshal([]byte(line), &one); err != nil {
			return nil, fmt.Errorf("parse compose ps line %q: %w", line, err)
		}
		all = append(all, one)
	}
	return all, nil
}

// Stop takes the project down. Containers and networks are removed,
// volumes stay so the deployment can be started again.
func (e *Executor) Stop(ctx context.Context, projectName string) (bool, string) {
	if !projectRe.MatchString(projectName) {
		return false, fmt.Sprintf("invalid project name %q", projectName)
	}
	command := fmt.Sprintf("docker compose -p %s down", projectName)
	return e.run(ctx, command, e.cfg.DownTimeout)
}

// Remove tears the project down for good, including orphaned containers
// from earlier file revisions and, when removeVolumes is set, its
// named volumes.
func (e *Executor) Remove(ctx context.Context, projectName string, removeVolumes bool) (bool, string) {
	if !projectRe.MatchString(projectName) {
		return false, fmt.Sprintf("invalid project name %q", projectName)
	}
	command := "docker compose -p " + projectName + " down"
	if removeVolumes {
		command += " -v"
	}
	command += " --remove-orphans"
	return e.run(ctx, command, e.cfg.DownTimeout)
}

// Logs fetches the last tail lines for the whole project or a single
// service.
func (e *Executor) Logs(ctx context.Context, projectName, service string, tail int) (bool, string) {
	if !projectRe.MatchString(projectName) {
		return false, fmt.Sprintf("invalid project name %q", projectName)
	}
	if tail <= 0 {
		tail = 100
	}
	command := fmt.Sprintf("docker compose -p %s logs --tail %d", projectName, tail)
	if service != "" {
		if !serviceRe.MatchString(service) {
			return false, fmt.Sprintf("invalid service name %q", service)
		}
		command += " " + service
	}
	return e.run(ctx, command, e.cfg.Timeout)
}

func (e *Executor) run(ctx context.Context, command string, timeout time.Duration) (bool, string) {
	res, err := e.exec.Run(ctx, command, timeout, false)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			e.log.Warn().Str("command", command).Dur("timeout", timeout).Msg("compose command timed out")
			return false, TimeoutOutput
		}
		e.log.Error().Err(err).Str("command", command).Msg("compose command failed to run")
		return false, err.Error()
	}
	if res.ExitStatus != 0 {
		return false, strings.TrimSpace(res.Stderr)
	}
	return true, strings.TrimSpace(res.Stdout)
}

func sortedEnvKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
