package scanner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/windflowlabs/windflow/pkg/executor"
	"github.com/windflowlabs/windflow/pkg/log"
	"github.com/windflowlabs/windflow/pkg/types"
)

// DefaultDockerSocket is the engine socket probed on the local fast
// path and checked for accessibility on remote hosts.
const DefaultDockerSocket = "/var/run/docker.sock"

// DefaultProbeTimeout bounds each individual probe command.
const DefaultProbeTimeout = 15 * time.Second

// Config tunes a Scanner. The zero value probes a remote host with
// default timeouts.
type Config struct {
	// Local enables the Docker socket fast path: when the scanner runs
	// on the host itself, engine queries go through the API socket
	// instead of subprocess output parsing.
	Local bool
	// DockerSocket overrides DefaultDockerSocket.
	DockerSocket string
	// ProbeTimeout bounds each probe command.
	ProbeTimeout time.Duration
}

// Scanner runs the fixed probe plan over one CommandExecutor.
type Scanner struct {
	exec executor.CommandExecutor
	cfg  Config
	log  zerolog.Logger

	mu     sync.Mutex
	errors []string
}

// New creates a Scanner probing through exec.
func New(exec executor.CommandExecutor, cfg Config) *Scanner {
	if cfg.DockerSocket == "" {
		cfg.DockerSocket = DefaultDockerSocket
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = DefaultProbeTimeout
	}
	return &Scanner{
		exec: exec,
		cfg:  cfg,
		log:  log.WithComponent("scanner"),
	}
}

// Scan executes the probe plan. Probes run concurrently; each is
// wrapped so a failure records an error and leaves its section at the
// zero value instead of failing the scan. Success is true iff no
// errors were recorded.
func (s *Scanner) Scan(ctx context.Context) *types.ScanResult {
	result := &types.ScanResult{
		Host:     s.exec.Describe(),
		ScanDate: time.Now().UTC(),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(s.safe("platform", func() error {
		platform, err := s.probePlatform(gctx)
		result.Platform = platform
		return err
	}))
	g.Go(s.safe("os", func() error {
		osInfo, err := s.probeOS(gctx)
		result.OS = osInfo
		return err
	}))
	g.Go(s.safe("virtualization", func() error {
		virt, err := s.probeVirtualization(gctx)
		result.Virtualization = virt
		return err
	}))
	g.Go(s.safe("docker", func() error {
		docker, err := s.probeDocker(gctx)
		result.Docker = docker
		return err
	}))
	g.Go(s.safe("kubernetes", func() error {
		kube, err := s.probeKubernetes(gctx)
		result.Kubernetes = kube
		return err
	}))

	_ = g.Wait() // safe() never returns an error

	result.Errors = s.drainErrors()
	result.Success = len(result.Errors) == 0

	s.log.Info().
		Str("host", result.Host).
		Bool("success", result.Success).
		Int("errors", len(result.Errors)).
		Msg("capability scan finished")
	return result
}

// safe wraps a probe so its error is recorded rather than propagated;
// one broken probe must not sink the scan.
func (s *Scanner) safe(name string, fn func() error) func() error {
	return func() error {
		defer func() {
			if r := recover(); r != nil {
				s.recordError(name, fmt.Errorf("panic: %v", r))
			}
		}()
		if err := fn(); err != nil {
			s.recordError(name, err)
		}
		return nil
	}
}

func (s *Scanner) recordError(probe string, err error) {
	s.log.Warn().Str("probe", probe).Err(err).Msg("probe failed")
	s.mu.Lock()
	s.errors = append(s.errors, fmt.Sprintf("%s: %v", probe, err))
	s.mu.Unlock()
}

func (s *Scanner) drainErrors() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errors
}

// run executes one probe command. ok is false when the command exited
// non-zero (typically: the probed tool is not installed), which is a
// normal outcome, not an error. The returned error is reserved for
// infrastructure faults (connection loss, spawn failure).
func (s *Scanner) run(ctx context.Context, command string) (out string, ok bool, err error) {
	res, err := s.exec.Run(ctx, command, s.cfg.ProbeTimeout, false)
	if err != nil {
		return "", false, err
	}
	if res.ExitStatus != 0 {
		return "", false, nil
	}
	return res.Stdout, true, nil
}
