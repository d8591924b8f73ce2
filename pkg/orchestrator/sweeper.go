package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/windflowlabs/windflow/pkg/log"
	"github.com/windflowlabs/windflow/pkg/types"
)

// Sweeper defaults. MaxAge guards against racing freshly created
// deployments; Timeout is the point of no return for a stuck row.
const (
	DefaultSweepMaxAge   = 2 * time.Minute
	DefaultSweepTimeout  = 60 * time.Minute
	DefaultSweepInterval = 5 * time.Minute
)

// SweepReport summarizes one sweeper pass.
type SweepReport struct {
	Retried int
	Failed  int
	Skipped int
	Errors  int
}

func (r SweepReport) String() string {
	return fmt.Sprintf("retried=%d failed=%d skipped=%d errors=%d", r.Retried, r.Failed, r.Skipped, r.Errors)
}

// SweeperConfig tunes the recovery sweeper. Zero values take the
// defaults above.
type SweeperConfig struct {
	MaxAge   time.Duration
	Timeout  time.Duration
	Interval time.Duration
}

// Sweeper recovers deployments orphaned by a server restart: stale
// PENDING/DEPLOYING rows either get their worker restarted or, past
// the timeout, are failed with a diagnostic message.
type Sweeper struct {
	orch     *Orchestrator
	maxAge   time.Duration
	timeout  time.Duration
	interval time.Duration
	log      zerolog.Logger

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewSweeper creates a sweeper bound to the orchestrator.
func NewSweeper(orch *Orchestrator, cfg SweeperConfig) *Sweeper {
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = DefaultSweepMaxAge
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultSweepTimeout
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultSweepInterval
	}
	return &Sweeper{
		orch:     orch,
		maxAge:   cfg.MaxAge,
		timeout:  cfg.Timeout,
		interval: cfg.Interval,
		log:      log.WithComponent("sweeper"),
		stopCh:   make(chan struct{}),
	}
}

// Sweep runs one recovery pass and reports what it did. It never
// returns an error; per-row failures are counted and logged.
func (s *Sweeper) Sweep(ctx context.Context) SweepReport {
	var report SweepReport
	now := s.orch.now()

	stale, err := s.orch.store.ListStaleDeployments(
		[]types.DeploymentStatus{types.StatusPending, types.StatusDeploying},
		now.Add(-s.maxAge),
	)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to list stale deployments")
		report.Errors++
		return report
	}

	for _, d := range stale {
		switch {
		case d.CreatedAt.Before(now.Add(-s.timeout)):
			msg := fmt.Sprintf("Timeout: stuck for > %dm", int(s.timeout.Minutes()))
			err := s.orch.UpdateStatus(ctx, d.ID, types.StatusFailed, msg, logLine(types.LogPrefixError, msg), "")
			if err != nil {
				s.log.Error().Err(err).Str("deployment_id", d.ID).Msg("failed to time out deployment")
				report.Errors++
				continue
			}
			s.log.Warn().Str("deployment_id", d.ID).Str("name", d.Name).Msg("deployment timed out")
			report.Failed++

		case s.taskAlive(d.ID):
			report.Skipped++

		default:
			// startWorker rather than Start: a crashed server leaves
			// rows in DEPLOYING, which Start would reject.
			if err := s.orch.startWorker(d); err != nil {
				s.log.Error().Err(err).Str("deployment_id", d.ID).Msg("failed to resume deployment")
				report.Errors++
				continue
			}
			s.log.Info().Str("deployment_id", d.ID).Str("name", d.Name).Msg("deployment resumed")
			report.Retried++
		}
	}

	s.log.Info().
		Int("retried", report.Retried).
		Int("failed", report.Failed).
		Int("skipped", report.Skipped).
		Int("errors", report.Errors).
		Msg("sweep complete")
	return report
}

func (s *Sweeper) taskAlive(id string) bool {
	h, ok := s.orch.taskHandle(id)
	if !ok {
		return false
	}
	select {
	case <-h.Done():
		return false
	default:
		return true
	}
}

// Run sweeps once immediately and then on every interval tick until
// Stop is called.
func (s *Sweeper) Run(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.Sweep(ctx)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.Sweep(ctx)
			case <-s.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop halts the periodic loop and waits for an in-progress sweep.
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()
}
