package scanner

import (
	"context"
	"fmt"
	"time"

	"github.com/windflowlabs/windflow/pkg/executor"
	"github.com/windflowlabs/windflow/pkg/log"
	"github.com/windflowlabs/windflow/pkg/storage"
	"github.com/windflowlabs/windflow/pkg/types"
)

// ExecutorFactory builds the executor a target is scanned through.
// Swapped out in tests.
type ExecutorFactory func(target *types.Target) (executor.CommandExecutor, error)

// ScanService scans stored targets and persists the results.
type ScanService struct {
	store       storage.Store
	newExecutor ExecutorFactory
}

// NewScanService creates a service scanning over the default executor
// selection (local subprocess or SSH by target host).
func NewScanService(store storage.Store) *ScanService {
	return &ScanService{
		store:       store,
		newExecutor: executor.ForTarget,
	}
}

// WithExecutorFactory overrides executor construction.
func (s *ScanService) WithExecutorFactory(f ExecutorFactory) *ScanService {
	s.newExecutor = f
	return s
}

// ScanTarget scans one stored target and persists capabilities, scan
// date and status onto its row. Targets created without an explicit
// type get one inferred from the findings. The scan result is returned
// even when some probes failed; only infrastructure faults (unknown
// target, unreachable host) return an error, after marking the target
// unreachable.
func (s *ScanService) ScanTarget(ctx context.Context, targetID string) (*types.ScanResult, error) {
	target, err := s.store.GetTarget(targetID)
	if err != nil {
		return nil, err
	}

	if err := s.store.SetTargetScanStatus(target.ID, types.TargetStatusScanning); err != nil {
		return nil, fmt.Errorf("mark target scanning: %w", err)
	}

	exec, err := s.newExecutor(target)
	if err != nil {
		s.markUnreachable(target.ID)
		return nil, fmt.Errorf("target %s: %w", target.ID, err)
	}
	defer exec.Close()

	scanner := New(exec, Config{Local: executor.IsLocal(target.Host)})
	result := scanner.Scan(ctx)

	if err := s.store.UpdateTargetCapabilities(target.ID, result, time.Now().UTC(), result.Success); err != nil {
		return result, fmt.Errorf("persist scan result: %w", err)
	}

	if target.Type == "" && result.Success {
		inferred := InferTargetType(result)
		if err := s.setTargetType(target.ID, inferred); err != nil {
			return result, err
		}
		tlog := log.WithTarget(target.ID)
		tlog.Info().
			Str("type", string(inferred)).
			Msg("inferred target type")
	}
	return result, nil
}

func (s *ScanService) setTargetType(id string, t types.TargetType) error {
	target, err := s.store.GetTarget(id)
	if err != nil {
		return err
	}
	target.Type = t
	return s.store.UpdateTarget(target)
}

func (s *ScanService) markUnreachable(id string) {
	if err := s.store.SetTargetScanStatus(id, types.TargetStatusUnreachable); err != nil {
		tlog := log.WithTarget(id)
		tlog.Error().Err(err).Msg("failed to mark target unreachable")
	}
}
