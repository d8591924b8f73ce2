package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/windflowlabs/windflow/pkg/docker"
	"github.com/windflowlabs/windflow/pkg/log"
	"github.com/windflowlabs/windflow/pkg/metrics"
	"github.com/windflowlabs/windflow/pkg/types"
)

// retryDelay computes the backoff before retry n (1-based), capped at
// MaxRetryDelay.
func retryDelay(attempt int) time.Duration {
	d := InitialRetryDelay << (attempt - 1)
	if d > MaxRetryDelay || d <= 0 {
		return MaxRetryDelay
	}
	return d
}

// runWorker is the deployment retry loop: up to 1+MaxRetries attempts,
// exponential backoff between them, every state change committed
// through UpdateStatus. It reuses the row's persisted variable and
// config snapshots; generators never re-run.
func (o *Orchestrator) runWorker(ctx context.Context, id string) error {
	var lastErr string

	for attempt := 0; attempt <= MaxRetries; attempt++ {
		if attempt > 0 {
			if err := o.persistRetryCount(id, attempt); err != nil {
				return err
			}
			metrics.DeploymentRetriesTotal.Inc()
			if err := o.sleep(ctx, retryDelay(attempt)); err != nil {
				return o.failCancelled(id, err)
			}
		}

		d, err := o.store.GetDeployment(id)
		if err != nil {
			return err
		}
		switch d.Status {
		case types.StatusPending, types.StatusDeploying, types.StatusFailed:
		default:
			// Someone else moved the row (stop, delete-in-progress).
			// The worker has nothing left to do.
			wlog := log.WithDeployment(id)
			wlog.Warn().
				Str("status", string(d.Status)).
				Msg("worker aborting, deployment moved externally")
			return nil
		}

		if err := o.UpdateStatus(ctx, id, types.StatusDeploying, "", logLine(types.LogPrefixInfo, "Deployment starting"), ""); err != nil {
			return err
		}

		ok, output := o.deployOnce(ctx, d)
		if ctx.Err() != nil {
			return o.failCancelled(id, ctx.Err())
		}
		if ok {
			return o.UpdateStatus(ctx, id, types.StatusRunning, "", logLine(types.LogPrefixSuccess, "Deployment completed successfully"), "")
		}

		lastErr = output
		if err := o.appendLog(id, logLine(types.LogPrefixError, output)); err != nil {
			return err
		}
		o.bus.Publish(&types.Event{
			Kind:         types.EventDeploymentRetry,
			DeploymentID: id,
			Data: map[string]any{
				"deployment_id": id,
				"attempt":       attempt,
				"error":         output,
			},
		})
	}

	msg := fmt.Sprintf("After %d attempts: %s", MaxRetries, lastErr)
	if err := o.UpdateStatus(context.Background(), id, types.StatusFailed, msg, "", ""); err != nil {
		return err
	}
	return fmt.Errorf("deployment %s: %s", id, msg)
}

// deployOnce runs a single deploy attempt. Infrastructure faults and
// deployment-level failures are both folded into (false, message) so
// the loop treats them uniformly.
func (o *Orchestrator) deployOnce(ctx context.Context, d *types.Deployment) (bool, string) {
	env, err := o.buildEnv(d)
	if err != nil {
		return false, err.Error()
	}
	defer env.Close()

	if env.stack.TargetType == types.TargetTypeDocker {
		spec, err := docker.FromConfig(d.Config)
		if err != nil {
			return false, err.Error()
		}
		if spec.Name == "" {
			spec.Name = resourceName(d.ID)
		}
		return env.docker.DeployContainer(ctx, spec)
	}

	// Compose, swarm and everything else go through a rendered compose
	// file on the target host.
	composePath := o.composePath(d)
	if err := env.compose.EmitFile(ctx, d.Config, composePath); err != nil {
		return false, err.Error()
	}
	return env.compose.Deploy(ctx, composePath, resourceName(d.ID), nil)
}

func (o *Orchestrator) persistRetryCount(id string, attempt int) error {
	d, err := o.store.GetDeployment(id)
	if err != nil {
		return err
	}
	d.TaskRetryCount = attempt
	return o.store.UpdateDeployment(d)
}

// failCancelled writes the terminal state for a cancelled worker. The
// cancellation itself is the outcome; a failed write is only logged.
func (o *Orchestrator) failCancelled(id string, cause error) error {
	err := o.UpdateStatus(context.Background(), id, types.StatusFailed, "cancelled", logLine(types.LogPrefixWarn, "Deployment cancelled"), "")
	if err != nil {
		wlog := log.WithDeployment(id)
		wlog.Error().Err(err).Msg("failed to record cancellation")
	}
	return cause
}
