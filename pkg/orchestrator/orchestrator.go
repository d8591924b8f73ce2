package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"path"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/windflowlabs/windflow/pkg/compose"
	"github.com/windflowlabs/windflow/pkg/docker"
	"github.com/windflowlabs/windflow/pkg/events"
	"github.com/windflowlabs/windflow/pkg/executor"
	"github.com/windflowlabs/windflow/pkg/log"
	"github.com/windflowlabs/windflow/pkg/metrics"
	"github.com/windflowlabs/windflow/pkg/render"
	"github.com/windflowlabs/windflow/pkg/stack"
	"github.com/windflowlabs/windflow/pkg/storage"
	"github.com/windflowlabs/windflow/pkg/types"
)

// Retry policy. Exponential backoff base 2, capped.
const (
	MaxRetries        = 3
	InitialRetryDelay = 60 * time.Second
	MaxRetryDelay     = 600 * time.Second
)

// DefaultWorkDir is where rendered compose files land on the execution
// host.
const DefaultWorkDir = "/tmp/windflow"

var (
	// ErrNameConflict is returned when a deployment name is already
	// taken within the organization.
	ErrNameConflict = errors.New("deployment name already in use")
	// ErrInvalidStatus is returned when an operation is not allowed in
	// the deployment's current status.
	ErrInvalidStatus = errors.New("operation not allowed in current status")
	// ErrTaskActive is returned when a deployment already has an
	// in-flight worker.
	ErrTaskActive = errors.New("deployment already has an active task")
)

// ExecutorFactory builds the command executor for a target. Swapped out
// in tests.
type ExecutorFactory func(target *types.Target) (executor.CommandExecutor, error)

// Config collects the orchestrator's dependencies and tunables. Store
// and Bus are required; everything else has defaults.
type Config struct {
	Store storage.Store
	Bus   *events.Bus
	// ExecutorFactory defaults to executor.ForTarget.
	ExecutorFactory ExecutorFactory
	// WorkDir defaults to DefaultWorkDir.
	WorkDir string
	// Workers bounds concurrent deployment workers. Defaults to
	// 2×GOMAXPROCS.
	Workers int
	// Sleep and Now are injectable for deterministic retry tests.
	Sleep func(ctx context.Context, d time.Duration) error
	Now   func() time.Time
}

// Orchestrator drives deployments through their lifecycle. It is the
// exclusive owner of in-flight task state.
type Orchestrator struct {
	store       storage.Store
	bus         *events.Bus
	newExecutor ExecutorFactory
	workDir     string
	sem         chan struct{}
	sleep       func(ctx context.Context, d time.Duration) error
	now         func() time.Time
	log         zerolog.Logger

	mu          sync.Mutex
	activeTasks map[string]*TaskHandle
}

// New creates an orchestrator from cfg.
func New(cfg Config) *Orchestrator {
	if cfg.ExecutorFactory == nil {
		cfg.ExecutorFactory = executor.ForTarget
	}
	if cfg.WorkDir == "" {
		cfg.WorkDir = DefaultWorkDir
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 2 * runtime.GOMAXPROCS(0)
	}
	if cfg.Sleep == nil {
		cfg.Sleep = sleepCtx
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Orchestrator{
		store:       cfg.Store,
		bus:         cfg.Bus,
		newExecutor: cfg.ExecutorFactory,
		workDir:     cfg.WorkDir,
		sem:         make(chan struct{}, cfg.Workers),
		sleep:       cfg.Sleep,
		now:         cfg.Now,
		log:         log.WithComponent("orchestrator"),
		activeTasks: make(map[string]*TaskHandle),
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// logLine formats one deployment log entry. The prefixes are part of
// the external contract; the UI surfaces them verbatim.
func logLine(prefix, msg string) string {
	return prefix + " " + msg
}

// resourceName derives the container/project name for a deployment:
// a fixed prefix plus the first 8 characters of the row ID.
func resourceName(deploymentID string) string {
	id := deploymentID
	if len(id) > 8 {
		id = id[:8]
	}
	return "windflow-" + id
}

// CreateRequest describes one deployment to create.
type CreateRequest struct {
	StackID        string
	TargetID       string
	OrganizationID string
	// Name overrides the stack's deployment_name template when set.
	Name string
	// Values are the user-provided variable values.
	Values map[string]any
	UserID string
}

// Create validates the request against the stack's variable schema,
// renders everything exactly once, persists the PENDING row with its
// snapshots, and starts a worker. Generators never re-run for this
// deployment; retries reuse the persisted snapshots.
func (o *Orchestrator) Create(ctx context.Context, req CreateRequest) (*types.Deployment, error) {
	st, err := o.store.GetStack(req.StackID)
	if err != nil {
		return nil, fmt.Errorf("load stack: %w", err)
	}
	if _, err := o.store.GetTarget(req.TargetID); err != nil {
		return nil, fmt.Errorf("load target: %w", err)
	}

	if err := stack.ValidateUserValues(st, req.Values); err != nil {
		return nil, err
	}

	vars, err := render.MergeVariables(st, req.Values)
	if err != nil {
		return nil, fmt.Errorf("render variables: %w", err)
	}

	name := req.Name
	if name == "" {
		name, err = o.renderName(st, vars)
		if err != nil {
			return nil, err
		}
	}
	if _, err := o.store.GetDeploymentByName(req.OrganizationID, name); err == nil {
		return nil, fmt.Errorf("%s: %w", name, ErrNameConflict)
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}
	vars["deployment_name"] = name

	config, err := render.Render(st.Template, vars)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}
	params, err := render.Render(st.TargetParameters, vars)
	if err != nil {
		return nil, fmt.Errorf("render target parameters: %w", err)
	}

	now := o.now()
	d := &types.Deployment{
		ID:             uuid.NewString(),
		StackID:        st.ID,
		TargetID:       req.TargetID,
		OrganizationID: req.OrganizationID,
		Name:           name,
		Status:         types.StatusPending,
		Variables:      vars,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if m, ok := config.(map[string]any); ok {
		d.Config = m
	}
	if m, ok := params.(map[string]any); ok {
		d.RenderedTargetParameters = m
	}
	if err := o.store.CreateDeployment(d); err != nil {
		return nil, fmt.Errorf("persist deployment: %w", err)
	}

	o.log.Info().
		Str("deployment_id", d.ID).
		Str("name", d.Name).
		Str("stack_id", st.ID).
		Msg("deployment created")

	if err := o.Start(ctx, d.ID); err != nil {
		return d, err
	}
	return d, nil
}

func (o *Orchestrator) renderName(st *types.Stack, vars map[string]any) (string, error) {
	if st.DeploymentName == "" {
		return resourceName(uuid.NewString()), nil
	}
	rendered, err := render.RenderString(st.DeploymentName, vars)
	if err != nil {
		return "", fmt.Errorf("render deployment name: %w", err)
	}
	name := strings.TrimSpace(fmt.Sprintf("%v", rendered))
	if name == "" {
		return "", fmt.Errorf("deployment name rendered empty from %q", st.DeploymentName)
	}
	return name, nil
}

// Start spawns a worker for a PENDING or FAILED deployment. The worker
// runs detached from the caller's context; Cancel or Delete stop it.
func (o *Orchestrator) Start(ctx context.Context, id string) error {
	d, err := o.store.GetDeployment(id)
	if err != nil {
		return err
	}
	if d.Status != types.StatusPending && d.Status != types.StatusFailed {
		return fmt.Errorf("start deployment %s in status %s: %w", id, d.Status, ErrInvalidStatus)
	}
	return o.startWorker(d)
}

// startWorker registers a handle and launches the worker goroutine.
// The sweeper uses it directly to resume DEPLOYING rows after a crash.
func (o *Orchestrator) startWorker(d *types.Deployment) error {
	o.mu.Lock()
	if _, exists := o.activeTasks[d.ID]; exists {
		o.mu.Unlock()
		return fmt.Errorf("deployment %s: %w", d.ID, ErrTaskActive)
	}
	workerCtx, cancel := context.WithCancel(context.Background())
	handle := newTaskHandle(d.ID, cancel)
	o.activeTasks[d.ID] = handle
	o.mu.Unlock()

	now := o.now()
	d.TaskStartedAt = &now
	d.TaskRetryCount = 0
	if err := o.store.UpdateDeployment(d); err != nil {
		o.removeTask(d.ID)
		cancel()
		return fmt.Errorf("persist task start: %w", err)
	}

	metrics.ActiveTasks.Inc()
	go func() {
		defer metrics.ActiveTasks.Dec()
		defer cancel()

		select {
		case o.sem <- struct{}{}:
			defer func() { <-o.sem }()
		case <-workerCtx.Done():
			o.finishTask(handle, workerCtx.Err())
			return
		}

		err := o.runWorker(workerCtx, d.ID)
		o.finishTask(handle, err)
	}()
	return nil
}

// finishTask is the done-callback: it removes the handle and logs the
// outcome, distinguishing success, cancellation and failure.
func (o *Orchestrator) finishTask(handle *TaskHandle, err error) {
	o.removeTask(handle.deploymentID)
	handle.finish(err)

	evt := o.log.Info()
	switch {
	case err == nil:
		evt.Str("deployment_id", handle.deploymentID).Msg("deployment task succeeded")
	case errors.Is(err, context.Canceled):
		evt.Str("deployment_id", handle.deploymentID).Msg("deployment task cancelled")
	default:
		o.log.Error().Err(err).Str("deployment_id", handle.deploymentID).Msg("deployment task failed")
	}
}

func (o *Orchestrator) removeTask(id string) {
	o.mu.Lock()
	delete(o.activeTasks, id)
	o.mu.Unlock()
}

// taskHandle returns the active handle for a deployment, if any.
func (o *Orchestrator) taskHandle(id string) (*TaskHandle, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	h, ok := o.activeTasks[id]
	return h, ok
}

// ActiveTaskCount reports in-flight workers.
func (o *Orchestrator) ActiveTaskCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.activeTasks)
}

// Cancel requests the deployment's worker to stop. The row is not
// mutated here; the worker writes its own terminal state.
func (o *Orchestrator) Cancel(id string) {
	if h, ok := o.taskHandle(id); ok {
		h.Cancel()
	}
}

// UpdateStatus commits one status transition: appends logs, maintains
// the timestamp/duration fields, then publishes the transition and,
// when logs were appended, a logs-update event. It is the single
// publisher for deployment state changes.
func (o *Orchestrator) UpdateStatus(ctx context.Context, id string, status types.DeploymentStatus, errMsg, logs, userID string) error {
	d, err := o.store.GetDeployment(id)
	if err != nil {
		return err
	}
	oldStatus := d.Status

	d.Status = status
	if errMsg != "" {
		d.ErrorMessage = errMsg
	}
	if logs != "" {
		if d.Logs != "" {
			d.Logs += "\n"
		}
		d.Logs += logs
	}
	now := o.now()
	switch status {
	case types.StatusRunning:
		d.DeployedAt = &now
		d.ErrorMessage = ""
	case types.StatusStopped, types.StatusFailed:
		d.StoppedAt = &now
		if d.DeployedAt != nil {
			secs := now.Sub(*d.DeployedAt).Seconds()
			d.DeployDurationSeconds = &secs
		}
	}
	if err := o.store.UpdateDeployment(d); err != nil {
		return fmt.Errorf("persist status %s: %w", status, err)
	}

	o.bus.Publish(&types.Event{
		Kind:         statusEventKind(status),
		DeploymentID: d.ID,
		UserID:       userID,
		Data: map[string]any{
			"deployment_id": d.ID,
			"name":          d.Name,
			"old_status":    string(oldStatus),
			"new_status":    string(status),
			"error_message": d.ErrorMessage,
		},
	})
	if logs != "" {
		o.publishLogs(d.ID, logs)
	}
	return nil
}

// statusEventKind picks the lifecycle kind for a transition; all of
// them reach subscribers as DEPLOYMENT_STATUS_CHANGED.
func statusEventKind(status types.DeploymentStatus) types.EventKind {
	switch status {
	case types.StatusDeploying:
		return types.EventDeploymentStarted
	case types.StatusRunning:
		return types.EventDeploymentCompleted
	case types.StatusFailed:
		return types.EventDeploymentFailed
	default:
		return types.EventDeploymentStatusChanged
	}
}

// appendLog appends to the deployment's log without changing status.
func (o *Orchestrator) appendLog(id, line string) error {
	d, err := o.store.GetDeployment(id)
	if err != nil {
		return err
	}
	if d.Logs != "" {
		d.Logs += "\n"
	}
	d.Logs += line
	if err := o.store.UpdateDeployment(d); err != nil {
		return err
	}
	o.publishLogs(id, line)
	return nil
}

func (o *Orchestrator) publishLogs(id, logs string) {
	o.bus.Publish(&types.Event{
		Kind:         types.EventDeploymentLogsUpdate,
		DeploymentID: id,
		Data: map[string]any{
			"deployment_id": id,
			"logs":          logs,
			"append":        true,
		},
	})
}

// Retry re-runs a PENDING or FAILED deployment on the same row,
// reusing the persisted variable and config snapshots. A failed worker
// start reverts the row to PENDING.
func (o *Orchestrator) Retry(ctx context.Context, id, userID string) error {
	d, err := o.store.GetDeployment(id)
	if err != nil {
		return err
	}
	if d.Status != types.StatusPending && d.Status != types.StatusFailed {
		return fmt.Errorf("retry deployment %s in status %s: %w", id, d.Status, ErrInvalidStatus)
	}
	if err := o.UpdateStatus(ctx, id, types.StatusDeploying, "", logLine(types.LogPrefixRetry, "Retrying deployment"), userID); err != nil {
		return err
	}
	d, err = o.store.GetDeployment(id)
	if err != nil {
		return err
	}
	if err := o.startWorker(d); err != nil {
		revertErr := o.UpdateStatus(ctx, id, types.StatusPending, "", logLine(types.LogPrefixError, "Failed to start retry: "+err.Error()), userID)
		if revertErr != nil {
			o.log.Error().Err(revertErr).Str("deployment_id", id).Msg("failed to revert retry")
		}
		return err
	}
	return nil
}

// Stop stops a running deployment's resources and transitions the row
// to STOPPED.
func (o *Orchestrator) Stop(ctx context.Context, id, userID string) error {
	d, err := o.store.GetDeployment(id)
	if err != nil {
		return err
	}
	if d.Status != types.StatusRunning {
		return fmt.Errorf("stop deployment %s in status %s: %w", id, d.Status, ErrInvalidStatus)
	}

	env, err := o.buildEnv(d)
	if err != nil {
		return err
	}
	defer env.Close()

	var ok bool
	var out string
	if env.stack.TargetType == types.TargetTypeDocker {
		ok, out = env.docker.Stop(ctx, resourceName(d.ID), 0)
	} else {
		ok, out = env.compose.Stop(ctx, resourceName(d.ID))
	}
	if !ok {
		appendErr := o.appendLog(id, logLine(types.LogPrefixError, "Failed to stop: "+out))
		if appendErr != nil {
			o.log.Error().Err(appendErr).Str("deployment_id", id).Msg("failed to append stop error")
		}
		return fmt.Errorf("stop deployment %s: %s", id, out)
	}
	return o.UpdateStatus(ctx, id, types.StatusStopped, "", logLine(types.LogPrefixInfo, "Deployment stopped"), userID)
}

// Restart bounces a running deployment's resources in place. The row
// stays RUNNING; only the log records the restart.
func (o *Orchestrator) Restart(ctx context.Context, id, userID string) error {
	d, err := o.store.GetDeployment(id)
	if err != nil {
		return err
	}
	if d.Status != types.StatusRunning {
		return fmt.Errorf("restart deployment %s in status %s: %w", id, d.Status, ErrInvalidStatus)
	}

	env, err := o.buildEnv(d)
	if err != nil {
		return err
	}
	defer env.Close()

	var ok bool
	var out string
	if env.stack.TargetType == types.TargetTypeDocker {
		ok, out = env.docker.Restart(ctx, resourceName(d.ID), 0)
	} else {
		// Compose has no single restart verb; up -d recreates what
		// changed and restarts the rest.
		ok, out = env.compose.Deploy(ctx, o.composePath(d), resourceName(d.ID), nil)
	}
	if !ok {
		return fmt.Errorf("restart deployment %s: %s", id, out)
	}
	return o.appendLog(id, logLine(types.LogPrefixInfo, "Deployment restarted"))
}

// FetchLogs reads the deployment's container logs from the target.
func (o *Orchestrator) FetchLogs(ctx context.Context, id string, tail int) (string, error) {
	d, err := o.store.GetDeployment(id)
	if err != nil {
		return "", err
	}
	env, err := o.buildEnv(d)
	if err != nil {
		return "", err
	}
	defer env.Close()

	var ok bool
	var out string
	if env.stack.TargetType == types.TargetTypeDocker {
		ok, out = env.docker.Logs(ctx, resourceName(d.ID), tail, "")
	} else {
		ok, out = env.compose.Logs(ctx, resourceName(d.ID), "", tail)
	}
	if !ok {
		return "", fmt.Errorf("fetch logs for %s: %s", id, out)
	}
	return out, nil
}

// Delete tears the deployment's resources down and then removes the
// row. Any teardown failure keeps the row, transitioned to FAILED, so
// the user can retry the delete.
func (o *Orchestrator) Delete(ctx context.Context, id, userID string) error {
	if h, ok := o.taskHandle(id); ok {
		h.Cancel()
		<-h.Done()
	}

	d, err := o.store.GetDeployment(id)
	if err != nil {
		return err
	}

	needsTeardown := d.Status == types.StatusRunning ||
		d.Status == types.StatusDeploying ||
		d.Status == types.StatusPending
	if needsTeardown {
		if out, err := o.teardown(ctx, d); err != nil {
			msg := "Failed to remove resources: " + out
			updateErr := o.UpdateStatus(ctx, id, types.StatusFailed, msg, logLine(types.LogPrefixError, msg), userID)
			if updateErr != nil {
				o.log.Error().Err(updateErr).Str("deployment_id", id).Msg("failed to record teardown failure")
			}
			return fmt.Errorf("teardown deployment %s: %s", id, out)
		}
	}

	if err := o.store.DeleteDeployment(id); err != nil {
		return fmt.Errorf("delete deployment row %s: %w", id, err)
	}
	o.log.Info().Str("deployment_id", id).Str("name", d.Name).Msg("deployment deleted")
	return nil
}

// teardown removes the deployment's containers and, on the docker path,
// its named volumes from rendered_target_parameters. The first failure
// aborts; volumes are only touched after the container is gone.
func (o *Orchestrator) teardown(ctx context.Context, d *types.Deployment) (string, error) {
	env, err := o.buildEnv(d)
	if err != nil {
		return err.Error(), err
	}
	defer env.Close()

	name := resourceName(d.ID)
	if env.stack.TargetType == types.TargetTypeDocker {
		if ok, out := env.docker.Remove(ctx, name, true, true); !ok {
			return out, errors.New(out)
		}
		for _, volume := range volumeNames(d.RenderedTargetParameters) {
			if ok, out := env.docker.RemoveVolume(ctx, volume, false); !ok {
				return out, errors.New(out)
			}
		}
		return "", nil
	}
	if ok, out := env.compose.Remove(ctx, name, true); !ok {
		return out, errors.New(out)
	}
	return "", nil
}

// volumeNames extracts the plain volume names slated for removal from
// a rendered target_parameters snapshot.
func volumeNames(params map[string]any) []string {
	raw, ok := params["volumes"]
	if !ok || raw == nil {
		return nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil
	}
	names := make([]string, 0, len(list))
	for _, v := range list {
		if s, ok := v.(string); ok && s != "" {
			names = append(names, s)
		}
	}
	return names
}

// execEnv bundles the per-operation executors for one deployment.
type execEnv struct {
	stack   *types.Stack
	exec    executor.CommandExecutor
	docker  *docker.Executor
	compose *compose.Executor
}

func (e *execEnv) Close() {
	if e.exec != nil {
		e.exec.Close()
	}
}

// buildEnv resolves the deployment's stack and target and constructs
// executors bound to the target host.
func (o *Orchestrator) buildEnv(d *types.Deployment) (*execEnv, error) {
	st, err := o.store.GetStack(d.StackID)
	if err != nil {
		return nil, fmt.Errorf("load stack: %w", err)
	}
	target, err := o.store.GetTarget(d.TargetID)
	if err != nil {
		return nil, fmt.Errorf("load target: %w", err)
	}
	exec, err := o.newExecutor(target)
	if err != nil {
		return nil, fmt.Errorf("build executor: %w", err)
	}
	return &execEnv{
		stack:   st,
		exec:    exec,
		docker:  docker.New(exec, docker.Config{}),
		compose: compose.New(exec, compose.Config{}),
	}, nil
}

// composePath is where the rendered compose file lands on the
// execution host.
func (o *Orchestrator) composePath(d *types.Deployment) string {
	return path.Join(o.workDir, resourceName(d.ID), "docker-compose.yml")
}
