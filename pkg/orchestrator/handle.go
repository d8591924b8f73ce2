package orchestrator

import (
	"context"
	"sync"
)

// TaskHandle tracks one in-flight deployment worker. The orchestrator's
// registry is the single owner of handle lifetimes.
type TaskHandle struct {
	deploymentID string
	cancel       context.CancelFunc
	done         chan struct{}

	mu  sync.Mutex
	err error
}

func newTaskHandle(deploymentID string, cancel context.CancelFunc) *TaskHandle {
	return &TaskHandle{
		deploymentID: deploymentID,
		cancel:       cancel,
		done:         make(chan struct{}),
	}
}

// Cancel requests the worker to stop. The worker observes cancellation
// and writes its own terminal state.
func (h *TaskHandle) Cancel() {
	h.cancel()
}

// Done is closed when the worker has fully finished.
func (h *TaskHandle) Done() <-chan struct{} {
	return h.done
}

// Err reports the worker's outcome once Done is closed: nil on success,
// context.Canceled on cancellation, otherwise the deployment failure.
func (h *TaskHandle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

func (h *TaskHandle) finish(err error) {
	h.mu.Lock()
	h.err = err
	h.mu.Unlock()
	close(h.done)
}
