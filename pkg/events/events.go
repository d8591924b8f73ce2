package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/windflowlabs/windflow/pkg/log"
	"github.com/windflowlabs/windflow/pkg/types"
)

// Handler consumes one event. A returned error only produces a log
// line and never reaches the publisher.
type Handler func(event *types.Event) error

// queueSize bounds the central event queue. Publish drops (with a
// warning) rather than block when the dispatcher falls this far
// behind.
const queueSize = 256

// Bus is an in-process pub/sub over the closed set of event kinds.
// Publishers enqueue onto one central buffered channel and a single
// dispatcher goroutine invokes the subscribed handlers, so every
// subscriber observes events in publish order. Publish never blocks on
// handlers; the orchestrator's worker goroutines are isolated from
// slow WebSocket fan-out.
type Bus struct {
	mu       sync.RWMutex
	handlers map[types.EventKind]map[string]Handler
	queue    chan *types.Event
	closed   bool
	wg       sync.WaitGroup
	log      zerolog.Logger
}

// NewBus creates a bus and starts its dispatcher.
func NewBus() *Bus {
	b := &Bus{
		handlers: make(map[types.EventKind]map[string]Handler),
		queue:    make(chan *types.Event, queueSize),
		log:      log.WithComponent("events"),
	}
	go b.run()
	return b
}

// Subscribe registers handler for kind and returns the subscription ID
// to pass to Unsubscribe.
func (b *Bus) Subscribe(kind types.EventKind, handler Handler) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := uuid.NewString()
	if b.handlers[kind] == nil {
		b.handlers[kind] = make(map[string]Handler)
	}
	b.handlers[kind][id] = handler
	return id
}

// Unsubscribe removes one subscription. Unknown IDs are ignored.
func (b *Bus) Unsubscribe(kind types.EventKind, id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if m := b.handlers[kind]; m != nil {
		delete(m, id)
		if len(m) == 0 {
			delete(b.handlers, kind)
		}
	}
}

// Publish enqueues event for delivery and returns immediately. Events
// from one publisher reach every subscriber in publish order. When the
// queue is full or the bus is closed the event is dropped with a
// warning; delivery is best-effort by contract. A zero Timestamp is
// stamped with the current time.
func (b *Bus) Publish(event *types.Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	// The read lock excludes Close, so the queue cannot be closed
	// between the check and the send.
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		b.log.Warn().
			Str("kind", string(event.Kind)).
			Msg("publish on closed bus, event dropped")
		return
	}

	b.wg.Add(1)
	select {
	case b.queue <- event:
	default:
		b.wg.Done()
		b.log.Warn().
			Str("kind", string(event.Kind)).
			Msg("event queue full, event dropped")
	}
}

// run is the dispatcher: one goroutine pulls events off the queue and
// invokes handlers, so deliveries are totally ordered.
func (b *Bus) run() {
	for event := range b.queue {
		b.dispatch(event)
		b.wg.Done()
	}
}

func (b *Bus) dispatch(event *types.Event) {
	b.mu.RLock()
	snapshot := make([]Handler, 0, len(b.handlers[event.Kind]))
	for _, h := range b.handlers[event.Kind] {
		snapshot = append(snapshot, h)
	}
	b.mu.RUnlock()

	for _, handler := range snapshot {
		b.invoke(event, handler)
	}
}

// invoke runs one handler. Errors and panics are logged and swallowed;
// one broken handler cannot stop the others or the dispatcher.
func (b *Bus) invoke(event *types.Event, handler Handler) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error().
				Interface("panic", r).
				Str("kind", string(event.Kind)).
				Msg("event handler panicked")
		}
	}()
	if err := handler(event); err != nil {
		b.log.Warn().
			Err(err).
			Str("kind", string(event.Kind)).
			Msg("event handler failed")
	}
}

// Drain blocks until every queued event has been delivered. Shutdown
// and tests use it to flush deliveries.
func (b *Bus) Drain() {
	b.wg.Wait()
}

// Close stops the bus: queued events are still delivered, later
// publishes are dropped. Callers that need the queue flushed call
// Drain first.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	close(b.queue)
}

// HandlerCount reports active subscriptions for kind.
func (b *Bus) HandlerCount(kind types.EventKind) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[kind])
}

// NewDeploymentEvent builds an event carrying deployment context.
func NewDeploymentEvent(kind types.EventKind, deploymentID string, data map[string]any) *types.Event {
	return &types.Event{
		Kind:         kind,
		DeploymentID: deploymentID,
		Data:         data,
		Timestamp:    time.Now().UTC(),
	}
}
