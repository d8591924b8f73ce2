package events

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/windflowlabs/windflow/pkg/types"
)

func TestSubscribePublishDelivers(t *testing.T) {
	bus := NewBus()
	received := make(chan *types.Event, 1)

	bus.Subscribe(types.EventDeploymentStarted, func(e *types.Event) error {
		received <- e
		return nil
	})

	bus.Publish(NewDeploymentEvent(types.EventDeploymentStarted, "dep-1", map[string]any{"name": "app"}))

	select {
	case e := <-received:
		assert.Equal(t, "dep-1", e.DeploymentID)
		assert.Equal(t, "app", e.Data["name"])
		assert.False(t, e.Timestamp.IsZero())
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not receive event")
	}
}

func TestPublishReachesAllHandlers(t *testing.T) {
	bus := NewBus()
	var calls atomic.Int64
	var wg sync.WaitGroup
	wg.Add(3)

	for i := 0; i < 3; i++ {
		bus.Subscribe(types.EventDeploymentCompleted, func(*types.Event) error {
			calls.Add(1)
			wg.Done()
			return nil
		})
	}

	bus.Publish(&types.Event{Kind: types.EventDeploymentCompleted, DeploymentID: "dep-1"})
	wg.Wait()

	assert.Equal(t, int64(3), calls.Load())
}

func TestHandlerErrorDoesNotStopOthers(t *testing.T) {
	bus := NewBus()
	received := make(chan struct{}, 1)

	bus.Subscribe(types.EventDeploymentFailed, func(*types.Event) error {
		return errors.New("handler broke")
	})
	bus.Subscribe(types.EventDeploymentFailed, func(*types.Event) error {
		received <- struct{}{}
		return nil
	})

	bus.Publish(&types.Event{Kind: types.EventDeploymentFailed})

	select {
	case <-received:
	case <-time.After(2 * time.Second):
		t.Fatal("second handler was not invoked")
	}
}

func TestHandlerPanicIsRecovered(t *testing.T) {
	bus := NewBus()
	received := make(chan struct{}, 1)

	bus.Subscribe(types.EventDeploymentStatusChanged, func(*types.Event) error {
		panic("boom")
	})
	bus.Subscribe(types.EventDeploymentStatusChanged, func(*types.Event) error {
		received <- struct{}{}
		return nil
	})

	require.NotPanics(t, func() {
		bus.Publish(&types.Event{Kind: types.EventDeploymentStatusChanged})
	})

	select {
	case <-received:
	case <-time.After(2 * time.Second):
		t.Fatal("surviving handler was not invoked")
	}
	bus.Drain()
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	bus := NewBus()
	var calls atomic.Int64

	id := bus.Subscribe(types.EventDeploymentLogsUpdate, func(*types.Event) error {
		calls.Add(1)
		return nil
	})
	require.Equal(t, 1, bus.HandlerCount(types.EventDeploymentLogsUpdate))

	bus.Unsubscribe(types.EventDeploymentLogsUpdate, id)
	assert.Equal(t, 0, bus.HandlerCount(types.EventDeploymentLogsUpdate))

	bus.Publish(&types.Event{Kind: types.EventDeploymentLogsUpdate})
	bus.Drain()

	assert.Equal(t, int64(0), calls.Load())
}

func TestKindsAreIsolated(t *testing.T) {
	bus := NewBus()
	var wrongKind atomic.Int64
	started := make(chan struct{}, 1)

	bus.Subscribe(types.EventDeploymentFailed, func(*types.Event) error {
		wrongKind.Add(1)
		return nil
	})
	bus.Subscribe(types.EventDeploymentStarted, func(*types.Event) error {
		started <- struct{}{}
		return nil
	})

	bus.Publish(&types.Event{Kind: types.EventDeploymentStarted})

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("subscribed kind was not delivered")
	}
	bus.Drain()
	assert.Equal(t, int64(0), wrongKind.Load())
}

func TestPublishOrderPreservedAcrossKinds(t *testing.T) {
	bus := NewBus()

	var mu sync.Mutex
	var seen []types.EventKind
	record := func(e *types.Event) error {
		mu.Lock()
		seen = append(seen, e.Kind)
		mu.Unlock()
		return nil
	}
	bus.Subscribe(types.EventDeploymentStarted, record)
	bus.Subscribe(types.EventDeploymentLogsUpdate, record)

	// A status transition is always published before its log append;
	// the subscriber must never see them swapped.
	var want []types.EventKind
	for i := 0; i < 50; i++ {
		bus.Publish(&types.Event{Kind: types.EventDeploymentStarted})
		bus.Publish(&types.Event{Kind: types.EventDeploymentLogsUpdate})
		want = append(want, types.EventDeploymentStarted, types.EventDeploymentLogsUpdate)
	}
	bus.Drain()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, want, seen)
}

func TestCloseDropsLaterPublishes(t *testing.T) {
	bus := NewBus()
	var calls atomic.Int64

	bus.Subscribe(types.EventDeploymentStarted, func(*types.Event) error {
		calls.Add(1)
		return nil
	})

	bus.Publish(&types.Event{Kind: types.EventDeploymentStarted})
	bus.Drain()
	bus.Close()

	require.NotPanics(t, func() {
		bus.Publish(&types.Event{Kind: types.EventDeploymentStarted})
	})
	bus.Drain()

	assert.Equal(t, int64(1), calls.Load())
}

func TestPublishWithoutSubscribersIsNoop(t *testing.T) {
	bus := NewBus()
	require.NotPanics(t, func() {
		bus.Publish(&types.Event{Kind: types.EventSystemBroadcast})
	})
}

func TestUnsubscribeUnknownIDIsNoop(t *testing.T) {
	bus := NewBus()
	require.NotPanics(t, func() {
		bus.Unsubscribe(types.EventDeploymentStarted, "no-such-id")
	})
}
