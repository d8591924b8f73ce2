package ws

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/windflowlabs/windflow/pkg/events"
	"github.com/windflowlabs/windflow/pkg/types"
)

func TestBridgeForwardsStatusEvents(t *testing.T) {
	bus := events.NewBus()
	registry := NewRegistry()
	bridge := NewBridge(bus, registry)
	bridge.Start()
	defer bridge.Stop()

	sock := &fakeSocket{}
	registry.AddConnection("u1", sock)
	registry.Subscribe("u1", MsgDeploymentStatusChanged)

	bus.Publish(events.NewDeploymentEvent(types.EventDeploymentStarted, "dep-1", map[string]any{
		"deployment_id": "dep-1",
		"status":        "deploying",
	}))
	bus.Drain()

	got := sock.received()
	require.Len(t, got, 1)
	assert.Equal(t, MsgDeploymentStatusChanged, got[0].Type)
	assert.Equal(t, "dep-1", got[0].Data["deployment_id"])
	assert.False(t, got[0].Timestamp.IsZero())
}

func TestBridgeCollapsesLifecycleKinds(t *testing.T) {
	bus := events.NewBus()
	registry := NewRegistry()
	bridge := NewBridge(bus, registry)
	bridge.Start()
	defer bridge.Stop()

	sock := &fakeSocket{}
	registry.AddConnection("u1", sock)
	registry.Subscribe("u1", MsgDeploymentStatusChanged)

	for _, kind := range []types.EventKind{
		types.EventDeploymentStarted,
		types.EventDeploymentCompleted,
		types.EventDeploymentFailed,
		types.EventDeploymentStatusChanged,
	} {
		bus.Publish(events.NewDeploymentEvent(kind, "dep-1", nil))
	}
	bus.Drain()

	got := sock.received()
	require.Len(t, got, 4)
	for _, env := range got {
		assert.Equal(t, MsgDeploymentStatusChanged, env.Type)
	}
}

func TestBridgeFansOutLogUpdates(t *testing.T) {
	bus := events.NewBus()
	registry := NewRegistry()
	bridge := NewBridge(bus, registry)
	bridge.Start()
	defer bridge.Stop()

	subscriber := &fakeSocket{}
	follower := &fakeSocket{}
	logsConn := &fakeSocket{}
	registry.AddConnection("u1", subscriber)
	registry.Subscribe("u1", MsgDeploymentLogsUpdate)
	registry.AddConnection("u2", follower)
	registry.SubscribeDeployment("u2", "dep-1")
	registry.AddDeploymentConnection("dep-1", logsConn)

	bus.Publish(events.NewDeploymentEvent(types.EventDeploymentLogsUpdate, "dep-1", map[string]any{
		"logs":   "[INFO] Starting deployment",
		"append": true,
	}))
	bus.Drain()

	require.Len(t, subscriber.received(), 1)
	require.Len(t, follower.received(), 1)
	require.Len(t, logsConn.received(), 1)
	assert.Equal(t, MsgDeploymentLogsUpdate, logsConn.received()[0].Type)
}

func TestBridgeIgnoresRetryEvents(t *testing.T) {
	bus := events.NewBus()
	registry := NewRegistry()
	bridge := NewBridge(bus, registry)
	bridge.Start()
	defer bridge.Stop()

	sock := &fakeSocket{}
	registry.AddConnection("u1", sock)
	for kind := range kindToMsgType {
		registry.Subscribe("u1", kindToMsgType[kind])
	}

	bus.Publish(events.NewDeploymentEvent(types.EventDeploymentRetry, "dep-1", nil))
	bus.Drain()

	assert.Empty(t, sock.received(), "retry events stay internal")
}

func TestBridgeStopRemovesSubscriptions(t *testing.T) {
	bus := events.NewBus()
	registry := NewRegistry()
	bridge := NewBridge(bus, registry)
	bridge.Start()

	sock := &fakeSocket{}
	registry.AddConnection("u1", sock)
	registry.Subscribe("u1", MsgSystemBroadcast)

	bridge.Stop()
	assert.Equal(t, 0, bus.HandlerCount(types.EventSystemBroadcast))

	bus.Publish(&types.Event{Kind: types.EventSystemBroadcast})
	bus.Drain()
	assert.Empty(t, sock.received())
}
