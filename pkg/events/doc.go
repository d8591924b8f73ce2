/*
Package events provides the in-process event bus connecting the
deployment orchestrator to WebSocket fan-out and other observers.

The bus is a registry of typed handler functions keyed by event kind.
The kind set is closed (see pkg/types); subscribing to a kind the
system never publishes is legal and simply receives nothing.

# Delivery Semantics

  - Publish enqueues onto one central buffered channel; a single
    dispatcher goroutine invokes handlers, so every subscriber observes
    events in publish order, across kinds.
  - A handler error is logged and swallowed. A handler panic is
    recovered, logged and swallowed. Neither reaches the publisher or
    other handlers.
  - Publish returns without waiting for handlers. When the dispatcher
    falls a full queue behind, events are dropped with a warning rather
    than blocking the publisher.
  - Delivery is best-effort and in-process only. There is no retry and
    no persistence. Anything that must survive a restart goes in the
    store, not on the bus.

# Usage

	bus := events.NewBus()
	id := bus.Subscribe(types.EventDeploymentStatusChanged, func(e *types.Event) error {
		fmt.Println("deployment", e.DeploymentID, "changed")
		return nil
	})
	defer bus.Unsubscribe(types.EventDeploymentStatusChanged, id)

	bus.Publish(events.NewDeploymentEvent(
		types.EventDeploymentStatusChanged, deploymentID,
		map[string]any{"old_status": "PENDING", "new_status": "DEPLOYING"},
	))
*/
package events
