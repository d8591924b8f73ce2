package ws

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/windflowlabs/windflow/pkg/events"
	"github.com/windflowlabs/windflow/pkg/log"
	"github.com/windflowlabs/windflow/pkg/types"
)

// kindToMsgType is the fixed mapping from bus event kinds to broadcast
// message types. All deployment lifecycle transitions collapse onto
// DEPLOYMENT_STATUS_CHANGED; retry events stay internal.
var kindToMsgType = map[types.EventKind]string{
	types.EventDeploymentStarted:       MsgDeploymentStatusChanged,
	types.EventDeploymentCompleted:     MsgDeploymentStatusChanged,
	types.EventDeploymentFailed:        MsgDeploymentStatusChanged,
	types.EventDeploymentStatusChanged: MsgDeploymentStatusChanged,
	types.EventDeploymentLogsUpdate:    MsgDeploymentLogsUpdate,
	types.EventDeploymentProgress:      MsgDeploymentProgress,

	types.EventAuthLoginSuccess:           MsgAuthLoginSuccess,
	types.EventAuthLogout:                 MsgAuthLogout,
	types.EventAuthTokenRefresh:           MsgAuthTokenRefresh,
	types.EventSessionExpired:             MsgSessionExpired,
	types.EventSessionAuthRequired:        MsgSessionAuthRequired,
	types.EventSessionPermissionChanged:   MsgSessionPermissionChanged,
	types.EventSessionOrganizationChanged: MsgSessionOrganizationChanged,

	types.EventNotificationSystem:     MsgNotificationSystem,
	types.EventNotificationUser:       MsgNotificationUser,
	types.EventNotificationDeployment: MsgNotificationDeployment,
	types.EventUINavigationRequest:    MsgUINavigationRequest,
	types.EventUIModalDisplay:         MsgUIModalDisplay,
	types.EventUIToastDisplay:         MsgUIToastDisplay,
	types.EventUIWorkflowStep:         MsgUIWorkflowStep,

	types.EventSystemMaintenance: MsgSystemMaintenance,
	types.EventSystemBroadcast:   MsgSystemBroadcast,
}

// SendTimeout bounds one socket write during bridge fan-out.
const SendTimeout = 5 * time.Second

// Bridge forwards bus events to WebSocket subscribers. One bus handler
// per mapped kind; Stop unsubscribes them all.
type Bridge struct {
	bus      *events.Bus
	registry *Registry
	subs     map[types.EventKind]string
	log      zerolog.Logger
}

// NewBridge wires a bus to a registry. Call Start to begin forwarding.
func NewBridge(bus *events.Bus, registry *Registry) *Bridge {
	return &Bridge{
		bus:      bus,
		registry: registry,
		subs:     make(map[types.EventKind]string),
		log:      log.WithComponent("ws-bridge"),
	}
}

// Start registers one bus handler per mapped event kind.
func (b *Bridge) Start() {
	for kind, msgType := range kindToMsgType {
		kind, msgType := kind, msgType
		b.subs[kind] = b.bus.Subscribe(kind, func(event *types.Event) error {
			b.forward(event, msgType)
			return nil
		})
	}
	b.log.Info().Int("kinds", len(b.subs)).Msg("event bridge started")
}

// Stop removes all bus subscriptions.
func (b *Bridge) Stop() {
	for kind, id := range b.subs {
		b.bus.Unsubscribe(kind, id)
		delete(b.subs, kind)
	}
}

func (b *Bridge) forward(event *types.Event, msgType string) {
	env := &Envelope{Type: msgType, Timestamp: event.Timestamp, Data: event.Data}
	if env.Timestamp.IsZero() {
		env.Timestamp = time.Now().UTC()
	}

	ctx, cancel := context.WithTimeout(context.Background(), SendTimeout)
	defer cancel()

	b.registry.BroadcastToEventSubscribers(ctx, msgType, env)

	// Log updates additionally reach per-deployment followers on both
	// endpoints.
	if event.Kind == types.EventDeploymentLogsUpdate && event.DeploymentID != "" {
		b.registry.BroadcastDeploymentLogToSubscribers(ctx, event.DeploymentID, env)
		b.registry.BroadcastToDeploymentConnections(ctx, event.DeploymentID, env)
	}
}
