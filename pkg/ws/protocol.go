package ws

import (
	"context"
	"time"
)

// Server-to-client message types. Broadcast kinds are upper snake case;
// direct session replies are lower case. The set is closed: clients
// switch on these values.
const (
	MsgAuthLoginSuccess           = "AUTH_LOGIN_SUCCESS"
	MsgAuthLogout                 = "AUTH_LOGOUT"
	MsgAuthTokenRefresh           = "AUTH_TOKEN_REFRESH"
	MsgSessionExpired             = "SESSION_EXPIRED"
	MsgSessionAuthRequired        = "SESSION_AUTH_REQUIRED"
	MsgSessionPermissionChanged   = "SESSION_PERMISSION_CHANGED"
	MsgSessionOrganizationChanged = "SESSION_ORGANIZATION_CHANGED"
	MsgNotificationSystem         = "NOTIFICATION_SYSTEM"
	MsgNotificationUser           = "NOTIFICATION_USER"
	MsgNotificationDeployment     = "NOTIFICATION_DEPLOYMENT"
	MsgUINavigationRequest        = "UI_NAVIGATION_REQUEST"
	MsgUIModalDisplay             = "UI_MODAL_DISPLAY"
	MsgUIToastDisplay             = "UI_TOAST_DISPLAY"
	MsgUIWorkflowStep             = "UI_WORKFLOW_STEP"
	MsgDeploymentStatusChanged    = "DEPLOYMENT_STATUS_CHANGED"
	MsgDeploymentLogsUpdate       = "DEPLOYMENT_LOGS_UPDATE"
	MsgDeploymentProgress         = "DEPLOYMENT_PROGRESS"
	MsgSystemMaintenance          = "SYSTEM_MAINTENANCE"
	MsgSystemBroadcast            = "SYSTEM_BROADCAST"

	MsgPong            = "pong"
	MsgError           = "error"
	MsgSubscribed      = "subscribed"
	MsgUnsubscribed    = "unsubscribed"
	MsgLogsSubscribed  = "logs_subscribed"
	MsgMessageReceived = "message_received"
	MsgTextReceived    = "text_received"
	MsgStatus          = "status"
)

// Envelope is the server-to-client frame.
type Envelope struct {
	Type      string         `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// NewEnvelope builds a frame stamped with the current time.
func NewEnvelope(msgType string, data map[string]any) *Envelope {
	return &Envelope{Type: msgType, Timestamp: time.Now().UTC(), Data: data}
}

// clientMessage is the union of all client-to-server JSON frames.
type clientMessage struct {
	Type         string `json:"type"`
	Token        string `json:"token,omitempty"`
	EventType    string `json:"event_type,omitempty"`
	DeploymentID string `json:"deployment_id,omitempty"`
}

// Socket is one live client connection as the registry sees it. A send
// error means the socket is dead and gets it evicted from every index.
type Socket interface {
	Send(ctx context.Context, env *Envelope) error
}
