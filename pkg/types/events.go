package types

import (
	"time"
)

// EventKind identifies a domain event on the bus. The set is closed:
// the bridge maps every kind it forwards onto a WebSocket message type,
// and subscribers register per kind.
type EventKind string

const (
	// Deployment lifecycle events published by the orchestrator.
	EventDeploymentStarted       EventKind = "deployment.started"
	EventDeploymentCompleted     EventKind = "deployment.completed"
	EventDeploymentFailed        EventKind = "deployment.failed"
	EventDeploymentStatusChanged EventKind = "deployment.status_changed"
	EventDeploymentLogsUpdate    EventKind = "deployment.logs_update"
	EventDeploymentProgress      EventKind = "deployment.progress"
	EventDeploymentRetry         EventKind = "deployment.retry"

	// Session and auth events published by the WebSocket layer.
	EventAuthLoginSuccess           EventKind = "auth.login_success"
	EventAuthLogout                 EventKind = "auth.logout"
	EventAuthTokenRefresh           EventKind = "auth.token_refresh"
	EventSessionExpired             EventKind = "session.expired"
	EventSessionAuthRequired        EventKind = "session.auth_required"
	EventSessionPermissionChanged   EventKind = "session.permission_changed"
	EventSessionOrganizationChanged EventKind = "session.organization_changed"

	// Notification and UI push events.
	EventNotificationSystem     EventKind = "notification.system"
	EventNotificationUser       EventKind = "notification.user"
	EventNotificationDeployment EventKind = "notification.deployment"
	EventUINavigationRequest    EventKind = "ui.navigation_request"
	EventUIModalDisplay         EventKind = "ui.modal_display"
	EventUIToastDisplay         EventKind = "ui.toast_display"
	EventUIWorkflowStep         EventKind = "ui.workflow_step"

	// System-wide announcements.
	EventSystemMaintenance EventKind = "system.maintenance"
	EventSystemBroadcast   EventKind = "system.broadcast"
)

// Event is one domain event. DeploymentID, UserID and OrganizationID
// are set when the kind concerns them; Data carries kind-specific
// payload fields and ends up in the WebSocket envelope unchanged.
type Event struct {
	Kind           EventKind
	DeploymentID   string
	UserID         string
	OrganizationID string
	Data           map[string]any
	Timestamp      time.Time
}
