package ws

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"nhooyr.io/websocket"
)

// handleDeploymentLogs serves the logs-only endpoint. The token rides
// the query string because browser WebSocket clients cannot set
// headers; authorization requires the deployment to share the user's
// organization unless the user is a superuser.
func (h *Handler) handleDeploymentLogs(w http.ResponseWriter, r *http.Request) {
	deploymentID := chi.URLParam(r, "id")
	token := r.URL.Query().Get("token")

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.log.Debug().Err(err).Msg("websocket accept failed")
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "session ended")

	user, err := h.verifier.Verify(token)
	if err != nil {
		conn.Close(websocket.StatusPolicyViolation, "authentication failed")
		return
	}

	deployment, err := h.store.GetDeployment(deploymentID)
	if err != nil || !h.authorized(user, deployment) {
		conn.Close(websocket.StatusPolicyViolation, "not authorized")
		return
	}

	sock := &wsSocket{conn: conn}
	h.registry.AddDeploymentConnection(deploymentID, sock)
	defer h.registry.RemoveDeploymentConnection(deploymentID, sock)

	initial := NewEnvelope(MsgStatus, map[string]any{
		"status":        string(deployment.Status),
		"deployment_id": deployment.ID,
		"name":          deployment.Name,
	})
	if err := sock.Send(r.Context(), initial); err != nil {
		return
	}

	h.log.Info().
		Str("user_id", user.ID).
		Str("deployment_id", deploymentID).
		Msg("log stream attached")

	// Heartbeat loop. Log frames arrive through the bridge.
	for {
		_, data, err := conn.Read(r.Context())
		if err != nil {
			return
		}
		if string(data) == "ping" {
			sock.Send(r.Context(), NewEnvelope(MsgPong, nil))
		}
	}
}
