package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/windflowlabs/windflow/pkg/log"
	"github.com/windflowlabs/windflow/pkg/storage"
	"github.com/windflowlabs/windflow/pkg/types"
)

// AuthTimeout is how long a fresh socket has to present its auth frame.
const AuthTimeout = 30 * time.Second

// wsSocket adapts one nhooyr connection to the registry's Socket. The
// mutex serializes writes; nhooyr allows only one concurrent writer.
type wsSocket struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *wsSocket) Send(ctx context.Context, env *Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return wsjson.Write(ctx, s.conn, env)
}

// session is one authenticated general-endpoint connection.
type session struct {
	user *types.User
	sock *wsSocket
}

// messageHandler processes one dispatched client frame. A nil reply
// with nil error acknowledges with message_received.
type messageHandler func(sess *session, msg *clientMessage) (*Envelope, error)

func (h *Handler) messageHandlers() map[string]messageHandler {
	return map[string]messageHandler{
		"auth":            h.handleReauth,
		"subscribe":       h.handleSubscribe,
		"unsubscribe":     h.handleUnsubscribe,
		"deployment_logs": h.handleDeploymentLogsSubscribe,
	}
}

// handleSession serves the general endpoint: auth handshake, registry
// registration, then the dispatch loop until the peer goes away.
func (h *Handler) handleSession(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.log.Debug().Err(err).Msg("websocket accept failed")
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "session ended")

	user, err := h.authenticate(r.Context(), conn)
	if err != nil {
		h.log.Debug().Err(err).Msg("websocket auth failed")
		conn.Close(websocket.StatusPolicyViolation, "authentication failed")
		return
	}

	sock := &wsSocket{conn: conn}
	h.registry.AddConnection(user.ID, sock)
	defer func() {
		h.registry.RemoveConnection(user.ID, sock)
		h.bus.Publish(&types.Event{
			Kind:           types.EventAuthLogout,
			UserID:         user.ID,
			OrganizationID: user.OrganizationID,
			Data:           map[string]any{"user_id": user.ID},
		})
	}()

	welcome := NewEnvelope(MsgAuthLoginSuccess, map[string]any{
		"user_id":         user.ID,
		"organization_id": user.OrganizationID,
	})
	if err := sock.Send(r.Context(), welcome); err != nil {
		return
	}
	h.bus.Publish(&types.Event{
		Kind:           types.EventAuthLoginSuccess,
		UserID:         user.ID,
		OrganizationID: user.OrganizationID,
		Data:           map[string]any{"user_id": user.ID},
	})

	ulog := log.WithUser(user.ID)
	ulog.Info().Msg("websocket session established")
	h.sessionLoop(r.Context(), &session{user: user, sock: sock})
}

// authenticate waits for the first frame, which must be a JSON auth
// message carrying a valid token.
func (h *Handler) authenticate(ctx context.Context, conn *websocket.Conn) (*types.User, error) {
	authCtx, cancel := context.WithTimeout(ctx, AuthTimeout)
	defer cancel()

	_, data, err := conn.Read(authCtx)
	if err != nil {
		return nil, fmt.Errorf("read auth frame: %w", err)
	}
	var msg clientMessage
	if err := json.Unmarshal(data, &msg); err != nil || msg.Type != "auth" || msg.Token == "" {
		return nil, errors.New("first frame must be an auth message")
	}
	user, err := h.verifier.Verify(msg.Token)
	if err != nil {
		return nil, fmt.Errorf("verify token: %w", err)
	}
	return user, nil
}

func (h *Handler) sessionLoop(ctx context.Context, sess *session) {
	handlers := h.messageHandlers()
	ulog := log.WithUser(sess.user.ID)
	for {
		_, data, err := sess.sock.conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == -1 && ctx.Err() == nil {
				ulog.Debug().Err(err).Msg("websocket read error")
			}
			return
		}

		if string(data) == "ping" {
			sess.sock.Send(ctx, NewEnvelope(MsgPong, nil))
			continue
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil || msg.Type == "" {
			sess.sock.Send(ctx, NewEnvelope(MsgTextReceived, map[string]any{
				"text": string(data),
			}))
			continue
		}

		handler, known := handlers[msg.Type]
		if !known {
			sess.sock.Send(ctx, NewEnvelope(MsgError, map[string]any{
				"message": fmt.Sprintf("unknown message type %q", msg.Type),
			}))
			continue
		}
		reply, err := handler(sess, &msg)
		switch {
		case err != nil:
			sess.sock.Send(ctx, NewEnvelope(MsgError, map[string]any{
				"message": err.Error(),
			}))
		case reply != nil:
			sess.sock.Send(ctx, reply)
		default:
			sess.sock.Send(ctx, NewEnvelope(MsgMessageReceived, map[string]any{
				"message_type": msg.Type,
			}))
		}
	}
}

// handleReauth acknowledges auth frames sent after the handshake.
func (h *Handler) handleReauth(sess *session, msg *clientMessage) (*Envelope, error) {
	return nil, nil
}

func (h *Handler) handleSubscribe(sess *session, msg *clientMessage) (*Envelope, error) {
	if msg.EventType == "" {
		return nil, errors.New("subscribe requires event_type")
	}
	h.registry.Subscribe(sess.user.ID, msg.EventType)
	return NewEnvelope(MsgSubscribed, map[string]any{"event_type": msg.EventType}), nil
}

func (h *Handler) handleUnsubscribe(sess *session, msg *clientMessage) (*Envelope, error) {
	if msg.EventType == "" {
		return nil, errors.New("unsubscribe requires event_type")
	}
	h.registry.Unsubscribe(sess.user.ID, msg.EventType)
	return NewEnvelope(MsgUnsubscribed, map[string]any{"event_type": msg.EventType}), nil
}

func (h *Handler) handleDeploymentLogsSubscribe(sess *session, msg *clientMessage) (*Envelope, error) {
	if msg.DeploymentID == "" {
		return nil, errors.New("deployment_logs requires deployment_id")
	}
	d, err := h.store.GetDeployment(msg.DeploymentID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("deployment %s not found", msg.DeploymentID)
		}
		return nil, err
	}
	if !h.authorized(sess.user, d) {
		return nil, errors.New("not authorized for this deployment")
	}
	h.registry.SubscribeDeployment(sess.user.ID, msg.DeploymentID)
	return NewEnvelope(MsgLogsSubscribed, map[string]any{"deployment_id": msg.DeploymentID}), nil
}

// authorized gates deployment access: same organization or superuser.
func (h *Handler) authorized(user *types.User, d *types.Deployment) bool {
	return user.IsSuperuser || d.OrganizationID == user.OrganizationID
}
