// Package client is the WebSocket client used by the CLI to follow
// deployment events and log streams from a running server.
package client

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/windflowlabs/windflow/pkg/ws"
)

// DefaultTimeout bounds the dial and handshake.
const DefaultTimeout = 15 * time.Second

// Client is one authenticated connection to the general WebSocket
// endpoint.
type Client struct {
	conn *websocket.Conn
}

// Dial connects to serverURL (http:// or ws:// base, e.g.
// "http://localhost:8080"), performs the auth handshake with token and
// waits for the welcome frame.
func Dial(ctx context.Context, serverURL, token string) (*Client, error) {
	endpoint, err := wsURL(serverURL, "/ws")
	if err != nil {
		return nil, err
	}

	dialCtx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	conn, _, err := websocket.Dial(dialCtx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", endpoint, err)
	}

	if err := wsjson.Write(dialCtx, conn, map[string]string{
		"type":  "auth",
		"token": token,
	}); err != nil {
		conn.Close(websocket.StatusInternalError, "auth write failed")
		return nil, fmt.Errorf("send auth frame: %w", err)
	}

	var welcome ws.Envelope
	if err := wsjson.Read(dialCtx, conn, &welcome); err != nil {
		conn.Close(websocket.StatusInternalError, "auth read failed")
		return nil, fmt.Errorf("read welcome frame: %w", err)
	}
	if welcome.Type != ws.MsgAuthLoginSuccess {
		conn.Close(websocket.StatusNormalClosure, "unexpected welcome")
		return nil, fmt.Errorf("expected %s, got %s", ws.MsgAuthLoginSuccess, welcome.Type)
	}

	return &Client{conn: conn}, nil
}

// Subscribe registers interest in a broadcast message type, e.g.
// DEPLOYMENT_STATUS_CHANGED. The confirmation arrives through Next.
func (c *Client) Subscribe(ctx context.Context, eventType string) error {
	return wsjson.Write(ctx, c.conn, map[string]string{
		"type":       "subscribe",
		"event_type": eventType,
	})
}

// SubscribeDeploymentLogs registers for one deployment's log stream.
func (c *Client) SubscribeDeploymentLogs(ctx context.Context, deploymentID string) error {
	return wsjson.Write(ctx, c.conn, map[string]string{
		"type":          "deployment_logs",
		"deployment_id": deploymentID,
	})
}

// Next blocks until the server sends the next frame.
func (c *Client) Next(ctx context.Context) (*ws.Envelope, error) {
	var env ws.Envelope
	if err := wsjson.Read(ctx, c.conn, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

// Ping sends the raw heartbeat frame. The pong arrives through Next.
func (c *Client) Ping(ctx context.Context) error {
	return c.conn.Write(ctx, websocket.MessageText, []byte("ping"))
}

// Close ends the session.
func (c *Client) Close() error {
	return c.conn.Close(websocket.StatusNormalClosure, "client closed")
}

// LogStream is a connection to one deployment's logs endpoint. The
// server pushes the current status first, then log updates as they
// happen.
type LogStream struct {
	conn *websocket.Conn
}

// DialLogs connects to /ws/deployments/{id}/logs with the token in the
// query string, as that endpoint expects.
func DialLogs(ctx context.Context, serverURL, deploymentID, token string) (*LogStream, error) {
	endpoint, err := wsURL(serverURL, "/ws/deployments/"+deploymentID+"/logs")
	if err != nil {
		return nil, err
	}
	endpoint += "?token=" + url.QueryEscape(token)

	dialCtx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	conn, _, err := websocket.Dial(dialCtx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("dial logs endpoint: %w", err)
	}
	return &LogStream{conn: conn}, nil
}

// Next blocks until the next status or log frame.
func (s *LogStream) Next(ctx context.Context) (*ws.Envelope, error) {
	var env ws.Envelope
	if err := wsjson.Read(ctx, s.conn, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

// Close ends the stream.
func (s *LogStream) Close() error {
	return s.conn.Close(websocket.StatusNormalClosure, "client closed")
}

// wsURL rewrites an http(s) base URL to its ws(s) equivalent and
// appends path.
func wsURL(serverURL, path string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + path
	return u.String(), nil
}
