// Package ws is the real-time layer: authenticated WebSocket sessions,
// the connection registry mapping users and deployments to live
// sockets, and the bridge forwarding bus events to subscribers.
package ws
