// Package auth validates the bearer tokens presented on WebSocket
// handshakes and resolves them to store users.
package auth
