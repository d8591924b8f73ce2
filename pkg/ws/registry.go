package ws

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/windflowlabs/windflow/pkg/log"
)

// Registry tracks live sockets and their subscriptions. All four
// indices live under one mutex; broadcasts snapshot their recipients
// under the lock and send outside it, so a slow client never blocks
// registration.
type Registry struct {
	mu sync.Mutex

	// userConns maps a user to their open general-endpoint sockets.
	userConns map[string]map[Socket]struct{}
	// userSubs maps a user to the broadcast message types they follow.
	userSubs map[string]map[string]struct{}
	// deploymentSubs maps a deployment to users following its logs
	// through the general endpoint.
	deploymentSubs map[string]map[string]struct{}
	// deploymentConns maps a deployment to logs-endpoint sockets.
	deploymentConns map[string]map[Socket]struct{}

	log zerolog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		userConns:       make(map[string]map[Socket]struct{}),
		userSubs:        make(map[string]map[string]struct{}),
		deploymentSubs:  make(map[string]map[string]struct{}),
		deploymentConns: make(map[string]map[Socket]struct{}),
		log:             log.WithComponent("ws-registry"),
	}
}

// AddConnection registers a general-endpoint socket for a user.
func (r *Registry) AddConnection(userID string, s Socket) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.userConns[userID] == nil {
		r.userConns[userID] = make(map[Socket]struct{})
	}
	r.userConns[userID][s] = struct{}{}
}

// RemoveConnection removes a socket from every index, dropping entries
// that become empty. The user's subscriptions survive as long as they
// have other sockets open.
func (r *Registry) RemoveConnection(userID string, s Socket) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeSocketLocked(userID, s)
}

func (r *Registry) removeSocketLocked(userID string, s Socket) {
	if conns := r.userConns[userID]; conns != nil {
		delete(conns, s)
		if len(conns) == 0 {
			delete(r.userConns, userID)
			delete(r.userSubs, userID)
			for id, users := range r.deploymentSubs {
				delete(users, userID)
				if len(users) == 0 {
					delete(r.deploymentSubs, id)
				}
			}
		}
	}
	for id, conns := range r.deploymentConns {
		delete(conns, s)
		if len(conns) == 0 {
			delete(r.deploymentConns, id)
		}
	}
}

// Subscribe adds a broadcast message type to a user's subscriptions.
func (r *Registry) Subscribe(userID, msgType string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.userSubs[userID] == nil {
		r.userSubs[userID] = make(map[string]struct{})
	}
	r.userSubs[userID][msgType] = struct{}{}
}

// Unsubscribe removes a broadcast message type from a user's
// subscriptions. Unknown entries are ignored.
func (r *Registry) Unsubscribe(userID, msgType string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if subs := r.userSubs[userID]; subs != nil {
		delete(subs, msgType)
		if len(subs) == 0 {
			delete(r.userSubs, userID)
		}
	}
}

// SubscribeDeployment subscribes a user to one deployment's log stream
// over the general endpoint.
func (r *Registry) SubscribeDeployment(userID, deploymentID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deploymentSubs[deploymentID] == nil {
		r.deploymentSubs[deploymentID] = make(map[string]struct{})
	}
	r.deploymentSubs[deploymentID][userID] = struct{}{}
}

// AddDeploymentConnection registers a logs-endpoint socket.
func (r *Registry) AddDeploymentConnection(deploymentID string, s Socket) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deploymentConns[deploymentID] == nil {
		r.deploymentConns[deploymentID] = make(map[Socket]struct{})
	}
	r.deploymentConns[deploymentID][s] = struct{}{}
}

// RemoveDeploymentConnection unregisters a logs-endpoint socket.
func (r *Registry) RemoveDeploymentConnection(deploymentID string, s Socket) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if conns := r.deploymentConns[deploymentID]; conns != nil {
		delete(conns, s)
		if len(conns) == 0 {
			delete(r.deploymentConns, deploymentID)
		}
	}
}

// ConnectionCount reports open general-endpoint sockets.
func (r *Registry) ConnectionCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, conns := range r.userConns {
		n += len(conns)
	}
	return n
}

// target pairs a socket with the user it belongs to, so eviction after
// a failed send can clean the user indices.
type target struct {
	userID string
	sock   Socket
}

// BroadcastToUser sends env to every socket of one user.
func (r *Registry) BroadcastToUser(ctx context.Context, userID string, env *Envelope) {
	r.mu.Lock()
	targets := make([]target, 0, len(r.userConns[userID]))
	for s := range r.userConns[userID] {
		targets = append(targets, target{userID, s})
	}
	r.mu.Unlock()
	r.send(ctx, targets, env)
}

// BroadcastToEventSubscribers sends env to every socket of every user
// subscribed to its message type. Each socket receives at most one
// copy per call.
func (r *Registry) BroadcastToEventSubscribers(ctx context.Context, msgType string, env *Envelope) {
	r.mu.Lock()
	var targets []target
	seen := make(map[Socket]struct{})
	for userID, subs := range r.userSubs {
		if _, ok := subs[msgType]; !ok {
			continue
		}
		for s := range r.userConns[userID] {
			if _, dup := seen[s]; dup {
				continue
			}
			seen[s] = struct{}{}
			targets = append(targets, target{userID, s})
		}
	}
	r.mu.Unlock()
	r.send(ctx, targets, env)
}

// BroadcastDeploymentLogToSubscribers sends env to the sockets of every
// user subscribed to one deployment's log stream.
func (r *Registry) BroadcastDeploymentLogToSubscribers(ctx context.Context, deploymentID string, env *Envelope) {
	r.mu.Lock()
	var targets []target
	for userID := range r.deploymentSubs[deploymentID] {
		for s := range r.userConns[userID] {
			targets = append(targets, target{userID, s})
		}
	}
	r.mu.Unlock()
	r.send(ctx, targets, env)
}

// BroadcastToDeploymentConnections sends env to the logs-endpoint
// sockets of one deployment.
func (r *Registry) BroadcastToDeploymentConnections(ctx context.Context, deploymentID string, env *Envelope) {
	r.mu.Lock()
	targets := make([]target, 0, len(r.deploymentConns[deploymentID]))
	for s := range r.deploymentConns[deploymentID] {
		targets = append(targets, target{"", s})
	}
	r.mu.Unlock()
	r.send(ctx, targets, env)
}

// send delivers outside the lock, then evicts every socket whose send
// failed in one locked pass.
func (r *Registry) send(ctx context.Context, targets []target, env *Envelope) {
	var dead []target
	for _, t := range targets {
		if err := t.sock.Send(ctx, env); err != nil {
			r.log.Debug().Err(err).Str("type", env.Type).Msg("evicting dead socket")
			dead = append(dead, t)
		}
	}
	if len(dead) == 0 {
		return
	}
	r.mu.Lock()
	for _, t := range dead {
		r.removeSocketLocked(t.userID, t.sock)
	}
	r.mu.Unlock()
}
