// Package framework assembles an in-process WindFlow stack for
// integration tests: real store, bus, registry, orchestrator and HTTP
// server, with only the command executor faked.
package framework

import (
	"context"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/windflowlabs/windflow/pkg/api"
	"github.com/windflowlabs/windflow/pkg/auth"
	"github.com/windflowlabs/windflow/pkg/events"
	"github.com/windflowlabs/windflow/pkg/executor"
	"github.com/windflowlabs/windflow/pkg/orchestrator"
	"github.com/windflowlabs/windflow/pkg/storage"
	"github.com/windflowlabs/windflow/pkg/types"
	"github.com/windflowlabs/windflow/pkg/ws"
)

// Harness is one running WindFlow instance. Everything is real except
// Exec, which scripts command results instead of reaching Docker.
type Harness struct {
	Store    *storage.BoltStore
	Bus      *events.Bus
	Registry *ws.Registry
	Orch     *orchestrator.Orchestrator
	Exec     *ScriptedExecutor
	Server   *httptest.Server

	// Token authenticates as the seeded admin user.
	Token  string
	UserID string
	OrgID  string

	sleepMu sync.Mutex
	sleeps  []time.Duration
}

// New builds and starts a harness. Retry sleeps return immediately so
// backoff paths run at test speed; the requested durations are
// recorded and available through Sleeps.
func New(t *testing.T) *Harness {
	t.Helper()

	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	h := &Harness{
		Store:    store,
		Bus:      events.NewBus(),
		Registry: ws.NewRegistry(),
		Exec:     &ScriptedExecutor{},
		UserID:   "user-1",
		OrgID:    "org-1",
	}

	bridge := ws.NewBridge(h.Bus, h.Registry)
	bridge.Start()
	t.Cleanup(bridge.Stop)

	h.Orch = orchestrator.New(orchestrator.Config{
		Store:   store,
		Bus:     h.Bus,
		WorkDir: t.TempDir(),
		ExecutorFactory: func(target *types.Target) (executor.CommandExecutor, error) {
			return h.Exec, nil
		},
		Sleep: func(ctx context.Context, d time.Duration) error {
			h.sleepMu.Lock()
			h.sleeps = append(h.sleeps, d)
			h.sleepMu.Unlock()
			return ctx.Err()
		},
	})

	user := &types.User{
		ID:             h.UserID,
		Email:          "admin@example.com",
		Username:       "admin",
		OrganizationID: h.OrgID,
		IsActive:       true,
		IsSuperuser:    true,
	}
	require.NoError(t, store.CreateUser(user))

	secret := []byte("integration-test-secret")
	h.Token, err = auth.SignToken(secret, user, time.Hour)
	require.NoError(t, err)

	srv := api.NewServer(api.Config{
		Store:    store,
		Bus:      h.Bus,
		Registry: h.Registry,
		Verifier: auth.NewJWTVerifier(secret, store),
		Version:  "integration-test",
	})
	h.Server = httptest.NewServer(srv.Handler())
	t.Cleanup(h.Server.Close)

	return h
}

// Sleeps returns the retry delays the orchestrator asked for.
func (h *Harness) Sleeps() []time.Duration {
	h.sleepMu.Lock()
	defer h.sleepMu.Unlock()
	return append([]time.Duration(nil), h.sleeps...)
}

// SeedNginxStack stores a minimal single-container stack plus a Docker
// target and returns their IDs.
func (h *Harness) SeedNginxStack(t *testing.T) (stackID, targetID string) {
	t.Helper()
	require.NoError(t, h.Store.CreateStack(&types.Stack{
		ID:         "stack-nginx",
		Name:       "nginx",
		Version:    "1.0.0",
		TargetType: types.TargetTypeDocker,
		Template: map[string]any{
			"image": "nginx:1.25",
			"ports": []any{"{{port}}:80"},
		},
		Variables: []types.VariableDef{
			{Name: "port", Type: types.VariableTypeInteger, Default: 8080},
		},
	}))
	require.NoError(t, h.Store.CreateTarget(&types.Target{
		ID:   "target-docker",
		Name: "docker-host",
		Host: "node-1.internal",
		Type: types.TargetTypeDocker,
	}))
	return "stack-nginx", "target-docker"
}

// CreateDeployment runs the full create path under the seeded admin.
func (h *Harness) CreateDeployment(t *testing.T, stackID, targetID, name string, values map[string]any) *types.Deployment {
	t.Helper()
	d, err := h.Orch.Create(context.Background(), orchestrator.CreateRequest{
		StackID:        stackID,
		TargetID:       targetID,
		OrganizationID: h.OrgID,
		Name:           name,
		Values:         values,
		UserID:         h.UserID,
	})
	require.NoError(t, err)
	return d
}
