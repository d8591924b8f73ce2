package storage

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/windflowlabs/windflow/pkg/security"
	"github.com/windflowlabs/windflow/pkg/types"
)

func newTestStore(t *testing.T) *BoltStore {
	t.Helper()
	store, err := NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestDeploymentCRUD(t *testing.T) {
	store := newTestStore(t)

	d := &types.Deployment{
		ID:             "dep-1",
		StackID:        "stack-1",
		TargetID:       "target-1",
		OrganizationID: "org-1",
		Name:           "app-xyz",
		Status:         types.StatusPending,
		Config:         map[string]any{"image": "nginx:1.25"},
		Variables:      map[string]any{"port": float64(8080)},
		CreatedAt:      time.Now().UTC(),
	}
	require.NoError(t, store.CreateDeployment(d))

	got, err := store.GetDeployment("dep-1")
	require.NoError(t, err)
	assert.Equal(t, "app-xyz", got.Name)
	assert.Equal(t, types.StatusPending, got.Status)
	assert.Equal(t, "nginx:1.25", got.Config["image"])

	got.Status = types.StatusRunning
	require.NoError(t, store.UpdateDeployment(got))
	got, err = store.GetDeployment("dep-1")
	require.NoError(t, err)
	assert.Equal(t, types.StatusRunning, got.Status)
	assert.False(t, got.UpdatedAt.IsZero())

	require.NoError(t, store.DeleteDeployment("dep-1"))
	_, err = store.GetDeployment("dep-1")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestGetDeploymentByNameScopedToOrg(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.CreateDeployment(&types.Deployment{
		ID: "dep-1", OrganizationID: "org-1", Name: "app",
	}))
	require.NoError(t, store.CreateDeployment(&types.Deployment{
		ID: "dep-2", OrganizationID: "org-2", Name: "app",
	}))

	got, err := store.GetDeploymentByName("org-2", "app")
	require.NoError(t, err)
	assert.Equal(t, "dep-2", got.ID)

	_, err = store.GetDeploymentByName("org-3", "app")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestListDeploymentsByStatus(t *testing.T) {
	store := newTestStore(t)

	for i, status := range []types.DeploymentStatus{
		types.StatusPending, types.StatusDeploying, types.StatusPending,
	} {
		require.NoError(t, store.CreateDeployment(&types.Deployment{
			ID:     string(rune('a' + i)),
			Status: status,
		}))
	}

	pending, err := store.ListDeploymentsByStatus(types.StatusPending)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	running, err := store.ListDeploymentsByStatus(types.StatusRunning)
	require.NoError(t, err)
	assert.Empty(t, running)
}

func TestListStaleDeployments(t *testing.T) {
	store := newTestStore(t)
	now := time.Now().UTC()

	require.NoError(t, store.CreateDeployment(&types.Deployment{
		ID: "old-deploying", Status: types.StatusDeploying, CreatedAt: now.Add(-5 * time.Minute),
	}))
	require.NoError(t, store.CreateDeployment(&types.Deployment{
		ID: "old-pending", Status: types.StatusPending, CreatedAt: now.Add(-90 * time.Minute),
	}))
	require.NoError(t, store.CreateDeployment(&types.Deployment{
		ID: "fresh", Status: types.StatusPending, CreatedAt: now,
	}))
	require.NoError(t, store.CreateDeployment(&types.Deployment{
		ID: "old-running", Status: types.StatusRunning, CreatedAt: now.Add(-90 * time.Minute),
	}))

	stale, err := store.ListStaleDeployments(
		[]types.DeploymentStatus{types.StatusPending, types.StatusDeploying},
		now.Add(-2*time.Minute),
	)
	require.NoError(t, err)

	ids := make([]string, 0, len(stale))
	for _, d := range stale {
		ids = append(ids, d.ID)
	}
	assert.ElementsMatch(t, []string{"old-deploying", "old-pending"}, ids)
}

func TestStackCRUD(t *testing.T) {
	store := newTestStore(t)

	stack := &types.Stack{
		ID:         "stack-1",
		Name:       "postgres",
		TargetType: types.TargetTypeDocker,
		Template:   map[string]any{"image": "postgres:16"},
		Variables: []types.VariableDef{
			{Name: "port", Type: types.VariableTypeInteger, Default: 5432},
		},
	}
	require.NoError(t, store.CreateStack(stack))

	got, err := store.GetStack("stack-1")
	require.NoError(t, err)
	assert.Equal(t, "postgres", got.Name)
	require.Len(t, got.Variables, 1)
	assert.Equal(t, "port", got.Variables[0].Name)

	all, err := store.ListStacks()
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, store.DeleteStack("stack-1"))
	_, err = store.GetStack("stack-1")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestTargetCapabilitiesUpdate(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.CreateTarget(&types.Target{
		ID:     "target-1",
		Host:   "10.0.0.5",
		Status: types.TargetStatusNew,
	}))

	scanDate := time.Now().UTC()
	scan := &types.ScanResult{
		Host:     "10.0.0.5",
		Platform: &types.PlatformInfo{Architecture: "x86_64", Cores: 8},
		OS:       &types.OSInfo{System: "Linux", Distribution: "Ubuntu"},
		Docker:   &types.DockerCapabilities{Installed: true, Running: true},
	}
	require.NoError(t, store.UpdateTargetCapabilities("target-1", scan, scanDate, true))

	got, err := store.GetTarget("target-1")
	require.NoError(t, err)
	assert.Equal(t, types.TargetStatusReady, got.Status)
	assert.True(t, got.ScanSuccess)
	require.NotNil(t, got.PlatformInfo)
	assert.Equal(t, "x86_64", got.PlatformInfo.Architecture)
	require.NotNil(t, got.Capabilities)
	assert.True(t, got.Capabilities.Docker.Installed)

	require.NoError(t, store.UpdateTargetCapabilities("target-1", &types.ScanResult{}, scanDate, false))
	got, err = store.GetTarget("target-1")
	require.NoError(t, err)
	assert.Equal(t, types.TargetStatusUnreachable, got.Status)
	assert.False(t, got.ScanSuccess)
}

func TestSetTargetScanStatus(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.CreateTarget(&types.Target{ID: "target-1", Status: types.TargetStatusNew}))
	require.NoError(t, store.SetTargetScanStatus("target-1", types.TargetStatusScanning))

	got, err := store.GetTarget("target-1")
	require.NoError(t, err)
	assert.Equal(t, types.TargetStatusScanning, got.Status)

	err = store.SetTargetScanStatus("missing", types.TargetStatusScanning)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestTargetCredentialsEncryptedAtRest(t *testing.T) {
	dir := t.TempDir()
	store, err := NewBoltStore(dir)
	require.NoError(t, err)
	defer store.Close()

	sm, err := security.NewSecretsManagerFromPassword("store-key")
	require.NoError(t, err)
	store.SetSecretsManager(sm)

	target := &types.Target{
		ID:   "target-1",
		Host: "10.0.0.5",
		Credentials: &types.TargetCredentials{
			Username:     "deploy",
			Password:     "hunter2",
			SudoPassword: "hunter3",
		},
	}
	require.NoError(t, store.CreateTarget(target))

	// The caller's copy keeps plaintext for immediate use.
	assert.Equal(t, "hunter2", target.Credentials.Password)

	got, err := store.GetTarget("target-1")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", got.Credentials.Password)
	assert.Equal(t, "hunter3", got.Credentials.SudoPassword)

	// Reopening without the key exposes only ciphertext.
	require.NoError(t, store.Close())
	raw, err := NewBoltStore(dir)
	require.NoError(t, err)
	defer raw.Close()

	stored, err := raw.GetTarget("target-1")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter2", stored.Credentials.Password)
	assert.NotEmpty(t, stored.Credentials.Password)
}

func TestUserLookups(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.CreateUser(&types.User{
		ID: "u1", Email: "admin@example.com", Username: "admin",
		OrganizationID: "org-1", IsActive: true, IsSuperuser: true,
	}))
	require.NoError(t, store.CreateUser(&types.User{
		ID: "u2", Email: "dev@example.com", Username: "dev",
		OrganizationID: "org-1", IsActive: true,
	}))
	require.NoError(t, store.CreateUser(&types.User{
		ID: "u3", Email: "former@example.com", Username: "former",
		IsSuperuser: true,
	}))

	byEmail, err := store.GetUserByEmail("dev@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u2", byEmail.ID)

	byName, err := store.GetUserByUsername("admin")
	require.NoError(t, err)
	assert.Equal(t, "u1", byName.ID)

	// u3 is a superuser but inactive.
	super, err := store.GetFirstActiveSuperuser()
	require.NoError(t, err)
	assert.Equal(t, "u1", super.ID)

	_, err = store.GetUserByEmail("nobody@example.com")
	assert.True(t, errors.Is(err, ErrNotFound))
}
