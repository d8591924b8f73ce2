package scanner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/windflowlabs/windflow/pkg/executor"
	"github.com/windflowlabs/windflow/pkg/storage"
	"github.com/windflowlabs/windflow/pkg/types"
)

func newTestStore(t *testing.T) storage.Store {
	t.Helper()
	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestScanTargetPersistsCapabilities(t *testing.T) {
	store := newTestStore(t)
	target := &types.Target{
		ID:     "tgt-1",
		Name:   "node-1",
		Host:   "node-1.internal",
		Status: types.TargetStatusNew,
	}
	require.NoError(t, store.CreateTarget(target))

	fake := newFakeExecutor(linuxDockerResponses())
	svc := NewScanService(store).WithExecutorFactory(func(*types.Target) (executor.CommandExecutor, error) {
		return fake, nil
	})

	result, err := svc.ScanTarget(context.Background(), "tgt-1")
	require.NoError(t, err)
	assert.True(t, result.Success)

	stored, err := store.GetTarget("tgt-1")
	require.NoError(t, err)
	assert.Equal(t, types.TargetStatusReady, stored.Status)
	assert.True(t, stored.ScanSuccess)
	require.NotNil(t, stored.ScanDate)
	assert.WithinDuration(t, time.Now(), *stored.ScanDate, time.Minute)
	require.NotNil(t, stored.PlatformInfo)
	assert.Equal(t, "x86_64", stored.PlatformInfo.Architecture)
	require.NotNil(t, stored.Capabilities)
	require.NotNil(t, stored.Capabilities.Docker)
	assert.True(t, stored.Capabilities.Docker.Running)

	// The target had no explicit type: the active swarm determines it.
	assert.Equal(t, types.TargetTypeDockerSwarm, stored.Type)
}

func TestScanTargetKeepsExplicitType(t *testing.T) {
	store := newTestStore(t)
	target := &types.Target{
		ID:   "tgt-1",
		Host: "node-1.internal",
		Type: types.TargetTypeDockerCompose,
	}
	require.NoError(t, store.CreateTarget(target))

	fake := newFakeExecutor(linuxDockerResponses())
	svc := NewScanService(store).WithExecutorFactory(func(*types.Target) (executor.CommandExecutor, error) {
		return fake, nil
	})

	_, err := svc.ScanTarget(context.Background(), "tgt-1")
	require.NoError(t, err)

	stored, err := store.GetTarget("tgt-1")
	require.NoError(t, err)
	assert.Equal(t, types.TargetTypeDockerCompose, stored.Type)
}

func TestScanTargetFailedProbesMarkUnreachable(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.CreateTarget(&types.Target{ID: "tgt-1", Host: "node-1.internal"}))

	fake := newFakeExecutor(nil)
	fake.failWith = errors.New("ssh: handshake failed")
	svc := NewScanService(store).WithExecutorFactory(func(*types.Target) (executor.CommandExecutor, error) {
		return fake, nil
	})

	result, err := svc.ScanTarget(context.Background(), "tgt-1")
	require.NoError(t, err)
	assert.False(t, result.Success)

	stored, err := store.GetTarget("tgt-1")
	require.NoError(t, err)
	assert.Equal(t, types.TargetStatusUnreachable, stored.Status)
	assert.False(t, stored.ScanSuccess)
}

func TestScanTargetExecutorConstructionFailure(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.CreateTarget(&types.Target{ID: "tgt-1", Host: "node-1.internal"}))

	svc := NewScanService(store).WithExecutorFactory(func(*types.Target) (executor.CommandExecutor, error) {
		return nil, errors.New("remote execution requires credentials")
	})

	_, err := svc.ScanTarget(context.Background(), "tgt-1")
	require.Error(t, err)

	stored, err := store.GetTarget("tgt-1")
	require.NoError(t, err)
	assert.Equal(t, types.TargetStatusUnreachable, stored.Status)
}

func TestScanTargetUnknownTarget(t *testing.T) {
	store := newTestStore(t)
	svc := NewScanService(store)

	_, err := svc.ScanTarget(context.Background(), "missing")
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}
