package executor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/windflowlabs/windflow/pkg/types"
)

func TestLocalRunCapturesOutput(t *testing.T) {
	local := NewLocal()
	res, err := local.Run(context.Background(), "echo out && echo err 1>&2", 0, true)
	require.NoError(t, err)

	assert.Equal(t, 0, res.ExitStatus)
	assert.Equal(t, "out\n", res.Stdout)
	assert.Equal(t, "err\n", res.Stderr)
}

func TestLocalRunNonZeroExit(t *testing.T) {
	local := NewLocal()

	// Without requireSuccess the exit status is data, not an error.
	res, err := local.Run(context.Background(), "exit 3", 0, false)
	require.NoError(t, err)
	assert.Equal(t, 3, res.ExitStatus)

	// With requireSuccess it becomes an error carrying stderr.
	res, err = local.Run(context.Background(), "echo broken 1>&2; exit 3", 0, true)
	require.Error(t, err)
	assert.Equal(t, 3, res.ExitStatus)
	assert.Contains(t, err.Error(), "broken")
}

func TestLocalRunTimeout(t *testing.T) {
	local := NewLocal()
	start := time.Now()
	_, err := local.Run(context.Background(), "sleep 5", 100*time.Millisecond, false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestLocalRunRespectsCallerContext(t *testing.T) {
	local := NewLocal()
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	_, err := local.Run(ctx, "sleep 5", 10*time.Second, false)
	require.Error(t, err)
}

func TestLocalWriteFileCreatesParents(t *testing.T) {
	local := NewLocal()
	path := filepath.Join(t.TempDir(), "deploy", "app", "docker-compose.yml")

	err := local.WriteFile(context.Background(), path, []byte("services: {}\n"), 0o644)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "services: {}\n", string(data))
}

func TestQuote(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", "'plain'"},
		{"with space", "'with space'"},
		{"it's", `'it'\''s'`},
	}
	for _, tt := range tests {
		if got := Quote(tt.in); got != tt.want {
			t.Errorf("Quote(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestSudoWrapShape(t *testing.T) {
	got := sudoWrap("docker info", "deploy")
	assert.Equal(t, `sudo -S -p '' -u deploy sh -c 'docker info'`, got)
}

func TestIsLocal(t *testing.T) {
	assert.True(t, IsLocal(""))
	assert.True(t, IsLocal("localhost"))
	assert.True(t, IsLocal("127.0.0.1"))
	assert.True(t, IsLocal("LOCALHOST"))
	assert.False(t, IsLocal("10.0.0.5"))
	assert.False(t, IsLocal("db.example.com"))
}

func TestForTargetLocal(t *testing.T) {
	exec, err := ForTarget(&types.Target{ID: "t1", Host: "localhost"})
	require.NoError(t, err)
	assert.Equal(t, "local", exec.Describe())
}

func TestForTargetLocalCarriesSudo(t *testing.T) {
	exec, err := ForTarget(&types.Target{
		ID:   "t1",
		Host: "127.0.0.1",
		Credentials: &types.TargetCredentials{
			SudoUser:     "deploy",
			SudoPassword: "hunter2",
		},
	})
	require.NoError(t, err)

	local, ok := exec.(*Local)
	require.True(t, ok)
	assert.Equal(t, "deploy", local.SudoUser)
}

func TestForTargetRemoteRequiresCredentials(t *testing.T) {
	_, err := ForTarget(&types.Target{ID: "t2", Host: "203.0.113.9"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "credentials")
}
