package integration

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/windflowlabs/windflow/pkg/client"
	"github.com/windflowlabs/windflow/pkg/executor"
	"github.com/windflowlabs/windflow/pkg/storage"
	"github.com/windflowlabs/windflow/pkg/types"
	"github.com/windflowlabs/windflow/pkg/ws"
	"github.com/windflowlabs/windflow/test/framework"
)

// readUntilStatus pulls frames off the client until a status-changed
// frame announcing want arrives, returning every frame seen on the way.
func readUntilStatus(t *testing.T, ctx context.Context, c *client.Client, want string) []*ws.Envelope {
	t.Helper()
	var seen []*ws.Envelope
	for {
		env, err := c.Next(ctx)
		require.NoError(t, err, "stream ended before status %s", want)
		seen = append(seen, env)
		if env.Type == ws.MsgDeploymentStatusChanged && env.Data["new_status"] == want {
			return seen
		}
	}
}

func TestDeploymentLifecycleOverWebSocket(t *testing.T) {
	h := framework.New(t)
	stackID, targetID := h.SeedNginxStack(t)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	c, err := client.Dial(ctx, h.Server.URL, h.Token)
	require.NoError(t, err)
	defer c.Close()
	for _, eventType := range []string{ws.MsgDeploymentStatusChanged, ws.MsgDeploymentLogsUpdate} {
		require.NoError(t, c.Subscribe(ctx, eventType))
		env, err := c.Next(ctx)
		require.NoError(t, err)
		require.Equal(t, ws.MsgSubscribed, env.Type)
	}

	d := h.CreateDeployment(t, stackID, targetID, "web", nil)
	frames := readUntilStatus(t, ctx, c, string(types.StatusRunning))

	// The DEPLOYING transition is broadcast before RUNNING.
	var statuses []string
	sawLogs := false
	for _, env := range frames {
		switch env.Type {
		case ws.MsgDeploymentStatusChanged:
			statuses = append(statuses, fmt.Sprintf("%v", env.Data["new_status"]))
		case ws.MsgDeploymentLogsUpdate:
			sawLogs = true
		}
	}
	assert.Equal(t, []string{"DEPLOYING", "RUNNING"}, statuses)
	assert.True(t, sawLogs, "expected at least one logs frame")

	h.WaitForIdle(t)
	wantRun := fmt.Sprintf(
		"docker run -d --name windflow-%s --restart unless-stopped -p 8080:80 nginx:1.25",
		d.ID[:8])
	assert.Contains(t, h.Exec.Commands(), wantRun)

	row := h.WaitForStatus(t, d.ID, types.StatusRunning)
	assert.Contains(t, row.Logs, "[SUCCESS] Deployment completed successfully")
	assert.NotNil(t, row.DeployedAt)
}

func TestDeploymentRetryThenRecover(t *testing.T) {
	h := framework.New(t)
	stackID, targetID := h.SeedNginxStack(t)

	var failures int
	h.Exec.Respond(func(command string) *executor.Result {
		if strings.HasPrefix(command, "docker run") && failures == 0 {
			failures++
			return &executor.Result{ExitStatus: 1, Stderr: "docker: connection refused"}
		}
		return &executor.Result{ExitStatus: 0}
	})

	d := h.CreateDeployment(t, stackID, targetID, "flaky", nil)
	row := h.WaitForStatus(t, d.ID, types.StatusRunning)
	h.WaitForIdle(t)

	assert.Equal(t, 1, row.TaskRetryCount)
	assert.Equal(t, []time.Duration{60 * time.Second}, h.Sleeps())
	assert.Contains(t, row.Logs, "[ERROR] docker: connection refused")
	assert.Contains(t, row.Logs, "[SUCCESS] Deployment completed successfully")
}

func TestDeploymentLogsEndpointStream(t *testing.T) {
	h := framework.New(t)
	stackID, targetID := h.SeedNginxStack(t)

	d := h.CreateDeployment(t, stackID, targetID, "web", nil)
	h.WaitForStatus(t, d.ID, types.StatusRunning)
	h.WaitForIdle(t)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	stream, err := client.DialLogs(ctx, h.Server.URL, d.ID, h.Token)
	require.NoError(t, err)
	defer stream.Close()

	env, err := stream.Next(ctx)
	require.NoError(t, err)
	require.Equal(t, ws.MsgStatus, env.Type)
	assert.Equal(t, "RUNNING", env.Data["status"])
	assert.Equal(t, "web", env.Data["name"])

	require.NoError(t, h.Orch.UpdateStatus(ctx, d.ID, types.StatusRunning,
		"", "[INFO] Health check passed", h.UserID))

	for {
		env, err = stream.Next(ctx)
		require.NoError(t, err)
		if env.Type != ws.MsgDeploymentLogsUpdate {
			continue
		}
		assert.Contains(t, fmt.Sprintf("%v", env.Data["logs"]), "Health check passed")
		break
	}
}

func TestDeleteRemovesContainerAndRow(t *testing.T) {
	h := framework.New(t)
	stackID, targetID := h.SeedNginxStack(t)

	d := h.CreateDeployment(t, stackID, targetID, "web", nil)
	h.WaitForStatus(t, d.ID, types.StatusRunning)
	h.WaitForIdle(t)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	require.NoError(t, h.Orch.Delete(ctx, d.ID, h.UserID))

	assert.Contains(t, h.Exec.Commands(), "docker rm -f -v windflow-"+d.ID[:8])
	_, err := h.Store.GetDeployment(d.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
