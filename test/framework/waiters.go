package framework

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/windflowlabs/windflow/pkg/types"
)

// WaitForStatus blocks until the deployment reaches want and returns
// the row as it was then.
func (h *Harness) WaitForStatus(t *testing.T, id string, want types.DeploymentStatus) *types.Deployment {
	t.Helper()
	var got *types.Deployment
	require.Eventually(t, func() bool {
		d, err := h.Store.GetDeployment(id)
		if err != nil {
			return false
		}
		got = d
		return d.Status == want
	}, 10*time.Second, 10*time.Millisecond, "deployment never reached %s", want)
	return got
}

// WaitForIdle blocks until no deployment workers are running.
func (h *Harness) WaitForIdle(t *testing.T) {
	t.Helper()
	require.Eventually(t, func() bool {
		return h.Orch.ActiveTaskCount() == 0
	}, 10*time.Second, 10*time.Millisecond, "workers still active")
}
