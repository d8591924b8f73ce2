package log

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	Init(Config{Level: DebugLevel, JSONOutput: true, Output: buf})
	return buf
}

func lastLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestWithComponentAddsField(t *testing.T) {
	buf := capture(t)
	logger := WithComponent("orchestrator")
	logger.Info().Msg("hello")

	entry := lastLine(t, buf)
	assert.Equal(t, "orchestrator", entry["component"])
	assert.Equal(t, "hello", entry["message"])
}

func TestContextHelpersAddFields(t *testing.T) {
	buf := capture(t)
	dlog := WithDeployment("dep-1")
	dlog.Warn().Msg("retrying")
	assert.Equal(t, "dep-1", lastLine(t, buf)["deployment_id"])

	buf = capture(t)
	tlog := WithTarget("target-1")
	tlog.Info().Msg("scanned")
	assert.Equal(t, "target-1", lastLine(t, buf)["target_id"])

	buf = capture(t)
	ulog := WithUser("user-1")
	ulog.Debug().Msg("connected")
	assert.Equal(t, "user-1", lastLine(t, buf)["user_id"])
}
