package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := New(&buf, "debug", "json")
	log.Debug("token issued", "user_id", 7)

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "token issued", record["msg"])
	assert.Equal(t, "DEBUG", record["level"])
	assert.EqualValues(t, 7, record["user_id"])
}

func TestNew_LevelFilter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := New(&buf, "warn", "text")
	log.Info("hidden")
	log.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestNew_UnknownLevelDefaultsToInfo(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := New(&buf, "loud", "pretty")
	log.Debug("hidden")
	log.Info("refresh rotated", "user_id", 3)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "refresh rotated")
	assert.Contains(t, out, "user_id")
}

func TestPrettyHandler_AttrsAndGroups(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := New(&buf, "info", "pretty").With("component", "auth").WithGroup("req")
	log.Info("login", "ip", "10.0.0.1")

	out := buf.String()
	assert.Contains(t, out, "component")
	assert.Contains(t, out, "req.ip")
	assert.Contains(t, out, "10.0.0.1")
}

func TestNew_RedactsCredentials(t *testing.T) {
	t.Parallel()

	for _, format := range []string{"json", "text", "pretty"} {
		t.Run(format, func(t *testing.T) {
			var buf bytes.Buffer
			log := New(&buf, "info", format)
			log.Info("login failed", "username", "ada", "password", "hunter2", "Refresh_Token", "abc.def")

			out := buf.String()
			assert.NotContains(t, out, "hunter2")
			assert.NotContains(t, out, "abc.def")
			assert.Contains(t, out, redacted)
			assert.Contains(t, out, "ada")
		})
	}
}

func TestPrettyHandler_BoundAttrsKeepTheirGroup(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := New(&buf, "info", "pretty").
		With("component", "tokens").
		WithGroup("session").
		With("user_id", 9)
	log.Info("rotated", slog.Group("device", slog.String("id", "d-1")))

	out := buf.String()
	assert.Contains(t, out, "component")
	assert.NotContains(t, out, "session.component")
	assert.Contains(t, out, "session.user_id")
	assert.Contains(t, out, "session.device.id")
	assert.Contains(t, out, "d-1")
}
