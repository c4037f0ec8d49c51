package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetupRenamesCoreKeys(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	logger := Setup("escrowd", "test", Options{Output: &buf})
	logger.Info("started", slog.String("token", "abc"), slog.String("component", "rpc"))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "started", line["message"])
	require.Equal(t, "INFO", line["severity"])
	require.Equal(t, "escrowd", line["service"])
	require.Equal(t, "test", line["env"])
	require.Equal(t, RedactedValue, line["token"])
	require.Equal(t, "rpc", line["component"])
	require.Contains(t, line, "timestamp")
}

func TestSetupWritesRotatedFile(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	path := filepath.Join(t.TempDir(), "escrowd.log")
	var buf bytes.Buffer
	logger := Setup("escrowd", "", Options{Output: &buf, File: path})
	logger.Warn("queue full")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "queue full")
	require.Equal(t, buf.String(), string(data))
}

func TestRedact(t *testing.T) {
	require.Equal(t, RedactedValue, Redact(slog.String("Authorization", "Bearer x")).Value.String())
	require.Equal(t, "", Redact(slog.String("secret", "")).Value.String())
	require.Equal(t, "alice", Redact(slog.String("caller", "alice")).Value.String())
	require.Equal(t, int64(3), Redact(slog.Int("token", 3)).Value.Int64())
	require.Contains(t, SensitiveKeys(), "jwt")
}
