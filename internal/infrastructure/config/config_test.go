package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8787", cfg.Addr)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.OTel.Enabled)
	assert.Equal(t, "localhost:4317", cfg.OTel.Endpoint)
	assert.Contains(t, cfg.DatabaseURL, "agentflow.db")
	assert.Regexp(t, `^file:`, cfg.DatabaseURL)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("AGENTFLOW_ADDR", ":9000")
	t.Setenv("AGENTFLOW_DATABASE_URL", "libsql://db.example.turso.io")
	t.Setenv("AGENTFLOW_AUTH_TOKEN", "secret")
	t.Setenv("AGENTFLOW_SHUTDOWN_TIMEOUT", "3s")
	t.Setenv("AGENTFLOW_LOG_LEVEL", "debug")
	t.Setenv("AGENTFLOW_OTEL_ENABLED", "true")
	t.Setenv("AGENTFLOW_OTEL_ENDPOINT", "collector:4317")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Addr)
	assert.Equal(t, "libsql://db.example.turso.io", cfg.DatabaseURL)
	assert.Equal(t, "secret", cfg.AuthToken)
	assert.Equal(t, 3*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, slog.LevelDebug, cfg.Level())
	assert.True(t, cfg.OTel.Enabled)
	assert.Equal(t, "collector:4317", cfg.OTel.Endpoint)
}

func TestLoad_FileOverlaysEnvironment(t *testing.T) {
	t.Setenv("AGENTFLOW_ADDR", ":9000")
	t.Setenv("AGENTFLOW_AUTH_TOKEN", "from-env")
	t.Setenv("AGENTFLOW_DATABASE_URL", "file:/tmp/env.db")

	path := filepath.Join(t.TempDir(), "agentflow.yaml")
	content := `
addr: ":7000"
shutdown_timeout: 2s
server_url: http://localhost:7000
otel:
  enabled: true
  endpoint: otel:4317
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.Addr)
	assert.Equal(t, "from-env", cfg.AuthToken)
	assert.Equal(t, 2*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "http://localhost:7000", cfg.ServerURL)
	assert.True(t, cfg.OTel.Enabled)
	assert.Equal(t, "otel:4317", cfg.OTel.Endpoint)
	assert.True(t, cfg.OTel.Insecure)
}

func TestLoad_Errors(t *testing.T) {
	t.Setenv("AGENTFLOW_DATABASE_URL", "file:/tmp/env.db")

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("addr: [unclosed"), 0o644))
	_, err = Load(bad)
	assert.Error(t, err)

	t.Setenv("AGENTFLOW_LOG_LEVEL", "loud")
	_, err = Load("")
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"trace", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
