package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "0.0.0.0:8000", cfg.Address())
	assert.Equal(t, 180*time.Second, cfg.Inspector.RequestTimeout)
	assert.False(t, cfg.Inspector.AllowPrivateNetworks)
	assert.Contains(t, cfg.Server.AllowOrigins, "http://localhost:3000")
	assert.Contains(t, cfg.Server.AllowOrigins, "http://localhost:3001")
	assert.NoError(t, cfg.Validate())
}

func TestLoadEmptyPath(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := writeFile(t, "inspector.yaml", `
server:
  port: 9090
  allow_origins: ["https://inspector.example.com"]
inspector:
  request_timeout: 30s
  allow_private_networks: true
log:
  format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host, "unset keys keep their defaults")
	assert.Equal(t, []string{"https://inspector.example.com"}, cfg.Server.AllowOrigins)
	assert.Equal(t, 30*time.Second, cfg.Inspector.RequestTimeout)
	assert.True(t, cfg.Inspector.AllowPrivateNetworks)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")

	_, err = Load(writeFile(t, "bad.yaml", "server: [1, 2"))
	assert.ErrorContains(t, err, "failed to parse config file")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"port too large", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"negative shutdown", func(c *Config) { c.Server.ShutdownTimeout = -time.Second }, "server.shutdown_timeout"},
		{"zero timeout", func(c *Config) { c.Inspector.RequestTimeout = 0 }, "inspector.request_timeout"},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"bad origin", func(c *Config) { c.Server.AllowOrigins = []string{"localhost:3000"} }, "server.allow_origins"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.errMsg)
		})
	}

	cfg := Default()
	cfg.Server.AllowOrigins = []string{"*"}
	assert.NoError(t, cfg.Validate())
}

func TestValidateJoinsErrors(t *testing.T) {
	cfg := Default()
	cfg.Server.Port = -1
	cfg.Log.Format = "xml"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port")
	assert.Contains(t, err.Error(), "log.format")
}

func TestLoadDotEnv(t *testing.T) {
	path := writeFile(t, ".env", "INSPECTOR_TEST_DOTENV=from-file\nINSPECTOR_TEST_PRESET=from-file\n")
	t.Setenv("INSPECTOR_TEST_PRESET", "from-env")

	require.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "absent.env"), path))
	t.Cleanup(func() { os.Unsetenv("INSPECTOR_TEST_DOTENV") })

	assert.Equal(t, "from-file", os.Getenv("INSPECTOR_TEST_DOTENV"))
	assert.Equal(t, "from-env", os.Getenv("INSPECTOR_TEST_PRESET"), "existing variables win")
}
