package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAgentConfig(t *testing.T) {
	path := writeFile(t, "agent.yml", `
config:
  user_id: "u1"
  data_dir: "/var/lib/opay"
  db_backend: "leveldb"
  listen_addr: ":8080"
  verifier_url: "https://verifier.example.com"
  upstream_url: "https://app.example.com"
  token_path: "/var/lib/opay/token"
  cache_version: "offline-pay-v2"
  shell_assets:
    - "/"
    - "/index.html"
`)

	cfg, err := LoadAgentConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "u1", cfg.UserID)
	assert.Equal(t, "/var/lib/opay", cfg.DataDir)
	assert.Equal(t, "leveldb", cfg.DBBackend)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "https://verifier.example.com", cfg.VerifierURL)
	assert.Equal(t, "offline-pay-v2", cfg.CacheVersion)
	assert.Equal(t, []string{"/", "/index.html"}, cfg.ShellAssets)
	// unset fields still get defaults
	assert.Equal(t, "/api/", cfg.APIPrefix)
	assert.Equal(t, "/index.html", cfg.ShellEntry)
}

func TestLoadAgentConfigDefaults(t *testing.T) {
	path := writeFile(t, "agent.yml", `
config:
  user_id: "u1"
  verifier_url: "https://verifier.example.com"
`)

	cfg, err := LoadAgentConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "./data", cfg.DataDir)
	assert.Equal(t, "bolt", cfg.DBBackend)
	assert.Equal(t, ":7070", cfg.ListenAddr)
	assert.Equal(t, "offline-pay-v1", cfg.CacheVersion)
	assert.NotEmpty(t, cfg.ShellAssets)
}

func TestLoadAgentConfigMissingFile(t *testing.T) {
	_, err := LoadAgentConfig(filepath.Join(t.TempDir(), "nope.yml"))
	require.Error(t, err)
}

func TestLoadSyncConfig(t *testing.T) {
	path := writeFile(t, "tuning.ini", `
[sync]
interval_seconds = 30
probe_interval_seconds = 5

[cache]
fetch_timeout_seconds = 3
`)

	syncCfg, err := LoadSyncConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 30, syncCfg.IntervalSeconds)
	assert.Equal(t, 5, syncCfg.ProbeIntervalSeconds)
	// untouched keys keep their defaults
	assert.Equal(t, 15, syncCfg.RequestTimeoutSeconds)

	cacheCfg, err := LoadCacheConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cacheCfg.FetchTimeoutSeconds)
}

func TestDefaultTuning(t *testing.T) {
	syncCfg := DefaultSyncConfig()
	assert.Equal(t, 60, syncCfg.IntervalSeconds)
	assert.Equal(t, 15, syncCfg.RequestTimeoutSeconds)
	assert.Equal(t, 20, syncCfg.ProbeIntervalSeconds)
	assert.Equal(t, 10, DefaultCacheConfig().FetchTimeoutSeconds)
}
