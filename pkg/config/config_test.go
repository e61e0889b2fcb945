package config

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "deterministic", cfg.Engine.Design)
	assert.Equal(t, 30*time.Second, cfg.Engine.NodeTimeout)
	assert.Equal(t, "none", cfg.LLM.Provider)
	assert.Equal(t, "memory", cfg.Store.Type)
	assert.Equal(t, "autonoma:", cfg.Store.Redis.Prefix)
	assert.Equal(t, 2*time.Second, cfg.Telemetry.Interval)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "autonoma.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9090"
engine:
  design: conversational
  node_timeout: 5s
llm:
  provider: openai
  model: gpt-4o-mini
store:
  type: redis
  redis:
    addr: "redis:6379"
    ttl: 1h
`), 0o644))

	t.Setenv("AUTONOMA_LLM_API_KEY", "sk-test")
	t.Setenv("AUTONOMA_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "conversational", cfg.Engine.Design)
	assert.Equal(t, 5*time.Second, cfg.Engine.NodeTimeout)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "redis:6379", cfg.Store.Redis.Addr)
	assert.Equal(t, time.Hour, cfg.Store.Redis.TTL)
}

func TestLoad_Invalid(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	t.Setenv("AUTONOMA_ENGINE_DESIGN", "freestyle")
	t.Setenv("AUTONOMA_LLM_PROVIDER", "anthropic")
	_, err = Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "engine.design")
	assert.Contains(t, err.Error(), "llm.api_key")
}

func TestValidate_HTTPSchedulingNeedsURL(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	cfg.Scheduling.Mode = "http"
	assert.ErrorContains(t, cfg.Validate(), "scheduling.base_url")
}

func TestFileStoreKeys(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ".autonoma/runs", cfg.Store.File.Dir)

	active, fallback, err := cfg.Store.File.Keys()
	require.NoError(t, err)
	assert.Nil(t, active)
	assert.Nil(t, fallback)

	key := base64.StdEncoding.EncodeToString(make([]byte, 32))
	cfg.Store.Type = "file"
	cfg.Store.File.Key = key
	cfg.Store.File.FallbackKeys = []string{key}
	require.NoError(t, cfg.Validate())
	active, fallback, err = cfg.Store.File.Keys()
	require.NoError(t, err)
	assert.Len(t, active, 32)
	assert.Len(t, fallback, 1)

	cfg.Store.File.Key = base64.StdEncoding.EncodeToString([]byte("short"))
	assert.ErrorContains(t, cfg.Validate(), "store.file.key")
}
