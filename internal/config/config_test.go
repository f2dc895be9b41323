package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syntrixbase/pager/internal/index"
	storage "github.com/syntrixbase/pager/internal/storage/config"
)

func writeConfig(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, storage.BackendRedis, cfg.Storage.Backend)
	assert.Equal(t, "localhost:6379", cfg.Storage.Redis.Addr)
	assert.Equal(t, "auto", cfg.Pager.Strategy)
	assert.Equal(t, "decoded", cfg.Pager.Mode)
	assert.Equal(t, 20, cfg.Pager.DefaultPageSize)
	assert.Equal(t, "account_id:{account_id}:org_id:{org_id}:bigorg", cfg.Namespaces[DefaultNamespace])
	assert.Equal(t, 8080, cfg.Server.HTTPPort)
	assert.True(t, cfg.Logging.Console.Enabled)
	assert.False(t, cfg.Logging.File.Enabled)
	assert.Equal(t, DefaultIndexRefreshInterval, cfg.Index.RefreshInterval)
}

func TestLoad_Files(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "config.yml", `
storage:
  backend: memory
  timeout: 2s
  redis:
    scan_count: 200
pager:
  strategy: remote
  mode: raw
namespaces:
  users: "user:{user_id}:profile"
index:
  enabled: true
  refresh_interval: 5m
  definitions:
    users:
      - field: name
        sortable: true
      - field: email
server:
  http_port: 7070
logging:
  level: debug
`)
	writeConfig(t, dir, "config.local.yml", `
pager:
  strategy: bulk
`)

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, storage.BackendMemory, cfg.Storage.Backend)
	assert.Equal(t, 2*time.Second, cfg.Storage.Timeout)
	assert.Equal(t, int64(200), cfg.Storage.Redis.ScanCount)
	assert.Equal(t, 500, cfg.Storage.Redis.MGetChunk)
	assert.Equal(t, "bulk", cfg.Pager.Strategy)
	assert.Equal(t, "raw", cfg.Pager.Mode)
	assert.Equal(t, NamespacesConfig{"users": "user:{user_id}:profile"}, cfg.Namespaces)
	assert.True(t, cfg.Index.Enabled)
	assert.Equal(t, 5*time.Minute, cfg.Index.RefreshInterval)
	assert.Equal(t, []index.Definition{{Field: "name", Sortable: true}, {Field: "email"}}, cfg.Index.Definitions["users"])
	assert.Equal(t, 7070, cfg.Server.HTTPPort)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "debug", cfg.Logging.Console.Level)
	assert.Equal(t, filepath.Join(filepath.Dir(dir), "logs"), cfg.Logging.Dir)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PAGER_REDIS_ADDR", "redis.env:6379")
	t.Setenv("PAGER_MONGO_URI", "mongodb://env:27017")
	t.Setenv("PAGER_STRATEGY", "index")
	t.Setenv("PAGER_LOG_LEVEL", "WARN")
	t.Setenv("PAGER_INDEX_REFRESH_INTERVAL", "10s")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "redis.env:6379", cfg.Storage.Redis.Addr)
	assert.Equal(t, "mongodb://env:27017", cfg.Storage.Mongo.URI)
	assert.Equal(t, "index", cfg.Pager.Strategy)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "warn", cfg.Logging.File.Level)
	assert.Equal(t, 10*time.Second, cfg.Index.RefreshInterval)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"malformed yaml", "pager: [valid"},
		{"unknown backend", "storage:\n  backend: cassandra\n"},
		{"unknown strategy", "pager:\n  strategy: fastest\n"},
		{"unknown mode", "pager:\n  mode: binary\n"},
		{"bad template", "namespaces:\n  broken: \"user:{id\"\n"},
		{"index for unknown namespace", "index:\n  definitions:\n    ghosts:\n      - field: name\n"},
		{"index without field", "index:\n  definitions:\n    accounts:\n      - sortable: true\n"},
		{"negative refresh interval", "index:\n  refresh_interval: -1s\n"},
		{"bad log level", "logging:\n  level: loud\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeConfig(t, dir, "config.yml", tt.content)
			_, err := Load(dir)
			assert.Error(t, err)
		})
	}
}

func TestLoad_UnreadableFile(t *testing.T) {
	dir := t.TempDir()
	// a directory where the file is expected
	require.NoError(t, os.Mkdir(filepath.Join(dir, "config.yml"), 0755))
	_, err := Load(dir)
	assert.Error(t, err)
}

func TestNamespacesConfig_Compile(t *testing.T) {
	c := DefaultNamespacesConfig()
	compiled, err := c.Compile()
	require.NoError(t, err)
	require.Contains(t, compiled, DefaultNamespace)
	assert.Equal(t, []string{"account_id", "org_id"}, compiled[DefaultNamespace].Components())

	_, err = NamespacesConfig{"": "a:{b}"}.Compile()
	assert.Error(t, err)
}

type recordingConfig struct {
	calls       []string
	configDir   string
	validateErr error
}

func (r *recordingConfig) ApplyDefaults() { r.calls = append(r.calls, "defaults") }
func (r *recordingConfig) ApplyEnvOverrides() { r.calls = append(r.calls, "env") }
func (r *recordingConfig) ResolvePaths(d string) {
	r.calls = append(r.calls, "paths")
	r.configDir = d
}
func (r *recordingConfig) Validate() error {
	r.calls = append(r.calls, "validate")
	return r.validateErr
}

func TestApplyServiceConfigs(t *testing.T) {
	first := &recordingConfig{}
	second := &recordingConfig{validateErr: assert.AnError}
	third := &recordingConfig{}

	err := ApplyServiceConfigs("cfg", first, second, third)
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, []string{"defaults", "env", "paths", "validate"}, first.calls)
	assert.Equal(t, "cfg", first.configDir)
	assert.Len(t, second.calls, 4)
	assert.Empty(t, third.calls)
}
