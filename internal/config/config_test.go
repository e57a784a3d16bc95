package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, Development, cfg.Environment)
	assert.Equal(t, "default", cfg.Tenant)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, BackendMemory, cfg.Nodes.Backend)
	assert.Equal(t, BackendMemory, cfg.Binaries.Backend)
	assert.Equal(t, BackendNone, cfg.Semantic.Backend)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "antbox.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
environment: production
tenant: acme
http:
  addr: ":9090"
nodes:
  backend: dynamo
  table: antbox-nodes
  region: eu-west-1
semantic:
  backend: sqlite
  databasePath: /var/lib/antbox/vectors.db
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, Production, cfg.Environment)
	assert.Equal(t, "acme", cfg.Tenant)
	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.Equal(t, BackendDynamo, cfg.Nodes.Backend)
	assert.Equal(t, "antbox-nodes", cfg.Nodes.Table)
	assert.Equal(t, BackendSQLite, cfg.Semantic.Backend)
	// Untouched settings keep their defaults.
	assert.Equal(t, BackendMemory, cfg.Binaries.Backend)
	assert.Equal(t, 15*time.Second, cfg.HTTP.ReadTimeout)
}

func TestLoad_EnvironmentWinsOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "antbox.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tenant: from-file\n"), 0o600))

	t.Setenv("ANTBOX_TENANT", "from-env")
	t.Setenv("ANTBOX_LOG_LEVEL", "debug")
	t.Setenv("ANTBOX_HTTP_READ_TIMEOUT_SECONDS", "60")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Tenant)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 60*time.Second, cfg.HTTP.ReadTimeout)
}

func TestLoad_MissingFileIsFine(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "default", cfg.Tenant)
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "antbox.yaml")
	require.NoError(t, os.WriteFile(path, []byte("nodes:\n  backend: cassandra\n"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "antbox.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tenant: before\n"), 0o600))

	initial, err := Load(path)
	require.NoError(t, err)

	watcher, err := NewWatcher(path, initial, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer watcher.Close()

	reloaded := make(chan *Config, 1)
	watcher.OnReload(func(cfg *Config) {
		select {
		case reloaded <- cfg:
		default:
		}
	})

	require.NoError(t, os.WriteFile(path, []byte("tenant: after\n"), 0o600))

	select {
	case cfg := <-reloaded:
		assert.Equal(t, "after", cfg.Tenant)
		assert.Equal(t, "after", watcher.Current().Tenant)
	case <-time.After(5 * time.Second):
		t.Fatal("configuration was not reloaded")
	}
}

func TestWatcher_KeepsPreviousConfigOnBadReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "antbox.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tenant: good\n"), 0o600))

	initial, err := Load(path)
	require.NoError(t, err)

	watcher, err := NewWatcher(path, initial, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer watcher.Close()

	require.NoError(t, os.WriteFile(path, []byte("nodes:\n  backend: cassandra\n"), 0o600))

	// Give the watcher a moment to observe and reject the write.
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, "good", watcher.Current().Tenant)
}
