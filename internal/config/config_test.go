package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "canopy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	c, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, "info", c.Log.Level)
	assert.Equal(t, BackendFile, c.Session.Backend)
	assert.Equal(t, 30*time.Second, c.Session.LockTTL)
	assert.Equal(t, ":8080", c.Serve.Addr)
	assert.True(t, c.Serve.Metrics)
}

func TestLoad_FileThenEnvThenFlags(t *testing.T) {
	path := writeConfig(t, `
log:
  level: debug
session:
  backend: redis
  redis:
    addr: cache:6379
    ttl: 1h
serve:
  addr: ":9000"
`)

	c, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "debug", c.Log.Level)
	assert.Equal(t, BackendRedis, c.Session.Backend)
	assert.Equal(t, "cache:6379", c.Session.Redis.Addr)
	assert.Equal(t, time.Hour, c.Session.Redis.TTL)
	assert.Equal(t, ":9000", c.Serve.Addr)

	t.Setenv("CANOPY_SERVE_ADDR", ":9100")
	c, err = Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, ":9100", c.Serve.Addr)

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("addr", ":8080", "")
	flags.String("log-level", "info", "")
	require.NoError(t, flags.Set("addr", ":9200"))

	c, err = Load(path, flags)
	require.NoError(t, err)
	assert.Equal(t, ":9200", c.Serve.Addr)
	// An unset flag does not shadow the file.
	assert.Equal(t, "debug", c.Log.Level)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("Missing Explicit File", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil)
		assert.Error(t, err)
	})

	t.Run("Unknown Backend", func(t *testing.T) {
		_, err := Load(writeConfig(t, "session:\n  backend: etcd\n"), nil)
		assert.ErrorContains(t, err, "etcd")
	})

	t.Run("Bad Log Level", func(t *testing.T) {
		_, err := Load(writeConfig(t, "log:\n  level: loud\n"), nil)
		assert.Error(t, err)
	})
}
