package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kerani.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoader_MissingFileYieldsDefaults(t *testing.T) {
	loader := NewLoader(filepath.Join(t.TempDir(), "absent.json"))

	cfg, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoader_LoadOverridesDefaults(t *testing.T) {
	path := writeConfigFile(t, `{
		"logging": {"level": "debug", "console": false},
		"sessions": {"archive_capacity": 25, "read_timeout_ms": 1500, "shell": "/bin/zsh"}
	}`)
	loader := NewLoader(path)

	cfg, err := loader.Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Console)
	assert.Equal(t, 25, cfg.Sessions.ArchiveCapacity)
	assert.Equal(t, 1500, cfg.Sessions.ReadTimeoutMs)
	assert.Equal(t, "/bin/zsh", cfg.Sessions.Shell)

	// Untouched fields keep their defaults.
	assert.Equal(t, 30000, cfg.Sessions.StartTimeoutMs)
	assert.Equal(t, "127.0.0.1:9199", cfg.Metrics.Addr)
}

func TestLoader_RejectsMalformedJSON(t *testing.T) {
	path := writeConfigFile(t, "{not valid json")
	loader := NewLoader(path)

	cfg, err := loader.Load()
	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoader_RejectsInvalidValues(t *testing.T) {
	path := writeConfigFile(t, `{"sessions": {"archive_capacity": -5}}`)
	loader := NewLoader(path)

	cfg, err := loader.Load()
	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}

func TestLoader_Path(t *testing.T) {
	explicit := NewLoader("/etc/kerani/kerani.json")
	path, err := explicit.Path()
	require.NoError(t, err)
	assert.Equal(t, "/etc/kerani/kerani.json", path)

	implicit := NewLoader("")
	path, err = implicit.Path()
	require.NoError(t, err)
	assert.Contains(t, path, filepath.Join(".kerani", "kerani.json"))
}
