package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadStatic_MissingFileReturnsDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadStatic(filepath.Join(dir, "config.toml"), testLogger())
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, 10*time.Second, cfg.PollInterval)
}

func TestLoadStatic_ParsesOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
log_level = "debug"
poll_interval = "30s"
http_timeout = "5s"
`), 0o600))

	cfg, err := LoadStatic(path, testLogger())
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 30*time.Second, cfg.PollInterval)
	assert.Equal(t, 5*time.Second, cfg.HTTPTimeout)
}

func TestResolveAppDataDirPrecedence(t *testing.T) {
	env := EnvOverrides{AppDataDir: "/env/dir"}
	cli := CLIOverrides{}
	assert.Equal(t, "/env/dir", ResolveAppDataDir(env, cli))

	cli.AppDataDir = "/cli/dir"
	assert.Equal(t, "/cli/dir", ResolveAppDataDir(env, cli))
}

func TestWriteDefaultStaticConfigIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	require.NoError(t, WriteDefaultStaticConfig(path))
	first, err := os.ReadFile(path)
	require.NoError(t, err)

	require.NoError(t, WriteDefaultStaticConfig(path))
	second, err := os.ReadFile(path)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}
