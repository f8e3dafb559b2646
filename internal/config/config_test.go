package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neex/neex/internal/remotecache"
)

func TestLoadAppliesDefaultsWithNoConfigFile(t *testing.T) {
	root := t.TempDir()
	cfg, err := Load(viper.New(), root)
	require.NoError(t, err)
	assert.False(t, cfg.StopOnError)
	assert.False(t, cfg.NoColor)
	assert.Equal(t, ".neex/cache", cfg.CacheDir)
	assert.Equal(t, 300, cfg.DebounceMillis)
	assert.Greater(t, cfg.MaxParallel, 0)
}

func TestLoadReadsNeexrcFile(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, ".neexrc.json"), []byte(`{"max-parallel": 4, "stop-on-error": true}`), 0o644))

	cfg, err := Load(viper.New(), root)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.MaxParallel)
	assert.True(t, cfg.StopOnError)
}

func TestLoadAppliesEnvironmentOverride(t *testing.T) {
	root := t.TempDir()
	t.Setenv("NEEX_STOP_ON_ERROR", "true")

	cfg, err := Load(viper.New(), root)
	require.NoError(t, err)
	assert.True(t, cfg.StopOnError)
}

func TestLoadReadsInlineRemoteCacheConfig(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, ".neexrc.json"), []byte(`{
		"remote-cache": {"provider": "s3", "endpoint": "https://s3.example.com", "bucket": "b", "access-key": "ak", "secret-key": "sk", "region": "us-east-1"}
	}`), 0o644))

	cfg, err := Load(viper.New(), root)
	require.NoError(t, err)
	require.NotNil(t, cfg.RemoteCache)
	assert.Equal(t, "s3", cfg.RemoteCache.Provider)
	assert.Equal(t, "https://s3.example.com", cfg.RemoteCache.Endpoint)
}

func TestRemoteCacheFileRoundTrips(t *testing.T) {
	fsys := afero.NewMemMapFs()
	root := "/repo"
	original := &remotecache.Config{Provider: "s3", Endpoint: "https://example.com", Bucket: "b", AccessKey: "ak", SecretKey: "sk", Region: "us-east-1"}

	require.NoError(t, writeRemoteCacheFile(fsys, root, original))
	got, err := readRemoteCacheFile(fsys, root)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, *original, *got)
}

func TestReadRemoteCacheFileMissingReturnsNil(t *testing.T) {
	fsys := afero.NewMemMapFs()
	got, err := readRemoteCacheFile(fsys, "/repo")
	require.NoError(t, err)
	assert.Nil(t, got)
}
