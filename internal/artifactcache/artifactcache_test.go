package artifactcache

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neex/neex/internal/objectstore"
)

func newTestCache(t *testing.T) (*Cache, *objectstore.Store) {
	t.Helper()
	dir := t.TempDir()
	store, err := objectstore.New(filepath.Join(dir, "objects"))
	require.NoError(t, err)
	cache, err := New(filepath.Join(dir, "artifacts"), store, nil, nil)
	require.NoError(t, err)
	return cache, store
}

// corruptCache empties both of a Cache's backing stores, so a Restore can
// only see fingerprint/manifest metadata, never the file content behind it.
func corruptCache(t *testing.T, cache *Cache, store *objectstore.Store) {
	t.Helper()
	require.NoError(t, store.Cleanup(0))
	require.NoError(t, os.RemoveAll(cache.hardlink.root))
	require.NoError(t, os.MkdirAll(cache.hardlink.root, 0o775))
}

func TestSaveThenRestoreRoundTripsFilesAndMetadata(t *testing.T) {
	cache, _ := newTestCache(t)
	workDir := t.TempDir()

	require.NoError(t, os.MkdirAll(filepath.Join(workDir, "dist"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(workDir, "dist", "out.js"), []byte("console.log(1)"), 0o644))

	meta := Metadata{ExitCode: 0, DurationMs: 42, TimestampMs: 1000, Stdout: "building...\n", Stderr: ""}
	require.NoError(t, cache.Save("fp-1", workDir, []string{"dist"}, meta))

	restoreDir := t.TempDir()
	var stdout, stderr bytes.Buffer
	result, err := cache.Restore("fp-1", restoreDir, &stdout, &stderr)
	require.NoError(t, err)
	assert.True(t, result.Hit)
	assert.Equal(t, 1, result.Restored)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, "building...\n", stdout.String())
	assert.Equal(t, meta.ExitCode, result.Metadata.ExitCode)

	got, err := os.ReadFile(filepath.Join(restoreDir, "dist", "out.js"))
	require.NoError(t, err)
	assert.Equal(t, "console.log(1)", string(got))
}

func TestRestoreMissFingerprintIsNotAnError(t *testing.T) {
	cache, _ := newTestCache(t)
	result, err := cache.Restore("never-saved", t.TempDir(), nil, nil)
	require.NoError(t, err)
	assert.False(t, result.Hit)
}

func TestRestoreIsBestEffortWhenAContentObjectIsMissing(t *testing.T) {
	cache, store := newTestCache(t)
	workDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(workDir, "dist"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(workDir, "dist", "a.js"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(workDir, "dist", "b.js"), []byte("b"), 0o644))

	require.NoError(t, cache.Save("fp-2", workDir, []string{"dist"}, Metadata{}))

	// Corrupt the cache by deleting every object in both backing stores so
	// both files fail to restore.
	corruptCache(t, cache, store)

	restoreDir := t.TempDir()
	result, err := cache.Restore("fp-2", restoreDir, nil, nil)
	require.NoError(t, err)
	assert.True(t, result.Hit)
	assert.Equal(t, 0, result.Restored)
	assert.Equal(t, 2, result.Failed)
}

func TestSaveSkipsOutputDirectoriesThatNeverMaterialized(t *testing.T) {
	cache, _ := newTestCache(t)
	workDir := t.TempDir()
	require.NoError(t, cache.Save("fp-3", workDir, []string{"dist", "coverage"}, Metadata{ExitCode: 0}))

	result, err := cache.Restore("fp-3", t.TempDir(), nil, nil)
	require.NoError(t, err)
	assert.True(t, result.Hit)
	assert.Equal(t, 0, result.Restored)
}

func TestRestoreUsesHardlinkFastPathWhenCASObjectIsGone(t *testing.T) {
	cache, store := newTestCache(t)
	workDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(workDir, "dist"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(workDir, "dist", "out.js"), []byte("console.log(1)"), 0o644))
	require.NoError(t, cache.Save("fp-4", workDir, []string{"dist"}, Metadata{}))

	// Remove only the compressed CAS copy; the hardlink mirror survives.
	require.NoError(t, store.Cleanup(0))

	restoreDir := t.TempDir()
	result, err := cache.Restore("fp-4", restoreDir, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Restored)
	assert.Equal(t, 0, result.Failed)
}

func TestHardlinkStorePutThenRestoreMaterializesContent(t *testing.T) {
	dir := t.TempDir()
	store, err := NewHardlinkStore(filepath.Join(dir, "flat"))
	require.NoError(t, err)
	require.NoError(t, store.Put("abcd1234", []byte("payload")))

	dest := filepath.Join(dir, "restored", "file.bin")
	ok, err := store.Restore("abcd1234", dest)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(got))
}
