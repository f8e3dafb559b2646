package hashing

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
}

func TestPackageHashIsOrderIndependent(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.ts"), "export const a = 1;")
	writeFile(t, filepath.Join(dir, "b.ts"), "export const b = 2;")
	writeFile(t, filepath.Join(dir, "node_modules", "x.ts"), "ignored")

	h1 := NewFileHasher(LoadTracker(filepath.Join(dir, "state1.json")), 1)
	h2 := NewFileHasher(LoadTracker(filepath.Join(dir, "state2.json")), 8)

	hash1, err := PackageHash(h1, dir)
	require.NoError(t, err)
	hash2, err := PackageHash(h2, dir)
	require.NoError(t, err)
	assert.Equal(t, hash1, hash2)
	assert.NotZero(t, hash1)
}

func TestPackageHashChangesWithContent(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.ts"), "export const a = 1;")
	h := NewFileHasher(LoadTracker(filepath.Join(dir, "state.json")), 4)
	before, err := PackageHash(h, dir)
	require.NoError(t, err)

	writeFile(t, filepath.Join(dir, "a.ts"), "export const a = 2;")
	after, err := PackageHash(h, dir)
	require.NoError(t, err)

	assert.NotEqual(t, before, after)
}

func TestZeroByteFileHasStableHash(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "empty.ts"), "")
	h := NewFileHasher(LoadTracker(filepath.Join(dir, "state.json")), 2)
	hash1, err := h.HashFile(filepath.Join(dir, "empty.ts"))
	require.NoError(t, err)
	hash2, err := h.HashFile(filepath.Join(dir, "empty.ts"))
	require.NoError(t, err)
	assert.Equal(t, hash1, hash2)
}

func TestTrackerInvalidatesOnSizeChangeWithSameMtime(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.ts")
	writeFile(t, path, "x")

	fixed := time.Unix(1700000000, 0)
	require.NoError(t, os.Chtimes(path, fixed, fixed))
	tracker := LoadTracker(filepath.Join(dir, "state.json"))
	tracker.Record(path, fixed.UnixNano(), 1, 0xDEADBEEF)

	// Same mtime, different size: must be treated as changed.
	_, ok := tracker.Lookup(path, fixed.UnixNano(), 2)
	assert.False(t, ok)

	_, ok = tracker.Lookup(path, fixed.UnixNano(), 1)
	assert.True(t, ok)
}

func TestTrackerFlushIsVersionedAndRoundTrips(t *testing.T) {
	dir := t.TempDir()
	statePath := filepath.Join(dir, "state.json")
	tracker := LoadTracker(statePath)
	tracker.Record("/some/path", 123, 456, 789)
	require.NoError(t, tracker.Flush())

	reloaded := LoadTracker(statePath)
	hash, ok := reloaded.Lookup("/some/path", 123, 456)
	require.True(t, ok)
	assert.EqualValues(t, 789, hash)
}

func TestTrackerSchemaVersionMismatchIsDiscarded(t *testing.T) {
	dir := t.TempDir()
	statePath := filepath.Join(dir, "state.json")
	writeFile(t, statePath, `{"version": 999, "files": {"/x": {"mtimeNs": 1, "size": 1, "hash": 1}}}`)
	tracker := LoadTracker(statePath)
	_, ok := tracker.Lookup("/x", 1, 1)
	assert.False(t, ok)
}
