package objectstore

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutIsIdempotentAndDeduplicates(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir)
	require.NoError(t, err)

	data := []byte("hello artifact bytes")
	hash1, err := store.Put(data)
	require.NoError(t, err)
	hash2, err := store.Put(data)
	require.NoError(t, err)
	assert.Equal(t, hash1, hash2)

	shard := hash1[:2]
	entries, err := os.ReadDir(filepath.Join(dir, "objects", shard))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestPutThenGetRoundTrips(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir)
	require.NoError(t, err)

	data := []byte("round trip payload with some repeated repeated repeated bytes")
	hash, err := store.Put(data)
	require.NoError(t, err)

	got, ok, err := store.Get(hash)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, data, got)
}

func TestGetMissingHashReturnsNotOK(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir)
	require.NoError(t, err)

	_, ok, err := store.Get("0000000000000000000000000000000000000000000000000000000000000000")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWriteToDecompressesDirectlyToDestination(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir)
	require.NoError(t, err)

	data := []byte("content destined for a restored file on disk")
	hash, err := store.Put(data)
	require.NoError(t, err)

	dest := filepath.Join(dir, "restored", "nested", "out.bin")
	ok, err := store.WriteTo(hash, dest)
	require.NoError(t, err)
	require.True(t, ok)

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestCleanupRemovesObjectsOlderThanMaxAge(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir)
	require.NoError(t, err)

	oldHash, err := store.Put([]byte("stale object"))
	require.NoError(t, err)
	newHash, err := store.Put([]byte("fresh object"))
	require.NoError(t, err)

	oldPath := store.objectPath(oldHash)
	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(oldPath, old, old))

	require.NoError(t, store.Cleanup(24*time.Hour))

	_, ok, err := store.Get(oldHash)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = store.Get(newHash)
	require.NoError(t, err)
	assert.True(t, ok)
}
