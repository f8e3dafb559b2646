// Package hashing implements spec.md §4.4: a persistent Incremental Tracker
// keyed by absolute file path, and a File Hasher that combines an in-memory
// LRU with a bounded-concurrency worker pool to produce package content
// hashes by XOR-folding per-file 64-bit hashes.
//
// Grounded on the teacher's internal/fs/hash.go (the file-hash primitive)
// and internal/hashing/package_deps_hash_go.go (the package-hash shape),
// generalized from the teacher's git-index-based approach to the simpler
// stat-based (mtime, size) invalidation spec.md §4.4 specifies — the core no
// longer shells out to git for content addressing, only the Affected
// Detector (internal/affected) does.
package hashing

import (
	"encoding/json"
	"os"
	"sync"
)

// trackerSchemaVersion is bumped whenever the persisted format changes, so
// schema drift invalidates cleanly rather than corrupting the tracker
// (spec.md §4.4).
const trackerSchemaVersion = 1

// entry is one file's last-known state.
type entry struct {
	MtimeNs int64  `json:"mtimeNs"`
	Size    int64  `json:"size"`
	Hash    uint64 `json:"hash"`
}

// onDiskFormat is the JSON shape persisted to .neex/state.json.
type onDiskFormat struct {
	Version int              `json:"version"`
	Files   map[string]entry `json:"files"`
}

// Tracker is the persistent per-file (mtime, size, hash) cache. It is safe
// for concurrent use by multiple File Hasher workers.
type Tracker struct {
	path  string
	mu    sync.Mutex
	files map[string]entry
	dirty bool
}

// LoadTracker loads (or initializes) the tracker state at path. A
// version mismatch or corrupt file is treated as an empty tracker rather
// than an error, since the tracker is purely an optimization: the worst
// case of discarding it is a few extra file hashes.
func LoadTracker(path string) *Tracker {
	t := &Tracker{path: path, files: make(map[string]entry)}
	data, err := os.ReadFile(path)
	if err != nil {
		return t
	}
	var onDisk onDiskFormat
	if err := json.Unmarshal(data, &onDisk); err != nil {
		return t
	}
	if onDisk.Version != trackerSchemaVersion {
		return t
	}
	t.files = onDisk.Files
	return t
}

// Lookup returns the cached hash for path if its (mtimeNs, size) match what
// was last recorded; "unchanged" per spec.md §4.4 requires both to match.
func (t *Tracker) Lookup(path string, mtimeNs, size int64) (hash uint64, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, found := t.files[path]
	if !found || e.MtimeNs != mtimeNs || e.Size != size {
		return 0, false
	}
	return e.Hash, true
}

// Record stores a freshly computed hash for path, marking the tracker dirty
// so Flush knows to persist it.
func (t *Tracker) Record(path string, mtimeNs, size int64, hash uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.files[path] = entry{MtimeNs: mtimeNs, Size: size, Hash: hash}
	t.dirty = true
}

// Flush writes the tracker state back to disk if it has been mutated since
// load, per spec.md §4.4 ("written back only when dirty").
func (t *Tracker) Flush() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.dirty {
		return nil
	}
	onDisk := onDiskFormat{Version: trackerSchemaVersion, Files: t.files}
	data, err := json.Marshal(onDisk)
	if err != nil {
		return err
	}
	if err := os.WriteFile(t.path, data, 0o644); err != nil {
		return err
	}
	t.dirty = false
	return nil
}
