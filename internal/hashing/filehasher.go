package hashing

import (
	"fmt"
	"hash/fnv"
	"io"
	"os"
	"runtime"
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/sync/errgroup"

	"github.com/cespare/xxhash/v2"

	"github.com/neex/neex/internal/util"
)

// defaultLRUSize is spec.md §4.4's "size ≈10 000 entries".
const defaultLRUSize = 10000

// FileHasher computes a fast, non-cryptographic 64-bit content hash per
// file, memoizing by "<path>:<mtime>:<size>" in a bounded LRU and
// persisting results into a Tracker, under a semaphore-bounded worker pool
// (spec.md §4.4).
type FileHasher struct {
	tracker *Tracker
	lru     *lru.Cache
	sema    *util.Semaphore
}

// NewFileHasher constructs a FileHasher. concurrency <= 0 defaults to the
// CPU count (8 when unknown), per spec.md §4.4.
func NewFileHasher(tracker *Tracker, concurrency int) *FileHasher {
	if concurrency <= 0 {
		concurrency = runtime.NumCPU()
	}
	if concurrency <= 0 {
		concurrency = 8
	}
	cache, err := lru.New(defaultLRUSize)
	if err != nil {
		// lru.New only errors on a non-positive size, which can't happen
		// here; fall back to a one-entry cache to keep
		// the hasher functional rather than panicking on a pool of files.
		cache, _ = lru.New(1)
	}
	return &FileHasher{tracker: tracker, lru: cache, sema: util.NewSemaphore(concurrency)}
}

// HashFile hashes a single file, consulting the LRU and Tracker before
// reading bytes from disk (spec.md §4.4's miss path).
func (h *FileHasher) HashFile(path string) (uint64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	mtimeNs := info.ModTime().UnixNano()
	size := info.Size()
	key := fmt.Sprintf("%s:%d:%d", path, mtimeNs, size)

	if cached, ok := h.lru.Get(key); ok {
		return cached.(uint64), nil
	}
	if cached, ok := h.tracker.Lookup(path, mtimeNs, size); ok {
		h.lru.Add(key, cached)
		return cached, nil
	}

	hashVal, err := hashFileContents(path)
	if err != nil {
		return 0, err
	}
	h.lru.Add(key, hashVal)
	h.tracker.Record(path, mtimeNs, size, hashVal)
	return hashVal, nil
}

// HashFilesParallel hashes files under the hasher's concurrency bound,
// acquiring a permit per file. The remaining files are still hashed after a
// failure; the first per-file error is returned, since an unreadable source file means the
// resulting package hash would silently omit content.
func (h *FileHasher) HashFilesParallel(files []string) (map[string]uint64, error) {
	var g errgroup.Group
	var mu sync.Mutex
	out := make(map[string]uint64, len(files))

	for _, f := range files {
		path := f
		g.Go(func() error {
			h.sema.Acquire()
			defer h.sema.Release()
			hashVal, err := h.HashFile(path)
			if err != nil {
				return err
			}
			mu.Lock()
			out[path] = hashVal
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// hashFileContents computes the 64-bit content hash of a file's bytes using
// XXH3-family xxhash as the primary algorithm, per spec.md §4.4.
func hashFileContents(path string) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	h := xxhash.New()
	if _, err := io.Copy(h, f); err != nil {
		return 0, err
	}
	return h.Sum64(), nil
}

// hashFileContentsFNV is the FNV-1a fallback spec.md §4.4 names for
// platforms or builds where XXH3 is unavailable. Nothing in this package
// selects it: HashFile always uses hashFileContents, since every platform
// this module targets has the xxhash implementation available.
func hashFileContentsFNV(path string) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	h := fnv.New64a()
	if _, err := io.Copy(h, f); err != nil {
		return 0, err
	}
	return h.Sum64(), nil
}
