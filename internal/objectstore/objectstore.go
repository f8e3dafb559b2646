// Package objectstore implements spec.md §4.3's Content Store: a
// deduplicated, content-addressed store of compressed byte blobs, sharded
// on the first two hex characters of their content hash.
//
// Grounded on the teacher's internal/cache/cache_fs.go (the sharded
// filesystem layout) and internal/cacheitem (compress-on-write), using
// klauspost/compress/zstd as the compressor per SPEC_FULL.md §4.3.
package objectstore

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"
)

// Store is a content-addressable store of compressed byte blobs rooted at a
// directory of the shape "<root>/objects/<aa>/<rest>.zst".
type Store struct {
	root string
}

// New returns a Store rooted at dir (created if absent).
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o775); err != nil {
		return nil, err
	}
	return &Store{root: dir}, nil
}

// Hash returns the content hash objectstore uses to key bytes. It is a
// distinct, cryptographically-irrelevant identity from the Task
// Fingerprinter's SHA-256 (spec.md separates "fast non-cryptographic" file
// hashing from "cryptographic" fingerprinting) — but for the CAS itself
// collision resistance matters more than speed, since two different inputs
// silently aliasing to the same object would corrupt unrelated artifacts, so
// SHA-256 is used here rather than xxhash.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func (s *Store) objectPath(hash string) string {
	shard := hash[:2]
	rest := hash[2:]
	return filepath.Join(s.root, "objects", shard, rest+".zst")
}

// Put stores bytes under their content hash, compressing them if the object
// does not already exist. It always returns the hash, whether or not a
// write occurred (spec.md §4.3).
func (s *Store) Put(data []byte) (string, error) {
	hash := Hash(data)
	path := s.objectPath(hash)
	if _, err := os.Stat(path); err == nil {
		return hash, nil // already present: dedup invariant (spec.md §3/§8)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o775); err != nil {
		return "", err
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return "", err
	}
	enc, err := zstd.NewWriter(f)
	if err != nil {
		f.Close()
		os.Remove(tmp)
		return "", err
	}
	if _, err := enc.Write(data); err != nil {
		enc.Close()
		f.Close()
		os.Remove(tmp)
		return "", err
	}
	if err := enc.Close(); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return "", err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", err
	}
	return hash, nil
}

// Get returns the decompressed bytes for hash, or ok=false if absent.
func (s *Store) Get(hash string) (data []byte, ok bool, err error) {
	path := s.objectPath(hash)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, false, err
	}
	defer dec.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, dec); err != nil {
		return nil, false, err
	}
	return buf.Bytes(), true, nil
}

// WriteTo decompresses the content object for hash directly to destPath,
// creating intermediate directories as needed, returning whether the object
// existed.
func (s *Store) WriteTo(hash string, destPath string) (bool, error) {
	path := s.objectPath(hash)
	src, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	defer src.Close()

	dec, err := zstd.NewReader(src)
	if err != nil {
		return false, err
	}
	defer dec.Close()

	if err := os.MkdirAll(filepath.Dir(destPath), 0o775); err != nil {
		return false, err
	}
	dst, err := os.Create(destPath)
	if err != nil {
		return false, err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, dec); err != nil {
		return false, err
	}
	return true, nil
}

// Cleanup walks all shard directories and removes objects whose
// last-modified time is older than maxAge; empty shards are removed
// afterwards (spec.md §4.3).
func (s *Store) Cleanup(maxAge time.Duration) error {
	objectsDir := filepath.Join(s.root, "objects")
	shards, err := os.ReadDir(objectsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	cutoff := time.Now().Add(-maxAge)
	for _, shard := range shards {
		if !shard.IsDir() {
			continue
		}
		shardPath := filepath.Join(objectsDir, shard.Name())
		entries, err := os.ReadDir(shardPath)
		if err != nil {
			continue
		}
		remaining := 0
		for _, entry := range entries {
			info, err := entry.Info()
			if err != nil {
				continue
			}
			if info.ModTime().Before(cutoff) {
				_ = os.Remove(filepath.Join(shardPath, entry.Name()))
				continue
			}
			remaining++
		}
		if remaining == 0 {
			_ = os.Remove(shardPath)
		}
	}
	return nil
}
