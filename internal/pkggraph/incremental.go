package pkggraph

import (
	"encoding/json"
	"time"

	"go.etcd.io/bbolt"

	"github.com/neex/neex/internal/workspace"
)

var packagesBucket = []byte("packages")

// snapshot is what gets persisted per package in project-graph.db
// (spec.md's filesystem layout). It lets Load decide, per package, whether
// its manifest changed since the last run without re-parsing anything.
type snapshot struct {
	MtimeNs      int64    `json:"mtimeNs"`
	Size         int64    `json:"size"`
	InternalDeps []string `json:"internalDeps"`
	Version      string   `json:"version"`
	Scripts      map[string]string `json:"scripts"`
}

// Store wraps the embedded KV store backing project-graph.db.
type Store struct {
	db *bbolt.DB
}

// OpenStore opens (creating if absent) the incremental graph store at path.
func OpenStore(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0o644, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(packagesBucket)
		return err
	}); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the underlying file handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Load builds the Project Graph from freshly scanned packages, reusing a
// cached snapshot (and skipping re-derivation of that package's edges)
// whenever the manifest's (mtime, size) is unchanged from the stored value
// — spec.md §4.2's incremental load. It records the cached/updated ratio in
// Graph.CacheStats and persists any freshly computed snapshots back to the
// store before returning.
func (s *Store) Load(pkgs map[string]*workspace.Package) (*Graph, error) {
	stats := LoadStats{}
	toPersist := make(map[string]snapshot)

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(packagesBucket)
		for name, pkg := range pkgs {
			raw := bucket.Get([]byte(name))
			if raw == nil {
				stats.Updated++
				toPersist[name] = snapshotOf(pkg)
				continue
			}
			var snap snapshot
			if err := json.Unmarshal(raw, &snap); err != nil {
				stats.Updated++
				toPersist[name] = snapshotOf(pkg)
				continue
			}
			if snap.MtimeNs == pkg.ManifestMtimeNs && snap.Size == pkg.ManifestSize {
				// Unchanged: reuse the cached edges rather than whatever
				// the scanner's fresh (but cheap) re-parse produced, so a
				// truly untouched package never causes a hash churn.
				pkg.InternalDeps = snap.InternalDeps
				stats.Cached++
			} else {
				stats.Updated++
				toPersist[name] = snapshotOf(pkg)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(toPersist) > 0 {
		if err := s.db.Update(func(tx *bbolt.Tx) error {
			bucket := tx.Bucket(packagesBucket)
			for name, snap := range toPersist {
				data, err := json.Marshal(snap)
				if err != nil {
					return err
				}
				if err := bucket.Put([]byte(name), data); err != nil {
					return err
				}
			}
			return nil
		}); err != nil {
			return nil, err
		}
	}

	g := Build(pkgs)
	g.CacheStats = stats
	return g, nil
}

func snapshotOf(pkg *workspace.Package) snapshot {
	return snapshot{
		MtimeNs:      pkg.ManifestMtimeNs,
		Size:         pkg.ManifestSize,
		InternalDeps: pkg.InternalDeps,
		Version:      pkg.Version,
		Scripts:      pkg.Scripts,
	}
}
