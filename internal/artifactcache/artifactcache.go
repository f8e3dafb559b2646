// Package artifactcache implements spec.md §4.5: saving and restoring a
// task's declared output directories under its fingerprint, backed by the
// Content Store, with an optional remote cache fallback.
//
// Grounded on the teacher's internal/cache package (the Save/Fetch split and
// the local-then-remote fallback order), rebuilt around objectstore instead
// of the teacher's tar-based cacheitem format.
package artifactcache

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-hclog"

	"github.com/neex/neex/internal/objectstore"
	"github.com/neex/neex/internal/turbopath"
)

// Metadata is the Artifact entity's metadata record (spec.md §3).
type Metadata struct {
	ExitCode   int    `json:"exitCode"`
	DurationMs int64  `json:"durationMs"`
	TimestampMs int64 `json:"timestampMs"`
	Stdout     string `json:"stdout"`
	Stderr     string `json:"stderr"`
}

// FileEntry is one manifest row: a restored file's relative path, content
// hash, byte size and mode.
type FileEntry struct {
	Path string      `json:"path"`
	Hash string      `json:"hash"`
	Size int64       `json:"size"`
	Mode os.FileMode `json:"mode"`
}

// Manifest is the Artifact entity's ordered file list.
type Manifest struct {
	Files []FileEntry `json:"files"`
}

// RemoteCache is the subset of remotecache.Client the artifact cache needs,
// declared here to avoid a circular import between the two packages.
type RemoteCache interface {
	Put(hash string, data []byte) error
	Get(hash string) ([]byte, bool, error)
}

// Cache is the local artifact cache: a directory of per-fingerprint
// subdirectories, each holding metadata.json and manifest.json, backed by an
// objectstore.Store for the actual file content.
type Cache struct {
	root     string
	store    *objectstore.Store
	hardlink *HardlinkStore // uncompressed local fast path, alongside the CAS
	remote   RemoteCache    // nil if no remote cache configured
	logger   hclog.Logger
}

// New constructs a Cache rooted at dir, using store for content objects.
// remote may be nil.
func New(dir string, store *objectstore.Store, remote RemoteCache, logger hclog.Logger) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o775); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	hardlink, err := NewHardlinkStore(filepath.Join(dir, "hardlink"))
	if err != nil {
		return nil, err
	}
	return &Cache{root: dir, store: store, hardlink: hardlink, remote: remote, logger: logger}, nil
}

func (c *Cache) artifactDir(fingerprint string) string {
	return filepath.Join(c.root, fingerprint)
}

// Save captures every file under each of outputDirs (paths relative to
// workDir) into the Content Store, writes metadata.json and manifest.json
// atomically, and (if a remote cache is configured) uploads the combined
// payload (spec.md §4.5).
func (c *Cache) Save(fingerprint string, workDir string, outputDirs []string, meta Metadata) error {
	dir := c.artifactDir(fingerprint)
	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o775); err != nil {
		return err
	}

	workRoot := turbopath.AbsoluteSystemPathFromString(workDir)

	var manifest Manifest
	for _, outputDir := range outputDirs {
		absOutput := workRoot.Join(outputDir)
		info, err := os.Stat(absOutput.String())
		if err != nil {
			continue // output never materialized; not every task produces every declared output
		}
		if !info.IsDir() {
			continue
		}
		err = filepath.Walk(absOutput.String(), func(path string, fi os.FileInfo, err error) error {
			if err != nil {
				c.logger.Warn("save: skipping unreadable path", "path", path, "error", err)
				return nil
			}
			if fi.IsDir() {
				return nil
			}
			data, readErr := os.ReadFile(path)
			if readErr != nil {
				c.logger.Warn("save: source file disappeared mid-read, skipping", "path", path, "error", readErr)
				return nil
			}
			hash, putErr := c.store.Put(data)
			if putErr != nil {
				c.logger.Warn("save: failed to write content object, skipping", "path", path, "error", putErr)
				return nil
			}
			// Mirror into the uncompressed hardlink store too: restoring a
			// hit via a hardlink is far cheaper than decompressing a zstd
			// object, and it costs nothing extra since the bytes are
			// already in hand.
			if hardlinkErr := c.hardlink.Put(hash, data); hardlinkErr != nil {
				c.logger.Warn("save: hardlink fast-path write failed, CAS copy still saved", "path", path, "error", hardlinkErr)
			}
			rel, relErr := turbopath.AbsoluteSystemPathFromString(path).RelativeTo(workRoot)
			if relErr != nil {
				rel = turbopath.AnchoredSystemPath(path)
			}
			manifest.Files = append(manifest.Files, FileEntry{
				Path: filepath.ToSlash(rel.ToString()),
				Hash: hash,
				Size: fi.Size(),
				Mode: fi.Mode(),
			})
			return nil
		})
		if err != nil {
			return err
		}
	}

	if err := writeJSONAtomic(filepath.Join(dir, "metadata.json"), meta); err != nil {
		return err
	}
	if err := writeJSONAtomic(filepath.Join(dir, "manifest.json"), manifest); err != nil {
		return err
	}

	if c.remote != nil {
		payload, err := json.Marshal(struct {
			Metadata Metadata `json:"metadata"`
			Manifest Manifest `json:"manifest"`
		}{meta, manifest})
		if err == nil {
			if err := c.remote.Put(fingerprint, payload); err != nil {
				c.logger.Warn("save: remote upload failed, continuing with local cache only", "fingerprint", fingerprint, "error", err)
			}
		}
	}
	return nil
}

// RestoreResult reports what happened during Restore.
type RestoreResult struct {
	Hit      bool
	Metadata Metadata
	Restored int
	Failed   int
}

// Restore looks for a local artifact directory for fingerprint, falling
// back to the remote cache on a local miss; on a hit it replays captured
// stdout/stderr to the given writers and restores every manifest file to
// workDir, best-effort (spec.md §4.5).
func (c *Cache) Restore(fingerprint string, workDir string, stdout, stderr io.Writer) (RestoreResult, error) {
	dir := c.artifactDir(fingerprint)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if c.remote == nil {
			return RestoreResult{}, nil
		}
		if !c.fetchFromRemote(fingerprint, dir) {
			return RestoreResult{}, nil
		}
	}

	var meta Metadata
	if err := readJSON(filepath.Join(dir, "metadata.json"), &meta); err != nil {
		return RestoreResult{}, nil // treat an unreadable local artifact as a miss
	}
	var manifest Manifest
	if err := readJSON(filepath.Join(dir, "manifest.json"), &manifest); err != nil {
		return RestoreResult{}, nil
	}

	if stdout != nil && meta.Stdout != "" {
		_, _ = io.WriteString(stdout, meta.Stdout)
	}
	if stderr != nil && meta.Stderr != "" {
		_, _ = io.WriteString(stderr, meta.Stderr)
	}

	workRoot := turbopath.AbsoluteSystemPathFromString(workDir)
	result := RestoreResult{Hit: true, Metadata: meta}
	for _, entry := range manifest.Files {
		anchored := turbopath.AnchoredSystemPath(filepath.FromSlash(entry.Path))
		dest := anchored.RestoreAnchor(workRoot).String()
		if err := os.MkdirAll(filepath.Dir(dest), 0o775); err != nil {
			c.logger.Warn("restore: failed to create destination directory", "path", dest, "error", err)
			result.Failed++
			continue
		}
		_ = os.Remove(dest)
		ok, err := c.hardlink.Restore(entry.Hash, dest)
		if err != nil || !ok {
			// Not every hit has a hardlink-store copy (e.g. one fetched from
			// the remote cache never passed through Save's mirroring step
			// above), so fall back to the compressed CAS before giving up.
			ok, err = c.store.WriteTo(entry.Hash, dest)
		}
		if err != nil || !ok {
			c.logger.Warn("restore: content object unavailable, skipping file", "path", entry.Path, "hash", entry.Hash, "error", err)
			result.Failed++
			continue
		}
		if err := turbopath.AbsoluteSystemPathFromString(dest).Lchmod(entry.Mode); err != nil {
			c.logger.Warn("restore: failed to restore file mode", "path", dest, "error", err)
		}
		result.Restored++
	}
	return result, nil
}

// fetchFromRemote downloads the combined metadata+manifest payload for
// fingerprint from the remote cache and materializes it at dir, returning
// whether the fetch was a hit.
func (c *Cache) fetchFromRemote(fingerprint string, dir string) bool {
	data, ok, err := c.remote.Get(fingerprint)
	if err != nil || !ok {
		return false
	}
	var payload struct {
		Metadata Metadata `json:"metadata"`
		Manifest Manifest `json:"manifest"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		c.logger.Warn("restore: corrupt remote payload, treating as miss", "fingerprint", fingerprint, "error", err)
		return false
	}
	if err := os.MkdirAll(dir, 0o775); err != nil {
		return false
	}
	if err := writeJSONAtomic(filepath.Join(dir, "metadata.json"), payload.Metadata); err != nil {
		return false
	}
	if err := writeJSONAtomic(filepath.Join(dir, "manifest.json"), payload.Manifest); err != nil {
		return false
	}
	return true
}

func writeJSONAtomic(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
