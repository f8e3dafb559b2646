package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/neex/neex/internal/remotecache"
)

// remoteCacheFilePath is spec.md §6's on-disk location for persisted remote
// cache credentials, relative to the repo root.
const remoteCacheFilePath = ".neex/remote-cache.json"

// ReadRemoteCacheFile reads persisted remote cache credentials, returning
// (nil, nil) if the file does not exist.
func ReadRemoteCacheFile(rootDir string) (*remotecache.Config, error) {
	return readRemoteCacheFile(afero.NewOsFs(), rootDir)
}

func readRemoteCacheFile(fsys afero.Fs, rootDir string) (*remotecache.Config, error) {
	path := filepath.Join(rootDir, remoteCacheFilePath)
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var cfg remotecache.Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// WriteRemoteCacheFile persists remote cache credentials to
// `.neex/remote-cache.json`, creating the `.neex` directory if needed. Used
// by `neex cache login` (spec.md §6).
func WriteRemoteCacheFile(rootDir string, cfg *remotecache.Config) error {
	return writeRemoteCacheFile(afero.NewOsFs(), rootDir, cfg)
}

func writeRemoteCacheFile(fsys afero.Fs, rootDir string, cfg *remotecache.Config) error {
	path := filepath.Join(rootDir, remoteCacheFilePath)
	if err := fsys.MkdirAll(filepath.Dir(path), 0o775); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return afero.WriteFile(fsys, path, data, 0o600)
}

// DeleteRemoteCacheFile removes any persisted remote cache credentials.
func DeleteRemoteCacheFile(rootDir string) error {
	fsys := afero.NewOsFs()
	path := filepath.Join(rootDir, remoteCacheFilePath)
	err := fsys.Remove(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
