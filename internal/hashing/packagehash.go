package hashing

import (
	"path/filepath"
	"strings"

	"github.com/karrick/godirwalk"
)

// DefaultIgnoredNames are directory/file names excluded from a package's
// source tree when computing its content hash (spec.md §4.4).
var DefaultIgnoredNames = map[string]struct{}{
	"node_modules": {},
	".git":         {},
	".next":        {},
	".turbo":       {},
	".neex":        {},
	"dist":         {},
	"build":        {},
	"coverage":     {},
}

// DefaultExtensions are the file extensions that contribute to a package
// hash by default (spec.md §4.4).
var DefaultExtensions = map[string]struct{}{
	".ts":   {},
	".tsx":  {},
	".js":   {},
	".jsx":  {},
	".json": {},
}

// PackageHash enumerates dir's source files (excluding DefaultIgnoredNames
// and any dotfile/dotdir, keeping only DefaultExtensions), hashes each under
// the hasher's worker pool, and combines the results by XOR-folding the
// 64-bit hashes. XOR is order-independent and associative, so the result is
// identical regardless of the order parallel workers complete in (spec.md
// §4.4, tested as the "XOR-fold order independence" property in §8).
func PackageHash(hasher *FileHasher, dir string) (uint64, error) {
	files, err := enumerateSourceFiles(dir, DefaultExtensions)
	if err != nil {
		return 0, err
	}
	hashes, err := hasher.HashFilesParallel(files)
	if err != nil {
		return 0, err
	}
	var combined uint64
	for _, h := range hashes {
		combined ^= h
	}
	return combined, nil
}

func enumerateSourceFiles(root string, extensions map[string]struct{}) ([]string, error) {
	var files []string
	err := godirwalk.Walk(root, &godirwalk.Options{
		Callback: func(path string, de *godirwalk.Dirent) error {
			name := filepath.Base(path)
			isDir, err := de.IsDirOrSymlinkToDir()
			if err != nil {
				return godirwalk.SkipThis
			}
			if path != root && strings.HasPrefix(name, ".") {
				if isDir {
					return godirwalk.SkipThis
				}
				return nil
			}
			if _, ignored := DefaultIgnoredNames[name]; ignored {
				if isDir {
					return godirwalk.SkipThis
				}
				return nil
			}
			if isDir {
				return nil
			}
			if _, ok := extensions[filepath.Ext(name)]; !ok {
				return nil
			}
			files = append(files, path)
			return nil
		},
		ErrorCallback: func(pathname string, err error) godirwalk.ErrorAction {
			return godirwalk.SkipNode
		},
		Unsorted:            true,
		AllowNonDirectory:   true,
		FollowSymbolicLinks: false,
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}
