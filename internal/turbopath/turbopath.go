// Package turbopath provides small newtypes over filesystem paths so that
// "absolute path" and "path anchored at a package root" cannot be mixed up
// by the compiler. Adapted and trimmed from the teacher's turbopath package:
// we keep AbsoluteSystemPath and AnchoredSystemPath (the two shapes neex's
// artifact cache code actually needs) and drop the Unix-path and
// find-up-the-tree variants the original carried for cross-platform tar
// portability, which is out of this module's scope.
package turbopath

import (
	"os"
	"path/filepath"
)

// AbsoluteSystemPath is a path known to be absolute and in the host OS's
// native separator style.
type AbsoluteSystemPath string

// AnchoredSystemPath is a path known to be relative to some other
// AbsoluteSystemPath (typically a package or repo root).
type AnchoredSystemPath string

// AbsoluteSystemPathFromString cleans and wraps an absolute path string.
func AbsoluteSystemPathFromString(s string) AbsoluteSystemPath {
	return AbsoluteSystemPath(filepath.Clean(s))
}

// String returns the path as a plain string.
func (p AbsoluteSystemPath) String() string {
	return string(p)
}

// Join appends path elements and returns the resulting absolute path.
func (p AbsoluteSystemPath) Join(elem ...string) AbsoluteSystemPath {
	parts := append([]string{string(p)}, elem...)
	return AbsoluteSystemPath(filepath.Join(parts...))
}

// Dir returns the parent directory.
func (p AbsoluteSystemPath) Dir() AbsoluteSystemPath {
	return AbsoluteSystemPath(filepath.Dir(string(p)))
}

// RelativeTo computes p relative to base, returning an AnchoredSystemPath.
func (p AbsoluteSystemPath) RelativeTo(base AbsoluteSystemPath) (AnchoredSystemPath, error) {
	rel, err := filepath.Rel(string(base), string(p))
	if err != nil {
		return "", err
	}
	return AnchoredSystemPath(rel), nil
}

// RestoreAnchor joins an anchored path back onto its absolute anchor.
func (p AnchoredSystemPath) RestoreAnchor(anchor AbsoluteSystemPath) AbsoluteSystemPath {
	return anchor.Join(string(p))
}

// ToString returns the path as a plain string.
func (p AnchoredSystemPath) ToString() string {
	return string(p)
}

// ToSlash renders the anchored path with forward slashes, for use as a
// stable, platform-independent manifest key.
func (p AnchoredSystemPath) ToSlash() string {
	return filepath.ToSlash(string(p))
}

// Exists reports whether the path exists on disk.
func (p AbsoluteSystemPath) Exists() bool {
	_, err := os.Lstat(string(p))
	return err == nil
}

// FileExists reports whether the path exists and is a regular file.
func (p AbsoluteSystemPath) FileExists() bool {
	info, err := os.Stat(string(p))
	return err == nil && info.Mode().IsRegular()
}

// MkdirAll creates the directory and any missing parents.
func (p AbsoluteSystemPath) MkdirAll(perm os.FileMode) error {
	return os.MkdirAll(string(p), perm)
}
