//go:build !darwin

package turbopath

import "os"

// Lchmod changes the mode of a file. Non-Darwin platforms have no portable
// symlink-safe chmod syscall exposed by golang.org/x/sys, so this falls back
// to following symlinks like os.Chmod.
func (p AbsoluteSystemPath) Lchmod(mode os.FileMode) error {
	return os.Chmod(p.String(), mode)
}
