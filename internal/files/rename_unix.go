//go:build !windows

package files

import "os"

func renameAtomic(oldPath, newPath string) error {
	return os.Rename(oldPath, newPath)
}

func isReparsePoint(path string) (bool, error) {
	return false, nil
}
