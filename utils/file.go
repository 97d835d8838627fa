package utils

import (
	"os"
	"path/filepath"

	"go.viam.com/utils"
)

// ResolvePath returns path relative to dir, unless path is empty or already absolute. Job files
// use it so the files they name are found next to them.
func ResolvePath(dir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}

// RemoveFileNoError will remove the file at the given path if it exists. Any
// errors will be suppressed.
func RemoveFileNoError(path string) {
	utils.UncheckedErrorFunc(func() error {
		if _, err := os.Stat(path); err == nil {
			return os.Remove(path)
		}
		return nil
	})
}
