package utils

import (
	"fmt"
	"os"
	"path/filepath"
)

// CleanDirs removes and recreates every directory in dirs under root.
func CleanDirs(root string, dirs ...string) error {
	for _, d := range dirs {
		p := filepath.Join(root, d)
		if err := os.RemoveAll(p); err != nil {
			return fmt.Errorf("failed to remove %s: %w", p, err)
		}
		if err := os.MkdirAll(p, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", p, err)
		}
	}
	return nil
}

// FileLargerThan reports whether path is a regular file of more than size bytes.
func FileLargerThan(path string, size int64) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir() && info.Size() > size
}

