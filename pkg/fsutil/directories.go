// Package fsutil provides filesystem helpers for the onboarding pipeline:
// permission constants, moves across devices, scoped scratch space and
// path containment checks.
package fsutil

import (
	"fmt"
	"os"
	"path/filepath"
)

// EnsureDir creates a directory and all necessary parents with DirModeDefault.
func EnsureDir(path string) error {
	if path == "" {
		return fmt.Errorf("directory path cannot be empty")
	}
	return os.MkdirAll(path, DirModeDefault)
}

// EnsureFileDir creates the parent directory of filePath if it doesn't exist.
func EnsureFileDir(filePath string) error {
	if filePath == "" {
		return fmt.Errorf("file path cannot be empty")
	}
	return EnsureDir(filepath.Dir(filePath))
}
