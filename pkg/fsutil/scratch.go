package fsutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Scratch tracks the temporary files and directories created during one
// pipeline invocation. Cleanup removes everything that was not handed over
// with Keep; it is meant to be deferred right after NewScratch so it runs on
// every exit path.
//
// Scratch is safe for concurrent use by the workers of a single invocation.
type Scratch struct {
	base  string
	mu    sync.Mutex
	paths []string
	kept  map[string]bool
}

// NewScratch creates a scratch registry whose temporary paths are allocated
// under base. An empty base means os.TempDir().
func NewScratch(base string) (*Scratch, error) {
	if base == "" {
		base = os.TempDir()
	}
	if err := os.MkdirAll(base, DirModeSecure); err != nil {
		return nil, fmt.Errorf("could not create scratch base %s: %w", base, err)
	}
	return &Scratch{base: base, kept: make(map[string]bool)}, nil
}

// Dir returns the directory temporary paths are allocated under.
func (s *Scratch) Dir() string { return s.base }

// TempFile creates an empty, closed temporary file matching pattern and
// registers it for cleanup.
func (s *Scratch) TempFile(pattern string) (string, error) {
	f, err := os.CreateTemp(s.base, pattern)
	if err != nil {
		return "", fmt.Errorf("could not create temp file: %w", err)
	}
	path := f.Name()
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("could not close temp file: %w", err)
	}
	s.Track(path)
	return path, nil
}

// TempDir creates a temporary directory matching pattern and registers it for
// cleanup.
func (s *Scratch) TempDir(pattern string) (string, error) {
	dir, err := os.MkdirTemp(s.base, pattern)
	if err != nil {
		return "", fmt.Errorf("could not create temp dir: %w", err)
	}
	s.Track(dir)
	return dir, nil
}

// Track registers an existing path for cleanup.
func (s *Scratch) Track(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paths = append(s.paths, path)
}

// Keep transfers ownership of path to the caller; Cleanup will leave it alone.
func (s *Scratch) Keep(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kept[filepath.Clean(path)] = true
}

// Remove deletes a tracked path immediately.
func (s *Scratch) Remove(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, p := range s.paths {
		if p == path {
			s.paths = append(s.paths[:i], s.paths[i+1:]...)
			break
		}
	}
	return os.RemoveAll(path)
}

// Cleanup removes every tracked path that was not kept, in reverse
// registration order. All paths are attempted; the errors are joined.
func (s *Scratch) Cleanup() error {
	s.mu.Lock()
	paths := s.paths
	s.paths = nil
	kept := s.kept
	s.mu.Unlock()

	var errs []error
	for i := len(paths) - 1; i >= 0; i-- {
		if kept[filepath.Clean(paths[i])] {
			continue
		}
		if err := os.RemoveAll(paths[i]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
