// Package cache manages the scratch store: the directory every onboarding
// run allocates its temporary paths under and where results handed to the
// caller are left behind until they are released.
package cache

import (
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/glorpus-work/onboard/pkg/errors"
	"github.com/glorpus-work/onboard/pkg/fsutil"
)

// DefaultManager implements the Manager interface on a directory.
type DefaultManager struct {
	directory string
	now       func() time.Time
}

// NewManager creates a new scratch store manager.
func NewManager(directory string) *DefaultManager {
	return &DefaultManager{
		directory: directory,
		now:       time.Now,
	}
}

// NewDefaultManager creates a manager for the default scratch directory.
func NewDefaultManager() (*DefaultManager, error) {
	scratchDir, err := fsutil.GetScratchDir()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get user cache directory")
	}

	if err := os.MkdirAll(scratchDir, fsutil.DirModeSecure); err != nil {
		return nil, errors.Wrapf(err, "failed to create scratch directory")
	}

	return NewManager(scratchDir), nil
}

// Clean removes top-level entries according to the specified options. The
// scratch directory itself is kept.
func (cm *DefaultManager) Clean(options CleanOptions) (*CleanResult, error) {
	result := &CleanResult{}

	entries, err := os.ReadDir(cm.directory)
	if os.IsNotExist(err) {
		return result, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read scratch directory %s", cm.directory)
	}

	cutoff := cm.now().Add(-options.OlderThan)
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if options.OlderThan > 0 && info.ModTime().After(cutoff) {
			result.Kept++
			continue
		}

		path := filepath.Join(cm.directory, entry.Name())
		size, _, err := getDirSizeAndFiles(path)
		if err != nil {
			return nil, err
		}
		if !options.DryRun {
			if err := os.RemoveAll(path); err != nil {
				return nil, errors.Wrapf(err, "failed to remove %s", path)
			}
		}
		result.TotalFreed += size
		result.Removed = append(result.Removed, entry.Name())
	}
	sort.Strings(result.Removed)

	return result, nil
}

// GetInfo returns information about the scratch store.
func (cm *DefaultManager) GetInfo() (*Info, error) {
	info := &Info{Directory: cm.directory}

	entries, err := os.ReadDir(cm.directory)
	if os.IsNotExist(err) {
		return info, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read scratch directory %s", cm.directory)
	}

	for _, entry := range entries {
		fi, err := entry.Info()
		if err != nil {
			continue
		}
		size, files, err := getDirSizeAndFiles(filepath.Join(cm.directory, entry.Name()))
		if err != nil {
			return nil, err
		}
		info.Entries++
		info.TotalSize += size
		info.Files += files

		mod := fi.ModTime()
		if info.Oldest.IsZero() || mod.Before(info.Oldest) {
			info.Oldest = mod
		}
		if mod.After(info.Newest) {
			info.Newest = mod
		}
	}

	return info, nil
}

// GetDirectory returns the scratch directory path.
func (cm *DefaultManager) GetDirectory() string {
	return cm.directory
}

// SetDirectory sets the scratch directory path.
func (cm *DefaultManager) SetDirectory(dir string) error {
	if dir == "" {
		return ErrCacheDirectory
	}
	cm.directory = dir
	return nil
}

// getDirSizeAndFiles calculates the size and regular file count below path,
// which may itself be a file.
func getDirSizeAndFiles(path string) (size int64, count int, err error) {
	err = filepath.Walk(path, func(_ string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if info.Mode().IsRegular() {
			size += info.Size()
			count++
		}
		return nil
	})
	if err != nil {
		err = errors.Wrapf(err, "error walking %s", path)
	}
	return size, count, err
}
