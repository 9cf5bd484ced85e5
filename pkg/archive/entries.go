package archive

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	onboarderrors "github.com/glorpus-work/onboard/pkg/errors"
	"github.com/glorpus-work/onboard/pkg/fsutil"
)

// entryWriter materializes archive entries below root. Every name goes
// through fsutil.ResolveWithin, so no entry can land outside root, not even
// by way of links written by earlier entries.
type entryWriter struct {
	root string
}

func (w entryWriter) dir(name string) error {
	target, err := fsutil.ResolveWithin(w.root, name)
	if err != nil {
		return err
	}
	return os.MkdirAll(target, fsutil.DirModeDefault)
}

func (w entryWriter) file(name string, mode fs.FileMode, modTime time.Time, r io.Reader) error {
	target, err := fsutil.ResolveWithin(w.root, name)
	if err != nil {
		return err
	}
	// a link left by an earlier entry is replaced, never written through
	if info, err := os.Lstat(target); err == nil && info.Mode()&fs.ModeSymlink != 0 {
		if err := os.Remove(target); err != nil {
			return fmt.Errorf("failed to replace symlink %s: %w", target, err)
		}
	}
	perm := mode.Perm() | 0o600
	dst, err := fsutil.CreateFilePerm(target, perm)
	if err != nil {
		return fmt.Errorf("failed to create destination file %s: %w", target, err)
	}
	if _, err := io.Copy(dst, r); err != nil {
		_ = dst.Close()
		return fmt.Errorf("failed to copy file %s: %w", name, err)
	}
	if err := dst.Close(); err != nil {
		return err
	}
	if err := os.Chmod(target, perm); err != nil {
		return fmt.Errorf("failed to set permissions for %s: %w", target, err)
	}
	if !modTime.IsZero() {
		if err := os.Chtimes(target, modTime, modTime); err != nil {
			return fmt.Errorf("failed to set modification time for %s: %w", target, err)
		}
	}
	return nil
}

// symlink refuses to replace anything already on disk: a link checked
// against the current tree must keep meaning the same thing.
func (w entryWriter) symlink(name, linkTarget string) error {
	target, err := fsutil.ResolveWithin(w.root, name)
	if err != nil {
		return err
	}
	if _, err := os.Lstat(target); !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("symlink %s: refusing to replace an existing entry: %w", name, onboarderrors.ErrPathTraversal)
	}
	if err := fsutil.EnsureFileDir(target); err != nil {
		return fmt.Errorf("failed to create parent directory for symlink %s: %w", name, err)
	}
	if err := fsutil.SafeLinkTarget(w.root, target, linkTarget); err != nil {
		return err
	}
	return os.Symlink(filepath.FromSlash(linkTarget), target)
}

func (w entryWriter) hardlink(name, linkName string) error {
	target, err := fsutil.ResolveWithin(w.root, name)
	if err != nil {
		return err
	}
	source, err := fsutil.ResolveWithin(w.root, linkName)
	if err != nil {
		return err
	}
	info, err := os.Lstat(source)
	if err != nil {
		return fmt.Errorf("hardlink %s -> %s: %w", name, linkName, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("hardlink %s -> %s: source is not a regular file: %w", name, linkName, onboarderrors.ErrPathTraversal)
	}
	if err := fsutil.EnsureFileDir(target); err != nil {
		return err
	}
	if info, err := os.Lstat(target); err == nil && !info.IsDir() {
		_ = os.Remove(target)
	}
	return os.Link(source, target)
}
