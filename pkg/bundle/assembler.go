// Package bundle turns a directory tree into a FileBundle.
package bundle

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	onboarderrors "github.com/glorpus-work/onboard/pkg/errors"
	"github.com/glorpus-work/onboard/pkg/fsutil"
	"github.com/glorpus-work/onboard/pkg/model"
)

// Options control how a bundle is assembled.
type Options struct {
	// SubPath restricts the bundle to this relative directory below root.
	SubPath string
	// Name is the bundle name; defaults to the base name of the effective
	// root.
	Name string
	// Import filters files after sub-path filtering.
	Import *model.ImportConfig
}

// Assembler walks directory trees into bundles.
type Assembler struct{}

// NewAssembler returns an Assembler.
func NewAssembler() *Assembler { return &Assembler{} }

// Assemble walks root (or root/SubPath) and returns one File per regular
// file, keyed by forward-slash path relative to the effective root.
// Symlinks and special files are skipped.
func (a *Assembler) Assemble(root string, opts Options) (*model.FileBundle, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, &onboarderrors.AssemblyError{Root: root, Cause: err}
	}
	effective, err := effectiveRoot(absRoot, opts.SubPath)
	if err != nil {
		return nil, &onboarderrors.AssemblyError{Root: root, Cause: err}
	}

	files := make(map[string]*model.File)
	walkErr := filepath.WalkDir(effective, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == effective {
			return nil
		}
		rel, err := filepath.Rel(effective, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if opts.Import.SkipDir(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || !opts.Import.Accept(rel) {
			return nil
		}
		f, err := model.LoadFile(path, d.Name())
		if err != nil {
			return err
		}
		files[rel] = f
		return nil
	})
	if walkErr != nil {
		return nil, &onboarderrors.AssemblyError{Root: effective, Cause: walkErr}
	}

	name := opts.Name
	if name == "" {
		name = filepath.Base(effective)
	}
	b, err := model.NewFileBundle(name, effective, files)
	if err != nil {
		return nil, &onboarderrors.AssemblyError{Root: effective, Cause: err}
	}
	return b, nil
}

func effectiveRoot(root, subPath string) (string, error) {
	dir := root
	if subPath != "" {
		joined, err := fsutil.SafeJoin(root, filepath.ToSlash(subPath))
		if err != nil {
			return "", fmt.Errorf("sub path %q: %w", subPath, err)
		}
		// a link inside the tree may not lead the bundle out of it
		resolved, err := fsutil.EvalWithin(root, filepath.ToSlash(subPath))
		if err != nil {
			return "", fmt.Errorf("sub path %q: %w", subPath, err)
		}
		dir = joined
		if info, err := os.Lstat(joined); err == nil && info.Mode()&fs.ModeSymlink != 0 {
			dir = resolved
		}
	}
	info, err := os.Stat(dir)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s is not a directory: %w", dir, onboarderrors.ErrInvalidPath)
	}
	return dir, nil
}
