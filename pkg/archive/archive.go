// Package archive extracts downloaded archives and creates new ones.
//
// Extraction runs an ordered list of strategies and stops at the first
// success. The primary strategy picks an unpacker from the file extension;
// the fallback identifies the format from the content signature, which
// covers misnamed files and the long tail of formats.
package archive

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/glorpus-work/onboard/internal/logger"
	onboarderrors "github.com/glorpus-work/onboard/pkg/errors"
	"github.com/glorpus-work/onboard/pkg/fsutil"
	"github.com/mholt/archives"
)

// Strategy is one way of unpacking an archive.
type Strategy interface {
	Name() string
	// CanHandle reports whether the strategy should be tried for path.
	CanHandle(path string) bool
	// Extract unpacks path into dir, which already exists.
	Extract(ctx context.Context, path, dir string) error
}

// Manager handles archive extraction and creation operations.
type Manager struct {
	strategies []Strategy
}

// NewManager creates a Manager with the default strategies: extension
// dispatch first, signature sniffing second.
func NewManager() *Manager {
	return NewManagerWithStrategies(formatStrategy{}, sniffStrategy{})
}

// NewManagerWithStrategies creates a Manager that tries strategies in order.
func NewManagerWithStrategies(strategies ...Strategy) *Manager {
	return &Manager{strategies: strategies}
}

// Extract unpacks archivePath into outputDir, creating it, and returns the
// absolute output directory. When every strategy fails the error is an
// *errors.ExtractionError whose cause is the last strategy's error. Partial
// output is left on disk.
func (am *Manager) Extract(ctx context.Context, archivePath, outputDir string) (string, error) {
	dir, _, err := am.extract(ctx, archivePath, outputDir)
	return dir, err
}

func (am *Manager) extract(ctx context.Context, archivePath, outputDir string) (string, string, error) {
	absOut, err := filepath.Abs(outputDir)
	if err != nil {
		return "", "", &onboarderrors.ExtractionError{Archive: archivePath, Cause: err}
	}
	if _, err := os.Stat(archivePath); err != nil {
		return "", "", &onboarderrors.ExtractionError{Archive: archivePath, Cause: err}
	}
	fresh := isEmptyOrMissing(absOut)
	if err := fsutil.EnsureDir(absOut); err != nil {
		return "", "", &onboarderrors.ExtractionError{Archive: archivePath, Cause: err}
	}

	var cause error
	attempted := false
	for _, s := range am.strategies {
		if !s.CanHandle(archivePath) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return "", "", &onboarderrors.ExtractionError{Archive: archivePath, Cause: err}
		}
		if attempted && fresh {
			// leftovers of a failed attempt must not leak into the next one
			if err := resetDir(absOut); err != nil {
				return "", "", &onboarderrors.ExtractionError{Archive: archivePath, Cause: err}
			}
		}
		attempted = true
		err := s.Extract(ctx, archivePath, absOut)
		if err == nil {
			logger.Debug("extracted archive", logger.Fields{"archive": archivePath, "strategy": s.Name(), "dir": absOut})
			return absOut, s.Name(), nil
		}
		logger.Debug("extraction strategy failed", logger.Fields{"archive": archivePath, "strategy": s.Name(), "error": err.Error()})
		cause = fmt.Errorf("%s: %w", s.Name(), err)
		if errors.Is(err, onboarderrors.ErrPathTraversal) {
			// a hostile archive is not retried with another unpacker
			break
		}
	}
	if cause == nil {
		cause = onboarderrors.ErrUnsupportedFormat
	}
	return "", "", &onboarderrors.ExtractionError{Archive: archivePath, Cause: cause}
}

func isEmptyOrMissing(dir string) bool {
	entries, err := os.ReadDir(dir)
	return err != nil || len(entries) == 0
}

func resetDir(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	return fsutil.EnsureDir(dir)
}

// Create creates an archive from the specified source directory. The format
// follows the extension of archivePath: .zip, .tar, .tar.gz/.tgz,
// .tar.zst/.tzst or .tar.xz/.txz; anything else is written as .tar.gz.
func (am *Manager) Create(ctx context.Context, sourceDir, archivePath string) error {
	absolutePath, err := filepath.Abs(sourceDir)
	if err != nil {
		return fmt.Errorf("failed to get absolute path for source directory: %w", err)
	}

	archiveFiles, err := archives.FilesFromDisk(ctx, nil, map[string]string{
		absolutePath + string(os.PathSeparator): "",
	})
	if err != nil {
		return fmt.Errorf("failed to read files from disk: %w", err)
	}

	if err := fsutil.EnsureFileDir(archivePath); err != nil {
		return fmt.Errorf("failed to create output directory for %s: %w", archivePath, err)
	}
	file, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("failed to create output file %s: %w", archivePath, err)
	}
	defer func() {
		_ = file.Sync()
		_ = file.Close()
	}()

	if err := archiverFor(archivePath).Archive(ctx, file, archiveFiles); err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}
	return nil
}

func archiverFor(archivePath string) archives.Archiver {
	name := strings.ToLower(archivePath)
	switch {
	case strings.HasSuffix(name, ".zip"):
		return archives.Zip{}
	case strings.HasSuffix(name, ".tar"):
		return archives.Tar{}
	case strings.HasSuffix(name, ".tar.zst"), strings.HasSuffix(name, ".tzst"):
		return archives.CompressedArchive{Compression: archives.Zstd{}, Archival: archives.Tar{}}
	case strings.HasSuffix(name, ".tar.xz"), strings.HasSuffix(name, ".txz"):
		return archives.CompressedArchive{Compression: archives.Xz{}, Archival: archives.Tar{}}
	default:
		return archives.CompressedArchive{Compression: archives.Gz{}, Archival: archives.Tar{}}
	}
}

// archiveExtensions are the suffixes recognised as archives by name, longest
// first so that ".tar.gz" wins over ".gz".
var archiveExtensions = []string{
	".tar.gz", ".tar.bz2", ".tar.xz", ".tar.zst", ".tar.lz4", ".tar.br", ".tar.sz", ".tar.lz",
	".tgz", ".tbz2", ".tbz", ".txz", ".tzst", ".tar", ".zip", ".7z", ".rar",
}

// IsArchiveName reports whether name carries a known archive extension.
func IsArchiveName(name string) bool {
	return archiveExt(name) != ""
}

// TrimArchiveExt strips a known archive extension from name.
func TrimArchiveExt(name string) string {
	return name[:len(name)-len(archiveExt(name))]
}

func archiveExt(name string) string {
	lower := strings.ToLower(name)
	for _, ext := range archiveExtensions {
		if strings.HasSuffix(lower, ext) && len(lower) > len(ext) {
			return ext
		}
	}
	return ""
}
