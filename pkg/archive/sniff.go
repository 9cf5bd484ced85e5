package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	onboarderrors "github.com/glorpus-work/onboard/pkg/errors"
	"github.com/mholt/archives"
)

// sniffStrategy identifies the format from the content signature alone, so
// misnamed files are handled. It also decompresses single compressed files.
type sniffStrategy struct{}

func (sniffStrategy) Name() string { return "sniff" }

func (sniffStrategy) CanHandle(string) bool { return true }

func (sniffStrategy) Extract(ctx context.Context, path, dir string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	format, _, err := archives.Identify(ctx, "", f)
	if errors.Is(err, archives.NoMatch) {
		return fmt.Errorf("%w: %v", onboarderrors.ErrUnsupportedFormat, err)
	}
	if err != nil {
		return fmt.Errorf("failed to identify archive format: %w", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return err
	}

	if ex, ok := format.(archives.Extractor); ok {
		w := entryWriter{root: dir}
		return ex.Extract(ctx, f, func(ctx context.Context, info archives.FileInfo) error {
			return writeFileInfo(w, info)
		})
	}
	if dc, ok := format.(archives.Decompressor); ok {
		return decompressSingle(dc, format.Extension(), path, f, dir)
	}
	return fmt.Errorf("%w: %s", onboarderrors.ErrUnsupportedFormat, format.Extension())
}

func writeFileInfo(w entryWriter, info archives.FileInfo) error {
	mode := info.Mode()
	switch {
	case info.IsDir():
		return w.dir(info.NameInArchive)
	case mode&os.ModeSymlink != 0:
		return w.symlink(info.NameInArchive, info.LinkTarget)
	case info.LinkTarget != "" && mode.IsRegular():
		return w.hardlink(info.NameInArchive, info.LinkTarget)
	case !mode.IsRegular():
		return nil
	}
	src, err := info.Open()
	if err != nil {
		return fmt.Errorf("failed to open archive entry %s: %w", info.NameInArchive, err)
	}
	defer func() { _ = src.Close() }()
	return w.file(info.NameInArchive, mode, info.ModTime(), src)
}

// decompressSingle writes the decompressed stream as one file named after
// the source with the compression extension removed.
func decompressSingle(dc archives.Decompressor, ext, path string, r io.Reader, dir string) error {
	rc, err := dc.OpenReader(r)
	if err != nil {
		return fmt.Errorf("failed to open decompressor: %w", err)
	}
	defer func() { _ = rc.Close() }()

	name := filepath.Base(path)
	trimmed := strings.TrimSuffix(name, ext)
	if trimmed == name || trimmed == "" {
		trimmed = strings.TrimSuffix(name, filepath.Ext(name))
	}
	if trimmed == "" {
		trimmed = "data"
	}
	return entryWriter{root: dir}.file(trimmed, 0o644, time.Time{}, rc)
}
