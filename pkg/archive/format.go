package archive

import (
	"archive/tar"
	"archive/zip"
	"compress/bzip2"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	onboarderrors "github.com/glorpus-work/onboard/pkg/errors"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// formatStrategy selects the unpacker from the file extension.
type formatStrategy struct{}

type tarDecompressor func(io.Reader) (io.Reader, func(), error)

var tarFormats = []struct {
	exts []string
	open tarDecompressor
}{
	{exts: []string{".tar.gz", ".tgz"}, open: func(r io.Reader) (io.Reader, func(), error) {
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, nil, err
		}
		return gz, func() { _ = gz.Close() }, nil
	}},
	{exts: []string{".tar.bz2", ".tbz2", ".tbz"}, open: func(r io.Reader) (io.Reader, func(), error) {
		return bzip2.NewReader(r), func() {}, nil
	}},
	{exts: []string{".tar.xz", ".txz"}, open: func(r io.Reader) (io.Reader, func(), error) {
		xr, err := xz.NewReader(r)
		if err != nil {
			return nil, nil, err
		}
		return xr, func() {}, nil
	}},
	{exts: []string{".tar.zst", ".tzst"}, open: func(r io.Reader) (io.Reader, func(), error) {
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, nil, err
		}
		return zr, zr.Close, nil
	}},
	{exts: []string{".tar"}, open: func(r io.Reader) (io.Reader, func(), error) {
		return r, func() {}, nil
	}},
}

func (formatStrategy) Name() string { return "format" }

func (formatStrategy) CanHandle(path string) bool {
	lower := strings.ToLower(path)
	if strings.HasSuffix(lower, ".zip") {
		return true
	}
	return tarOpener(lower) != nil
}

func (formatStrategy) Extract(ctx context.Context, path, dir string) error {
	lower := strings.ToLower(path)
	if strings.HasSuffix(lower, ".zip") {
		return extractZip(ctx, path, dir)
	}
	open := tarOpener(lower)
	if open == nil {
		return onboarderrors.ErrUnsupportedFormat
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	r, closeFn, err := open(f)
	if err != nil {
		return fmt.Errorf("failed to open decompressor: %w", err)
	}
	defer closeFn()
	return extractTar(ctx, r, dir)
}

func tarOpener(lowerPath string) tarDecompressor {
	for _, format := range tarFormats {
		for _, ext := range format.exts {
			if strings.HasSuffix(lowerPath, ext) {
				return format.open
			}
		}
	}
	return nil
}

func extractTar(ctx context.Context, r io.Reader, dir string) error {
	w := entryWriter{root: dir}
	tr := tar.NewReader(r)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read tar entry: %w", err)
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			err = w.dir(hdr.Name)
		case tar.TypeSymlink:
			err = w.symlink(hdr.Name, hdr.Linkname)
		case tar.TypeLink:
			err = w.hardlink(hdr.Name, hdr.Linkname)
		default:
			if !hdr.FileInfo().Mode().IsRegular() {
				continue
			}
			err = w.file(hdr.Name, hdr.FileInfo().Mode(), hdr.ModTime, tr)
		}
		if err != nil {
			return err
		}
	}
}

func extractZip(ctx context.Context, path, dir string) error {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return fmt.Errorf("failed to open zip archive: %w", err)
	}
	defer func() { _ = zr.Close() }()

	w := entryWriter{root: dir}
	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := extractZipEntry(w, f); err != nil {
			return err
		}
	}
	return nil
}

func extractZipEntry(w entryWriter, f *zip.File) error {
	mode := f.Mode()
	if mode.IsDir() || strings.HasSuffix(f.Name, "/") {
		return w.dir(f.Name)
	}
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("failed to open zip entry %s: %w", f.Name, err)
	}
	defer func() { _ = rc.Close() }()

	if mode&os.ModeSymlink != 0 {
		target, err := io.ReadAll(rc)
		if err != nil {
			return fmt.Errorf("failed to read symlink target %s: %w", f.Name, err)
		}
		return w.symlink(f.Name, string(target))
	}
	if !mode.IsRegular() {
		return nil
	}
	return w.file(f.Name, mode, f.Modified, rc)
}
