// Package model defines the entities produced by onboarding: tracked files,
// file bundles, provider records and the provenance attached to them.
package model

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/glorpus-work/onboard/pkg/checksum"
	onboarderrors "github.com/glorpus-work/onboard/pkg/errors"
)

// Metadata keys written by the onboarding pipelines.
const (
	MetadataDownloadInfo = "download_info"
	recordDataSuffix     = "_record_data"
)

// RecordDataKey returns the metadata key a provider record payload is stored
// under, e.g. "zenodo_record_data".
func RecordDataKey(provider string) string {
	return provider + recordDataSuffix
}

// File is one onboarded file.
type File struct {
	Path     string         `json:"path" yaml:"path" cbor:"path"`
	Name     string         `json:"name" yaml:"name" cbor:"name"`
	Size     int64          `json:"size" yaml:"size" cbor:"size"`
	Hash     string         `json:"hash" yaml:"hash" cbor:"hash"`
	Metadata map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty" cbor:"metadata,omitempty"`

	// owned is removed by Release; empty when the caller owns Path.
	owned string
}

// LoadFile stats and hashes the regular file at path.
func LoadFile(path, name string) (*File, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, onboarderrors.Wrapf(err, "resolving %s", path)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, onboarderrors.Wrapf(err, "can't create file from path '%s'", path)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("can't create file from path '%s': path is not a file: %w", path, onboarderrors.ErrInvalidPath)
	}
	sum, err := checksum.File(abs, "")
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = filepath.Base(abs)
	}
	return &File{Path: abs, Name: name, Size: sum.Size, Hash: sum.Hash}, nil
}

// SetMetadata stores value under key.
func (f *File) SetMetadata(key string, value any) {
	if f.Metadata == nil {
		f.Metadata = make(map[string]any)
	}
	f.Metadata[key] = value
}

// Own marks path (the file itself or a directory holding it) as ephemeral
// storage to be removed by Release.
func (f *File) Own(path string) { f.owned = path }

// Release removes ephemeral storage owned by the file. It is a no-op for
// files the caller already owns.
func (f *File) Release() error {
	if f.owned == "" {
		return nil
	}
	err := os.RemoveAll(f.owned)
	f.owned = ""
	return err
}

// FileBundle is a directory tree captured as a set of relative path to file
// mappings.
type FileBundle struct {
	Name          string           `json:"name" yaml:"name" cbor:"name"`
	Root          string           `json:"root" yaml:"root" cbor:"root"`
	IncludedFiles map[string]*File `json:"included_files" yaml:"included_files" cbor:"included_files"`
	Size          int64            `json:"size" yaml:"size" cbor:"size"`
	NumberOfFiles int              `json:"number_of_files" yaml:"number_of_files" cbor:"number_of_files"`
	Hash          string           `json:"hash" yaml:"hash" cbor:"hash"`
	Metadata      map[string]any   `json:"metadata,omitempty" yaml:"metadata,omitempty" cbor:"metadata,omitempty"`

	owned string
}

type manifestEntry struct {
	Path string `cbor:"path"`
	Hash string `cbor:"hash"`
	Size int64  `cbor:"size"`
}

// NewFileBundle builds a bundle from files keyed by forward-slash relative
// path and computes its size, file count and hash. The hash covers the
// sorted (path, hash, size) entries, so it is independent of walk order and
// of the bundle's location on disk.
func NewFileBundle(name, root string, files map[string]*File) (*FileBundle, error) {
	if files == nil {
		files = make(map[string]*File)
	}
	b := &FileBundle{Name: name, Root: root, IncludedFiles: files, NumberOfFiles: len(files)}
	entries := make([]manifestEntry, 0, len(files))
	for _, key := range b.Keys() {
		f := files[key]
		b.Size += f.Size
		entries = append(entries, manifestEntry{Path: key, Hash: f.Hash, Size: f.Size})
	}
	hash, err := checksum.Manifest(entries)
	if err != nil {
		return nil, err
	}
	b.Hash = hash
	return b, nil
}

// Keys returns the bundle's relative paths in sorted order.
func (b *FileBundle) Keys() []string {
	keys := make([]string, 0, len(b.IncludedFiles))
	for k := range b.IncludedFiles {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SetMetadata stores value under key on the bundle only.
func (b *FileBundle) SetMetadata(key string, value any) {
	if b.Metadata == nil {
		b.Metadata = make(map[string]any)
	}
	b.Metadata[key] = value
}

// SetFileMetadata stores value under key on every included file.
func (b *FileBundle) SetFileMetadata(key string, value any) {
	for _, f := range b.IncludedFiles {
		f.SetMetadata(key, value)
	}
}

// Own marks dir as ephemeral storage to be removed by Release.
func (b *FileBundle) Own(dir string) { b.owned = dir }

// Release removes ephemeral storage owned by the bundle.
func (b *FileBundle) Release() error {
	if b.owned == "" {
		return nil
	}
	err := os.RemoveAll(b.owned)
	b.owned = ""
	return err
}
