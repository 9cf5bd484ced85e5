package model

import (
	"path"
	"strings"
	"time"
)

// DownloadInfo is the provenance stored under the "download_info" metadata
// key.
type DownloadInfo struct {
	URL             string              `json:"url" yaml:"url" cbor:"url"`
	ResponseHeaders []map[string]string `json:"response_headers" yaml:"response_headers" cbor:"response_headers"`
	RequestTime     time.Time           `json:"request_time" yaml:"request_time" cbor:"request_time"`
	Checksum        string              `json:"checksum,omitempty" yaml:"checksum,omitempty" cbor:"checksum,omitempty"`
	SubPath         string              `json:"sub_path,omitempty" yaml:"sub_path,omitempty" cbor:"sub_path,omitempty"`
	ImportConfig    *ImportConfig       `json:"import_config,omitempty" yaml:"import_config,omitempty" cbor:"import_config,omitempty"`
}

// ImportConfig selects which files of a directory tree become part of a
// bundle. All matching is done on base names by suffix; the zero value
// imports every regular file.
type ImportConfig struct {
	// IncludeFiles keeps only files whose name ends with one of the entries.
	IncludeFiles []string `json:"include_files,omitempty" yaml:"include_files,omitempty" cbor:"include_files,omitempty"`
	// ExcludeDirs skips directories whose name ends with one of the entries.
	ExcludeDirs []string `json:"exclude_dirs,omitempty" yaml:"exclude_dirs,omitempty" cbor:"exclude_dirs,omitempty"`
	// ExcludeFiles drops files whose name ends with one of the entries.
	// It takes precedence over IncludeFiles.
	ExcludeFiles []string `json:"exclude_files,omitempty" yaml:"exclude_files,omitempty" cbor:"exclude_files,omitempty"`
}

// IsZero reports whether c imports everything.
func (c *ImportConfig) IsZero() bool {
	return c == nil || (len(c.IncludeFiles) == 0 && len(c.ExcludeDirs) == 0 && len(c.ExcludeFiles) == 0)
}

// SkipDir reports whether the directory at the forward-slash relative path
// rel should not be descended into.
func (c *ImportConfig) SkipDir(rel string) bool {
	if c == nil {
		return false
	}
	return hasSuffix(path.Base(rel), c.ExcludeDirs)
}

// Accept reports whether the file at the forward-slash relative path rel
// should be imported.
func (c *ImportConfig) Accept(rel string) bool {
	if c == nil {
		return true
	}
	name := path.Base(rel)
	if hasSuffix(name, c.ExcludeFiles) {
		return false
	}
	return len(c.IncludeFiles) == 0 || hasSuffix(name, c.IncludeFiles)
}

func hasSuffix(name string, suffixes []string) bool {
	for _, s := range suffixes {
		if s != "" && strings.HasSuffix(name, s) {
			return true
		}
	}
	return false
}
