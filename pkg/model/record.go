package model

import (
	"sort"

	onboarderrors "github.com/glorpus-work/onboard/pkg/errors"
	"github.com/hashicorp/go-version"
)

// RemoteFile is one downloadable file listed by a provider record.
type RemoteFile struct {
	Key      string `json:"key" yaml:"key" cbor:"key"`
	URL      string `json:"url" yaml:"url" cbor:"url"`
	Checksum string `json:"checksum,omitempty" yaml:"checksum,omitempty" cbor:"checksum,omitempty"`
	Size     int64  `json:"size,omitempty" yaml:"size,omitempty" cbor:"size,omitempty"`
}

// Record is a provider's description of a dataset release.
type Record struct {
	Provider string         `json:"provider" yaml:"provider" cbor:"provider"`
	ID       string         `json:"id" yaml:"id" cbor:"id"`
	Version  string         `json:"version,omitempty" yaml:"version,omitempty" cbor:"version,omitempty"`
	Files    []RemoteFile   `json:"files" yaml:"files" cbor:"files"`
	Data     map[string]any `json:"data,omitempty" yaml:"data,omitempty" cbor:"data,omitempty"`
}

// Lookup returns the file stored under key. A missing key yields a
// NotFoundError listing every available key.
func (r *Record) Lookup(key string) (RemoteFile, error) {
	for _, f := range r.Files {
		if f.Key == key {
			return f, nil
		}
	}
	return RemoteFile{}, &onboarderrors.NotFoundError{
		Subject:   r.Provider + " record '" + r.ID + "'",
		Key:       key,
		Available: r.Keys(),
	}
}

// Keys returns the sorted keys of the record's files.
func (r *Record) Keys() []string {
	keys := make([]string, 0, len(r.Files))
	for _, f := range r.Files {
		keys = append(keys, f.Key)
	}
	sort.Strings(keys)
	return keys
}

// MatchVersion reports whether the record's version satisfies the given
// constraint. An empty constraint matches every record.
func (r *Record) MatchVersion(versionConstraint string) (bool, error) {
	if versionConstraint == "" {
		return true, nil
	}
	constraint, err := version.NewConstraint(versionConstraint)
	if err != nil {
		return false, onboarderrors.Wrapf(onboarderrors.ErrInvalidInput, "version constraint %q: %v", versionConstraint, err)
	}
	v := r.GetVersion()
	if v == nil {
		return false, nil
	}
	return constraint.Check(v), nil
}

// GetVersion returns the parsed record version, or nil when the provider
// version is not a semantic version.
func (r *Record) GetVersion() *version.Version {
	v, err := version.NewVersion(r.Version)
	if err != nil {
		return nil
	}
	return v
}
