package resolver

import (
	"fmt"
	"strings"

	onboarderrors "github.com/glorpus-work/onboard/pkg/errors"
)

const (
	zenodoScheme    = "zenodo:"
	zenodoMarker    = "/zenodo."
	zenodoDOIPrefix = "10.5281"
)

// Reference points at a provider record and optionally a file inside it.
type Reference struct {
	Provider string
	ID       string
	Path     string
}

// IsRecordURI reports whether uri addresses a provider record.
func IsRecordURI(uri string) bool {
	return strings.HasPrefix(uri, zenodoScheme) || strings.Contains(uri, zenodoMarker)
}

// ParseURI parses "zenodo:<doi>[/<path>]", "zenodo:<id>[/<path>]" and any
// string containing "<registrant>/zenodo.<id>[/<path>]", such as a doi.org
// URL.
func ParseURI(uri string) (Reference, error) {
	if !IsRecordURI(uri) {
		return Reference{}, fmt.Errorf("%s: %w", uri, onboarderrors.ErrUnsupportedSource)
	}
	rest := strings.TrimPrefix(uri, zenodoScheme)

	registrant := zenodoDOIPrefix
	if idx := strings.Index(rest, zenodoMarker); idx >= 0 {
		head := rest[:idx]
		if slash := strings.LastIndex(head, "/"); slash >= 0 {
			head = head[slash+1:]
		}
		if head != "" {
			registrant = head
		}
		rest = rest[idx+len(zenodoMarker):]
	}

	id, path, _ := strings.Cut(strings.TrimPrefix(rest, "/"), "/")
	if id == "" {
		return Reference{}, fmt.Errorf("can't parse Zenodo DOI from URI %q: %w", uri, onboarderrors.ErrInvalidInput)
	}
	return Reference{
		Provider: ZenodoProvider,
		ID:       registrant + zenodoMarker + id,
		Path:     strings.Trim(path, "/"),
	}, nil
}

// NormalizeDOI expands a bare Zenodo record number to its DOI.
func NormalizeDOI(doi string) string {
	if strings.Contains(doi, zenodoMarker) {
		return doi
	}
	return zenodoDOIPrefix + zenodoMarker + doi
}
