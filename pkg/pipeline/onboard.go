package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/glorpus-work/onboard/pkg/archive"
	onboarderrors "github.com/glorpus-work/onboard/pkg/errors"
	"github.com/glorpus-work/onboard/pkg/model"
	"github.com/glorpus-work/onboard/pkg/resolver"
)

// SourceType names a way of onboarding a source.
type SourceType string

// Supported source types.
const (
	SourceLocal  SourceType = "local_file"
	SourceURL    SourceType = "url"
	SourceZenodo SourceType = resolver.ZenodoProvider
)

// SourceTypes lists every source type in detection order.
var SourceTypes = []SourceType{SourceLocal, SourceURL, SourceZenodo}

// Accepts reports whether t can onboard source. For bundles a local source
// must be a directory or an archive file.
func (t SourceType) Accepts(source string, asBundle bool) bool {
	switch t {
	case SourceLocal:
		info, err := os.Stat(source)
		if err != nil {
			return false
		}
		if !asBundle {
			return info.Mode().IsRegular()
		}
		return info.IsDir() || (info.Mode().IsRegular() && archive.IsArchiveName(filepath.Base(source)))
	case SourceURL:
		return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
	case SourceZenodo:
		return resolver.IsRecordURI(source)
	default:
		return false
	}
}

// DetectSource picks the source type for source. It fails when no type or
// more than one type accepts the source; requested overrides detection but
// must accept the source.
func DetectSource(source string, requested SourceType, asBundle bool) (SourceType, error) {
	if requested != "" {
		known := false
		for _, t := range SourceTypes {
			known = known || t == requested
		}
		if !known {
			return "", fmt.Errorf("onboard type '%s': %w", requested, onboarderrors.ErrUnsupportedSource)
		}
		if !requested.Accepts(source, asBundle) {
			return "", fmt.Errorf("can't onboard '%s' using onboard type '%s': %w", source, requested, onboarderrors.ErrUnsupportedSource)
		}
		return requested, nil
	}
	var matches []string
	var match SourceType
	for _, t := range SourceTypes {
		if t.Accepts(source, asBundle) {
			matches = append(matches, string(t))
			match = t
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("can't onboard '%s': no onboard type accepts this source: %w", source, onboarderrors.ErrUnsupportedSource)
	case 1:
		return match, nil
	default:
		return "", fmt.Errorf("can't onboard '%s': onboard types %s all accept this source, specify one: %w",
			source, strings.Join(matches, ", "), onboarderrors.ErrAmbiguousSource)
	}
}

// OnboardRequest onboards a single file from any supported source.
type OnboardRequest struct {
	Source         string
	Type           SourceType
	FileName       string
	AttachMetadata bool
}

// OnboardBundleRequest onboards a bundle from any supported source.
type OnboardBundleRequest struct {
	Source         string
	Type           SourceType
	Name           string
	SubPath        string
	Import         *model.ImportConfig
	AttachToBundle bool
	AttachToFiles  bool
}

// Onboard dispatches req.Source to the matching file pipeline.
func (o *Orchestrator) Onboard(ctx context.Context, req OnboardRequest) (*model.File, error) {
	t, err := DetectSource(req.Source, req.Type, false)
	if err != nil {
		return nil, err
	}
	switch t {
	case SourceLocal:
		return o.ImportFile(ctx, req.Source, req.FileName)
	case SourceURL:
		return o.FetchFile(ctx, FileRequest{URL: req.Source, FileName: req.FileName, AttachMetadata: req.AttachMetadata})
	default:
		ref, err := resolver.ParseURI(req.Source)
		if err != nil {
			return nil, err
		}
		return o.FetchRecordFile(ctx, RecordFileRequest{
			Provider:       ref.Provider,
			ID:             ref.ID,
			Path:           ref.Path,
			FileName:       req.FileName,
			AttachMetadata: req.AttachMetadata,
		})
	}
}

// OnboardBundle dispatches req.Source to the matching bundle pipeline. A
// record URI with a file path treats that file as an archive.
func (o *Orchestrator) OnboardBundle(ctx context.Context, req OnboardBundleRequest) (*model.FileBundle, error) {
	t, err := DetectSource(req.Source, req.Type, true)
	if err != nil {
		return nil, err
	}
	switch t {
	case SourceLocal:
		return o.ImportFolder(ctx, FolderRequest{Path: req.Source, Name: req.Name, SubPath: req.SubPath, Import: req.Import})
	case SourceURL:
		return o.FetchBundle(ctx, BundleRequest{
			URL:            req.Source,
			SubPath:        req.SubPath,
			Name:           req.Name,
			Import:         req.Import,
			AttachToBundle: req.AttachToBundle,
			AttachToFiles:  req.AttachToFiles,
		})
	default:
		ref, err := resolver.ParseURI(req.Source)
		if err != nil {
			return nil, err
		}
		return o.FetchRecordBundle(ctx, RecordBundleRequest{
			Provider:       ref.Provider,
			ID:             ref.ID,
			Name:           req.Name,
			Archive:        ref.Path,
			SubPath:        req.SubPath,
			Import:         req.Import,
			AttachToBundle: req.AttachToBundle,
			AttachToFiles:  req.AttachToFiles,
		})
	}
}
