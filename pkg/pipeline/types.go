//go:generate mockgen -destination=./mocks/pipeline.go -package=mocks . Extractor,Assembler,HookRunner

package pipeline

import (
	"context"

	"github.com/glorpus-work/onboard/pkg/bundle"
	"github.com/glorpus-work/onboard/pkg/hooks"
	"github.com/glorpus-work/onboard/pkg/model"
)

// Extractor is the subset of the archive manager used by the orchestrator.
type Extractor interface {
	Extract(ctx context.Context, archivePath, outputDir string) (string, error)
}

// Assembler builds bundles from directory trees.
type Assembler interface {
	Assemble(root string, opts bundle.Options) (*model.FileBundle, error)
}

// HookRunner runs user scripts after pipeline stages.
type HookRunner interface {
	Execute(ctx context.Context, hookType hooks.HookType, hctx hooks.HookContext) error
}

// Pipeline phases reported through Hooks.
const (
	PhaseResolving  = "resolving"
	PhaseFetching   = "fetching"
	PhaseVerifying  = "verifying"
	PhaseExtracting = "extracting"
	PhaseAssembling = "assembling"
	PhaseDone       = "done"
	PhaseFailed     = "failed"
)

// Event represents a simple progress notification.
type Event struct {
	Phase string // resolving|fetching|verifying|extracting|assembling|done|failed
	ID    string // run ID
	Msg   string
}

// Hooks carries callbacks for progress events.
type Hooks struct {
	OnEvent func(Event)
}

// FileRequest onboards a single file from a URL.
type FileRequest struct {
	URL        string
	FileName   string
	TargetPath string
	// AttachMetadata stores the download_info provenance on the file.
	AttachMetadata bool
}

// BundleRequest onboards an archive from a URL as a bundle.
type BundleRequest struct {
	URL     string
	SubPath string
	Name    string
	Import  *model.ImportConfig
	// AttachToBundle and AttachToFiles control independently where the
	// download_info provenance is stored.
	AttachToBundle bool
	AttachToFiles  bool
}

// RecordFileRequest onboards one file of a provider record.
type RecordFileRequest struct {
	Provider          string
	ID                string
	Path              string
	FileName          string
	AttachMetadata    bool
	VersionConstraint string
}

// RecordBundleRequest onboards a provider record as a bundle. With Archive
// empty every file of the record becomes a bundle member; otherwise Archive
// names a record file that is downloaded and extracted.
type RecordBundleRequest struct {
	Provider          string
	ID                string
	Name              string
	Archive           string
	SubPath           string
	Import            *model.ImportConfig
	AttachToBundle    bool
	AttachToFiles     bool
	Concurrency       int
	VersionConstraint string
}

// FolderRequest onboards a local directory or archive as a bundle.
type FolderRequest struct {
	Path    string
	Name    string
	SubPath string
	Import  *model.ImportConfig
}
