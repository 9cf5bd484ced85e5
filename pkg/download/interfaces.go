package download

import (
	"context"
	"io"
	"net/url"

	"github.com/glorpus-work/onboard/pkg/model"
)

//go:generate mockgen -destination=../pipeline/mocks/download.go -package=mocks . Manager

// Manager downloads remote resources to local files, hashing them on the
// way and verifying provider checksums before a file is finalized.
type Manager interface {
	// FetchAll downloads all items with bounded concurrency. The first
	// failure cancels the remaining downloads and every file written by the
	// batch is removed. The result maps Item.ID to its Result.
	FetchAll(ctx context.Context, items []Item, opts Options) (map[string]*Result, error)

	// Fetch downloads a single item.
	Fetch(ctx context.Context, item Item, opts Options) (*Result, error)
}

// Item represents one remote resource to download.
type Item struct {
	ID  string   // stable identifier, unique within a batch
	URL *url.URL // absolute http or https URL
	// TargetPath is the final location of the file. When empty the file
	// stays at its temporary path inside Options.Dir.
	TargetPath string
	// FileName is the display name; derived from the URL when empty.
	FileName string
	// Checksum is an optional provider checksum such as "md5:<hex>".
	Checksum string
	// Digest selects the secondary digest to compute. It defaults to the
	// checksum's algorithm tag, or md5.
	Digest string
}

// Options control the behavior of the download manager.
type Options struct {
	Dir         string // directory for temporary files; must be absolute
	Concurrency int    // number of parallel downloads; if <=0, a sane default is used
}

// Result describes a completed download.
type Result struct {
	File      *model.File
	Secondary string // hex secondary digest
	Info      model.DownloadInfo
}

// Progress receives download progress. Start is called once the response
// headers arrived (total is -1 when the length is unknown) and returns a
// writer fed with every body chunk; Done is called when the item finished.
type Progress interface {
	Start(item Item, total int64) io.Writer
	Done(item Item, err error)
}
