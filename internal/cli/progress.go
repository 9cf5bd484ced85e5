package cli

import (
	"io"
	"sync"
	"time"

	"github.com/glorpus-work/onboard/pkg/download"
	"github.com/schollz/progressbar/v3"
)

// progressReporter draws one byte-counting bar per download.
type progressReporter struct {
	w    io.Writer
	mu   sync.Mutex
	bars map[string]*progressbar.ProgressBar
}

func newProgressReporter(w io.Writer) *progressReporter {
	return &progressReporter{w: w, bars: make(map[string]*progressbar.ProgressBar)}
}

var _ download.Progress = (*progressReporter)(nil)

// Start implements download.Progress. A total of -1 renders a spinner.
func (p *progressReporter) Start(item download.Item, total int64) io.Writer {
	bar := progressbar.NewOptions64(total,
		progressbar.OptionSetWriter(p.w),
		progressbar.OptionSetDescription(displayName(item)),
		progressbar.OptionSetWidth(ProgressWidth),
		progressbar.OptionShowBytes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionThrottle(ProgressThrottle*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)

	p.mu.Lock()
	p.bars[item.ID] = bar
	p.mu.Unlock()
	return bar
}

// Done implements download.Progress.
func (p *progressReporter) Done(item download.Item, _ error) {
	p.mu.Lock()
	bar, ok := p.bars[item.ID]
	delete(p.bars, item.ID)
	p.mu.Unlock()
	if ok {
		_ = bar.Finish()
	}
}

func displayName(item download.Item) string {
	if item.FileName != "" {
		return item.FileName
	}
	if item.URL != nil {
		return item.URL.String()
	}
	return item.ID
}
