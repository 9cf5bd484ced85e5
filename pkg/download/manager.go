package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/glorpus-work/onboard/internal/logger"
	"github.com/glorpus-work/onboard/pkg/checksum"
	onboarderrors "github.com/glorpus-work/onboard/pkg/errors"
	"github.com/glorpus-work/onboard/pkg/fsutil"
	"github.com/glorpus-work/onboard/pkg/model"
)

const maxRedirects = 10

// ManagerImpl is an HTTP download manager. Bodies are streamed to disk and
// hashed in the same pass; nothing is buffered in memory. There is no retry.
type ManagerImpl struct {
	client    *http.Client
	userAgent string
	progress  Progress
}

// NewManager creates a new download manager with the given per-request
// timeout and user agent.
func NewManager(timeout time.Duration, userAgent string) *ManagerImpl {
	if userAgent == "" {
		userAgent = "onboard/1.0"
	}
	return &ManagerImpl{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
	}
}

// SetProgress installs a progress sink used for every subsequent download.
func (m *ManagerImpl) SetProgress(p Progress) { m.progress = p }

// FetchAll downloads multiple items concurrently and returns a map of item
// IDs to results. It returns either every result or an error, never a
// partial map.
func (m *ManagerImpl) FetchAll(ctx context.Context, items []Item, opts Options) (map[string]*Result, error) {
	if opts.Concurrency <= 0 {
		opts.Concurrency = max(2, runtime.NumCPU()/2)
	}
	if err := prepareDir(opts.Dir); err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(items))
	for i, it := range items {
		if it.URL == nil {
			return nil, &onboarderrors.FetchError{URL: fmt.Sprintf("item %d", i), Err: onboarderrors.ErrInvalidURL}
		}
		if seen[it.ID] {
			return nil, fmt.Errorf("duplicate item id %q: %w", it.ID, onboarderrors.ErrInvalidInput)
		}
		seen[it.ID] = true
	}

	results, err := m.runDownloadWorkers(ctx, items, opts)
	if err != nil {
		return nil, err
	}
	out := make(map[string]*Result, len(items))
	for i, it := range items {
		out[it.ID] = results[i]
	}
	return out, nil
}

// Fetch downloads a single item.
func (m *ManagerImpl) Fetch(ctx context.Context, item Item, opts Options) (*Result, error) {
	if err := prepareDir(opts.Dir); err != nil {
		return nil, err
	}
	return m.fetchOne(ctx, item, opts)
}

func prepareDir(dir string) error {
	if dir == "" || !filepath.IsAbs(dir) {
		return fmt.Errorf("download dir must be absolute: %s: %w", dir, onboarderrors.ErrInvalidPath)
	}
	if err := os.MkdirAll(dir, fsutil.DirModeSecure); err != nil {
		return onboarderrors.Wrap(err, "could not create download dir")
	}
	return nil
}

func (m *ManagerImpl) runDownloadWorkers(ctx context.Context, items []Item, opts Options) ([]*Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([]*Result, len(items))
	var firstErr error
	var mu sync.Mutex

	tasks := make(chan int)
	var wg sync.WaitGroup

	for w := 0; w < opts.Concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range tasks {
				res, err := m.fetchOne(ctx, items[idx], opts)
				mu.Lock()
				if err != nil {
					if firstErr == nil {
						firstErr = err
						cancel()
					}
				} else {
					results[idx] = res
				}
				mu.Unlock()
			}
		}()
	}

feed:
	for i := range items {
		select {
		case tasks <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(tasks)
	wg.Wait()

	if firstErr == nil && ctx.Err() != nil {
		firstErr = &onboarderrors.FetchError{URL: "batch", Err: ctx.Err()}
	}
	if firstErr != nil {
		for _, res := range results {
			if res != nil {
				_ = os.Remove(res.File.Path)
			}
		}
		return nil, firstErr
	}
	return results, nil
}

func (m *ManagerImpl) fetchOne(ctx context.Context, item Item, opts Options) (res *Result, err error) {
	if item.URL == nil || !item.URL.IsAbs() || (item.URL.Scheme != "http" && item.URL.Scheme != "https") {
		raw := ""
		if item.URL != nil {
			raw = item.URL.String()
		}
		return nil, &onboarderrors.FetchError{URL: raw, Err: onboarderrors.ErrInvalidURL}
	}
	rawURL := item.URL.String()
	if m.progress != nil {
		defer func() { m.progress.Done(item, err) }()
	}

	secondary := item.Digest
	if secondary == "" && item.Checksum != "" {
		secondary = checksum.SecondaryFor(item.Checksum)
	}
	digester, err := checksum.NewDigester(secondary)
	if err != nil {
		return nil, &onboarderrors.FetchError{URL: rawURL, Err: err}
	}

	tmpDir := opts.Dir
	if item.TargetPath != "" {
		if err := fsutil.EnsureFileDir(item.TargetPath); err != nil {
			return nil, &onboarderrors.FetchError{URL: rawURL, Err: err}
		}
		tmpDir = filepath.Dir(item.TargetPath)
	}

	info := model.DownloadInfo{URL: rawURL, RequestTime: time.Now().UTC()}
	resp, redirects, err := m.doRequest(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	info.ResponseHeaders = append([]map[string]string{flattenHeader(resp.Header)}, redirects...)

	var sink io.Writer
	if m.progress != nil {
		sink = m.progress.Start(item, resp.ContentLength)
	}
	tmpPath, err := writeBodyToTemp(resp.Body, tmpDir, tempPattern(item), digester, sink)
	if err != nil {
		return nil, classify(rawURL, err)
	}

	if item.Checksum != "" {
		if err := checksum.Verify(item.Checksum, digester.Secondary()); err != nil {
			_ = os.Remove(tmpPath)
			var integrity *onboarderrors.IntegrityError
			if errors.As(err, &integrity) {
				integrity.Subject = rawURL
			}
			return nil, err
		}
		info.Checksum = item.Checksum
	}

	finalPath := tmpPath
	if item.TargetPath != "" {
		if err := finalizeFile(tmpPath, item.TargetPath); err != nil {
			_ = os.Remove(tmpPath)
			return nil, &onboarderrors.FetchError{URL: rawURL, Err: err}
		}
		finalPath = item.TargetPath
	}
	if abs, err := filepath.Abs(finalPath); err == nil {
		finalPath = abs
	}

	logger.Debug("downloaded file", logger.Fields{"url": rawURL, "path": finalPath, "size": digester.Size()})
	return &Result{
		File: &model.File{
			Path: finalPath,
			Name: displayName(item),
			Size: digester.Size(),
			Hash: digester.Hash(),
		},
		Secondary: digester.Secondary(),
		Info:      info,
	}, nil
}

// doRequest issues the GET and records the headers of every redirect
// response, most recent first.
func (m *ManagerImpl) doRequest(ctx context.Context, rawURL string) (*http.Response, []map[string]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, nil, &onboarderrors.FetchError{URL: rawURL, Err: err}
	}
	req.Header.Set("User-Agent", m.userAgent)

	var redirects []map[string]string
	client := *m.client
	client.CheckRedirect = func(r *http.Request, via []*http.Request) error {
		if len(via) >= maxRedirects {
			return fmt.Errorf("stopped after %d redirects", maxRedirects)
		}
		if r.Response != nil {
			redirects = append([]map[string]string{flattenHeader(r.Response.Header)}, redirects...)
		}
		return nil
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, nil, classify(rawURL, err)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, nil, &onboarderrors.FetchError{URL: rawURL, StatusCode: resp.StatusCode}
	}
	return resp, redirects, nil
}

func writeBodyToTemp(body io.Reader, dir, pattern string, digester *checksum.Digester, progress io.Writer) (string, error) {
	tmp, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return "", onboarderrors.Wrap(err, "could not create temp file")
	}
	tmpPath := tmp.Name()
	fail := func(err error, msg string) (string, error) {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return "", onboarderrors.Wrap(err, msg)
	}

	writers := []io.Writer{tmp, digester}
	if progress != nil {
		writers = append(writers, progress)
	}
	if _, err := io.Copy(io.MultiWriter(writers...), body); err != nil {
		return fail(err, "could not write file")
	}
	if err := tmp.Sync(); err != nil {
		return fail(err, "could not sync file")
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return "", onboarderrors.Wrap(err, "could not close file")
	}
	return tmpPath, nil
}

func finalizeFile(tmpPath, absPath string) error {
	if err := fsutil.Move(tmpPath, absPath); err != nil {
		return onboarderrors.Wrap(err, "could not finalize file")
	}
	if err := os.Chmod(absPath, fsutil.FileModeDefault); err != nil {
		return onboarderrors.Wrap(err, "could not set permissions")
	}
	return nil
}

// classify turns a transport error into a FetchError, flagging timeouts.
func classify(rawURL string, err error) error {
	var fetchErr *onboarderrors.FetchError
	if errors.As(err, &fetchErr) {
		return err
	}
	var netErr net.Error
	timeout := errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout())
	return &onboarderrors.FetchError{URL: rawURL, Timeout: timeout, Err: err}
}

// displayName picks the file name: the requested one, else the last URL
// path segment.
func displayName(item Item) string {
	if item.FileName != "" {
		return item.FileName
	}
	if item.TargetPath != "" {
		return filepath.Base(item.TargetPath)
	}
	if base := path.Base(item.URL.Path); base != "/" && base != "." && base != "" {
		return base
	}
	return item.URL.Host
}

// tempPattern keeps the URL's file name as suffix so that extension based
// format detection still works on the temporary file.
func tempPattern(item Item) string {
	name := displayName(item)
	if item.TargetPath == "" {
		name = path.Base(item.URL.Path)
	}
	name = strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == '*' || r == os.PathSeparator {
			return '_'
		}
		return r
	}, name)
	if name == "" || name == "." || name == "_" {
		return "dl-*.tmp"
	}
	return "dl-*-" + name
}

func flattenHeader(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = strings.Join(v, ", ")
	}
	return out
}
