package download

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	onboarderrors "github.com/glorpus-work/onboard/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeebo/blake3"
)

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestNewManager(t *testing.T) {
	tests := []struct {
		name       string
		timeout    time.Duration
		userAgent  string
		expectedUA string
	}{
		{
			name:       "default user agent",
			timeout:    time.Second,
			expectedUA: "onboard/1.0",
		},
		{
			name:       "custom user agent",
			timeout:    2 * time.Second,
			userAgent:  "test-agent/1.0",
			expectedUA: "test-agent/1.0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager(tt.timeout, tt.userAgent)
			require.NotNil(t, m)
			assert.Equal(t, tt.timeout, m.client.Timeout)
			assert.Equal(t, tt.expectedUA, m.userAgent)
		})
	}
}

func TestFetch_SizeAndHash(t *testing.T) {
	payload := strings.Repeat("0123456789", 1000)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test", r.Header.Get("User-Agent"))
		w.Header().Set("X-Served-By", "test")
		_, _ = w.Write([]byte(payload))
	}))
	defer server.Close()

	dir := t.TempDir()
	m := NewManager(5*time.Second, "test")
	res, err := m.Fetch(context.Background(), Item{ID: "a", URL: mustParse(t, server.URL+"/data/table.csv")}, Options{Dir: dir})
	require.NoError(t, err)

	content, err := os.ReadFile(res.File.Path)
	require.NoError(t, err)
	assert.Equal(t, payload, string(content))
	assert.Equal(t, int64(10000), res.File.Size)

	b3 := blake3.Sum256([]byte(payload))
	assert.Equal(t, hex.EncodeToString(b3[:]), res.File.Hash)
	assert.Equal(t, "table.csv", res.File.Name)
	assert.True(t, strings.HasSuffix(res.File.Path, "table.csv"), res.File.Path)
	assert.True(t, filepath.IsAbs(res.File.Path))

	assert.Equal(t, server.URL+"/data/table.csv", res.Info.URL)
	require.Len(t, res.Info.ResponseHeaders, 1)
	assert.Equal(t, "test", res.Info.ResponseHeaders[0]["X-Served-By"])
	assert.False(t, res.Info.RequestTime.IsZero())
	assert.Empty(t, res.Info.Checksum)
}

func TestFetch_TargetPathAndFileName(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("test content"))
	}))
	defer server.Close()

	dir := t.TempDir()
	target := filepath.Join(dir, "nested", "out.txt")
	m := NewManager(time.Second, "test")

	res, err := m.Fetch(context.Background(), Item{
		ID:         "t",
		URL:        mustParse(t, server.URL+"/whatever"),
		TargetPath: target,
		FileName:   "display.txt",
	}, Options{Dir: dir})
	require.NoError(t, err)

	assert.Equal(t, target, res.File.Path)
	assert.Equal(t, "display.txt", res.File.Name)
	assert.Equal(t, []string{"out.txt"}, listDir(t, filepath.Dir(target)))
}

func TestFetch_Errors(t *testing.T) {
	tests := []struct {
		name       string
		handler    http.HandlerFunc
		statusCode int
	}{
		{
			name:       "not found",
			handler:    func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNotFound) },
			statusCode: http.StatusNotFound,
		},
		{
			name:       "server error",
			handler:    func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusInternalServerError) },
			statusCode: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			dir := t.TempDir()
			m := NewManager(time.Second, "test")

			_, err := m.Fetch(context.Background(), Item{ID: "x", URL: mustParse(t, server.URL)}, Options{Dir: dir})
			require.Error(t, err)
			assert.ErrorIs(t, err, onboarderrors.ErrFetch)

			var fetchErr *onboarderrors.FetchError
			require.ErrorAs(t, err, &fetchErr)
			assert.Equal(t, tt.statusCode, fetchErr.StatusCode)
			assert.Contains(t, err.Error(), "unexpected status code")
			assert.Empty(t, listDir(t, dir))
		})
	}
}

func TestFetch_InvalidURL(t *testing.T) {
	m := NewManager(time.Second, "test")
	for _, raw := range []string{"ftp://example.org/a", "relative/path"} {
		_, err := m.Fetch(context.Background(), Item{ID: "x", URL: mustParse(t, raw)}, Options{Dir: t.TempDir()})
		assert.ErrorIs(t, err, onboarderrors.ErrFetch, raw)
		assert.ErrorIs(t, err, onboarderrors.ErrInvalidURL, raw)
	}

	_, err := m.Fetch(context.Background(), Item{ID: "x", URL: mustParse(t, "https://example.org")}, Options{Dir: "relative"})
	assert.ErrorIs(t, err, onboarderrors.ErrInvalidPath)
}

func TestFetch_UnknownChecksumAlgorithm(t *testing.T) {
	m := NewManager(time.Second, "test")
	raw := "https://example.org/data/file.bin"
	dir := t.TempDir()

	_, err := m.Fetch(context.Background(), Item{ID: "x", URL: mustParse(t, raw), Checksum: "sha3-256:abcd"}, Options{Dir: dir})
	require.Error(t, err)
	assert.ErrorIs(t, err, onboarderrors.ErrFetch)
	assert.ErrorIs(t, err, onboarderrors.ErrInvalidInput)

	var fetchErr *onboarderrors.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, raw, fetchErr.URL)
	assert.Empty(t, listDir(t, dir))
}

func TestFetch_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	m := NewManager(50*time.Millisecond, "test")
	_, err := m.Fetch(context.Background(), Item{ID: "slow", URL: mustParse(t, server.URL)}, Options{Dir: t.TempDir()})
	require.Error(t, err)

	var fetchErr *onboarderrors.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.True(t, fetchErr.Timeout)
}

func TestFetch_WithChecksum(t *testing.T) {
	const content = "test content"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(content))
	}))
	defer server.Close()

	tests := []struct {
		name        string
		checksum    string
		digest      string
		expectError bool
	}{
		{name: "tagged md5", checksum: "md5:" + md5Hex(content)},
		{name: "untagged defaults to md5", checksum: md5Hex(content)},
		{name: "explicit sha256", checksum: "sha256:6ae8a75555209fd6c44157c0aed8016e763ff435a19cf186f76863140143ff72"},
		{name: "mismatch", checksum: "md5:deadbeef", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			m := NewManager(time.Second, "test")

			res, err := m.Fetch(context.Background(), Item{
				ID:       "c",
				URL:      mustParse(t, server.URL+"/file.txt"),
				Checksum: tt.checksum,
			}, Options{Dir: dir})

			if tt.expectError {
				require.Error(t, err)
				assert.ErrorIs(t, err, onboarderrors.ErrIntegrity)
				var integrity *onboarderrors.IntegrityError
				require.ErrorAs(t, err, &integrity)
				assert.Equal(t, "deadbeef", integrity.Expected)
				assert.Equal(t, md5Hex(content), integrity.Actual)
				assert.Contains(t, integrity.Subject, "/file.txt")
				assert.Empty(t, listDir(t, dir))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.checksum, res.Info.Checksum)
		})
	}
}

func TestFetch_RecordsRedirectHeaders(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/start", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Hop", "start")
		http.Redirect(w, r, "/final", http.StatusFound)
	})
	mux.HandleFunc("/final", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("X-Hop", "final")
		_, _ = w.Write([]byte("ok"))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	m := NewManager(time.Second, "test")
	res, err := m.Fetch(context.Background(), Item{ID: "r", URL: mustParse(t, server.URL+"/start")}, Options{Dir: t.TempDir()})
	require.NoError(t, err)

	require.Len(t, res.Info.ResponseHeaders, 2)
	assert.Equal(t, "final", res.Info.ResponseHeaders[0]["X-Hop"])
	assert.Equal(t, "start", res.Info.ResponseHeaders[1]["X-Hop"])
	assert.Equal(t, server.URL+"/start", res.Info.URL)
}

type recordingProgress struct {
	mu      sync.Mutex
	written int64
	done    []error
}

func (p *recordingProgress) Start(Item, int64) io.Writer { return p }

func (p *recordingProgress) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.written += int64(len(b))
	return len(b), nil
}

func (p *recordingProgress) Done(_ Item, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done = append(p.done, err)
}

func TestFetch_Progress(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("twelve bytes"))
	}))
	defer server.Close()

	p := &recordingProgress{}
	m := NewManager(time.Second, "test")
	m.SetProgress(p)

	_, err := m.Fetch(context.Background(), Item{ID: "p", URL: mustParse(t, server.URL)}, Options{Dir: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, int64(12), p.written)
	assert.Equal(t, []error{nil}, p.done)
}

func TestFetchAll_Concurrent(t *testing.T) {
	const numItems = 5
	serverResponses := make(map[string]string)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Path[1:]
		content, exists := serverResponses[id]
		if !exists {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(content))
	}))
	defer server.Close()

	var items []Item
	for i := 0; i < numItems; i++ {
		id := string(rune('a' + i))
		serverResponses[id] = "content for " + id
		items = append(items, Item{ID: id, URL: mustParse(t, server.URL+"/"+id)})
	}

	tests := []struct {
		name        string
		concurrency int
	}{
		{name: "default concurrency", concurrency: 0},
		{name: "three workers", concurrency: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			staging := t.TempDir()
			batch := make([]Item, len(items))
			for i, it := range items {
				it.TargetPath = filepath.Join(staging, "files", it.ID+".txt")
				batch[i] = it
			}

			m := NewManager(5*time.Second, "test")
			results, err := m.FetchAll(context.Background(), batch, Options{Dir: staging, Concurrency: tt.concurrency})
			require.NoError(t, err)
			require.Len(t, results, numItems)

			for _, item := range batch {
				res, ok := results[item.ID]
				require.True(t, ok, "missing result for %s", item.ID)
				assert.Equal(t, item.TargetPath, res.File.Path)

				content, err := os.ReadFile(res.File.Path)
				require.NoError(t, err)
				assert.Equal(t, serverResponses[item.ID], string(content))
			}
		})
	}
}

func TestFetchAll_FirstFailureCancelsBatch(t *testing.T) {
	var slowStarted, slowCancelled atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/bad":
			for !slowStarted.Load() {
				time.Sleep(5 * time.Millisecond)
			}
			_, _ = w.Write([]byte("corrupted"))
		case "/slow":
			slowStarted.Store(true)
			select {
			case <-r.Context().Done():
				slowCancelled.Store(true)
			case <-time.After(10 * time.Second):
				_, _ = w.Write([]byte("too late"))
			}
		default:
			_, _ = w.Write([]byte("fine"))
		}
	}))
	defer server.Close()

	staging := t.TempDir()
	items := []Item{
		{ID: "ok", URL: mustParse(t, server.URL+"/ok"), TargetPath: filepath.Join(staging, "ok.txt")},
		{ID: "slow", URL: mustParse(t, server.URL+"/slow"), TargetPath: filepath.Join(staging, "slow.txt")},
		{ID: "bad", URL: mustParse(t, server.URL+"/bad"), TargetPath: filepath.Join(staging, "bad.txt"), Checksum: "md5:" + md5Hex("expected")},
	}

	m := NewManager(30*time.Second, "test")
	start := time.Now()
	results, err := m.FetchAll(context.Background(), items, Options{Dir: staging, Concurrency: 3})

	require.Error(t, err)
	assert.ErrorIs(t, err, onboarderrors.ErrIntegrity)
	assert.Nil(t, results)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Eventually(t, slowCancelled.Load, 2*time.Second, 10*time.Millisecond)
	assert.Empty(t, listDir(t, staging))
}

func TestFetchAll_RejectsDuplicateIDs(t *testing.T) {
	m := NewManager(time.Second, "test")
	u := mustParse(t, "https://example.org/a")
	_, err := m.FetchAll(context.Background(), []Item{{ID: "a", URL: u}, {ID: "a", URL: u}}, Options{Dir: t.TempDir()})
	assert.ErrorIs(t, err, onboarderrors.ErrInvalidInput)
}

func TestTempPattern(t *testing.T) {
	item := Item{URL: mustParse(t, "https://example.org/files/archive.tar.gz")}
	assert.Equal(t, "dl-*-archive.tar.gz", tempPattern(item))

	item = Item{URL: mustParse(t, "https://example.org/")}
	assert.Equal(t, "dl-*.tmp", tempPattern(item))
}

var _ Manager = (*ManagerImpl)(nil)
