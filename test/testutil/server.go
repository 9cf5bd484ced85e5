// Package testutil holds fixtures shared by the command-level tests.
package testutil

import (
	"archive/zip"
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

// NewFileServer starts a server that answers GET requests for the given
// paths with fixed contents and 404 for everything else. It is closed when
// the test ends.
func NewFileServer(t *testing.T, files map[string][]byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := files[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// NewDirServer starts a server that serves the directory tree at dir.
func NewDirServer(t *testing.T, dir string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.FileServer(http.Dir(dir)))
	t.Cleanup(srv.Close)
	return srv
}

// ZipArchive builds an in-memory zip archive from name/content pairs.
func ZipArchive(t *testing.T, entries map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range entries {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("Failed to add %s to archive: %v", name, err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("Failed to write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("Failed to close archive: %v", err)
	}
	return buf.Bytes()
}

// WriteTree creates files below dir from slash-separated relative paths.
func WriteTree(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("Failed to create directory for %s: %v", name, err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("Failed to write %s: %v", name, err)
		}
	}
}

// TestConfig is an isolated configuration file with its own scratch and
// hook directories.
type TestConfig struct {
	Path       string
	ScratchDir string
	HooksDir   string
}

// SetupTestConfig writes a configuration file into a temporary directory.
// extra is appended verbatim and may add top-level sections such as
// providers.
func SetupTestConfig(t *testing.T, extra string) TestConfig {
	t.Helper()

	tempDir := t.TempDir()
	cfg := TestConfig{
		Path:       filepath.Join(tempDir, "config.yaml"),
		ScratchDir: filepath.Join(tempDir, "scratch"),
		HooksDir:   filepath.Join(tempDir, "hooks"),
	}

	content := fmt.Sprintf("settings:\n  scratch_dir: %s\n  hooks_dir: %s\n  http_timeout: 10s\n%s", cfg.ScratchDir, cfg.HooksDir, extra)
	if err := os.WriteFile(cfg.Path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	return cfg
}
