package model

import (
	"os"
	"path/filepath"
	"testing"

	onboarderrors "github.com/glorpus-work/onboard/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.csv")
	writeFile(t, path, "a,b\n1,2\n")

	f, err := LoadFile(path, "")
	require.NoError(t, err)
	assert.Equal(t, "data.csv", f.Name)
	assert.Equal(t, int64(8), f.Size)
	assert.Len(t, f.Hash, 64)

	named, err := LoadFile(path, "renamed.csv")
	require.NoError(t, err)
	assert.Equal(t, "renamed.csv", named.Name)
	assert.Equal(t, f.Hash, named.Hash)

	_, err = LoadFile(dir, "")
	assert.ErrorIs(t, err, onboarderrors.ErrInvalidPath)

	_, err = LoadFile(filepath.Join(dir, "missing"), "")
	assert.Error(t, err)
}

func TestFile_ReleaseRemovesOwnedStorage(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "owned")
	path := filepath.Join(dir, "x.txt")
	writeFile(t, path, "x")

	f, err := LoadFile(path, "")
	require.NoError(t, err)
	require.NoError(t, f.Release())
	assert.FileExists(t, path)

	f.Own(dir)
	require.NoError(t, f.Release())
	assert.NoDirExists(t, dir)
	assert.NoError(t, f.Release())
}

func TestNewFileBundle(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "x.txt"), "xx")
	writeFile(t, filepath.Join(dir, "b", "y.txt"), "yyy")

	x, err := LoadFile(filepath.Join(dir, "x.txt"), "x.txt")
	require.NoError(t, err)
	y, err := LoadFile(filepath.Join(dir, "b", "y.txt"), "y.txt")
	require.NoError(t, err)

	b, err := NewFileBundle("sample", dir, map[string]*File{"x.txt": x, "b/y.txt": y})
	require.NoError(t, err)
	assert.Equal(t, []string{"b/y.txt", "x.txt"}, b.Keys())
	assert.Equal(t, int64(5), b.Size)
	assert.Equal(t, 2, b.NumberOfFiles)
	assert.Len(t, b.Hash, 64)

	relocated, err := NewFileBundle("other", t.TempDir(), map[string]*File{"b/y.txt": y, "x.txt": x})
	require.NoError(t, err)
	assert.Equal(t, b.Hash, relocated.Hash)

	renamed, err := NewFileBundle("sample", dir, map[string]*File{"z.txt": x, "b/y.txt": y})
	require.NoError(t, err)
	assert.NotEqual(t, b.Hash, renamed.Hash)
}

func TestFileBundle_MetadataIsIndependent(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "x.txt"), "x")
	x, err := LoadFile(filepath.Join(dir, "x.txt"), "")
	require.NoError(t, err)
	b, err := NewFileBundle("b", dir, map[string]*File{"x.txt": x})
	require.NoError(t, err)

	b.SetMetadata(MetadataDownloadInfo, DownloadInfo{URL: "https://example.org/b.zip"})
	assert.Empty(t, x.Metadata)

	b.SetFileMetadata("other", 1)
	assert.Equal(t, 1, x.Metadata["other"])
	assert.NotContains(t, b.Metadata, "other")
}

func TestRecord_Lookup(t *testing.T) {
	r := &Record{
		Provider: "zenodo",
		ID:       "10.5281/zenodo.123",
		Files: []RemoteFile{
			{Key: "b.csv", URL: "https://example.org/b.csv"},
			{Key: "a.csv", URL: "https://example.org/a.csv"},
		},
	}

	f, err := r.Lookup("a.csv")
	require.NoError(t, err)
	assert.Equal(t, "https://example.org/a.csv", f.URL)

	_, err = r.Lookup("c.csv")
	require.Error(t, err)
	assert.ErrorIs(t, err, onboarderrors.ErrNotFound)
	var nf *onboarderrors.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, []string{"a.csv", "b.csv"}, nf.Available)
	assert.Contains(t, err.Error(), "  - a.csv")
}

func TestRecord_MatchVersion(t *testing.T) {
	tests := []struct {
		name       string
		version    string
		constraint string
		want       bool
		wantErr    bool
	}{
		{name: "empty constraint", version: "anything", constraint: "", want: true},
		{name: "satisfied", version: "1.2.0", constraint: ">= 1.0", want: true},
		{name: "not satisfied", version: "0.9.0", constraint: ">= 1.0", want: false},
		{name: "non semantic version", version: "v-final", constraint: ">= 1.0", want: false},
		{name: "invalid constraint", version: "1.0.0", constraint: "not a constraint", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &Record{Version: tt.version}
			got, err := r.MatchVersion(tt.constraint)
			if tt.wantErr {
				assert.ErrorIs(t, err, onboarderrors.ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestImportConfig(t *testing.T) {
	var zero *ImportConfig
	assert.True(t, zero.IsZero())
	assert.True(t, zero.Accept("a/.DS_Store"))
	assert.False(t, zero.SkipDir("a/.git"))

	c := &ImportConfig{
		IncludeFiles: []string{".csv", ".txt"},
		ExcludeDirs:  []string{".git"},
		ExcludeFiles: []string{"skip.txt"},
	}
	assert.False(t, c.IsZero())
	assert.True(t, c.Accept("data/a.csv"))
	assert.True(t, c.Accept("readme.txt"))
	assert.False(t, c.Accept("image.png"))
	assert.False(t, c.Accept("sub/skip.txt"))
	assert.True(t, c.SkipDir("sub/.git"))
	assert.False(t, c.SkipDir("sub/src"))

	// patterns are suffixes, not globs
	glob := &ImportConfig{IncludeFiles: []string{"*.csv"}}
	assert.False(t, glob.Accept("data/a.csv"))
	assert.True(t, glob.Accept("literal*.csv"))
}
