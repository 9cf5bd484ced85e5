package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScratch_CleanupRemovesEverything(t *testing.T) {
	s, err := NewScratch(t.TempDir())
	require.NoError(t, err)

	file, err := s.TempFile("dl-*.tmp")
	require.NoError(t, err)
	dir, err := s.TempDir("extract-*")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("a"), FileModeDefault))

	require.NoError(t, s.Cleanup())

	assert.NoFileExists(t, file)
	assert.NoDirExists(t, dir)
}

func TestScratch_KeepTransfersOwnership(t *testing.T) {
	s, err := NewScratch(t.TempDir())
	require.NoError(t, err)

	keep, err := s.TempDir("bundle-*")
	require.NoError(t, err)
	drop, err := s.TempFile("archive-*.zip")
	require.NoError(t, err)

	s.Keep(keep)
	require.NoError(t, s.Cleanup())

	assert.DirExists(t, keep)
	assert.NoFileExists(t, drop)
}

func TestScratch_RemoveAndTrack(t *testing.T) {
	base := t.TempDir()
	s, err := NewScratch(base)
	require.NoError(t, err)

	external := filepath.Join(base, "external")
	require.NoError(t, os.Mkdir(external, DirModeDefault))
	s.Track(external)

	tmp, err := s.TempFile("x-*")
	require.NoError(t, err)
	require.NoError(t, s.Remove(tmp))
	assert.NoFileExists(t, tmp)

	require.NoError(t, s.Cleanup())
	assert.NoDirExists(t, external)
	assert.Equal(t, base, s.Dir())
}

func TestNewScratch_DefaultsToTempDir(t *testing.T) {
	s, err := NewScratch("")
	require.NoError(t, err)
	assert.Equal(t, os.TempDir(), s.Dir())
}
