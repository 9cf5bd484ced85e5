package fsutil

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureDir(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T) string
	}{
		{
			name: "creates new directory",
			setup: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "newdir")
			},
		},
		{
			name: "creates nested directories",
			setup: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "parent", "child", "nested")
			},
		},
		{
			name: "succeeds when directory already exists",
			setup: func(t *testing.T) string {
				return t.TempDir()
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := tt.setup(t)
			require.NoError(t, EnsureDir(path))
			assert.DirExists(t, path)
		})
	}
}

func TestEnsureDir_EmptyPath(t *testing.T) {
	assert.Error(t, EnsureDir(""))
	assert.Error(t, EnsureFileDir(""))
}

func TestEnsureFileDir(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "nested", "parent", "file.txt")

	require.NoError(t, EnsureFileDir(filePath))
	assert.DirExists(t, filepath.Dir(filePath))

	if runtime.GOOS != "windows" {
		info, err := os.Stat(filepath.Dir(filePath))
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(DirModeDefault), info.Mode().Perm())
	}
}

func TestEnsureDir_PermissionDenied(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced here")
	}

	readonlyDir := filepath.Join(t.TempDir(), "readonly")
	require.NoError(t, os.Mkdir(readonlyDir, 0o555))

	err := EnsureDir(filepath.Join(readonlyDir, "shouldfail"))
	assert.Error(t, err)
}
