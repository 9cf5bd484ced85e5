package fsutil

import (
	"os"
	"path/filepath"
)

// AppName is the name of the application used in paths.
const AppName = "onboard"

// GetCacheDir returns the platform-specific cache directory for the application.
// On Linux: ~/.cache/onboard/
// On macOS: ~/Library/Caches/onboard/
// On Windows: %LOCALAPPDATA%\onboard\
func GetCacheDir() (string, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cacheDir, AppName), nil
}

// GetScratchDir returns the default parent directory for per-invocation
// scratch space: <cache_dir>/scratch/
func GetScratchDir() (string, error) {
	cacheDir, err := GetCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cacheDir, "scratch"), nil
}

// GetConfigDir returns the platform-specific configuration directory.
// On Linux: ~/.config/onboard/
func GetConfigDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, AppName), nil
}
