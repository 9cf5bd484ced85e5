package fsutil

// File and directory permission constants used for downloaded, extracted
// and staged data.
const (
	FileModeDefault = 0o644 // -rw-r--r--
	FileModeSecure  = 0o640 // -rw-r-----

	DirModeDefault = 0o755 // drwxr-xr-x
	DirModeSecure  = 0o750 // drwxr-x---
	DirModePrivate = 0o700 // drwx------
)
