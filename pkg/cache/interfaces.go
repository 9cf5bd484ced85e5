package cache

import "time"

// Manager defines the interface for scratch store management operations.
type Manager interface {
	Clean(options CleanOptions) (*CleanResult, error)
	GetInfo() (*Info, error)
	GetDirectory() string
	SetDirectory(dir string) error
}

// CleanOptions specifies what to remove from the scratch store.
type CleanOptions struct {
	// OlderThan keeps entries modified more recently than this; zero removes
	// every entry.
	OlderThan time.Duration
	// DryRun reports what would be removed without removing it.
	DryRun bool
}

// CleanResult contains information about what was cleaned.
type CleanResult struct {
	TotalFreed int64
	Removed    []string
	Kept       int
}

// Info represents scratch store information. Each top-level entry is the
// result or leftover of one onboarding run.
type Info struct {
	Directory string
	TotalSize int64
	Entries   int
	Files     int
	Oldest    time.Time
	Newest    time.Time
}
