package cache

import (
	"fmt"
	"strings"
	"time"

	"github.com/glorpus-work/onboard/internal/logger"
)

// Operation renders scratch store operations for humans.
type Operation struct {
	manager Manager
}

// NewOperation creates a new operation instance.
func NewOperation(manager Manager) *Operation {
	return &Operation{
		manager: manager,
	}
}

// Clean cleans the scratch store and describes the outcome.
func (op *Operation) Clean(olderThan time.Duration, dryRun bool) (string, error) {
	logger.Debug("Cleaning scratch store", logger.Fields{
		"directory":  op.manager.GetDirectory(),
		"older_than": olderThan.String(),
		"dry_run":    dryRun,
	})

	result, err := op.manager.Clean(CleanOptions{OlderThan: olderThan, DryRun: dryRun})
	if err != nil {
		return "", fmt.Errorf("failed to clean scratch store: %w", err)
	}

	if len(result.Removed) == 0 {
		return "No entries were removed from the scratch store.", nil
	}

	verb := "Removed"
	if dryRun {
		verb = "Would remove"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s %d entries, %s of disk space.", verb, len(result.Removed), formatBytes(result.TotalFreed))
	for _, name := range result.Removed {
		fmt.Fprintf(&b, "\n- %s", name)
	}
	return b.String(), nil
}

// GetInfo describes the scratch store.
func (op *Operation) GetInfo() (string, error) {
	info, err := op.manager.GetInfo()
	if err != nil {
		return "", fmt.Errorf("failed to get scratch store info: %w", err)
	}

	oldest, newest := "-", "-"
	if !info.Oldest.IsZero() {
		oldest = info.Oldest.Format(time.RFC1123)
		newest = info.Newest.Format(time.RFC1123)
	}

	return fmt.Sprintf(`Scratch Store:
  Directory:  %s
  Total Size: %s
  Entries:    %d (%d files)
  Oldest:     %s
  Newest:     %s`,
		info.Directory,
		formatBytes(info.TotalSize),
		info.Entries,
		info.Files,
		oldest,
		newest,
	), nil
}

// GetDirectory returns the scratch directory path.
func (op *Operation) GetDirectory() string {
	return op.manager.GetDirectory()
}

// formatBytes converts bytes to a human-readable string.
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}

	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	units := []string{"K", "M", "G", "T", "P", "E"}
	if exp < len(units) {
		return fmt.Sprintf("%.1f %sB", float64(bytes)/float64(div), units[exp])
	}
	return fmt.Sprintf("%d B", bytes)
}
