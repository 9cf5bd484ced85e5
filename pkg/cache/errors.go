package cache

import "fmt"

// Common cache errors.
var (
	// ErrCacheDirectory is returned when there's an error with the scratch directory.
	ErrCacheDirectory = fmt.Errorf("invalid scratch directory")
)
