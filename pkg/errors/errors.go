// Package errors defines the error taxonomy shared by the onboarding
// pipeline together with small wrapping helpers.
//
// Every stage failure is reported as one of the typed errors below. Each
// typed error matches its sentinel through errors.Is, so callers can branch
// on the kind without caring about the concrete type:
//
//	if errors.Is(err, onboarderrors.ErrIntegrity) { ... }
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Taxonomy sentinels.
var (
	// ErrFetch is returned for network, HTTP status and write failures while downloading.
	ErrFetch = fmt.Errorf("fetch failed")
	// ErrIntegrity is returned when a downloaded file does not match the provider checksum.
	ErrIntegrity = fmt.Errorf("integrity check failed")
	// ErrExtraction is returned when no strategy could unpack an archive.
	ErrExtraction = fmt.Errorf("extraction failed")
	// ErrNotFound is returned when a requested key is absent from a resolved record.
	ErrNotFound = fmt.Errorf("not found")
	// ErrAssembly is returned when a bundle could not be built from a directory tree.
	ErrAssembly = fmt.Errorf("assembly failed")
)

// Supporting errors.
var (
	ErrInvalidPath        = fmt.Errorf("invalid path")
	ErrInvalidURL         = fmt.Errorf("invalid url")
	ErrPathTraversal      = fmt.Errorf("path escapes destination directory")
	ErrUnsupportedFormat  = fmt.Errorf("unsupported archive format")
	ErrUnknownProvider    = fmt.Errorf("unknown provider")
	ErrUnsupportedSource  = fmt.Errorf("unsupported source")
	ErrAmbiguousSource    = fmt.Errorf("ambiguous source")
	ErrInvalidRecord      = fmt.Errorf("invalid record")
	ErrVersionConstraint  = fmt.Errorf("record version does not satisfy constraint")
	ErrInvalidInput       = fmt.Errorf("invalid input")
	ErrInvalidSchema      = fmt.Errorf("invalid schema")
	ErrUnknownModule      = fmt.Errorf("unknown module")
	ErrNotConfigured      = fmt.Errorf("component is not configured")
	ErrEmptyConfigPath    = fmt.Errorf("config file path cannot be empty")
	ErrInvalidConfigPath  = fmt.Errorf("invalid config file path")
	ErrConfigParse        = fmt.Errorf("failed to parse config")
	ErrConfigValidation   = fmt.Errorf("invalid configuration")
	ErrConfigEncode       = fmt.Errorf("failed to encode config")
	ErrConfigDirectory    = fmt.Errorf("failed to create config directory")
	ErrConfigFileCreate   = fmt.Errorf("failed to create config file")
	ErrConfigFileRename   = fmt.Errorf("failed to rename temporary config file")
	ErrConfigFileChmod    = fmt.Errorf("failed to set config file permissions")
	ErrConfigMarshal      = fmt.Errorf("failed to marshal config")
	ErrUnknownConfigKey   = fmt.Errorf("unknown configuration key")
	ErrConfigFileExists   = fmt.Errorf("configuration file already exists (use --force to overwrite)")
	ErrInvalidLogLevel    = fmt.Errorf("invalid log level")
	ErrInvalidOutputFmt   = fmt.Errorf("invalid output format")
	ErrHTTPTimeoutInvalid = fmt.Errorf("http_timeout must be positive")
	ErrMaxConcurrent      = fmt.Errorf("max_concurrent must be at least 1")
	ErrHookExecution      = fmt.Errorf("error executing hook")
	ErrHookScript         = fmt.Errorf("hook script error")
)

// FetchError reports a failed download.
type FetchError struct {
	URL        string
	StatusCode int
	Timeout    bool
	Err        error
}

func (e *FetchError) Error() string {
	switch {
	case e.Timeout:
		return fmt.Sprintf("fetch %s: timeout: %v", e.URL, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("fetch %s: unexpected status code: %d", e.URL, e.StatusCode)
	default:
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	}
}

func (e *FetchError) Unwrap() error { return e.Err }

// Is reports whether target is ErrFetch.
func (e *FetchError) Is(target error) bool { return target == ErrFetch }

// IntegrityError reports a checksum mismatch. Subject names the file or URL
// that was verified.
type IntegrityError struct {
	Subject  string
	Expected string
	Actual   string
}

func (e *IntegrityError) Error() string {
	if e.Subject == "" {
		return fmt.Sprintf("invalid checksum: expected %s, got %s", e.Expected, e.Actual)
	}
	return fmt.Sprintf("invalid checksum for %s: expected %s, got %s", e.Subject, e.Expected, e.Actual)
}

// Is reports whether target is ErrIntegrity.
func (e *IntegrityError) Is(target error) bool { return target == ErrIntegrity }

// ExtractionError reports that an archive could not be unpacked. Cause is the
// error of the last strategy that was tried and is never nil.
type ExtractionError struct {
	Archive string
	Cause   error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("could not extract archive %s: %v", e.Archive, e.Cause)
}

func (e *ExtractionError) Unwrap() error { return e.Cause }

// Is reports whether target is ErrExtraction.
func (e *ExtractionError) Is(target error) bool { return target == ErrExtraction }

// NotFoundError reports a key missing from a resolved record and lists the
// keys that are available.
type NotFoundError struct {
	Subject   string
	Key       string
	Available []string
}

func (e *NotFoundError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "can't find file '%s' in %s. Available files:", e.Key, e.Subject)
	for _, k := range e.Available {
		b.WriteString("\n  - ")
		b.WriteString(k)
	}
	return b.String()
}

// Is reports whether target is ErrNotFound.
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// AssemblyError reports a failure while walking a bundle root.
type AssemblyError struct {
	Root  string
	Cause error
}

func (e *AssemblyError) Error() string {
	return fmt.Sprintf("could not assemble bundle from %s: %v", e.Root, e.Cause)
}

func (e *AssemblyError) Unwrap() error { return e.Cause }

// Is reports whether target is ErrAssembly.
func (e *AssemblyError) Is(target error) bool { return target == ErrAssembly }

// Kind returns the taxonomy name of err ("fetch", "integrity", "extraction",
// "not_found", "assembly") or "error" when err is outside the taxonomy.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case stderrors.Is(err, ErrIntegrity):
		return "integrity"
	case stderrors.Is(err, ErrExtraction):
		return "extraction"
	case stderrors.Is(err, ErrNotFound):
		return "not_found"
	case stderrors.Is(err, ErrAssembly):
		return "assembly"
	case stderrors.Is(err, ErrFetch):
		return "fetch"
	default:
		return "error"
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf wraps an error with additional formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
