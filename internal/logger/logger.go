// Package logger is a thin slog wrapper shared by the onboarding packages
// and the CLI.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// OutputFormat selects the slog handler.
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
)

var (
	// testOutput is used to capture log output during tests
	testOutput   io.Writer
	testOutputMu sync.Mutex
)

// Fields is a type alias for log fields to make the API cleaner
type Fields map[string]interface{}

var (
	logger       *slog.Logger
	currentLevel = new(slog.LevelVar)
)

// SetTestOutput sets the output writer for testing purposes
func SetTestOutput(w io.Writer) {
	testOutputMu.Lock()
	defer testOutputMu.Unlock()
	testOutput = w
}

// UnsetTestOutput resets the test output to nil
func UnsetTestOutput() {
	testOutputMu.Lock()
	defer testOutputMu.Unlock()
	testOutput = nil
}

// getOutput returns stderr unless a test writer is installed. Stdout is
// reserved for command results.
func getOutput() io.Writer {
	testOutputMu.Lock()
	defer testOutputMu.Unlock()
	if testOutput != nil {
		return testOutput
	}
	return os.Stderr
}

// ParseLevel maps a level name to a slog level; unknown names are info.
func ParseLevel(logLevel string) slog.Level {
	switch strings.ToLower(logLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// InitLogger initializes the global logger.
func InitLogger(logLevel string, format OutputFormat) {
	currentLevel.Set(ParseLevel(logLevel))
	SetOutputFormat(format)
}

// SetOutputFormat swaps the handler while keeping the current level.
func SetOutputFormat(format OutputFormat) {
	opts := &slog.HandlerOptions{Level: currentLevel}
	var handler slog.Handler
	if format == FormatJSON {
		handler = slog.NewJSONHandler(getOutput(), opts)
	} else {
		handler = slog.NewTextHandler(getOutput(), opts)
	}
	logger = slog.New(handler)
}

// GetLogger returns the configured logger instance.
func GetLogger() *slog.Logger {
	if logger == nil {
		InitLogger("info", FormatText)
	}
	return logger
}

// With returns a child logger carrying fields on every record, e.g. the run
// id of one pipeline invocation.
func With(fields Fields) *slog.Logger {
	return GetLogger().With(mergeFields(fields)...)
}

// Info logs an info message.
func Info(msg string, fields ...Fields) {
	GetLogger().Info(msg, mergeFields(fields...)...)
}

// Debug logs a debug message (only shown when debug level is enabled).
func Debug(msg string, fields ...Fields) {
	GetLogger().Debug(msg, mergeFields(fields...)...)
}

// Warn logs a warning message.
func Warn(msg string, fields ...Fields) {
	GetLogger().Warn(msg, mergeFields(fields...)...)
}

// Error logs an error message.
func Error(msg string, fields ...Fields) {
	GetLogger().Error(msg, mergeFields(fields...)...)
}

// Success logs an info message tagged status=success.
func Success(msg string, fields ...Fields) {
	attrs := append(mergeFields(fields...), "status", "success")
	GetLogger().Info(msg, attrs...)
}

// mergeFields merges multiple field maps into one slice of key-value pairs for slog.
func mergeFields(fields ...Fields) []interface{} {
	merged := Fields{}
	for _, field := range fields {
		for k, v := range field {
			merged[k] = v
		}
	}
	result := make([]interface{}, 0, len(merged)*2)
	for k, v := range merged {
		result = append(result, k, v)
	}
	return result
}
