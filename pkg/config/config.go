// Package config provides configuration management for onboard.
// It handles loading, validating and saving the YAML settings file that
// controls scratch space, networking, output and provider endpoints. Missing
// files and missing keys fall back to sensible defaults.
package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/glorpus-work/onboard/pkg/errors"
	"github.com/glorpus-work/onboard/pkg/fsutil"
	"github.com/glorpus-work/onboard/pkg/module"
	"github.com/glorpus-work/onboard/pkg/resolver"
	"github.com/glorpus-work/onboard/pkg/validate"
	"gopkg.in/yaml.v3"
)

//go:embed schema/config.json
var configSchemaJSON []byte

var configSchema = validate.MustCompile("config.json", configSchemaJSON)

// Config represents the application configuration.
type Config struct {
	// General settings
	Settings Settings `yaml:"settings"`

	// Record provider endpoints
	Providers Providers `yaml:"providers"`
}

// Settings represents general application settings.
type Settings struct {
	// ScratchDir is the parent of every per-invocation temporary path.
	ScratchDir string `yaml:"scratch_dir,omitempty"`
	// HooksDir holds the <hook-type>.tengo scripts run after each stage.
	HooksDir string `yaml:"hooks_dir,omitempty"`

	// Network settings
	HTTPTimeout   time.Duration `yaml:"http_timeout"`
	MaxConcurrent int           `yaml:"max_concurrent"`
	UserAgent     string        `yaml:"user_agent"`

	// Output settings
	OutputFormat string `yaml:"output_format"` // text, json, yaml, cbor
	LogLevel     string `yaml:"log_level"`     // debug, info, warn, error

	// Provenance settings
	AttachMetadata         bool `yaml:"attach_metadata"`
	AttachMetadataToBundle bool `yaml:"attach_metadata_to_bundle"`
	AttachMetadataToFiles  bool `yaml:"attach_metadata_to_files"`
}

// Providers configures the record resolvers.
type Providers struct {
	Zenodo ZenodoConfig `yaml:"zenodo"`
}

// ZenodoConfig configures the Zenodo resolver.
type ZenodoConfig struct {
	BaseURL string `yaml:"base_url"`
}

// Default configuration values.
const (
	// DefaultHTTPTimeout is the default timeout for HTTP requests.
	DefaultHTTPTimeout = 5 * time.Minute

	// DefaultMaxConcurrent is the default number of parallel downloads.
	DefaultMaxConcurrent = 4

	// DefaultUserAgent is sent with every request.
	DefaultUserAgent = "onboard/1.0"

	// YAMLIndent is the number of spaces to use for YAML indentation.
	YAMLIndent = 2
)

var (
	validLogLevels     = map[string]bool{"debug": true, "info": true, "warn": true, "warning": true, "error": true}
	validOutputFormats = map[string]bool{"text": true, "json": true, "yaml": true, "cbor": true}
)

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	scratchDir, err := fsutil.GetScratchDir()
	if err != nil {
		scratchDir = filepath.Join(os.TempDir(), fsutil.AppName)
	}
	hooksDir := ""
	if configDir, err := fsutil.GetConfigDir(); err == nil {
		hooksDir = filepath.Join(configDir, "hooks")
	}
	moduleDefaults := module.DefaultConfig()

	return &Config{
		Settings: Settings{
			ScratchDir:             scratchDir,
			HooksDir:               hooksDir,
			HTTPTimeout:            DefaultHTTPTimeout,
			MaxConcurrent:          DefaultMaxConcurrent,
			UserAgent:              DefaultUserAgent,
			OutputFormat:           "text",
			LogLevel:               "info",
			AttachMetadata:         moduleDefaults.AttachMetadata,
			AttachMetadataToBundle: moduleDefaults.AttachMetadataToBundle,
			AttachMetadataToFiles:  moduleDefaults.AttachMetadataToFiles,
		},
		Providers: Providers{
			Zenodo: ZenodoConfig{BaseURL: resolver.DefaultZenodoBaseURL},
		},
	}
}

// LoadConfig loads configuration from a file.
func LoadConfig(path string) (*Config, error) {
	// Validate the config file path
	if path == "" {
		return nil, errors.ErrEmptyConfigPath
	}

	// Ensure the path is clean and absolute
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrInvalidConfigPath, err.Error())
	}

	file, err := os.Open(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, errors.Wrapf(err, "failed to open config file: %s", path)
	}
	defer func() { _ = file.Close() }()

	return LoadConfigFromReader(file)
}

// LoadConfigFromReader loads configuration from an io.Reader. The document
// is checked against the embedded JSON schema before it is decoded; keys
// that are absent keep their default value.
func LoadConfigFromReader(reader io.Reader) (*Config, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config data")
	}

	config := DefaultConfig()
	if len(bytes.TrimSpace(data)) == 0 {
		return config, nil
	}

	if err := configSchema.ValidateYAML(data); err != nil {
		return nil, errors.Wrap(errors.ErrConfigValidation, err.Error())
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, errors.Wrap(errors.ErrConfigParse, err.Error())
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(errors.ErrConfigValidation, err.Error())
	}

	return config, nil
}

// SaveConfig saves configuration to a file. The file is written to a
// temporary sibling first and renamed into place.
func (c *Config) SaveConfig(path string) error {
	if path == "" {
		return errors.ErrEmptyConfigPath
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return errors.Wrap(errors.ErrInvalidConfigPath, err.Error())
	}

	if err := os.MkdirAll(filepath.Dir(absPath), fsutil.DirModeDefault); err != nil {
		return errors.Wrap(errors.ErrConfigDirectory, err.Error())
	}

	tempPath := absPath + ".tmp"
	file, err := os.OpenFile(tempPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, fsutil.FileModeDefault)
	if err != nil {
		return errors.Wrap(errors.ErrConfigFileCreate, err.Error())
	}

	encoder := yaml.NewEncoder(file)
	encoder.SetIndent(YAMLIndent)

	if err := encoder.Encode(c); err != nil {
		_ = file.Close()
		_ = os.Remove(tempPath)
		return errors.Wrap(errors.ErrConfigEncode, err.Error())
	}

	_ = encoder.Close()
	_ = file.Close()

	if err := os.Rename(tempPath, absPath); err != nil {
		_ = os.Remove(tempPath)
		return errors.Wrap(errors.ErrConfigFileRename, err.Error())
	}

	if err := os.Chmod(absPath, fsutil.FileModeDefault); err != nil {
		return errors.Wrap(errors.ErrConfigFileChmod, err.Error())
	}

	return nil
}

// ToYAML converts the config to YAML bytes.
func (c *Config) ToYAML() ([]byte, error) {
	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(YAMLIndent)
	if err := encoder.Encode(c); err != nil {
		return nil, errors.Wrap(errors.ErrConfigMarshal, err.Error())
	}
	_ = encoder.Close()
	return buf.Bytes(), nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c == nil {
		return errors.ErrConfigValidation
	}
	return validateSettings(c.Settings)
}

func validateSettings(s Settings) error {
	if s.HTTPTimeout <= 0 {
		return errors.ErrHTTPTimeoutInvalid
	}
	if s.MaxConcurrent < 1 {
		return errors.ErrMaxConcurrent
	}
	if !validOutputFormats[s.OutputFormat] {
		return fmt.Errorf("%w '%s', must be one of: text, json, yaml, cbor", errors.ErrInvalidOutputFmt, s.OutputFormat)
	}
	if !validLogLevels[s.LogLevel] {
		return fmt.Errorf("%w '%s', must be one of: debug, info, warn, error", errors.ErrInvalidLogLevel, s.LogLevel)
	}
	return nil
}

// ModuleConfig returns the provenance flags the host modules run with.
func (c *Config) ModuleConfig() module.Config {
	return module.Config{
		AttachMetadata:         c.Settings.AttachMetadata,
		AttachMetadataToBundle: c.Settings.AttachMetadataToBundle,
		AttachMetadataToFiles:  c.Settings.AttachMetadataToFiles,
	}
}

// GetScratchDir returns the scratch parent directory from settings.
func (c *Config) GetScratchDir() string {
	return c.Settings.ScratchDir
}

// GetHooksDir returns the hook script directory from settings.
func (c *Config) GetHooksDir() string {
	return c.Settings.HooksDir
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() (string, error) {
	configDir, err := fsutil.GetConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}
	return filepath.Join(configDir, "config.yaml"), nil
}

// applyDefaults fills in values that were explicitly zeroed.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()

	if c.Settings.ScratchDir == "" {
		c.Settings.ScratchDir = defaults.Settings.ScratchDir
	}
	if c.Settings.HTTPTimeout == 0 {
		c.Settings.HTTPTimeout = defaults.Settings.HTTPTimeout
	}
	if c.Settings.MaxConcurrent == 0 {
		c.Settings.MaxConcurrent = defaults.Settings.MaxConcurrent
	}
	if c.Settings.UserAgent == "" {
		c.Settings.UserAgent = defaults.Settings.UserAgent
	}
	if c.Settings.OutputFormat == "" {
		c.Settings.OutputFormat = defaults.Settings.OutputFormat
	}
	if c.Settings.LogLevel == "" {
		c.Settings.LogLevel = defaults.Settings.LogLevel
	}
	if c.Providers.Zenodo.BaseURL == "" {
		c.Providers.Zenodo.BaseURL = defaults.Providers.Zenodo.BaseURL
	}
}
