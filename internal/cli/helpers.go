// Package cli contains the onboard CLI commands and subcommands.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/glorpus-work/onboard/internal/logger"
	"github.com/glorpus-work/onboard/pkg/archive"
	"github.com/glorpus-work/onboard/pkg/bundle"
	"github.com/glorpus-work/onboard/pkg/config"
	"github.com/glorpus-work/onboard/pkg/download"
	"github.com/glorpus-work/onboard/pkg/hooks"
	"github.com/glorpus-work/onboard/pkg/pipeline"
	"github.com/glorpus-work/onboard/pkg/resolver"
)

// These variables will be set by the main package
var (
	ConfigPath   *string
	Verbose      *bool
	OutputFormat *string
	NoProgress   *bool
)

// loadConfig loads the configuration, applies the global flags on top of it
// and initializes logging accordingly.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(getConfigPath())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if OutputFormat != nil && *OutputFormat != "" {
		cfg.Settings.OutputFormat = *OutputFormat
	}
	if Verbose != nil && *Verbose {
		cfg.Settings.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger.InitLogger(cfg.Settings.LogLevel, logFormat(cfg.Settings.OutputFormat))
	return cfg, nil
}

// logFormat keeps logs machine readable when results are.
func logFormat(outputFormat string) logger.OutputFormat {
	if outputFormat == formatText {
		return logger.FormatText
	}
	return logger.FormatJSON
}

// newOrchestrator wires the onboarding components from cfg. Stage events
// are printed to events in text mode; nil silences them.
func newOrchestrator(cfg *config.Config, events io.Writer) (*pipeline.Orchestrator, error) {
	dlManager := download.NewManager(cfg.Settings.HTTPTimeout, cfg.Settings.UserAgent)
	if progressEnabled(cfg) {
		dlManager.SetProgress(newProgressReporter(os.Stderr))
	}

	resolvers := resolver.NewRegistry(
		resolver.NewZenodo(cfg.Providers.Zenodo.BaseURL, cfg.Settings.HTTPTimeout, cfg.Settings.UserAgent),
	)

	var eventHooks pipeline.Hooks
	if events != nil && cfg.Settings.OutputFormat == formatText {
		eventHooks.OnEvent = func(e pipeline.Event) {
			if e.Msg != "" {
				_, _ = fmt.Fprintf(events, "%s: %s (%s)\n", e.Phase, e.Msg, shortID(e.ID))
			} else {
				_, _ = fmt.Fprintf(events, "%s (%s)\n", e.Phase, shortID(e.ID))
			}
		}
	}

	orch := pipeline.New(dlManager, archive.NewManager(), bundle.NewAssembler(), resolvers, eventHooks)
	orch.ScratchDir = cfg.GetScratchDir()
	orch.Concurrency = cfg.Settings.MaxConcurrent

	hookManager := hooks.NewHookManager()
	if err := hooks.LoadHooksFromDir(hookManager, cfg.GetHooksDir()); err != nil {
		return nil, fmt.Errorf("failed to load hook scripts: %w", err)
	}
	if len(hookManager.Registered()) > 0 {
		logger.Debug("Hook scripts loaded", logger.Fields{"dir": cfg.GetHooksDir(), "hooks": hookManager.Registered()})
		orch.Scripts = hookManager
	}

	return orch, nil
}

func progressEnabled(cfg *config.Config) bool {
	if NoProgress != nil && *NoProgress {
		return false
	}
	return cfg.Settings.OutputFormat == formatText
}

func shortID(id string) string {
	if len(id) > ShortIDLength {
		return id[:ShortIDLength]
	}
	return id
}
