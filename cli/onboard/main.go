package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/glorpus-work/onboard/internal/cli"
	"github.com/spf13/cobra"
)

var (
	configPath   string
	verbose      bool
	noProgress   bool
	outputFormat string
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	rootCmd := newRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		cancel()
		os.Exit(1)
	}

	cancel()
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "onboard",
		Short: "Onboard remote datasets as tracked files and bundles",
		Long: `onboard fetches datasets from urls, Zenodo records or local paths and
turns them into tracked files or file bundles with provenance metadata:
- file, bundle: onboard a single file or a directory tree
- run, modules: run the onboarding modules with typed inputs
- config, hooks, cache: manage settings, stage scripts and scratch space`,
		SilenceUsage: true,
	}

	// Global flags
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path (default: auto-detect)")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().BoolVar(&noProgress, "no-progress", false, "disable download progress bars")
	cmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "", "output format (text, json, yaml, cbor)")

	// Set up CLI package variables
	cli.ConfigPath = &configPath
	cli.Verbose = &verbose
	cli.NoProgress = &noProgress
	cli.OutputFormat = &outputFormat

	cmd.AddCommand(
		cli.NewFileCmd(),
		cli.NewBundleCmd(),
		cli.NewRunCmd(),
		cli.NewModulesCmd(),
		cli.NewConfigCmd(),
		cli.NewHooksCmd(),
		cli.NewCacheCmd(),
		cli.NewVersionCmd(),
	)

	return cmd
}
