package cli

import (
	"fmt"
	"time"

	"github.com/glorpus-work/onboard/pkg/cache"
	"github.com/spf13/cobra"
)

// NewCacheCmd creates the cache command with subcommands.
func NewCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the scratch store",
		Long: `Show information about and clean the scratch directory that holds
downloads, extracted bundles and leftovers of interrupted runs`,
	}

	cmd.AddCommand(
		newCacheCleanCmd(),
		newCacheInfoCmd(),
		newCacheDirCmd(),
	)

	return cmd
}

func newCacheCleanCmd() *cobra.Command {
	var (
		olderThan time.Duration
		dryRun    bool
	)

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Clean the scratch store",
		Long:  "Remove onboarded results and leftovers from the scratch directory to free up disk space",
		RunE: func(cmd *cobra.Command, _ []string) error {
			op, err := loadCacheOperation()
			if err != nil {
				return err
			}
			msg, err := op.Clean(olderThan, dryRun)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), msg)
			return err
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "Only remove entries not modified for this long (e.g. 24h)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be removed without removing anything")

	return cmd
}

func newCacheInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show scratch store information",
		Long:  "Display size and age of the scratch directory contents",
		RunE: func(cmd *cobra.Command, _ []string) error {
			op, err := loadCacheOperation()
			if err != nil {
				return err
			}
			info, err := op.GetInfo()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), info)
			return err
		},
	}
}

func newCacheDirCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dir",
		Short: "Show scratch directory path",
		Long:  "Display the path to the scratch directory",
		RunE: func(cmd *cobra.Command, _ []string) error {
			op, err := loadCacheOperation()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), op.GetDirectory())
			return err
		},
	}
}

func loadCacheOperation() (*cache.Operation, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return cache.NewOperation(cache.NewManager(cfg.GetScratchDir())), nil
}
