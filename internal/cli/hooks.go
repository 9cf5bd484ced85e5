package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/glorpus-work/onboard/internal/logger"
	onboarderrors "github.com/glorpus-work/onboard/pkg/errors"
	"github.com/glorpus-work/onboard/pkg/fsutil"
	"github.com/glorpus-work/onboard/pkg/hooks"
	"github.com/spf13/cobra"
)

// NewHooksCmd creates the hooks command with subcommands.
func NewHooksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hooks",
		Short: "Manage stage hook scripts",
		Long: `Hook scripts are tengo scripts named <type>.tengo in the hooks directory
(settings.hooks_dir). They run after the matching pipeline stage; a script
that sets 'err' aborts the run. Types: post-fetch, post-extract, post-assemble.`,
	}

	cmd.AddCommand(
		newHooksListCmd(),
		newHooksTemplateCmd(),
	)
	return cmd
}

func newHooksListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List installed hook scripts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			manager := hooks.NewHookManager()
			if err := hooks.LoadHooksFromDir(manager, cfg.GetHooksDir()); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "Hooks directory: %s\n", cfg.GetHooksDir())
			for _, ht := range hooks.Types {
				status := "-"
				if manager.HasHook(ht) {
					status = filepath.Join(cfg.GetHooksDir(), string(ht)+hooks.HookFileExtension)
				}
				_, _ = fmt.Fprintf(out, "  %s: %s\n", ht, status)
			}
			return nil
		},
	}
}

func newHooksTemplateCmd() *cobra.Command {
	var install, force bool

	cmd := &cobra.Command{
		Use:   "template TYPE",
		Short: "Print or install a hook script template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ht := hooks.HookType(args[0])
			if !ht.Valid() {
				return fmt.Errorf("%w: %s", hooks.ErrHookTypeUnknown, args[0])
			}
			template := hooks.HookTemplate(ht)
			if !install {
				_, err := fmt.Fprint(cmd.OutOrStdout(), template)
				return err
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			path := filepath.Join(cfg.GetHooksDir(), string(ht)+hooks.HookFileExtension)
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("hook script %s already exists (use --force to overwrite): %w", path, onboarderrors.ErrInvalidPath)
			}
			if err := fsutil.EnsureFileDir(path); err != nil {
				return err
			}
			if err := os.WriteFile(path, []byte(template), fsutil.FileModeDefault); err != nil {
				return fmt.Errorf("failed to write hook script: %w", err)
			}
			logger.Success("Hook script installed", logger.Fields{"path": path})
			return nil
		},
	}

	cmd.Flags().BoolVar(&install, "install", false, "Write the template into the hooks directory")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing hook script")
	return cmd
}
