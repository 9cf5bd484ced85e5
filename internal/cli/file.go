package cli

import (
	"fmt"
	"path/filepath"

	"github.com/glorpus-work/onboard/internal/logger"
	"github.com/glorpus-work/onboard/pkg/fsutil"
	"github.com/glorpus-work/onboard/pkg/model"
	"github.com/glorpus-work/onboard/pkg/pipeline"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// fileOptions holds flags for the file command.
type fileOptions struct {
	sourceType string
	name       string
	dest       string
	noMetadata bool
}

// NewFileCmd creates the file command.
func NewFileCmd() *cobra.Command {
	opts := &fileOptions{}
	cmd := &cobra.Command{
		Use:   "file SOURCE",
		Short: "Onboard a single file",
		Long: `Onboard a single file from a local path, an http(s) url or a Zenodo
record (zenodo:<doi>/<path> or https://doi.org/<prefix>/zenodo.<id>/<path>).

The file is hashed and, for remote sources, its download provenance is
attached as metadata. Without --dest a downloaded file stays in the scratch
directory; 'onboard cache clean' removes it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFile(cmd, args[0], opts)
		},
	}
	addFileFlags(cmd.Flags(), opts)
	return cmd
}

func addFileFlags(fs *pflag.FlagSet, o *fileOptions) {
	fs.StringVarP(&o.sourceType, "type", "t", "", "Onboard type: local_file, url or zenodo (default: auto-detect)")
	fs.StringVarP(&o.name, "name", "n", "", "File name to record (default: derived from the source)")
	fs.StringVarP(&o.dest, "dest", "d", "", "Copy the onboarded file to this path")
	fs.BoolVar(&o.noMetadata, "no-metadata", false, "Do not attach provenance metadata")
}

func runFile(cmd *cobra.Command, source string, o *fileOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	orch, err := newOrchestrator(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	file, err := orch.Onboard(cmd.Context(), pipeline.OnboardRequest{
		Source:         source,
		Type:           pipeline.SourceType(o.sourceType),
		FileName:       o.name,
		AttachMetadata: cfg.Settings.AttachMetadata && !o.noMetadata,
	})
	if err != nil {
		return fmt.Errorf("failed to onboard %s: %w", source, err)
	}

	if o.dest != "" {
		if err := placeFile(file, o.dest); err != nil {
			return err
		}
	}

	return render(cmd.OutOrStdout(), cfg.Settings.OutputFormat, file)
}

// placeFile copies f to dest and releases the scratch storage it owned.
func placeFile(f *model.File, dest string) error {
	absDest, err := filepath.Abs(dest)
	if err != nil {
		return fmt.Errorf("invalid destination: %w", err)
	}
	if err := fsutil.EnsureFileDir(absDest); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}
	if err := fsutil.Copy(f.Path, absDest); err != nil {
		return err
	}
	if err := f.Release(); err != nil {
		logger.Warn("Failed to release scratch storage", logger.Fields{"path": f.Path, "error": err})
	}
	f.Path = absDest
	return nil
}
