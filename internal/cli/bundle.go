package cli

import (
	"fmt"
	"path/filepath"

	"github.com/glorpus-work/onboard/internal/logger"
	"github.com/glorpus-work/onboard/pkg/archive"
	"github.com/glorpus-work/onboard/pkg/model"
	"github.com/glorpus-work/onboard/pkg/pipeline"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// packCommandArgs is the number of arguments of 'bundle pack'.
const packCommandArgs = 2

// bundleOptions holds flags for the bundle command.
type bundleOptions struct {
	sourceType   string
	name         string
	subPath      string
	includeFiles []string
	excludeDirs  []string
	excludeFiles []string
	noMetadata   bool
	fileMetadata bool
}

// NewBundleCmd creates the bundle command with its pack subcommand.
func NewBundleCmd() *cobra.Command {
	opts := &bundleOptions{}
	cmd := &cobra.Command{
		Use:   "bundle SOURCE",
		Short: "Onboard a file bundle",
		Long: `Onboard a directory tree as a file bundle. SOURCE is a local folder or
archive, the url of an archive, or a Zenodo record. A record without a file
path downloads every file of the record; with a path the named file is
treated as an archive.

The bundle can be narrowed to a sub folder with --sub-path and filtered by
file and directory name suffixes.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBundle(cmd, args[0], opts)
		},
	}
	addBundleFlags(cmd.Flags(), opts)

	cmd.AddCommand(newBundlePackCmd())
	return cmd
}

func addBundleFlags(fs *pflag.FlagSet, o *bundleOptions) {
	fs.StringVarP(&o.sourceType, "type", "t", "", "Onboard type: local_file, url or zenodo (default: auto-detect)")
	fs.StringVarP(&o.name, "name", "n", "", "Bundle name (default: derived from the source)")
	fs.StringVar(&o.subPath, "sub-path", "", "Only keep files below this relative folder")
	fs.StringSliceVar(&o.includeFiles, "include", nil, "Only import files whose name ends with one of these suffixes")
	fs.StringSliceVar(&o.excludeDirs, "exclude-dir", nil, "Skip directories whose name ends with one of these suffixes")
	fs.StringSliceVar(&o.excludeFiles, "exclude", nil, "Skip files whose name ends with one of these suffixes")
	fs.BoolVar(&o.noMetadata, "no-metadata", false, "Do not attach provenance metadata to the bundle")
	fs.BoolVar(&o.fileMetadata, "file-metadata", false, "Also attach provenance metadata to every file (default from config)")
}

func (o *bundleOptions) importConfig() *model.ImportConfig {
	imp := &model.ImportConfig{
		IncludeFiles: o.includeFiles,
		ExcludeDirs:  o.excludeDirs,
		ExcludeFiles: o.excludeFiles,
	}
	if imp.IsZero() {
		return nil
	}
	return imp
}

func runBundle(cmd *cobra.Command, source string, o *bundleOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	orch, err := newOrchestrator(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	b, err := orch.OnboardBundle(cmd.Context(), pipeline.OnboardBundleRequest{
		Source:         source,
		Type:           pipeline.SourceType(o.sourceType),
		Name:           o.name,
		SubPath:        o.subPath,
		Import:         o.importConfig(),
		AttachToBundle: cfg.Settings.AttachMetadataToBundle && !o.noMetadata,
		AttachToFiles:  cfg.Settings.AttachMetadataToFiles || o.fileMetadata,
	})
	if err != nil {
		return fmt.Errorf("failed to onboard bundle %s: %w", source, err)
	}

	return render(cmd.OutOrStdout(), cfg.Settings.OutputFormat, b)
}

func newBundlePackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pack DIR ARCHIVE",
		Short: "Pack a directory into an archive",
		Long: `Pack DIR into ARCHIVE so it can be published and onboarded as a bundle.
The format follows the extension of ARCHIVE: .zip, .tar, .tar.gz/.tgz,
.tar.zst/.tzst or .tar.xz/.txz.`,
		Args: cobra.ExactArgs(packCommandArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := loadConfig(); err != nil {
				return err
			}
			sourceDir, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("invalid source directory: %w", err)
			}
			archivePath, err := filepath.Abs(args[1])
			if err != nil {
				return fmt.Errorf("invalid archive path: %w", err)
			}

			if err := archive.NewManager().Create(cmd.Context(), sourceDir, archivePath); err != nil {
				return err
			}
			logger.Info("Archive created", logger.Fields{"source": sourceDir, "archive": archivePath})
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), archivePath)
			return nil
		},
	}
}
