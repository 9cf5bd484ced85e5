package module

import (
	"context"

	"github.com/glorpus-work/onboard/pkg/pipeline"
	"github.com/glorpus-work/onboard/pkg/resolver"
)

type declaration struct {
	name    string
	doc     string
	inputs  Schema
	outputs Schema
	process ProcessFunc
}

var (
	fileOutput = Schema{"file": {Type: TypeFile, Doc: "The file that was onboarded."}}

	bundleOutput = Schema{"file_bundle": {Type: TypeFileBundle, Doc: "The file bundle that was onboarded."}}

	bundleInputs = Schema{
		"sub_path":      {Type: TypeString, Doc: "A relative path to select only a sub-folder from the archive.", Optional: true},
		"bundle_name":   {Type: TypeString, Doc: "The name of the bundle (defaults to the source name).", Optional: true},
		"import_config": {Type: TypeDict, Doc: "Filters (include_files, exclude_dirs, exclude_files) applied to the bundle files.", Optional: true},
	}
)

func withBundleInputs(s Schema) Schema {
	out := Schema{}
	for k, v := range bundleInputs {
		out[k] = v
	}
	for k, v := range s {
		out[k] = v
	}
	return out
}

var builtins = []declaration{
	{
		name: "download.file",
		doc:  "Download a single file from a remote location.",
		inputs: Schema{
			"url":       {Type: TypeString, Doc: "The url of the file to download."},
			"file_name": {Type: TypeString, Doc: "The file name to use for the downloaded file.", Optional: true},
		},
		outputs: fileOutput,
		process: func(ctx context.Context, o *pipeline.Orchestrator, cfg Config, in ValueMap) (ValueMap, error) {
			f, err := o.FetchFile(ctx, pipeline.FileRequest{
				URL:            in.String("url"),
				FileName:       in.String("file_name"),
				AttachMetadata: cfg.AttachMetadata,
			})
			if err != nil {
				return nil, err
			}
			return ValueMap{"file": f}, nil
		},
	},
	{
		name: "download.file_bundle",
		doc:  "Download an archive file from a remote location and extract it.",
		inputs: withBundleInputs(Schema{
			"url": {Type: TypeString, Doc: "The url of an archive/zip file to download."},
		}),
		outputs: bundleOutput,
		process: func(ctx context.Context, o *pipeline.Orchestrator, cfg Config, in ValueMap) (ValueMap, error) {
			imp, err := in.ImportConfig("import_config")
			if err != nil {
				return nil, err
			}
			b, err := o.FetchBundle(ctx, pipeline.BundleRequest{
				URL:            in.String("url"),
				SubPath:        in.String("sub_path"),
				Name:           in.String("bundle_name"),
				Import:         imp,
				AttachToBundle: cfg.AttachMetadataToBundle,
				AttachToFiles:  cfg.AttachMetadataToFiles,
			})
			if err != nil {
				return nil, err
			}
			return ValueMap{"file_bundle": b}, nil
		},
	},
	{
		name: "download.file.from.zenodo",
		doc:  "Download a single file from a Zenodo record.",
		inputs: Schema{
			"doi":       {Type: TypeString, Doc: "The DOI."},
			"path":      {Type: TypeString, Doc: "The path to the file/file name within the dataset.", Optional: true},
			"file_name": {Type: TypeString, Doc: "The file name to use for the downloaded file.", Optional: true},
		},
		outputs: fileOutput,
		process: func(ctx context.Context, o *pipeline.Orchestrator, cfg Config, in ValueMap) (ValueMap, error) {
			f, err := o.FetchRecordFile(ctx, pipeline.RecordFileRequest{
				Provider:       resolver.ZenodoProvider,
				ID:             resolver.NormalizeDOI(in.String("doi")),
				Path:           in.String("path"),
				FileName:       in.String("file_name"),
				AttachMetadata: cfg.AttachMetadata,
			})
			if err != nil {
				return nil, err
			}
			return ValueMap{"file": f}, nil
		},
	},
	{
		name: "download.file_bundle.from.zenodo",
		doc:  "Download all files of a Zenodo record, or one archive of it, as a file bundle.",
		inputs: withBundleInputs(Schema{
			"doi":     {Type: TypeString, Doc: "The DOI."},
			"archive": {Type: TypeString, Doc: "A record file to download and extract instead of downloading every file.", Optional: true},
		}),
		outputs: bundleOutput,
		process: func(ctx context.Context, o *pipeline.Orchestrator, cfg Config, in ValueMap) (ValueMap, error) {
			imp, err := in.ImportConfig("import_config")
			if err != nil {
				return nil, err
			}
			b, err := o.FetchRecordBundle(ctx, pipeline.RecordBundleRequest{
				Provider:       resolver.ZenodoProvider,
				ID:             resolver.NormalizeDOI(in.String("doi")),
				Name:           in.String("bundle_name"),
				Archive:        in.String("archive"),
				SubPath:        in.String("sub_path"),
				Import:         imp,
				AttachToBundle: cfg.AttachMetadataToBundle,
				AttachToFiles:  cfg.AttachMetadataToFiles,
			})
			if err != nil {
				return nil, err
			}
			return ValueMap{"file_bundle": b}, nil
		},
	},
	{
		name: "import.file",
		doc:  "Onboard a file from a local path, a url or a Zenodo record.",
		inputs: Schema{
			"source":       {Type: TypeString, Doc: "The source uri of the file to be onboarded."},
			"file_name":    {Type: TypeString, Doc: "The file name to use for the onboarded file (defaults to source file name if possible).", Optional: true},
			"onboard_type": {Type: TypeString, Doc: "The type of onboarding to use. Allowed: local_file, url, zenodo.", Optional: true},
		},
		outputs: fileOutput,
		process: func(ctx context.Context, o *pipeline.Orchestrator, cfg Config, in ValueMap) (ValueMap, error) {
			f, err := o.Onboard(ctx, pipeline.OnboardRequest{
				Source:         in.String("source"),
				Type:           pipeline.SourceType(in.String("onboard_type")),
				FileName:       in.String("file_name"),
				AttachMetadata: cfg.AttachMetadata,
			})
			if err != nil {
				return nil, err
			}
			return ValueMap{"file": f}, nil
		},
	},
	{
		name: "import.file_bundle",
		doc:  "Onboard a file bundle from a local folder or archive, a url or a Zenodo record.",
		inputs: withBundleInputs(Schema{
			"source":       {Type: TypeString, Doc: "The source uri of the bundle to be onboarded."},
			"onboard_type": {Type: TypeString, Doc: "The type of onboarding to use. Allowed: local_file, url, zenodo.", Optional: true},
		}),
		outputs: bundleOutput,
		process: func(ctx context.Context, o *pipeline.Orchestrator, cfg Config, in ValueMap) (ValueMap, error) {
			imp, err := in.ImportConfig("import_config")
			if err != nil {
				return nil, err
			}
			b, err := o.OnboardBundle(ctx, pipeline.OnboardBundleRequest{
				Source:         in.String("source"),
				Type:           pipeline.SourceType(in.String("onboard_type")),
				Name:           in.String("bundle_name"),
				SubPath:        in.String("sub_path"),
				Import:         imp,
				AttachToBundle: cfg.AttachMetadataToBundle,
				AttachToFiles:  cfg.AttachMetadataToFiles,
			})
			if err != nil {
				return nil, err
			}
			return ValueMap{"file_bundle": b}, nil
		},
	},
}
