package pipeline

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"

	"github.com/glorpus-work/onboard/pkg/archive"
	"github.com/glorpus-work/onboard/pkg/bundle"
	"github.com/glorpus-work/onboard/pkg/download"
	onboarderrors "github.com/glorpus-work/onboard/pkg/errors"
	"github.com/glorpus-work/onboard/pkg/fsutil"
	"github.com/glorpus-work/onboard/pkg/hooks"
	"github.com/glorpus-work/onboard/pkg/model"
)

// FetchBundle downloads the archive at req.URL, extracts it and assembles
// the (sub-path filtered) tree into a bundle. The archive itself is always
// removed; the extracted tree is owned by the bundle.
func (o *Orchestrator) FetchBundle(ctx context.Context, req BundleRequest) (*model.FileBundle, error) {
	if err := o.checkConfigured(true, true); err != nil {
		return nil, err
	}
	u, err := parseURL(req.URL)
	if err != nil {
		return nil, err
	}
	r, err := o.begin(req.URL)
	if err != nil {
		return nil, err
	}
	b, err := o.fetchBundle(ctx, r, req, u)
	if err = r.finish(err); err != nil {
		return nil, err
	}
	return b, nil
}

func (o *Orchestrator) fetchBundle(ctx context.Context, r *run, req BundleRequest, u *url.URL) (*model.FileBundle, error) {
	res, err := o.download(ctx, r, download.Item{ID: r.id, URL: u}, false)
	if err != nil {
		return nil, err
	}
	name := req.Name
	if name == "" {
		name = archive.TrimArchiveExt(path.Base(u.Path))
	}
	b, err := o.extractAndAssemble(ctx, r, res.File.Path, bundle.Options{SubPath: req.SubPath, Name: name, Import: req.Import})
	if err != nil {
		return nil, err
	}
	info := res.Info
	info.SubPath = req.SubPath
	info.ImportConfig = req.Import
	if req.AttachToBundle {
		b.SetMetadata(model.MetadataDownloadInfo, info)
	}
	if req.AttachToFiles {
		b.SetFileMetadata(model.MetadataDownloadInfo, info)
	}
	return b, nil
}

// FetchRecordBundle resolves a provider record and onboards it as a
// bundle: either every record file, fetched concurrently into a staging
// directory, or a single record archive that is extracted. Any fetch or
// integrity failure aborts with no bundle and an empty staging area.
func (o *Orchestrator) FetchRecordBundle(ctx context.Context, req RecordBundleRequest) (*model.FileBundle, error) {
	if err := o.checkConfigured(req.Archive != "", true); err != nil {
		return nil, err
	}
	source := req.Provider + ":" + req.ID
	if req.Archive != "" {
		source += "/" + req.Archive
	}
	r, err := o.begin(source)
	if err != nil {
		return nil, err
	}
	b, err := o.fetchRecordBundle(ctx, r, req)
	if err = r.finish(err); err != nil {
		return nil, err
	}
	return b, nil
}

func (o *Orchestrator) fetchRecordBundle(ctx context.Context, r *run, req RecordBundleRequest) (*model.FileBundle, error) {
	rec, err := r.resolve(ctx, req.Provider, req.ID, req.VersionConstraint)
	if err != nil {
		return nil, err
	}
	name := req.Name
	if name == "" {
		name = rec.ID
	}
	opts := bundle.Options{SubPath: req.SubPath, Name: name, Import: req.Import}

	var b *model.FileBundle
	if req.Archive != "" {
		rf, err := rec.Lookup(req.Archive)
		if err != nil {
			return nil, err
		}
		u, err := parseURL(rf.URL)
		if err != nil {
			return nil, err
		}
		res, err := o.download(ctx, r, download.Item{ID: rf.Key, URL: u, FileName: path.Base(rf.Key), Checksum: rf.Checksum}, false)
		if err != nil {
			return nil, err
		}
		if b, err = o.extractAndAssemble(ctx, r, res.File.Path, opts); err != nil {
			return nil, err
		}
	} else {
		staging, err := o.stageRecord(ctx, r, rec, req.Concurrency)
		if err != nil {
			return nil, err
		}
		if b, err = o.assemble(ctx, r, staging, staging, opts); err != nil {
			return nil, err
		}
	}

	if req.AttachToBundle {
		b.SetMetadata(model.RecordDataKey(rec.Provider), rec.Data)
	}
	if req.AttachToFiles {
		b.SetFileMetadata(model.RecordDataKey(rec.Provider), rec.Data)
	}
	return b, nil
}

// stageRecord downloads every record file to staging/<key>.
func (o *Orchestrator) stageRecord(ctx context.Context, r *run, rec *model.Record, concurrency int) (string, error) {
	staging, err := r.scratch.TempDir("staging-*")
	if err != nil {
		return "", err
	}
	work, err := r.workDir()
	if err != nil {
		return "", err
	}
	items := make([]download.Item, 0, len(rec.Files))
	for _, rf := range rec.Files {
		u, err := parseURL(rf.URL)
		if err != nil {
			return "", err
		}
		target, err := fsutil.SafeJoin(staging, rf.Key)
		if err != nil {
			return "", fmt.Errorf("record file %q: %w", rf.Key, err)
		}
		items = append(items, download.Item{
			ID:         rf.Key,
			URL:        u,
			TargetPath: target,
			FileName:   path.Base(rf.Key),
			Checksum:   rf.Checksum,
		})
	}
	if concurrency <= 0 {
		concurrency = o.Concurrency
	}
	r.emit(PhaseFetching, fmt.Sprintf("%d files", len(items)))
	if _, err := o.DL.FetchAll(ctx, items, download.Options{Dir: work, Concurrency: concurrency}); err != nil {
		return "", err
	}
	r.emit(PhaseVerifying, fmt.Sprintf("%d files", len(items)))
	for _, it := range items {
		hctx := hooks.HookContext{Path: it.TargetPath, Name: it.FileName}
		if err := r.hook(ctx, hooks.PostFetch, PhaseFetching, hctx); err != nil {
			return "", err
		}
	}
	return staging, nil
}

// ImportFolder onboards a local directory, or a local archive which is
// extracted first. A directory stays owned by the caller.
func (o *Orchestrator) ImportFolder(ctx context.Context, req FolderRequest) (*model.FileBundle, error) {
	if o.Assembler == nil {
		return nil, fmt.Errorf("bundle assembler: %w", onboarderrors.ErrNotConfigured)
	}
	r, err := o.begin(req.Path)
	if err != nil {
		return nil, err
	}
	b, err := o.importFolder(ctx, r, req)
	if err = r.finish(err); err != nil {
		return nil, err
	}
	return b, nil
}

func (o *Orchestrator) importFolder(ctx context.Context, r *run, req FolderRequest) (*model.FileBundle, error) {
	info, err := os.Stat(req.Path)
	if err != nil {
		return nil, fmt.Errorf("can't create bundle from path '%s': %w", req.Path, err)
	}
	opts := bundle.Options{SubPath: req.SubPath, Name: req.Name, Import: req.Import}
	if info.IsDir() {
		if opts.Name == "" {
			if abs, err := filepath.Abs(req.Path); err == nil {
				opts.Name = filepath.Base(abs)
			}
		}
		return o.assemble(ctx, r, req.Path, "", opts)
	}
	if o.Archive == nil {
		return nil, fmt.Errorf("archive extractor: %w", onboarderrors.ErrNotConfigured)
	}
	if opts.Name == "" {
		opts.Name = archive.TrimArchiveExt(filepath.Base(req.Path))
	}
	return o.extractAndAssemble(ctx, r, req.Path, opts)
}

func (o *Orchestrator) extractAndAssemble(ctx context.Context, r *run, archivePath string, opts bundle.Options) (*model.FileBundle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out, err := r.scratch.TempDir("bundle-*")
	if err != nil {
		return nil, err
	}
	r.emit(PhaseExtracting, filepath.Base(archivePath))
	dir, err := o.Archive.Extract(ctx, archivePath, out)
	if err != nil {
		return nil, err
	}
	if err := r.hook(ctx, hooks.PostExtract, PhaseExtracting, hooks.HookContext{Path: dir, Name: opts.Name}); err != nil {
		return nil, err
	}
	return o.assemble(ctx, r, dir, out, opts)
}

// assemble builds the bundle and, when owned is set, hands that directory
// over to it.
func (o *Orchestrator) assemble(ctx context.Context, r *run, root, owned string, opts bundle.Options) (*model.FileBundle, error) {
	r.emit(PhaseAssembling, opts.Name)
	b, err := o.Assembler.Assemble(root, opts)
	if err != nil {
		return nil, err
	}
	hctx := hooks.HookContext{Path: b.Root, Name: b.Name, Hash: b.Hash, Files: b.Keys()}
	if err := r.hook(ctx, hooks.PostAssemble, PhaseAssembling, hctx); err != nil {
		return nil, err
	}
	if owned != "" {
		r.scratch.Keep(owned)
		b.Own(owned)
	}
	return b, nil
}
