package pipeline

import (
	"context"
	"os"
	"path"

	"github.com/glorpus-work/onboard/pkg/download"
	"github.com/glorpus-work/onboard/pkg/hooks"
	"github.com/glorpus-work/onboard/pkg/model"
)

// FetchFile downloads req.URL into a tracked file. Without a TargetPath the
// file lives in scratch space owned by the result; call Release to free it.
func (o *Orchestrator) FetchFile(ctx context.Context, req FileRequest) (*model.File, error) {
	if err := o.checkConfigured(false, false); err != nil {
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
	res, err := o.download(ctx, r, download.Item{
		ID:         r.id,
		URL:        u,
		TargetPath: req.TargetPath,
		FileName:   req.FileName,
	}, true)
	if err = r.finish(err); err != nil {
		return nil, err
	}
	if req.AttachMetadata {
		res.File.SetMetadata(model.MetadataDownloadInfo, res.Info)
	}
	return res.File, nil
}

// FetchRecordFile resolves a provider record and downloads the file stored
// under req.Path, verifying the provider checksum. An empty Path selects the
// only file of a single-file record.
func (o *Orchestrator) FetchRecordFile(ctx context.Context, req RecordFileRequest) (*model.File, error) {
	if err := o.checkConfigured(false, false); err != nil {
		return nil, err
	}
	r, err := o.begin(req.Provider + ":" + req.ID + "/" + req.Path)
	if err != nil {
		return nil, err
	}
	file, err := o.fetchRecordFile(ctx, r, req)
	if err = r.finish(err); err != nil {
		return nil, err
	}
	return file, nil
}

func (o *Orchestrator) fetchRecordFile(ctx context.Context, r *run, req RecordFileRequest) (*model.File, error) {
	rec, err := r.resolve(ctx, req.Provider, req.ID, req.VersionConstraint)
	if err != nil {
		return nil, err
	}
	key := req.Path
	if key == "" && len(rec.Files) == 1 {
		key = rec.Files[0].Key
	}
	rf, err := rec.Lookup(key)
	if err != nil {
		return nil, err
	}
	u, err := parseURL(rf.URL)
	if err != nil {
		return nil, err
	}
	name := req.FileName
	if name == "" {
		name = path.Base(rf.Key)
	}
	res, err := o.download(ctx, r, download.Item{ID: rf.Key, URL: u, FileName: name, Checksum: rf.Checksum}, true)
	if err != nil {
		return nil, err
	}
	if req.AttachMetadata {
		res.File.SetMetadata(model.RecordDataKey(rec.Provider), rec.Data)
	}
	return res.File, nil
}

// ImportFile onboards an existing local file. The caller keeps ownership of
// the path.
func (o *Orchestrator) ImportFile(ctx context.Context, filePath, name string) (*model.File, error) {
	r, err := o.begin(filePath)
	if err != nil {
		return nil, err
	}
	f, err := model.LoadFile(filePath, name)
	if err == nil {
		err = r.hook(ctx, hooks.PostFetch, PhaseFetching, hooks.HookContext{Path: f.Path, Name: f.Name, Hash: f.Hash})
	}
	if err = r.finish(err); err != nil {
		return nil, err
	}
	return f, nil
}

// download fetches one item into a fresh work directory (or its
// TargetPath) and runs the post-fetch hook. With keep set the work
// directory is handed to the returned file; otherwise it is scratch and
// goes away with the run.
func (o *Orchestrator) download(ctx context.Context, r *run, item download.Item, keep bool) (*download.Result, error) {
	dir, err := r.workDir()
	if err != nil {
		return nil, err
	}
	r.emit(PhaseFetching, item.URL.String())
	res, err := o.DL.Fetch(ctx, item, download.Options{Dir: dir})
	if err != nil {
		return nil, err
	}
	if item.Checksum != "" {
		r.emit(PhaseVerifying, item.Checksum)
	}
	if keep && item.TargetPath == "" {
		r.scratch.Keep(dir)
		res.File.Own(dir)
	}
	hctx := hooks.HookContext{Path: res.File.Path, Name: res.File.Name, Hash: res.File.Hash}
	if err := r.hook(ctx, hooks.PostFetch, PhaseFetching, hctx); err != nil {
		if item.TargetPath != "" {
			_ = os.Remove(res.File.Path)
		}
		_ = res.File.Release()
		return nil, err
	}
	return res, nil
}
