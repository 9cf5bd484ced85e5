package pipeline_test

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/glorpus-work/onboard/pkg/archive"
	"github.com/glorpus-work/onboard/pkg/bundle"
	"github.com/glorpus-work/onboard/pkg/download"
	onboarderrors "github.com/glorpus-work/onboard/pkg/errors"
	"github.com/glorpus-work/onboard/pkg/hooks"
	"github.com/glorpus-work/onboard/pkg/model"
	"github.com/glorpus-work/onboard/pkg/pipeline"
	"github.com/glorpus-work/onboard/pkg/pipeline/mocks"
	"github.com/glorpus-work/onboard/pkg/resolver"
)

func md5Tag(data []byte) string {
	sum := md5.Sum(data)
	return "md5:" + hex.EncodeToString(sum[:])
}

func zipBytes(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// serve exposes fixed payloads by path.
func serve(t *testing.T, payloads map[string][]byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := payloads[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func entries(t *testing.T, dir string) []string {
	t.Helper()
	list, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(list))
	for _, e := range list {
		names = append(names, e.Name())
	}
	return names
}

// newOrchestrator wires the real fetcher, extractor and assembler.
func newOrchestrator(t *testing.T, resolvers ...resolver.Resolver) (*pipeline.Orchestrator, string) {
	t.Helper()
	scratch := t.TempDir()
	o := pipeline.New(
		download.NewManager(5*time.Second, ""),
		archive.NewManager(),
		bundle.NewAssembler(),
		resolver.NewRegistry(resolvers...),
		pipeline.Hooks{},
	)
	o.ScratchDir = scratch
	o.Concurrency = 2
	return o, scratch
}

func mockResolver(ctrl *gomock.Controller, rec *model.Record, err error) *mocks.MockResolver {
	res := mocks.NewMockResolver(ctrl)
	res.EXPECT().Provider().Return(resolver.ZenodoProvider).AnyTimes()
	res.EXPECT().Resolve(gomock.Any(), gomock.Any()).Return(rec, err).AnyTimes()
	return res
}

func TestFetchFile(t *testing.T) {
	srv := serve(t, map[string][]byte{"/data/table.csv": []byte("a,b\n1,2\n")})
	o, scratch := newOrchestrator(t)

	f, err := o.FetchFile(context.Background(), pipeline.FileRequest{URL: srv.URL + "/data/table.csv", AttachMetadata: true})
	require.NoError(t, err)

	assert.Equal(t, "table.csv", f.Name)
	assert.Equal(t, int64(8), f.Size)
	assert.NotEmpty(t, f.Hash)
	info, ok := f.Metadata[model.MetadataDownloadInfo].(model.DownloadInfo)
	require.True(t, ok)
	assert.Equal(t, srv.URL+"/data/table.csv", info.URL)
	assert.NotEmpty(t, info.ResponseHeaders)

	require.NoError(t, f.Release())
	_, err = os.Stat(f.Path)
	assert.True(t, os.IsNotExist(err))
	assert.Empty(t, entries(t, scratch))
}

func TestFetchFile_WithoutMetadataAndTarget(t *testing.T) {
	srv := serve(t, map[string][]byte{"/x.bin": []byte("xyz")})
	o, scratch := newOrchestrator(t)
	target := filepath.Join(t.TempDir(), "out", "x.bin")

	f, err := o.FetchFile(context.Background(), pipeline.FileRequest{URL: srv.URL + "/x.bin", TargetPath: target, FileName: "renamed.bin"})
	require.NoError(t, err)
	assert.Equal(t, target, f.Path)
	assert.Equal(t, "renamed.bin", f.Name)
	assert.Empty(t, f.Metadata)
	assert.Empty(t, entries(t, scratch))

	// The caller owns TargetPath; Release leaves it alone.
	require.NoError(t, f.Release())
	assert.FileExists(t, target)
}

func TestFetchFile_Errors(t *testing.T) {
	srv := serve(t, nil)
	o, scratch := newOrchestrator(t)

	_, err := o.FetchFile(context.Background(), pipeline.FileRequest{URL: "ftp://example.org/x"})
	assert.True(t, errors.Is(err, onboarderrors.ErrFetch))

	_, err = o.FetchFile(context.Background(), pipeline.FileRequest{URL: srv.URL + "/missing"})
	var fe *onboarderrors.FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, http.StatusNotFound, fe.StatusCode)
	assert.Empty(t, entries(t, scratch))

	_, err = (&pipeline.Orchestrator{}).FetchFile(context.Background(), pipeline.FileRequest{URL: srv.URL})
	assert.True(t, errors.Is(err, onboarderrors.ErrNotConfigured))
}

func TestFetchBundle_EndToEnd(t *testing.T) {
	srv := serve(t, map[string][]byte{"/archive.zip": zipBytes(t, map[string]string{"readme.txt": "hello"})})
	o, scratch := newOrchestrator(t)

	var phases []string
	o.Hooks = pipeline.Hooks{OnEvent: func(e pipeline.Event) { phases = append(phases, e.Phase) }}

	b, err := o.FetchBundle(context.Background(), pipeline.BundleRequest{URL: srv.URL + "/archive.zip", AttachToBundle: true})
	require.NoError(t, err)

	assert.Equal(t, []string{"readme.txt"}, b.Keys())
	assert.Equal(t, "archive", b.Name)
	assert.Equal(t, 1, b.NumberOfFiles)
	info, ok := b.Metadata[model.MetadataDownloadInfo].(model.DownloadInfo)
	require.True(t, ok)
	assert.Equal(t, srv.URL+"/archive.zip", info.URL)
	assert.Equal(t, []string{
		pipeline.PhaseFetching, pipeline.PhaseExtracting, pipeline.PhaseAssembling, pipeline.PhaseDone,
	}, phases)

	// Only the extracted tree survives; the archive is gone.
	assert.Len(t, entries(t, scratch), 1)
	require.NoError(t, b.Release())
	assert.Empty(t, entries(t, scratch))
}

func TestFetchBundle_MetadataAttachmentIsIndependent(t *testing.T) {
	srv := serve(t, map[string][]byte{"/d.zip": zipBytes(t, map[string]string{"a.txt": "a", "b/c.txt": "c"})})

	tests := []struct {
		name           string
		toBundle       bool
		toFiles        bool
		wantBundleMeta bool
		wantFileMeta   bool
	}{
		{"bundle only", true, false, true, false},
		{"files only", false, true, false, true},
		{"both", true, true, true, true},
		{"neither", false, false, false, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			o, _ := newOrchestrator(t)
			b, err := o.FetchBundle(context.Background(), pipeline.BundleRequest{
				URL:            srv.URL + "/d.zip",
				AttachToBundle: tc.toBundle,
				AttachToFiles:  tc.toFiles,
			})
			require.NoError(t, err)
			defer func() { _ = b.Release() }()

			_, has := b.Metadata[model.MetadataDownloadInfo]
			assert.Equal(t, tc.wantBundleMeta, has)
			for key, f := range b.IncludedFiles {
				_, has := f.Metadata[model.MetadataDownloadInfo]
				assert.Equal(t, tc.wantFileMeta, has, key)
			}
		})
	}
}

func TestFetchBundle_SubPathAndImportConfig(t *testing.T) {
	srv := serve(t, map[string][]byte{"/d.zip": zipBytes(t, map[string]string{
		"a/x.txt": "x", "a/b/y.txt": "y", "a/b/skip.log": "l", "c/z.txt": "z",
	})})
	o, _ := newOrchestrator(t)

	imp := &model.ImportConfig{ExcludeFiles: []string{".log"}}
	b, err := o.FetchBundle(context.Background(), pipeline.BundleRequest{
		URL: srv.URL + "/d.zip", SubPath: "a", Name: "subset", Import: imp, AttachToBundle: true,
	})
	require.NoError(t, err)
	defer func() { _ = b.Release() }()

	assert.Equal(t, []string{"b/y.txt", "x.txt"}, b.Keys())
	assert.Equal(t, "subset", b.Name)
	info := b.Metadata[model.MetadataDownloadInfo].(model.DownloadInfo)
	assert.Equal(t, "a", info.SubPath)
	assert.Equal(t, imp, info.ImportConfig)
}

func TestFetchBundle_FailuresLeaveNoScratch(t *testing.T) {
	srv := serve(t, map[string][]byte{
		"/notes.txt": []byte("plain text"),
		"/d.zip":     zipBytes(t, map[string]string{"a/x.txt": "x"}),
	})

	t.Run("not an archive", func(t *testing.T) {
		o, scratch := newOrchestrator(t)
		var last pipeline.Event
		o.Hooks = pipeline.Hooks{OnEvent: func(e pipeline.Event) { last = e }}

		_, err := o.FetchBundle(context.Background(), pipeline.BundleRequest{URL: srv.URL + "/notes.txt"})
		var ee *onboarderrors.ExtractionError
		require.True(t, errors.As(err, &ee))
		assert.NotNil(t, ee.Cause)
		assert.Equal(t, pipeline.PhaseFailed, last.Phase)
		assert.Empty(t, entries(t, scratch))
	})

	t.Run("missing sub path", func(t *testing.T) {
		o, scratch := newOrchestrator(t)
		_, err := o.FetchBundle(context.Background(), pipeline.BundleRequest{URL: srv.URL + "/d.zip", SubPath: "nope"})
		assert.True(t, errors.Is(err, onboarderrors.ErrAssembly))
		assert.Empty(t, entries(t, scratch))
	})
}

func TestFetchRecordFile(t *testing.T) {
	payload := []byte("col\n1\n")
	srv := serve(t, map[string][]byte{"/files/data.csv": payload})
	ctrl := gomock.NewController(t)
	rec := &model.Record{
		Provider: resolver.ZenodoProvider,
		ID:       "10.5281/zenodo.123",
		Version:  "1.2.0",
		Files: []model.RemoteFile{
			{Key: "data.csv", URL: srv.URL + "/files/data.csv", Checksum: md5Tag(payload)},
			{Key: "other.csv", URL: srv.URL + "/files/other.csv"},
		},
		Data: map[string]any{"title": "Sample"},
	}
	o, _ := newOrchestrator(t, mockResolver(ctrl, rec, nil))

	t.Run("success", func(t *testing.T) {
		var phases []string
		o.Hooks = pipeline.Hooks{OnEvent: func(e pipeline.Event) { phases = append(phases, e.Phase) }}
		defer func() { o.Hooks = pipeline.Hooks{} }()

		f, err := o.FetchRecordFile(context.Background(), pipeline.RecordFileRequest{
			Provider: resolver.ZenodoProvider, ID: rec.ID, Path: "data.csv", AttachMetadata: true,
		})
		require.NoError(t, err)
		defer func() { _ = f.Release() }()

		assert.Equal(t, "data.csv", f.Name)
		assert.Equal(t, rec.Data, f.Metadata["zenodo_record_data"])
		assert.NotContains(t, f.Metadata, model.MetadataDownloadInfo)
		assert.Equal(t, []string{
			pipeline.PhaseResolving, pipeline.PhaseFetching, pipeline.PhaseVerifying, pipeline.PhaseDone,
		}, phases)
	})

	t.Run("unknown key lists available files", func(t *testing.T) {
		_, err := o.FetchRecordFile(context.Background(), pipeline.RecordFileRequest{
			Provider: resolver.ZenodoProvider, ID: rec.ID, Path: "missing.csv",
		})
		var nf *onboarderrors.NotFoundError
		require.True(t, errors.As(err, &nf))
		assert.Equal(t, []string{"data.csv", "other.csv"}, nf.Available)
	})

	t.Run("version constraint", func(t *testing.T) {
		_, err := o.FetchRecordFile(context.Background(), pipeline.RecordFileRequest{
			Provider: resolver.ZenodoProvider, ID: rec.ID, Path: "data.csv", VersionConstraint: ">= 2.0",
		})
		assert.True(t, errors.Is(err, onboarderrors.ErrVersionConstraint))
	})

	t.Run("unknown provider", func(t *testing.T) {
		_, err := o.FetchRecordFile(context.Background(), pipeline.RecordFileRequest{Provider: "figshare", ID: "1", Path: "x"})
		assert.True(t, errors.Is(err, onboarderrors.ErrUnknownProvider))
	})
}

func TestFetchRecordFile_SingleFileRecord(t *testing.T) {
	payload := []byte("only")
	srv := serve(t, map[string][]byte{"/files/only.bin": payload})
	ctrl := gomock.NewController(t)
	rec := &model.Record{
		Provider: resolver.ZenodoProvider,
		ID:       "10.5281/zenodo.9",
		Files:    []model.RemoteFile{{Key: "only.bin", URL: srv.URL + "/files/only.bin", Checksum: md5Tag(payload)}},
	}
	o, _ := newOrchestrator(t, mockResolver(ctrl, rec, nil))

	f, err := o.Onboard(context.Background(), pipeline.OnboardRequest{Source: "zenodo:9"})
	require.NoError(t, err)
	defer func() { _ = f.Release() }()
	assert.Equal(t, "only.bin", f.Name)
	assert.Equal(t, int64(4), f.Size)
}

func TestFetchRecordBundle_AllFiles(t *testing.T) {
	one, two := []byte("first"), []byte("second")
	srv := serve(t, map[string][]byte{"/f/one.txt": one, "/f/two.txt": two})
	ctrl := gomock.NewController(t)
	rec := &model.Record{
		Provider: resolver.ZenodoProvider,
		ID:       "10.5281/zenodo.9",
		Files: []model.RemoteFile{
			{Key: "one.txt", URL: srv.URL + "/f/one.txt", Checksum: md5Tag(one)},
			{Key: "two.txt", URL: srv.URL + "/f/two.txt", Checksum: md5Tag(two)},
		},
		Data: map[string]any{"doi": "10.5281/zenodo.9"},
	}
	o, scratch := newOrchestrator(t, mockResolver(ctrl, rec, nil))

	b, err := o.FetchRecordBundle(context.Background(), pipeline.RecordBundleRequest{
		Provider: resolver.ZenodoProvider, ID: rec.ID, AttachToBundle: true,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"one.txt", "two.txt"}, b.Keys())
	assert.Equal(t, rec.ID, b.Name)
	assert.Equal(t, int64(len(one)+len(two)), b.Size)
	assert.Equal(t, rec.Data, b.Metadata["zenodo_record_data"])
	for _, f := range b.IncludedFiles {
		assert.Empty(t, f.Metadata)
	}

	assert.Len(t, entries(t, scratch), 1)
	require.NoError(t, b.Release())
	assert.Empty(t, entries(t, scratch))
}

func TestFetchRecordBundle_IntegrityFailureAborts(t *testing.T) {
	good, bad := []byte("good"), []byte("tampered")
	srv := serve(t, map[string][]byte{"/f/good.txt": good, "/f/bad.txt": bad, "/f/late.txt": good})
	ctrl := gomock.NewController(t)
	rec := &model.Record{
		Provider: resolver.ZenodoProvider,
		ID:       "10.5281/zenodo.10",
		Files: []model.RemoteFile{
			{Key: "good.txt", URL: srv.URL + "/f/good.txt", Checksum: md5Tag(good)},
			{Key: "bad.txt", URL: srv.URL + "/f/bad.txt", Checksum: md5Tag([]byte("original"))},
			{Key: "late.txt", URL: srv.URL + "/f/late.txt", Checksum: md5Tag(good)},
		},
	}
	o, scratch := newOrchestrator(t, mockResolver(ctrl, rec, nil))

	b, err := o.FetchRecordBundle(context.Background(), pipeline.RecordBundleRequest{
		Provider: resolver.ZenodoProvider, ID: rec.ID, AttachToBundle: true, Concurrency: 1,
	})
	assert.Nil(t, b)
	var ie *onboarderrors.IntegrityError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, md5Tag([]byte("original"))[4:], ie.Expected)
	assert.Empty(t, entries(t, scratch))
}

func TestFetchRecordBundle_Archive(t *testing.T) {
	payload := zipBytes(t, map[string]string{"data/readme.txt": "r", "data/table.csv": "t"})
	srv := serve(t, map[string][]byte{"/f/data.zip": payload})
	ctrl := gomock.NewController(t)
	rec := &model.Record{
		Provider: resolver.ZenodoProvider,
		ID:       "10.5281/zenodo.11",
		Files:    []model.RemoteFile{{Key: "data.zip", URL: srv.URL + "/f/data.zip", Checksum: md5Tag(payload)}},
		Data:     map[string]any{"k": "v"},
	}
	o, _ := newOrchestrator(t, mockResolver(ctrl, rec, nil))

	b, err := o.FetchRecordBundle(context.Background(), pipeline.RecordBundleRequest{
		Provider: resolver.ZenodoProvider, ID: rec.ID, Archive: "data.zip", SubPath: "data", AttachToFiles: true,
	})
	require.NoError(t, err)
	defer func() { _ = b.Release() }()

	assert.Equal(t, []string{"readme.txt", "table.csv"}, b.Keys())
	assert.NotContains(t, b.Metadata, "zenodo_record_data")
	for _, f := range b.IncludedFiles {
		assert.Equal(t, rec.Data, f.Metadata["zenodo_record_data"])
	}
}

func TestFetchBundle_StageFailuresReleaseScratch(t *testing.T) {
	srv := serve(t, map[string][]byte{"/d.tar": []byte("not inspected")})

	newWithMocks := func(t *testing.T) (*pipeline.Orchestrator, *mocks.MockExtractor, *mocks.MockAssembler, string) {
		ctrl := gomock.NewController(t)
		ex := mocks.NewMockExtractor(ctrl)
		asm := mocks.NewMockAssembler(ctrl)
		o := pipeline.New(download.NewManager(5*time.Second, ""), ex, asm, resolver.NewRegistry(), pipeline.Hooks{})
		o.ScratchDir = t.TempDir()
		return o, ex, asm, o.ScratchDir
	}

	t.Run("extraction error after partial output", func(t *testing.T) {
		o, ex, _, scratch := newWithMocks(t)
		ex.EXPECT().Extract(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, archivePath, outputDir string) (string, error) {
				require.NoError(t, os.WriteFile(filepath.Join(outputDir, "partial.txt"), []byte("p"), 0o600))
				return "", &onboarderrors.ExtractionError{Archive: archivePath, Cause: onboarderrors.ErrPathTraversal}
			},
		).Times(1)

		_, err := o.FetchBundle(context.Background(), pipeline.BundleRequest{URL: srv.URL + "/d.tar"})
		assert.True(t, errors.Is(err, onboarderrors.ErrExtraction))
		assert.True(t, errors.Is(err, onboarderrors.ErrPathTraversal))
		assert.Empty(t, entries(t, scratch))
	})

	t.Run("assembly error", func(t *testing.T) {
		o, ex, asm, scratch := newWithMocks(t)
		ex.EXPECT().Extract(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, _, outputDir string) (string, error) {
				require.NoError(t, os.WriteFile(filepath.Join(outputDir, "a.txt"), []byte("a"), 0o600))
				return outputDir, nil
			},
		).Times(1)
		asm.EXPECT().Assemble(gomock.Any(), bundle.Options{SubPath: "sub", Name: "d"}).
			Return(nil, &onboarderrors.AssemblyError{Root: "x", Cause: onboarderrors.ErrInvalidPath}).Times(1)

		_, err := o.FetchBundle(context.Background(), pipeline.BundleRequest{URL: srv.URL + "/d.tar", SubPath: "sub"})
		assert.True(t, errors.Is(err, onboarderrors.ErrAssembly))
		assert.Empty(t, entries(t, scratch))
	})

	t.Run("assembler receives the extracted tree", func(t *testing.T) {
		o, ex, asm, scratch := newWithMocks(t)
		var extracted string
		ex.EXPECT().Extract(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, _, outputDir string) (string, error) {
				extracted = outputDir
				require.NoError(t, os.WriteFile(filepath.Join(outputDir, "a.txt"), []byte("a"), 0o600))
				return outputDir, nil
			},
		).Times(1)
		asm.EXPECT().Assemble(gomock.Any(), gomock.Any()).DoAndReturn(
			func(root string, opts bundle.Options) (*model.FileBundle, error) {
				assert.Equal(t, extracted, root)
				assert.Equal(t, "named", opts.Name)
				return bundle.NewAssembler().Assemble(root, opts)
			},
		).Times(1)

		b, err := o.FetchBundle(context.Background(), pipeline.BundleRequest{URL: srv.URL + "/d.tar", Name: "named"})
		require.NoError(t, err)
		assert.Equal(t, []string{"a.txt"}, b.Keys())
		require.NoError(t, b.Release())
		assert.Empty(t, entries(t, scratch))
	})
}

func TestFetchRecordBundle_StagesUnderKeys(t *testing.T) {
	ctrl := gomock.NewController(t)
	rec := &model.Record{
		Provider: resolver.ZenodoProvider,
		ID:       "10.5281/zenodo.12",
		Files: []model.RemoteFile{
			{Key: "a.txt", URL: "https://example.org/a.txt", Checksum: "md5:aa"},
			{Key: "../escape.txt", URL: "https://example.org/e.txt"},
		},
	}
	dl := mocks.NewMockManager(ctrl)
	o := pipeline.New(dl, nil, bundle.NewAssembler(), resolver.NewRegistry(mockResolver(ctrl, rec, nil)), pipeline.Hooks{})
	o.ScratchDir = t.TempDir()

	_, err := o.FetchRecordBundle(context.Background(), pipeline.RecordBundleRequest{Provider: resolver.ZenodoProvider, ID: rec.ID})
	assert.True(t, errors.Is(err, onboarderrors.ErrPathTraversal))

	rec.Files = rec.Files[:1]
	dl.EXPECT().FetchAll(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, items []download.Item, opts download.Options) (map[string]*download.Result, error) {
			require.Len(t, items, 1)
			assert.Equal(t, "a.txt", items[0].ID)
			assert.Equal(t, "md5:aa", items[0].Checksum)
			assert.Equal(t, "a.txt", filepath.Base(items[0].TargetPath))
			assert.Equal(t, 4, opts.Concurrency)
			require.NoError(t, os.WriteFile(items[0].TargetPath, []byte("a"), 0o600))
			return map[string]*download.Result{}, nil
		},
	).Times(1)

	b, err := o.FetchRecordBundle(context.Background(), pipeline.RecordBundleRequest{
		Provider: resolver.ZenodoProvider, ID: rec.ID, Concurrency: 4,
	})
	require.NoError(t, err)
	defer func() { _ = b.Release() }()
	assert.Equal(t, []string{"a.txt"}, b.Keys())
}

func TestHookScripts(t *testing.T) {
	srv := serve(t, map[string][]byte{"/d.zip": zipBytes(t, map[string]string{"a.txt": "a"})})

	t.Run("context reaches scripts", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		o, _ := newOrchestrator(t)
		runner := mocks.NewMockHookRunner(ctrl)
		o.Scripts = runner

		var seen []hooks.HookType
		runner.EXPECT().Execute(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, ht hooks.HookType, hctx hooks.HookContext) error {
				seen = append(seen, ht)
				assert.NotEmpty(t, hctx.RunID)
				assert.Equal(t, srv.URL+"/d.zip", hctx.Source)
				if ht == hooks.PostAssemble {
					assert.Equal(t, []string{"a.txt"}, hctx.Files)
				}
				return nil
			},
		).Times(3)

		b, err := o.FetchBundle(context.Background(), pipeline.BundleRequest{URL: srv.URL + "/d.zip"})
		require.NoError(t, err)
		_ = b.Release()
		assert.Equal(t, []hooks.HookType{hooks.PostFetch, hooks.PostExtract, hooks.PostAssemble}, seen)
	})

	t.Run("script error aborts", func(t *testing.T) {
		o, scratch := newOrchestrator(t)
		manager := hooks.NewHookManager()
		require.NoError(t, manager.AddHook(hooks.Hook{Type: hooks.PostAssemble, Content: `err = "rejected " + name`}))
		o.Scripts = manager

		b, err := o.FetchBundle(context.Background(), pipeline.BundleRequest{URL: srv.URL + "/d.zip"})
		assert.Nil(t, b)
		require.Error(t, err)
		assert.True(t, errors.Is(err, onboarderrors.ErrHookScript))
		assert.Contains(t, err.Error(), "rejected d")
		assert.Empty(t, entries(t, scratch))
	})
}
