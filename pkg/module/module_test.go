package module_test

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glorpus-work/onboard/pkg/archive"
	"github.com/glorpus-work/onboard/pkg/bundle"
	"github.com/glorpus-work/onboard/pkg/download"
	onboarderrors "github.com/glorpus-work/onboard/pkg/errors"
	"github.com/glorpus-work/onboard/pkg/model"
	"github.com/glorpus-work/onboard/pkg/module"
	"github.com/glorpus-work/onboard/pkg/pipeline"
	"github.com/glorpus-work/onboard/pkg/resolver"
)

func TestDefaultConfig(t *testing.T) {
	cfg := module.DefaultConfig()
	assert.True(t, cfg.AttachMetadata)
	assert.True(t, cfg.AttachMetadataToBundle)
	assert.False(t, cfg.AttachMetadataToFiles)
}

func TestRegistry(t *testing.T) {
	reg, err := module.NewRegistry()
	require.NoError(t, err)

	assert.Equal(t, []string{
		"download.file",
		"download.file.from.zenodo",
		"download.file_bundle",
		"download.file_bundle.from.zenodo",
		"import.file",
		"import.file_bundle",
	}, reg.Names())

	m, err := reg.Get("download.file_bundle")
	require.NoError(t, err)
	assert.Equal(t, module.TypeFileBundle, m.Outputs["file_bundle"].Type)
	assert.False(t, m.Inputs["url"].Optional)
	assert.True(t, m.Inputs["sub_path"].Optional)

	_, err = reg.Get("download.nothing")
	assert.True(t, errors.Is(err, onboarderrors.ErrUnknownModule))
}

func TestNew_RejectsBadSchemas(t *testing.T) {
	noop := func(context.Context, *pipeline.Orchestrator, module.Config, module.ValueMap) (module.ValueMap, error) {
		return nil, nil
	}
	tests := []struct {
		name    string
		inputs  module.Schema
		outputs module.Schema
	}{
		{"unknown type", module.Schema{"x": {Type: "int", Doc: "x"}}, nil},
		{"missing doc", module.Schema{"x": {Type: module.TypeString}}, nil},
		{"empty name", nil, module.Schema{"": {Type: module.TypeFile, Doc: "f"}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := module.New("bad", "", tc.inputs, tc.outputs, noop)
			assert.True(t, errors.Is(err, onboarderrors.ErrInvalidSchema))
		})
	}

	_, err := module.New("", "", nil, nil, noop)
	assert.Error(t, err)
}

func TestProcess_ValidatesInputs(t *testing.T) {
	reg, err := module.NewRegistry()
	require.NoError(t, err)
	m, err := reg.Get("download.file")
	require.NoError(t, err)

	o := &pipeline.Orchestrator{}
	tests := []struct {
		name   string
		inputs module.ValueMap
	}{
		{"missing required", module.ValueMap{"file_name": "x"}},
		{"unknown field", module.ValueMap{"url": "https://example.org/x", "bogus": "1"}},
		{"wrong type", module.ValueMap{"url": 42}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := m.Process(context.Background(), o, module.DefaultConfig(), tc.inputs)
			assert.True(t, errors.Is(err, onboarderrors.ErrInvalidInput), "%v", err)
		})
	}
}

func TestValueMap_ImportConfig(t *testing.T) {
	v := module.ValueMap{"import_config": map[string]any{"include_files": []any{".csv"}, "exclude_dirs": []any{".git"}}}
	cfg, err := v.ImportConfig("import_config")
	require.NoError(t, err)
	assert.Equal(t, &model.ImportConfig{IncludeFiles: []string{".csv"}, ExcludeDirs: []string{".git"}}, cfg)

	cfg, err = module.ValueMap{}.ImportConfig("import_config")
	require.NoError(t, err)
	assert.Nil(t, cfg)

	_, err = module.ValueMap{"import_config": map[string]any{"include_files": "not-a-list"}}.ImportConfig("import_config")
	assert.True(t, errors.Is(err, onboarderrors.ErrInvalidInput))
}

func TestModules_EndToEnd(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("data/readme.txt")
	require.NoError(t, err)
	_, _ = w.Write([]byte("hi"))
	require.NoError(t, zw.Close())
	payloads := map[string][]byte{"/a.zip": buf.Bytes(), "/f.txt": []byte("file")}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := payloads[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	o := pipeline.New(download.NewManager(5*time.Second, ""), archive.NewManager(), bundle.NewAssembler(), resolver.NewRegistry(), pipeline.Hooks{})
	o.ScratchDir = t.TempDir()
	reg, err := module.NewRegistry()
	require.NoError(t, err)
	ctx := context.Background()

	m, err := reg.Get("download.file")
	require.NoError(t, err)
	out, err := m.Process(ctx, o, module.DefaultConfig(), module.ValueMap{"url": srv.URL + "/f.txt"})
	require.NoError(t, err)
	f := out.File("file")
	require.NotNil(t, f)
	assert.Contains(t, f.Metadata, model.MetadataDownloadInfo)
	_ = f.Release()

	m, err = reg.Get("download.file_bundle")
	require.NoError(t, err)
	out, err = m.Process(ctx, o, module.DefaultConfig(), module.ValueMap{"url": srv.URL + "/a.zip", "sub_path": "data"})
	require.NoError(t, err)
	b := out.Bundle("file_bundle")
	require.NotNil(t, b)
	assert.Equal(t, []string{"readme.txt"}, b.Keys())
	assert.Contains(t, b.Metadata, model.MetadataDownloadInfo)
	assert.Empty(t, b.IncludedFiles["readme.txt"].Metadata)
	_ = b.Release()

	cfg := module.Config{AttachMetadataToFiles: true}
	m, err = reg.Get("import.file_bundle")
	require.NoError(t, err)
	out, err = m.Process(ctx, o, cfg, module.ValueMap{"source": srv.URL + "/a.zip", "onboard_type": "url"})
	require.NoError(t, err)
	b = out.Bundle("file_bundle")
	assert.NotContains(t, b.Metadata, model.MetadataDownloadInfo)
	assert.Contains(t, b.IncludedFiles["data/readme.txt"].Metadata, model.MetadataDownloadInfo)
	_ = b.Release()
}
