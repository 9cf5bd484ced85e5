// Package module exposes the onboarding pipelines as host modules: named
// operations with declared input and output schemas that take and return
// value maps.
package module

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	onboarderrors "github.com/glorpus-work/onboard/pkg/errors"
	"github.com/glorpus-work/onboard/pkg/pipeline"
	"github.com/glorpus-work/onboard/pkg/validate"
)

// Config holds the metadata attachment switches shared by all modules.
type Config struct {
	AttachMetadata         bool `json:"attach_metadata" yaml:"attach_metadata"`
	AttachMetadataToBundle bool `json:"attach_metadata_to_bundle" yaml:"attach_metadata_to_bundle"`
	AttachMetadataToFiles  bool `json:"attach_metadata_to_files" yaml:"attach_metadata_to_files"`
}

// DefaultConfig attaches provenance to files and bundles but not to the
// files inside a bundle.
func DefaultConfig() Config {
	return Config{
		AttachMetadata:         true,
		AttachMetadataToBundle: true,
		AttachMetadataToFiles:  false,
	}
}

// ProcessFunc runs a module against validated inputs.
type ProcessFunc func(ctx context.Context, o *pipeline.Orchestrator, cfg Config, inputs ValueMap) (ValueMap, error)

// Module is one named onboarding operation.
type Module struct {
	Name    string
	Doc     string
	Inputs  Schema
	Outputs Schema

	process ProcessFunc
	inputs  *validate.Schema
}

// New declares a module. Both schemas are checked here so that a broken
// declaration never reaches Process.
func New(name, doc string, inputs, outputs Schema, process ProcessFunc) (*Module, error) {
	if name == "" || process == nil {
		return nil, fmt.Errorf("module %q: name and process are required: %w", name, onboarderrors.ErrInvalidSchema)
	}
	if err := inputs.check(); err != nil {
		return nil, fmt.Errorf("module %s inputs: %w", name, err)
	}
	if err := outputs.check(); err != nil {
		return nil, fmt.Errorf("module %s outputs: %w", name, err)
	}
	compiled, err := inputs.compile(name)
	if err != nil {
		return nil, err
	}
	return &Module{Name: name, Doc: doc, Inputs: inputs, Outputs: outputs, process: process, inputs: compiled}, nil
}

// Process validates inputs against the input schema and runs the module.
func (m *Module) Process(ctx context.Context, o *pipeline.Orchestrator, cfg Config, inputs ValueMap) (ValueMap, error) {
	if inputs == nil {
		inputs = ValueMap{}
	}
	data, err := json.Marshal(inputs)
	if err != nil {
		return nil, fmt.Errorf("module %s: %w: %v", m.Name, onboarderrors.ErrInvalidInput, err)
	}
	if err := m.inputs.ValidateJSON(data); err != nil {
		return nil, fmt.Errorf("module %s: %w: %v", m.Name, onboarderrors.ErrInvalidInput, err)
	}
	return m.process(ctx, o, cfg, inputs)
}

// Registry holds modules by name.
type Registry struct {
	modules map[string]*Module
}

// NewRegistry returns a registry with every onboarding module.
func NewRegistry() (*Registry, error) {
	r := &Registry{modules: make(map[string]*Module)}
	for _, decl := range builtins {
		m, err := New(decl.name, decl.doc, decl.inputs, decl.outputs, decl.process)
		if err != nil {
			return nil, err
		}
		r.modules[m.Name] = m
	}
	return r, nil
}

// Get returns the module called name.
func (r *Registry) Get(name string) (*Module, error) {
	m, ok := r.modules[name]
	if !ok {
		return nil, fmt.Errorf("%s (available: %v): %w", name, r.Names(), onboarderrors.ErrUnknownModule)
	}
	return m, nil
}

// Names lists the registered module names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.modules))
	for n := range r.modules {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
