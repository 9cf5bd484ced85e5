package module

import (
	"encoding/json"
	"fmt"
	"sort"

	onboarderrors "github.com/glorpus-work/onboard/pkg/errors"
	"github.com/glorpus-work/onboard/pkg/model"
	"github.com/glorpus-work/onboard/pkg/validate"
)

// FieldType is the data type of a module input or output.
type FieldType string

// Supported field types.
const (
	TypeString     FieldType = "string"
	TypeBoolean    FieldType = "boolean"
	TypeDict       FieldType = "dict"
	TypeFile       FieldType = "file"
	TypeFileBundle FieldType = "file_bundle"
)

// jsonType maps value types to JSON schema types; entity types have none.
var jsonType = map[FieldType]string{
	TypeString:  "string",
	TypeBoolean: "boolean",
	TypeDict:    "object",
}

// Field describes one input or output.
type Field struct {
	Type     FieldType `json:"type" yaml:"type"`
	Doc      string    `json:"doc" yaml:"doc"`
	Optional bool      `json:"optional,omitempty" yaml:"optional,omitempty"`
}

// Schema maps field names to their declaration.
type Schema map[string]Field

// Names returns the field names in sorted order.
func (s Schema) Names() []string {
	names := make([]string, 0, len(s))
	for n := range s {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// check reports declaration errors: empty names, unknown types, missing
// docs.
func (s Schema) check() error {
	for _, name := range s.Names() {
		f := s[name]
		if name == "" {
			return fmt.Errorf("empty field name: %w", onboarderrors.ErrInvalidSchema)
		}
		switch f.Type {
		case TypeString, TypeBoolean, TypeDict, TypeFile, TypeFileBundle:
		default:
			return fmt.Errorf("field %s: unknown type %q: %w", name, f.Type, onboarderrors.ErrInvalidSchema)
		}
		if f.Doc == "" {
			return fmt.Errorf("field %s: missing doc: %w", name, onboarderrors.ErrInvalidSchema)
		}
	}
	return nil
}

// compile turns the value fields of s into a JSON schema that rejects
// unknown and missing required fields.
func (s Schema) compile(name string) (*validate.Schema, error) {
	props := make(map[string]any, len(s))
	required := []string{}
	for _, fieldName := range s.Names() {
		f := s[fieldName]
		prop := map[string]any{"description": f.Doc}
		if t, ok := jsonType[f.Type]; ok {
			prop["type"] = t
		}
		props[fieldName] = prop
		if !f.Optional {
			required = append(required, fieldName)
		}
	}
	doc, err := json.Marshal(map[string]any{
		"$schema":              "https://json-schema.org/draft/2020-12/schema",
		"type":                 "object",
		"properties":           props,
		"required":             required,
		"additionalProperties": false,
	})
	if err != nil {
		return nil, err
	}
	return validate.Compile(name+".inputs.json", doc, "")
}

// ValueMap holds named module values.
type ValueMap map[string]any

// String returns the string stored under key, or "".
func (v ValueMap) String(key string) string {
	s, _ := v[key].(string)
	return s
}

// File returns the file stored under key, or nil.
func (v ValueMap) File(key string) *model.File {
	f, _ := v[key].(*model.File)
	return f
}

// Bundle returns the bundle stored under key, or nil.
func (v ValueMap) Bundle(key string) *model.FileBundle {
	b, _ := v[key].(*model.FileBundle)
	return b
}

// ImportConfig decodes the dict stored under key. A missing value yields
// nil, which imports everything.
func (v ValueMap) ImportConfig(key string) (*model.ImportConfig, error) {
	raw, ok := v[key]
	if !ok || raw == nil {
		return nil, nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", key, onboarderrors.ErrInvalidInput, err)
	}
	var cfg model.ImportConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", key, onboarderrors.ErrInvalidInput, err)
	}
	return &cfg, nil
}
