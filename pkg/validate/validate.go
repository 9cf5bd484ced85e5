// Package validate checks JSON and YAML documents against JSON schemas.
package validate

import (
	"bytes"
	"encoding/json"
	"fmt"

	onboarderrors "github.com/glorpus-work/onboard/pkg/errors"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"sigs.k8s.io/yaml"
)

// Schema is a compiled JSON schema.
type Schema struct {
	name   string
	schema *jsonschema.Schema
}

// Compile compiles schema, registering it under name. A non-empty ref
// selects a sub-schema such as "#/$defs/settings".
func Compile(name string, schema []byte, ref string) (*Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, bytes.NewReader(schema)); err != nil {
		return nil, fmt.Errorf("loading schema %s: %w: %v", name, onboarderrors.ErrInvalidSchema, err)
	}
	compiled, err := compiler.Compile(name + ref)
	if err != nil {
		return nil, fmt.Errorf("compiling schema %s: %w: %v", name, onboarderrors.ErrInvalidSchema, err)
	}
	return &Schema{name: name, schema: compiled}, nil
}

// MustCompile is like Compile but panics on error. It is meant for schemas
// embedded in the binary.
func MustCompile(name string, schema []byte) *Schema {
	s, err := Compile(name, schema, "")
	if err != nil {
		panic(err)
	}
	return s
}

// Validate checks a value decoded from JSON. Numbers may be float64 or
// json.Number.
func (s *Schema) Validate(v any) error {
	if err := s.schema.Validate(v); err != nil {
		return fmt.Errorf("validation against %s failed: %w", s.name, err)
	}
	return nil
}

// ValidateJSON decodes data and validates it.
func (s *Schema) ValidateJSON(data []byte) error {
	v, err := Decode(data)
	if err != nil {
		return err
	}
	return s.Validate(v)
}

// ValidateYAML converts data to JSON and validates it.
func (s *Schema) ValidateYAML(data []byte) error {
	jsonData, err := yaml.YAMLToJSON(data)
	if err != nil {
		return fmt.Errorf("converting YAML to JSON: %w", err)
	}
	return s.ValidateJSON(jsonData)
}

// Decode unmarshals JSON into the generic form the validator expects,
// keeping numbers as json.Number.
func Decode(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return v, nil
}

// AgainstSchema compiles schema and validates the JSON document data
// against it in one step.
func AgainstSchema(name string, schema, data []byte, ref string) error {
	s, err := Compile(name, schema, ref)
	if err != nil {
		return err
	}
	return s.ValidateJSON(data)
}
