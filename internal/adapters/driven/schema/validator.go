// Package schema validates LLM completions against the metadata sidecar schema.
package schema

import (
	"bytes"
	_ "embed"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/custodia-labs/archivist/internal/core/ports/driven"
)

//go:embed metadata.schema.json
var metadataSchema []byte

const schemaURL = "metadata.schema.json"

// Ensure Validator implements the interface.
var _ driven.MetadataValidator = (*Validator)(nil)

// Validator checks parsed completions against a compiled JSON schema.
type Validator struct {
	schema *jsonschema.Schema
}

// NewMetadataValidator compiles the embedded metadata schema.
func NewMetadataValidator() (*Validator, error) {
	return NewValidator(metadataSchema)
}

// NewValidator compiles a draft-07 schema document.
func NewValidator(schemaJSON []byte) (*Validator, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft7
	if err := compiler.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &Validator{schema: schema}, nil
}

// Validate returns an error listing the schema violations in doc.
// doc must come from encoding/json so numbers are float64.
func (v *Validator) Validate(doc map[string]any) error {
	if err := v.schema.Validate(doc); err != nil {
		return fmt.Errorf("completion does not match schema: %w", err)
	}
	return nil
}
