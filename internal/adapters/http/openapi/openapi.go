// Package openapi embeds the HTTP API description and validates request
// bodies against its component schemas.
package openapi

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"
)

//go:embed openapi.yaml
var spec []byte

// Document is the parsed and validated API description.
type Document struct {
	doc *openapi3.T
}

func Load(ctx context.Context) (*Document, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(spec)
	if err != nil {
		return nil, fmt.Errorf("load openapi document: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("validate openapi document: %w", err)
	}
	return &Document{doc: doc}, nil
}

// Raw returns the embedded YAML.
func Raw() []byte {
	return spec
}

// ValidateSchema checks a decoded JSON value against a named component schema.
func (d *Document) ValidateSchema(name string, value any) error {
	ref, ok := d.doc.Components.Schemas[name]
	if !ok || ref.Value == nil {
		return fmt.Errorf("unknown schema %q", name)
	}
	return ref.Value.VisitJSON(value)
}
