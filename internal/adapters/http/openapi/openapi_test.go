package openapi

import (
	"context"
	"strings"
	"testing"
)

func TestLoadValidatesEmbeddedDocument(t *testing.T) {
	if _, err := Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
}

func TestValidateActionPayload(t *testing.T) {
	doc, err := Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	ok := map[string]any{"notes": "complete", "admin_edited_content": map[string]any{"purpose": "work"}}
	if err := doc.ValidateSchema("ActionPayload", ok); err != nil {
		t.Fatalf("expected valid payload, got %v", err)
	}

	tests := map[string]any{
		"unknown field": map[string]any{"note": "typo"},
		"wrong type":    map[string]any{"code": 1234.0},
		"too long":      map[string]any{"notes": strings.Repeat("x", 2001)},
		"content value": map[string]any{"admin_edited_content": map[string]any{"age": 3.0}},
	}
	for name, payload := range tests {
		if err := doc.ValidateSchema("ActionPayload", payload); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}

func TestValidateUnknownSchema(t *testing.T) {
	doc, err := Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if err := doc.ValidateSchema("Nope", map[string]any{}); err == nil {
		t.Fatalf("expected error for unknown schema")
	}
}
