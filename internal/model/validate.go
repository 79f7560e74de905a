package model

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

var configSchema = map[string]any{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"definitions": map[string]any{
		"config": map[string]any{
			"type":     "object",
			"required": []any{KeyTemplate},
			"properties": map[string]any{
				KeyTemplate: map[string]any{"type": "string", "minLength": 1},
				KeyID:       map[string]any{"type": "string"},
				KeyRef:      map[string]any{"type": "string", "minLength": 1},
				KeyRefs: map[string]any{
					"type":                 "object",
					"additionalProperties": map[string]any{"$ref": "#/definitions/config"},
				},
			},
		},
	},
	"$ref": "#/definitions/config",
}

var documentSchema = map[string]any{
	"$schema":     "http://json-schema.org/draft-07/schema#",
	"definitions": configSchema["definitions"],
	"type":        "object",
	"required":    []any{"documentId", "config"},
	"properties": map[string]any{
		"documentId":    map[string]any{"type": "string", "minLength": 1},
		"projectId":     map[string]any{"type": "string"},
		"rootContainer": map[string]any{"type": "string"},
		"version":       map[string]any{"type": "integer", "minimum": 0},
		"config":        map[string]any{"$ref": "#/definitions/config"},
	},
}

// ValidationError lists every schema violation found.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Problems, "; ")
}

// ValidateConfigJSON checks the top level shape of a config tree. Nested
// child configs are checked when decoded.
func ValidateConfigJSON(data []byte) error {
	return validate(configSchema, data)
}

// ValidateDocumentJSON checks a persisted document.
func ValidateDocumentJSON(data []byte) error {
	return validate(documentSchema, data)
}

func validate(schema map[string]any, data []byte) error {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("invalid json: %w", err)
	}

	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(schema), gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("validation error: %w", err)
	}
	if result.Valid() {
		return nil
	}

	problems := make([]string, len(result.Errors()))
	for i, desc := range result.Errors() {
		problems[i] = desc.String()
	}
	return &ValidationError{Problems: problems}
}

// ParseDocument validates and decodes a persisted document.
func ParseDocument(data []byte) (*Document, error) {
	if err := ValidateDocumentJSON(data); err != nil {
		return nil, err
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if err := doc.Config.CheckUniqueIDs(); err != nil {
		return nil, err
	}
	return &doc, nil
}
