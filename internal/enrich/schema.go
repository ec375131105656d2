// Package enrich implements prompt/schema driven data extraction from
// scraped web content.
package enrich

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// SchemaField declares one expected output field of an extraction.
type SchemaField struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required"`
	Default     any    `json:"default,omitempty"`
}

// ExtractionSchema is the declared set of fields an extraction must produce.
type ExtractionSchema struct {
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Fields      []SchemaField `json:"fields"`
}

// ValidationError reports required fields that were missing or null in an
// extraction, each attributable by name.
type ValidationError struct {
	Schema        string
	MissingFields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf(
		"schema %q validation failed: missing required fields: %s",
		e.Schema, strings.Join(e.MissingFields, ", "),
	)
}

// LoadSchema reads an extraction schema from a JSON file.
func LoadSchema(path string) (ExtractionSchema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ExtractionSchema{}, fmt.Errorf("read schema file: %w", err)
	}
	var schema ExtractionSchema
	if err := json.Unmarshal(data, &schema); err != nil {
		return ExtractionSchema{}, fmt.Errorf("parse schema %s: %w", filepath.Base(path), err)
	}
	if schema.Name == "" {
		schema.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if len(schema.Fields) == 0 {
		return ExtractionSchema{}, fmt.Errorf("schema %q declares no fields", schema.Name)
	}
	return schema, nil
}

// ResolveSchema locates <dir>/<name>.json.
func ResolveSchema(dir, name string) (string, error) {
	path := filepath.Join(dir, name+".json")
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("schema %q not found in %s", name, dir)
	}
	return path, nil
}

// ListSchemas loads every schema in dir, sorted by file name.
func ListSchemas(dir string) ([]ExtractionSchema, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("glob schemas: %w", err)
	}
	sort.Strings(matches)
	schemas := make([]ExtractionSchema, 0, len(matches))
	for _, path := range matches {
		schema, err := LoadSchema(path)
		if err != nil {
			return nil, err
		}
		schemas = append(schemas, schema)
	}
	return schemas, nil
}

// Normalize checks a candidate extraction against the schema. Required fields
// must be present and non-null. Missing optional fields take their declared
// default. Unknown extra fields pass through unchanged.
func (s ExtractionSchema) Normalize(candidate map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(candidate)+len(s.Fields))
	for k, v := range candidate {
		out[k] = v
	}

	var missing []string
	for _, field := range s.Fields {
		value, present := out[field.Name]
		if present && value != nil {
			continue
		}
		if field.Required {
			missing = append(missing, field.Name)
			continue
		}
		if field.Default != nil {
			out[field.Name] = field.Default
		}
	}
	if len(missing) > 0 {
		return nil, &ValidationError{Schema: s.Name, MissingFields: missing}
	}
	return out, nil
}

// FieldSummary renders the field list for prompt interpolation, one field
// per line.
func (s ExtractionSchema) FieldSummary() string {
	var b strings.Builder
	for _, field := range s.Fields {
		b.WriteString("- ")
		b.WriteString(field.Name)
		b.WriteString(" (")
		b.WriteString(field.Type)
		if field.Required {
			b.WriteString(", required")
		}
		b.WriteString(")")
		if field.Description != "" {
			b.WriteString(": ")
			b.WriteString(field.Description)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
