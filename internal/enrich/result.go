package enrich

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"
)

// Result is one completed enrichment. Immutable once created.
type Result struct {
	CompanyName     string         `json:"company_name"`
	SourceURL       string         `json:"source_url"`
	SchemaName      string         `json:"schema_name"`
	PromptName      string         `json:"prompt_name"`
	ExtractedFields map[string]any `json:"extracted_fields"`
	GeneratedAt     time.Time      `json:"generated_at"`
	Model           string         `json:"model"`
}

// OutputFileName derives a file name from the company name and timestamp,
// keeping only filesystem-safe runes.
func (r Result) OutputFileName() string {
	name := r.CompanyName
	if name == "" {
		name = "enrichment"
	}
	var b strings.Builder
	for _, c := range name {
		switch {
		case unicode.IsLetter(c) || unicode.IsDigit(c) || c == '-' || c == '_':
			b.WriteRune(c)
		case c == ' ':
			b.WriteRune('_')
		}
	}
	safe := b.String()
	if safe == "" {
		safe = "enrichment"
	}
	return fmt.Sprintf("%s_%s.json", safe, r.GeneratedAt.Format("20060102_150405"))
}

// WriteJSONFile marshals v with indentation and writes it to path, creating
// the parent directory when needed.
func WriteJSONFile(path string, v any) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
