package enrich

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

var placeholderPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_]+)\s*\}\}`)

// PromptTemplate is a prompt text with {{variable}} placeholders.
type PromptTemplate struct {
	Name      string
	Text      string
	Variables []string
}

// LoadPrompt reads a prompt template from a .txt or .md file. Placeholder
// names are discovered by scanning the text.
func LoadPrompt(path string) (PromptTemplate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return PromptTemplate{}, fmt.Errorf("read prompt file: %w", err)
	}
	text := string(data)
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	seen := map[string]struct{}{}
	var variables []string
	for _, match := range placeholderPattern.FindAllStringSubmatch(text, -1) {
		if _, ok := seen[match[1]]; ok {
			continue
		}
		seen[match[1]] = struct{}{}
		variables = append(variables, match[1])
	}

	return PromptTemplate{Name: name, Text: text, Variables: variables}, nil
}

// ResolvePrompt locates <dir>/<name>.txt, falling back to <name>.md.
func ResolvePrompt(dir, name string) (string, error) {
	for _, ext := range []string{".txt", ".md"} {
		path := filepath.Join(dir, name+ext)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("prompt template %q not found in %s", name, dir)
}

// ListPrompts loads every prompt template in dir, sorted by file name.
func ListPrompts(dir string) ([]PromptTemplate, error) {
	var matches []string
	for _, pattern := range []string{"*.txt", "*.md"} {
		found, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, fmt.Errorf("glob prompts: %w", err)
		}
		matches = append(matches, found...)
	}
	sort.Strings(matches)

	prompts := make([]PromptTemplate, 0, len(matches))
	for _, path := range matches {
		tpl, err := LoadPrompt(path)
		if err != nil {
			return nil, err
		}
		prompts = append(prompts, tpl)
	}
	return prompts, nil
}

// Render substitutes variables into the template. Placeholders without a
// supplied value render as empty strings.
func (t PromptTemplate) Render(vars map[string]string) string {
	return placeholderPattern.ReplaceAllStringFunc(t.Text, func(match string) string {
		name := placeholderPattern.FindStringSubmatch(match)[1]
		return vars[name]
	})
}
