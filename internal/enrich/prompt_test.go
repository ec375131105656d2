package enrich

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadPromptDiscoversVariables(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "company_info.txt")
	text := "Analyze {{company_name}}.\n\nContent:\n{{website_content}}\n\nFields:\n{{schema_fields}}\nAgain: {{company_name}}"
	require.NoError(t, os.WriteFile(path, []byte(text), 0o600))

	tpl, err := LoadPrompt(path)
	require.NoError(t, err)
	require.Equal(t, "company_info", tpl.Name)
	require.Equal(t, []string{"company_name", "website_content", "schema_fields"}, tpl.Variables)
}

func TestRenderSubstitutesAndBlanksUnknown(t *testing.T) {
	t.Parallel()

	tpl := PromptTemplate{
		Name: "t",
		Text: "Company: {{company_name}}, Region: {{ region }}.",
	}
	out := tpl.Render(map[string]string{"company_name": "Acme"})
	require.Equal(t, "Company: Acme, Region: .", out)
}

func TestResolvePromptPrefersTxtThenMd(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "only_md.md"), []byte("x"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "both.txt"), []byte("x"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "both.md"), []byte("x"), 0o600))

	path, err := ResolvePrompt(dir, "both")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "both.txt"), path)

	path, err = ResolvePrompt(dir, "only_md")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "only_md.md"), path)

	_, err = ResolvePrompt(dir, "missing")
	require.Error(t, err)
}

func TestListPrompts(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("{{x}}"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.md"), []byte("static"), 0o600))

	prompts, err := ListPrompts(dir)
	require.NoError(t, err)
	require.Len(t, prompts, 2)
	require.Equal(t, "a", prompts[0].Name)
	require.Equal(t, []string{"x"}, prompts[0].Variables)
	require.Empty(t, prompts[1].Variables)
}
