package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestParseVars(t *testing.T) {
	t.Parallel()

	vars, err := parseVars([]string{"company_name=Acme", "region=EU"})
	require.NoError(t, err)
	require.Equal(t, map[string]string{"company_name": "Acme", "region": "EU"}, vars)

	_, err = parseVars([]string{"no-equals"})
	require.Error(t, err)

	_, err = parseVars([]string{"=value"})
	require.Error(t, err)
}

func TestConfigCheckReportsMissingCredentials(t *testing.T) {
	out, err := executeCommand(t, "config-check")
	require.NoError(t, err)
	require.Contains(t, out, "firecrawl_api_key")
	require.Contains(t, out, "missing")
	require.Contains(t, out, "gemini-2.0-flash")
}

func TestListSchemasWithEmptyDir(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("PROSPECTOR_ENRICH_SCHEMAS_DIR", dir)

	out, err := executeCommand(t, "list-schemas")
	require.NoError(t, err)
	require.Contains(t, out, "No schemas found")
}

func TestEnrichRequiresArgs(t *testing.T) {
	_, err := executeCommand(t, "enrich", "https://acme.test")
	require.Error(t, err)
}
