package cmd

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jbialy/prospector/internal/enrich"
)

func newEnrichCmd() *cobra.Command {
	var (
		schemaName  string
		promptName  string
		companyName string
		outputPath  string
		extraVars   []string
	)

	cmd := &cobra.Command{
		Use:   "enrich <url>",
		Short: "Scrape a URL and extract structured data against a schema",
		Long: `Scrapes the given URL, renders the prompt template with the page
content and schema field list, sends it to the LLM, and validates the
returned JSON against the schema. The result is printed and written to
the output directory.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			url := args[0]

			schema, tpl, err := loadSchemaAndPrompt(schemaName, promptName)
			if err != nil {
				return err
			}

			vars, err := parseVars(extraVars)
			if err != nil {
				return err
			}
			if companyName != "" {
				vars["company_name"] = companyName
			}

			enricher, err := buildEnricher(cmd.Context())
			if err != nil {
				return err
			}

			result, err := enricher.EnrichURL(cmd.Context(), url, schema, tpl, vars)
			if err != nil {
				return err
			}

			pretty, err := json.MarshalIndent(result.ExtractedFields, "", "  ")
			if err != nil {
				return fmt.Errorf("format result: %w", err)
			}
			cmd.Println(string(pretty))

			path := outputPath
			if path == "" {
				path = filepath.Join(cfg.Enrich.OutputDir, result.OutputFileName())
			}
			if err := enrich.WriteJSONFile(path, result); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
			logger.Info("enrichment written", zap.String("path", path))
			return nil
		},
	}

	cmd.Flags().StringVar(&schemaName, "schema", "", "extraction schema name (required)")
	cmd.Flags().StringVar(&promptName, "prompt", "", "prompt template name (required)")
	cmd.Flags().StringVar(&companyName, "company", "", "company name for the output file and template")
	cmd.Flags().StringVar(&outputPath, "output", "", "output file path (default <output-dir>/<name>_<timestamp>.json)")
	cmd.Flags().StringArrayVar(&extraVars, "var", nil, "extra template variable as key=value (repeatable)")
	_ = cmd.MarkFlagRequired("schema") //nolint:errcheck
	_ = cmd.MarkFlagRequired("prompt") //nolint:errcheck
	return cmd
}

func parseVars(pairs []string) (map[string]string, error) {
	vars := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("invalid --var %q, expected key=value", pair)
		}
		vars[key] = value
	}
	return vars, nil
}
