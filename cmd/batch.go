package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/jbialy/prospector/internal/enrich"
)

func newBatchCmd() *cobra.Command {
	var (
		schemaName string
		promptName string
		urlCol     string
		nameCol    string
	)

	cmd := &cobra.Command{
		Use:   "batch <csv>",
		Short: "Enrich every row of a CSV file",
		Long: `Reads a CSV of companies and enriches each row. Failed rows are
recorded in the output and skipped; remaining rows continue. The command
exits non-zero only when no row succeeded.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, tpl, err := loadSchemaAndPrompt(schemaName, promptName)
			if err != nil {
				return err
			}

			rows, err := enrich.ReadBatchCSV(args[0], urlCol, nameCol)
			if err != nil {
				return fmt.Errorf("read batch csv: %w", err)
			}
			if len(rows) == 0 {
				return fmt.Errorf("no rows in %s", args[0])
			}

			enricher, err := buildEnricher(cmd.Context())
			if err != nil {
				return err
			}

			limiter := rate.NewLimiter(rate.Limit(cfg.Enrich.BatchRatePerSec), 1)
			outcome, err := enricher.EnrichBatch(cmd.Context(), rows, schema, tpl, limiter)
			if err != nil {
				return err
			}

			path := filepath.Join(cfg.Enrich.OutputDir, "batch_"+timestamp()+".json")
			if err := enrich.WriteJSONFile(path, outcome); err != nil {
				return fmt.Errorf("write batch output: %w", err)
			}

			logger.Info("batch finished",
				zap.Int("succeeded", len(outcome.Results)),
				zap.Int("failed", len(outcome.Errors)),
				zap.String("path", path),
			)
			cmd.Printf("Processed %d rows: %d succeeded, %d failed\nOutput: %s\n",
				len(rows), len(outcome.Results), len(outcome.Errors), path)

			if len(outcome.Results) == 0 {
				return fmt.Errorf("all %d rows failed", len(outcome.Errors))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&schemaName, "schema", "", "extraction schema name (required)")
	cmd.Flags().StringVar(&promptName, "prompt", "", "prompt template name (required)")
	cmd.Flags().StringVar(&urlCol, "url-col", "url", "CSV column holding the URL")
	cmd.Flags().StringVar(&nameCol, "name-col", "name", "CSV column holding the company name")
	_ = cmd.MarkFlagRequired("schema") //nolint:errcheck
	_ = cmd.MarkFlagRequired("prompt") //nolint:errcheck
	return cmd
}
