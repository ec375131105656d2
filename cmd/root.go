// Package cmd defines and implements the CLI commands for the prospector
// executable.
package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jbialy/prospector/internal/config"
	"github.com/jbialy/prospector/internal/enrich"
	"github.com/jbialy/prospector/internal/extract"
	"github.com/jbialy/prospector/internal/logging"
	"github.com/jbialy/prospector/internal/research"
	"github.com/jbialy/prospector/internal/scrape"
)

var (
	cfgFile string
	cfg     config.Config
	logger  *zap.Logger
)

// newRootCmd creates and configures the root command. Config and logger are
// built in PersistentPreRunE so every subcommand sees the same setup.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prospector",
		Short: "Company data enrichment from websites and LinkedIn",
		Long: `prospector scrapes company websites, extracts structured data with an
LLM against a declared schema, and gathers public LinkedIn data for
sales research.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			loaded, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			cfg = loaded

			l, err := logging.New(cfg.Logging.Development)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			logger = l
			zap.ReplaceGlobals(logger)
			return nil
		},

		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if logger != nil {
				_ = logger.Sync() //nolint:errcheck // stdout sync fails on some platforms
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default searches ./config.yaml)")

	cmd.AddCommand(
		newListSchemasCmd(),
		newListPromptsCmd(),
		newEnrichCmd(),
		newBatchCmd(),
		newResearchCmd(),
		newLinkedInProfileCmd(),
		newConfigCheckCmd(),
	)
	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// buildScraper prefers the scraping API and falls back to direct fetching
// when no API key is configured.
func buildScraper() (research.SiteScraper, error) {
	if cfg.Enrich.FirecrawlAPIKey != "" {
		fc, err := scrape.NewFirecrawl(scrape.FirecrawlConfig{
			APIURL:  cfg.Enrich.FirecrawlAPIURL,
			APIKey:  cfg.Enrich.FirecrawlAPIKey,
			Timeout: cfg.RequestTimeout(),
		}, logger.Named("firecrawl"))
		if err != nil {
			return nil, err
		}
		return fc, nil
	}
	logger.Warn("no scraping api key configured, using direct fetcher")
	return scrape.NewLocal(scrape.LocalConfig{
		Timeout: cfg.RequestTimeout(),
	}, logger.Named("scraper")), nil
}

func buildEnricher(cmdCtx context.Context) (*enrich.Enricher, error) {
	scraper, err := buildScraper()
	if err != nil {
		return nil, err
	}
	extractor, err := extract.NewGemini(cmdCtx, extract.Config{
		APIKey: cfg.Enrich.GeminiAPIKey,
		Model:  cfg.Enrich.GeminiModel,
	}, logger.Named("gemini"))
	if err != nil {
		return nil, fmt.Errorf("init extractor: %w", err)
	}
	return enrich.NewEnricher(scraper, extractor, logger.Named("enrich")), nil
}

// loadSchemaAndPrompt resolves both inputs by name under the configured
// directories.
func loadSchemaAndPrompt(schemaName, promptName string) (enrich.ExtractionSchema, enrich.PromptTemplate, error) {
	schemaPath, err := enrich.ResolveSchema(cfg.Enrich.SchemasDir, schemaName)
	if err != nil {
		return enrich.ExtractionSchema{}, enrich.PromptTemplate{}, err
	}
	schema, err := enrich.LoadSchema(schemaPath)
	if err != nil {
		return enrich.ExtractionSchema{}, enrich.PromptTemplate{}, err
	}
	promptPath, err := enrich.ResolvePrompt(cfg.Enrich.PromptsDir, promptName)
	if err != nil {
		return enrich.ExtractionSchema{}, enrich.PromptTemplate{}, err
	}
	tpl, err := enrich.LoadPrompt(promptPath)
	if err != nil {
		return enrich.ExtractionSchema{}, enrich.PromptTemplate{}, err
	}
	return schema, tpl, nil
}

func timestamp() string {
	return time.Now().Format("20060102_150405")
}
