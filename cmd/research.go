package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jbialy/prospector/internal/enrich"
	"github.com/jbialy/prospector/internal/linkedin"
	"github.com/jbialy/prospector/internal/research"
)

func newResearchCmd() *cobra.Command {
	var (
		websiteURL  string
		linkedinURL string
		maxPages    int
		outputDir   string
	)

	cmd := &cobra.Command{
		Use:   "research <company>",
		Short: "Gather website and LinkedIn research for a company",
		Long: `Scrapes the company website across multiple pages and pulls public
LinkedIn company data and recent posts. Sources that fail are reported
as warnings; the report carries everything that succeeded.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scraper, err := buildScraper()
			if err != nil {
				return err
			}

			var liClient research.LinkedInClient
			if cfg.Enrich.BrightDataAPIKey != "" {
				client, err := linkedin.New(linkedin.Config{
					APIURL:  cfg.Enrich.BrightDataAPIURL,
					APIKey:  cfg.Enrich.BrightDataAPIKey,
					Timeout: cfg.RequestTimeout(),
				}, logger.Named("linkedin"))
				if err != nil {
					return err
				}
				liClient = client
			}

			r := research.New(scraper, liClient, logger.Named("research"))
			report, err := r.Research(cmd.Context(), research.Options{
				CompanyName: args[0],
				WebsiteURL:  websiteURL,
				LinkedInURL: linkedinURL,
				MaxPages:    maxPages,
			})
			if err != nil {
				return err
			}

			for _, warning := range report.Warnings {
				cmd.Printf("Warning: %s\n", warning)
			}

			dir := outputDir
			if dir == "" {
				dir = cfg.Enrich.OutputDir
			}
			path := filepath.Join(dir, safeName(args[0])+"_research_"+timestamp()+".json")
			if err := enrich.WriteJSONFile(path, report); err != nil {
				return fmt.Errorf("write research report: %w", err)
			}

			logger.Info("research report written",
				zap.String("company", args[0]),
				zap.Int("pages", len(report.Pages)),
				zap.Int("posts", len(report.RecentPosts)),
				zap.String("path", path),
			)
			cmd.Printf("Report written to %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVar(&websiteURL, "website", "", "company website URL")
	cmd.Flags().StringVar(&linkedinURL, "linkedin", "", "LinkedIn company page URL")
	cmd.Flags().IntVar(&maxPages, "max-pages", 5, "maximum website pages to scrape")
	cmd.Flags().StringVar(&outputDir, "output-dir", "", "output directory (default from config)")
	return cmd
}

func safeName(name string) string {
	replacer := strings.NewReplacer(" ", "_", "/", "_", "\\", "_")
	return replacer.Replace(name)
}
