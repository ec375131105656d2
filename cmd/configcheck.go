package cmd

import (
	"github.com/spf13/cobra"
)

func newConfigCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config-check",
		Short: "Report which credentials and settings are configured",
		RunE: func(cmd *cobra.Command, _ []string) error {
			checks := []struct {
				name string
				ok   bool
			}{
				{"firecrawl_api_key", cfg.Enrich.FirecrawlAPIKey != ""},
				{"gemini_api_key", cfg.Enrich.GeminiAPIKey != ""},
				{"brightdata_api_key", cfg.Enrich.BrightDataAPIKey != ""},
				{"closeio_api_key", cfg.Notifier.CloseAPIKey != ""},
				{"discord_webhook_url", cfg.Notifier.DiscordWebhookURL != ""},
				{"database_dsn", cfg.Notifier.DatabaseDSN != ""},
				{"prompts_dir", cfg.Enrich.PromptsDir != ""},
				{"schemas_dir", cfg.Enrich.SchemasDir != ""},
				{"output_dir", cfg.Enrich.OutputDir != ""},
			}

			missing := 0
			for _, check := range checks {
				mark := "ok"
				if !check.ok {
					mark = "missing"
					missing++
				}
				cmd.Printf("%-22s %s\n", check.name, mark)
			}
			cmd.Printf("\nmodel: %s\n", cfg.Enrich.GeminiModel)
			if missing > 0 {
				cmd.Printf("%d value(s) missing; commands needing them will fail\n", missing)
			}
			return nil
		},
	}
}
