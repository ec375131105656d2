package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jbialy/prospector/internal/enrich"
	"github.com/jbialy/prospector/internal/linkedin"
)

func newLinkedInProfileCmd() *cobra.Command {
	var outputDir string

	cmd := &cobra.Command{
		Use:   "linkedin-profile <url>",
		Short: "Fetch public data for one LinkedIn profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.Enrich.BrightDataAPIKey == "" {
				return fmt.Errorf("brightdata_api_key is not configured")
			}
			client, err := linkedin.New(linkedin.Config{
				APIURL:  cfg.Enrich.BrightDataAPIURL,
				APIKey:  cfg.Enrich.BrightDataAPIKey,
				Timeout: cfg.RequestTimeout(),
			}, logger.Named("linkedin"))
			if err != nil {
				return err
			}

			profile, err := client.Profile(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			dir := outputDir
			if dir == "" {
				dir = cfg.Enrich.OutputDir
			}
			path := filepath.Join(dir, "profile_"+timestamp()+".json")
			if err := enrich.WriteJSONFile(path, profile); err != nil {
				return fmt.Errorf("write profile: %w", err)
			}

			logger.Info("profile written", zap.String("url", args[0]), zap.String("path", path))
			cmd.Printf("Profile written to %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVar(&outputDir, "output-dir", "", "output directory (default from config)")
	return cmd
}
