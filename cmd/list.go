package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jbialy/prospector/internal/enrich"
)

func newListSchemasCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list-schemas",
		Short: "List available extraction schemas",
		RunE: func(cmd *cobra.Command, _ []string) error {
			schemas, err := enrich.ListSchemas(cfg.Enrich.SchemasDir)
			if err != nil {
				return fmt.Errorf("list schemas: %w", err)
			}
			if len(schemas) == 0 {
				cmd.Printf("No schemas found in %s\n", cfg.Enrich.SchemasDir)
				return nil
			}
			for _, schema := range schemas {
				cmd.Printf("%s (%d fields)\n", schema.Name, len(schema.Fields))
				if schema.Description != "" {
					cmd.Printf("  %s\n", schema.Description)
				}
			}
			return nil
		},
	}
}

func newListPromptsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list-prompts",
		Short: "List available prompt templates",
		RunE: func(cmd *cobra.Command, _ []string) error {
			prompts, err := enrich.ListPrompts(cfg.Enrich.PromptsDir)
			if err != nil {
				return fmt.Errorf("list prompts: %w", err)
			}
			if len(prompts) == 0 {
				cmd.Printf("No prompts found in %s\n", cfg.Enrich.PromptsDir)
				return nil
			}
			for _, tpl := range prompts {
				if len(tpl.Variables) > 0 {
					cmd.Printf("%s (variables: %s)\n", tpl.Name, strings.Join(tpl.Variables, ", "))
				} else {
					cmd.Printf("%s\n", tpl.Name)
				}
			}
			return nil
		},
	}
}
