package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/docufill/internal/config"
)

// ConfigCommand returns the config inspection command.
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Show the resolved configuration",
		Action: func(c *cli.Context) error {
			cfg, err := config.Load(c.String("config"))
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			fmt.Println("General:")
			fmt.Printf("  provider: %s\n", cfg.General.Provider)
			fmt.Printf("  model:    %s\n", cfg.General.Model)
			fmt.Println("LLM:")
			fmt.Printf("  api key set:         %v\n", cfg.LLM.APIKey != "")
			fmt.Printf("  temperature:         %.2f\n", cfg.LLM.Temperature)
			fmt.Printf("  max tokens:          %d\n", cfg.LLM.MaxTokens)
			fmt.Printf("  requests per second: %.1f\n", cfg.LLM.RequestsPerSecond)
			fmt.Println("Retry:")
			fmt.Printf("  max attempts: %d\n", cfg.Retry.MaxAttempts)
			fmt.Printf("  base delay:   %s\n", cfg.Retry.BaseDelay)
			fmt.Printf("  max delay:    %s\n", cfg.Retry.MaxDelay)
			fmt.Println("Database:")
			fmt.Printf("  url set: %v\n", cfg.Database.URL != "")
			if len(cfg.Pricing) > 0 {
				fmt.Println("Pricing overrides:")
				for model, rate := range cfg.Pricing {
					fmt.Printf("  %s: %.6f / %.6f per 1k tokens\n",
						model, rate.PromptPer1K, rate.CompletionPer1K)
				}
			}
			return nil
		},
	}
}
