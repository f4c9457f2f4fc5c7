package cmd

import (
	"fmt"
	"strings"

	"github.com/arin/gramo/internal/ai"
	"github.com/arin/gramo/internal/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage gramo configuration",
}

var setKeyCmd = &cobra.Command{
	Use:   "set-key <api-key>",
	Short: "Save your API key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.SetAPIKey(args[0]); err != nil {
			return fmt.Errorf("failed to save API key: %w", err)
		}
		fmt.Println("API key saved successfully.")
		return nil
	},
}

var removeKeyCmd = &cobra.Command{
	Use:   "remove-key",
	Short: "Delete the saved API key",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.RemoveAPIKey(); err != nil {
			return fmt.Errorf("failed to remove API key: %w", err)
		}
		fmt.Println("API key removed.")
		return nil
	},
}

var setModelCmd = &cobra.Command{
	Use:   "set-model <model-name>",
	Short: "Set the model (default: gpt-4o-mini)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.SetModel(args[0]); err != nil {
			return fmt.Errorf("failed to save model: %w", err)
		}
		fmt.Printf("Model set to %s.\n", args[0])
		return nil
	},
}

var setProviderCmd = &cobra.Command{
	Use:       "set-provider <name>",
	Short:     "Set the provider (" + strings.Join(ai.PresetNames(), ", ") + ")",
	Args:      cobra.ExactArgs(1),
	ValidArgs: ai.PresetNames(),
	RunE: func(cmd *cobra.Command, args []string) error {
		preset, ok := ai.LookupPreset(args[0])
		if !ok {
			return fmt.Errorf("unknown provider %q (known: %s)", args[0], strings.Join(ai.PresetNames(), ", "))
		}
		if err := config.SetProvider(preset.Name); err != nil {
			return fmt.Errorf("failed to save provider: %w", err)
		}
		fmt.Printf("Provider set to %s (%s).\n", preset.Name, preset.BaseURL)
		return nil
	},
}

var setBaseURLCmd = &cobra.Command{
	Use:   "set-base-url <url>",
	Short: "Override the provider endpoint (empty string restores the default)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.SetBaseURL(args[0]); err != nil {
			return fmt.Errorf("failed to save base URL: %w", err)
		}
		if strings.TrimSpace(args[0]) == "" {
			fmt.Println("Base URL reset to the provider default.")
			return nil
		}
		fmt.Printf("Base URL set to %s.\n", args[0])
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		fmt.Printf("Provider:   %s\n", cfg.Provider)
		fmt.Printf("Base URL:   %s\n", effectiveBaseURL(cfg))
		fmt.Printf("Model:      %s\n", cfg.Model)
		fmt.Printf("API Key:    %s\n", config.MaskKey(cfg.APIKey))
		fmt.Printf("Config Dir: %s\n", config.Dir())
		return nil
	},
}

func effectiveBaseURL(cfg *config.Config) string {
	if cfg.BaseURL != "" {
		return cfg.BaseURL
	}
	if p, ok := ai.LookupPreset(cfg.Provider); ok {
		return p.BaseURL + " (default)"
	}
	return "(unknown provider)"
}

func init() {
	configCmd.AddCommand(setKeyCmd)
	configCmd.AddCommand(removeKeyCmd)
	configCmd.AddCommand(setModelCmd)
	configCmd.AddCommand(setProviderCmd)
	configCmd.AddCommand(setBaseURLCmd)
	configCmd.AddCommand(showCmd)
}
