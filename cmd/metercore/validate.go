package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/metercore/metercore/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("configuration invalid: %w", err)
		}

		fmt.Println("Configuration valid")
		fmt.Printf("  Database: %s (%s)\n", cfg.Database.DSN, cfg.Database.Driver)
		fmt.Printf("  Default policy: %d/min %d/hour %d/day\n",
			cfg.RateLimit.Default.PerMinute, cfg.RateLimit.Default.PerHour, cfg.RateLimit.Default.PerDay)
		fmt.Printf("  Policy overrides: %d\n", len(cfg.RateLimit.Overrides))
		fmt.Printf("  Priced kinds: %d\n", len(cfg.Pricing.Kinds))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
