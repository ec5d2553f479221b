package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "metercore",
	Short: "Usage metering and rate-limit admission core for metered APIs",
	Long: `Metercore is the admission and billing core that sits in front of
metered operations (audio transcoding, document extraction, SEO lookups).

It admits or rejects each call against per-credential minute/hour/day
budgets, records every completed operation as a priced usage event, and
answers billing and analytics queries over those events.

Quick start:
  metercore serve      # Start the reporting API and metering core
  metercore validate   # Validate configuration

Reporting:
  metercore report summary --customer cus_42
  metercore report analytics --customer cus_42`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "metercore.yaml", "config file path")
}
