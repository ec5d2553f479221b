package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/metercore/metercore/bootstrap"
	"github.com/metercore/metercore/config"
)

var hotReload bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the metering core and reporting API",
	Long: `Start the metercore server.

The server will:
  - Load configuration from metercore.yaml (or --config)
  - Or load configuration from METERCORE_* environment variables
  - Open the usage database and run migrations
  - Serve the reporting API and Prometheus metrics
  - Watch the config file for rate-limit and pricing changes

Environment variables (for Docker deployments):
  METERCORE_DATABASE_DSN     - Database path (default: metercore.db)
  METERCORE_SERVER_PORT      - Server port (default: 8080)
  METERCORE_LOG_LEVEL        - Log level: debug, info, warn, error
  METERCORE_ADMIN_TOKEN_HASH - bcrypt hash gating the reporting API

Examples:
  metercore serve
  metercore serve --config /etc/metercore/config.yaml
  metercore serve --hot-reload=false`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&hotReload, "hot-reload", true, "enable hot reload of configuration")
}

func runServe(cmd *cobra.Command, args []string) error {
	holder, err := loadHolder()
	if err != nil {
		return err
	}

	if hotReload {
		if err := holder.WatchFile(); err != nil {
			fmt.Fprintf(os.Stderr, "config watch disabled: %v\n", err)
		}
		holder.WatchSignals()
	}

	app, err := bootstrap.New(holder)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}

	return app.Run()
}

// loadHolder builds the config holder from the config file, falling back to
// environment-only configuration when no file exists.
func loadHolder() (*config.Holder, error) {
	if _, err := os.Stat(cfgFile); err == nil {
		return config.NewHolder(cfgFile, zerolog.New(os.Stderr).With().Timestamp().Logger())
	}

	if config.HasEnvConfig() {
		cfg, err := config.FromEnv()
		if err != nil {
			return nil, err
		}
		return config.NewStaticHolder(cfg, zerolog.New(os.Stderr).With().Timestamp().Logger()), nil
	}

	return nil, fmt.Errorf("no config file at %s and no METERCORE_* environment variables set", cfgFile)
}
