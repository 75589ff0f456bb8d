package main

import (
	"fmt"
	"os"

	"github.com/deepalweb/travelbuddy-sub001/bootstrap"
	"github.com/spf13/cobra"
)

var hotReload bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the metering server",
	Long: `Start the meterd server.

The server will:
  - Load configuration from meterd.yaml (or --config)
  - Or load configuration from METERD_* environment variables
  - Open the storage backend (sqlite or memory)
  - Serve the metering, policy and cost APIs

Environment variables (for Docker deployments):
  METERD_DATABASE_DRIVER     - Storage backend: sqlite or memory
  METERD_DATABASE_DSN        - Database path (default: meterd.db)
  METERD_SERVER_PORT         - Server port (default: 8080)
  METERD_ENFORCEMENT_ENABLED - Global enforcement flag (default: true)
  METERD_LOG_LEVEL           - Log level: debug, info, warn, error

Examples:
  meterd serve
  meterd serve --config /etc/meterd/config.yaml
  meterd serve --hot-reload=false`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&hotReload, "hot-reload", true, "enable hot reload of configuration")
}

func runServe(cmd *cobra.Command, args []string) error {
	opts := bootstrap.Options{}

	if _, err := os.Stat(cfgFile); err == nil {
		opts.ConfigPath = cfgFile
		opts.WatchConfig = hotReload
	} else {
		fmt.Fprintf(os.Stderr, "no config file at %s, using METERD_* environment variables\n", cfgFile)
	}

	app, err := bootstrap.New(opts)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}

	return app.Run()
}
