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
	Use:   "meterd",
	Short: "API usage metering, quota enforcement and cost projection service",
	Long: `meterd tracks external API consumption for the travel platform.

It records usage events from upstream services, enforces per-tier rate
limits and daily quotas, and projects spend from recent activity.

Quick start:
  meterd serve      # Start the metering server

Management:
  meterd validate   # Validate configuration
  meterd hash-token # Hash an admin token for the config file`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "meterd.yaml", "config file path")
}
