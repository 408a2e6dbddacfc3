package main

import (
	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "logsentry",
	Short: "Log ingestion and threat detection service",
	Long: `logsentry tails SSH and web-server logs, extracts structured events,
runs them through signature and volume-based threat detection, and serves
the results to the security dashboard over HTTP.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(versionCmd)
}
