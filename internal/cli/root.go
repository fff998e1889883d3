// Package cli implements the toolgate command line.
package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var envFile string

var rootCmd = &cobra.Command{
	Use:   "toolgate",
	Short: "Read-only MCP tool servers for BigQuery, GitHub and Outlook",
	Long: "Runs one MCP tool service per process behind bearer-token auth and guardrails:\n" +
		"SELECT-only BigQuery with a dry-run cost gate, allowlisted GitHub commit lookups,\n" +
		"and bounded Outlook calendar reads.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Path to .env file (default .env when present)")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
