package main

import (
	"github.com/spf13/cobra"

	"github.com/jackzampolin/narrio/internal/api"
	"github.com/jackzampolin/narrio/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "narrio",
	Short: "Convert documents to narrated audio",
	Long: `Narrio converts PDF and EPUB documents into narrated audio using
text-to-speech providers.

Conversions run as asynchronous jobs with live progress reporting:
  - Whole-document conversion with a single job per upload
  - Chapter detection for books, with per-chapter conversion jobs
  - Cancellable jobs and server-sent-events progress streams`,
	Version: version.GitRelease,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.narrio/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "narrio home directory (default: ~/.narrio)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)

	// Set output format before any command runs
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		api.SetOutputFormat(outputFormat)
	}

	rootCmd.AddCommand(versionCmd)
}
