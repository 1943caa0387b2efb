package main

import (
	"github.com/spf13/cobra"

	"github.com/jackzampolin/narrio/internal/server/endpoints"
)

var serverURL string

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Commands that call the running server",
	Long: `API commands call the running Narrio server via HTTP.

These commands require a running server (narrio serve).
Use --server to specify a custom server URL.

Examples:
  narrio api health             # Check server health
  narrio api convert book.pdf   # Start a conversion job
  narrio api progress <job-id>  # Follow job progress`,
}

var booksCmd = &cobra.Command{
	Use:   "books",
	Short: "Book analysis and chapter conversion commands",
}

// getServerURL returns the server URL at runtime (after flag parsing).
func getServerURL() string {
	return serverURL
}

func init() {
	// Add --server flag to api command (persistent so all subcommands inherit it)
	apiCmd.PersistentFlags().StringVar(
		&serverURL, "server", "http://localhost:5005", "Server URL",
	)

	// Health and configuration at top level of api
	apiCmd.AddCommand((&endpoints.HealthEndpoint{}).Command(getServerURL))
	apiCmd.AddCommand((&endpoints.ConfigEndpoint{}).Command(getServerURL))

	// Voices
	apiCmd.AddCommand((&endpoints.VoicesEndpoint{}).Command(getServerURL))
	apiCmd.AddCommand((&endpoints.TestVoiceEndpoint{}).Command(getServerURL))

	// Whole-document conversion flow
	apiCmd.AddCommand((&endpoints.EstimateEndpoint{}).Command(getServerURL))
	apiCmd.AddCommand((&endpoints.ConvertEndpoint{}).Command(getServerURL))
	apiCmd.AddCommand((&endpoints.ProgressEndpoint{}).Command(getServerURL))
	apiCmd.AddCommand((&endpoints.CancelEndpoint{}).Command(getServerURL))
	apiCmd.AddCommand((&endpoints.DownloadEndpoint{}).Command(getServerURL))

	// Books as subcommand group
	booksCmd.AddCommand((&endpoints.AnalyzeEndpoint{}).Command(getServerURL))
	booksCmd.AddCommand((&endpoints.ConvertChapterEndpoint{}).Command(getServerURL))
	booksCmd.AddCommand((&endpoints.ConvertAllEndpoint{}).Command(getServerURL))
	booksCmd.AddCommand((&endpoints.BookEndpoint{}).Command(getServerURL))
	booksCmd.AddCommand((&endpoints.CancelBookEndpoint{}).Command(getServerURL))

	// Swagger spec
	apiCmd.AddCommand((&endpoints.SwaggerEndpoint{}).Command(getServerURL))

	apiCmd.AddCommand(booksCmd)
	rootCmd.AddCommand(apiCmd)
}
