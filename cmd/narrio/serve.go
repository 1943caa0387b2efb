package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/narrio/internal/config"
	"github.com/jackzampolin/narrio/internal/home"
	"github.com/jackzampolin/narrio/internal/server"
	"github.com/jackzampolin/narrio/internal/server/endpoints"
)

var (
	serveHost string
	servePort string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Narrio server",
	Long: `Start the Narrio HTTP server.

The server accepts document uploads, runs conversion jobs against the
configured TTS providers, and streams job progress over server-sent
events. A background sweeper removes uploads and generated audio older
than the configured retention window.

Examples:
  narrio serve                   # Start on default port 5005
  narrio serve --port 3000       # Start on custom port
  narrio serve --host 0.0.0.0    # Bind to all interfaces`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		// Set up logger
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))

		h, err := home.New(homeDir)
		if err != nil {
			return err
		}
		if err := h.EnsureExists(); err != nil {
			return err
		}

		// Fall back to the home config file when --config is unset.
		configPath := cfgFile
		if configPath == "" && h.ConfigExists() {
			configPath = h.ConfigPath()
		}
		mgr, err := config.NewManager(configPath)
		if err != nil {
			return err
		}
		mgr.WatchConfig()

		srv, err := server.New(server.Config{
			Host:            serveHost,
			Port:            servePort,
			HomeDir:         h.Path(),
			ConfigManager:   mgr,
			SwaggerSpecPath: endpoints.GetSwaggerSpecPath(),
			Logger:          logger,
		})
		if err != nil {
			return err
		}

		// Start server (blocks until shutdown)
		return srv.Start(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "0.0.0.0", "Host to bind to")
	serveCmd.Flags().StringVar(&servePort, "port", "5005", "Port to listen on")

	rootCmd.AddCommand(serveCmd)
}
