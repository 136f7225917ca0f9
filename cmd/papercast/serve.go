package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/papercast-ai/papercast/internal/config"
	"github.com/papercast-ai/papercast/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Papercast server",
	Long: `Start the Papercast HTTP server.

The server exposes paper ingestion, job creation, progress streaming, and
episode retrieval. When qdrant.managed is set in the config, the Qdrant
container is started alongside and stopped on shutdown.

Examples:
  papercast serve
  papercast serve --config ./config.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		logger := newLogger()

		configFile := cfgFile
		if configFile == "" {
			if _, err := os.Stat("config.yaml"); err == nil {
				configFile = "config.yaml"
			} else if home, err := os.UserHomeDir(); err == nil {
				candidate := filepath.Join(home, ".papercast", "config.yaml")
				if _, err := os.Stat(candidate); err == nil {
					configFile = candidate
				}
			}
		}

		cfgMgr, err := config.NewManager(configFile)
		if err != nil {
			return err
		}
		cfgMgr.WatchConfig()

		srv, err := server.New(cfgMgr, logger)
		if err != nil {
			return err
		}
		return srv.Start(ctx)
	},
}
