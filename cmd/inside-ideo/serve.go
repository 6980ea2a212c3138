package main

import (
	"github.com/spf13/cobra"

	"github.com/niravbeni/inside-ideo/internal/home"
	"github.com/niravbeni/inside-ideo/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the inside-ideo HTTP server",
	Long: `Start the HTTP server exposing the pipeline.

The server provides:
  - POST /process        - Upload PDFs and run the pipeline
  - GET  /images         - List extracted image assets
  - GET  /pages          - List page renders (base64 inline)
  - GET  /schema/default - Default analysis schema
  - GET  /prompt/default - Default analysis prompt
  - GET  /health         - Basic health check

Examples:
  inside-ideo serve                  # Start on default :8000
  inside-ideo serve --addr :3000     # Start on a custom port`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		mgr, err := loadConfig()
		if err != nil {
			return err
		}
		cfg := mgr.Get()
		logger := newLogger()

		h, err := home.New(homeDir)
		if err != nil {
			return err
		}

		addr := serveAddr
		if addr == "" {
			addr = cfg.Server.Addr
		}

		srv, err := server.New(server.Config{
			Addr:   addr,
			Runner: buildPipeline(cfg, logger),
			Home:   h,
			Logger: logger,
		})
		if err != nil {
			return err
		}

		// Hot-reload keeps the config file authoritative while running
		mgr.WatchConfig()

		// Start server (blocks until shutdown)
		return srv.Start(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "address to listen on (default from config: :8000)")

	rootCmd.AddCommand(serveCmd)
}
