package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/dmitriimaksimovdevelop/bwlens/internal/config"
	"github.com/dmitriimaksimovdevelop/bwlens/internal/output"
	"github.com/dmitriimaksimovdevelop/bwlens/internal/server"
)

func newServeCmd(loadConfig func() (config.Config, error)) *cobra.Command {
	var (
		addr    string
		quiet   bool
		verbose bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Serves POST /api/analyze (multipart upload of a report plus optional
logs) and the /api/sessions routes for saved analyses.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Address = addr
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			store, closeStore, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			progress := output.NewVerboseProgress(!quiet, verbose)
			reportCfg := cfg.ReportConfig()
			reportCfg.Logger = progress

			gin.SetMode(cfg.Server.Mode)
			opts := server.Options{
				Report:         reportCfg,
				Store:          store,
				MaxUploadBytes: cfg.Server.MaxUploadBytes,
				Progress:       progress,
			}
			if verbose {
				opts.AccessLog = os.Stderr
			}
			return server.New(opts).Run(ctx, cfg.Server.Address)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides config server.address)")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Suppress progress output")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug and access logging")
	return cmd
}
