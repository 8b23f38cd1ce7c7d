package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/dmitriimaksimovdevelop/bwlens/internal/config"
	"github.com/dmitriimaksimovdevelop/bwlens/internal/mcp"
	"github.com/spf13/cobra"
)

func newMCPCmd(loadConfig func() (config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Start Model Context Protocol (MCP) server",
		Long: `Starts a JSON-RPC server implementing the Model Context Protocol (MCP).
This allows AI agents (e.g., Claude Desktop, Cursor) to analyze
BusinessWorks performance reports from local paths.

Communication happens over standard input/output (stdio).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			srv := mcp.NewServer(version, cfg.ReportConfig())
			return srv.Start(ctx)
		},
	}
}
