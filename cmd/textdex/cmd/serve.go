package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/textdex/internal/mcp"
	"github.com/Aman-CERP/textdex/internal/service"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve indices to MCP clients over stdio",
		Long: `Run a Model Context Protocol server on stdin/stdout.

Clients can search, group, list and inspect indices and add documents.
Logs go to stderr or the log file so stdout carries only protocol messages.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return opts.withService(func(svc *service.Service) error {
				return serveMCP(ctx, svc)
			})
		},
	}
}

func serveMCP(ctx context.Context, svc *service.Service) error {
	srv, err := mcp.NewServer(svc)
	if err != nil {
		return err
	}
	return srv.Serve(ctx)
}
