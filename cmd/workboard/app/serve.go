package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/HendryAvila/workboard-mcp/internal/server"
)

func newServeCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server (stdio transport)",
		Long: `Start the MCP server on stdin/stdout.

The persisted metadata snapshot is restored first, the periodic full sync
starts in the background and, when metrics.addr is set, a Prometheus
listener serves /metrics. Logs go to stderr.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := loadServices(v)
			if err != nil {
				return err
			}
			defer svc.Close()

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			if err := svc.Start(ctx); err != nil {
				return err
			}
			svc.Logger.Infow("workboard server starting", "version", server.Version,
				"boards", len(svc.Config.Metadata.Boards), "snapshot", svc.Config.Metadata.SnapshotDSN != "")

			return serveStdio(ctx, server.NewMCPServer(svc))
		},
	}
}

// serveStdio runs the stdio transport until stdin closes or ctx ends.
func serveStdio(ctx context.Context, s *mcpserver.MCPServer) error {
	errCh := make(chan error, 1)
	go func() { errCh <- mcpserver.ServeStdio(s) }()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return nil
	}
}
