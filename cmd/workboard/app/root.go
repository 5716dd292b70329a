// Package app provides the cobra commands of the workboard binary.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/HendryAvila/workboard-mcp/internal/config"
	"github.com/HendryAvila/workboard-mcp/internal/logging"
	"github.com/HendryAvila/workboard-mcp/internal/server"
)

// NewRootCmd creates the root command. Each call gets its own viper
// instance so tests can build commands side by side.
func NewRootCmd() *cobra.Command {
	v := viper.New()

	rootCmd := &cobra.Command{
		Use:               "workboard",
		DisableAutoGenTag: true,
		Short:             "MCP server for a work-management board API",
		Long: `workboard exposes boards of a work-management GraphQL API as MCP tools.

Board metadata is cached and refreshed in the background, column sets are
resolved per board, and rows can be exported to a spreadsheet through a
rate-limited queue.

Configuration comes from an optional YAML file (--config) and WORKBOARD_*
environment variables.`,
		SilenceUsage: true,
		Run: func(cmd *cobra.Command, _ []string) {
			if err := cmd.Help(); err != nil {
				cmd.PrintErrf("Error displaying help: %v\n", err)
			}
		},
	}

	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to a YAML configuration file")
	for _, name := range []string{"debug", "config"} {
		if err := v.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name)); err != nil {
			panic(fmt.Sprintf("binding %s flag: %v", name, err))
		}
	}

	rootCmd.AddCommand(newServeCmd(v))
	rootCmd.AddCommand(newResyncCmd(v))
	rootCmd.AddCommand(newStatusCmd(v))
	rootCmd.AddCommand(newValidateCmd(v))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// loadServices resolves the configuration and builds the service graph.
func loadServices(v *viper.Viper) (*server.Services, error) {
	cfg, err := config.Load(v)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Debug)
	if err != nil {
		return nil, err
	}
	svc, err := server.NewServices(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("creating services: %w", err)
	}
	return svc, nil
}

type toolHandler func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)

// printTool runs a tool handler outside MCP and writes its text output.
func printTool(cmd *cobra.Command, handle toolHandler) error {
	res, err := handle(cmd.Context(), mcp.CallToolRequest{})
	if err != nil {
		return err
	}
	text := ""
	for _, c := range res.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			text += tc.Text
		}
	}
	if res.IsError {
		return errors.New(text)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), text)
	return err
}

// warm restores the persisted snapshot. Failure is only worth a warning.
func warm(ctx context.Context, svc *server.Services) {
	if err := svc.Metadata.Warm(ctx); err != nil {
		svc.Logger.Warnw("metadata warm start failed", "error", err)
	}
}
