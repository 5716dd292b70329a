package app

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/HendryAvila/workboard-mcp/internal/config"
	"github.com/HendryAvila/workboard-mcp/internal/server"
	"github.com/HendryAvila/workboard-mcp/internal/tools"
)

func newStatusCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the persisted metadata snapshot",
		Long: `Restore the metadata snapshot from metadata.snapshot_dsn and print what it
holds. Nothing is fetched from the API.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := loadServices(v)
			if err != nil {
				return err
			}
			defer svc.Close()

			warm(cmd.Context(), svc)
			return printTool(cmd, tools.NewMetadataStatusTool(svc.Metadata, nil).Handle)
		},
	}
}

func newValidateCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "configuration is valid")
			if !cfg.HasCredentials() {
				fmt.Fprintln(cmd.OutOrStdout(), "note: no service identity configured, spreadsheet export is disabled")
			}
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "workboard v%s\n", server.Version)
		},
	}
}
