package app

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/HendryAvila/workboard-mcp/internal/tools"
)

func newResyncCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "resync",
		Short: "Refresh board metadata once and print the report",
		Long: `Run one full metadata sync and print the resync report as JSON.

The sync covers metadata.boards when configured, otherwise every board held
by the persisted snapshot, otherwise every board visible to the token. The
result is written back to the snapshot store.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := loadServices(v)
			if err != nil {
				return err
			}
			defer svc.Close()

			warm(cmd.Context(), svc)
			return printTool(cmd, tools.NewResyncTool(svc.Metadata).Handle)
		},
	}
}
