package cmd

import (
	"github.com/spf13/cobra"

	"github.com/plxgio/sakura-launcher/internal/update"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show version, update and backup status",
		Long: `Status shows the installed version, when the update feed was last checked,
any pending update and the backup snapshot available for restore.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, cfgPath, err := loadConfig()
			if err != nil {
				return err
			}
			svc, err := NewLauncherService(cfg, cfgPath, launcherVersion, launcherCommit, update.NopObserver{})
			if err != nil {
				return err
			}

			writer, err := outputWriter()
			if err != nil {
				return err
			}
			return writer.Write(svc.Status())
		},
	}
}
