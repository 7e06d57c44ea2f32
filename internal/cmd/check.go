package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/plxgio/sakura-launcher/internal/output"
	"github.com/plxgio/sakura-launcher/internal/update"
)

func newCheckCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check the update feed for a new version",
		Long: `Check fetches the update manifest and records a pending update when the
published version is newer than this one.

Without --force the check is skipped when the last one was less than
check_interval ago.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, cfgPath, err := loadConfig()
			if err != nil {
				return err
			}
			writer, err := outputWriter()
			if err != nil {
				return err
			}

			var observer update.Observer = update.NopObserver{}
			if writer.Format() == output.FormatText && !quiet {
				observer = output.NewEventPrinter(os.Stderr, false)
			}

			svc, err := NewLauncherService(cfg, cfgPath, launcherVersion, launcherCommit, observer)
			if err != nil {
				return err
			}

			report, err := svc.Check(cmd.Context(), force)
			if err != nil {
				return err
			}
			return writer.Write(report)
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Check even if the interval has not elapsed")

	return cmd
}
