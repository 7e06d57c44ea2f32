package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/plxgio/sakura-launcher/internal/interactive"
	"github.com/plxgio/sakura-launcher/internal/output"
	"github.com/plxgio/sakura-launcher/internal/update"
)

func newUpdateCmd() *cobra.Command {
	var (
		yes       bool
		noRestart bool
	)

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Check for and install a new version now",
		Long: `Update forces a check of the update feed and, when a newer version is
published, installs it after confirmation.

The files listed in backup_files are saved first; if extraction fails they
are restored. After a successful update the launcher starts again in run
mode unless --no-restart is given.

Examples:
  launcher update              # Ask before installing
  launcher update --yes        # Install without asking
  launcher update --no-restart # Install and exit`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpdate(cmd.Context(), yes, noRestart)
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip confirmation prompt")
	cmd.Flags().BoolVar(&noRestart, "no-restart", false, "Exit instead of restarting after an update")

	return cmd
}

func runUpdate(ctx context.Context, yes, noRestart bool) error {
	cfg, cfgPath, err := loadConfig()
	if err != nil {
		return err
	}

	printer := output.NewEventPrinter(os.Stdout, interactive.IsTerminal())
	svc, err := NewLauncherService(cfg, cfgPath, launcherVersion, launcherCommit, printer)
	if err != nil {
		return err
	}

	report, err := svc.Check(ctx, true)
	if err != nil {
		return err
	}
	if !report.Available {
		return nil
	}

	orch := svc.Orchestrator()
	if !yes {
		switch interactive.NewPrompter().PromptUpdate(report.CurrentVersion, report.RemoteVersion, report.Changelog) {
		case interactive.DecisionCancel:
			return orch.Abandon()
		case interactive.DecisionLater:
			orch.Defer()
			return nil
		}
	}

	version, err := orch.Apply(ctx)
	if err != nil {
		return err
	}

	if noRestart {
		fmt.Printf("\nUpdated to %s. Start the launcher again to use it.\n", version)
		return nil
	}

	args := []string{"run"}
	if configPath != "" {
		args = append(args, "--config", configPath)
	}
	return update.RestartWith(args)
}
