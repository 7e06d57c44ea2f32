package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/plxgio/sakura-launcher/internal/backup"
	"github.com/plxgio/sakura-launcher/internal/interactive"
	"github.com/plxgio/sakura-launcher/internal/output"
)

func newRestoreCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Restore the files saved before the last update",
		Long: `Restore copies the backup snapshot taken before the last update back into
the installation directory.

This command lists the files that will be overwritten and prompts for
confirmation before restoring them.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, cfgPath, err := loadConfig()
			if err != nil {
				return err
			}
			svc, err := NewLauncherService(cfg, cfgPath, launcherVersion, launcherCommit, output.NewEventPrinter(os.Stdout, false))
			if err != nil {
				return err
			}

			snap, err := svc.Snapshot()
			if errors.Is(err, backup.ErrNoBackup) {
				fmt.Println("No backup found.")
				return nil
			}
			if err != nil {
				return err
			}

			fmt.Printf("Backup taken %s", humanize.Time(snap.CreatedAt))
			if snap.LauncherVersion != "" {
				fmt.Printf(" from version %s", snap.LauncherVersion)
			}
			fmt.Printf(" (%s):\n", humanize.Bytes(uint64(snap.Size)))
			fmt.Printf("  %s\n", strings.Join(snap.Files, "\n  "))

			if !yes {
				if !interactive.IsTerminal() {
					return fmt.Errorf("refusing to restore without confirmation; use --yes")
				}
				if !interactive.NewPrompter().Confirm("\nRestore these files?") {
					fmt.Println("Restore cancelled.")
					return nil
				}
			}

			return svc.Restore(cmd.Context())
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip confirmation prompt")

	return cmd
}
