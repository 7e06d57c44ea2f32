package cmd

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	outputFormat string
	configPath   string
	verbose      bool
	quiet        bool
)

// Build metadata, set by Execute.
var (
	launcherVersion = "dev"
	launcherCommit  = "none"
	launcherDate    = "unknown"
)

func Execute(version, commit, date string) error {
	launcherVersion, launcherCommit, launcherDate = version, commit, date

	var noRestart bool
	rootCmd := &cobra.Command{
		Use:   "launcher",
		Short: "Sakura launcher with built-in self-update",
		Long: `launcher keeps its own installation up to date.

It checks the update feed in the background, offers new versions, applies them
with a backup of the files it replaces, and restarts itself on success.
Running it without a subcommand is the same as 'launcher run'.`,
		Version:      version,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHost(cmd.Context(), noRestart)
		},
	}
	rootCmd.Flags().BoolVar(&noRestart, "no-restart", false, "Exit instead of restarting after an update")

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "text", "Output format: text, json, yaml")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to launcher config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Quiet mode (errors only)")

	// Add subcommands
	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newInitCmd())
	rootCmd.AddCommand(newCheckCmd())
	rootCmd.AddCommand(newUpdateCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newRestoreCmd())
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newPackageCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newCompletionCmd())

	// Register completion function for output flag
	_ = rootCmd.RegisterFlagCompletionFunc("output", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{"text", "json", "yaml"}, cobra.ShellCompDirectiveNoFileComp
	})

	return rootCmd.Execute()
}
