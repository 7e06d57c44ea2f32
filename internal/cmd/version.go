package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// VersionInfo is the build metadata of the binary.
type VersionInfo struct {
	Version string `json:"version" yaml:"version"`
	Commit  string `json:"commit" yaml:"commit"`
	Date    string `json:"date" yaml:"date"`
}

func (v VersionInfo) String() string {
	return fmt.Sprintf("launcher version %s (commit %s, built %s)", v.Version, v.Commit, v.Date)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			writer, err := outputWriter()
			if err != nil {
				return err
			}
			return writer.Write(VersionInfo{
				Version: launcherVersion,
				Commit:  launcherCommit,
				Date:    launcherDate,
			})
		},
	}
}
