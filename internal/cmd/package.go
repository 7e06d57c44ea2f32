package cmd

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/plxgio/sakura-launcher/internal/output"
	"github.com/plxgio/sakura-launcher/internal/release"
)

func newPackageCmd() *cobra.Command {
	var opts release.Options

	cmd := &cobra.Command{
		Use:   "package",
		Short: "Build an update archive and manifest from a directory",
		Long: `Package zips the contents of a release directory into launcher_update.zip
and writes launcher_version.json next to it, with the file list and the
archive's SHA-256 digest.

Publish both files under the URL given with --base-url.

Examples:
  launcher package --src ./build --version 1.4.0 --changelog "New background"
  launcher package --src ./build --version 1.4.0 --out ./dist \
    --base-url https://example.com/updates/`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := setupToolLogging(); err != nil {
				return err
			}
			writer, err := outputWriter()
			if err != nil {
				return err
			}

			res, err := release.Build(cmd.Context(), opts)
			if err != nil {
				return err
			}

			if writer.Format() != output.FormatText {
				return writer.Write(res.Manifest)
			}
			fmt.Printf("Packaged %d files for version %s\n", len(res.Manifest.Files), res.Manifest.Version)
			fmt.Printf("  archive:  %s (%s)\n", res.ArchivePath, humanize.Bytes(uint64(res.Size)))
			fmt.Printf("  manifest: %s\n", res.ManifestPath)
			fmt.Printf("  digest:   %s\n", res.Digest)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.SrcDir, "src", "", "Directory with the files to ship")
	cmd.Flags().StringVar(&opts.Version, "version", "", "Version being released (numeric, e.g. 1.4.0)")
	cmd.Flags().StringVar(&opts.Changelog, "changelog", "", "Release notes shown to users")
	cmd.Flags().StringVar(&opts.OutDir, "out", "dist", "Directory to write the archive and manifest to")
	cmd.Flags().StringVar(&opts.BaseURL, "base-url", "", "Public URL of the output directory")
	cmd.Flags().StringVar(&opts.ArchiveName, "archive-name", release.DefaultArchiveName, "Archive file name")
	cmd.Flags().StringVar(&opts.ManifestName, "manifest-name", release.DefaultManifestName, "Manifest file name")
	cmd.Flags().StringSliceVar(&opts.Exclude, "exclude", nil, "Paths relative to --src to leave out")
	_ = cmd.MarkFlagRequired("src")
	_ = cmd.MarkFlagRequired("version")

	return cmd
}
