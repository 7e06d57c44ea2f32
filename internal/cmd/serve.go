package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/plxgio/sakura-launcher/internal/feed"
	"github.com/plxgio/sakura-launcher/internal/release"
)

func newServeCmd() *cobra.Command {
	var (
		opts feed.Options
		addr string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a release directory as an update feed",
		Long: `Serve publishes the output of 'launcher package' over HTTP.

The manifest and archive are served under /updates/, so a launcher configured
with manifest_base_url: http://HOST:PORT/updates/ picks them up.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := setupToolLogging(); err != nil {
				return err
			}
			if !verbose {
				gin.SetMode(gin.ReleaseMode)
			}

			server, err := feed.NewServer(opts)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return server.Run(ctx, addr)
		},
	}

	cmd.Flags().StringVar(&opts.Dir, "dir", "dist", "Release directory to serve")
	cmd.Flags().StringVar(&addr, "addr", ":8080", "Address to listen on")
	cmd.Flags().StringVar(&opts.Prefix, "prefix", feed.DefaultPrefix, "URL path to serve the files under")
	cmd.Flags().StringVar(&opts.ManifestName, "manifest-name", release.DefaultManifestName, "Manifest file name")
	cmd.Flags().StringVar(&opts.ArchiveName, "archive-name", release.DefaultArchiveName, "Archive file name")

	return cmd
}
