package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/brochure-capture/internal/discover"
	"github.com/JakeFAU/brochure-capture/internal/manifest"
)

type discoverOptions struct {
	out           string
	respectRobots bool
}

// newDiscoverCmd creates the 'discover' subcommand, which regenerates the
// manifest from the brochure listing page.
func newDiscoverCmd() *cobra.Command {
	opts := &discoverOptions{}
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Writes the manifest from the brochure listing page",
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			cfg := appInstance.GetConfig()
			logger := appInstance.GetLogger()

			d, err := discover.New(discover.Config{
				BaseURL:       cfg.Site.BaseURL,
				BrochurePath:  cfg.Site.BrochurePath,
				UserAgent:     cfg.Renderer.UserAgent,
				RespectRobots: opts.respectRobots,
			}, logger)
			if err != nil {
				return fmt.Errorf("init discoverer: %w", err)
			}
			slugs, err := d.Discover(cmd.Context())
			if err != nil {
				return err
			}
			if len(slugs) == 0 {
				return fmt.Errorf("no brochures linked from %s", d.ListingURL())
			}

			out := opts.out
			if out == "" {
				out = cfg.Manifest.Path
			}
			if err := manifest.Write(out, slugs); err != nil {
				return err
			}
			logger.Info("Manifest written", zap.String("path", out), zap.Int("slugs", len(slugs)))
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.out, "out", "", "manifest path (defaults to manifest.path)")
	cmd.Flags().BoolVar(&opts.respectRobots, "respect-robots", false, "honor robots.txt on the site")
	return cmd
}
