package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/brochure-capture/internal/app"
	"github.com/JakeFAU/brochure-capture/internal/artifact"
	"github.com/JakeFAU/brochure-capture/internal/manifest"
	"github.com/JakeFAU/brochure-capture/internal/pipeline"
)

type captureOptions struct {
	skipExisting bool
}

// newCaptureCmd creates the 'capture' subcommand, which exports all three variants.
func newCaptureCmd(root *rootOptions) *cobra.Command {
	opts := &captureOptions{}
	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Captures client PDFs, agent-pricing PDFs and thumbnails",
		Long: `Renders the client brochure, the agent-pricing brochure and the thumbnail
for every itinerary, once per active catalog category, and publishes them to the
brochure bucket. Per-target failures are logged and the batch continues.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCapture(cmd, root, opts)
		},
	}
	cmd.Flags().BoolVar(&opts.skipExisting, "skip-existing", false,
		"publish existing local files instead of rendering them again (ignored with --force)")
	return cmd
}

// newCapturePricingCmd creates the 'capture-pricing' subcommand, which only
// exports agent-pricing PDFs into the flat pricing bucket.
func newCapturePricingCmd(root *rootOptions) *cobra.Command {
	opts := &captureOptions{}
	cmd := &cobra.Command{
		Use:   "capture-pricing",
		Short: "Captures agent-pricing PDFs into the pricing bucket",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPipeline(cmd, root, "capture-pricing",
				func(a App) pipeline.Layout { return a.PricingLayout() },
				pipeline.Options{
					Force:        root.force,
					SkipExisting: opts.skipExisting,
					Variants:     []artifact.Variant{artifact.AgentPricing},
				})
		},
	}
	cmd.Flags().BoolVar(&opts.skipExisting, "skip-existing", true,
		"publish existing local files instead of rendering them again (ignored with --force)")
	return cmd
}

func runCapture(cmd *cobra.Command, root *rootOptions, opts *captureOptions) error {
	return runPipeline(cmd, root, "capture",
		func(a App) pipeline.Layout { return a.CaptureLayout() },
		pipeline.Options{Force: root.force, SkipExisting: opts.skipExisting})
}

func runPipeline(
	cmd *cobra.Command,
	root *rootOptions,
	name string,
	layout func(App) pipeline.Layout,
	options pipeline.Options,
) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	cfg := appInstance.GetConfig()
	logger := appInstance.GetLogger()

	slugs, err := resolveSlugs(root.slug, cfg.Manifest.Path)
	if err != nil {
		return err
	}

	renderer, err := newRenderer(app.RenderOptions(cfg), logger)
	if err != nil {
		return fmt.Errorf("start renderer: %w", err)
	}
	defer func() {
		if cerr := renderer.Close(); cerr != nil {
			logger.Warn("Failed to close renderer", zap.Error(cerr))
		}
	}()

	p, err := pipeline.New(pipeline.Config{
		BaseURL:      cfg.Site.BaseURL,
		BrochurePath: cfg.Site.BrochurePath,
		PricingQuery: cfg.Site.PricingQuery,
		Layout:       layout(appInstance),
		Options:      options,
	}, pipeline.Deps{
		Renderer: renderer,
		Stamper:  appInstance.GetStamper(),
		Catalog:  appInstance.GetCatalog(),
		Notifier: appInstance.GetNotifier(),
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}

	report, err := p.Run(cmd.Context(), slugs)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("run %s: %w", name, err)
	}

	logger.Info("Command finished.",
		zap.String("command", name),
		zap.String("run_id", report.RunID),
		zap.Int("failed", report.Failed()),
	)
	return nil
}

// resolveSlugs returns the single --slug target or the manifest entries.
// A missing manifest is fatal only when no slug was given.
func resolveSlugs(slug, manifestPath string) ([]string, error) {
	if slug != "" {
		clean := artifact.CleanSlug(slug)
		if clean == "" {
			return nil, fmt.Errorf("invalid --slug %q", slug)
		}
		return []string{clean}, nil
	}
	slugs, err := manifest.Load(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("load manifest: %w", err)
	}
	return slugs, nil
}
