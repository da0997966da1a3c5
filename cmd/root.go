// Package cmd defines and implements the CLI commands for the brochure-capture executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/brochure-capture/internal/app"
	"github.com/JakeFAU/brochure-capture/internal/catalog"
	"github.com/JakeFAU/brochure-capture/internal/config"
	"github.com/JakeFAU/brochure-capture/internal/logging"
	"github.com/JakeFAU/brochure-capture/internal/notify"
	"github.com/JakeFAU/brochure-capture/internal/pipeline"
	"github.com/JakeFAU/brochure-capture/internal/render"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App defines the application interface that commands will use.
// This allows us to inject a fake app during tests.
type App interface {
	Close()
	GetLogger() *zap.Logger
	GetConfig() config.Config
	GetCatalog() catalog.Store
	GetNotifier() notify.Notifier
	GetStamper() pipeline.Stamper
	CaptureLayout() pipeline.Layout
	PricingLayout() pipeline.Layout
}

// newApp is the application factory. It's a variable so tests can wrap it.
var newApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (App, error) {
	return app.NewApp(ctx, cfg, logger)
}

// newRenderer starts the headless browser. Tests replace it with a fake.
var newRenderer = func(opts render.Options, logger *zap.Logger) (render.Renderer, error) {
	return render.NewChromedp(opts, logger)
}

// rootOptions holds the persistent flags shared by every subcommand.
type rootOptions struct {
	cfgFile string
	envFile string
	slug    string
	force   bool
}

// newRootCmd creates and configures the root command.
// Running it without a subcommand performs a full capture.
func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	capture := &captureOptions{}

	cmd := &cobra.Command{
		Use:   "brochure-capture",
		Short: "Exports itinerary brochure pages to watermarked PDFs and thumbnails.",
		Long: `brochure-capture renders every brochure page listed in the itinerary manifest
with a headless browser, stamps the logo onto each PDF, uploads the artifacts to
object storage and records the generation time in the catalog.

Stale artifacts left behind by a category change are removed on the way.`,
		SilenceUsage: true,

		// Config is loaded here so every subcommand sees the same App.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.cfgFile, opts.envFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := logging.New(cfg.Logging.Development)
			if err != nil {
				return err
			}
			logging.Set(logger)

			appInstance, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}

			ctx := context.WithValue(cmd.Context(), appKey, appInstance)
			cmd.SetContext(ctx)
			return nil
		},

		// This hook ensures services are shut down gracefully.
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(App); ok && appInstance != nil {
				appInstance.Close()
			}
		},

		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCapture(cmd, opts, capture)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.cfgFile, "config", "", "config file (YAML, optional)")
	flags.StringVar(&opts.envFile, "env-file", config.DefaultEnvFile, "env file loaded before the environment")
	flags.StringVar(&opts.slug, "slug", "", "capture a single itinerary instead of the manifest")
	flags.BoolVar(&opts.force, "force", false, "render even when the output file already exists")

	cmd.AddCommand(newCaptureCmd(opts))
	cmd.AddCommand(newCapturePricingCmd(opts))
	cmd.AddCommand(newDiscoverCmd())

	return cmd
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// Execute is the main entry point.
func Execute() {
	// Initialize the logger once at the very start.
	logging.InitLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		logging.L.Fatal("Command execution failed", zap.Error(err))
	}
}
