// Package app initializes and holds long-lived application services, acting as a dependency injection container.
package app

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	gcsstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/brochure-capture/internal/catalog"
	"github.com/JakeFAU/brochure-capture/internal/catalog/postgres"
	"github.com/JakeFAU/brochure-capture/internal/catalog/sqlite"
	"github.com/JakeFAU/brochure-capture/internal/config"
	"github.com/JakeFAU/brochure-capture/internal/metrics"
	"github.com/JakeFAU/brochure-capture/internal/notify"
	"github.com/JakeFAU/brochure-capture/internal/notify/pubsub"
	"github.com/JakeFAU/brochure-capture/internal/pipeline"
	"github.com/JakeFAU/brochure-capture/internal/render"
	"github.com/JakeFAU/brochure-capture/internal/storage"
	"github.com/JakeFAU/brochure-capture/internal/storage/gcs"
	"github.com/JakeFAU/brochure-capture/internal/storage/local"
	"github.com/JakeFAU/brochure-capture/internal/storage/memory"
	"github.com/JakeFAU/brochure-capture/internal/watermark"
)

const metricsShutdownTimeout = 5 * time.Second

// App holds the shared, long-lived services of a capture run.
// It is built once from the loaded Config and closed by the CLI after the command finishes.
type App struct {
	Config       config.Config
	Logger       *zap.Logger
	Store        storage.BlobStore
	PricingStore storage.BlobStore
	Catalog      catalog.Store
	Notifier     notify.Notifier
	Stamper      *watermark.Stamper
	Metrics      *metrics.Server

	gcsClient *gcsstorage.Client
}

// GetLogger returns the shared zap logger.
func (a *App) GetLogger() *zap.Logger {
	return a.Logger
}

// GetConfig returns the configuration the app was built from.
func (a *App) GetConfig() config.Config {
	return a.Config
}

// GetCatalog provides access to the brochure catalog.
func (a *App) GetCatalog() catalog.Store {
	return a.Catalog
}

// GetNotifier returns the post-publish notifier.
func (a *App) GetNotifier() notify.Notifier {
	return a.Notifier
}

// GetStamper returns the PDF watermark stamper.
func (a *App) GetStamper() pipeline.Stamper {
	return a.Stamper
}

// CaptureLayout places the three variants under their folders in the main bucket.
func (a *App) CaptureLayout() pipeline.Layout {
	out := a.Config.Output
	return pipeline.CaptureLayout(out.Root, out.PricingPath(), out.ThumbnailsPath(), a.Store)
}

// PricingLayout places agent-pricing PDFs at the root of the pricing bucket.
func (a *App) PricingLayout() pipeline.Layout {
	return pipeline.PricingLayout(a.Config.Output.PricingPath(), a.PricingStore)
}

// NewApp creates the App services described by cfg.
// It fails fast if any provider cannot be initialized and releases what was already opened.
func NewApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (_ *App, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("Initializing application services...")

	a := &App{
		Config:   cfg,
		Logger:   logger,
		Catalog:  catalog.NoOpStore{},
		Notifier: notify.Noop{},
	}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	if err := a.initStorage(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	if err := a.initCatalog(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize catalog: %w", err)
	}
	if err := a.initNotifier(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize notifier: %w", err)
	}

	a.Stamper = watermark.New(watermark.Config{
		LogoPath: cfg.Watermark.LogoPath,
		Width:    cfg.Watermark.Width,
		Margin:   cfg.Watermark.Margin,
		Opacity:  cfg.Watermark.Opacity,
	}, logger)

	if cfg.Metrics.Addr != "" {
		metrics.Init()
		srv, err := metrics.Start(cfg.Metrics.Addr, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to start metrics server: %w", err)
		}
		a.Metrics = srv
	}

	logger.Info("Application services initialized successfully.")
	return a, nil
}

func (a *App) initStorage(ctx context.Context) error {
	s := a.Config.Storage
	policy := storage.Policy{
		MaxObjectBytes:      s.MaxObjectBytes,
		AllowedContentTypes: s.AllowedContentTypes,
	}
	pricingBucket := s.PricingBucket
	if pricingBucket == "" {
		pricingBucket = s.Bucket
	}

	switch s.Provider {
	case "gcs":
		a.Logger.Info("Using GCS storage provider",
			zap.String("bucket", s.Bucket),
			zap.String("pricing_bucket", pricingBucket),
		)
		client, err := gcsstorage.NewClient(ctx, gcs.ClientOptions(s.CredentialsFile, s.Endpoint)...)
		if err != nil {
			return fmt.Errorf("create gcs client: %w", err)
		}
		a.gcsClient = client
		newStore := func(bucket string) (*gcs.BlobStore, error) {
			return gcs.New(client, gcs.Config{
				Bucket:        bucket,
				ProjectID:     s.ProjectID,
				Public:        s.Public,
				PublicBaseURL: s.PublicBaseURL,
				Policy:        policy,
			}, a.Logger)
		}
		if a.Store, err = newStore(s.Bucket); err != nil {
			return err
		}
		if a.PricingStore, err = newStore(pricingBucket); err != nil {
			return err
		}
	case "local":
		a.Logger.Info("Using local storage provider", zap.String("dir", s.LocalDir))
		store, err := local.New(local.Config{BaseDir: filepath.Join(s.LocalDir, s.Bucket), Policy: policy})
		if err != nil {
			return err
		}
		pricing, err := local.New(local.Config{BaseDir: filepath.Join(s.LocalDir, pricingBucket), Policy: policy})
		if err != nil {
			return err
		}
		a.Store, a.PricingStore = store, pricing
	case "memory":
		a.Logger.Info("Using in-memory storage provider. Uploads are discarded on exit.")
		a.Store = memory.NewBlobStore(s.Bucket, policy)
		a.PricingStore = memory.NewBlobStore(pricingBucket, policy)
	default:
		return fmt.Errorf("unknown storage provider: %s", s.Provider)
	}
	return nil
}

func (a *App) initCatalog(ctx context.Context) error {
	c := a.Config.Catalog
	switch c.Provider {
	case "postgres":
		a.Logger.Info("Connecting to PostgreSQL catalog...")
		store, err := postgres.New(ctx, postgres.Config{DSN: c.DSN, Table: c.Table, MaxConns: c.MaxConns})
		if err != nil {
			return err
		}
		a.Catalog = store
	case "sqlite":
		a.Logger.Info("Opening SQLite catalog", zap.String("path", c.DSN))
		store, err := sqlite.Open(ctx, c.DSN, c.Table)
		if err != nil {
			return err
		}
		a.Catalog = store
	case "noop", "":
		a.Logger.Info("Using No-Op catalog. Every slug is captured as 'general' and metadata is discarded.")
	default:
		return fmt.Errorf("unknown catalog provider: %s", c.Provider)
	}
	return nil
}

func (a *App) initNotifier(ctx context.Context) error {
	n := a.Config.Notify
	switch n.Provider {
	case "pubsub":
		a.Logger.Info("Connecting to GCP Pub/Sub", zap.String("topic", n.Topic))
		pub, err := pubsub.New(ctx, n.ProjectID, n.Topic)
		if err != nil {
			return err
		}
		a.Notifier = pub
	case "noop", "":
		a.Logger.Info("Using No-Op notifier. No events will be sent.")
	default:
		return fmt.Errorf("unknown notify provider: %s", n.Provider)
	}
	return nil
}

// RenderOptions maps renderer configuration onto chromedp options.
// The call-to-action link falls back to the site base URL.
func RenderOptions(cfg config.Config) render.Options {
	r := cfg.Renderer
	ctaURL := r.CTAURL
	if ctaURL == "" {
		ctaURL = cfg.Site.BaseURL
	}
	return render.Options{
		ExecPath:          r.ExecPath,
		NoSandbox:         r.NoSandbox,
		UserAgent:         r.UserAgent,
		NavigationTimeout: r.NavigationTimeout,
		SettleDelay:       r.SettleDelay,
		NavigationQPS:     r.NavigationQPS,
		PageWidth:         r.PageWidth,
		ViewportHeight:    r.ViewportHeight,
		ThumbnailWidth:    r.ThumbnailWidth,
		ThumbnailHeight:   r.ThumbnailHeight,
		Branding:          render.Branding{Text: r.CTAText, URL: ctaURL},
		Style: render.Style{
			HideSelectors:  r.HideSelectors,
			HeroSelector:   r.HeroSelector,
			HeroHeight:     r.HeroHeight,
			HeroBrightness: r.HeroBrightness,
		},
	}
}

// Close gracefully shuts down all services in the App container.
// It is called by a Cobra hook after the command finishes execution.
func (a *App) Close() {
	a.Logger.Info("Shutting down application services...")
	if a.Catalog != nil {
		if err := a.Catalog.Close(); err != nil {
			a.Logger.Warn("Error closing catalog", zap.Error(err))
		}
	}
	if a.Notifier != nil {
		if err := a.Notifier.Close(); err != nil {
			a.Logger.Warn("Error closing notifier", zap.Error(err))
		}
	}
	if a.gcsClient != nil {
		if err := a.gcsClient.Close(); err != nil {
			a.Logger.Warn("Error closing storage client", zap.Error(err))
		}
	}
	if a.Metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()
		if err := a.Metrics.Shutdown(ctx); err != nil {
			a.Logger.Warn("Error stopping metrics server", zap.Error(err))
		}
	}
	// Sync fails on stdout/stderr sinks on some platforms; it is best-effort.
	_ = a.Logger.Sync()
}
