// Package pipeline drives the brochure capture run: for each slug it removes
// stale artifacts, renders every variant per active category, watermarks and
// publishes the files, then stamps the catalog.
//
// Targets fail independently. A failed render, write or upload is recorded in
// the Report and the run moves on; only bucket setup is fatal.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/brochure-capture/internal/artifact"
	"github.com/JakeFAU/brochure-capture/internal/catalog"
	"github.com/JakeFAU/brochure-capture/internal/id/uuid"
	"github.com/JakeFAU/brochure-capture/internal/metrics"
	"github.com/JakeFAU/brochure-capture/internal/notify"
	"github.com/JakeFAU/brochure-capture/internal/render"
	"github.com/JakeFAU/brochure-capture/internal/storage"
	"github.com/JakeFAU/brochure-capture/internal/watermark"
)

// Renderer produces artifact bytes for a page.
type Renderer interface {
	Render(ctx context.Context, req render.Request) ([]byte, error)
}

// Stamper watermarks a PDF in place.
type Stamper interface {
	Apply(pdfPath string) error
}

// Clock supplies timestamps.
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run identifiers.
type IDGenerator interface {
	NewID() (string, error)
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// Destination is where one variant lands locally and in object storage.
type Destination struct {
	LocalDir string
	Store    storage.BlobStore
	// Folder is the bucket folder; empty for a flat bucket.
	Folder string
}

// Layout maps each variant to its destination.
type Layout map[artifact.Variant]Destination

// CaptureLayout places all three variants in one bucket under their folders.
func CaptureLayout(clientDir, pricingDir, thumbnailDir string, store storage.BlobStore) Layout {
	return Layout{
		artifact.Client:       {LocalDir: clientDir, Store: store, Folder: artifact.Client.Folder()},
		artifact.AgentPricing: {LocalDir: pricingDir, Store: store, Folder: artifact.AgentPricing.Folder()},
		artifact.Thumbnail:    {LocalDir: thumbnailDir, Store: store, Folder: artifact.Thumbnail.Folder()},
	}
}

// PricingLayout places agent-pricing PDFs at the root of a dedicated bucket.
func PricingLayout(pricingDir string, store storage.BlobStore) Layout {
	return Layout{
		artifact.AgentPricing: {LocalDir: pricingDir, Store: store},
	}
}

// Options toggles run behavior.
type Options struct {
	// Force renders even when SkipExisting would reuse a local file.
	Force bool
	// SkipExisting publishes an existing local file instead of rendering it again.
	SkipExisting bool
	// Variants to capture, in order. Empty means all.
	Variants []artifact.Variant
}

// Config is the immutable run configuration.
type Config struct {
	BaseURL      string
	BrochurePath string
	PricingQuery string
	Layout       Layout
	Options      Options
}

// Deps are the collaborators of a run. Only Renderer is required.
type Deps struct {
	Renderer Renderer
	Stamper  Stamper
	Catalog  catalog.Store
	Notifier notify.Notifier
	Clock    Clock
	IDs      IDGenerator
	Logger   *zap.Logger
}

// Pipeline runs captures sequentially.
type Pipeline struct {
	cfg       Config
	opts      Options
	layout    Layout
	renderer  Renderer
	stamper   Stamper
	catalog   catalog.Store
	notifier  notify.Notifier
	clock     Clock
	ids       IDGenerator
	logger    *zap.Logger
	writeFile writeFunc
}

// New validates cfg and fills missing collaborators with no-op defaults.
func New(cfg Config, deps Deps) (*Pipeline, error) {
	if deps.Renderer == nil {
		return nil, errors.New("renderer is required")
	}
	if cfg.BaseURL == "" {
		return nil, errors.New("base url is required")
	}
	opts := cfg.Options
	if len(opts.Variants) == 0 {
		opts.Variants = append([]artifact.Variant(nil), artifact.Variants...)
	}
	for _, v := range opts.Variants {
		dest, ok := cfg.Layout[v]
		if !ok {
			return nil, fmt.Errorf("no destination for variant %s", v)
		}
		if dest.LocalDir == "" || dest.Store == nil {
			return nil, fmt.Errorf("destination for variant %s needs a local dir and a store", v)
		}
	}
	if deps.Catalog == nil {
		deps.Catalog = catalog.NoOpStore{}
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.Noop{}
	}
	if deps.Clock == nil {
		deps.Clock = systemClock{}
	}
	if deps.IDs == nil {
		deps.IDs = uuid.New()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	metrics.Init()

	return &Pipeline{
		cfg:       cfg,
		opts:      opts,
		layout:    cfg.Layout,
		renderer:  deps.Renderer,
		stamper:   deps.Stamper,
		catalog:   deps.Catalog,
		notifier:  deps.Notifier,
		clock:     deps.Clock,
		ids:       deps.IDs,
		logger:    deps.Logger.Named("pipeline"),
		writeFile: os.WriteFile,
	}, nil
}

// Run captures every slug in order. It returns an error only when bucket setup
// fails or ctx is canceled; per-target failures are in the Report.
func (p *Pipeline) Run(ctx context.Context, slugs []string) (Report, error) {
	runID, err := p.ids.NewID()
	if err != nil {
		return Report{}, fmt.Errorf("generate run id: %w", err)
	}
	report := Report{RunID: runID, StartedAt: p.clock.Now()}
	logger := p.logger.With(zap.String("run_id", runID))
	logger.Info("Capture run started",
		zap.Int("slugs", len(slugs)),
		zap.Bool("force", p.opts.Force),
		zap.Bool("skip_existing", p.opts.SkipExisting),
	)

	for _, store := range p.stores() {
		if err := store.EnsureBucket(ctx); err != nil {
			return report, fmt.Errorf("ensure bucket %s: %w", store.Name(), err)
		}
	}

	for _, raw := range slugs {
		if err := ctx.Err(); err != nil {
			report.FinishedAt = p.clock.Now()
			return report, fmt.Errorf("capture run canceled: %w", err)
		}
		slug := artifact.CleanSlug(raw)
		if slug == "" {
			continue
		}
		report.Slugs++
		p.runSlug(ctx, runID, slug, &report, logger.With(zap.String("slug", slug)))
	}

	report.FinishedAt = p.clock.Now()
	p.logSummary(report, logger)
	return report, nil
}

// stores returns each distinct store used by the requested variants once.
func (p *Pipeline) stores() []storage.BlobStore {
	var out []storage.BlobStore
	seen := make(map[storage.BlobStore]bool)
	for _, v := range p.opts.Variants {
		s := p.layout[v].Store
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

func (p *Pipeline) runSlug(ctx context.Context, runID, slug string, report *Report, logger *zap.Logger) {
	categories, err := catalog.ActiveCategories(ctx, p.catalog, slug)
	if err != nil {
		report.addFailure(&CaptureError{Stage: StageCatalog, Slug: slug, Err: err})
		return
	}
	logger.Info("Capturing brochure", zap.Strings("categories", categories))

	report.Deleted += p.reconcile(ctx, slug, artifact.ActiveSet(categories), logger)

	var results []Result
	for _, v := range p.opts.Variants {
		results = append(results, p.captureVariant(ctx, slug, v, categories, logger)...)
	}
	for _, res := range results {
		report.addResult(res)
	}

	generatedAt := p.clock.Now()
	updated, failures := p.updateMetadata(ctx, slug, categories, results, generatedAt, logger)
	report.Updated += updated
	for _, ce := range failures {
		report.addFailure(ce)
	}

	p.notify(ctx, runID, slug, categories, results, generatedAt, logger)
}

// captureVariant renders the page once and publishes one file per category.
func (p *Pipeline) captureVariant(
	ctx context.Context,
	slug string,
	v artifact.Variant,
	categories []string,
	logger *zap.Logger,
) []Result {
	dest := p.layout[v]
	req := render.Request{
		URL:      artifact.TargetURL(p.cfg.BaseURL, p.cfg.BrochurePath, slug, v, p.cfg.PricingQuery),
		Kind:     render.Document,
		Branding: v != artifact.Thumbnail,
	}
	if !v.IsDocument() {
		req.Kind = render.Clip
	}

	var (
		data      []byte
		rendered  bool
		renderErr error
	)
	results := make([]Result, 0, len(categories))
	for _, category := range categories {
		name := artifact.FileName(category, slug, v)
		res := Result{
			Slug:      slug,
			Variant:   v,
			Category:  category,
			LocalPath: filepath.Join(dest.LocalDir, name),
			ObjectKey: artifact.ObjectKey(dest.Folder, name),
		}
		fail := func(stage Stage, err error) {
			res.Err = &CaptureError{Stage: stage, Slug: slug, Variant: v.String(), Category: category, Err: err}
			metrics.ObserveCapture(v.String(), metrics.StatusFailure)
			results = append(results, res)
		}

		fresh := false
		if p.opts.SkipExisting && !p.opts.Force && fileExists(res.LocalPath) {
			res.Skipped = true
			logger.Info("Output exists, publishing without render", zap.String("path", res.LocalPath))
		} else {
			if !rendered {
				start := time.Now()
				data, renderErr = p.renderer.Render(ctx, req)
				metrics.ObserveRender(v.String(), time.Since(start))
				rendered = true
			}
			if renderErr != nil {
				fail(StageRender, renderErr)
				continue
			}
			written, err := writeArtifact(res.LocalPath, data, p.writeFile)
			if err != nil {
				fail(StageWrite, err)
				continue
			}
			if written != res.LocalPath {
				res.Fallback = true
				logger.Warn("Output locked, wrote fallback file", zap.String("path", written))
			}
			res.LocalPath = written
			fresh = true
		}

		if fresh && v.IsDocument() {
			p.watermark(res.LocalPath, logger)
		}

		url, err := p.publish(ctx, dest, res, v)
		if err != nil {
			fail(StageUpload, err)
			continue
		}
		res.URL = url
		status := metrics.StatusSuccess
		if res.Skipped {
			status = metrics.StatusSkipped
		}
		metrics.ObserveCapture(v.String(), status)
		logger.Info("Artifact published",
			zap.String("variant", v.String()),
			zap.String("category", category),
			zap.String("key", res.ObjectKey),
		)
		results = append(results, res)
	}
	return results
}

func (p *Pipeline) watermark(path string, logger *zap.Logger) {
	if p.stamper == nil {
		return
	}
	if err := p.stamper.Apply(path); err != nil {
		if errors.Is(err, watermark.ErrLogoNotFound) {
			logger.Debug("Logo not found, skipping watermark", zap.String("file", filepath.Base(path)))
			return
		}
		logger.Warn("Watermark failed, publishing unwatermarked file",
			zap.String("file", filepath.Base(path)),
			zap.Error(err),
		)
	}
}

func (p *Pipeline) publish(ctx context.Context, dest Destination, res Result, v artifact.Variant) (string, error) {
	body, err := os.ReadFile(filepath.Clean(res.LocalPath))
	if err != nil {
		metrics.ObserveUpload(v.String(), metrics.StatusFailure)
		return "", fmt.Errorf("read %s: %w", filepath.Base(res.LocalPath), err)
	}
	url, err := dest.Store.Upload(ctx, res.ObjectKey, v.ContentType(), body)
	if err != nil {
		metrics.ObserveUpload(v.String(), metrics.StatusFailure)
		return "", fmt.Errorf("upload %s: %w", res.ObjectKey, err)
	}
	metrics.ObserveUpload(v.String(), metrics.StatusSuccess)
	return url, nil
}

// updateMetadata stamps each category whose client and agent-pricing PDFs were
// both published in this run. Runs that do not capture both skip the update.
func (p *Pipeline) updateMetadata(
	ctx context.Context,
	slug string,
	categories []string,
	results []Result,
	generatedAt time.Time,
	logger *zap.Logger,
) (int, []*CaptureError) {
	if !p.captures(artifact.Client) || !p.captures(artifact.AgentPricing) {
		return 0, nil
	}
	type outcome struct {
		documents int
		failed    bool
		thumbnail string
	}
	byCategory := make(map[string]*outcome, len(categories))
	for _, c := range categories {
		byCategory[c] = &outcome{}
	}
	for _, res := range results {
		o := byCategory[res.Category]
		if o == nil {
			continue
		}
		switch {
		case !res.OK():
			if res.Variant.IsDocument() {
				o.failed = true
			}
		case res.Variant.IsDocument():
			o.documents++
		case res.Variant == artifact.Thumbnail:
			o.thumbnail = res.URL
		}
	}

	updated := 0
	var failures []*CaptureError
	for _, category := range categories {
		o := byCategory[category]
		if o.failed || o.documents < 2 {
			logger.Warn("Skipping catalog update, documents incomplete", zap.String("category", category))
			continue
		}
		n, err := p.catalog.UpdateGenerated(ctx, catalog.Update{
			Slug:         slug,
			Category:     category,
			GeneratedAt:  generatedAt,
			ThumbnailURL: o.thumbnail,
		})
		if err != nil {
			failures = append(failures, &CaptureError{Stage: StageMetadata, Slug: slug, Category: category, Err: err})
			continue
		}
		if n == 0 {
			logger.Debug("Catalog update matched no rows", zap.String("category", category))
			continue
		}
		updated++
	}
	return updated, failures
}

func (p *Pipeline) captures(v artifact.Variant) bool {
	for _, want := range p.opts.Variants {
		if want == v {
			return true
		}
	}
	return false
}

func (p *Pipeline) notify(
	ctx context.Context,
	runID, slug string,
	categories []string,
	results []Result,
	generatedAt time.Time,
	logger *zap.Logger,
) {
	urls := make(map[string]string)
	for _, res := range results {
		if res.OK() && res.URL != "" {
			urls[res.ObjectKey] = res.URL
		}
	}
	if len(urls) == 0 {
		return
	}
	err := p.notifier.Notify(ctx, notify.Event{
		RunID:       runID,
		Slug:        slug,
		Categories:  categories,
		URLs:        urls,
		GeneratedAt: generatedAt,
	})
	if err != nil {
		logger.Warn("Notification failed", zap.Error(err))
	}
}

func (p *Pipeline) logSummary(report Report, logger *zap.Logger) {
	for _, ce := range report.Failures {
		logger.Error("Capture failed",
			zap.String("stage", string(ce.Stage)),
			zap.String("slug", ce.Slug),
			zap.String("variant", ce.Variant),
			zap.String("category", ce.Category),
			zap.Error(ce.Err),
		)
	}
	logger.Info("Capture run finished",
		zap.Int("slugs", report.Slugs),
		zap.Int("succeeded", report.Succeeded()),
		zap.Int("skipped", report.Skipped()),
		zap.Int("failed", report.Failed()),
		zap.Int("deleted", report.Deleted),
		zap.Int("catalog_updated", report.Updated),
		zap.Duration("duration", report.FinishedAt.Sub(report.StartedAt)),
	)
}
