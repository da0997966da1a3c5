package render

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Chromedp renders pages in a single headless Chrome tab. Requests are
// serialized; the tab is reused for every capture.
type Chromedp struct {
	opts            Options
	logger          *zap.Logger
	allocatorCancel context.CancelFunc
	tabCtx          context.Context
	tabCancel       context.CancelFunc
	limiter         *rate.Limiter
	watcher         *lifecycleWatcher

	mu     sync.Mutex
	closed bool
}

var _ Renderer = (*Chromedp)(nil)

// NewChromedp starts Chrome and opens the capture tab.
func NewChromedp(opts Options, logger *zap.Logger) (*Chromedp, error) {
	opts = opts.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
		chromedp.WindowSize(opts.PageWidth, opts.ViewportHeight),
	)
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}
	if opts.NoSandbox {
		allocOpts = append(allocOpts, chromedp.NoSandbox)
	}
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}

	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	tabCtx, tabCancel := chromedp.NewContext(allocatorCtx)
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		allocatorCancel()
		return nil, fmt.Errorf("chromedp warmup: %w", err)
	}

	watcher := newLifecycleWatcher(cdp.FrameID(chromedp.FromContext(tabCtx).Target.TargetID))
	chromedp.ListenTarget(tabCtx, watcher.handle)
	if err := chromedp.Run(tabCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		return page.SetLifecycleEventsEnabled(true).Do(ctx)
	})); err != nil {
		tabCancel()
		allocatorCancel()
		return nil, fmt.Errorf("enable lifecycle events: %w", err)
	}

	var limiter *rate.Limiter
	if opts.NavigationQPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.NavigationQPS), 1)
	}

	return &Chromedp{
		opts:            opts,
		logger:          logger.Named("renderer"),
		allocatorCancel: allocatorCancel,
		tabCtx:          tabCtx,
		tabCancel:       tabCancel,
		limiter:         limiter,
		watcher:         watcher,
	}, nil
}

// Close shuts down the tab and the browser process.
func (r *Chromedp) Close() error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	r.tabCancel()
	r.allocatorCancel()
	return nil
}

// Render navigates to req.URL, applies the export overrides and returns a PDF
// for Document requests or a PNG for Clip requests.
func (r *Chromedp) Render(ctx context.Context, req Request) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrRendererClosed
	}

	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("render rate limit: %w", err)
		}
	}

	taskCtx, cancelTask := context.WithTimeout(r.tabCtx, r.opts.NavigationTimeout)
	defer cancelTask()
	stopForward := forwardCancel(ctx, cancelTask)
	defer stopForward()

	start := time.Now()
	data, err := r.capture(taskCtx, req)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("Page rendered",
		zap.String("url", req.URL),
		zap.Stringer("kind", req.Kind),
		zap.Int("bytes", len(data)),
		zap.Duration("duration", time.Since(start)),
	)
	return data, nil
}

func (r *Chromedp) capture(ctx context.Context, req Request) ([]byte, error) {
	width, height := r.opts.viewport(req.Kind)
	if err := run(ctx, "viewport", chromedp.EmulateViewport(width, height)); err != nil {
		return nil, err
	}

	idle := r.watcher.reset()
	if err := run(ctx, "navigate", chromedp.Navigate(req.URL)); err != nil {
		return nil, err
	}
	select {
	case <-idle:
	case <-ctx.Done():
		return nil, fmt.Errorf("wait idle: %w", ctx.Err())
	}
	if r.opts.SettleDelay > 0 {
		if err := run(ctx, "settle", chromedp.Sleep(r.opts.SettleDelay)); err != nil {
			return nil, err
		}
	}

	if req.Branding && r.opts.Branding.Text != "" {
		var injected bool
		if err := run(ctx, "inject branding", chromedp.Evaluate(brandingScript(r.opts.Branding), &injected)); err != nil {
			return nil, err
		}
		if !injected {
			r.logger.Debug("No nav element for branding", zap.String("url", req.URL))
		}
	}
	var styled bool
	if err := run(ctx, "inject style", chromedp.Evaluate(styleScript(r.opts.Style), &styled)); err != nil {
		return nil, err
	}

	if req.Kind == Clip {
		return r.screenshot(ctx)
	}
	return r.printPDF(ctx)
}

func (r *Chromedp) printPDF(ctx context.Context) ([]byte, error) {
	var contentHeight float64
	if err := run(ctx, "measure", chromedp.Evaluate(heightScript, &contentHeight)); err != nil {
		return nil, err
	}
	paperWidth, paperHeight := paperSize(r.opts.PageWidth, contentHeight)

	var data []byte
	err := run(ctx, "print pdf", chromedp.ActionFunc(func(ctx context.Context) error {
		buf, _, err := page.PrintToPDF().
			WithPrintBackground(true).
			WithPaperWidth(paperWidth).
			WithPaperHeight(paperHeight).
			WithMarginTop(0).
			WithMarginBottom(0).
			WithMarginLeft(0).
			WithMarginRight(0).
			WithPageRanges("1").
			Do(ctx)
		data = buf
		return err
	}))
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (r *Chromedp) screenshot(ctx context.Context) ([]byte, error) {
	var data []byte
	err := run(ctx, "screenshot", chromedp.ActionFunc(func(ctx context.Context) error {
		buf, err := page.CaptureScreenshot().
			WithFormat(page.CaptureScreenshotFormatPng).
			WithCaptureBeyondViewport(true).
			WithClip(&page.Viewport{
				X:      0,
				Y:      0,
				Width:  float64(r.opts.ThumbnailWidth),
				Height: float64(r.opts.ThumbnailHeight),
				Scale:  1,
			}).
			Do(ctx)
		data = buf
		return err
	}))
	if err != nil {
		return nil, err
	}
	return data, nil
}

func run(ctx context.Context, step string, actions ...chromedp.Action) error {
	if err := chromedp.Run(ctx, actions...); err != nil {
		return fmt.Errorf("%s: %w", step, err)
	}
	return nil
}

func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}

// lifecycleWatcher reports when the main frame's current document reaches
// network idle.
type lifecycleWatcher struct {
	mu      sync.Mutex
	frameID cdp.FrameID
	loader  cdp.LoaderID
	idle    chan struct{}
	fired   bool
}

func newLifecycleWatcher(frameID cdp.FrameID) *lifecycleWatcher {
	return &lifecycleWatcher{frameID: frameID, idle: make(chan struct{})}
}

// reset forgets the current document and returns a channel closed once the
// next document goes idle.
func (w *lifecycleWatcher) reset() <-chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.loader = ""
	w.fired = false
	w.idle = make(chan struct{})
	return w.idle
}

func (w *lifecycleWatcher) handle(ev any) {
	e, ok := ev.(*page.EventLifecycleEvent)
	if !ok {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.frameID != "" && e.FrameID != w.frameID {
		return
	}
	switch e.Name {
	case "init":
		w.loader = e.LoaderID
	case "networkIdle":
		if w.fired || w.loader == "" || e.LoaderID != w.loader {
			return
		}
		w.fired = true
		close(w.idle)
	}
}
