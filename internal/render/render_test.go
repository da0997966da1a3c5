package render

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionsDefaults(t *testing.T) {
	t.Parallel()

	opts := Options{SettleDelay: -time.Second}.withDefaults()
	assert.Equal(t, 90*time.Second, opts.NavigationTimeout)
	assert.Equal(t, time.Duration(0), opts.SettleDelay)
	assert.Equal(t, 1200, opts.PageWidth)
	assert.Equal(t, 900, opts.ViewportHeight)

	w, h := opts.viewport(Document)
	assert.Equal(t, int64(1200), w)
	assert.Equal(t, int64(900), h)
	w, h = opts.viewport(Clip)
	assert.Equal(t, int64(1200), w)
	assert.Equal(t, int64(1200), h)
}

func TestKindString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "document", Document.String())
	assert.Equal(t, "clip", Clip.String())
	assert.Equal(t, "unknown", Kind(9).String())
}

func TestPaperSize(t *testing.T) {
	t.Parallel()

	w, h := paperSize(1200, 4800.2)
	assert.InDelta(t, 12.5, w, 1e-9)
	assert.InDelta(t, 4801.0/96.0, h, 1e-9)

	_, h = paperSize(1200, 0)
	assert.InDelta(t, 1.0/96.0, h, 1e-9)
}

func TestBrandingScriptEscapesInput(t *testing.T) {
	t.Parallel()

	script := brandingScript(Branding{Text: `Plan "your" trip </script>`, URL: "https://example.com/contact?x='1'"})
	assert.Contains(t, script, `"Plan \"your\" trip \u003c/script\u003e"`)
	assert.Contains(t, script, `"https://example.com/contact?x='1'"`)
	assert.Contains(t, script, "document.querySelector('nav')")

	script = brandingScript(Branding{Text: "Book"})
	assert.Contains(t, script, `link.href = "" || window.location.origin;`)
}

func TestStyleSheet(t *testing.T) {
	t.Parallel()

	css := styleSheet(Style{
		HideSelectors:  []string{".inquiry-button", "  ", "a[href*='wa.me']"},
		HeroSelector:   "section.hero",
		HeroHeight:     "70vh",
		HeroBrightness: 0.85,
	})
	assert.Contains(t, css, ".inquiry-button,\na[href*='wa.me'] { display: none !important; }")
	assert.Contains(t, css, "nav, footer { display: revert !important;")
	assert.Contains(t, css, "section.hero { height: 70vh !important; min-height: 70vh !important; }")
	assert.Contains(t, css, "section.hero img, section.hero picture { filter: brightness(0.85) !important; }")

	bare := styleSheet(Style{})
	assert.NotContains(t, bare, "display: none")
	assert.NotContains(t, bare, "brightness")
	assert.True(t, strings.HasPrefix(bare, "nav, footer"))
}

func TestStyleScriptEmbedsSheetAsString(t *testing.T) {
	t.Parallel()

	script := styleScript(Style{HideSelectors: []string{`[data-x="y"]`}})
	assert.Contains(t, script, `el.textContent = "[data-x=\"y\"] { display: none !important; }\n`)
	assert.Contains(t, script, "data-brochure-export")
}

func TestLifecycleWatcherWaitsForCurrentLoader(t *testing.T) {
	t.Parallel()

	const frame = cdp.FrameID("MAIN")
	w := newLifecycleWatcher(frame)
	idle := w.reset()

	// Idle from an older document is ignored.
	w.handle(&page.EventLifecycleEvent{FrameID: frame, LoaderID: "old", Name: "networkIdle"})
	// Child frames are ignored.
	w.handle(&page.EventLifecycleEvent{FrameID: "CHILD", LoaderID: "child", Name: "init"})
	w.handle(&page.EventLifecycleEvent{FrameID: "CHILD", LoaderID: "child", Name: "networkIdle"})
	assertOpen(t, idle)

	w.handle(&page.EventLifecycleEvent{FrameID: frame, LoaderID: "new", Name: "init"})
	w.handle(&page.EventLifecycleEvent{FrameID: frame, LoaderID: "new", Name: "load"})
	assertOpen(t, idle)

	w.handle(&page.EventLifecycleEvent{FrameID: frame, LoaderID: "new", Name: "networkIdle"})
	assertClosed(t, idle)

	// A repeated idle event does not panic on the closed channel.
	w.handle(&page.EventLifecycleEvent{FrameID: frame, LoaderID: "new", Name: "networkIdle"})
	w.handle("unrelated event")

	next := w.reset()
	assertOpen(t, next)
}

func TestForwardCancel(t *testing.T) {
	t.Parallel()

	parent, cancelParent := context.WithCancel(context.Background())
	child, cancelChild := context.WithCancel(context.Background())
	defer cancelChild()

	stop := forwardCancel(parent, cancelChild)
	defer stop()
	cancelParent()

	select {
	case <-child.Done():
	case <-time.After(time.Second):
		t.Fatal("child context was not cancelled")
	}

	assert.NotPanics(t, func() { forwardCancel(nil, func() {})() })
}

func TestClosedRendererRejectsRequests(t *testing.T) {
	t.Parallel()

	r := &Chromedp{closed: true}
	_, err := r.Render(context.Background(), Request{URL: "http://localhost"})
	require.ErrorIs(t, err, ErrRendererClosed)

	var nilRenderer *Chromedp
	assert.NoError(t, nilRenderer.Close())
}

func assertOpen(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
		t.Fatal("channel closed too early")
	default:
	}
}

func assertClosed(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	default:
		t.Fatal("channel still open")
	}
}
