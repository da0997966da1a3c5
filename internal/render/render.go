// Package render turns brochure pages into PDF documents and PNG thumbnails
// by driving a headless browser.
package render

import (
	"context"
	"errors"
	"time"
)

// ErrRendererClosed is returned by Render after Close.
var ErrRendererClosed = errors.New("renderer closed")

// Kind selects the output of a render.
type Kind int

const (
	// Document prints the full page height into a single-page PDF.
	Document Kind = iota
	// Clip captures a fixed-size PNG from the top of the page.
	Clip
)

func (k Kind) String() string {
	switch k {
	case Document:
		return "document"
	case Clip:
		return "clip"
	default:
		return "unknown"
	}
}

// Request describes one capture.
type Request struct {
	URL  string
	Kind Kind
	// Branding injects the call-to-action link into the page navigation.
	Branding bool
}

// Renderer produces document bytes for a URL.
type Renderer interface {
	Render(ctx context.Context, req Request) ([]byte, error)
	Close() error
}

// Branding is the call-to-action injected into the page's <nav>.
type Branding struct {
	Text string
	// URL defaults to the page origin when empty.
	URL string
}

// Style hides interactive chrome and tunes the hero section for print.
type Style struct {
	HideSelectors  []string
	HeroSelector   string
	HeroHeight     string
	HeroBrightness float64
}

// Options configures the chromedp renderer.
type Options struct {
	ExecPath          string
	NoSandbox         bool
	UserAgent         string
	NavigationTimeout time.Duration
	SettleDelay       time.Duration
	// NavigationQPS paces navigations; zero disables pacing.
	NavigationQPS   float64
	PageWidth       int
	ViewportHeight  int
	ThumbnailWidth  int
	ThumbnailHeight int
	Branding        Branding
	Style           Style
}

func (o Options) withDefaults() Options {
	if o.NavigationTimeout <= 0 {
		o.NavigationTimeout = 90 * time.Second
	}
	if o.SettleDelay < 0 {
		o.SettleDelay = 0
	}
	if o.PageWidth <= 0 {
		o.PageWidth = 1200
	}
	if o.ViewportHeight <= 0 {
		o.ViewportHeight = 900
	}
	if o.ThumbnailWidth <= 0 {
		o.ThumbnailWidth = 1200
	}
	if o.ThumbnailHeight <= 0 {
		o.ThumbnailHeight = 1200
	}
	return o
}

// viewport returns the window size used for a render kind.
func (o Options) viewport(kind Kind) (int64, int64) {
	if kind == Clip {
		return int64(o.ThumbnailWidth), int64(o.ThumbnailHeight)
	}
	return int64(o.PageWidth), int64(o.ViewportHeight)
}
