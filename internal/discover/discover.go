// Package discover builds the itinerary manifest by crawling the brochure
// listing page of the web application.
package discover

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/brochure-capture/internal/artifact"
)

// Config controls the listing crawl.
type Config struct {
	BaseURL       string
	BrochurePath  string
	UserAgent     string
	RespectRobots bool
	Timeout       time.Duration
}

// Discoverer collects brochure slugs linked from the listing page.
type Discoverer struct {
	cfg       Config
	base      *url.URL
	prefix    string
	transport http.RoundTripper
	logger    *zap.Logger
}

// New validates cfg and builds a Discoverer.
func New(cfg Config, logger *zap.Logger) (*Discoverer, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Host == "" || (base.Scheme != "http" && base.Scheme != "https") {
		return nil, fmt.Errorf("invalid base url %q", cfg.BaseURL)
	}
	prefix := "/" + strings.Trim(cfg.BrochurePath, "/")
	if prefix == "/" {
		return nil, fmt.Errorf("brochure path is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Discoverer{
		cfg:       cfg,
		base:      base,
		prefix:    prefix,
		transport: newHTTPTransport(),
		logger:    logger.Named("discover"),
	}, nil
}

// ListingURL is the page the crawl starts from.
func (d *Discoverer) ListingURL() string {
	return d.base.String() + d.prefix
}

// Discover visits the listing page and returns the linked slugs in page order.
func (d *Discoverer) Discover(ctx context.Context) ([]string, error) {
	var (
		mu       sync.Mutex
		seen     = make(map[string]struct{})
		slugs    []string
		fetchErr error
	)

	collector := colly.NewCollector(
		colly.AllowedDomains(d.base.Hostname()),
		colly.MaxDepth(1),
	)
	collector.WithTransport(d.transport)
	collector.SetRequestTimeout(d.cfg.Timeout)
	collector.IgnoreRobotsTxt = !d.cfg.RespectRobots
	if d.cfg.UserAgent != "" {
		collector.UserAgent = d.cfg.UserAgent
	}

	collector.OnHTML("a[href]", func(e *colly.HTMLElement) {
		slug, ok := d.slugFromLink(e.Request.AbsoluteURL(e.Attr("href")))
		if !ok {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if _, dup := seen[slug]; dup {
			return
		}
		seen[slug] = struct{}{}
		slugs = append(slugs, slug)
	})
	collector.OnError(func(_ *colly.Response, err error) {
		mu.Lock()
		fetchErr = err
		mu.Unlock()
	})

	listing := d.ListingURL()
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(listing)
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("discover canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return nil, fmt.Errorf("visit %s: %w", listing, err)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if fetchErr != nil {
		return nil, fmt.Errorf("fetch %s: %w", listing, fetchErr)
	}
	d.logger.Info("Discovered brochures", zap.String("listing", listing), zap.Int("count", len(slugs)))
	return slugs, nil
}

// slugFromLink accepts same-host links below the brochure path and returns the slug.
func (d *Discoverer) slugFromLink(raw string) (string, bool) {
	if raw == "" {
		return "", false
	}
	u, err := url.Parse(raw)
	if err != nil || !strings.EqualFold(u.Hostname(), d.base.Hostname()) {
		return "", false
	}
	rest, ok := strings.CutPrefix(u.Path, d.prefix+"/")
	if !ok {
		return "", false
	}
	slug := strings.Trim(rest, "/")
	if slug == "" {
		return "", false
	}
	return artifact.CleanSlug(slug), true
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
