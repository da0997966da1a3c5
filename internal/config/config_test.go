package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadWithFileOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
site:
  base_url: https://travel.example.com
  pricing_query: agent=1
manifest:
  path: data/itineraries.json
output:
  root: out/brochures
renderer:
  navigation_timeout: 30s
  settle_delay: 3s
  navigation_qps: 0.5
  cta_text: Call us
  cta_url: https://travel.example.com/contact
  hide_selectors: [".chat", ".toggle"]
watermark:
  logo_path: brand/logo.png
  width: 96
  opacity: 0.4
storage:
  provider: gcs
  bucket: brochure-assets
  credentials_file: /secrets/sa.json
  max_object_bytes: 1048576
catalog:
  provider: postgres
  dsn: postgres://localhost/brochures
  table: itineraries
logging:
  development: false
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path, "")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Site.BaseURL != "https://travel.example.com" || cfg.Site.PricingQuery != "agent=1" {
		t.Fatalf("expected site overrides, got %+v", cfg.Site)
	}
	if cfg.Site.BrochurePath != "/brochures" {
		t.Fatalf("expected default brochure path, got %q", cfg.Site.BrochurePath)
	}
	if cfg.Manifest.Path != "data/itineraries.json" {
		t.Fatalf("expected manifest override, got %q", cfg.Manifest.Path)
	}
	if cfg.Renderer.NavigationTimeout != 30*time.Second || cfg.Renderer.SettleDelay != 3*time.Second {
		t.Fatalf("expected renderer durations to parse, got %+v", cfg.Renderer)
	}
	if cfg.Renderer.NavigationQPS != 0.5 {
		t.Fatalf("expected navigation qps 0.5, got %v", cfg.Renderer.NavigationQPS)
	}
	if len(cfg.Renderer.HideSelectors) != 2 || cfg.Renderer.HideSelectors[0] != ".chat" {
		t.Fatalf("expected hide selectors override, got %v", cfg.Renderer.HideSelectors)
	}
	if cfg.Watermark.Width != 96 || cfg.Watermark.Margin != 24 || cfg.Watermark.Opacity != 0.4 {
		t.Fatalf("expected watermark overrides with default margin, got %+v", cfg.Watermark)
	}
	if cfg.Storage.Bucket != "brochure-assets" || cfg.Storage.MaxObjectBytes != 1048576 {
		t.Fatalf("expected storage overrides, got %+v", cfg.Storage)
	}
	if cfg.Catalog.Table != "itineraries" || cfg.Catalog.MaxConns != 4 {
		t.Fatalf("expected catalog table override with default pool size, got %+v", cfg.Catalog)
	}
	if cfg.Logging.Development {
		t.Fatal("expected logging.development override to false")
	}
	if got := cfg.Output.PricingPath(); got != "out/brochures/pricing" {
		t.Fatalf("expected pricing path out/brochures/pricing, got %q", got)
	}
	if got := cfg.Output.ThumbnailsPath(); got != "out/brochures/thumbnails" {
		t.Fatalf("expected thumbnails path, got %q", got)
	}
}

func TestLoadDefaultsWithMemoryStorage(t *testing.T) {
	t.Setenv("BROCHURE_STORAGE_PROVIDER", "memory")

	cfg, err := Load("", "")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Renderer.NavigationTimeout != 90*time.Second {
		t.Fatalf("expected 90s navigation timeout, got %v", cfg.Renderer.NavigationTimeout)
	}
	if cfg.Renderer.PageWidth != 1200 || cfg.Renderer.ThumbnailHeight != 1200 {
		t.Fatalf("expected 1200px defaults, got %+v", cfg.Renderer)
	}
	if cfg.Storage.MaxObjectBytes != 50*1024*1024 {
		t.Fatalf("expected 50MB object ceiling, got %d", cfg.Storage.MaxObjectBytes)
	}
	if len(cfg.Storage.AllowedContentTypes) != 2 {
		t.Fatalf("expected pdf and png content types, got %v", cfg.Storage.AllowedContentTypes)
	}
	if cfg.Output.Root != "dist/brochures" || cfg.Manifest.Path != "itineraries.json" {
		t.Fatalf("unexpected output defaults: %+v %+v", cfg.Output, cfg.Manifest)
	}
}

func TestLoadMissingCredentialsIsFatal(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	t.Setenv("BROCHURE_STORAGE_CREDENTIALS_FILE", "")

	_, err := Load("", "")
	if !errors.Is(err, ErrNoCredentials) {
		t.Fatalf("expected ErrNoCredentials, got %v", err)
	}
}

func TestLoadReadsEnvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env.local")
	body := "GOOGLE_APPLICATION_CREDENTIALS=/secrets/from-env-file.json\nBROCHURE_STORAGE_BUCKET=env-bucket\n"
	if err := os.WriteFile(envFile, []byte(body), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	// t.Setenv registers cleanup so values loaded from the file do not leak.
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	t.Setenv("BROCHURE_STORAGE_BUCKET", "")
	if err := os.Unsetenv("GOOGLE_APPLICATION_CREDENTIALS"); err != nil {
		t.Fatalf("unset env: %v", err)
	}
	if err := os.Unsetenv("BROCHURE_STORAGE_BUCKET"); err != nil {
		t.Fatalf("unset env: %v", err)
	}

	cfg, err := Load("", envFile)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Storage.CredentialsFile != "/secrets/from-env-file.json" {
		t.Fatalf("expected credentials from env file, got %q", cfg.Storage.CredentialsFile)
	}
	if cfg.Storage.Bucket != "env-bucket" {
		t.Fatalf("expected bucket from env file, got %q", cfg.Storage.Bucket)
	}
}

func TestLoadMissingEnvFileIsIgnored(t *testing.T) {
	t.Setenv("BROCHURE_STORAGE_PROVIDER", "memory")

	if _, err := Load("", filepath.Join(t.TempDir(), ".env.local")); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
}

func TestLoadMissingConfigFile(t *testing.T) {
	t.Setenv("BROCHURE_STORAGE_PROVIDER", "memory")

	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), ""); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestValidateFailures(t *testing.T) {
	t.Parallel()

	valid := func() Config {
		return Config{
			Site:     SiteConfig{BaseURL: "https://example.com"},
			Output:   OutputConfig{Root: "dist/brochures"},
			Renderer: RendererConfig{NavigationTimeout: time.Second, PageWidth: 1200, ThumbnailWidth: 1200, ThumbnailHeight: 1200},
			Storage:  StorageConfig{Provider: "memory", MaxObjectBytes: 1},
			Catalog:  CatalogConfig{Provider: "noop"},
			Notify:   NotifyConfig{Provider: "noop"},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing base url", func(c *Config) { c.Site.BaseURL = "" }, "site.base_url"},
		{"base url without scheme", func(c *Config) { c.Site.BaseURL = "travel.example.com" }, "absolute http(s) URL"},
		{"base url with ftp scheme", func(c *Config) { c.Site.BaseURL = "ftp://travel.example.com" }, "absolute http(s) URL"},
		{"zero timeout", func(c *Config) { c.Renderer.NavigationTimeout = 0 }, "navigation_timeout"},
		{"bad opacity", func(c *Config) { c.Watermark.Opacity = 1.5 }, "opacity"},
		{"unknown storage", func(c *Config) { c.Storage.Provider = "s3" }, "unknown storage provider"},
		{"gcs without bucket", func(c *Config) { c.Storage.Provider = "gcs" }, "storage.bucket"},
		{"gcs without credentials", func(c *Config) {
			c.Storage.Provider = "gcs"
			c.Storage.Bucket = "b"
		}, "credentials"},
		{"postgres without dsn", func(c *Config) { c.Catalog.Provider = "postgres" }, "catalog.dsn"},
		{"pubsub without topic", func(c *Config) { c.Notify.Provider = "pubsub" }, "notify.topic"},
		{"negative qps", func(c *Config) { c.Renderer.NavigationQPS = -1 }, "navigation_qps"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := valid()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}

	if err := valid().Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}

	withEndpoint := valid()
	withEndpoint.Storage = StorageConfig{Provider: "gcs", Bucket: "b", Endpoint: "http://localhost:4443/storage/v1/", MaxObjectBytes: 1}
	if err := withEndpoint.Validate(); err != nil {
		t.Fatalf("expected custom endpoint to waive credentials, got %v", err)
	}
}
