// Package config loads and validates brochure capture configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/JakeFAU/brochure-capture/internal/artifact"
)

// DefaultEnvFile is the local env file read before the environment is consulted.
const DefaultEnvFile = ".env.local"

// ErrNoCredentials is returned when object storage needs credentials and none are set.
var ErrNoCredentials = errors.New("storage credentials are not configured")

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Site      SiteConfig      `mapstructure:"site"`
	Manifest  ManifestConfig  `mapstructure:"manifest"`
	Output    OutputConfig    `mapstructure:"output"`
	Renderer  RendererConfig  `mapstructure:"renderer"`
	Watermark WatermarkConfig `mapstructure:"watermark"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Catalog   CatalogConfig   `mapstructure:"catalog"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// SiteConfig points at the web application that serves brochure pages.
type SiteConfig struct {
	BaseURL      string `mapstructure:"base_url"`
	BrochurePath string `mapstructure:"brochure_path"`
	PricingQuery string `mapstructure:"pricing_query"`
}

// ManifestConfig locates the itinerary manifest.
type ManifestConfig struct {
	Path string `mapstructure:"path"`
}

// OutputConfig describes the local artifact tree.
type OutputConfig struct {
	Root          string `mapstructure:"root"`
	PricingDir    string `mapstructure:"pricing_dir"`
	ThumbnailsDir string `mapstructure:"thumbnails_dir"`
}

// RendererConfig configures the headless browser.
type RendererConfig struct {
	ExecPath          string        `mapstructure:"exec_path"`
	NoSandbox         bool          `mapstructure:"no_sandbox"`
	UserAgent         string        `mapstructure:"user_agent"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout"`
	SettleDelay       time.Duration `mapstructure:"settle_delay"`
	NavigationQPS     float64       `mapstructure:"navigation_qps"`
	PageWidth         int           `mapstructure:"page_width"`
	ViewportHeight    int           `mapstructure:"viewport_height"`
	ThumbnailWidth    int           `mapstructure:"thumbnail_width"`
	ThumbnailHeight   int           `mapstructure:"thumbnail_height"`
	CTAText           string        `mapstructure:"cta_text"`
	CTAURL            string        `mapstructure:"cta_url"`
	HideSelectors     []string      `mapstructure:"hide_selectors"`
	HeroSelector      string        `mapstructure:"hero_selector"`
	HeroHeight        string        `mapstructure:"hero_height"`
	HeroBrightness    float64       `mapstructure:"hero_brightness"`
}

// WatermarkConfig configures the logo stamped onto PDFs.
type WatermarkConfig struct {
	LogoPath string  `mapstructure:"logo_path"`
	Width    int     `mapstructure:"width"`
	Margin   int     `mapstructure:"margin"`
	Opacity  float64 `mapstructure:"opacity"`
}

// StorageConfig selects and configures the object store.
type StorageConfig struct {
	Provider            string   `mapstructure:"provider"`
	Bucket              string   `mapstructure:"bucket"`
	PricingBucket       string   `mapstructure:"pricing_bucket"`
	ProjectID           string   `mapstructure:"project_id"`
	Endpoint            string   `mapstructure:"endpoint"`
	CredentialsFile     string   `mapstructure:"credentials_file"`
	PublicBaseURL       string   `mapstructure:"public_base_url"`
	Public              bool     `mapstructure:"public"`
	MaxObjectBytes      int64    `mapstructure:"max_object_bytes"`
	AllowedContentTypes []string `mapstructure:"allowed_content_types"`
	LocalDir            string   `mapstructure:"local_dir"`
}

// CatalogConfig selects the catalog database.
type CatalogConfig struct {
	Provider string `mapstructure:"provider"`
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// NotifyConfig configures the post-publish notification channel.
type NotifyConfig struct {
	Provider  string `mapstructure:"provider"`
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// MetricsConfig enables the Prometheus endpoint.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from the env file, an optional config file and the environment.
// A missing env file is ignored; a missing config file is an error.
func Load(path, envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	}

	v := viper.New()
	v.SetEnvPrefix("BROCHURE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	if err := bindEnv(v); err != nil {
		return Config{}, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("site.base_url", "http://localhost:3000")
	v.SetDefault("site.brochure_path", "/brochures")
	v.SetDefault("site.pricing_query", "print_pricing=true")
	v.SetDefault("manifest.path", "itineraries.json")
	v.SetDefault("output.root", "dist/brochures")
	v.SetDefault("output.pricing_dir", "pricing")
	v.SetDefault("output.thumbnails_dir", "thumbnails")
	v.SetDefault("renderer.exec_path", "")
	v.SetDefault("renderer.no_sandbox", false)
	v.SetDefault("renderer.user_agent", "")
	v.SetDefault("renderer.navigation_timeout", 90*time.Second)
	v.SetDefault("renderer.settle_delay", 2500*time.Millisecond)
	v.SetDefault("renderer.navigation_qps", 0)
	v.SetDefault("renderer.page_width", 1200)
	v.SetDefault("renderer.viewport_height", 900)
	v.SetDefault("renderer.thumbnail_width", 1200)
	v.SetDefault("renderer.thumbnail_height", 1200)
	v.SetDefault("renderer.cta_text", "Plan this journey with us")
	v.SetDefault("renderer.cta_url", "")
	v.SetDefault("renderer.hide_selectors", []string{
		".inquiry-button",
		"[data-inquiry]",
		".whatsapp-widget",
		"a[href*='wa.me']",
		"[data-toggle]",
		".pricing-toggle",
		"a[href*='policy']",
		"a[href*='portal']",
	})
	v.SetDefault("renderer.hero_selector", "section.hero")
	v.SetDefault("renderer.hero_height", "70vh")
	v.SetDefault("renderer.hero_brightness", 0.85)
	v.SetDefault("watermark.logo_path", "assets/logo.png")
	v.SetDefault("watermark.width", 120)
	v.SetDefault("watermark.margin", 24)
	v.SetDefault("watermark.opacity", 0.6)
	v.SetDefault("storage.provider", "gcs")
	v.SetDefault("storage.bucket", "brochures")
	v.SetDefault("storage.pricing_bucket", "brochure-pricing")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.public_base_url", "")
	v.SetDefault("storage.public", true)
	v.SetDefault("storage.max_object_bytes", 50*1024*1024)
	v.SetDefault("storage.allowed_content_types", []string{"application/pdf", "image/png"})
	v.SetDefault("storage.local_dir", "dist/bucket")
	v.SetDefault("catalog.provider", "noop")
	v.SetDefault("catalog.table", "brochures")
	v.SetDefault("catalog.max_conns", 4)
	v.SetDefault("notify.provider", "noop")
	v.SetDefault("notify.project_id", "")
	v.SetDefault("notify.topic", "")
	v.SetDefault("metrics.addr", "")
	v.SetDefault("logging.development", true)
}

func bindEnv(v *viper.Viper) error {
	bindings := map[string][]string{
		"storage.credentials_file": {"BROCHURE_STORAGE_CREDENTIALS_FILE", "GOOGLE_APPLICATION_CREDENTIALS"},
		"storage.project_id":       {"BROCHURE_STORAGE_PROJECT_ID", "GOOGLE_CLOUD_PROJECT"},
		"catalog.dsn":              {"BROCHURE_CATALOG_DSN", "DATABASE_URL"},
	}
	for key, envs := range bindings {
		args := append([]string{key}, envs...)
		if err := v.BindEnv(args...); err != nil {
			return fmt.Errorf("bind env %s: %w", key, err)
		}
	}
	return nil
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Site.BaseURL == "" {
		return fmt.Errorf("site.base_url is required")
	}
	if !artifact.IsHTTPURL(c.Site.BaseURL) {
		return fmt.Errorf("site.base_url must be an absolute http(s) URL, got %q", c.Site.BaseURL)
	}
	if c.Output.Root == "" {
		return fmt.Errorf("output.root is required")
	}
	if c.Renderer.NavigationTimeout <= 0 {
		return fmt.Errorf("renderer.navigation_timeout must be > 0")
	}
	if c.Renderer.PageWidth <= 0 {
		return fmt.Errorf("renderer.page_width must be > 0")
	}
	if c.Renderer.ThumbnailWidth <= 0 || c.Renderer.ThumbnailHeight <= 0 {
		return fmt.Errorf("renderer thumbnail dimensions must be > 0")
	}
	if c.Renderer.NavigationQPS < 0 {
		return fmt.Errorf("renderer.navigation_qps must be >= 0")
	}
	if c.Watermark.Opacity < 0 || c.Watermark.Opacity > 1 {
		return fmt.Errorf("watermark.opacity must be between 0 and 1")
	}
	if err := c.Storage.validate(); err != nil {
		return err
	}
	switch c.Catalog.Provider {
	case "postgres", "sqlite":
		if c.Catalog.DSN == "" {
			return fmt.Errorf("catalog.dsn must be set when catalog.provider is %q", c.Catalog.Provider)
		}
	case "noop":
	default:
		return fmt.Errorf("unknown catalog provider: %s", c.Catalog.Provider)
	}
	switch c.Notify.Provider {
	case "pubsub":
		if c.Notify.ProjectID == "" || c.Notify.Topic == "" {
			return fmt.Errorf("notify.project_id and notify.topic must be set when notify.provider is 'pubsub'")
		}
	case "noop":
	default:
		return fmt.Errorf("unknown notify provider: %s", c.Notify.Provider)
	}
	return nil
}

func (s StorageConfig) validate() error {
	switch s.Provider {
	case "gcs":
		if s.Bucket == "" {
			return fmt.Errorf("storage.bucket is required")
		}
		if s.Endpoint == "" && s.CredentialsFile == "" {
			return fmt.Errorf("%w: set storage.credentials_file or GOOGLE_APPLICATION_CREDENTIALS", ErrNoCredentials)
		}
	case "local":
		if s.LocalDir == "" {
			return fmt.Errorf("storage.local_dir is required when storage.provider is 'local'")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown storage provider: %s", s.Provider)
	}
	if s.MaxObjectBytes <= 0 {
		return fmt.Errorf("storage.max_object_bytes must be > 0")
	}
	return nil
}

// PricingPath returns the local directory for agent-pricing PDFs.
func (o OutputConfig) PricingPath() string {
	return joinUnder(o.Root, o.PricingDir)
}

// ThumbnailsPath returns the local directory for thumbnails.
func (o OutputConfig) ThumbnailsPath() string {
	return joinUnder(o.Root, o.ThumbnailsDir)
}

func joinUnder(root, dir string) string {
	if dir == "" {
		return root
	}
	return strings.TrimRight(root, "/") + "/" + strings.Trim(dir, "/")
}
