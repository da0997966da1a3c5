package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/brochure-capture/internal/app"
	"github.com/JakeFAU/brochure-capture/internal/config"
	"github.com/JakeFAU/brochure-capture/internal/manifest"
	"github.com/JakeFAU/brochure-capture/internal/render"
	"github.com/JakeFAU/brochure-capture/internal/storage/memory"
)

type fakeRenderer struct {
	mu       sync.Mutex
	requests []render.Request
	err      error
	closed   bool
}

func (f *fakeRenderer) Render(_ context.Context, req render.Request) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	if req.Kind == render.Clip {
		return []byte("\x89PNG fake"), nil
	}
	return []byte("%PDF-1.4 fake"), nil
}

func (f *fakeRenderer) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeRenderer) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

// stubFactories swaps the renderer and app factories for the test's lifetime
// and returns the fake renderer plus a pointer to the app the command built.
func stubFactories(t *testing.T) (*fakeRenderer, **app.App) {
	t.Helper()
	fake := &fakeRenderer{}
	var built *app.App

	origRenderer, origApp := newRenderer, newApp
	newRenderer = func(render.Options, *zap.Logger) (render.Renderer, error) {
		return fake, nil
	}
	newApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (App, error) {
		a, err := app.NewApp(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		built = a
		return a, nil
	}
	t.Cleanup(func() {
		newRenderer, newApp = origRenderer, origApp
	})
	return fake, &built
}

func writeConfig(t *testing.T, dir, baseURL string) string {
	t.Helper()
	path := filepath.Join(dir, "brochure.yaml")
	body := fmt.Sprintf(`site:
  base_url: %s
manifest:
  path: %s
output:
  root: %s
watermark:
  logo_path: %s
storage:
  provider: memory
  bucket: brochures
  pricing_bucket: brochure-pricing
logging:
  development: false
`,
		baseURL,
		filepath.Join(dir, "itineraries.json"),
		filepath.Join(dir, "dist", "brochures"),
		filepath.Join(dir, "missing-logo.png"),
	)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func writeManifest(t *testing.T, dir string, entries string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "itineraries.json"), []byte(entries), 0o600))
}

func execute(t *testing.T, args ...string) error {
	t.Helper()
	cmd := newRootCmd()
	cmd.SetArgs(append(args, "--env-file", ""))
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	return cmd.ExecuteContext(context.Background())
}

func storeKeys(t *testing.T, store any) []string {
	t.Helper()
	mem, ok := store.(*memory.BlobStore)
	require.True(t, ok, "expected in-memory store, got %T", store)
	return mem.Keys()
}

func TestCaptureCommand(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, "http://brochures.test")
	writeManifest(t, dir, `["/brochures/tokyo-fuji"]`)
	fake, built := stubFactories(t)

	require.NoError(t, execute(t, "capture", "--config", cfgPath))

	require.NotNil(t, *built)
	assert.ElementsMatch(t, []string{
		"brochure/general_tokyo-fuji.pdf",
		"brochure-pricing/general_tokyo-fuji_pricing.pdf",
		"thumbnails/general_tokyo-fuji_thumb.png",
	}, storeKeys(t, (*built).Store))
	assert.Empty(t, storeKeys(t, (*built).PricingStore))

	root := filepath.Join(dir, "dist", "brochures")
	assert.FileExists(t, filepath.Join(root, "general_tokyo-fuji.pdf"))
	assert.FileExists(t, filepath.Join(root, "pricing", "general_tokyo-fuji_pricing.pdf"))
	assert.FileExists(t, filepath.Join(root, "thumbnails", "general_tokyo-fuji_thumb.png"))

	assert.Equal(t, 3, fake.calls())
	assert.True(t, fake.closed)
	assert.Equal(t, "http://brochures.test/brochures/tokyo-fuji", fake.requests[0].URL)
}

func TestRootCommandCapturesSingleSlug(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, "http://brochures.test")
	fake, built := stubFactories(t)

	// No manifest on disk: --slug must not need one.
	require.NoError(t, execute(t, "--config", cfgPath, "--slug", "/brochures/japan/kyoto/"))

	assert.Contains(t, storeKeys(t, (*built).Store), "brochure/general_japan-kyoto.pdf")
	assert.Equal(t, "http://brochures.test/brochures/japan/kyoto", fake.requests[0].URL)
}

func TestCapturePricingSkipsExistingUnlessForced(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, "http://brochures.test")
	writeManifest(t, dir, `["tokyo-fuji"]`)

	existing := filepath.Join(dir, "dist", "brochures", "pricing", "general_tokyo-fuji_pricing.pdf")
	require.NoError(t, os.MkdirAll(filepath.Dir(existing), 0o755))
	require.NoError(t, os.WriteFile(existing, []byte("%PDF-1.4 old"), 0o600))

	fake, built := stubFactories(t)
	require.NoError(t, execute(t, "capture-pricing", "--config", cfgPath))
	assert.Equal(t, 0, fake.calls())
	assert.Equal(t, []string{"general_tokyo-fuji_pricing.pdf"}, storeKeys(t, (*built).PricingStore))
	assert.Empty(t, storeKeys(t, (*built).Store))

	obj, ok := (*built).PricingStore.(*memory.BlobStore).Get("general_tokyo-fuji_pricing.pdf")
	require.True(t, ok)
	assert.Equal(t, "%PDF-1.4 old", string(obj.Data))

	fake, _ = stubFactories(t)
	require.NoError(t, execute(t, "capture-pricing", "--config", cfgPath, "--force"))
	require.Equal(t, 1, fake.calls())
	assert.Equal(t, "http://brochures.test/brochures/tokyo-fuji?print_pricing=true", fake.requests[0].URL)
}

func TestCaptureFailuresDoNotFailTheCommand(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, "http://brochures.test")
	writeManifest(t, dir, `["tokyo-fuji", "kyoto"]`)
	fake, built := stubFactories(t)
	fake.err = errors.New("navigation timeout")

	require.NoError(t, execute(t, "capture", "--config", cfgPath))
	assert.Equal(t, 6, fake.calls())
	assert.Empty(t, storeKeys(t, (*built).Store))
}

func TestMissingManifestIsFatal(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, "http://brochures.test")
	fake, _ := stubFactories(t)

	err := execute(t, "capture", "--config", cfgPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load manifest")
	assert.Equal(t, 0, fake.calls())
}

func TestMissingCredentialsIsFatal(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	t.Setenv("BROCHURE_STORAGE_CREDENTIALS_FILE", "")
	t.Setenv("BROCHURE_STORAGE_PROVIDER", "gcs")

	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, "http://brochures.test")
	writeManifest(t, dir, `["tokyo-fuji"]`)
	_, built := stubFactories(t)

	err := execute(t, "capture", "--config", cfgPath)
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrNoCredentials)
	assert.Nil(t, *built)
}

func TestDiscoverCommandWritesManifest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/brochures" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = io.WriteString(w, `<html><body>
<a href="/brochures/tokyo-fuji">Tokyo</a>
<a href="/brochures/kyoto">Kyoto</a>
<a href="/about">About</a>
</body></html>`)
	}))
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, srv.URL)
	stubFactories(t)
	out := filepath.Join(dir, "generated.json")

	require.NoError(t, execute(t, "discover", "--config", cfgPath, "--out", out))

	slugs, err := manifest.Load(out)
	require.NoError(t, err)
	assert.Equal(t, []string{"tokyo-fuji", "kyoto"}, slugs)
}

func TestResolveSlugs(t *testing.T) {
	slugs, err := resolveSlugs(" brochures/bali ", "does-not-matter.json")
	require.NoError(t, err)
	assert.Equal(t, []string{"bali"}, slugs)

	_, err = resolveSlugs("/brochures/", "")
	require.Error(t, err)

	_, err = resolveSlugs("", filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load manifest")
}
