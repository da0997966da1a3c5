// Package catalog defines access to the brochure catalog table: the rows that
// decide which categories are active for a slug and that record when artifacts
// were last generated.
package catalog

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/JakeFAU/brochure-capture/internal/artifact"
)

// Entry is one catalog row as seen by the pipeline.
type Entry struct {
	Slug     string
	Category string
}

// Update carries the metadata written after a successful publish.
// An empty ThumbnailURL leaves the stored value untouched.
type Update struct {
	Slug         string
	Category     string
	GeneratedAt  time.Time
	ThumbnailURL string
}

// Store reads and updates catalog rows.
type Store interface {
	// ListBySlug returns every row sharing slug.
	ListBySlug(ctx context.Context, slug string) ([]Entry, error)
	// UpdateGenerated stamps the rows for (slug, category) and returns the affected row count.
	UpdateGenerated(ctx context.Context, update Update) (int64, error)
	// Close releases any held resources.
	Close() error
}

// ActiveCategories returns the sorted, normalized categories for slug.
// A slug without rows resolves to the default category.
func ActiveCategories(ctx context.Context, store Store, slug string) ([]string, error) {
	entries, err := store.ListBySlug(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("list catalog rows for %s: %w", slug, err)
	}
	raw := make([]string, 0, len(entries))
	for _, e := range entries {
		raw = append(raw, e.Category)
	}
	set := artifact.ActiveSet(raw)
	out := make([]string, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	sort.Strings(out)
	return out, nil
}

// NoOpStore is a catalog without rows. Every slug resolves to the default category.
type NoOpStore struct{}

// ListBySlug returns no rows.
func (NoOpStore) ListBySlug(_ context.Context, _ string) ([]Entry, error) { return nil, nil }

// UpdateGenerated does nothing.
func (NoOpStore) UpdateGenerated(_ context.Context, _ Update) (int64, error) { return 0, nil }

// Close does nothing.
func (NoOpStore) Close() error { return nil }
