package pipeline

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/JakeFAU/brochure-capture/internal/artifact"
	"github.com/JakeFAU/brochure-capture/internal/metrics"
)

// staleNames picks the files of slug and variant whose category prefix is not active.
// The prefix is the text before the first underscore, so a slug containing an
// underscore can match files of another slug.
func staleNames(names []string, slug string, v artifact.Variant, active map[string]struct{}) []string {
	var stale []string
	for _, name := range names {
		if !artifact.MatchesSlug(name, slug, v) {
			continue
		}
		prefix, ok := artifact.CategoryPrefix(name)
		if !ok {
			continue
		}
		if _, live := active[prefix]; live {
			continue
		}
		stale = append(stale, name)
	}
	return stale
}

// reconcile deletes artifacts of slug that belong to inactive categories, locally
// and in the bucket. Failures are logged and skipped.
func (p *Pipeline) reconcile(ctx context.Context, slug string, active map[string]struct{}, logger *zap.Logger) int {
	deleted := 0
	for _, v := range p.opts.Variants {
		dest := p.layout[v]
		deleted += p.reconcileLocal(dest.LocalDir, slug, v, active, logger)
		deleted += p.reconcileBucket(ctx, dest, slug, v, active, logger)
	}
	return deleted
}

func (p *Pipeline) reconcileLocal(dir, slug string, v artifact.Variant, active map[string]struct{}, logger *zap.Logger) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logger.Warn("Failed to list local artifacts", zap.String("dir", dir), zap.Error(err))
		}
		return 0
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	deleted := 0
	for _, name := range staleNames(names, slug, v, active) {
		path := filepath.Join(dir, name)
		if err := os.Remove(path); err != nil {
			logger.Warn("Failed to delete stale local artifact", zap.String("path", path), zap.Error(err))
			continue
		}
		logger.Info("Deleted stale local artifact", zap.String("path", path))
		metrics.ObserveStaleDeleted(metrics.LocationLocal)
		deleted++
	}
	return deleted
}

func (p *Pipeline) reconcileBucket(
	ctx context.Context,
	dest Destination,
	slug string,
	v artifact.Variant,
	active map[string]struct{},
	logger *zap.Logger,
) int {
	names, err := dest.Store.List(ctx, dest.Folder)
	if err != nil {
		logger.Warn("Failed to list bucket artifacts",
			zap.String("store", dest.Store.Name()),
			zap.String("folder", dest.Folder),
			zap.Error(err),
		)
		return 0
	}
	deleted := 0
	for _, name := range staleNames(names, slug, v, active) {
		key := artifact.ObjectKey(dest.Folder, name)
		if err := dest.Store.Delete(ctx, key); err != nil {
			logger.Warn("Failed to delete stale object", zap.String("key", key), zap.Error(err))
			continue
		}
		logger.Info("Deleted stale object", zap.String("store", dest.Store.Name()), zap.String("key", key))
		metrics.ObserveStaleDeleted(metrics.LocationBucket)
		deleted++
	}
	return deleted
}
