// Package sqlite provides a file-backed catalog store for local runs, using the
// pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"time"

	// Registers the "sqlite" database/sql driver.
	_ "modernc.org/sqlite"

	"github.com/JakeFAU/brochure-capture/internal/artifact"
	"github.com/JakeFAU/brochure-capture/internal/catalog"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Store reads and updates brochure rows in a SQLite database.
type Store struct {
	db    *sql.DB
	table string
}

var _ catalog.Store = (*Store)(nil)

// Open opens (or creates) the database at path and ensures the table exists.
func Open(ctx context.Context, path, table string) (*Store, error) {
	if table == "" {
		table = "brochures"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open catalog db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	s := &Store{db: db, table: table}
	if err := s.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	ddl := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %[1]s (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	slug TEXT NOT NULL,
	category TEXT,
	pdf_last_generated_at TEXT,
	thumbnail_url TEXT
);
CREATE INDEX IF NOT EXISTS %[1]s_slug_idx ON %[1]s (slug);`, s.table)
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create catalog schema: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close catalog db: %w", err)
	}
	return nil
}

// Insert adds a catalog row. Used to seed local databases.
func (s *Store) Insert(ctx context.Context, e catalog.Entry) error {
	query := fmt.Sprintf(`INSERT INTO %s (slug, category) VALUES (?, ?)`, s.table)
	if _, err := s.db.ExecContext(ctx, query, e.Slug, e.Category); err != nil {
		return fmt.Errorf("insert catalog row: %w", err)
	}
	return nil
}

// ListBySlug returns every row sharing slug.
func (s *Store) ListBySlug(ctx context.Context, slug string) ([]catalog.Entry, error) {
	query := fmt.Sprintf(`SELECT slug, COALESCE(category, '') FROM %s WHERE slug = ? ORDER BY id`, s.table)
	rows, err := s.db.QueryContext(ctx, query, slug)
	if err != nil {
		return nil, fmt.Errorf("query catalog: %w", err)
	}
	defer rows.Close()

	var entries []catalog.Entry
	for rows.Next() {
		var e catalog.Entry
		if err := rows.Scan(&e.Slug, &e.Category); err != nil {
			return nil, fmt.Errorf("scan catalog row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate catalog rows: %w", err)
	}
	return entries, nil
}

// UpdateGenerated stamps the rows of (slug, category).
func (s *Store) UpdateGenerated(ctx context.Context, update catalog.Update) (int64, error) {
	if update.Slug == "" {
		return 0, fmt.Errorf("slug is required")
	}
	query := fmt.Sprintf(`
UPDATE %s
SET pdf_last_generated_at = ?,
	thumbnail_url = COALESCE(NULLIF(?, ''), thumbnail_url)
WHERE slug = ?
	AND lower(COALESCE(NULLIF(trim(category), ''), 'general')) = ?`, s.table)
	res, err := s.db.ExecContext(ctx, query,
		update.GeneratedAt.UTC().Format(time.RFC3339Nano),
		update.ThumbnailURL,
		update.Slug,
		artifact.NormalizeCategory(update.Category),
	)
	if err != nil {
		return 0, fmt.Errorf("update catalog: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// Generated returns pdf_last_generated_at and thumbnail_url for the first row of (slug, category).
func (s *Store) Generated(ctx context.Context, slug, category string) (time.Time, string, error) {
	query := fmt.Sprintf(`
SELECT COALESCE(pdf_last_generated_at, ''), COALESCE(thumbnail_url, '')
FROM %s
WHERE slug = ? AND lower(COALESCE(NULLIF(trim(category), ''), 'general')) = ?
ORDER BY id LIMIT 1`, s.table)
	var ts, thumb string
	if err := s.db.QueryRowContext(ctx, query, slug, artifact.NormalizeCategory(category)).Scan(&ts, &thumb); err != nil {
		return time.Time{}, "", fmt.Errorf("read generated metadata: %w", err)
	}
	if ts == "" {
		return time.Time{}, thumb, nil
	}
	at, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("parse pdf_last_generated_at: %w", err)
	}
	return at, thumb, nil
}
