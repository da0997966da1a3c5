// Package manifest reads and writes the itinerary manifest, a JSON array of
// brochure paths such as "/brochures/tokyo-fuji".
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/JakeFAU/brochure-capture/internal/artifact"
)

// DefaultPath is the manifest location used when none is configured.
const DefaultPath = "itineraries.json"

// Load reads the manifest at path and returns cleaned, de-duplicated slugs in file order.
// A missing file yields an error wrapping fs.ErrNotExist.
func Load(path string) ([]string, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}
	var entries []string
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode manifest %s: %w", path, err)
	}
	return Normalize(entries), nil
}

// Normalize cleans every entry, drops blanks and keeps the first occurrence of duplicates.
func Normalize(entries []string) []string {
	seen := make(map[string]struct{}, len(entries))
	out := make([]string, 0, len(entries))
	for _, entry := range entries {
		slug := artifact.CleanSlug(entry)
		if slug == "" {
			continue
		}
		if _, ok := seen[slug]; ok {
			continue
		}
		seen[slug] = struct{}{}
		out = append(out, slug)
	}
	return out
}

// Write stores slugs as "/brochures/<slug>" entries.
func Write(path string, slugs []string) error {
	entries := make([]string, 0, len(slugs))
	for _, slug := range Normalize(slugs) {
		entries = append(entries, "/brochures/"+slug)
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create manifest directory: %w", err)
		}
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("write manifest %s: %w", path, err)
	}
	return nil
}
