// Package artifact defines the brochure artifact variants and the filename grammar
// shared by the renderer, the local output tree and the storage bucket.
//
// A file name has the form
//
//	<category>_<fileslug>[_pricing|_thumb].<pdf|png>
//
// where category is the lower-cased catalog category and fileslug is the cleaned
// slug with every "/" replaced by "-".
package artifact

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"
)

// DefaultCategory is used when a catalog row carries no category.
const DefaultCategory = "general"

// Variant identifies one of the rendered outputs of a brochure.
type Variant int

// Known variants, in capture order.
const (
	Client Variant = iota
	AgentPricing
	Thumbnail
)

// Variants lists every variant in capture order.
var Variants = []Variant{Client, AgentPricing, Thumbnail}

// ErrInvalidName is returned when a file name does not follow the grammar.
var ErrInvalidName = errors.New("invalid artifact file name")

func (v Variant) String() string {
	switch v {
	case Client:
		return "client"
	case AgentPricing:
		return "agent-pricing"
	case Thumbnail:
		return "thumbnail"
	default:
		return fmt.Sprintf("variant(%d)", int(v))
	}
}

// Folder is the bucket folder that holds this variant.
func (v Variant) Folder() string {
	switch v {
	case AgentPricing:
		return "brochure-pricing"
	case Thumbnail:
		return "thumbnails"
	default:
		return "brochure"
	}
}

// Suffix is appended to the file slug before the extension.
func (v Variant) Suffix() string {
	switch v {
	case AgentPricing:
		return "_pricing"
	case Thumbnail:
		return "_thumb"
	default:
		return ""
	}
}

// Ext returns the file extension including the dot.
func (v Variant) Ext() string {
	if v == Thumbnail {
		return ".png"
	}
	return ".pdf"
}

// ContentType returns the MIME type of the rendered artifact.
func (v Variant) ContentType() string {
	if v == Thumbnail {
		return "image/png"
	}
	return "application/pdf"
}

// IsDocument reports whether the variant is a paginated PDF.
func (v Variant) IsDocument() bool {
	return v != Thumbnail
}

// ParseVariant maps a variant name back to its value.
func ParseVariant(name string) (Variant, error) {
	for _, v := range Variants {
		if v.String() == strings.ToLower(strings.TrimSpace(name)) {
			return v, nil
		}
	}
	return 0, fmt.Errorf("unknown variant %q", name)
}

// CleanSlug normalizes a manifest or CLI entry into a bare slug.
// "/brochures/tokyo-fuji/" and "brochures/tokyo-fuji" both become "tokyo-fuji".
func CleanSlug(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimLeft(s, "/")
	s = strings.TrimPrefix(s, "brochures/")
	return strings.Trim(s, "/")
}

// FileSlug converts a slug into the form used inside file names.
func FileSlug(slug string) string {
	return strings.ReplaceAll(CleanSlug(slug), "/", "-")
}

// NormalizeCategory lower-cases a category and substitutes DefaultCategory for blanks.
func NormalizeCategory(category string) string {
	c := strings.ToLower(strings.TrimSpace(category))
	if c == "" {
		return DefaultCategory
	}
	return c
}

// FileName builds the canonical file name for a category, slug and variant.
func FileName(category, slug string, v Variant) string {
	return NormalizeCategory(category) + "_" + FileSlug(slug) + v.Suffix() + v.Ext()
}

// SlugSuffix is the tail shared by every file of a slug and variant, regardless of category.
func SlugSuffix(slug string, v Variant) string {
	return "_" + FileSlug(slug) + v.Suffix() + v.Ext()
}

// MatchesSlug reports whether name belongs to slug and variant for any category.
func MatchesSlug(name, slug string, v Variant) bool {
	suffix := SlugSuffix(slug, v)
	return len(name) > len(suffix) && strings.HasSuffix(name, suffix)
}

// CategoryPrefix returns the substring before the first underscore.
// A slug that itself contains an underscore can make this misidentify the
// category; callers rely on the historical behavior, so it is kept as is.
func CategoryPrefix(name string) (string, bool) {
	base := path.Base(filepath.ToSlash(name))
	idx := strings.Index(base, "_")
	if idx <= 0 {
		return "", false
	}
	return base[:idx], true
}

// Name is the parsed form of an artifact file name.
type Name struct {
	Category string
	Slug     string
	Variant  Variant
}

// String renders the name back into its file form.
func (n Name) String() string {
	return FileName(n.Category, n.Slug, n.Variant)
}

// ParseFileName splits a file name into category, file slug and variant.
func ParseFileName(name string) (Name, error) {
	base := path.Base(filepath.ToSlash(name))
	category, ok := CategoryPrefix(base)
	if !ok {
		return Name{}, fmt.Errorf("%w: %q has no category prefix", ErrInvalidName, base)
	}
	rest := base[len(category)+1:]

	var variant Variant
	switch {
	case strings.HasSuffix(rest, Thumbnail.Suffix()+Thumbnail.Ext()):
		variant = Thumbnail
	case strings.HasSuffix(rest, AgentPricing.Suffix()+AgentPricing.Ext()):
		variant = AgentPricing
	case strings.HasSuffix(rest, Client.Ext()):
		variant = Client
	default:
		return Name{}, fmt.Errorf("%w: %q has an unknown extension", ErrInvalidName, base)
	}
	slug := strings.TrimSuffix(rest, variant.Suffix()+variant.Ext())
	if slug == "" {
		return Name{}, fmt.Errorf("%w: %q has no slug", ErrInvalidName, base)
	}
	return Name{Category: category, Slug: slug, Variant: variant}, nil
}

// FallbackPath returns the "-new" sibling used when the primary path is locked.
func FallbackPath(p string) string {
	ext := filepath.Ext(p)
	return strings.TrimSuffix(p, ext) + "-new" + ext
}

// ObjectKey joins a bucket folder and a file name. An empty folder yields a flat key.
func ObjectKey(folder, name string) string {
	folder = strings.Trim(folder, "/")
	if folder == "" {
		return name
	}
	return folder + "/" + name
}

// TargetURL derives the page URL for a slug and variant.
func TargetURL(baseURL, brochurePath, slug string, v Variant, pricingQuery string) string {
	u := strings.TrimRight(baseURL, "/") + "/" + strings.Trim(brochurePath, "/") + "/" + CleanSlug(slug)
	if v == AgentPricing && pricingQuery != "" {
		u += "?" + strings.TrimPrefix(pricingQuery, "?")
	}
	return u
}

// ActiveSet turns raw catalog categories into the normalized set used during reconciliation.
// An empty input yields the default category.
func ActiveSet(categories []string) map[string]struct{} {
	set := make(map[string]struct{}, len(categories))
	for _, c := range categories {
		set[NormalizeCategory(c)] = struct{}{}
	}
	if len(set) == 0 {
		set[DefaultCategory] = struct{}{}
	}
	return set
}

// IsHTTPURL reports whether raw is an absolute http(s) URL.
func IsHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
