// Package storage defines the interfaces for a blob storage provider.
// This abstraction lets the publisher stay independent of a specific storage
// implementation (Google Cloud Storage, the local filesystem or memory).
package storage

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
)

var (
	// ErrObjectTooLarge is returned when an upload exceeds the bucket size ceiling.
	ErrObjectTooLarge = errors.New("object exceeds size limit")
	// ErrContentTypeNotAllowed is returned when an upload's MIME type is not allowed.
	ErrContentTypeNotAllowed = errors.New("content type not allowed")
)

// BlobStore defines the operations the publisher needs from a bucket.
type BlobStore interface {
	// EnsureBucket creates or reconfigures the bucket. It must be idempotent.
	EnsureBucket(ctx context.Context) error
	// Upload writes data under key, replacing any existing object, and returns its public URL.
	Upload(ctx context.Context, key, contentType string, data []byte) (string, error)
	// List returns the base names of the objects stored directly under folder.
	List(ctx context.Context, folder string) ([]string, error)
	// Delete removes the object stored under key.
	Delete(ctx context.Context, key string) error
	// PublicURL returns the URL an object under key is served from.
	PublicURL(key string) string
	// Name identifies the store in logs.
	Name() string
}

// Policy is the bucket configuration enforced before each upload.
type Policy struct {
	MaxObjectBytes      int64
	AllowedContentTypes []string
}

// Check validates an upload against the policy. Zero values disable a rule.
func (p Policy) Check(contentType string, size int) error {
	if p.MaxObjectBytes > 0 && int64(size) > p.MaxObjectBytes {
		return fmt.Errorf("%w: %d bytes > %d", ErrObjectTooLarge, size, p.MaxObjectBytes)
	}
	if len(p.AllowedContentTypes) > 0 && !slices.Contains(p.AllowedContentTypes, contentType) {
		return fmt.Errorf("%w: %q", ErrContentTypeNotAllowed, contentType)
	}
	return nil
}

// FolderPrefix returns the listing prefix for folder ("" for the bucket root).
func FolderPrefix(folder string) string {
	folder = strings.Trim(folder, "/")
	if folder == "" {
		return ""
	}
	return folder + "/"
}

// BaseName strips prefix from key and reports whether the remainder is a direct child.
func BaseName(key, prefix string) (string, bool) {
	if !strings.HasPrefix(key, prefix) {
		return "", false
	}
	rest := strings.TrimPrefix(key, prefix)
	if rest == "" || strings.Contains(rest, "/") {
		return "", false
	}
	return rest, true
}
