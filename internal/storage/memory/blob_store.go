// Package memory stores blob content in-memory for development and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	blob "github.com/JakeFAU/brochure-capture/internal/storage"
)

// Object is a stored blob and its content type.
type Object struct {
	Data        []byte
	ContentType string
}

// BlobStore stores artifacts in-memory and returns pseudo URLs.
type BlobStore struct {
	name   string
	policy blob.Policy

	mu      sync.RWMutex
	ensured int
	data    map[string]Object
}

// NewBlobStore creates a new in-memory blob store.
func NewBlobStore(name string, policy blob.Policy) *BlobStore {
	return &BlobStore{
		name:   name,
		policy: policy,
		data:   make(map[string]Object),
	}
}

// Name identifies the store in logs.
func (s *BlobStore) Name() string {
	return "memory://" + s.name
}

// EnsureBucket records the call; an in-memory bucket always exists.
func (s *BlobStore) EnsureBucket(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensured++
	return nil
}

// EnsureCalls reports how many times EnsureBucket ran.
func (s *BlobStore) EnsureCalls() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ensured
}

// Upload persists a copy of data and returns a URL.
func (s *BlobStore) Upload(_ context.Context, key, contentType string, data []byte) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("path is required")
	}
	if err := s.policy.Check(contentType, len(data)); err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = Object{Data: append([]byte(nil), data...), ContentType: contentType}
	return s.PublicURL(key), nil
}

// List returns the sorted base names stored directly under folder.
func (s *BlobStore) List(_ context.Context, folder string) ([]string, error) {
	prefix := blob.FolderPrefix(folder)
	s.mu.RLock()
	defer s.mu.RUnlock()
	var names []string
	for key := range s.data {
		if name, ok := blob.BaseName(key, prefix); ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// Delete removes key if present.
func (s *BlobStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

// PublicURL returns the pseudo URL for key.
func (s *BlobStore) PublicURL(key string) string {
	return fmt.Sprintf("memory://%s/%s", s.name, key)
}

// Get returns the stored object for key.
func (s *BlobStore) Get(key string) (Object, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.data[key]
	return obj, ok
}

// Keys returns every stored key in sorted order.
func (s *BlobStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.data))
	for key := range s.data {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
