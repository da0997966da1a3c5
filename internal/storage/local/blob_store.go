// Package local implements a local filesystem blob store that mirrors a bucket layout.
package local

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	blob "github.com/JakeFAU/brochure-capture/internal/storage"
)

// Config captures the parameters for the local filesystem blob store.
type Config struct {
	// BaseDir is the root directory that plays the role of the bucket.
	BaseDir string `mapstructure:"base_dir" yaml:"base_dir"`
	// Policy is enforced on every upload, like bucket limits.
	Policy blob.Policy `mapstructure:"-" yaml:"-"`
}

// BlobStore writes artifacts to the local filesystem.
type BlobStore struct {
	baseDir string
	policy  blob.Policy
}

// New creates a new local filesystem-backed blob store.
func New(cfg Config) (*BlobStore, error) {
	if strings.TrimSpace(cfg.BaseDir) == "" {
		return nil, fmt.Errorf("base directory is required")
	}
	return &BlobStore{
		baseDir: cfg.BaseDir,
		policy:  cfg.Policy,
	}, nil
}

// Name identifies the store in logs.
func (s *BlobStore) Name() string {
	return "file://" + s.baseDir
}

// EnsureBucket creates the base directory and checks that it is writable.
func (s *BlobStore) EnsureBucket(_ context.Context) error {
	info, err := os.Stat(s.baseDir)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat base directory: %w", err)
		}
		if mkErr := os.MkdirAll(s.baseDir, 0o750); mkErr != nil {
			return fmt.Errorf("failed to create base directory: %w", mkErr)
		}
	} else if !info.IsDir() {
		return fmt.Errorf("base directory path is not a directory")
	}

	testFile := filepath.Join(s.baseDir, ".writable_test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return fmt.Errorf("base directory is not writable: %w", err)
	}
	if err := os.Remove(testFile); err != nil {
		return fmt.Errorf("failed to clean up test file: %w", err)
	}
	return nil
}

// Upload writes data to a file under the base directory and returns a file:// URL.
func (s *BlobStore) Upload(_ context.Context, key, contentType string, data []byte) (string, error) {
	fullPath, err := s.resolve(key)
	if err != nil {
		return "", err
	}
	if err := s.policy.Check(contentType, len(data)); err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o750); err != nil {
		return "", fmt.Errorf("failed to create parent directories: %w", err)
	}
	if err := os.WriteFile(fullPath, data, 0o600); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	return s.PublicURL(key), nil
}

// List returns the regular files directly inside folder.
func (s *BlobStore) List(_ context.Context, folder string) ([]string, error) {
	dir := s.baseDir
	if f := strings.Trim(folder, "/"); f != "" {
		var err error
		if dir, err = s.resolve(f); err != nil {
			return nil, err
		}
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.Type().IsRegular() && !strings.HasPrefix(entry.Name(), ".") {
			names = append(names, entry.Name())
		}
	}
	return names, nil
}

// Delete removes the file for key. A missing file is not an error.
func (s *BlobStore) Delete(_ context.Context, key string) error {
	fullPath, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// PublicURL returns the file:// URL for key.
func (s *BlobStore) PublicURL(key string) string {
	abs, err := filepath.Abs(filepath.Join(s.baseDir, filepath.FromSlash(key)))
	if err != nil {
		abs = filepath.Join(s.baseDir, filepath.FromSlash(key))
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String()
}

// resolve maps key into the base directory and rejects path traversal.
func (s *BlobStore) resolve(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("path is required")
	}
	fullPath := filepath.Join(s.baseDir, filepath.FromSlash(key))
	cleanBaseDir := filepath.Clean(s.baseDir)
	cleanFullPath := filepath.Clean(fullPath)
	if !strings.HasPrefix(cleanFullPath, cleanBaseDir+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal detected")
	}
	return cleanFullPath, nil
}
