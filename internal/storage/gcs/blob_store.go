// Package gcs provides a BlobStore backed by Google Cloud Storage.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"cloud.google.com/go/iam"
	"cloud.google.com/go/storage"
	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	blob "github.com/JakeFAU/brochure-capture/internal/storage"
)

const (
	publicReaderRole = iam.RoleName("roles/storage.objectViewer")
	cacheControl     = "public, max-age=3600"
	defaultURLBase   = "https://storage.googleapis.com"
)

// Config captures the parameters required to manage a GCS bucket.
type Config struct {
	Bucket        string
	ProjectID     string
	Public        bool
	PublicBaseURL string
	Policy        blob.Policy
}

// ClientOptions builds client options for a credentials file or a custom endpoint.
// A custom endpoint (emulator or test server) disables authentication.
func ClientOptions(credentialsFile, endpoint string) []option.ClientOption {
	if endpoint != "" {
		return []option.ClientOption{option.WithEndpoint(endpoint), option.WithoutAuthentication()}
	}
	if credentialsFile != "" {
		return []option.ClientOption{option.WithCredentialsFile(credentialsFile)}
	}
	return nil
}

// BlobStore writes artifacts to a configured GCS bucket.
type BlobStore struct {
	client *storage.Client
	cfg    Config
	logger *zap.Logger
}

// New creates a GCS-backed blob store.
func New(client *storage.Client, cfg Config, logger *zap.Logger) (*BlobStore, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BlobStore{
		client: client,
		cfg:    cfg,
		logger: logger.Named("gcs").With(zap.String("bucket", cfg.Bucket)),
	}, nil
}

// Name identifies the bucket in logs.
func (s *BlobStore) Name() string {
	return "gs://" + s.cfg.Bucket
}

// EnsureBucket creates the bucket, or updates its configuration when it already exists,
// and grants public read access when configured.
func (s *BlobStore) EnsureBucket(ctx context.Context) error {
	bkt := s.client.Bucket(s.cfg.Bucket)
	attrs := &storage.BucketAttrs{
		UniformBucketLevelAccess: storage.UniformBucketLevelAccess{Enabled: true},
		Labels:                   map[string]string{"managed-by": "brochure-capture"},
	}
	err := bkt.Create(ctx, s.cfg.ProjectID, attrs)
	switch {
	case err == nil:
		s.logger.Info("Created bucket")
	case isStatus(err, http.StatusConflict):
		update := storage.BucketAttrsToUpdate{
			UniformBucketLevelAccess: &storage.UniformBucketLevelAccess{Enabled: true},
		}
		update.SetLabel("managed-by", "brochure-capture")
		if _, err := bkt.Update(ctx, update); err != nil {
			return fmt.Errorf("update bucket %s: %w", s.cfg.Bucket, err)
		}
		s.logger.Debug("Bucket already exists, configuration updated")
	default:
		return fmt.Errorf("create bucket %s: %w", s.cfg.Bucket, err)
	}

	if !s.cfg.Public {
		return nil
	}
	policy, err := bkt.IAM().Policy(ctx)
	if err != nil {
		return fmt.Errorf("get bucket policy: %w", err)
	}
	if policy.HasRole(iam.AllUsers, publicReaderRole) {
		return nil
	}
	policy.Add(iam.AllUsers, publicReaderRole)
	if err := bkt.IAM().SetPolicy(ctx, policy); err != nil {
		return fmt.Errorf("set bucket policy: %w", err)
	}
	s.logger.Info("Granted public read access")
	return nil
}

// Upload writes data to key, replacing any existing object, and returns its public URL.
func (s *BlobStore) Upload(ctx context.Context, key, contentType string, data []byte) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("path is required")
	}
	if err := s.cfg.Policy.Check(contentType, len(data)); err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	writer := s.client.Bucket(s.cfg.Bucket).Object(key).NewWriter(ctx)
	writer.ContentType = contentType
	writer.CacheControl = cacheControl
	if _, err := writer.Write(data); err != nil {
		closeErr := writer.Close()
		if closeErr != nil {
			return "", fmt.Errorf("write object %s: %w (close writer: %v)", key, err, closeErr)
		}
		return "", fmt.Errorf("write object %s: %w", key, err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close writer for %s: %w", key, err)
	}
	return s.PublicURL(key), nil
}

// List returns the base names of objects directly under folder.
func (s *BlobStore) List(ctx context.Context, folder string) ([]string, error) {
	prefix := blob.FolderPrefix(folder)
	it := s.client.Bucket(s.cfg.Bucket).Objects(ctx, &storage.Query{Prefix: prefix, Delimiter: "/"})
	var names []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", prefix, err)
		}
		if name, ok := blob.BaseName(attrs.Name, prefix); ok {
			names = append(names, name)
		}
	}
	return names, nil
}

// Delete removes key. A missing object is not an error.
func (s *BlobStore) Delete(ctx context.Context, key string) error {
	err := s.client.Bucket(s.cfg.Bucket).Object(key).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("delete object %s: %w", key, err)
	}
	return nil
}

// PublicURL returns the public URL for key.
func (s *BlobStore) PublicURL(key string) string {
	if s.cfg.PublicBaseURL != "" {
		return strings.TrimRight(s.cfg.PublicBaseURL, "/") + "/" + key
	}
	return fmt.Sprintf("%s/%s/%s", defaultURLBase, s.cfg.Bucket, key)
}

func isStatus(err error, code int) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == code
}
