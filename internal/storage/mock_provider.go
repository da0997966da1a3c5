// Package storage defines the interfaces for a blob storage provider.
package storage

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockBlobStore is a mock implementation of the BlobStore interface for testing.
type MockBlobStore struct {
	mock.Mock
}

// EnsureBucket is the mock implementation of the EnsureBucket method.
func (m *MockBlobStore) EnsureBucket(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0) //nolint:wrapcheck
}

// Upload is the mock implementation of the Upload method.
func (m *MockBlobStore) Upload(ctx context.Context, key, contentType string, data []byte) (string, error) {
	args := m.Called(ctx, key, contentType, data)
	return args.String(0), args.Error(1) //nolint:wrapcheck
}

// List is the mock implementation of the List method.
func (m *MockBlobStore) List(ctx context.Context, folder string) ([]string, error) {
	args := m.Called(ctx, folder)
	names, _ := args.Get(0).([]string)
	return names, args.Error(1) //nolint:wrapcheck
}

// Delete is the mock implementation of the Delete method.
func (m *MockBlobStore) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0) //nolint:wrapcheck
}

// PublicURL is the mock implementation of the PublicURL method.
func (m *MockBlobStore) PublicURL(key string) string {
	args := m.Called(key)
	return args.String(0)
}

// Name is the mock implementation of the Name method.
func (m *MockBlobStore) Name() string {
	return "mock"
}
