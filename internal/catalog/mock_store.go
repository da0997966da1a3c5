package catalog

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockStore is a mock implementation of the Store interface for testing.
type MockStore struct {
	mock.Mock
}

// ListBySlug is the mock implementation of the ListBySlug method.
func (m *MockStore) ListBySlug(ctx context.Context, slug string) ([]Entry, error) {
	args := m.Called(ctx, slug)
	entries, _ := args.Get(0).([]Entry)
	return entries, args.Error(1) //nolint:wrapcheck
}

// UpdateGenerated is the mock implementation of the UpdateGenerated method.
func (m *MockStore) UpdateGenerated(ctx context.Context, update Update) (int64, error) {
	args := m.Called(ctx, update)
	return args.Get(0).(int64), args.Error(1) //nolint:wrapcheck
}

// Close is the mock implementation of the Close method.
func (m *MockStore) Close() error {
	args := m.Called()
	return args.Error(0) //nolint:wrapcheck
}
