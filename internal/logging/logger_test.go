// Package logging includes tests for the zap logger helpers.
package logging

import (
	"testing"

	"go.uber.org/zap"
)

// TestNewDevelopmentLogger confirms the development logger builds and logs.
func TestNewDevelopmentLogger(t *testing.T) {
	t.Parallel()

	logger, err := New(true)
	if err != nil {
		t.Fatalf("New(true) error = %v", err)
	}
	if logger == nil {
		t.Fatal("expected logger to be non-nil")
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush
	logger.Info("development logger ready")
}

// TestNewProductionLogger ensures the production logger configuration succeeds.
func TestNewProductionLogger(t *testing.T) {
	t.Parallel()

	logger, err := New(false)
	if err != nil {
		t.Fatalf("New(false) error = %v", err)
	}
	if logger == nil {
		t.Fatal("expected logger to be non-nil")
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush
	logger.Info("production logger ready")
}

// TestSetReplacesGlobal verifies Set swaps both L and the zap globals.
func TestSetReplacesGlobal(t *testing.T) {
	previous := L
	t.Cleanup(func() { Set(previous) })

	logger := zap.NewExample()
	Set(logger)
	if L != logger {
		t.Fatal("expected L to be replaced")
	}
	if zap.L() != logger {
		t.Fatal("expected zap global logger to be replaced")
	}

	Set(nil)
	if L != logger {
		t.Fatal("expected nil logger to be ignored")
	}
}
