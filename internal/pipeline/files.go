package pipeline

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"

	"github.com/JakeFAU/brochure-capture/internal/artifact"
)

type writeFunc func(name string, data []byte, perm os.FileMode) error

// writeArtifact writes data to path, retrying once at the "-new" sibling when
// the primary file is locked. It returns the path actually written.
func writeArtifact(path string, data []byte, write writeFunc) (string, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	err := write(path, data, 0o644)
	if err == nil {
		return path, nil
	}
	if !isLocked(err) {
		return "", fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	fallback := artifact.FallbackPath(path)
	if ferr := write(fallback, data, 0o644); ferr != nil {
		return "", fmt.Errorf("write %s after lock: %w", filepath.Base(fallback), errors.Join(err, ferr))
	}
	return fallback, nil
}

// isLocked reports whether err means the file is held open by another process.
func isLocked(err error) bool {
	return errors.Is(err, fs.ErrPermission) ||
		errors.Is(err, syscall.EBUSY) ||
		errors.Is(err, syscall.ETXTBSY)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
