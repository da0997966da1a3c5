package pipeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/JakeFAU/brochure-capture/internal/artifact"
)

// Stage names the step a capture failed in.
type Stage string

// Pipeline stages that can fail a target.
const (
	StageCatalog  Stage = "catalog"
	StageRender   Stage = "render"
	StageWrite    Stage = "write"
	StageUpload   Stage = "upload"
	StageMetadata Stage = "metadata"
)

// CaptureError records where and for which target a capture failed.
type CaptureError struct {
	Stage    Stage
	Slug     string
	Variant  string
	Category string
	Err      error
}

func (e *CaptureError) Error() string {
	target := e.Slug
	if e.Variant != "" {
		target += "/" + e.Variant
	}
	if e.Category != "" {
		target += "/" + e.Category
	}
	return fmt.Sprintf("%s %s: %v", e.Stage, target, e.Err)
}

func (e *CaptureError) Unwrap() error {
	return e.Err
}

// Result is the outcome of one (slug, variant, category) target.
type Result struct {
	Slug     string
	Variant  artifact.Variant
	Category string
	// LocalPath is where the artifact was written; the "-new" sibling when the
	// primary path was locked.
	LocalPath string
	ObjectKey string
	URL       string
	// Skipped is set when an existing local file was published without rendering.
	Skipped  bool
	Fallback bool
	Err      error
}

// OK reports whether the target was published.
func (r Result) OK() bool {
	return r.Err == nil
}

// Report summarizes a run.
type Report struct {
	RunID      string
	Slugs      int
	Results    []Result
	Failures   []*CaptureError
	Deleted    int
	Updated    int
	StartedAt  time.Time
	FinishedAt time.Time
}

// Succeeded counts published targets, including skipped renders.
func (r Report) Succeeded() int {
	n := 0
	for _, res := range r.Results {
		if res.OK() {
			n++
		}
	}
	return n
}

// Skipped counts targets that reused an existing local file.
func (r Report) Skipped() int {
	n := 0
	for _, res := range r.Results {
		if res.OK() && res.Skipped {
			n++
		}
	}
	return n
}

// Failed counts every recorded failure, including metadata updates.
func (r Report) Failed() int {
	return len(r.Failures)
}

func (r *Report) addResult(res Result) {
	r.Results = append(r.Results, res)
	var ce *CaptureError
	if errors.As(res.Err, &ce) {
		r.Failures = append(r.Failures, ce)
	}
}

func (r *Report) addFailure(ce *CaptureError) {
	r.Failures = append(r.Failures, ce)
}
