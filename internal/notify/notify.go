// Package notify announces freshly published brochures to downstream systems.
// Notifications are best-effort: the pipeline logs failures and moves on.
package notify

import (
	"context"
	"time"
)

// EventType is the type attribute carried by every notification.
const EventType = "brochure.generated"

// Event describes the artifacts published for one slug in a run.
type Event struct {
	RunID       string            `json:"run_id"`
	Slug        string            `json:"slug"`
	Categories  []string          `json:"categories"`
	URLs        map[string]string `json:"urls"`
	GeneratedAt time.Time         `json:"generated_at"`
}

// Notifier delivers events.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
	Close() error
}

// Noop discards every event.
type Noop struct{}

// Notify does nothing.
func (Noop) Notify(context.Context, Event) error { return nil }

// Close does nothing.
func (Noop) Close() error { return nil }
