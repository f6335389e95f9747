// Package activity publishes project lifecycle events to a message queue
// for downstream consumers. Publishing is fire-and-forget; a failed publish
// is logged and never fails the operation that produced the event.
package activity

import (
	"time"

	"github.com/google/uuid"
)

// Event is one project lifecycle notification.
type Event struct {
	ProjectID uuid.UUID `json:"project_id"`
	Action    string    `json:"action"`
	Detail    string    `json:"detail,omitempty"`
	Time      time.Time `json:"time"`
}

const (
	ActionCreated           = "created"
	ActionDuplicated        = "duplicated"
	ActionDeleted           = "deleted"
	ActionEditQueued        = "edit_queued"
	ActionEditCompleted     = "edit_completed"
	ActionEditFailed        = "edit_failed"
	ActionThumbnailsQueued  = "thumbnails_queued"
	ActionThumbnailsDone    = "thumbnails_completed"
	ActionThumbnailsFailed  = "thumbnails_failed"
	ActionPreviewReplaced   = "preview_replaced"
)

// Publisher emits lifecycle events.
type Publisher interface {
	Publish(event Event)
	Close() error
}

type noop struct{}

func (noop) Publish(Event) {}

func (noop) Close() error { return nil }

// NewNoop returns a publisher that discards all events. Used when no broker
// is configured.
func NewNoop() Publisher { return noop{} }
