// Package registry is the durable metadata store: one record per
// project/version, source of truth for processing flags, lineage and
// thumbnail inventories.
package registry

import (
	"context"

	"github.com/google/uuid"

	"videoserver/internal/models"
)

// Patch is a partial update applied atomically to a single record.
// Nil fields are left untouched; the Set/Clear booleans distinguish
// "replace with this value" from "not present".
type Patch struct {
	StorageID     *string
	Metadata      *models.Metadata
	ClearMetadata bool

	Timeline    []models.ThumbnailRef
	SetTimeline bool

	Preview    *models.ThumbnailRef
	SetPreview bool // Preview == nil with SetPreview means clear
}

// Registry stores project records. All flag transitions go through
// AcquireProcessing/ReleaseProcessing, which must be atomic
// read-modify-write at the record level: AcquireProcessing sets the flag
// only if it is currently false, as a single conditional update.
type Registry interface {
	Create(ctx context.Context, project *models.Project) error
	Get(ctx context.Context, id uuid.UUID) (*models.Project, error)
	List(ctx context.Context, page, perPage int) ([]models.Project, int64, error)
	Update(ctx context.Context, id uuid.UUID, patch Patch) (*models.Project, error)
	Delete(ctx context.Context, id uuid.UUID) error

	AcquireProcessing(ctx context.Context, id uuid.UUID, kind models.JobKind) (bool, error)
	ReleaseProcessing(ctx context.Context, id uuid.UUID, kind models.JobKind) error

	// ResetStaleProcessing clears every processing flag. It runs once at
	// boot, before the worker pool accepts jobs, to recover flags left set
	// by a crash.
	ResetStaleProcessing(ctx context.Context) (int64, error)
}
