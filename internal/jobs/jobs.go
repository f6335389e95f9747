// Package jobs runs the background pipelines behind edit and thumbnail
// requests. A caller acquires the project's processing flag before
// submitting; the runner guarantees the flag is released when the job
// finishes, whether it succeeded or rolled back.
package jobs

import (
	"context"

	"github.com/google/uuid"

	"videoserver/internal/models"
)

// Job is one unit of background work bound to a (project, kind) pair.
// Execute may run more than once; bodies must be idempotent against their
// own partial progress. Rollback runs only after retries are exhausted and
// must leave the project's visible state as it was before the job started.
type Job interface {
	Kind() models.JobKind
	ProjectID() uuid.UUID
	Execute(ctx context.Context) error
	Rollback(ctx context.Context) error
}
