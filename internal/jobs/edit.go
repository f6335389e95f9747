package jobs

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"videoserver/internal/activity"
	"videoserver/internal/models"
	"videoserver/internal/registry"
	"videoserver/internal/storage"
	"videoserver/internal/transcode"
)

// EditJob replaces a project's video bytes in place and recomputes its
// metadata. The snapshot is taken at submit time; the source bytes are
// loaded once so a retry after a partial replace re-edits the original,
// not its own output.
type EditJob struct {
	Snapshot *models.Project
	Spec     models.EditSpec

	Storage  storage.Storage
	Registry registry.Registry
	Editor   transcode.Editor
	Events   activity.Publisher
	Log      *logrus.Logger

	source   []byte
	replaced bool
}

var _ Job = (*EditJob)(nil)

func (j *EditJob) Kind() models.JobKind { return models.KindVideo }

func (j *EditJob) ProjectID() uuid.UUID { return j.Snapshot.ID }

func (j *EditJob) Execute(ctx context.Context) error {
	if j.source == nil {
		content, err := j.Storage.Get(ctx, j.Snapshot.StorageID)
		if err != nil {
			return fmt.Errorf("failed to load source video: %w", err)
		}
		j.source = content
	}

	edited, meta, err := j.Editor.Edit(ctx, j.source, j.Snapshot.Filename, j.Spec)
	if err != nil {
		return err
	}

	if err := j.Storage.Replace(ctx, j.Snapshot.StorageID, edited); err != nil {
		return err
	}
	j.replaced = true

	// The edit invalidates the timeline set; the preview survives until
	// explicitly replaced.
	if _, err := j.Registry.Update(ctx, j.Snapshot.ID, registry.Patch{
		Metadata:    meta,
		SetTimeline: true,
		Timeline:    []models.ThumbnailRef{},
	}); err != nil {
		return fmt.Errorf("failed to record edit result: %w", err)
	}

	for _, ref := range j.Snapshot.Thumbnails.Timeline {
		if err := j.Storage.Delete(ctx, ref.StorageID); err != nil {
			j.Log.WithError(err).WithField("storage_id", ref.StorageID).
				Warn("failed to delete stale timeline thumbnail")
		}
	}

	j.Events.Publish(activity.Event{
		ProjectID: j.Snapshot.ID,
		Action:    activity.ActionEditCompleted,
		Time:      timeNow(),
	})
	return nil
}

// Rollback restores the original bytes if the replace already happened, and
// puts the snapshot metadata back in place of the null written at dispatch,
// so no partial edit is ever visible after the flag clears.
func (j *EditJob) Rollback(ctx context.Context) error {
	if j.replaced && j.source != nil {
		if err := j.Storage.Replace(ctx, j.Snapshot.StorageID, j.source); err != nil {
			return fmt.Errorf("failed to restore original video: %w", err)
		}
	}
	if j.Snapshot.Metadata != nil {
		if _, err := j.Registry.Update(ctx, j.Snapshot.ID, registry.Patch{Metadata: j.Snapshot.Metadata}); err != nil {
			return fmt.Errorf("failed to restore metadata: %w", err)
		}
	}
	j.Events.Publish(activity.Event{
		ProjectID: j.Snapshot.ID,
		Action:    activity.ActionEditFailed,
		Time:      timeNow(),
	})
	return nil
}
