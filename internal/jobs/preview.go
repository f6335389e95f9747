package jobs

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"videoserver/internal/activity"
	"videoserver/internal/models"
	"videoserver/internal/registry"
	"videoserver/internal/storage"
	"videoserver/internal/transcode"
)

// PreviewJob captures a single frame at a position and replaces the
// project's preview thumbnail.
type PreviewJob struct {
	Snapshot *models.Project
	Position float64
	Crop     *models.Crop
	Rotate   int

	Storage  storage.Storage
	Registry registry.Registry
	Editor   transcode.Editor
	Events   activity.Publisher
	Log      *logrus.Logger

	created string
}

var _ Job = (*PreviewJob)(nil)

func (j *PreviewJob) Kind() models.JobKind { return models.KindThumbnailPreview }

func (j *PreviewJob) ProjectID() uuid.UUID { return j.Snapshot.ID }

func (j *PreviewJob) Execute(ctx context.Context) error {
	j.cleanupCreated(ctx)

	content, err := j.Storage.Get(ctx, j.Snapshot.StorageID)
	if err != nil {
		return fmt.Errorf("failed to load source video: %w", err)
	}

	duration := 0.0
	if j.Snapshot.Metadata != nil {
		duration = j.Snapshot.Metadata.Duration
	}
	frame, err := j.Editor.CaptureFrame(ctx, content, duration, j.Position, j.Crop, j.Rotate)
	if err != nil {
		return err
	}

	filename := fmt.Sprintf("%s_preview-%s_%d.png",
		baseName(j.Snapshot.Filename),
		strconv.FormatFloat(j.Position, 'f', -1, 64),
		timeNow().UnixMilli())
	storageID, err := j.Storage.PutThumbnail(ctx, frame.Content, filename, j.Snapshot.StorageID)
	if err != nil {
		return err
	}
	j.created = storageID

	position := j.Position
	ref := models.ThumbnailRef{
		Filename:  filename,
		StorageID: storageID,
		Mimetype:  frame.Mimetype,
		Width:     frame.Meta.Width,
		Height:    frame.Meta.Height,
		Size:      int64(len(frame.Content)),
		Position:  &position,
	}
	if _, err := j.Registry.Update(ctx, j.Snapshot.ID, registry.Patch{
		SetPreview: true,
		Preview:    &ref,
	}); err != nil {
		return fmt.Errorf("failed to record preview thumbnail: %w", err)
	}
	j.created = ""

	if old := j.Snapshot.Thumbnails.Preview; old != nil {
		if err := j.Storage.Delete(ctx, old.StorageID); err != nil {
			j.Log.WithError(err).WithField("storage_id", old.StorageID).
				Warn("failed to delete replaced preview thumbnail")
		}
	}

	j.Events.Publish(activity.Event{
		ProjectID: j.Snapshot.ID,
		Action:    activity.ActionThumbnailsDone,
		Detail:    string(models.KindThumbnailPreview),
		Time:      timeNow(),
	})
	return nil
}

// Rollback deletes the just-created blob, if any, and leaves the stored
// preview as it was.
func (j *PreviewJob) Rollback(ctx context.Context) error {
	j.cleanupCreated(ctx)
	j.Events.Publish(activity.Event{
		ProjectID: j.Snapshot.ID,
		Action:    activity.ActionThumbnailsFailed,
		Detail:    string(models.KindThumbnailPreview),
		Time:      timeNow(),
	})
	return nil
}

func (j *PreviewJob) cleanupCreated(ctx context.Context) {
	if j.created == "" {
		return
	}
	if err := j.Storage.Delete(ctx, j.created); err != nil {
		j.Log.WithError(err).WithField("storage_id", j.created).
			Warn("failed to delete orphaned thumbnail")
	}
	j.created = ""
}
