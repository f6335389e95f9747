package jobs

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"videoserver/internal/activity"
	"videoserver/internal/models"
	"videoserver/internal/registry"
	"videoserver/internal/storage"
	"videoserver/internal/transcode"
)

func timeNow() time.Time { return time.Now().UTC() }

// baseName strips the extension from a video filename; thumbnail filenames
// are derived from it.
func baseName(filename string) string {
	return strings.TrimSuffix(filename, path.Ext(filename))
}

// TimelineJob captures an evenly spaced set of frames and replaces the
// project's timeline inventory wholesale.
type TimelineJob struct {
	Snapshot *models.Project
	Amount   int

	Storage  storage.Storage
	Registry registry.Registry
	Editor   transcode.Editor
	Events   activity.Publisher
	Log      *logrus.Logger

	created []string
}

var _ Job = (*TimelineJob)(nil)

func (j *TimelineJob) Kind() models.JobKind { return models.KindThumbnailsTimeline }

func (j *TimelineJob) ProjectID() uuid.UUID { return j.Snapshot.ID }

func (j *TimelineJob) Execute(ctx context.Context) error {
	// A retry after a partial write starts over; the leftovers from the
	// previous attempt are swept first so they never leak.
	j.cleanupCreated(ctx)

	content, err := j.Storage.Get(ctx, j.Snapshot.StorageID)
	if err != nil {
		return fmt.Errorf("failed to load source video: %w", err)
	}

	duration := 0.0
	if j.Snapshot.Metadata != nil {
		duration = j.Snapshot.Metadata.Duration
	}
	frames, err := j.Editor.CaptureTimeline(ctx, content, duration, j.Amount)
	if err != nil {
		return err
	}

	base := baseName(j.Snapshot.Filename)
	refs := make([]models.ThumbnailRef, 0, len(frames))
	for i, frame := range frames {
		filename := fmt.Sprintf("%s_timeline_%d-%d.png", base, i, j.Amount)
		storageID, err := j.Storage.PutThumbnail(ctx, frame.Content, filename, j.Snapshot.StorageID)
		if err != nil {
			return err
		}
		j.created = append(j.created, storageID)
		refs = append(refs, models.ThumbnailRef{
			Filename:  filename,
			StorageID: storageID,
			Mimetype:  frame.Mimetype,
			Width:     frame.Meta.Width,
			Height:    frame.Meta.Height,
			Size:      int64(len(frame.Content)),
		})
	}

	if _, err := j.Registry.Update(ctx, j.Snapshot.ID, registry.Patch{
		SetTimeline: true,
		Timeline:    refs,
	}); err != nil {
		return fmt.Errorf("failed to record timeline thumbnails: %w", err)
	}
	j.created = nil

	for _, old := range j.Snapshot.Thumbnails.Timeline {
		if err := j.Storage.Delete(ctx, old.StorageID); err != nil {
			j.Log.WithError(err).WithField("storage_id", old.StorageID).
				Warn("failed to delete replaced timeline thumbnail")
		}
	}

	j.Events.Publish(activity.Event{
		ProjectID: j.Snapshot.ID,
		Action:    activity.ActionThumbnailsDone,
		Detail:    string(models.KindThumbnailsTimeline),
		Time:      timeNow(),
	})
	return nil
}

// Rollback deletes the just-created blobs and leaves the stored timeline
// exactly as it was.
func (j *TimelineJob) Rollback(ctx context.Context) error {
	j.cleanupCreated(ctx)
	j.Events.Publish(activity.Event{
		ProjectID: j.Snapshot.ID,
		Action:    activity.ActionThumbnailsFailed,
		Detail:    string(models.KindThumbnailsTimeline),
		Time:      timeNow(),
	})
	return nil
}

func (j *TimelineJob) cleanupCreated(ctx context.Context) {
	for _, storageID := range j.created {
		if err := j.Storage.Delete(ctx, storageID); err != nil {
			j.Log.WithError(err).WithField("storage_id", storageID).
				Warn("failed to delete orphaned thumbnail")
		}
	}
	j.created = nil
}
