package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"videoserver/internal/activity"
	"videoserver/internal/apperr"
	"videoserver/internal/jobs"
	"videoserver/internal/models"
	"videoserver/internal/registry"
	"videoserver/internal/validation"
)

// TimelineResult is the synchronous answer to a timeline request. Started
// is false for the idempotent-read case, where Existing carries the stored
// set.
type TimelineResult struct {
	Project  *models.Project
	Existing []models.ThumbnailRef
	Started  bool
}

// RequestTimelineThumbnails queues a timeline capture job, or returns the
// stored set when the requested amount already matches it. Requesting
// thumbnails of a project that is mid-edit, or while another timeline job
// holds the flag, is a conflict.
func (s *Service) RequestTimelineThumbnails(ctx context.Context, id uuid.UUID, amount int) (*TimelineResult, error) {
	if amount == 0 {
		amount = s.defaultTimeline
	}
	if err := validation.TimelineAmount(amount); err != nil {
		return nil, err
	}

	project, err := s.registry.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if project.Processing.Video {
		return nil, apperr.Conflictf("an edit is in progress, thumbnails would be stale")
	}
	if project.Metadata == nil {
		return nil, apperr.Conflictf("project metadata is not available yet")
	}

	if amount == len(project.Thumbnails.Timeline) {
		return &TimelineResult{Project: project, Existing: project.Thumbnails.Timeline}, nil
	}

	acquired, err := s.registry.AcquireProcessing(ctx, id, models.KindThumbnailsTimeline)
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, apperr.Conflictf("timeline thumbnails are already being generated")
	}

	job := &jobs.TimelineJob{
		Snapshot: project,
		Amount:   amount,
		Storage:  s.storage,
		Registry: s.registry,
		Editor:   s.editor,
		Events:   s.events,
		Log:      s.log,
	}
	if err := s.pool.Submit(job); err != nil {
		if relErr := s.registry.ReleaseProcessing(ctx, id, models.KindThumbnailsTimeline); relErr != nil {
			s.log.WithError(relErr).WithField("project_id", id).
				Error("failed to release flag after submit failure")
		}
		return nil, fmt.Errorf("failed to queue timeline thumbnails: %w", err)
	}

	s.publish(activity.Event{ProjectID: id, Action: activity.ActionThumbnailsQueued, Detail: string(models.KindThumbnailsTimeline)})
	project.Processing.ThumbnailsTimeline = true
	return &TimelineResult{Project: project, Started: true}, nil
}

// PreviewResult is the synchronous answer to a preview request. Existing is
// the cached thumbnail when the position was already captured.
type PreviewResult struct {
	Project  *models.Project
	Existing *models.ThumbnailRef
	Started  bool
}

// RequestPreviewThumbnail queues a single-frame capture at a position. The
// position is clamped into [0, duration); a request for an already-captured
// position returns the cached result without starting a job.
func (s *Service) RequestPreviewThumbnail(ctx context.Context, id uuid.UUID, position float64, crop *models.Crop, rotate int) (*PreviewResult, error) {
	project, err := s.registry.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if project.Processing.Video {
		return nil, apperr.Conflictf("an edit is in progress, thumbnails would be stale")
	}
	if project.Metadata == nil {
		return nil, apperr.Conflictf("project metadata is not available yet")
	}
	if crop != nil {
		if err := validation.Crop(*crop, project.Metadata, s.limits); err != nil {
			return nil, err
		}
	}
	if rotate != 0 {
		if err := validation.Rotate(rotate); err != nil {
			return nil, err
		}
	}

	position = validation.PreviewPosition(position, project.Metadata.Duration)

	if cached := project.Thumbnails.Preview; cached != nil && !cached.Custom &&
		cached.Position != nil && *cached.Position == position && crop == nil && rotate == 0 {
		return &PreviewResult{Project: project, Existing: cached}, nil
	}

	acquired, err := s.registry.AcquireProcessing(ctx, id, models.KindThumbnailPreview)
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, apperr.Conflictf("a preview capture is already in progress")
	}

	job := &jobs.PreviewJob{
		Snapshot: project,
		Position: position,
		Crop:     crop,
		Rotate:   rotate,
		Storage:  s.storage,
		Registry: s.registry,
		Editor:   s.editor,
		Events:   s.events,
		Log:      s.log,
	}
	if err := s.pool.Submit(job); err != nil {
		if relErr := s.registry.ReleaseProcessing(ctx, id, models.KindThumbnailPreview); relErr != nil {
			s.log.WithError(relErr).WithField("project_id", id).
				Error("failed to release flag after submit failure")
		}
		return nil, fmt.Errorf("failed to queue preview thumbnail: %w", err)
	}

	s.publish(activity.Event{ProjectID: id, Action: activity.ActionThumbnailsQueued, Detail: string(models.KindThumbnailPreview)})
	project.Processing.ThumbnailPreview = true
	return &PreviewResult{Project: project, Started: true}, nil
}

// UploadPreviewThumbnail replaces the preview with a client-supplied image,
// synchronously. The preview flag is held for the duration so an in-flight
// capture job cannot interleave.
func (s *Service) UploadPreviewThumbnail(ctx context.Context, id uuid.UUID, content []byte, originalFilename string) (*models.Project, error) {
	if len(content) == 0 {
		return nil, apperr.Validationf("file", "is empty")
	}

	project, err := s.registry.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if project.StorageID == "" {
		return nil, apperr.Conflictf("project has no stored video yet")
	}
	if project.Processing.Video {
		return nil, apperr.Conflictf("an edit is in progress, thumbnails would be stale")
	}

	meta, err := s.editor.Probe(ctx, content)
	if err != nil {
		return nil, apperr.Validationf("file", "could not be probed as an image")
	}
	if !codecSupported(s.imageCodecs, meta.CodecName) {
		return nil, apperr.Validationf("file", "unsupported image codec %q", meta.CodecName)
	}

	acquired, err := s.registry.AcquireProcessing(ctx, id, models.KindThumbnailPreview)
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, apperr.Conflictf("a preview capture is already in progress")
	}
	defer func() {
		if relErr := s.registry.ReleaseProcessing(ctx, id, models.KindThumbnailPreview); relErr != nil {
			s.log.WithError(relErr).WithField("project_id", id).
				Error("failed to release preview flag")
		}
	}()

	filename := baseNameOf(project.Filename) + "_preview-custom" + extOf(originalFilename)
	storageID, err := s.storage.PutThumbnail(ctx, content, filename, project.StorageID)
	if err != nil {
		return nil, err
	}

	ref := models.ThumbnailRef{
		Filename:  filename,
		StorageID: storageID,
		Mimetype:  mimeForCodec(meta.CodecName),
		Width:     meta.Width,
		Height:    meta.Height,
		Size:      int64(len(content)),
		Custom:    true,
	}
	updated, err := s.registry.Update(ctx, id, registry.Patch{SetPreview: true, Preview: &ref})
	if err != nil {
		if cleanErr := s.storage.Delete(ctx, storageID); cleanErr != nil {
			s.log.WithError(cleanErr).WithField("storage_id", storageID).
				Error("failed to clean up blob after registry failure")
		}
		return nil, fmt.Errorf("failed to record custom preview: %w", err)
	}

	if old := project.Thumbnails.Preview; old != nil && old.StorageID != storageID {
		if err := s.storage.Delete(ctx, old.StorageID); err != nil {
			s.log.WithError(err).WithField("storage_id", old.StorageID).
				Warn("failed to delete replaced preview thumbnail")
		}
	}

	s.publish(activity.Event{ProjectID: id, Action: activity.ActionPreviewReplaced})
	return updated, nil
}
