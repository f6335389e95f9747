package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"videoserver/internal/activity"
	"videoserver/internal/apperr"
	"videoserver/internal/jobs"
	"videoserver/internal/models"
	"videoserver/internal/registry"
	"videoserver/internal/validation"
)

// newFileName derives the stored filename for a video blob. Client-supplied
// names never reach storage paths.
func newFileName(ext string) string {
	return strings.ReplaceAll(uuid.New().String(), "-", "") + ext
}

// Upload probes the uploaded bytes, writes the blob and registers a new
// version 1 project. A registry failure after the blob write triggers a
// compensating directory delete so no orphaned blob survives.
func (s *Service) Upload(ctx context.Context, content []byte, originalFilename, mimeType, requestAddr string) (*models.Project, error) {
	if len(content) == 0 {
		return nil, apperr.Validationf("file", "is empty")
	}

	meta, err := s.editor.Probe(ctx, content)
	if err != nil {
		return nil, apperr.Validationf("file", "could not be probed as a video")
	}
	if !codecSupported(s.videoCodecs, meta.CodecName) {
		return nil, apperr.Validationf("file", "unsupported video codec %q", meta.CodecName)
	}
	if meta.Width < s.limits.MinVideoWidth || meta.Width > s.limits.MaxVideoWidth ||
		meta.Height < s.limits.MinVideoHeight || meta.Height > s.limits.MaxVideoHeight {
		return nil, apperr.Validationf("file", "dimensions %dx%d are out of the supported range", meta.Width, meta.Height)
	}
	meta.Size = int64(len(content))

	id := uuid.New()
	filename := newFileName(extOf(originalFilename))

	storageID, err := s.storage.Put(ctx, content, filename, id)
	if err != nil {
		return nil, err
	}

	project := &models.Project{
		ID:               id,
		Filename:         filename,
		OriginalFilename: originalFilename,
		MimeType:         mimeType,
		RequestAddress:   requestAddr,
		StorageID:        storageID,
		Metadata:         meta,
		CreateTime:       s.now().UTC(),
		Version:          1,
		Thumbnails:       models.Thumbnails{Timeline: []models.ThumbnailRef{}},
	}
	if err := s.registry.Create(ctx, project); err != nil {
		if cleanErr := s.storage.DeleteDir(ctx, storageID); cleanErr != nil {
			s.log.WithError(cleanErr).WithField("storage_id", storageID).
				Error("failed to clean up blob after registry failure")
		}
		return nil, fmt.Errorf("failed to register project: %w", err)
	}

	s.publish(activity.Event{ProjectID: id, Action: activity.ActionCreated})
	s.log.WithFields(logrus.Fields{"project_id": id, "size": len(content)}).Info("project created")
	return project, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	return s.registry.Get(ctx, id)
}

// List returns one page of projects, newest first.
func (s *Service) List(ctx context.Context, page int) ([]models.Project, int64, error) {
	if page < 1 {
		page = 1
	}
	return s.registry.List(ctx, page, s.itemsPerPage)
}

// PerPage exposes the configured page size for response metadata.
func (s *Service) PerPage() int { return s.itemsPerPage }

// Duplicate creates the next version of a project: a copy of the bytes and
// metadata with a fresh id, linked to its parent, with empty thumbnails.
func (s *Service) Duplicate(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	parent, err := s.registry.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if parent.Processing.Any() {
		return nil, apperr.Conflictf("project is busy and cannot be duplicated")
	}

	content, err := s.storage.Get(ctx, parent.StorageID)
	if err != nil {
		return nil, err
	}

	childID := uuid.New()
	filename := newFileName(extOf(parent.Filename))
	storageID, err := s.storage.Put(ctx, content, filename, childID)
	if err != nil {
		return nil, err
	}

	child := &models.Project{
		ID:               childID,
		Filename:         filename,
		OriginalFilename: parent.OriginalFilename,
		MimeType:         parent.MimeType,
		RequestAddress:   parent.RequestAddress,
		StorageID:        storageID,
		Metadata:         parent.Metadata,
		CreateTime:       s.now().UTC(),
		Version:          parent.Version + 1,
		Parent:           &parent.ID,
		Thumbnails:       models.Thumbnails{Timeline: []models.ThumbnailRef{}},
	}
	if err := s.registry.Create(ctx, child); err != nil {
		if cleanErr := s.storage.DeleteDir(ctx, storageID); cleanErr != nil {
			s.log.WithError(cleanErr).WithField("storage_id", storageID).
				Error("failed to clean up blob after registry failure")
		}
		return nil, fmt.Errorf("failed to register duplicate: %w", err)
	}

	s.publish(activity.Event{ProjectID: childID, Action: activity.ActionDuplicated, Detail: parent.ID.String()})
	s.log.WithFields(logrus.Fields{
		"project_id": childID,
		"parent":     parent.ID,
		"version":    child.Version,
	}).Info("project duplicated")
	return child, nil
}

// Delete removes the blob tree first, then the record, so a crash mid-delete
// never leaves a record pointing at missing blobs only briefly and never an
// orphaned-but-referenced blob.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	project, err := s.registry.Get(ctx, id)
	if err != nil {
		return err
	}
	if project.Processing.Any() {
		return apperr.Conflictf("project is busy and cannot be deleted")
	}

	if project.StorageID != "" {
		if err := s.storage.DeleteDir(ctx, project.StorageID); err != nil {
			return err
		}
	}
	if err := s.registry.Delete(ctx, id); err != nil {
		return err
	}

	s.publish(activity.Event{ProjectID: id, Action: activity.ActionDeleted})
	s.log.WithField("project_id", id).Info("project deleted")
	return nil
}

// RequestEdit validates the edit, acquires the video flag and queues the
// job. The caller sees "accepted" while the job runs in the background.
func (s *Service) RequestEdit(ctx context.Context, id uuid.UUID, spec models.EditSpec) (*models.Project, error) {
	project, err := s.registry.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if project.Version < 2 {
		return nil, apperr.Conflictf("version 1 is the immutable original, duplicate it first")
	}
	if err := s.validateEdit(spec, project); err != nil {
		return nil, err
	}

	acquired, err := s.registry.AcquireProcessing(ctx, id, models.KindVideo)
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, apperr.Conflictf("an edit is already in progress")
	}

	// Stored metadata is stale the moment the edit is in flight; readers see
	// null until the job records the recomputed values or rolls back.
	if _, err := s.registry.Update(ctx, id, registry.Patch{ClearMetadata: true}); err != nil {
		if relErr := s.registry.ReleaseProcessing(ctx, id, models.KindVideo); relErr != nil {
			s.log.WithError(relErr).WithField("project_id", id).
				Error("failed to release flag after metadata clear failure")
		}
		return nil, fmt.Errorf("failed to clear metadata for edit: %w", err)
	}

	job := &jobs.EditJob{
		Snapshot: project,
		Spec:     spec,
		Storage:  s.storage,
		Registry: s.registry,
		Editor:   s.editor,
		Events:   s.events,
		Log:      s.log,
	}
	if err := s.pool.Submit(job); err != nil {
		if relErr := s.registry.ReleaseProcessing(ctx, id, models.KindVideo); relErr != nil {
			s.log.WithError(relErr).WithField("project_id", id).
				Error("failed to release flag after submit failure")
		}
		return nil, fmt.Errorf("failed to queue edit: %w", err)
	}

	s.publish(activity.Event{ProjectID: id, Action: activity.ActionEditQueued})
	project.Processing.Video = true
	return project, nil
}

func (s *Service) validateEdit(spec models.EditSpec, project *models.Project) error {
	if spec.Trim != nil && project.Metadata != nil && spec.Trim.End > project.Metadata.Duration {
		// ends past the source are clamped, not rejected
		spec.Trim.End = project.Metadata.Duration
	}
	return validation.Edit(spec, project.Metadata, s.limits)
}
