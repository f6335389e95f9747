package service

import (
	"context"
	"path"
	"strings"

	"github.com/google/uuid"

	"videoserver/internal/apperr"
	"videoserver/internal/models"
)

func baseNameOf(filename string) string {
	return strings.TrimSuffix(filename, path.Ext(filename))
}

func mimeForCodec(codec string) string {
	switch codec {
	case "png":
		return "image/png"
	case "mjpeg":
		return "image/jpeg"
	case "bmp":
		return "image/bmp"
	}
	return "application/octet-stream"
}

// Blob is raw content handed back to the transport layer.
type Blob struct {
	Content  []byte
	Mimetype string
	Filename string
	Total    int64 // full blob size, for range responses
}

// VideoContent returns the project's full video bytes.
func (s *Service) VideoContent(ctx context.Context, id uuid.UUID) (*Blob, error) {
	project, err := s.videoProject(ctx, id)
	if err != nil {
		return nil, err
	}
	content, err := s.storage.Get(ctx, project.StorageID)
	if err != nil {
		return nil, err
	}
	return &Blob{
		Content:  content,
		Mimetype: project.MimeType,
		Filename: project.Filename,
		Total:    blobSize(project, int64(len(content))),
	}, nil
}

// VideoRange returns a byte range of the project's video for partial
// content responses.
func (s *Service) VideoRange(ctx context.Context, id uuid.UUID, start, length int64) (*Blob, error) {
	project, err := s.videoProject(ctx, id)
	if err != nil {
		return nil, err
	}
	content, err := s.storage.GetRange(ctx, project.StorageID, start, length)
	if err != nil {
		return nil, err
	}
	return &Blob{
		Content:  content,
		Mimetype: project.MimeType,
		Filename: project.Filename,
		Total:    blobSize(project, 0),
	}, nil
}

// videoProject loads the record and gates raw video reads: mid-edit bytes
// are in flux and must not be served.
func (s *Service) videoProject(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	project, err := s.registry.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if project.StorageID == "" {
		return nil, apperr.NotFound("video", id.String())
	}
	if project.Processing.Video {
		return nil, apperr.Conflictf("an edit is in progress")
	}
	return project, nil
}

func blobSize(project *models.Project, fallback int64) int64 {
	if project.Metadata != nil && project.Metadata.Size > 0 {
		return project.Metadata.Size
	}
	return fallback
}

// PreviewContent returns the preview thumbnail bytes.
func (s *Service) PreviewContent(ctx context.Context, id uuid.UUID) (*Blob, error) {
	project, err := s.registry.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	preview := project.Thumbnails.Preview
	if preview == nil {
		return nil, apperr.NotFound("preview thumbnail", id.String())
	}
	content, err := s.storage.Get(ctx, preview.StorageID)
	if err != nil {
		return nil, err
	}
	return &Blob{Content: content, Mimetype: preview.Mimetype, Filename: preview.Filename}, nil
}

// TimelineContent returns one timeline thumbnail by index.
func (s *Service) TimelineContent(ctx context.Context, id uuid.UUID, index int) (*Blob, error) {
	project, err := s.registry.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(project.Thumbnails.Timeline) {
		return nil, apperr.NotFound("timeline thumbnail", id.String())
	}
	ref := project.Thumbnails.Timeline[index]
	content, err := s.storage.Get(ctx, ref.StorageID)
	if err != nil {
		return nil, err
	}
	return &Blob{Content: content, Mimetype: ref.Mimetype, Filename: ref.Filename}, nil
}
