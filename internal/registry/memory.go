package registry

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"videoserver/internal/apperr"
	"videoserver/internal/models"
)

// Memory is a mutex-guarded in-process registry. Used by tests and as a
// development backend; the mutex gives the same atomicity guarantees the
// Postgres backend gets from single-statement updates.
type Memory struct {
	mu       sync.Mutex
	projects map[uuid.UUID]*models.Project
	order    []uuid.UUID
}

var _ Registry = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{projects: make(map[uuid.UUID]*models.Project)}
}

func (m *Memory) Create(ctx context.Context, project *models.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.projects[project.ID] = project.Clone()
	m.order = append(m.order, project.ID)
	return nil
}

func (m *Memory) Get(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[id]
	if !ok {
		return nil, apperr.NotFound("project", id.String())
	}
	return p.Clone(), nil
}

func (m *Memory) List(ctx context.Context, page, perPage int) ([]models.Project, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := int64(len(m.order))
	start := (page - 1) * perPage
	if start >= len(m.order) {
		return []models.Project{}, total, nil
	}
	end := start + perPage
	if end > len(m.order) {
		end = len(m.order)
	}
	out := make([]models.Project, 0, end-start)
	for _, id := range m.order[start:end] {
		out = append(out, *m.projects[id].Clone())
	}
	return out, total, nil
}

func (m *Memory) Update(ctx context.Context, id uuid.UUID, patch Patch) (*models.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[id]
	if !ok {
		return nil, apperr.NotFound("project", id.String())
	}
	applyPatch(p, patch)
	return p.Clone(), nil
}

func applyPatch(p *models.Project, patch Patch) {
	if patch.StorageID != nil {
		p.StorageID = *patch.StorageID
	}
	if patch.ClearMetadata {
		p.Metadata = nil
	} else if patch.Metadata != nil {
		m := *patch.Metadata
		p.Metadata = &m
	}
	if patch.SetTimeline {
		p.Thumbnails.Timeline = append([]models.ThumbnailRef(nil), patch.Timeline...)
	}
	if patch.SetPreview {
		if patch.Preview == nil {
			p.Thumbnails.Preview = nil
		} else {
			ref := *patch.Preview
			p.Thumbnails.Preview = &ref
		}
	}
}

func (m *Memory) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.projects[id]; !ok {
		return apperr.NotFound("project", id.String())
	}
	delete(m.projects, id)
	for i, pid := range m.order {
		if pid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

func (m *Memory) AcquireProcessing(ctx context.Context, id uuid.UUID, kind models.JobKind) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[id]
	if !ok {
		return false, apperr.NotFound("project", id.String())
	}
	if p.Processing.Flag(kind) {
		return false, nil
	}
	setFlag(p, kind, true)
	return true, nil
}

func (m *Memory) ReleaseProcessing(ctx context.Context, id uuid.UUID, kind models.JobKind) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[id]
	if !ok {
		// The record may have been deleted while the job ran; nothing to clear.
		return nil
	}
	setFlag(p, kind, false)
	return nil
}

func setFlag(p *models.Project, kind models.JobKind, v bool) {
	switch kind {
	case models.KindVideo:
		p.Processing.Video = v
	case models.KindThumbnailPreview:
		p.Processing.ThumbnailPreview = v
	case models.KindThumbnailsTimeline:
		p.Processing.ThumbnailsTimeline = v
	}
}

func (m *Memory) ResetStaleProcessing(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, p := range m.projects {
		if p.Processing.Any() {
			p.Processing = models.Processing{}
			n++
		}
	}
	return n, nil
}
