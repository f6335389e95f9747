package registry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"videoserver/internal/apperr"
	"videoserver/internal/models"
)

func newProject() *models.Project {
	return &models.Project{
		ID:               uuid.New(),
		Filename:         "abc.mp4",
		OriginalFilename: "holiday.mp4",
		MimeType:         "video/mp4",
		StorageID:        "2026/3/14/x/abc.mp4",
		Metadata:         &models.Metadata{CodecName: "h264", Width: 1920, Height: 1080, Duration: 15},
		CreateTime:       time.Now().UTC(),
		Version:          1,
		Thumbnails:       models.Thumbnails{Timeline: []models.ThumbnailRef{}},
	}
}

func TestMemoryCreateGet(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	p := newProject()
	require.NoError(t, m.Create(ctx, p))

	got, err := m.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)
	assert.Equal(t, 15.0, got.Metadata.Duration)

	// returned record is a copy, mutating it must not leak back
	got.Metadata.Duration = 99
	again, err := m.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 15.0, again.Metadata.Duration)
}

func TestMemoryGetUnknown(t *testing.T) {
	m := NewMemory()
	_, err := m.Get(context.Background(), uuid.New())
	var nferr *apperr.NotFoundError
	require.ErrorAs(t, err, &nferr)
}

func TestMemoryUpdatePatch(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	p := newProject()
	require.NoError(t, m.Create(ctx, p))

	position := 3.5
	updated, err := m.Update(ctx, p.ID, Patch{
		Metadata:   &models.Metadata{CodecName: "h264", Duration: 4},
		SetPreview: true,
		Preview:    &models.ThumbnailRef{Filename: "p.png", StorageID: "x/p.png", Position: &position},
	})
	require.NoError(t, err)
	assert.Equal(t, 4.0, updated.Metadata.Duration)
	require.NotNil(t, updated.Thumbnails.Preview)
	assert.Equal(t, 3.5, *updated.Thumbnails.Preview.Position)

	// clearing the preview
	updated, err = m.Update(ctx, p.ID, Patch{SetPreview: true})
	require.NoError(t, err)
	assert.Nil(t, updated.Thumbnails.Preview)

	// empty patch leaves everything alone
	updated, err = m.Update(ctx, p.ID, Patch{})
	require.NoError(t, err)
	assert.Equal(t, 4.0, updated.Metadata.Duration)
}

func TestMemoryClearMetadata(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	p := newProject()
	require.NoError(t, m.Create(ctx, p))

	updated, err := m.Update(ctx, p.ID, Patch{ClearMetadata: true})
	require.NoError(t, err)
	assert.Nil(t, updated.Metadata)
}

func TestMemoryDelete(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	p := newProject()
	require.NoError(t, m.Create(ctx, p))
	require.NoError(t, m.Delete(ctx, p.ID))

	var nferr *apperr.NotFoundError
	_, err := m.Get(ctx, p.ID)
	require.ErrorAs(t, err, &nferr)
	assert.ErrorAs(t, m.Delete(ctx, p.ID), &nferr)
}

func TestMemoryListPagination(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, m.Create(ctx, newProject()))
	}

	page1, total, err := m.List(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	assert.Len(t, page1, 2)

	page3, _, err := m.List(ctx, 3, 2)
	require.NoError(t, err)
	assert.Len(t, page3, 1)

	empty, _, err := m.List(ctx, 4, 2)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestAcquireProcessingIsExclusivePerKind(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	p := newProject()
	require.NoError(t, m.Create(ctx, p))

	ok, err := m.AcquireProcessing(ctx, p.ID, models.KindVideo)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = m.AcquireProcessing(ctx, p.ID, models.KindVideo)
	require.NoError(t, err)
	assert.False(t, ok, "second acquire of the same kind must fail")

	// a different kind is independent
	ok, err = m.AcquireProcessing(ctx, p.ID, models.KindThumbnailsTimeline)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, m.ReleaseProcessing(ctx, p.ID, models.KindVideo))
	ok, err = m.AcquireProcessing(ctx, p.ID, models.KindVideo)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAcquireProcessingConcurrent(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	p := newProject()
	require.NoError(t, m.Create(ctx, p))

	const attempts = 32
	var wg sync.WaitGroup
	wins := make(chan bool, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := m.AcquireProcessing(ctx, p.ID, models.KindVideo)
			if err == nil && ok {
				wins <- true
			}
		}()
	}
	wg.Wait()
	close(wins)

	var count int
	for range wins {
		count++
	}
	assert.Equal(t, 1, count, "exactly one concurrent acquire may win")
}

func TestReleaseProcessingAfterDelete(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	p := newProject()
	require.NoError(t, m.Create(ctx, p))
	require.NoError(t, m.Delete(ctx, p.ID))
	assert.NoError(t, m.ReleaseProcessing(ctx, p.ID, models.KindVideo))
}

func TestResetStaleProcessing(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	busy := newProject()
	idle := newProject()
	require.NoError(t, m.Create(ctx, busy))
	require.NoError(t, m.Create(ctx, idle))

	_, err := m.AcquireProcessing(ctx, busy.ID, models.KindThumbnailPreview)
	require.NoError(t, err)

	n, err := m.ResetStaleProcessing(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := m.Get(ctx, busy.ID)
	require.NoError(t, err)
	assert.False(t, got.Processing.Any())
}
