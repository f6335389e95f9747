package jobs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"videoserver/internal/activity"
	"videoserver/internal/models"
	"videoserver/internal/registry"
	"videoserver/internal/storage"
	"videoserver/internal/transcode"
)

type stubEditor struct {
	mu         sync.Mutex
	editCalls  int
	failEdits  int
	frameCalls int
}

func (e *stubEditor) Probe(ctx context.Context, content []byte) (*models.Metadata, error) {
	return &models.Metadata{CodecName: "h264", Width: 1920, Height: 1080, Duration: 15, Size: int64(len(content))}, nil
}

func (e *stubEditor) Edit(ctx context.Context, content []byte, filename string, spec models.EditSpec) ([]byte, *models.Metadata, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.editCalls++
	if e.editCalls <= e.failEdits {
		return nil, nil, &transcode.Error{Op: "edit", Err: errors.New("tool crashed")}
	}
	duration := 15.0
	if spec.Trim != nil {
		duration = spec.Trim.End - spec.Trim.Start
	}
	return []byte("edited:" + string(content)), &models.Metadata{
		CodecName: "h264", Width: 1920, Height: 1080, Duration: duration, Size: 6,
	}, nil
}

func (e *stubEditor) CaptureFrame(ctx context.Context, content []byte, duration, position float64, crop *models.Crop, rotate int) (*transcode.Frame, error) {
	e.mu.Lock()
	e.frameCalls++
	e.mu.Unlock()
	return &transcode.Frame{
		Content:  []byte(fmt.Sprintf("frame@%g", position)),
		Meta:     models.Metadata{CodecName: "png", Width: 320, Height: 180},
		Mimetype: "image/png",
	}, nil
}

func (e *stubEditor) CaptureTimeline(ctx context.Context, content []byte, duration float64, amount int) ([]transcode.Frame, error) {
	frames := make([]transcode.Frame, 0, amount)
	for i := 0; i < amount; i++ {
		frames = append(frames, transcode.Frame{
			Content:  []byte(fmt.Sprintf("frame-%d", i)),
			Meta:     models.Metadata{CodecName: "png", Width: 320, Height: 180},
			Mimetype: "image/png",
		})
	}
	return frames, nil
}

// flakyStorage fails a fixed number of PutThumbnail calls before recovering.
type flakyStorage struct {
	storage.Storage
	mu       sync.Mutex
	putFails int
}

func (s *flakyStorage) PutThumbnail(ctx context.Context, content []byte, filename, owner string) (string, error) {
	s.mu.Lock()
	fail := s.putFails > 0
	if fail {
		s.putFails--
	}
	s.mu.Unlock()
	if fail {
		return "", &storage.Error{Op: "put", StorageID: filename, Err: errors.New("disk full")}
	}
	return s.Storage.PutThumbnail(ctx, content, filename, owner)
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

type env struct {
	registry *registry.Memory
	storage  *storage.FS
	editor   *stubEditor
	runner   *Runner
	project  *models.Project
}

func newEnv(t *testing.T) *env {
	t.Helper()
	log := testLogger()
	reg := registry.NewMemory()
	store := storage.NewFS(t.TempDir(), log)

	ctx := context.Background()
	id := uuid.New()
	storageID, err := store.Put(ctx, []byte("original video"), "abc123.mp4", id)
	require.NoError(t, err)

	project := &models.Project{
		ID:               id,
		Filename:         "abc123.mp4",
		OriginalFilename: "holiday.mp4",
		MimeType:         "video/mp4",
		StorageID:        storageID,
		Metadata:         &models.Metadata{CodecName: "h264", Width: 1920, Height: 1080, Duration: 15, Size: 14},
		CreateTime:       time.Now().UTC(),
		Version:          2,
	}
	require.NoError(t, reg.Create(ctx, project))

	editor := &stubEditor{}
	return &env{
		registry: reg,
		storage:  store,
		editor:   editor,
		runner:   NewRunner(reg, 3, time.Millisecond, log),
		project:  project,
	}
}

func (e *env) acquire(t *testing.T, kind models.JobKind) {
	t.Helper()
	ok, err := e.registry.AcquireProcessing(context.Background(), e.project.ID, kind)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestEditJobSuccess(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	// pre-existing timeline thumbnail that the edit must invalidate
	thumbID, err := e.storage.PutThumbnail(ctx, []byte("old"), "abc123_timeline_0-1.png", e.project.StorageID)
	require.NoError(t, err)
	_, err = e.registry.Update(ctx, e.project.ID, registry.Patch{
		SetTimeline: true,
		Timeline:    []models.ThumbnailRef{{Filename: "abc123_timeline_0-1.png", StorageID: thumbID}},
	})
	require.NoError(t, err)
	snapshot, err := e.registry.Get(ctx, e.project.ID)
	require.NoError(t, err)

	e.acquire(t, models.KindVideo)
	e.runner.Run(ctx, &EditJob{
		Snapshot: snapshot,
		Spec:     models.EditSpec{Trim: &models.Trim{Start: 2, End: 6}},
		Storage:  e.storage,
		Registry: e.registry,
		Editor:   e.editor,
		Events:   activity.NewNoop(),
		Log:      testLogger(),
	})

	got, err := e.registry.Get(ctx, e.project.ID)
	require.NoError(t, err)
	assert.False(t, got.Processing.Video)
	require.NotNil(t, got.Metadata)
	assert.Equal(t, 4.0, got.Metadata.Duration)
	assert.Empty(t, got.Thumbnails.Timeline)

	content, err := e.storage.Get(ctx, e.project.StorageID)
	require.NoError(t, err)
	assert.Equal(t, "edited:original video", string(content))
	assert.False(t, e.storage.Exists(thumbID))
}

func TestEditJobRecoversAfterTransientFailure(t *testing.T) {
	e := newEnv(t)
	e.editor.failEdits = 2
	ctx := context.Background()

	e.acquire(t, models.KindVideo)
	e.runner.Run(ctx, &EditJob{
		Snapshot: e.project,
		Spec:     models.EditSpec{Trim: &models.Trim{Start: 2, End: 6}},
		Storage:  e.storage,
		Registry: e.registry,
		Editor:   e.editor,
		Events:   activity.NewNoop(),
		Log:      testLogger(),
	})

	got, err := e.registry.Get(ctx, e.project.ID)
	require.NoError(t, err)
	assert.False(t, got.Processing.Video)
	assert.Equal(t, 4.0, got.Metadata.Duration)
	assert.Equal(t, 3, e.editor.editCalls)
}

func TestEditJobRollbackLeavesStateUnchanged(t *testing.T) {
	e := newEnv(t)
	e.editor.failEdits = 100
	ctx := context.Background()

	e.acquire(t, models.KindVideo)
	// the dispatcher nulls metadata before the job runs
	_, err := e.registry.Update(ctx, e.project.ID, registry.Patch{ClearMetadata: true})
	require.NoError(t, err)

	e.runner.Run(ctx, &EditJob{
		Snapshot: e.project,
		Spec:     models.EditSpec{Trim: &models.Trim{Start: 2, End: 6}},
		Storage:  e.storage,
		Registry: e.registry,
		Editor:   e.editor,
		Events:   activity.NewNoop(),
		Log:      testLogger(),
	})

	got, err := e.registry.Get(ctx, e.project.ID)
	require.NoError(t, err)
	assert.False(t, got.Processing.Video, "flag must end false even after rollback")
	require.NotNil(t, got.Metadata, "rollback must restore the nulled metadata")
	assert.Equal(t, 15.0, got.Metadata.Duration, "metadata must be untouched")

	content, err := e.storage.Get(ctx, e.project.StorageID)
	require.NoError(t, err)
	assert.Equal(t, "original video", string(content), "bytes must be untouched")
}

func TestTimelineJobSuccess(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.acquire(t, models.KindThumbnailsTimeline)
	e.runner.Run(ctx, &TimelineJob{
		Snapshot: e.project,
		Amount:   3,
		Storage:  e.storage,
		Registry: e.registry,
		Editor:   e.editor,
		Events:   activity.NewNoop(),
		Log:      testLogger(),
	})

	got, err := e.registry.Get(ctx, e.project.ID)
	require.NoError(t, err)
	assert.False(t, got.Processing.ThumbnailsTimeline)
	require.Len(t, got.Thumbnails.Timeline, 3)

	seen := map[string]bool{}
	for _, ref := range got.Thumbnails.Timeline {
		assert.False(t, seen[ref.Filename], "filenames must be distinct")
		seen[ref.Filename] = true
		assert.True(t, e.storage.Exists(ref.StorageID))
		assert.Equal(t, "image/png", ref.Mimetype)
	}
}

func TestTimelineJobReplacesOldSet(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	oldID, err := e.storage.PutThumbnail(ctx, []byte("old"), "abc123_timeline_0-1.png", e.project.StorageID)
	require.NoError(t, err)
	_, err = e.registry.Update(ctx, e.project.ID, registry.Patch{
		SetTimeline: true,
		Timeline:    []models.ThumbnailRef{{Filename: "abc123_timeline_0-1.png", StorageID: oldID}},
	})
	require.NoError(t, err)
	snapshot, err := e.registry.Get(ctx, e.project.ID)
	require.NoError(t, err)

	e.acquire(t, models.KindThumbnailsTimeline)
	e.runner.Run(ctx, &TimelineJob{
		Snapshot: snapshot,
		Amount:   2,
		Storage:  e.storage,
		Registry: e.registry,
		Editor:   e.editor,
		Events:   activity.NewNoop(),
		Log:      testLogger(),
	})

	got, err := e.registry.Get(ctx, e.project.ID)
	require.NoError(t, err)
	require.Len(t, got.Thumbnails.Timeline, 2)
	assert.False(t, e.storage.Exists(oldID), "replaced blobs are deleted")
}

func TestTimelineJobRetryDoesNotLeakBlobs(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	flaky := &flakyStorage{Storage: e.storage, putFails: 2}

	e.acquire(t, models.KindThumbnailsTimeline)
	e.runner.Run(ctx, &TimelineJob{
		Snapshot: e.project,
		Amount:   3,
		Storage:  flaky,
		Registry: e.registry,
		Editor:   e.editor,
		Events:   activity.NewNoop(),
		Log:      testLogger(),
	})

	got, err := e.registry.Get(ctx, e.project.ID)
	require.NoError(t, err)
	assert.False(t, got.Processing.ThumbnailsTimeline)
	require.Len(t, got.Thumbnails.Timeline, 3)
	for _, ref := range got.Thumbnails.Timeline {
		assert.True(t, e.storage.Exists(ref.StorageID))
	}
}

func TestPreviewJobSuccess(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.acquire(t, models.KindThumbnailPreview)
	e.runner.Run(ctx, &PreviewJob{
		Snapshot: e.project,
		Position: 7.5,
		Storage:  e.storage,
		Registry: e.registry,
		Editor:   e.editor,
		Events:   activity.NewNoop(),
		Log:      testLogger(),
	})

	got, err := e.registry.Get(ctx, e.project.ID)
	require.NoError(t, err)
	assert.False(t, got.Processing.ThumbnailPreview)
	require.NotNil(t, got.Thumbnails.Preview)
	require.NotNil(t, got.Thumbnails.Preview.Position)
	assert.Equal(t, 7.5, *got.Thumbnails.Preview.Position)
	assert.True(t, e.storage.Exists(got.Thumbnails.Preview.StorageID))
}

func TestPreviewJobReplacesOldPreview(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	oldID, err := e.storage.PutThumbnail(ctx, []byte("old"), "abc123_preview-1_1.png", e.project.StorageID)
	require.NoError(t, err)
	position := 1.0
	_, err = e.registry.Update(ctx, e.project.ID, registry.Patch{
		SetPreview: true,
		Preview:    &models.ThumbnailRef{Filename: "abc123_preview-1_1.png", StorageID: oldID, Position: &position},
	})
	require.NoError(t, err)
	snapshot, err := e.registry.Get(ctx, e.project.ID)
	require.NoError(t, err)

	e.acquire(t, models.KindThumbnailPreview)
	e.runner.Run(ctx, &PreviewJob{
		Snapshot: snapshot,
		Position: 3,
		Storage:  e.storage,
		Registry: e.registry,
		Editor:   e.editor,
		Events:   activity.NewNoop(),
		Log:      testLogger(),
	})

	got, err := e.registry.Get(ctx, e.project.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Thumbnails.Preview)
	assert.Equal(t, 3.0, *got.Thumbnails.Preview.Position)
	assert.False(t, e.storage.Exists(oldID))
}

func TestPoolRunsSubmittedJobs(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	pool := NewPool(2, 10, e.runner, testLogger())
	pool.Start(ctx)
	defer pool.Stop()

	e.acquire(t, models.KindThumbnailsTimeline)
	require.NoError(t, pool.Submit(&TimelineJob{
		Snapshot: e.project,
		Amount:   2,
		Storage:  e.storage,
		Registry: e.registry,
		Editor:   e.editor,
		Events:   activity.NewNoop(),
		Log:      testLogger(),
	}))

	require.Eventually(t, func() bool {
		got, err := e.registry.Get(ctx, e.project.ID)
		return err == nil && !got.Processing.ThumbnailsTimeline && len(got.Thumbnails.Timeline) == 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestPoolSubmitAfterStop(t *testing.T) {
	e := newEnv(t)
	pool := NewPool(1, 1, e.runner, testLogger())
	pool.Start(context.Background())
	pool.Stop()
	err := pool.Submit(&TimelineJob{Snapshot: e.project})
	assert.ErrorIs(t, err, ErrStopped)
}

func TestPoolQueueFull(t *testing.T) {
	e := newEnv(t)
	// never started, so nothing drains the queue
	pool := NewPool(1, 1, e.runner, testLogger())
	require.NoError(t, pool.Submit(&TimelineJob{Snapshot: e.project}))
	assert.ErrorIs(t, pool.Submit(&TimelineJob{Snapshot: e.project}), ErrQueueFull)
}
