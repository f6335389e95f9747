package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"videoserver/internal/apperr"
	"videoserver/internal/models"
)

// Postgres stores one row per project. The processing flags are plain
// boolean columns so the set-if-clear transition is a single conditional
// UPDATE with no read-then-write window.
type Postgres struct {
	db *sql.DB
}

var _ Registry = (*Postgres)(nil)

func NewPostgres(databaseURL string) (*Postgres, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Postgres{db: db}, nil
}

func (r *Postgres) Close() error { return r.db.Close() }

const projectColumns = `id, filename, original_filename, mime_type, request_address, storage_id,
	metadata, create_time, version, parent,
	processing_video, processing_thumbnail_preview, processing_thumbnails_timeline,
	thumbnails_timeline, thumbnail_preview`

func (r *Postgres) Create(ctx context.Context, p *models.Project) error {
	metadata, err := nullableJSON(p.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}
	timeline, err := json.Marshal(p.Thumbnails.Timeline)
	if err != nil {
		return fmt.Errorf("failed to encode timeline: %w", err)
	}
	preview, err := nullableJSON(p.Thumbnails.Preview)
	if err != nil {
		return fmt.Errorf("failed to encode preview: %w", err)
	}
	var parent interface{}
	if p.Parent != nil {
		parent = *p.Parent
	}
	var storageID interface{}
	if p.StorageID != "" {
		storageID = p.StorageID
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO projects (id, filename, original_filename, mime_type, request_address, storage_id,
			metadata, create_time, version, parent,
			processing_video, processing_thumbnail_preview, processing_thumbnails_timeline,
			thumbnails_timeline, thumbnail_preview)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`, p.ID, p.Filename, p.OriginalFilename, p.MimeType, p.RequestAddress, storageID,
		metadata, p.CreateTime, p.Version, parent,
		p.Processing.Video, p.Processing.ThumbnailPreview, p.Processing.ThumbnailsTimeline,
		timeline, preview)
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}
	return nil
}

func (r *Postgres) Get(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1`, id)
	p, err := scanProject(row)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("project", id.String())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return p, nil
}

func (r *Postgres) List(ctx context.Context, page, perPage int) ([]models.Project, int64, error) {
	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM projects`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count projects: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+projectColumns+` FROM projects
		ORDER BY create_time DESC
		LIMIT $1 OFFSET $2
	`, perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	projects := []models.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, *p)
	}
	return projects, total, rows.Err()
}

func (r *Postgres) Update(ctx context.Context, id uuid.UUID, patch Patch) (*models.Project, error) {
	sets := []string{}
	args := []interface{}{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if patch.StorageID != nil {
		sets = append(sets, "storage_id = "+arg(*patch.StorageID))
	}
	if patch.ClearMetadata {
		sets = append(sets, "metadata = NULL")
	} else if patch.Metadata != nil {
		encoded, err := json.Marshal(patch.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to encode metadata: %w", err)
		}
		sets = append(sets, "metadata = "+arg(encoded))
	}
	if patch.SetTimeline {
		timeline := patch.Timeline
		if timeline == nil {
			timeline = []models.ThumbnailRef{}
		}
		encoded, err := json.Marshal(timeline)
		if err != nil {
			return nil, fmt.Errorf("failed to encode timeline: %w", err)
		}
		sets = append(sets, "thumbnails_timeline = "+arg(encoded))
	}
	if patch.SetPreview {
		if patch.Preview == nil {
			sets = append(sets, "thumbnail_preview = NULL")
		} else {
			encoded, err := json.Marshal(patch.Preview)
			if err != nil {
				return nil, fmt.Errorf("failed to encode preview: %w", err)
			}
			sets = append(sets, "thumbnail_preview = "+arg(encoded))
		}
	}
	if len(sets) == 0 {
		return r.Get(ctx, id)
	}

	query := `UPDATE projects SET ` + strings.Join(sets, ", ") +
		` WHERE id = ` + arg(id) + ` RETURNING ` + projectColumns
	row := r.db.QueryRowContext(ctx, query, args...)
	p, err := scanProject(row)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("project", id.String())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update project: %w", err)
	}
	return p, nil
}

func (r *Postgres) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("project", id.String())
	}
	return nil
}

func flagColumn(kind models.JobKind) (string, error) {
	switch kind {
	case models.KindVideo:
		return "processing_video", nil
	case models.KindThumbnailPreview:
		return "processing_thumbnail_preview", nil
	case models.KindThumbnailsTimeline:
		return "processing_thumbnails_timeline", nil
	}
	return "", fmt.Errorf("unknown job kind %q", kind)
}

// AcquireProcessing is the admission check for starting a job: one atomic
// conditional update, no read-check-then-set window.
func (r *Postgres) AcquireProcessing(ctx context.Context, id uuid.UUID, kind models.JobKind) (bool, error) {
	col, err := flagColumn(kind)
	if err != nil {
		return false, err
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE projects SET `+col+` = TRUE WHERE id = $1 AND `+col+` = FALSE`, id)
	if err != nil {
		return false, fmt.Errorf("failed to acquire %s flag: %w", kind, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to acquire %s flag: %w", kind, err)
	}
	return n == 1, nil
}

func (r *Postgres) ReleaseProcessing(ctx context.Context, id uuid.UUID, kind models.JobKind) error {
	col, err := flagColumn(kind)
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx,
		`UPDATE projects SET `+col+` = FALSE WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to release %s flag: %w", kind, err)
	}
	return nil
}

func (r *Postgres) ResetStaleProcessing(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE projects
		SET processing_video = FALSE,
			processing_thumbnail_preview = FALSE,
			processing_thumbnails_timeline = FALSE
		WHERE processing_video OR processing_thumbnail_preview OR processing_thumbnails_timeline
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to reset stale processing flags: %w", err)
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanProject(row scanner) (*models.Project, error) {
	var (
		p         models.Project
		addr      sql.NullString
		storageID sql.NullString
		metadata  []byte
		parent    uuid.NullUUID
		timeline  []byte
		preview   []byte
	)
	err := row.Scan(&p.ID, &p.Filename, &p.OriginalFilename, &p.MimeType, &addr, &storageID,
		&metadata, &p.CreateTime, &p.Version, &parent,
		&p.Processing.Video, &p.Processing.ThumbnailPreview, &p.Processing.ThumbnailsTimeline,
		&timeline, &preview)
	if err != nil {
		return nil, err
	}
	p.RequestAddress = addr.String
	p.StorageID = storageID.String
	if parent.Valid {
		id := parent.UUID
		p.Parent = &id
	}
	if len(metadata) > 0 {
		p.Metadata = &models.Metadata{}
		if err := json.Unmarshal(metadata, p.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata: %w", err)
		}
	}
	p.Thumbnails.Timeline = []models.ThumbnailRef{}
	if len(timeline) > 0 {
		if err := json.Unmarshal(timeline, &p.Thumbnails.Timeline); err != nil {
			return nil, fmt.Errorf("failed to decode timeline: %w", err)
		}
	}
	if len(preview) > 0 {
		p.Thumbnails.Preview = &models.ThumbnailRef{}
		if err := json.Unmarshal(preview, p.Thumbnails.Preview); err != nil {
			return nil, fmt.Errorf("failed to decode preview: %w", err)
		}
	}
	return &p, nil
}

func nullableJSON(v interface{}) (interface{}, error) {
	switch val := v.(type) {
	case *models.Metadata:
		if val == nil {
			return nil, nil
		}
	case *models.ThumbnailRef:
		if val == nil {
			return nil, nil
		}
	}
	return json.Marshal(v)
}
