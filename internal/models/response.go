package models

import "time"

type HealthResponse struct {
	Status string `json:"status"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// ProjectResponse is the wire shape of a project. Thumbnail positions are
// rendered as a number or the literal "custom".
type ProjectResponse struct {
	ID               string             `json:"id"`
	Filename         string             `json:"filename"`
	OriginalFilename string             `json:"original_filename"`
	MimeType         string             `json:"mime_type"`
	StorageID        string             `json:"storage_id,omitempty"`
	Metadata         *Metadata          `json:"metadata,omitempty"`
	CreateTime       time.Time          `json:"create_time"`
	Version          int                `json:"version"`
	Parent           string             `json:"parent,omitempty"`
	Processing       Processing         `json:"processing"`
	Thumbnails       ThumbnailsResponse `json:"thumbnails"`
}

type ThumbnailsResponse struct {
	Timeline []ThumbnailResponse `json:"timeline"`
	Preview  *ThumbnailResponse  `json:"preview,omitempty"`
}

type ThumbnailResponse struct {
	Filename  string      `json:"filename"`
	StorageID string      `json:"storage_id"`
	Mimetype  string      `json:"mimetype"`
	Width     int         `json:"width"`
	Height    int         `json:"height"`
	Size      int64       `json:"size"`
	Position  interface{} `json:"position,omitempty"`
}

type ProjectListResponse struct {
	Items []ProjectResponse `json:"_items"`
	Meta  ListMeta          `json:"_meta"`
}

type ListMeta struct {
	Page       int   `json:"page"`
	MaxResults int   `json:"max_results"`
	Total      int64 `json:"total"`
}

// AcceptedResponse acknowledges an asynchronous job. Thumbnails carries the
// existing set when a timeline request is an idempotent read.
type AcceptedResponse struct {
	Processing bool                `json:"processing"`
	Thumbnails []ThumbnailResponse `json:"thumbnails,omitempty"`
}

// NewThumbnailResponse converts a stored ref to its wire shape.
func NewThumbnailResponse(ref ThumbnailRef) ThumbnailResponse {
	return ThumbnailResponse{
		Filename:  ref.Filename,
		StorageID: ref.StorageID,
		Mimetype:  ref.Mimetype,
		Width:     ref.Width,
		Height:    ref.Height,
		Size:      ref.Size,
		Position:  ref.PositionValue(),
	}
}

// NewProjectResponse converts a project to its wire shape.
func NewProjectResponse(p *Project) ProjectResponse {
	resp := ProjectResponse{
		ID:               p.ID.String(),
		Filename:         p.Filename,
		OriginalFilename: p.OriginalFilename,
		MimeType:         p.MimeType,
		StorageID:        p.StorageID,
		Metadata:         p.Metadata,
		CreateTime:       p.CreateTime,
		Version:          p.Version,
		Processing:       p.Processing,
	}
	if p.Parent != nil {
		resp.Parent = p.Parent.String()
	}
	resp.Thumbnails.Timeline = make([]ThumbnailResponse, 0, len(p.Thumbnails.Timeline))
	for _, ref := range p.Thumbnails.Timeline {
		resp.Thumbnails.Timeline = append(resp.Thumbnails.Timeline, NewThumbnailResponse(ref))
	}
	if p.Thumbnails.Preview != nil {
		preview := NewThumbnailResponse(*p.Thumbnails.Preview)
		resp.Thumbnails.Preview = &preview
	}
	return resp
}
