package models

import (
	"time"

	"github.com/google/uuid"
)

// JobKind identifies one of the three background job kinds. Each kind owns
// exactly one processing flag on a project.
type JobKind string

const (
	KindVideo              JobKind = "video"
	KindThumbnailPreview   JobKind = "thumbnail_preview"
	KindThumbnailsTimeline JobKind = "thumbnails_timeline"
)

// Metadata holds media properties derived by the transcoding tool.
// It is nil on a project while an edit job is recomputing it.
type Metadata struct {
	CodecName     string  `json:"codec_name"`
	CodecLongName string  `json:"codec_long_name,omitempty"`
	Width         int     `json:"width"`
	Height        int     `json:"height"`
	Duration      float64 `json:"duration"`
	BitRate       int64   `json:"bit_rate,omitempty"`
	NbFrames      int64   `json:"nb_frames,omitempty"`
	RFrameRate    string  `json:"r_frame_rate,omitempty"`
	FormatName    string  `json:"format_name,omitempty"`
	Size          int64   `json:"size"`
}

// Processing is the set of per-job-kind advisory locks.
type Processing struct {
	Video              bool `json:"video"`
	ThumbnailPreview   bool `json:"thumbnail_preview"`
	ThumbnailsTimeline bool `json:"thumbnails_timeline"`
}

// Flag returns the flag value for a job kind.
func (p Processing) Flag(kind JobKind) bool {
	switch kind {
	case KindVideo:
		return p.Video
	case KindThumbnailPreview:
		return p.ThumbnailPreview
	case KindThumbnailsTimeline:
		return p.ThumbnailsTimeline
	}
	return false
}

// Any reports whether any job kind is currently in flight.
func (p Processing) Any() bool {
	return p.Video || p.ThumbnailPreview || p.ThumbnailsTimeline
}

// ThumbnailRef points at a thumbnail blob in storage. Position is set only
// for captured preview thumbnails; Custom marks user-uploaded previews.
type ThumbnailRef struct {
	Filename  string   `json:"filename"`
	StorageID string   `json:"storage_id"`
	Mimetype  string   `json:"mimetype"`
	Width     int      `json:"width"`
	Height    int      `json:"height"`
	Size      int64    `json:"size"`
	Position  *float64 `json:"position,omitempty"`
	Custom    bool     `json:"custom,omitempty"`
}

// PositionValue renders the wire form of the position: a number, the
// literal "custom", or nil.
func (t ThumbnailRef) PositionValue() interface{} {
	if t.Custom {
		return "custom"
	}
	if t.Position != nil {
		return *t.Position
	}
	return nil
}

// Thumbnails is a project's thumbnail inventory. Timeline is always replaced
// wholesale, never patched entry by entry.
type Thumbnails struct {
	Timeline []ThumbnailRef `json:"timeline"`
	Preview  *ThumbnailRef  `json:"preview,omitempty"`
}

// Project is one version of an uploaded video plus its derived artifacts.
// Version 1 is the immutable original; versions >= 2 are editable duplicates
// linked to their parent.
type Project struct {
	ID               uuid.UUID  `json:"id"`
	Filename         string     `json:"filename"`
	OriginalFilename string     `json:"original_filename"`
	MimeType         string     `json:"mime_type"`
	RequestAddress   string     `json:"request_address,omitempty"`
	StorageID        string     `json:"storage_id,omitempty"`
	Metadata         *Metadata  `json:"metadata,omitempty"`
	CreateTime       time.Time  `json:"create_time"`
	Version          int        `json:"version"`
	Parent           *uuid.UUID `json:"parent,omitempty"`
	Processing       Processing `json:"processing"`
	Thumbnails       Thumbnails `json:"thumbnails"`
}

// Clone returns a deep copy, so snapshots handed to jobs and records held by
// the in-memory registry never alias caller-visible state.
func (p *Project) Clone() *Project {
	c := *p
	if p.Metadata != nil {
		m := *p.Metadata
		c.Metadata = &m
	}
	if p.Parent != nil {
		id := *p.Parent
		c.Parent = &id
	}
	if p.Thumbnails.Preview != nil {
		ref := *p.Thumbnails.Preview
		if p.Thumbnails.Preview.Position != nil {
			pos := *p.Thumbnails.Preview.Position
			ref.Position = &pos
		}
		c.Thumbnails.Preview = &ref
	}
	if p.Thumbnails.Timeline != nil {
		c.Thumbnails.Timeline = make([]ThumbnailRef, len(p.Thumbnails.Timeline))
		copy(c.Thumbnails.Timeline, p.Thumbnails.Timeline)
	}
	return &c
}
