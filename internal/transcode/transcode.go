// Package transcode is the seam to the external transcoding tool. The
// orchestration core passes bytes in and gets bytes plus derived metadata
// back; all media math happens behind this interface.
package transcode

import (
	"context"
	"fmt"

	"videoserver/internal/models"
)

// Error is the distinct failure type for transcoding tool invocations.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return fmt.Sprintf("transcode %s: %v", e.Op, e.Err) }

func (e *Error) Unwrap() error { return e.Err }

// Frame is one captured image: bytes plus derived image metadata.
type Frame struct {
	Content  []byte
	Meta     models.Metadata
	Mimetype string
}

// Editor drives the external tool. The timeline sequence is finite and
// consumed fully by the calling job.
type Editor interface {
	Probe(ctx context.Context, content []byte) (*models.Metadata, error)
	Edit(ctx context.Context, content []byte, filename string, spec models.EditSpec) ([]byte, *models.Metadata, error)
	CaptureFrame(ctx context.Context, content []byte, duration, position float64, crop *models.Crop, rotate int) (*Frame, error)
	CaptureTimeline(ctx context.Context, content []byte, duration float64, amount int) ([]Frame, error)
}
