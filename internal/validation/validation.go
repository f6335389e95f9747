// Package validation holds the pure rules that gate edit and thumbnail
// requests against a project's current metadata. No I/O happens here; a
// request that passes these checks may still fail later inside its job.
package validation

import (
	"videoserver/internal/apperr"
	"videoserver/internal/config"
	"videoserver/internal/models"
)

// Limits carries the configured media bounds the rules check against.
type Limits struct {
	MinTrimDuration    float64
	MinVideoWidth      int
	MaxVideoWidth      int
	MinVideoHeight     int
	MaxVideoHeight     int
	AllowInterpolation bool
	InterpolationLimit int
}

func LimitsFromConfig(cfg *config.Config) Limits {
	return Limits{
		MinTrimDuration:    cfg.MinTrimDuration,
		MinVideoWidth:      cfg.MinVideoWidth,
		MaxVideoWidth:      cfg.MaxVideoWidth,
		MinVideoHeight:     cfg.MinVideoHeight,
		MaxVideoHeight:     cfg.MaxVideoHeight,
		AllowInterpolation: cfg.AllowInterpolation,
		InterpolationLimit: cfg.InterpolationLimit,
	}
}

// Edit checks a full edit request. An empty request is a user error, never a
// silent no-op.
func Edit(spec models.EditSpec, meta *models.Metadata, limits Limits) error {
	if spec.Empty() {
		return apperr.Validationf("edit", "at least one of trim, crop, rotate or scale is required")
	}
	if meta == nil {
		return apperr.Conflictf("project metadata is not available yet")
	}
	if spec.Trim != nil {
		if err := Trim(*spec.Trim, meta.Duration, limits); err != nil {
			return err
		}
	}
	if spec.Crop != nil {
		if err := Crop(*spec.Crop, meta, limits); err != nil {
			return err
		}
	}
	if spec.Rotate != 0 {
		if err := Rotate(spec.Rotate); err != nil {
			return err
		}
	}
	if spec.Scale != 0 {
		if err := Scale(spec.Scale, spec.Crop, meta, limits); err != nil {
			return err
		}
	}
	return nil
}

// Trim checks the trim window against the source duration. An end past the
// source duration is clamped by the caller, not rejected here.
func Trim(trim models.Trim, duration float64, limits Limits) error {
	if trim.Start < 0 {
		return apperr.Validationf("trim.start", "must not be negative")
	}
	if trim.Start >= trim.End {
		return apperr.Validationf("trim", "start must be less than end")
	}
	if trim.End-trim.Start < limits.MinTrimDuration {
		return apperr.Validationf("trim", "trimmed duration must be at least %g seconds", limits.MinTrimDuration)
	}
	if duration-trim.Start < limits.MinTrimDuration {
		return apperr.Validationf("trim.start", "too close to the end of the video")
	}
	if trim.Start == 0 && trim.End == duration {
		return apperr.Validationf("trim", "covers the whole video")
	}
	return nil
}

// Crop checks the crop rectangle against the source dimensions.
func Crop(crop models.Crop, meta *models.Metadata, limits Limits) error {
	if crop.X < 0 {
		return apperr.Validationf("crop.x", "must not be negative")
	}
	if crop.Y < 0 {
		return apperr.Validationf("crop.y", "must not be negative")
	}
	if meta.Width-crop.X < limits.MinVideoWidth {
		return apperr.Validationf("crop.x", "too large")
	}
	if meta.Height-crop.Y < limits.MinVideoHeight {
		return apperr.Validationf("crop.y", "too large")
	}
	if crop.Width < limits.MinVideoWidth || crop.Width > limits.MaxVideoWidth {
		return apperr.Validationf("crop.width", "must be between %d and %d", limits.MinVideoWidth, limits.MaxVideoWidth)
	}
	if crop.Height < limits.MinVideoHeight || crop.Height > limits.MaxVideoHeight {
		return apperr.Validationf("crop.height", "must be between %d and %d", limits.MinVideoHeight, limits.MaxVideoHeight)
	}
	if crop.X+crop.Width > meta.Width {
		return apperr.Validationf("crop.width", "exceeds the video width")
	}
	if crop.Y+crop.Height > meta.Height {
		return apperr.Validationf("crop.height", "exceeds the video height")
	}
	return nil
}

var rotateDegrees = map[int]bool{
	90: true, -90: true, 180: true, -180: true, 270: true, -270: true,
}

// Rotate accepts only quarter-turn multiples.
func Rotate(degrees int) error {
	if !rotateDegrees[degrees] {
		return apperr.Validationf("rotate", "must be one of -270, -180, -90, 90, 180, 270")
	}
	return nil
}

// Scale checks the target width against the effective current width, which
// is the crop width when a crop is part of the same request.
func Scale(width int, crop *models.Crop, meta *models.Metadata, limits Limits) error {
	effective := meta.Width
	if crop != nil {
		effective = crop.Width
	}
	if width == effective {
		return apperr.Validationf("scale", "matches the current width")
	}
	if width < limits.MinVideoWidth {
		return apperr.Validationf("scale", "must be at least %d", limits.MinVideoWidth)
	}
	if width > effective {
		if !limits.AllowInterpolation {
			return apperr.Validationf("scale", "upscaling is not allowed")
		}
		if width > limits.InterpolationLimit {
			return apperr.Validationf("scale", "upscaling is limited to %d", limits.InterpolationLimit)
		}
	}
	if width > limits.MaxVideoWidth {
		return apperr.Validationf("scale", "must be at most %d", limits.MaxVideoWidth)
	}
	return nil
}

// PreviewPosition clamps a requested capture position into the valid range.
func PreviewPosition(position, duration float64) float64 {
	if position < 0 {
		return 0
	}
	if position >= duration {
		return duration - 0.1
	}
	return position
}

// TimelineAmount checks the requested timeline thumbnail count.
func TimelineAmount(amount int) error {
	if amount < 1 {
		return apperr.Validationf("amount", "must be at least 1")
	}
	return nil
}
