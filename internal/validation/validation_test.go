package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"videoserver/internal/apperr"
	"videoserver/internal/models"
)

func testLimits() Limits {
	return Limits{
		MinTrimDuration:    2,
		MinVideoWidth:      320,
		MaxVideoWidth:      3840,
		MinVideoHeight:     180,
		MaxVideoHeight:     2160,
		AllowInterpolation: true,
		InterpolationLimit: 1280,
	}
}

func testMeta() *models.Metadata {
	return &models.Metadata{Width: 1920, Height: 1080, Duration: 15}
}

func TestTrim(t *testing.T) {
	limits := testLimits()

	tests := []struct {
		name    string
		trim    models.Trim
		wantErr string
	}{
		{"valid window", models.Trim{Start: 2, End: 6}, ""},
		{"start at zero", models.Trim{Start: 0, End: 10}, ""},
		{"negative start", models.Trim{Start: -1, End: 5}, "trim.start"},
		{"start after end", models.Trim{Start: 6, End: 2}, "trim"},
		{"start equals end", models.Trim{Start: 5, End: 5}, "trim"},
		{"window too short", models.Trim{Start: 2, End: 3.5}, "trim"},
		{"start too close to the end", models.Trim{Start: 14, End: 16}, "trim.start"},
		{"full range no-op", models.Trim{Start: 0, End: 15}, "trim"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Trim(tt.trim, 15, limits)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			var verr *apperr.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.wantErr, verr.Field)
		})
	}
}

func TestCrop(t *testing.T) {
	limits := testLimits()
	meta := testMeta()

	tests := []struct {
		name    string
		crop    models.Crop
		wantErr string
	}{
		{"valid", models.Crop{X: 100, Y: 100, Width: 640, Height: 360}, ""},
		{"full frame", models.Crop{X: 0, Y: 0, Width: 1920, Height: 1080}, ""},
		{"negative x", models.Crop{X: -1, Y: 0, Width: 640, Height: 360}, "crop.x"},
		{"x too large", models.Crop{X: 1700, Y: 0, Width: 320, Height: 360}, "crop.x"},
		{"y too large", models.Crop{X: 0, Y: 1000, Width: 640, Height: 180}, "crop.y"},
		{"width below minimum", models.Crop{X: 0, Y: 0, Width: 200, Height: 360}, "crop.width"},
		{"width past the frame edge", models.Crop{X: 1400, Y: 0, Width: 640, Height: 360}, "crop.width"},
		{"height past the frame edge", models.Crop{X: 0, Y: 800, Width: 640, Height: 360}, "crop.height"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Crop(tt.crop, meta, limits)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			var verr *apperr.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.wantErr, verr.Field)
		})
	}
}

func TestRotate(t *testing.T) {
	for _, degrees := range []int{90, -90, 180, -180, 270, -270} {
		assert.NoError(t, Rotate(degrees))
	}
	for _, degrees := range []int{0, 45, 120, 360, -45} {
		assert.Error(t, Rotate(degrees))
	}
}

func TestScale(t *testing.T) {
	limits := testLimits()
	meta := testMeta()

	t.Run("downscale", func(t *testing.T) {
		assert.NoError(t, Scale(640, nil, meta, limits))
	})
	t.Run("same width rejected", func(t *testing.T) {
		assert.Error(t, Scale(1920, nil, meta, limits))
	})
	t.Run("below minimum", func(t *testing.T) {
		assert.Error(t, Scale(100, nil, meta, limits))
	})
	t.Run("crop changes the effective width", func(t *testing.T) {
		crop := &models.Crop{X: 0, Y: 0, Width: 640, Height: 360}
		assert.Error(t, Scale(640, crop, meta, limits))
		assert.NoError(t, Scale(320, crop, meta, limits))
	})
	t.Run("upscale within interpolation limit", func(t *testing.T) {
		crop := &models.Crop{X: 0, Y: 0, Width: 640, Height: 360}
		assert.NoError(t, Scale(1280, crop, meta, limits))
	})
	t.Run("upscale past interpolation limit", func(t *testing.T) {
		crop := &models.Crop{X: 0, Y: 0, Width: 640, Height: 360}
		assert.Error(t, Scale(1600, crop, meta, limits))
	})
	t.Run("upscale with interpolation disabled", func(t *testing.T) {
		strict := limits
		strict.AllowInterpolation = false
		crop := &models.Crop{X: 0, Y: 0, Width: 640, Height: 360}
		assert.Error(t, Scale(1280, crop, meta, strict))
	})
}

func TestEdit(t *testing.T) {
	limits := testLimits()
	meta := testMeta()

	t.Run("empty request", func(t *testing.T) {
		err := Edit(models.EditSpec{}, meta, limits)
		var verr *apperr.ValidationError
		require.ErrorAs(t, err, &verr)
	})
	t.Run("missing metadata", func(t *testing.T) {
		err := Edit(models.EditSpec{Rotate: 90}, nil, limits)
		var cerr *apperr.ConflictError
		require.ErrorAs(t, err, &cerr)
	})
	t.Run("combined request", func(t *testing.T) {
		spec := models.EditSpec{
			Trim:   &models.Trim{Start: 2, End: 6},
			Crop:   &models.Crop{X: 0, Y: 0, Width: 640, Height: 360},
			Rotate: 90,
			Scale:  480,
		}
		assert.NoError(t, Edit(spec, meta, limits))
	})
	t.Run("one bad field fails the request", func(t *testing.T) {
		spec := models.EditSpec{
			Trim:   &models.Trim{Start: 2, End: 6},
			Rotate: 45,
		}
		assert.Error(t, Edit(spec, meta, limits))
	})
}

func TestPreviewPosition(t *testing.T) {
	assert.Equal(t, 5.0, PreviewPosition(5, 15))
	assert.Equal(t, 0.0, PreviewPosition(-2, 15))
	assert.InDelta(t, 14.9, PreviewPosition(15, 15), 1e-9)
	assert.InDelta(t, 14.9, PreviewPosition(20, 15), 1e-9)
}

func TestTimelineAmount(t *testing.T) {
	assert.NoError(t, TimelineAmount(1))
	assert.NoError(t, TimelineAmount(40))
	assert.Error(t, TimelineAmount(0))
	assert.Error(t, TimelineAmount(-3))
}
