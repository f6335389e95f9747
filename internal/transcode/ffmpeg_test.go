package transcode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"videoserver/internal/models"
)

func TestTrimArgs(t *testing.T) {
	assert.Nil(t, TrimArgs(nil))
	args := TrimArgs(&models.Trim{Start: 2, End: 6})
	assert.Equal(t, []string{"-ss", "2", "-t", "4", "-qscale", "0"}, args)

	args = TrimArgs(&models.Trim{Start: 1.5, End: 4.25})
	assert.Equal(t, []string{"-ss", "1.5", "-t", "2.75", "-qscale", "0"}, args)
}

func TestFilterString(t *testing.T) {
	tests := []struct {
		name string
		spec models.EditSpec
		want string
	}{
		{"empty", models.EditSpec{}, ""},
		{"crop", models.EditSpec{Crop: &models.Crop{X: 10, Y: 20, Width: 640, Height: 360}}, "crop=640:360:10:20"},
		{"scale", models.EditSpec{Scale: 640}, "scale=640:-2"},
		{"odd scale rounded down", models.EditSpec{Scale: 641}, "scale=640:-2"},
		{"rotate 90", models.EditSpec{Rotate: 90}, "transpose=1"},
		{"rotate -90", models.EditSpec{Rotate: -90}, "transpose=2"},
		{"rotate 180", models.EditSpec{Rotate: 180}, "transpose=1,transpose=1"},
		{"rotate -270", models.EditSpec{Rotate: -270}, "transpose=2,transpose=2,transpose=2"},
		{
			"combined order is crop, scale, rotate",
			models.EditSpec{
				Crop:   &models.Crop{X: 0, Y: 0, Width: 640, Height: 360},
				Scale:  320,
				Rotate: 90,
			},
			"crop=640:360:0:0,scale=320:-2,transpose=1",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FilterString(tt.spec))
		})
	}
}

func TestTimelinePositions(t *testing.T) {
	assert.Empty(t, TimelinePositions(10, 0))
	assert.Equal(t, []float64{0}, TimelinePositions(10, 1))

	positions := TimelinePositions(10, 5)
	require.Len(t, positions, 5)
	assert.Equal(t, 0.0, positions[0])
	assert.InDelta(t, 9.95, positions[4], 1e-9)
	for i := 1; i < len(positions); i++ {
		assert.Greater(t, positions[i], positions[i-1], "positions must be strictly increasing")
	}
}
