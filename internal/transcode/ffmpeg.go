package transcode

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"videoserver/internal/models"
)

// FFmpeg runs the ffmpeg/ffprobe binaries over temp files.
type FFmpeg struct {
	Threads string
	Preset  string
	log     *logrus.Logger
}

var _ Editor = (*FFmpeg)(nil)

func NewFFmpeg(threads, preset string, log *logrus.Logger) *FFmpeg {
	return &FFmpeg{Threads: threads, Preset: preset, log: log}
}

type ffprobeOutput struct {
	Streams []struct {
		CodecType     string `json:"codec_type"`
		CodecName     string `json:"codec_name"`
		CodecLongName string `json:"codec_long_name"`
		Width         int    `json:"width"`
		Height        int    `json:"height"`
		NbFrames      string `json:"nb_frames"`
		RFrameRate    string `json:"r_frame_rate"`
	} `json:"streams"`
	Format struct {
		Duration   string `json:"duration"`
		BitRate    string `json:"bit_rate"`
		Size       string `json:"size"`
		FormatName string `json:"format_name"`
	} `json:"format"`
}

func (f *FFmpeg) Probe(ctx context.Context, content []byte) (*models.Metadata, error) {
	path, cleanup, err := tempFile(content, ".tmp")
	if err != nil {
		return nil, &Error{Op: "probe", Err: err}
	}
	defer cleanup()
	return f.probeFile(ctx, path)
}

func (f *FFmpeg) probeFile(ctx context.Context, path string) (*models.Metadata, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, &Error{Op: "probe", Err: fmt.Errorf("%v: %s", err, stderr.String())}
	}

	var out ffprobeOutput
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		return nil, &Error{Op: "probe", Err: fmt.Errorf("failed to decode ffprobe output: %w", err)}
	}

	meta := &models.Metadata{FormatName: out.Format.FormatName}
	meta.Duration, _ = strconv.ParseFloat(out.Format.Duration, 64)
	meta.BitRate, _ = strconv.ParseInt(out.Format.BitRate, 10, 64)
	meta.Size, _ = strconv.ParseInt(out.Format.Size, 10, 64)
	for _, s := range out.Streams {
		if s.CodecType != "video" {
			continue
		}
		meta.CodecName = s.CodecName
		meta.CodecLongName = s.CodecLongName
		meta.Width = s.Width
		meta.Height = s.Height
		meta.RFrameRate = s.RFrameRate
		meta.NbFrames, _ = strconv.ParseInt(s.NbFrames, 10, 64)
		break
	}
	if meta.CodecName == "" && len(out.Streams) > 0 {
		meta.CodecName = out.Streams[0].CodecName
	}
	return meta, nil
}

func (f *FFmpeg) Edit(ctx context.Context, content []byte, filename string, spec models.EditSpec) ([]byte, *models.Metadata, error) {
	ext := filepath.Ext(filename)
	if ext == "" {
		ext = ".mp4"
	}
	pathInput, cleanupIn, err := tempFile(content, ext)
	if err != nil {
		return nil, nil, &Error{Op: "edit", Err: err}
	}
	defer cleanupIn()
	pathOutput := strings.TrimSuffix(pathInput, ext) + "_edit" + ext
	defer os.Remove(pathOutput)

	args := []string{"-y", "-i", pathInput}
	args = append(args, TrimArgs(spec.Trim)...)
	if filter := FilterString(spec); filter != "" {
		args = append(args, "-filter:v", filter)
	}
	args = append(args, "-threads", f.Threads, "-preset", f.Preset, pathOutput)

	if err := f.run(ctx, "edit", args); err != nil {
		return nil, nil, err
	}

	edited, err := os.ReadFile(pathOutput)
	if err != nil {
		return nil, nil, &Error{Op: "edit", Err: err}
	}
	meta, err := f.probeFile(ctx, pathOutput)
	if err != nil {
		return nil, nil, err
	}
	return edited, meta, nil
}

func (f *FFmpeg) CaptureFrame(ctx context.Context, content []byte, duration, position float64, crop *models.Crop, rotate int) (*Frame, error) {
	if position >= duration {
		position = duration - 0.1
	}
	if position < 0 {
		position = 0
	}

	pathInput, cleanup, err := tempFile(content, ".tmp")
	if err != nil {
		return nil, &Error{Op: "capture_frame", Err: err}
	}
	defer cleanup()
	pathOutput := pathInput + "_preview.png"
	defer os.Remove(pathOutput)

	args := []string{"-y", "-ss", formatSeconds(position), "-i", pathInput, "-frames:v", "1"}
	if filter := FilterString(models.EditSpec{Crop: crop, Rotate: rotate}); filter != "" {
		args = append(args, "-filter:v", filter)
	}
	args = append(args, pathOutput)

	if err := f.run(ctx, "capture_frame", args); err != nil {
		return nil, err
	}
	return f.readFrame(ctx, pathOutput)
}

func (f *FFmpeg) CaptureTimeline(ctx context.Context, content []byte, duration float64, amount int) ([]Frame, error) {
	pathInput, cleanup, err := tempFile(content, ".tmp")
	if err != nil {
		return nil, &Error{Op: "capture_timeline", Err: err}
	}
	defer cleanup()

	frames := make([]Frame, 0, amount)
	for i, position := range TimelinePositions(duration, amount) {
		pathOutput := fmt.Sprintf("%s_timeline_%d.png", pathInput, i)
		args := []string{"-y", "-ss", formatSeconds(position), "-i", pathInput, "-frames:v", "1", pathOutput}
		if err := f.run(ctx, "capture_timeline", args); err != nil {
			os.Remove(pathOutput)
			return nil, err
		}
		frame, err := f.readFrame(ctx, pathOutput)
		os.Remove(pathOutput)
		if err != nil {
			return nil, err
		}
		frames = append(frames, *frame)
	}
	return frames, nil
}

func (f *FFmpeg) readFrame(ctx context.Context, path string) (*Frame, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{Op: "capture", Err: err}
	}
	meta, err := f.probeFile(ctx, path)
	if err != nil {
		return nil, err
	}
	return &Frame{Content: content, Meta: *meta, Mimetype: "image/png"}, nil
}

func (f *FFmpeg) run(ctx context.Context, op string, args []string) error {
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	f.log.WithFields(logrus.Fields{"op": op, "args": strings.Join(args, " ")}).Debug("running ffmpeg")
	if err := cmd.Run(); err != nil {
		return &Error{Op: op, Err: fmt.Errorf("%v: %s", err, stderr.String())}
	}
	return nil
}

// TrimArgs builds the input trim options. Kept separate from the filter
// chain so trim and filters run in a single ffmpeg pass.
func TrimArgs(trim *models.Trim) []string {
	if trim == nil {
		return nil
	}
	return []string{
		"-ss", formatSeconds(trim.Start),
		"-t", formatSeconds(trim.End - trim.Start),
		"-qscale", "0",
	}
}

// FilterString builds the -filter:v chain for crop, scale and rotate.
func FilterString(spec models.EditSpec) string {
	var parts []string
	if spec.Crop != nil {
		parts = append(parts, fmt.Sprintf("crop=%d:%d:%d:%d",
			spec.Crop.Width, spec.Crop.Height, spec.Crop.X, spec.Crop.Y))
	}
	if spec.Scale != 0 {
		scale := spec.Scale
		// width must be divisible by 2 for most encoders
		if scale%2 == 1 {
			scale--
		}
		parts = append(parts, fmt.Sprintf("scale=%d:-2", scale))
	}
	if spec.Rotate != 0 {
		var transpose string
		switch spec.Rotate {
		case 90:
			transpose = "transpose=1"
		case -90:
			transpose = "transpose=2"
		case 180:
			transpose = "transpose=1,transpose=1"
		case -180:
			transpose = "transpose=2,transpose=2"
		case 270:
			transpose = "transpose=1,transpose=1,transpose=1"
		case -270:
			transpose = "transpose=2,transpose=2,transpose=2"
		}
		if transpose != "" {
			parts = append(parts, transpose)
		}
	}
	return strings.Join(parts, ",")
}

// TimelinePositions spaces amount capture positions evenly across
// [0, duration), keeping the last one just short of the end so the capture
// never seeks past the final frame.
func TimelinePositions(duration float64, amount int) []float64 {
	positions := make([]float64, 0, amount)
	if amount < 1 {
		return positions
	}
	if amount == 1 {
		return append(positions, 0)
	}
	step := (duration - 0.05) / float64(amount-1)
	for i := 0; i < amount; i++ {
		positions = append(positions, step*float64(i))
	}
	return positions
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func tempFile(content []byte, suffix string) (string, func(), error) {
	f, err := os.CreateTemp("", "videoserver-*"+suffix)
	if err != nil {
		return "", nil, err
	}
	name := f.Name()
	if _, err := f.Write(content); err != nil {
		f.Close()
		os.Remove(name)
		return "", nil, err
	}
	if err := f.Close(); err != nil {
		os.Remove(name)
		return "", nil, err
	}
	return name, func() { os.Remove(name) }, nil
}
