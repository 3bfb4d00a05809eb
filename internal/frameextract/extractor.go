package frameextract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"veriflow/internal/camera"
	"veriflow/internal/config"
	"veriflow/internal/logging"
	"veriflow/internal/media/ffprobe"
	"veriflow/internal/services"
)

// ErrBlankFrame is returned when every extraction attempt yields an image
// too dark to be a usable verification frame.
var ErrBlankFrame = errors.New("extracted frame is blank")

// nearStartOffset is where the fallback extraction seeks when the midpoint
// frame is missing or blank. The very first frame is often still black while
// the sensor adjusts, so the fallback lands just after it.
const nearStartOffset = 0.1

// Extractor pulls a single still frame out of a recorded clip, and grabs
// one-shot document stills straight from a device.
type Extractor struct {
	cfg    *config.Config
	logger *slog.Logger

	probe  func(ctx context.Context, path string) (ffprobe.Result, error)
	grab   func(ctx context.Context, args []string) error
	lumaAt func(img image.Image) float64
}

// New builds an Extractor backed by the configured ffmpeg and ffprobe
// binaries.
func New(cfg *config.Config, logger *slog.Logger) *Extractor {
	e := &Extractor{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "frameextract"),
		lumaAt: averageLuma,
	}
	e.probe = func(ctx context.Context, path string) (ffprobe.Result, error) {
		probeCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.Extraction.ProbeTimeoutSeconds)*time.Second)
		defer cancel()
		return ffprobe.Inspect(probeCtx, cfg.FFprobeBinary(), path)
	}
	e.grab = func(ctx context.Context, args []string) error {
		cmd := exec.CommandContext(ctx, cfg.FFmpegBinary(), args...)
		output, err := cmd.CombinedOutput()
		if err != nil {
			return fmt.Errorf("%w: %s", err, strings.TrimSpace(string(output)))
		}
		return nil
	}
	return e
}

// ExtractFrame pulls a PNG still from the clip at path. It seeks to the clip
// midpoint first; when that attempt fails or produces a blank frame it
// retries near the start. A frame that is still blank after the fallback is
// reported as ErrBlankFrame.
func (e *Extractor) ExtractFrame(ctx context.Context, clipPath string) ([]byte, error) {
	result, err := e.probe(ctx, clipPath)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "frameextract", "probe", "inspect clip", err)
	}

	duration := result.DurationSeconds()
	midpoint := clampSeek(duration/2, duration)

	frame, midErr := e.extractAt(ctx, clipPath, midpoint)
	if midErr == nil {
		blank, err := e.isBlank(frame)
		if err != nil {
			return nil, err
		}
		if !blank {
			return frame, nil
		}
		e.logger.Warn("midpoint frame is blank, retrying near start",
			logging.Float64("seek", midpoint),
			logging.String(logging.FieldEventType, "frame_blank_fallback"),
		)
	} else {
		e.logger.Warn("midpoint extraction failed, retrying near start",
			logging.Error(midErr),
			logging.Float64("seek", midpoint),
			logging.String(logging.FieldEventType, "frame_seek_fallback"),
		)
	}

	frame, err = e.extractAt(ctx, clipPath, clampSeek(nearStartOffset, duration))
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "frameextract", "extract", "extract frame", err)
	}

	blank, err := e.isBlank(frame)
	if err != nil {
		return nil, err
	}
	if blank {
		return nil, services.Wrap(services.ErrValidation, "frameextract", "extract", "clip contains no usable frame", ErrBlankFrame)
	}
	return frame, nil
}

// CaptureStill grabs a single PNG frame straight from a capture device. Used
// for document photos where no clip exists.
func (e *Extractor) CaptureStill(ctx context.Context, device camera.Device, profile camera.Profile) ([]byte, error) {
	encodeCtx, cancel := context.WithTimeout(ctx, time.Duration(e.cfg.Extraction.EncodeTimeoutSeconds)*time.Second)
	defer cancel()

	target, cleanup, err := e.tempTarget("still")
	if err != nil {
		return nil, err
	}
	defer cleanup()

	args := []string{"-hide_banner", "-loglevel", "error", "-f", "v4l2"}
	if profile.Width > 0 && profile.Height > 0 {
		args = append(args, "-video_size", fmt.Sprintf("%dx%d", profile.Width, profile.Height))
	}
	args = append(args, "-i", device.Path, "-frames:v", "1", "-y", target)

	if err := e.grab(encodeCtx, args); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "frameextract", "still", "capture document still", err)
	}

	frame, err := os.ReadFile(target)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "frameextract", "still", "read captured still", err)
	}

	blank, err := e.isBlank(frame)
	if err != nil {
		return nil, err
	}
	if blank {
		return nil, services.Wrap(services.ErrValidation, "frameextract", "still", "captured frame is blank", ErrBlankFrame)
	}
	return frame, nil
}

func (e *Extractor) extractAt(ctx context.Context, clipPath string, seek float64) ([]byte, error) {
	seekCtx, cancel := context.WithTimeout(ctx, time.Duration(e.cfg.Extraction.SeekTimeoutSeconds)*time.Second)
	defer cancel()

	target, cleanup, err := e.tempTarget("frame")
	if err != nil {
		return nil, err
	}
	defer cleanup()

	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-ss", fmt.Sprintf("%.3f", seek),
		"-i", clipPath,
		"-frames:v", "1",
		"-y", target,
	}
	if err := e.grab(seekCtx, args); err != nil {
		return nil, err
	}

	frame, err := os.ReadFile(target)
	if err != nil {
		return nil, err
	}
	if len(frame) == 0 {
		return nil, errors.New("extraction produced an empty file")
	}
	return frame, nil
}

func (e *Extractor) tempTarget(prefix string) (string, func(), error) {
	if err := os.MkdirAll(e.cfg.Paths.StagingDir, 0o755); err != nil {
		return "", nil, services.Wrap(services.ErrTransient, "frameextract", "stage", "create staging directory", err)
	}
	dir, err := os.MkdirTemp(e.cfg.Paths.StagingDir, prefix+"-")
	if err != nil {
		return "", nil, services.Wrap(services.ErrTransient, "frameextract", "stage", "create temp directory", err)
	}
	return filepath.Join(dir, prefix+".png"), func() { _ = os.RemoveAll(dir) }, nil
}

// isBlank decodes the PNG and compares its average luminance against the
// configured threshold.
func (e *Extractor) isBlank(frame []byte) (bool, error) {
	img, err := png.Decode(bytes.NewReader(frame))
	if err != nil {
		return false, services.Wrap(services.ErrExternalTool, "frameextract", "decode", "decode extracted frame", err)
	}
	return e.lumaAt(img) < e.cfg.Extraction.BlankLumaThreshold, nil
}

// clampSeek keeps the seek position inside the clip. Unknown durations clamp
// to zero so extraction still targets a decodable frame.
func clampSeek(seek, duration float64) float64 {
	if math.IsNaN(seek) || seek < 0 || duration <= 0 {
		return 0
	}
	if seek > duration {
		return duration
	}
	return seek
}

// averageLuma samples the image on a coarse grid and returns the mean
// Rec. 601 luminance on a 0-255 scale.
func averageLuma(img image.Image) float64 {
	bounds := img.Bounds()
	if bounds.Empty() {
		return 0
	}

	stepX := bounds.Dx() / 64
	if stepX < 1 {
		stepX = 1
	}
	stepY := bounds.Dy() / 64
	if stepY < 1 {
		stepY = 1
	}

	var total float64
	var samples int
	for y := bounds.Min.Y; y < bounds.Max.Y; y += stepY {
		for x := bounds.Min.X; x < bounds.Max.X; x += stepX {
			r, g, b, _ := img.At(x, y).RGBA()
			luma := 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(b>>8)
			total += luma
			samples++
		}
	}
	if samples == 0 {
		return 0
	}
	return total / float64(samples)
}
