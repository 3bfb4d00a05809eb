package frameextract

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"testing"

	"veriflow/internal/camera"
	"veriflow/internal/logging"
	"veriflow/internal/media/ffprobe"
	"veriflow/internal/services"
	"veriflow/internal/testsupport"
)

func encodePNG(t *testing.T, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			img.Set(x, y, c)
		}
	}
	buf := &bytes.Buffer{}
	if err := png.Encode(buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func seekArg(args []string) string {
	for i, arg := range args {
		if arg == "-ss" && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func newTestExtractor(t *testing.T, duration float64, frames map[string][]byte) (*Extractor, *[]string) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	ext := New(cfg, logging.NewNop())
	ext.probe = func(ctx context.Context, path string) (ffprobe.Result, error) {
		return ffprobe.Result{Format: ffprobe.Format{Duration: formatSeconds(duration)}}, nil
	}

	seeks := &[]string{}
	ext.grab = func(ctx context.Context, args []string) error {
		seek := seekArg(args)
		*seeks = append(*seeks, seek)
		frame, ok := frames[seek]
		if !ok {
			return errors.New("no frame at seek position")
		}
		return os.WriteFile(args[len(args)-1], frame, 0o644)
	}
	return ext, seeks
}

func formatSeconds(d float64) string {
	if d <= 0 {
		return ""
	}
	return "5.000000"
}

func TestExtractFrameMidpoint(t *testing.T) {
	bright := encodePNG(t, color.White)
	ext, seeks := newTestExtractor(t, 5, map[string][]byte{"2.500": bright})

	frame, err := ext.ExtractFrame(context.Background(), "clip.webm")
	if err != nil {
		t.Fatalf("ExtractFrame: %v", err)
	}
	if !bytes.Equal(frame, bright) {
		t.Fatal("expected the midpoint frame back")
	}
	if len(*seeks) != 1 || (*seeks)[0] != "2.500" {
		t.Fatalf("seeks = %v, want a single midpoint seek", *seeks)
	}
}

func TestExtractFrameBlankMidpointFallsBackNearStart(t *testing.T) {
	black := encodePNG(t, color.Black)
	bright := encodePNG(t, color.Gray{Y: 128})
	ext, seeks := newTestExtractor(t, 5, map[string][]byte{
		"2.500": black,
		"0.100": bright,
	})

	frame, err := ext.ExtractFrame(context.Background(), "clip.webm")
	if err != nil {
		t.Fatalf("ExtractFrame: %v", err)
	}
	if !bytes.Equal(frame, bright) {
		t.Fatal("expected the near-start frame back")
	}
	if len(*seeks) != 2 || (*seeks)[1] != "0.100" {
		t.Fatalf("seeks = %v, want midpoint then near-start", *seeks)
	}
}

func TestExtractFrameSeekFailureFallsBack(t *testing.T) {
	bright := encodePNG(t, color.White)
	ext, _ := newTestExtractor(t, 5, map[string][]byte{"0.100": bright})

	frame, err := ext.ExtractFrame(context.Background(), "clip.webm")
	if err != nil {
		t.Fatalf("ExtractFrame: %v", err)
	}
	if !bytes.Equal(frame, bright) {
		t.Fatal("expected the fallback frame back")
	}
}

func TestExtractFrameAllBlank(t *testing.T) {
	black := encodePNG(t, color.Black)
	ext, _ := newTestExtractor(t, 5, map[string][]byte{
		"2.500": black,
		"0.100": black,
	})

	_, err := ext.ExtractFrame(context.Background(), "clip.webm")
	if !errors.Is(err, ErrBlankFrame) {
		t.Fatalf("expected ErrBlankFrame, got %v", err)
	}
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation marker, got %v", err)
	}
}

func TestExtractFrameProbeFailure(t *testing.T) {
	ext, _ := newTestExtractor(t, 5, nil)
	ext.probe = func(ctx context.Context, path string) (ffprobe.Result, error) {
		return ffprobe.Result{}, errors.New("ffprobe exploded")
	}

	_, err := ext.ExtractFrame(context.Background(), "clip.webm")
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool marker, got %v", err)
	}
}

func TestCaptureStill(t *testing.T) {
	bright := encodePNG(t, color.White)
	cfg := testsupport.NewConfig(t)
	ext := New(cfg, logging.NewNop())

	var captured []string
	ext.grab = func(ctx context.Context, args []string) error {
		captured = args
		return os.WriteFile(args[len(args)-1], bright, 0o644)
	}

	frame, err := ext.CaptureStill(context.Background(), camera.Device{Path: "/dev/video0"}, camera.Profile{Width: 1280, Height: 720})
	if err != nil {
		t.Fatalf("CaptureStill: %v", err)
	}
	if !bytes.Equal(frame, bright) {
		t.Fatal("expected the captured still back")
	}

	foundDevice := false
	for _, arg := range captured {
		if arg == "/dev/video0" {
			foundDevice = true
		}
	}
	if !foundDevice {
		t.Fatalf("capture args missing device: %v", captured)
	}
}

func TestCaptureStillBlank(t *testing.T) {
	black := encodePNG(t, color.Black)
	cfg := testsupport.NewConfig(t)
	ext := New(cfg, logging.NewNop())
	ext.grab = func(ctx context.Context, args []string) error {
		return os.WriteFile(args[len(args)-1], black, 0o644)
	}

	_, err := ext.CaptureStill(context.Background(), camera.Device{Path: "/dev/video0"}, camera.Profile{})
	if !errors.Is(err, ErrBlankFrame) {
		t.Fatalf("expected ErrBlankFrame, got %v", err)
	}
}

func TestClampSeek(t *testing.T) {
	cases := []struct {
		seek, duration, want float64
	}{
		{2.5, 5, 2.5},
		{-1, 5, 0},
		{10, 5, 5},
		{2.5, 0, 0},
		{0.1, 5, 0.1},
	}
	for _, tc := range cases {
		if got := clampSeek(tc.seek, tc.duration); got != tc.want {
			t.Fatalf("clampSeek(%v, %v) = %v, want %v", tc.seek, tc.duration, got, tc.want)
		}
	}
}

func TestAverageLuma(t *testing.T) {
	dark := image.NewRGBA(image.Rect(0, 0, 8, 8))
	if got := averageLuma(dark); got > 1 {
		t.Fatalf("black image luma = %v, want near zero", got)
	}

	bright := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			bright.Set(x, y, color.White)
		}
	}
	if got := averageLuma(bright); got < 250 {
		t.Fatalf("white image luma = %v, want near 255", got)
	}
}
