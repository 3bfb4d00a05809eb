package ffprobe

import "testing"

func TestResultHelpers(t *testing.T) {
	result := Result{
		Streams: []Stream{
			{CodecType: "video", Width: 640, Height: 480},
			{CodecType: "audio"},
		},
		Format: Format{
			Duration: "5.02",
		},
	}
	if result.DurationSeconds() != 5.02 {
		t.Fatalf("unexpected duration: %v", result.DurationSeconds())
	}
	width, height := result.Dimensions()
	if width != 640 || height != 480 {
		t.Fatalf("unexpected dimensions: %dx%d", width, height)
	}
}

func TestDurationFallsBackToStream(t *testing.T) {
	result := Result{
		Streams: []Stream{
			{CodecType: "video", Duration: "4.8"},
		},
	}
	if result.DurationSeconds() != 4.8 {
		t.Fatalf("expected stream duration fallback, got %v", result.DurationSeconds())
	}
}

func TestDurationHandlesInvalidNumbers(t *testing.T) {
	result := Result{Format: Format{Duration: "bad"}}
	if result.DurationSeconds() != 0 {
		t.Fatalf("expected 0 for invalid duration, got %v", result.DurationSeconds())
	}
}

func TestDimensionsWithoutVideoStream(t *testing.T) {
	var result Result
	if w, h := result.Dimensions(); w != 0 || h != 0 {
		t.Fatalf("expected zero dimensions, got %dx%d", w, h)
	}
}
