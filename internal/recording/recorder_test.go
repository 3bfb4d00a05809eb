package recording

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"veriflow/internal/artifacts"
	"veriflow/internal/camera"
	"veriflow/internal/logging"
	"veriflow/internal/services"
	"veriflow/internal/testsupport"
)

type fakeSession struct {
	ready    bool
	released bool
}

func (s *fakeSession) Ready() bool            { return s.ready && !s.released }
func (s *fakeSession) Device() camera.Device  { return camera.Device{Path: "/dev/video0"} }
func (s *fakeSession) Profile() camera.Profile { return camera.Profile{Name: "any"} }
func (s *fakeSession) Release()               { s.released = true }

// fakeSource feeds scripted chunks. With loop set it keeps emitting the
// script until stopped, mimicking a device that streams indefinitely.
type fakeSource struct {
	script [][]byte
	loop   bool
	err    error

	chunks   chan []byte
	done     chan struct{}
	stopOnce sync.Once
	stopped  chan struct{}
}

func newFakeSource(script [][]byte, loop bool, err error) *fakeSource {
	s := &fakeSource{
		script:  script,
		loop:    loop,
		err:     err,
		chunks:  make(chan []byte),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *fakeSource) run() {
	defer close(s.done)
	defer close(s.chunks)
	for {
		for _, chunk := range s.script {
			select {
			case s.chunks <- chunk:
			case <-s.stopped:
				return
			}
		}
		if !s.loop {
			return
		}
	}
}

func (s *fakeSource) Chunks() <-chan []byte { return s.chunks }
func (s *fakeSource) Done() <-chan struct{} { return s.done }
func (s *fakeSource) Stop()                 { s.stopOnce.Do(func() { close(s.stopped) }) }
func (s *fakeSource) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

func newTestRecorder(t *testing.T, source chunkSource) (*Recorder, *artifacts.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.Recording.CountdownTicks = 0
	store := testsupport.MustOpenStore(t, cfg)
	rec := NewRecorder(cfg, logging.NewNop(), store, encodingLadder[0], nil)
	rec.duration = 50 * time.Millisecond
	rec.tickInterval = time.Millisecond
	rec.start = func(spec captureSpec) (chunkSource, error) { return source, nil }
	return rec, store
}

func TestCaptureRequiresReadySession(t *testing.T) {
	rec, _ := newTestRecorder(t, nil)
	_, err := rec.Capture(context.Background(), &fakeSession{ready: false})
	if !errors.Is(err, ErrStreamNotReady) {
		t.Fatalf("expected ErrStreamNotReady, got %v", err)
	}
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation marker, got %v", err)
	}
	if rec.State() != StateIdle {
		t.Fatalf("state = %q, want idle", rec.State())
	}
}

func TestCaptureAssemblesChunksInOrder(t *testing.T) {
	source := newFakeSource([][]byte{[]byte("one"), []byte("two"), []byte("three")}, false, nil)
	rec, store := newTestRecorder(t, source)

	session := &fakeSession{ready: true}
	result, err := rec.Capture(context.Background(), session)
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if result.ChunkCount != 3 {
		t.Fatalf("chunk count = %d, want 3", result.ChunkCount)
	}
	if !session.released {
		t.Fatal("session should be released before recording")
	}
	if rec.State() != StateComplete {
		t.Fatalf("state = %q, want complete", rec.State())
	}

	stored, err := store.Get(context.Background(), artifacts.KeyFaceClip)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored == nil || string(stored.Payload) != "onetwothree" {
		t.Fatalf("stored payload = %v, want chunks in arrival order", stored)
	}
	if stored.ContentType != "video/webm" {
		t.Fatalf("content type = %q", stored.ContentType)
	}
}

func TestCaptureDeadlineStopsEndlessStream(t *testing.T) {
	source := newFakeSource([][]byte{[]byte("frame")}, true, nil)
	rec, _ := newTestRecorder(t, source)

	start := time.Now()
	result, err := rec.Capture(context.Background(), &fakeSession{ready: true})
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("deadline did not stop capture, took %v", elapsed)
	}
	if result.ChunkCount == 0 {
		t.Fatal("expected some chunks before the deadline")
	}
	if rec.State() != StateComplete {
		t.Fatalf("state = %q, want complete", rec.State())
	}
}

func TestCaptureCancelDiscardsPartialData(t *testing.T) {
	source := newFakeSource([][]byte{[]byte("frame")}, true, nil)
	rec, store := newTestRecorder(t, source)
	rec.duration = time.Minute

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := rec.Capture(ctx, &fakeSession{ready: true})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if rec.State() != StateError {
		t.Fatalf("state = %q, want error", rec.State())
	}

	stored, err := store.Get(context.Background(), artifacts.KeyFaceClip)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored != nil {
		t.Fatal("canceled capture must not persist partial data")
	}
}

func TestCaptureSourceFailure(t *testing.T) {
	source := newFakeSource([][]byte{[]byte("frame")}, false, errors.New("device unplugged"))
	rec, store := newTestRecorder(t, source)

	_, err := rec.Capture(context.Background(), &fakeSession{ready: true})
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool marker, got %v", err)
	}
	if rec.State() != StateError {
		t.Fatalf("state = %q, want error", rec.State())
	}

	stored, err := store.Get(context.Background(), artifacts.KeyFaceClip)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored != nil {
		t.Fatal("failed capture must not persist data")
	}
}

func TestCaptureEmptyStream(t *testing.T) {
	source := newFakeSource(nil, false, nil)
	rec, _ := newTestRecorder(t, source)

	_, err := rec.Capture(context.Background(), &fakeSession{ready: true})
	if !errors.Is(err, ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
}

func TestCaptureWhileBusy(t *testing.T) {
	rec, _ := newTestRecorder(t, nil)
	rec.mu.Lock()
	rec.state = StateRecording
	rec.mu.Unlock()

	_, err := rec.Capture(context.Background(), &fakeSession{ready: true})
	if !errors.Is(err, ErrCaptureActive) {
		t.Fatalf("expected ErrCaptureActive, got %v", err)
	}
}

func TestCountdownTicks(t *testing.T) {
	source := newFakeSource([][]byte{[]byte("frame")}, false, nil)
	cfg := testsupport.NewConfig(t)
	cfg.Recording.CountdownTicks = 3
	store := testsupport.MustOpenStore(t, cfg)

	var ticks []int
	rec := NewRecorder(cfg, logging.NewNop(), store, encodingLadder[0], func(remaining int) {
		ticks = append(ticks, remaining)
	})
	rec.duration = 50 * time.Millisecond
	rec.tickInterval = time.Millisecond
	rec.start = func(spec captureSpec) (chunkSource, error) { return source, nil }

	if _, err := rec.Capture(context.Background(), &fakeSession{ready: true}); err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if len(ticks) != 3 || ticks[0] != 3 || ticks[1] != 2 || ticks[2] != 1 {
		t.Fatalf("ticks = %v, want [3 2 1]", ticks)
	}
}

func TestResetAfterError(t *testing.T) {
	rec, _ := newTestRecorder(t, nil)
	rec.fail(errors.New("boom"))
	if rec.State() != StateError {
		t.Fatalf("state = %q, want error", rec.State())
	}
	rec.Reset()
	if rec.State() != StateIdle || rec.Err() != nil {
		t.Fatalf("reset should return to idle with no error, state=%q err=%v", rec.State(), rec.Err())
	}
}

func TestSelectEncodingLadder(t *testing.T) {
	enc := SelectEncoding(func(codec string) bool { return codec == "libvpx" })
	if enc.Name != "vp8" {
		t.Fatalf("encoding = %q, want vp8", enc.Name)
	}

	enc = SelectEncoding(func(codec string) bool { return false })
	if enc.Name != "h264" {
		t.Fatalf("encoding = %q, want the last-resort h264", enc.Name)
	}

	enc = SelectEncoding(nil)
	if enc.Name != "h264" {
		t.Fatalf("encoding = %q, want h264 without a probe", enc.Name)
	}
}
