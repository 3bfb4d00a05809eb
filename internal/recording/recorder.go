package recording

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"veriflow/internal/artifacts"
	"veriflow/internal/camera"
	"veriflow/internal/config"
	"veriflow/internal/logging"
	"veriflow/internal/services"
)

// State names the recorder lifecycle phase.
type State string

const (
	StateIdle      State = "idle"
	StateCountdown State = "countdown"
	StateRecording State = "recording"
	StateComplete  State = "complete"
	StateError     State = "error"
)

var (
	// ErrStreamNotReady is returned when capture starts without a live camera session.
	ErrStreamNotReady = errors.New("camera stream not ready")
	// ErrCaptureActive is returned when capture starts while another is running.
	ErrCaptureActive = errors.New("capture already in progress")
	// ErrNoData is returned when the device produced no usable video.
	ErrNoData = errors.New("recording produced no data")
)

// Result describes a finalized face clip.
type Result struct {
	Path       string
	Size       int64
	Encoding   Encoding
	ChunkCount int
	Elapsed    time.Duration
}

// Recorder captures a short timed face clip. The recording deadline is
// authoritative: once it fires the source is stopped regardless of how much
// data arrived, and the first stop request wins.
type Recorder struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *artifacts.Store
	encoding Encoding
	onTick   func(remaining int)

	duration     time.Duration
	tickInterval time.Duration
	start        func(spec captureSpec) (chunkSource, error)

	mu      sync.Mutex
	state   State
	source  chunkSource
	lastErr error
}

// NewRecorder builds a Recorder. onTick runs once per countdown second with
// the remaining tick count and may be nil.
func NewRecorder(cfg *config.Config, logger *slog.Logger, store *artifacts.Store, encoding Encoding, onTick func(remaining int)) *Recorder {
	return &Recorder{
		cfg:          cfg,
		logger:       logging.NewComponentLogger(logger, "recorder"),
		store:        store,
		encoding:     encoding,
		onTick:       onTick,
		duration:     time.Duration(cfg.Recording.DurationSeconds) * time.Second,
		tickInterval: time.Second,
		start:        startFFmpegSource,
		state:        StateIdle,
	}
}

// State reports the current lifecycle phase.
func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Err returns the failure that moved the recorder into StateError, if any.
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastErr
}

// Reset discards any completed or failed capture and returns to idle. It has
// no effect while a capture is running.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == StateCountdown || r.state == StateRecording {
		return
	}
	r.state = StateIdle
	r.lastErr = nil
}

// Stop requests an early finish of an active recording. The clip finalizes
// with whatever arrived so far.
func (r *Recorder) Stop() {
	r.mu.Lock()
	source := r.source
	r.mu.Unlock()
	if source != nil {
		source.Stop()
	}
}

// CameraSession is the slice of camera.Session the recorder needs.
type CameraSession interface {
	Ready() bool
	Device() camera.Device
	Profile() camera.Profile
	Release()
}

// Capture runs the countdown and records a clip from the session's device.
// The session must be ready; it is released once the recorder takes over the
// device. On success the clip is persisted to the artifact store and staged
// on disk for preview.
func (r *Recorder) Capture(ctx context.Context, session CameraSession) (*Result, error) {
	if session == nil || !session.Ready() {
		return nil, services.Wrap(services.ErrValidation, "recording", "capture", "camera stream is not ready", ErrStreamNotReady)
	}

	r.mu.Lock()
	if r.state == StateCountdown || r.state == StateRecording {
		r.mu.Unlock()
		return nil, services.Wrap(services.ErrValidation, "recording", "capture", "recorder is busy", ErrCaptureActive)
	}
	r.state = StateCountdown
	r.lastErr = nil
	r.mu.Unlock()

	device := session.Device()
	profile := session.Profile()

	if err := r.countdown(ctx); err != nil {
		r.fail(err)
		return nil, err
	}

	// The capture process needs the device node to itself.
	session.Release()

	result, err := r.record(ctx, device, profile)
	if err != nil {
		r.fail(err)
		return nil, err
	}

	r.mu.Lock()
	r.state = StateComplete
	r.source = nil
	r.mu.Unlock()

	r.logger.Info("face clip captured",
		logging.String("path", result.Path),
		logging.Int64("size", result.Size),
		logging.String("encoding", result.Encoding.Name),
		logging.Int("chunks", result.ChunkCount),
		logging.String(logging.FieldEventType, "face_clip_captured"),
	)
	return result, nil
}

func (r *Recorder) fail(err error) {
	r.mu.Lock()
	r.state = StateError
	r.lastErr = err
	r.source = nil
	r.mu.Unlock()
}

func (r *Recorder) countdown(ctx context.Context) error {
	ticks := r.cfg.Recording.CountdownTicks
	if ticks <= 0 {
		return nil
	}

	ticker := time.NewTicker(r.tickInterval)
	defer ticker.Stop()

	for remaining := ticks; remaining > 0; remaining-- {
		if r.onTick != nil {
			r.onTick(remaining)
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return services.Wrap(services.ErrTransient, "recording", "countdown", "countdown interrupted", ctx.Err())
		}
	}
	return nil
}

func (r *Recorder) record(ctx context.Context, device camera.Device, profile camera.Profile) (*Result, error) {
	spec := captureSpec{
		Binary:   r.cfg.FFmpegBinary(),
		Device:   device,
		Profile:  profile,
		Encoding: r.encoding,
		Bitrate:  r.cfg.Recording.VideoBitrate,
		// One extra second so the stop signal, not the ceiling, ends capture.
		MaxLength: r.cfg.Recording.DurationSeconds + 1,
	}

	source, err := r.start(spec)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "recording", "record", "start capture", err)
	}

	r.mu.Lock()
	r.state = StateRecording
	r.source = source
	r.mu.Unlock()

	started := time.Now()
	deadline := time.NewTimer(r.duration)
	defer deadline.Stop()

	var chunks [][]byte
	canceled := false
	deadlineC := deadline.C
	ctxDone := ctx.Done()
	chunkC := source.Chunks()

	for chunkC != nil {
		select {
		case chunk, ok := <-chunkC:
			if !ok {
				chunkC = nil
				continue
			}
			chunks = append(chunks, chunk)
		case <-deadlineC:
			deadlineC = nil
			source.Stop()
		case <-ctxDone:
			ctxDone = nil
			canceled = true
			source.Stop()
		}
	}

	<-source.Done()
	elapsed := time.Since(started)

	if canceled {
		return nil, services.Wrap(services.ErrTransient, "recording", "record", "recording canceled", ctx.Err())
	}
	if err := source.Err(); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "recording", "record", "capture failed", err)
	}

	blob := bytes.Join(chunks, nil)
	if len(blob) == 0 {
		return nil, services.Wrap(services.ErrExternalTool, "recording", "record", "no video data", ErrNoData)
	}

	path, err := r.stage(blob)
	if err != nil {
		return nil, err
	}

	if err := r.store.Put(ctx, artifacts.KeyFaceClip, r.encoding.ContentType(), blob); err != nil {
		return nil, services.Wrap(services.ErrTransient, "recording", "record", "persist face clip", err)
	}

	return &Result{
		Path:       path,
		Size:       int64(len(blob)),
		Encoding:   r.encoding,
		ChunkCount: len(chunks),
		Elapsed:    elapsed,
	}, nil
}

// stage writes the clip beside the artifact store so the operator can review
// it before submission.
func (r *Recorder) stage(blob []byte) (string, error) {
	if err := os.MkdirAll(r.cfg.Paths.StagingDir, 0o755); err != nil {
		return "", services.Wrap(services.ErrTransient, "recording", "stage", "create staging directory", err)
	}
	path := filepath.Join(r.cfg.Paths.StagingDir, fmt.Sprintf("face-clip.%s", r.encoding.Container))
	if err := os.WriteFile(path, blob, 0o644); err != nil {
		return "", services.Wrap(services.ErrTransient, "recording", "stage", "write preview clip", err)
	}
	return path, nil
}
