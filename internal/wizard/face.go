package wizard

import (
	"context"
	"log/slog"
	"strings"

	"veriflow/internal/camera"
	"veriflow/internal/config"
	"veriflow/internal/deps"
	"veriflow/internal/logging"
	"veriflow/internal/notifications"
	"veriflow/internal/recording"
	"veriflow/internal/services"
	"veriflow/internal/session"
)

// ClipRecorder records the timed face clip from a live session.
type ClipRecorder interface {
	Capture(ctx context.Context, sess recording.CameraSession) (*recording.Result, error)
	Reset()
}

// FaceStage records the face-verification clip.
type FaceStage struct {
	cfg      *config.Config
	logger   *slog.Logger
	cameras  CameraAcquirer
	recorder ClipRecorder
	tracker  *session.Tracker
	notifier notifications.Service
}

// NewFaceStage builds the face capture stage.
func NewFaceStage(
	cfg *config.Config,
	logger *slog.Logger,
	cameras CameraAcquirer,
	recorder ClipRecorder,
	tracker *session.Tracker,
	notifier notifications.Service,
) *FaceStage {
	return &FaceStage{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "face-stage"),
		cameras:  cameras,
		recorder: recorder,
		tracker:  tracker,
		notifier: notifier,
	}
}

// SetLogger swaps the stage logger for a runner-scoped one.
func (s *FaceStage) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// Prepare validates consent before the camera is touched.
func (s *FaceStage) Prepare(ctx context.Context, state session.State) error {
	if !state.AgreedToCamera {
		return services.Wrap(services.ErrValidation, "face", "prepare", "camera access has not been granted for this attempt", nil)
	}
	return nil
}

// Execute acquires the user-facing camera, records the clip, and records
// completion. The recorder persists the clip artifact itself.
func (s *FaceStage) Execute(ctx context.Context, state session.State) error {
	s.recorder.Reset()

	sess, err := s.cameras.Acquire(ctx, camera.Options{FacingMode: camera.FacingUser})
	if err != nil {
		return services.Wrap(services.ErrTransient, "face", "acquire", camera.Classify(err).Message, err)
	}
	defer sess.Release()

	result, err := s.recorder.Capture(ctx, sess)
	if err != nil {
		return err
	}

	if err := s.tracker.Update(func(st *session.State) {
		st.FaceVerification = true
	}); err != nil {
		return services.Wrap(services.ErrTransient, "face", "persist", "record capture progress", err)
	}

	s.logger.Info("face clip recorded",
		logging.String("path", result.Path),
		logging.Int64("size", result.Size),
		logging.String(logging.FieldEventType, "face_clip_recorded"),
	)
	if s.notifier != nil {
		_ = s.notifier.NotifyFaceClipRecorded(ctx, result.Size)
	}
	return nil
}

// HealthCheck reports whether the external capture tooling is available.
func (s *FaceStage) HealthCheck(ctx context.Context) Health {
	missing := deps.MissingRequired(deps.CheckBinaries(deps.Requirements(s.cfg)))
	if len(missing) > 0 {
		return Unhealthy("face", "missing binaries: "+strings.Join(missing, ", "))
	}
	return Healthy("face")
}
