package wizard

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"veriflow/internal/artifacts"
	"veriflow/internal/camera"
	"veriflow/internal/config"
	"veriflow/internal/deps"
	"veriflow/internal/logging"
	"veriflow/internal/notifications"
	"veriflow/internal/services"
	"veriflow/internal/session"
)

// CameraAcquirer acquires an exclusive camera session.
type CameraAcquirer interface {
	Acquire(ctx context.Context, opts camera.Options) (*camera.Session, error)
}

// StillCapturer grabs a single frame from a live device.
type StillCapturer interface {
	CaptureStill(ctx context.Context, device camera.Device, profile camera.Profile) ([]byte, error)
}

// DocumentStage photographs one side of the identity document and persists
// it to the artifact store.
type DocumentStage struct {
	cfg      *config.Config
	logger   *slog.Logger
	cameras  CameraAcquirer
	stills   StillCapturer
	store    *artifacts.Store
	tracker  *session.Tracker
	notifier notifications.Service
	key      artifacts.Key
}

// NewDocumentStage builds a stage for the given document side; key must be
// KeyFront or KeyBack.
func NewDocumentStage(
	cfg *config.Config,
	logger *slog.Logger,
	cameras CameraAcquirer,
	stills StillCapturer,
	store *artifacts.Store,
	tracker *session.Tracker,
	notifier notifications.Service,
	key artifacts.Key,
) *DocumentStage {
	return &DocumentStage{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "document-stage"),
		cameras:  cameras,
		stills:   stills,
		store:    store,
		tracker:  tracker,
		notifier: notifier,
		key:      key,
	}
}

// SetLogger swaps the stage logger for a runner-scoped one.
func (s *DocumentStage) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

func (s *DocumentStage) side() string {
	if s.key == artifacts.KeyBack {
		return "back"
	}
	return "front"
}

// Prepare validates that capture consent and document metadata allow this
// side to be photographed.
func (s *DocumentStage) Prepare(ctx context.Context, state session.State) error {
	if s.key != artifacts.KeyFront && s.key != artifacts.KeyBack {
		return services.Wrap(services.ErrConfiguration, "document", "prepare", fmt.Sprintf("key %q is not a document side", s.key), nil)
	}
	if !state.AgreedToCamera {
		return services.Wrap(services.ErrValidation, "document", "prepare", "camera access has not been granted for this attempt", nil)
	}
	docType, ok := session.ParseDocumentType(string(state.DocumentType))
	if !ok {
		return services.Wrap(services.ErrValidation, "document", "prepare", "select a document type before capturing", nil)
	}
	if s.key == artifacts.KeyBack && !docType.BackRequired() {
		return services.Wrap(services.ErrValidation, "document", "prepare", fmt.Sprintf("%s documents have no back side", docType), nil)
	}
	return nil
}

// Execute acquires the camera, grabs a still of the document, and records
// completion in the session tracker.
func (s *DocumentStage) Execute(ctx context.Context, state session.State) error {
	sess, err := s.cameras.Acquire(ctx, camera.Options{FacingMode: camera.FacingEnvironment})
	if err != nil {
		return services.Wrap(services.ErrTransient, "document", "acquire", camera.Classify(err).Message, err)
	}
	defer sess.Release()

	frame, err := s.stills.CaptureStill(ctx, sess.Device(), sess.Profile())
	if err != nil {
		return err
	}
	sess.Release()

	if err := s.store.Put(ctx, s.key, "image/png", frame); err != nil {
		return services.Wrap(services.ErrTransient, "document", "persist", "store document photo", err)
	}

	if err := s.tracker.Update(func(st *session.State) {
		if s.key == artifacts.KeyBack {
			st.UploadDocumentBack = true
		} else {
			st.UploadDocumentFront = true
		}
	}); err != nil {
		return services.Wrap(services.ErrTransient, "document", "persist", "record capture progress", err)
	}

	s.logger.Info("document side captured",
		logging.String("side", s.side()),
		logging.Int("bytes", len(frame)),
		logging.String(logging.FieldEventType, "document_captured"),
	)
	if s.notifier != nil {
		_ = s.notifier.NotifyDocumentCaptured(ctx, s.side())
	}
	return nil
}

// HealthCheck reports whether the external capture tooling is available.
func (s *DocumentStage) HealthCheck(ctx context.Context) Health {
	name := "document-" + s.side()
	missing := deps.MissingRequired(deps.CheckBinaries(deps.Requirements(s.cfg)))
	if len(missing) > 0 {
		return Unhealthy(name, "missing binaries: "+strings.Join(missing, ", "))
	}
	return Healthy(name)
}
