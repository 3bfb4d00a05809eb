package wizard

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"veriflow/internal/config"
	"veriflow/internal/logging"
	"veriflow/internal/notifications"
	"veriflow/internal/services"
	"veriflow/internal/session"
)

// Wizard drives a full verification attempt through its stages in order:
// document front, document back when the document type has one, face clip,
// then submission. Stages already recorded as complete in the session
// tracker are skipped, so an interrupted attempt resumes where it stopped.
type Wizard struct {
	cfg      *config.Config
	logger   *slog.Logger
	tracker  *session.Tracker
	notifier notifications.Service

	front  *DocumentStage
	back   *DocumentStage
	face   *FaceStage
	submit *SubmitStage
}

// New assembles a Wizard from its stages.
func New(
	cfg *config.Config,
	logger *slog.Logger,
	tracker *session.Tracker,
	notifier notifications.Service,
	front, back *DocumentStage,
	face *FaceStage,
	submit *SubmitStage,
) *Wizard {
	return &Wizard{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "wizard"),
		tracker:  tracker,
		notifier: notifier,
		front:    front,
		back:     back,
		face:     face,
		submit:   submit,
	}
}

// Run executes the remaining stages of the current attempt.
func (w *Wizard) Run(ctx context.Context) error {
	state := w.tracker.Snapshot()
	if state.AttemptID == "" {
		if err := w.tracker.Update(func(s *session.State) {
			if s.AttemptID == "" {
				s.AttemptID = uuid.NewString()
			}
		}); err != nil {
			return services.Wrap(services.ErrTransient, "wizard", "run", "assign attempt id", err)
		}
		state = w.tracker.Snapshot()
	}
	ctx = services.WithAttemptID(ctx, state.AttemptID)

	docType, ok := session.ParseDocumentType(string(state.DocumentType))
	if !ok {
		return services.Wrap(services.ErrValidation, "wizard", "run", "select a document type before starting capture", nil)
	}

	type step struct {
		name    string
		handler Handler
		done    func(session.State) bool
	}
	steps := []step{
		{"document-front", w.front, func(s session.State) bool { return s.UploadDocumentFront }},
	}
	if docType.BackRequired() {
		steps = append(steps, step{"document-back", w.back, func(s session.State) bool { return s.UploadDocumentBack }})
	}
	steps = append(steps,
		step{"face", w.face, func(s session.State) bool { return s.FaceVerification }},
		step{"submit", w.submit, func(session.State) bool { return false }},
	)

	for _, st := range steps {
		state = w.tracker.Snapshot()
		if st.done(state) {
			w.logger.Info("stage already complete, skipping",
				logging.String(logging.FieldStage, st.name),
				logging.String(logging.FieldEventType, "stage_skipped"),
			)
			continue
		}
		if err := Run(ctx, Options{
			Logger:    w.logger,
			Tracker:   w.tracker,
			Notifier:  w.notifier,
			Handler:   st.handler,
			StageName: st.name,
		}); err != nil {
			return err
		}
	}
	return nil
}

// HealthChecks collects readiness from every stage.
func (w *Wizard) HealthChecks(ctx context.Context) []Health {
	return []Health{
		w.front.HealthCheck(ctx),
		w.back.HealthCheck(ctx),
		w.face.HealthCheck(ctx),
		w.submit.HealthCheck(ctx),
	}
}
