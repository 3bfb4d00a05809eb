package wizard

import (
	"context"
	"log/slog"
	"strings"

	"veriflow/internal/artifacts"
	"veriflow/internal/config"
	"veriflow/internal/logging"
	"veriflow/internal/services"
	"veriflow/internal/session"
	"veriflow/internal/submission"
)

// Submitter uploads the captured attempt to the verification service.
type Submitter interface {
	Submit(ctx context.Context) (*submission.Receipt, error)
}

// SubmitStage hands the completed attempt to the submission orchestrator.
type SubmitStage struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *artifacts.Store
	submitter Submitter
}

// NewSubmitStage builds the submission stage.
func NewSubmitStage(cfg *config.Config, logger *slog.Logger, store *artifacts.Store, submitter Submitter) *SubmitStage {
	return &SubmitStage{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "submit-stage"),
		store:     store,
		submitter: submitter,
	}
}

// SetLogger swaps the stage logger for a runner-scoped one.
func (s *SubmitStage) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// Prepare confirms the required captures exist before the upload starts.
func (s *SubmitStage) Prepare(ctx context.Context, state session.State) error {
	ok, err := s.store.HasRequired(ctx)
	if err != nil {
		return services.Wrap(services.ErrTransient, "submit", "prepare", "check artifacts", err)
	}
	if !ok {
		return services.Wrap(services.ErrValidation, "submit", "prepare", "capture the document and face clip before submitting", submission.ErrMissingArtifacts)
	}
	return nil
}

// Execute runs the submission. The orchestrator owns all side effects,
// including clearing state on acceptance.
func (s *SubmitStage) Execute(ctx context.Context, state session.State) error {
	receipt, err := s.submitter.Submit(ctx)
	if err != nil {
		return err
	}
	s.logger.Info("verification submitted",
		logging.String("tracking_token", receipt.TrackingToken),
		logging.String(logging.FieldEventType, "verification_submitted"),
	)
	return nil
}

// HealthCheck reports whether the stage can reach a configured endpoint.
func (s *SubmitStage) HealthCheck(ctx context.Context) Health {
	if strings.TrimSpace(s.cfg.Verification.Endpoint) == "" {
		return Unhealthy("submit", "verification endpoint is not configured")
	}
	return Healthy("submit")
}
