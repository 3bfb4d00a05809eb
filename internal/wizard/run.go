package wizard

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"veriflow/internal/logging"
	"veriflow/internal/notifications"
	"veriflow/internal/services"
	"veriflow/internal/session"
)

// Options controls stage execution.
type Options struct {
	Logger    *slog.Logger
	Tracker   *session.Tracker
	Notifier  notifications.Service
	Handler   Handler
	StageName string
}

// Run executes one wizard stage: Prepare then Execute against the current
// progress snapshot, with stage-scoped logging and failure notification.
// Stages persist their own progress through the tracker; the runner only
// reads it.
func Run(ctx context.Context, opts Options) error {
	if opts.Handler == nil {
		return fmt.Errorf("stage handler unavailable: %s", opts.StageName)
	}
	if opts.Tracker == nil {
		return fmt.Errorf("session tracker is required")
	}

	stageCtx := logging.WithStage(ctx, opts.StageName)
	stageLogger := logging.WithContext(stageCtx, opts.Logger)
	if aware, ok := opts.Handler.(LoggerAware); ok {
		aware.SetLogger(stageLogger)
	}

	state := opts.Tracker.Snapshot()
	stageLogger.Info(
		"stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.String("document_type", string(state.DocumentType)),
		logging.String("country", strings.TrimSpace(state.Country)),
	)

	if err := opts.Handler.Prepare(stageCtx, state); err != nil {
		return handleFailure(stageCtx, stageLogger, opts.Notifier, opts.StageName, err)
	}
	if err := opts.Handler.Execute(stageCtx, state); err != nil {
		return handleFailure(stageCtx, stageLogger, opts.Notifier, opts.StageName, err)
	}

	stageLogger.Info(
		"stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
	)
	return nil
}

func handleFailure(ctx context.Context, logger *slog.Logger, notifier notifications.Service, stageName string, stageErr error) error {
	message := "stage failed"
	if stageErr != nil {
		details := services.Details(stageErr)
		message = strings.TrimSpace(details.Message)
		if message == "" {
			message = strings.TrimSpace(stageErr.Error())
		}
	}

	logger.Error(
		"stage failed",
		logging.String(logging.FieldEventType, "stage_failure"),
		logging.String("error_message", message),
		logging.Error(stageErr),
	)

	if notifier != nil && stageErr != nil {
		if err := notifier.NotifyError(ctx, stageErr, stageName); err != nil {
			logger.Debug("stage error notification failed", logging.Error(err))
		}
	}

	return stageErr
}
