package logging

import (
	"context"
	"log/slog"

	"veriflow/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldAttemptID is the standardized structured logging key for verification attempt identifiers.
	FieldAttemptID = "attempt_id"
	// FieldStage is the standardized structured logging key for capture stage names.
	FieldStage = "stage"
	// FieldDevice is the standardized structured logging key for camera device paths.
	FieldDevice = "device"
	// FieldEventType is the standardized structured logging key for machine-readable event names.
	FieldEventType = "event_type"
	// FieldErrorHint is the standardized structured logging key for remediation hints.
	FieldErrorHint = "error_hint"
	// FieldImpact is the standardized structured logging key describing user-facing impact.
	FieldImpact = "impact"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 3)
	if id, ok := services.AttemptIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldAttemptID, id))
	}
	if stage, ok := services.StageFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldStage, stage))
	}
	if device, ok := services.DeviceFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldDevice, device))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(attrsToArgs(fields)...)
}

// WithStage annotates context with the capture stage name.
func WithStage(ctx context.Context, stage string) context.Context {
	return services.WithStage(ctx, stage)
}
