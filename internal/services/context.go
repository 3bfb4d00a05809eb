package services

import "context"

type contextKey string

const (
	attemptIDKey contextKey = "attempt_id"
	stageKey     contextKey = "stage"
	deviceKey    contextKey = "device"
)

// WithAttemptID annotates context with the verification attempt identifier.
func WithAttemptID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, attemptIDKey, id)
}

// AttemptIDFromContext extracts the verification attempt identifier if present.
func AttemptIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(attemptIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithStage annotates context with the capture stage name.
func WithStage(ctx context.Context, stage string) context.Context {
	if stage == "" {
		return ctx
	}
	return context.WithValue(ctx, stageKey, stage)
}

// StageFromContext returns the stage name if present.
func StageFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(stageKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithDevice annotates context with the camera device path.
func WithDevice(ctx context.Context, device string) context.Context {
	if device == "" {
		return ctx
	}
	return context.WithValue(ctx, deviceKey, device)
}

// DeviceFromContext returns the camera device path if present.
func DeviceFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(deviceKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
