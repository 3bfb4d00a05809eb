package wizard

import (
	"context"
	"log/slog"

	"veriflow/internal/session"
)

// Handler describes the contract the wizard needs from each capture stage.
// Execute receives the current progress record and mutates it through the
// stage's own tracker writes.
type Handler interface {
	Prepare(context.Context, session.State) error
	Execute(context.Context, session.State) error
	HealthCheck(context.Context) Health
}

// LoggerAware lets the runner hand stages a logger scoped to the stage.
type LoggerAware interface {
	SetLogger(*slog.Logger)
}

// Health summarizes the readiness of a wizard stage.
type Health struct {
	Name   string
	Ready  bool
	Detail string
}

// Healthy constructs a ready Health record.
func Healthy(name string) Health {
	return Health{Name: name, Ready: true}
}

// Unhealthy constructs an unhealthy Health record with context detail.
func Unhealthy(name, detail string) Health {
	return Health{Name: name, Ready: false, Detail: detail}
}
