// Package logging provides slog-based structured logging with console and
// JSON handlers, component loggers, and context-derived attempt/stage fields.
package logging
