// Package session tracks verification attempt progress: the opaque session
// token, consent flags, country and document selection, and per-stage
// completion booleans. The submission orchestrator reads this record at
// submit time; capture stages write completion flags back after each step.
package session
