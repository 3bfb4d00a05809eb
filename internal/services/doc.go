// Package services holds error classification and context plumbing shared by
// the capture pipeline components. Sentinel markers wrap failures with stage
// context so the CLI and wizard can surface the most specific user-facing
// message available without inspecting component internals.
package services
