// Package main hosts the veriflow CLI entrypoint and command graph.
//
// The Cobra-based command tree drives the identity capture pipeline from the
// terminal: document and face capture, artifact inspection, submission to the
// verification service, and status polling. It centralizes configuration
// resolution and structured logging setup so subcommands can focus on user
// experience instead of wiring.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
