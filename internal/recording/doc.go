// Package recording captures the short face-verification clip. A Recorder
// walks idle, countdown, recording, and complete states, accumulates encoded
// chunks in arrival order, and enforces the clip duration with a deadline
// that stops capture even if the device keeps streaming.
package recording
