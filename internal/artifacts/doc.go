// Package artifacts persists captured document images and the face clip in a
// local SQLite database so a verification attempt survives process restarts.
// Writes are last-write-wins per key; artifacts are cleared only on
// successful submission or explicit cancellation, never on failure.
package artifacts
