// Package camera manages exclusive access to video capture devices. A
// Manager walks a ladder of capture profiles from the configured ideal mode
// down to "any device, any mode", holds at most one live session at a time,
// and classifies failures into operator-actionable categories.
package camera
