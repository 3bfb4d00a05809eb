// Package ffprobe wraps the ffprobe binary for inspecting recorded clips:
// duration and native dimensions drive frame extraction seek targets.
package ffprobe
