package camera

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/sys/unix"
)

// Kind classifies a camera acquisition failure into a user-reportable category.
type Kind string

const (
	// KindNoCamera indicates no usable capture device was found.
	KindNoCamera Kind = "no_camera"
	// KindPermissionDenied indicates the process lacks access to the device.
	KindPermissionDenied Kind = "permission_denied"
	// KindDeviceBusy indicates another process holds the device.
	KindDeviceBusy Kind = "device_busy"
	// KindUnsupported indicates the device rejected the requested capture mode.
	KindUnsupported Kind = "unsupported"
	// KindUnknown covers failures that fit no other category.
	KindUnknown Kind = "unknown"
)

// Error carries the failure classification alongside a message suitable for
// direct display to the operator.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

func messageFor(kind Kind) string {
	switch kind {
	case KindNoCamera:
		return "No camera found. Connect a camera and retry."
	case KindPermissionDenied:
		return "Camera access denied. Grant this user access to the video device and retry."
	case KindDeviceBusy:
		return "Camera is in use by another application. Close it and retry."
	case KindUnsupported:
		return "Camera does not support the requested capture mode."
	default:
		return "Camera could not be started. Check the device and retry."
	}
}

// Classify maps an acquisition failure onto a Kind with an operator-facing
// message. Errno values take priority; ffmpeg stderr text is matched as a
// fallback because the process exit error hides the underlying errno.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	var camErr *Error
	if errors.As(err, &camErr) {
		return camErr
	}

	kind := KindUnknown
	var errno unix.Errno
	if errors.As(err, &errno) {
		switch errno {
		case unix.EACCES, unix.EPERM:
			kind = KindPermissionDenied
		case unix.ENOENT, unix.ENODEV, unix.ENXIO:
			kind = KindNoCamera
		case unix.EBUSY:
			kind = KindDeviceBusy
		case unix.EINVAL, unix.ENOTSUP, unix.ENOSYS:
			kind = KindUnsupported
		}
	} else if errors.Is(err, context.DeadlineExceeded) {
		return &Error{
			Kind:    KindUnknown,
			Message: "Camera did not respond in time. Check the connection and retry.",
			cause:   err,
		}
	} else {
		kind = classifyText(err.Error())
	}

	return &Error{Kind: kind, Message: messageFor(kind), cause: err}
}

func classifyText(text string) Kind {
	lowered := strings.ToLower(text)
	switch {
	case strings.Contains(lowered, "permission denied") || strings.Contains(lowered, "operation not permitted"):
		return KindPermissionDenied
	case strings.Contains(lowered, "no such file") || strings.Contains(lowered, "no such device"):
		return KindNoCamera
	case strings.Contains(lowered, "device or resource busy") || strings.Contains(lowered, "resource busy"):
		return KindDeviceBusy
	case strings.Contains(lowered, "not supported") || strings.Contains(lowered, "invalid argument"):
		return KindUnsupported
	default:
		return KindUnknown
	}
}
