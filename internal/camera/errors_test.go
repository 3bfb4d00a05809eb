package camera

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"golang.org/x/sys/unix"
)

func TestClassifyErrno(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Kind
	}{
		{"access denied", unix.EACCES, KindPermissionDenied},
		{"not permitted", unix.EPERM, KindPermissionDenied},
		{"missing node", unix.ENOENT, KindNoCamera},
		{"gone device", unix.ENODEV, KindNoCamera},
		{"no such address", unix.ENXIO, KindNoCamera},
		{"busy", unix.EBUSY, KindDeviceBusy},
		{"bad mode", unix.EINVAL, KindUnsupported},
		{"no capture support", unix.ENOTSUP, KindUnsupported},
		{"wrapped errno", fmt.Errorf("open /dev/video0: %w", unix.EACCES), KindPermissionDenied},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify(tc.err)
			if got.Kind != tc.want {
				t.Fatalf("Classify(%v) kind = %q, want %q", tc.err, got.Kind, tc.want)
			}
			if got.Message == "" {
				t.Fatal("classified error needs an operator message")
			}
		})
	}
}

func TestClassifyStderrText(t *testing.T) {
	cases := []struct {
		text string
		want Kind
	}{
		{"probe: /dev/video0: Permission denied", KindPermissionDenied},
		{"probe: /dev/video0: No such file or directory", KindNoCamera},
		{"probe: /dev/video0: Device or resource busy", KindDeviceBusy},
		{"probe: ioctl(VIDIOC_S_FMT): Invalid argument", KindUnsupported},
		{"probe: something odd happened", KindUnknown},
	}

	for _, tc := range cases {
		got := Classify(errors.New(tc.text))
		if got.Kind != tc.want {
			t.Fatalf("Classify(%q) kind = %q, want %q", tc.text, got.Kind, tc.want)
		}
	}
}

func TestClassifyTimeout(t *testing.T) {
	got := Classify(context.DeadlineExceeded)
	if got.Kind != KindUnknown {
		t.Fatalf("kind = %q, want unknown", got.Kind)
	}
	if !strings.Contains(got.Message, "did not respond") {
		t.Fatalf("message = %q, want timeout wording", got.Message)
	}
}

func TestClassifyPassesThroughCameraError(t *testing.T) {
	original := &Error{Kind: KindDeviceBusy, Message: messageFor(KindDeviceBusy)}
	wrapped := fmt.Errorf("acquire: %w", original)
	if got := Classify(wrapped); got != original {
		t.Fatalf("expected the original classification back, got %+v", got)
	}
}

func TestClassifyNil(t *testing.T) {
	if got := Classify(nil); got != nil {
		t.Fatalf("Classify(nil) = %+v, want nil", got)
	}
}
