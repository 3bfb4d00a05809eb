package camera

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"veriflow/internal/logging"
	"veriflow/internal/testsupport"
)

type fakeHandle struct {
	ready  chan struct{}
	err    error
	closed bool
}

func newFakeHandle(err error) *fakeHandle {
	h := &fakeHandle{ready: make(chan struct{}), err: err}
	close(h.ready)
	return h
}

func (h *fakeHandle) Ready() <-chan struct{} { return h.ready }
func (h *fakeHandle) Err() error             { return h.err }
func (h *fakeHandle) Close() error {
	h.closed = true
	return nil
}

func newTestManager(t *testing.T, open openFunc, devices []Device) *Manager {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.Camera.AcquireTimeoutSeconds = 1
	cfg.Camera.ReadyTimeoutSeconds = 1
	mgr := NewManager(cfg, logging.NewNop())
	mgr.open = open
	mgr.list = func() ([]Device, error) { return devices, nil }
	return mgr
}

func TestAcquireWalksLadderUntilSuccess(t *testing.T) {
	devices := []Device{{Path: "/dev/video0", Name: "Front Camera"}}
	var attempted []string
	open := func(ctx context.Context, device Device, profile Profile) (streamHandle, error) {
		attempted = append(attempted, profile.Name)
		if profile.Name == "ideal" {
			return nil, unix.EINVAL
		}
		return newFakeHandle(nil), nil
	}

	mgr := newTestManager(t, open, devices)
	session, err := mgr.Acquire(context.Background(), Options{FacingMode: FacingUser})
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if session == nil || !session.Ready() {
		t.Fatal("expected a ready session")
	}
	if len(attempted) != 2 || attempted[0] != "ideal" || attempted[1] != "facing" {
		t.Fatalf("unexpected ladder order: %v", attempted)
	}
	if mgr.Permission() != PermissionGranted {
		t.Fatalf("permission = %q, want granted", mgr.Permission())
	}
}

func TestAcquireStopsAtFirstSuccess(t *testing.T) {
	devices := []Device{{Path: "/dev/video0"}}
	calls := 0
	open := func(ctx context.Context, device Device, profile Profile) (streamHandle, error) {
		calls++
		return newFakeHandle(nil), nil
	}

	mgr := newTestManager(t, open, devices)
	if _, err := mgr.Acquire(context.Background(), Options{}); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if calls != 1 {
		t.Fatalf("open called %d times, want 1", calls)
	}
}

func TestAcquireReleasesPreviousSession(t *testing.T) {
	devices := []Device{{Path: "/dev/video0"}}
	open := func(ctx context.Context, device Device, profile Profile) (streamHandle, error) {
		return newFakeHandle(nil), nil
	}

	mgr := newTestManager(t, open, devices)
	first, err := mgr.Acquire(context.Background(), Options{})
	if err != nil {
		t.Fatalf("first Acquire: %v", err)
	}
	second, err := mgr.Acquire(context.Background(), Options{})
	if err != nil {
		t.Fatalf("second Acquire: %v", err)
	}
	if first.Ready() {
		t.Fatal("first session should be released after reacquire")
	}
	if !second.Ready() {
		t.Fatal("second session should be live")
	}
	if mgr.Session() != second {
		t.Fatal("manager should hold the second session")
	}
}

func TestAcquireNoDevices(t *testing.T) {
	open := func(ctx context.Context, device Device, profile Profile) (streamHandle, error) {
		t.Fatal("open should not run without devices")
		return nil, nil
	}

	mgr := newTestManager(t, open, nil)
	_, err := mgr.Acquire(context.Background(), Options{})
	var camErr *Error
	if !errors.As(err, &camErr) || camErr.Kind != KindNoCamera {
		t.Fatalf("expected no_camera error, got %v", err)
	}
}

func TestAcquirePermissionDeniedRecorded(t *testing.T) {
	devices := []Device{{Path: "/dev/video0"}}
	open := func(ctx context.Context, device Device, profile Profile) (streamHandle, error) {
		return nil, unix.EACCES
	}

	mgr := newTestManager(t, open, devices)
	_, err := mgr.Acquire(context.Background(), Options{})
	var camErr *Error
	if !errors.As(err, &camErr) || camErr.Kind != KindPermissionDenied {
		t.Fatalf("expected permission_denied, got %v", err)
	}
	if mgr.Permission() != PermissionDenied {
		t.Fatalf("permission = %q, want denied", mgr.Permission())
	}
}

func TestAcquireFailedHandleTriesNextProfile(t *testing.T) {
	devices := []Device{{Path: "/dev/video0"}}
	var attempted []string
	open := func(ctx context.Context, device Device, profile Profile) (streamHandle, error) {
		attempted = append(attempted, profile.Name)
		if profile.Name == "ideal" {
			return newFakeHandle(errors.New("probe: Device or resource busy")), nil
		}
		return newFakeHandle(nil), nil
	}

	mgr := newTestManager(t, open, devices)
	if _, err := mgr.Acquire(context.Background(), Options{}); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if len(attempted) != 2 {
		t.Fatalf("attempted = %v, want two profiles", attempted)
	}
}

func TestAcquireCanceledContext(t *testing.T) {
	devices := []Device{{Path: "/dev/video0"}}
	open := func(ctx context.Context, device Device, profile Profile) (streamHandle, error) {
		return nil, ctx.Err()
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	mgr := newTestManager(t, open, devices)
	if _, err := mgr.Acquire(ctx, Options{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestSessionReleaseIdempotent(t *testing.T) {
	devices := []Device{{Path: "/dev/video0"}}
	handle := newFakeHandle(nil)
	open := func(ctx context.Context, device Device, profile Profile) (streamHandle, error) {
		return handle, nil
	}

	mgr := newTestManager(t, open, devices)
	session, err := mgr.Acquire(context.Background(), Options{})
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	session.Release()
	session.Release()
	if !handle.closed {
		t.Fatal("handle should be closed after release")
	}
	if session.Ready() {
		t.Fatal("released session should not report ready")
	}
}

func TestReadyFallbackAfterTimeout(t *testing.T) {
	devices := []Device{{Path: "/dev/video0"}}
	open := func(ctx context.Context, device Device, profile Profile) (streamHandle, error) {
		return &fakeHandle{ready: make(chan struct{})}, nil
	}

	mgr := newTestManager(t, open, devices)
	start := time.Now()
	session, err := mgr.Acquire(context.Background(), Options{})
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if !session.Ready() {
		t.Fatal("session should be assumed ready after the fallback window")
	}
	if elapsed := time.Since(start); elapsed < 500*time.Millisecond {
		t.Fatalf("fallback fired too early: %v", elapsed)
	}
}

func TestPickDevicePrefersFacing(t *testing.T) {
	devices := []Device{
		{Path: "/dev/video0", Name: "Rear Camera"},
		{Path: "/dev/video2", Name: "Front Camera"},
	}

	picked, ok := pickDevice(devices, FacingUser)
	if !ok || picked.Path != "/dev/video2" {
		t.Fatalf("picked %+v, want front camera", picked)
	}

	picked, ok = pickDevice(devices, "")
	if !ok || picked.Path != "/dev/video0" {
		t.Fatalf("picked %+v, want first device", picked)
	}
}
