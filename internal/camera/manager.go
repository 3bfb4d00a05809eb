package camera

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"veriflow/internal/config"
	"veriflow/internal/logging"
)

// Permission reports the most recent outcome of device access.
type Permission string

const (
	PermissionUnknown Permission = "unknown"
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
)

// Profile describes one rung of the acquisition ladder. Zero-valued
// dimensions mean the device picks its own mode.
type Profile struct {
	Name      string
	Width     int
	Height    int
	FrameRate int
	Facing    string
}

// Options adjusts a single acquisition without touching configuration.
type Options struct {
	// FacingMode overrides the configured facing preference when non-empty.
	FacingMode string
}

// streamHandle is the live end of an opened device. The ready channel closes
// once the device has produced a decodable frame or the probe gave up.
type streamHandle interface {
	Ready() <-chan struct{}
	Err() error
	Close() error
}

type openFunc func(ctx context.Context, device Device, profile Profile) (streamHandle, error)

// Session represents exclusive ownership of a capture device. At most one
// session exists per Manager; acquiring a new one releases the previous.
type Session struct {
	device  Device
	profile Profile
	handle  streamHandle
	lock    *flock.Flock
	ready   bool

	mu       sync.Mutex
	released bool
}

// Device returns the capture node this session holds.
func (s *Session) Device() Device {
	return s.device
}

// Profile returns the capture mode the session was granted.
func (s *Session) Profile() Profile {
	return s.profile
}

// Ready reports whether the device produced a frame during acquisition.
func (s *Session) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready && !s.released
}

// Release frees the device and its exclusivity lock. Safe to call more than
// once.
func (s *Session) Release() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return
	}
	s.released = true
	if s.handle != nil {
		_ = s.handle.Close()
	}
	if s.lock != nil {
		_ = s.lock.Unlock()
	}
}

// Manager owns camera acquisition and release. Acquisition walks a ladder of
// capture profiles from most to least constrained so that a device that
// rejects the ideal mode still yields a usable stream.
type Manager struct {
	cfg    *config.Config
	logger *slog.Logger
	open   openFunc
	list   func() ([]Device, error)

	mu         sync.Mutex
	session    *Session
	permission Permission
}

// NewManager builds a Manager using ffmpeg to probe devices.
func NewManager(cfg *config.Config, logger *slog.Logger) *Manager {
	m := &Manager{
		cfg:        cfg,
		logger:     logging.NewComponentLogger(logger, "camera"),
		list:       ListDevices,
		permission: PermissionUnknown,
	}
	m.open = m.ffmpegOpen
	return m
}

// Permission reports the last observed device access outcome.
func (m *Manager) Permission() Permission {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.permission
}

// Session returns the active session, or nil when no device is held.
func (m *Manager) Session() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

// Release frees the active session if one exists.
func (m *Manager) Release() {
	m.mu.Lock()
	session := m.session
	m.session = nil
	m.mu.Unlock()
	session.Release()
}

// Acquire opens a capture device, trying each ladder profile in turn until
// one succeeds. Any previously held session is released first so the manager
// never holds two streams. Each profile gets its own timeout; when every
// profile fails the most specific classification observed is returned.
func (m *Manager) Acquire(ctx context.Context, opts Options) (*Session, error) {
	m.Release()

	devices, err := m.availableDevices()
	if err != nil {
		return nil, err
	}
	if len(devices) == 0 {
		failure := &Error{Kind: KindNoCamera, Message: messageFor(KindNoCamera)}
		m.recordFailure(failure)
		return nil, failure
	}

	facing := strings.TrimSpace(opts.FacingMode)
	if facing == "" {
		facing = m.cfg.Camera.FacingMode
	}

	var lastErr *Error
	for _, profile := range m.ladder(facing) {
		device, ok := pickDevice(devices, profile.Facing)
		if !ok {
			continue
		}

		session, err := m.attempt(ctx, device, profile)
		if err == nil {
			m.mu.Lock()
			m.session = session
			m.permission = PermissionGranted
			m.mu.Unlock()
			m.logger.Info("camera acquired",
				logging.String(logging.FieldDevice, device.Path),
				logging.String("profile", profile.Name),
				logging.String(logging.FieldEventType, "camera_acquired"),
			)
			return session, nil
		}

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		classified := Classify(err)
		m.logger.Warn("camera profile failed",
			logging.Error(err),
			logging.String(logging.FieldDevice, device.Path),
			logging.String("profile", profile.Name),
			logging.String("kind", string(classified.Kind)),
			logging.String(logging.FieldEventType, "camera_profile_failed"),
		)
		if lastErr == nil || preferKind(classified.Kind, lastErr.Kind) {
			lastErr = classified
		}
	}

	m.recordFailure(lastErr)
	return nil, lastErr
}

func (m *Manager) recordFailure(failure *Error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if failure != nil && failure.Kind == KindPermissionDenied {
		m.permission = PermissionDenied
	} else {
		m.permission = PermissionUnknown
	}
}

// preferKind reports whether candidate is a more actionable classification
// than current. Unknown loses to everything else.
func preferKind(candidate, current Kind) bool {
	if current == KindUnknown && candidate != KindUnknown {
		return true
	}
	return false
}

func (m *Manager) availableDevices() ([]Device, error) {
	if configured := strings.TrimSpace(m.cfg.Camera.Device); configured != "" {
		name := ""
		base := filepath.Base(configured)
		if raw, err := os.ReadFile(filepath.Join("/sys/class/video4linux", base, "name")); err == nil {
			name = strings.TrimSpace(string(raw))
		}
		return []Device{{Path: configured, Name: name}}, nil
	}
	return m.list()
}

// ladder returns the acquisition profiles from most to least constrained:
// the configured resolution with facing preference, facing preference alone,
// then any device in any mode.
func (m *Manager) ladder(facing string) []Profile {
	cam := m.cfg.Camera
	return []Profile{
		{Name: "ideal", Width: cam.Width, Height: cam.Height, FrameRate: cam.FrameRate, Facing: facing},
		{Name: "facing", Facing: facing},
		{Name: "any"},
	}
}

// attempt opens a single device with one profile under the acquisition
// timeout, then waits for readiness up to the ready timeout. A device that
// never signals readiness within that window is assumed live anyway; some
// capture stacks deliver frames without ever reporting a state change.
func (m *Manager) attempt(ctx context.Context, device Device, profile Profile) (*Session, error) {
	acquireTimeout := time.Duration(m.cfg.Camera.AcquireTimeoutSeconds) * time.Second
	attemptCtx, cancel := context.WithTimeout(ctx, acquireTimeout)
	defer cancel()

	lockPath := m.lockPath(device)
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	lock := flock.New(lockPath)
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("device lock: %w", err)
	}
	if !locked {
		return nil, &Error{Kind: KindDeviceBusy, Message: messageFor(KindDeviceBusy)}
	}

	handle, err := m.open(attemptCtx, device, profile)
	if err != nil {
		_ = lock.Unlock()
		return nil, err
	}

	ready := false
	readyTimeout := time.Duration(m.cfg.Camera.ReadyTimeoutSeconds) * time.Second
	select {
	case <-handle.Ready():
		if err := handle.Err(); err != nil {
			_ = handle.Close()
			_ = lock.Unlock()
			return nil, err
		}
		ready = true
	case <-time.After(readyTimeout):
		m.logger.Warn("camera readiness timed out, continuing",
			logging.String(logging.FieldDevice, device.Path),
			logging.String("profile", profile.Name),
			logging.String(logging.FieldEventType, "camera_ready_fallback"),
		)
		ready = true
	case <-ctx.Done():
		_ = handle.Close()
		_ = lock.Unlock()
		return nil, ctx.Err()
	}

	return &Session{
		device:  device,
		profile: profile,
		handle:  handle,
		lock:    lock,
		ready:   ready,
	}, nil
}

func (m *Manager) lockPath(device Device) string {
	return filepath.Join(m.cfg.Paths.DataDir, "locks", filepath.Base(device.Path)+".lock")
}

// ffmpegOpen starts a one-frame ffmpeg probe against the device. The probe
// exiting cleanly proves the device delivers decodable frames in the
// requested mode.
func (m *Manager) ffmpegOpen(ctx context.Context, device Device, profile Profile) (streamHandle, error) {
	// Touch the node directly first so permission and existence failures
	// surface as errnos instead of opaque ffmpeg exit codes.
	f, err := os.OpenFile(device.Path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	_ = f.Close()

	args := []string{"-hide_banner", "-loglevel", "error", "-f", "v4l2"}
	if profile.Width > 0 && profile.Height > 0 {
		args = append(args, "-video_size", fmt.Sprintf("%dx%d", profile.Width, profile.Height))
	}
	if profile.FrameRate > 0 {
		args = append(args, "-framerate", strconv.Itoa(profile.FrameRate))
	}
	args = append(args, "-i", device.Path, "-frames:v", "1", "-f", "null", "-")

	cmd := exec.CommandContext(ctx, m.cfg.FFmpegBinary(), args...)
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start probe: %w", err)
	}

	handle := &probeHandle{cmd: cmd, stderr: stderr, ready: make(chan struct{})}
	go handle.wait()
	return handle, nil
}

type probeHandle struct {
	cmd    *exec.Cmd
	stderr *bytes.Buffer
	ready  chan struct{}
	err    error
}

func (h *probeHandle) wait() {
	if err := h.cmd.Wait(); err != nil {
		detail := strings.TrimSpace(h.stderr.String())
		if detail != "" {
			h.err = fmt.Errorf("probe: %s: %w", detail, err)
		} else {
			h.err = fmt.Errorf("probe: %w", err)
		}
	}
	close(h.ready)
}

func (h *probeHandle) Ready() <-chan struct{} {
	return h.ready
}

func (h *probeHandle) Err() error {
	select {
	case <-h.ready:
		return h.err
	default:
		return nil
	}
}

func (h *probeHandle) Close() error {
	if h.cmd.Process != nil {
		_ = h.cmd.Process.Kill()
	}
	<-h.ready
	return nil
}
