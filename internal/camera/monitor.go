package camera

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/pilebones/go-udev/netlink"

	"veriflow/internal/logging"
)

// HotplugEvent describes a camera appearing or disappearing at runtime.
type HotplugEvent struct {
	Action string
	Device string
}

// Monitor listens for udev netlink events on the video4linux subsystem so
// the wizard can react when a camera is plugged or unplugged mid-attempt.
type Monitor struct {
	logger  *slog.Logger
	handler func(ctx context.Context, event HotplugEvent)

	mu      sync.Mutex
	conn    *netlink.UEventConn
	quit    chan struct{}
	running bool
}

// NewMonitor creates a hotplug monitor. The handler runs on the monitor
// goroutine; keep it short.
func NewMonitor(logger *slog.Logger, handler func(ctx context.Context, event HotplugEvent)) *Monitor {
	return &Monitor{
		logger:  logging.NewComponentLogger(logger, "camera-monitor"),
		handler: handler,
	}
}

// Start begins listening for udev netlink events. Failure to reach the
// netlink socket is non-fatal; capture still works without hotplug
// awareness.
func (m *Monitor) Start(ctx context.Context) error {
	if m == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil
	}

	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		m.logger.Warn("failed to connect to netlink socket; camera hotplug detection unavailable",
			logging.Error(err),
			logging.String(logging.FieldEventType, "netlink_connect_failed"),
			logging.String(logging.FieldErrorHint, "ensure the process has permission to access netlink sockets"),
			logging.String(logging.FieldImpact, "camera changes require a manual retry"),
		)
		return nil
	}

	m.conn = conn
	m.quit = make(chan struct{})
	m.running = true

	quit := m.quit
	go m.monitorLoop(ctx, quit)

	m.logger.Info("camera hotplug monitor started",
		logging.String(logging.FieldEventType, "camera_monitor_started"),
	)

	return nil
}

// Stop shuts down the monitor.
func (m *Monitor) Stop() {
	if m == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	if m.quit != nil {
		close(m.quit)
		m.quit = nil
	}

	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}

	m.running = false

	m.logger.Info("camera hotplug monitor stopped",
		logging.String(logging.FieldEventType, "camera_monitor_stopped"),
	)
}

// Running reports whether the monitor is active.
func (m *Monitor) Running() bool {
	if m == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Monitor) monitorLoop(ctx context.Context, quit <-chan struct{}) {
	queue := make(chan netlink.UEvent)
	errs := make(chan error)

	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()

	if conn == nil {
		return
	}

	monitorQuit := conn.Monitor(queue, errs, m.buildMatcher())

	for {
		select {
		case <-ctx.Done():
			close(monitorQuit)
			return
		case <-quit:
			close(monitorQuit)
			return
		case uevent := <-queue:
			m.handleEvent(ctx, uevent)
		case err := <-errs:
			m.logger.Warn("netlink monitor error",
				logging.Error(err),
				logging.String(logging.FieldEventType, "netlink_monitor_error"),
				logging.String(logging.FieldErrorHint, "check kernel netlink subsystem"),
			)
		}
	}
}

// buildMatcher matches add and remove events on the video4linux subsystem.
func (m *Monitor) buildMatcher() netlink.Matcher {
	action := "add|remove"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM": "video4linux",
		},
	})
	return rules
}

func (m *Monitor) handleEvent(ctx context.Context, uevent netlink.UEvent) {
	device := extractDeviceName(uevent)
	if device == "" {
		m.logger.Debug("ignoring event without device name",
			logging.String("action", string(uevent.Action)),
			logging.String("kobj", uevent.KObj),
		)
		return
	}

	m.logger.Info("camera hotplug event",
		logging.String(logging.FieldEventType, "camera_hotplug"),
		logging.String(logging.FieldDevice, device),
		logging.String("action", string(uevent.Action)),
	)

	if m.handler != nil {
		m.handler(ctx, HotplugEvent{Action: string(uevent.Action), Device: device})
	}
}

func extractDeviceName(uevent netlink.UEvent) string {
	if devname := uevent.Env["DEVNAME"]; devname != "" {
		if !strings.HasPrefix(devname, "/dev/") {
			return "/dev/" + devname
		}
		return devname
	}

	devpath := uevent.Env["DEVPATH"]
	if devpath == "" {
		return ""
	}

	parts := strings.Split(devpath, "/")
	if len(parts) == 0 {
		return ""
	}
	return "/dev/" + parts[len(parts)-1]
}
