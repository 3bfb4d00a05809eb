package camera

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Device describes a video capture node.
type Device struct {
	Path string
	Name string
}

// Facing values mirror the capture orientation requested by callers.
const (
	FacingUser        = "user"
	FacingEnvironment = "environment"
)

// Facing guesses the capture orientation from the device name reported by
// the kernel. Laptops and kiosks label integrated cameras inconsistently, so
// an empty result means unknown rather than absent.
func (d Device) Facing() string {
	name := strings.ToLower(d.Name)
	switch {
	case strings.Contains(name, "front") || strings.Contains(name, "user"):
		return FacingUser
	case strings.Contains(name, "back") || strings.Contains(name, "rear"):
		return FacingEnvironment
	default:
		return ""
	}
}

// ListDevices enumerates video capture nodes under /dev. Names come from
// sysfs when available.
func ListDevices() ([]Device, error) {
	return listDevices("/dev", "/sys/class/video4linux")
}

func listDevices(devRoot, sysRoot string) ([]Device, error) {
	matches, err := filepath.Glob(filepath.Join(devRoot, "video*"))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)

	devices := make([]Device, 0, len(matches))
	for _, path := range matches {
		base := filepath.Base(path)
		name := ""
		if raw, err := os.ReadFile(filepath.Join(sysRoot, base, "name")); err == nil {
			name = strings.TrimSpace(string(raw))
		}
		devices = append(devices, Device{Path: path, Name: name})
	}
	return devices, nil
}

// pickDevice selects the device best matching the requested facing mode,
// falling back to the first device when nothing matches or facing is empty.
func pickDevice(devices []Device, facing string) (Device, bool) {
	if len(devices) == 0 {
		return Device{}, false
	}
	if facing != "" {
		for _, dev := range devices {
			if dev.Facing() == facing {
				return dev, true
			}
		}
	}
	return devices[0], true
}
