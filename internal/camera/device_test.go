package camera

import (
	"os"
	"path/filepath"
	"testing"
)

func TestListDevicesReadsSysfsNames(t *testing.T) {
	devRoot := t.TempDir()
	sysRoot := t.TempDir()

	for _, node := range []string{"video0", "video2"} {
		if err := os.WriteFile(filepath.Join(devRoot, node), nil, 0o644); err != nil {
			t.Fatalf("create device node: %v", err)
		}
	}
	if err := os.MkdirAll(filepath.Join(sysRoot, "video0"), 0o755); err != nil {
		t.Fatalf("mkdir sysfs: %v", err)
	}
	if err := os.WriteFile(filepath.Join(sysRoot, "video0", "name"), []byte("Integrated Front Camera\n"), 0o644); err != nil {
		t.Fatalf("write sysfs name: %v", err)
	}

	devices, err := listDevices(devRoot, sysRoot)
	if err != nil {
		t.Fatalf("listDevices: %v", err)
	}
	if len(devices) != 2 {
		t.Fatalf("found %d devices, want 2", len(devices))
	}
	if devices[0].Name != "Integrated Front Camera" {
		t.Fatalf("device name = %q", devices[0].Name)
	}
	if devices[0].Facing() != FacingUser {
		t.Fatalf("facing = %q, want user", devices[0].Facing())
	}
	if devices[1].Name != "" || devices[1].Facing() != "" {
		t.Fatalf("device without sysfs entry should have empty name, got %+v", devices[1])
	}
}
