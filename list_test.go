package serial

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// withRoots points the enumeration code at temporary directories
func withRoots(t *testing.T, dev, byID, sysfs string) {
	t.Helper()
	oldDev, oldByID, oldSysfs := devDir, byIDDir, sysfsDir
	devDir, byIDDir, sysfsDir = dev, byID, sysfs
	t.Cleanup(func() {
		devDir, byIDDir, sysfsDir = oldDev, oldByID, oldSysfs
	})
}

func TestListPorts(t *testing.T) {
	ports, err := ListPorts()
	if err != nil {
		t.Errorf("ListPorts failed: %v", err)
	}

	// Check that all returned ports are valid paths
	for _, port := range ports {
		if !strings.HasPrefix(port, "/dev/") {
			t.Errorf("Port path doesn't start with /dev/: %s", port)
		}

		// Verify it's a character device
		if !isCharacterDevice(port) {
			t.Errorf("Port is not a character device: %s", port)
		}
	}

	// Check that ports are sorted
	for i := 1; i < len(ports); i++ {
		if ports[i-1] > ports[i] {
			t.Errorf("Ports are not sorted: %s > %s", ports[i-1], ports[i])
		}
	}
}

func TestListPortsEmptyDevDir(t *testing.T) {
	dir := t.TempDir()
	// Regular files named like serial ports are not character devices
	for _, name := range []string{"ttyUSB0", "ttyS0"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0644); err != nil {
			t.Fatalf("Failed to create %s: %v", name, err)
		}
	}
	withRoots(t, dir, filepath.Join(dir, "by-id"), dir)

	ports, err := ListPorts()
	if err != nil {
		t.Fatalf("ListPorts failed: %v", err)
	}
	if len(ports) != 0 {
		t.Errorf("Expected no ports, got %v", ports)
	}

	infos, err := ListPortInfo()
	if err != nil {
		t.Fatalf("ListPortInfo failed: %v", err)
	}
	if len(infos) != 0 {
		t.Errorf("Expected no port info, got %v", infos)
	}
}

func TestListPortsMissingDevDir(t *testing.T) {
	withRoots(t, filepath.Join(t.TempDir(), "missing"), "", "")

	if _, err := ListPorts(); err == nil {
		t.Error("Expected error for missing device directory")
	}
}

func TestIsCharacterDevice(t *testing.T) {
	tests := []struct {
		path     string
		expected bool
	}{
		{"/dev/null", true},     // Should exist and be a character device
		{"/dev/zero", true},     // Should exist and be a character device
		{"/tmp", false},         // Directory, not character device
		{"/nonexistent", false}, // Doesn't exist
	}

	for _, test := range tests {
		result := isCharacterDevice(test.path)
		if result != test.expected {
			t.Errorf("isCharacterDevice(%s) = %v, expected %v", test.path, result, test.expected)
		}
	}
}

func TestGetPortDescription(t *testing.T) {
	tests := []struct {
		name     string
		expected string
	}{
		{"ttyUSB0", "USB Serial Port"},
		{"ttyACM0", "USB CDC/ACM Device"},
		{"ttyS0", "Standard Serial Port"},
		{"ttyAMA0", "ARM Serial Port"},
		{"ttymxc0", "i.MX Serial Port"},
		{"ttyO0", "OMAP Serial Port"},
		{"ttySAC0", "Samsung Serial Port"},
		{"ttyTHS0", "Tegra Serial Port"},
		{"rfcomm0", "Bluetooth Serial Port"},
		{"unknown", "Serial Port"},
	}

	for _, test := range tests {
		result := getPortDescription(test.name)
		if result != test.expected {
			t.Errorf("getPortDescription(%s) = %s, expected %s", test.name, result, test.expected)
		}
	}
}

func TestGetPortInfo(t *testing.T) {
	// Test with /dev/null as it should always exist and be a character device
	info, err := GetPortInfo("/dev/null")
	if err != nil {
		t.Fatalf("GetPortInfo failed for /dev/null: %v", err)
	}

	if info.Name != "null" {
		t.Errorf("Expected name 'null', got '%s'", info.Name)
	}

	if info.Path != "/dev/null" {
		t.Errorf("Expected path '/dev/null', got '%s'", info.Path)
	}

	if info.Description == "" {
		t.Error("Description should not be empty")
	}

	// Test with non-existent device
	_, err = GetPortInfo("/dev/nonexistent")
	if err != ErrDeviceNotFound {
		t.Errorf("Expected ErrDeviceNotFound, got %v", err)
	}
}

// TestPortFiltering tests that we correctly filter different types of devices
func TestPortFiltering(t *testing.T) {
	testDevices := []struct {
		name        string
		shouldMatch bool
	}{
		{"ttyUSB0", true},
		{"ttyUSB1", true},
		{"ttyACM0", true},
		{"ttyS0", true},
		{"ttyAMA0", true},
		{"rfcomm0", true},
		{"tty1", false},    // Virtual terminal - should be excluded
		{"tty2", false},    // Virtual terminal - should be excluded
		{"console", false}, // Console - should be excluded
		{"ptmx", false},    // Pseudo-terminal - should be excluded
		{"ptyp0", false},   // Pseudo-terminal - should be excluded
		{"random", false},  // Not a serial device
		{"urandom", false}, // Not a serial device
	}

	for _, device := range testDevices {
		if got := isSerialName(device.name); got != device.shouldMatch {
			t.Errorf("isSerialName(%s) = %v, expected %v", device.name, got, device.shouldMatch)
		}
	}
}

func TestLookupPnPID(t *testing.T) {
	dir := t.TempDir()
	byID := filepath.Join(dir, "by-id")
	if err := os.MkdirAll(byID, 0755); err != nil {
		t.Fatalf("Failed to create by-id dir: %v", err)
	}

	device := filepath.Join(dir, "ttyUSB0")
	other := filepath.Join(dir, "ttyUSB1")
	for _, path := range []string{device, other} {
		if err := os.WriteFile(path, nil, 0644); err != nil {
			t.Fatalf("Failed to create %s: %v", path, err)
		}
	}

	links := map[string]string{
		"usb-FTDI_FT232R_USB_UART_A50285BI-if00-port0": "../ttyUSB0",
		"usb-Prolific_PL2303-if00-port0":               "../ttyUSB1",
		"dangling":                                     "../ttyUSB9",
	}
	for name, target := range links {
		if err := os.Symlink(target, filepath.Join(byID, name)); err != nil {
			t.Fatalf("Failed to create symlink %s: %v", name, err)
		}
	}

	withRoots(t, dir, byID, dir)

	if got := lookupPnPID(device); got != "usb-FTDI_FT232R_USB_UART_A50285BI-if00-port0" {
		t.Errorf("lookupPnPID(ttyUSB0) = %q", got)
	}
	if got := lookupPnPID(other); got != "usb-Prolific_PL2303-if00-port0" {
		t.Errorf("lookupPnPID(ttyUSB1) = %q", got)
	}
	if got := lookupPnPID(filepath.Join(dir, "ttyS0")); got != "" {
		t.Errorf("lookupPnPID(ttyS0) = %q, want empty", got)
	}

	withRoots(t, dir, filepath.Join(dir, "no-by-id"), dir)
	if got := lookupPnPID(device); got != "" {
		t.Errorf("lookupPnPID without by-id dir = %q, want empty", got)
	}
}

// BenchmarkListPorts benchmarks the ListPorts function
func BenchmarkListPorts(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_, err := ListPorts()
		if err != nil {
			b.Errorf("ListPorts failed: %v", err)
		}
	}
}

// TestListPortsIntegration is an integration test that requires actual system
func TestListPortsIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	infos, err := ListPortInfo()
	if err != nil {
		t.Fatalf("ListPortInfo failed: %v", err)
	}

	t.Logf("Found %d serial ports:", len(infos))
	for i, info := range infos {
		t.Logf("  %d. %s (%s) pnp=%q manufacturer=%q", i+1, info.Path, info.Description, info.PnPID, info.Manufacturer)

		stat, err := os.Stat(info.Path)
		if err != nil {
			t.Errorf("Cannot stat port %s: %v", info.Path, err)
			continue
		}
		if stat.Mode()&os.ModeCharDevice == 0 {
			t.Errorf("Port %s is not a character device", info.Path)
		}
	}
}
