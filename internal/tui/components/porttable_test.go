package components

import (
	"strings"
	"testing"

	serial "github.com/allbin/go-serial-terminal"
)

func TestRenderPortTableEmpty(t *testing.T) {
	if got := RenderPortTable(nil); got != "" {
		t.Errorf("RenderPortTable(nil) = %q, want empty", got)
	}
}

func TestRenderPortTable(t *testing.T) {
	ports := []serial.PortInfo{
		{
			Name:        "ttyS0",
			Path:        "/dev/ttyS0",
			Description: "Standard Serial Port",
		},
		{
			Name:         "ttyUSB0",
			Path:         "/dev/ttyUSB0",
			Description:  "USB Serial Port",
			Manufacturer: "FTDI",
			VendorID:     "0403",
			ProductID:    "6001",
			SerialNumber: "A50285BI",
			PnPID:        "usb-FTDI_FT232R_USB_UART_A50285BI-if00-port0",
		},
	}

	out := RenderPortTable(ports)

	for _, want := range []string{
		"Found 2 serial port(s):",
		"Port", "Manufacturer", "PnP ID",
		"/dev/ttyS0", "Standard Serial Port",
		"/dev/ttyUSB0", "FTDI", "0403:6001", "A50285BI",
		"usb-FTDI_FT232R_USB_UART_A50285BI-if00-port0",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}

	// ttyS0 has no USB ids
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, "/dev/ttyS0") && strings.Contains(line, ":") {
			t.Errorf("on-board port row shows USB ids: %q", line)
		}
	}

	// Rows keep the input order
	if strings.Index(out, "/dev/ttyS0") > strings.Index(out, "/dev/ttyUSB0") {
		t.Error("rows are out of order")
	}
}
