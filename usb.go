package serial

import (
	"os"
	"path/filepath"
	"strings"
)

// readSysfsFile returns the trimmed content of a sysfs attribute, or "" if
// it cannot be read
func readSysfsFile(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// enrichUSBInfo fills the USB fields of info from sysfs.
//
// /sys/class/tty/<name>/device resolves to the USB interface directory
// (e.g. .../usb5/5-2.3.1/5-2.3.1:1.0, or one level deeper for ttyUSB
// where the tty hangs off a usb-serial port node). The interface carries
// bInterfaceNumber and its parent the device attributes.
func enrichUSBInfo(info *PortInfo) {
	devicePath := filepath.Join(sysfsDir, "class", "tty", info.Name, "device")
	resolvedPath, err := filepath.EvalSymlinks(devicePath)
	if err != nil {
		return
	}

	interfacePath := findInterfaceDir(resolvedPath)
	if interfacePath == "" {
		return
	}
	info.InterfaceNumber = readSysfsFile(filepath.Join(interfacePath, "bInterfaceNumber"))

	usbDevicePath := filepath.Dir(interfacePath)
	info.VendorID = readSysfsFile(filepath.Join(usbDevicePath, "idVendor"))
	info.ProductID = readSysfsFile(filepath.Join(usbDevicePath, "idProduct"))
	info.SerialNumber = readSysfsFile(filepath.Join(usbDevicePath, "serial"))
	info.Manufacturer = readSysfsFile(filepath.Join(usbDevicePath, "manufacturer"))
	info.Product = readSysfsFile(filepath.Join(usbDevicePath, "product"))
	info.BusNumber = readSysfsFile(filepath.Join(usbDevicePath, "busnum"))
	info.DeviceNumber = readSysfsFile(filepath.Join(usbDevicePath, "devnum"))
}

// findInterfaceDir walks up from path (at most a few levels) to the
// directory holding bInterfaceNumber
func findInterfaceDir(path string) string {
	for i := 0; i < 3; i++ {
		if _, err := os.Stat(filepath.Join(path, "bInterfaceNumber")); err == nil {
			return path
		}
		parent := filepath.Dir(path)
		if parent == path {
			break
		}
		path = parent
	}
	return ""
}
