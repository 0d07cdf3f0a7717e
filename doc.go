// Package serial provides serial port access and device discovery for Linux.
//
// It is the transport underneath the tsm terminal: raw-mode termios setup,
// poll-paced reads and writes that honour a context, modem line status, and
// enumeration of the serial devices present on the machine with their USB
// metadata.
//
// # Basic Usage
//
// Open a serial port with default configuration (115200 8N1, no flow control):
//
//	port, err := serial.Open("/dev/ttyUSB0")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer port.Close()
//
//	n, err := port.Write([]byte("Hello"))
//	buffer := make([]byte, 256)
//	n, err = port.ReadContext(ctx, buffer)
//
// # Configuration Options
//
//	port, err := serial.Open("/dev/ttyUSB0",
//	    serial.WithBaudRate(250000),          // non-standard rates use BOTHER
//	    serial.WithDataBits(7),
//	    serial.WithParity(serial.ParityMark),
//	    serial.WithStopBits(serial.StopBits2),
//	    serial.WithFlowControl(serial.FlowControlRTSCTS),
//	    serial.WithInitialDTR(true),
//	)
//
// Ports are opened with TIOCEXCL unless WithExclusive(false) is given.
//
// # Reads and Writes
//
// The descriptor is non-blocking and every wait happens in poll(2) with a
// short timeout. ReadContext returns once data arrives, the port fails or
// ctx is done; a hangup on the line is reported as io.EOF. Write keeps
// going until all data is queued, and returns ErrPortClosed if the port is
// closed while it waits for room. Drain(ctx) waits for the output queue to
// empty and gives up when ctx is done.
//
// # Port Discovery
//
//	infos, err := serial.ListPortInfo()
//	for _, info := range infos {
//	    fmt.Printf("%s %s %s\n", info.Path, info.PnPID, info.Manufacturer)
//	}
//
// PnPID is the name of the /dev/serial/by-id link for the device. USB
// fields are read from sysfs and stay empty for on-board UARTs.
//
// # Modem Signals
//
//	signals, err := port.GetModemSignals()
//	signals, changed, err := port.WaitForSignalChangeContext(ctx, serial.SignalDCD)
//
// # Error Handling
//
// Open failures wrap ErrDeviceNotFound, ErrPermissionDenied or
// ErrDeviceInUse together with the device path; check them with errors.Is.
// Any operation on a closed port returns ErrPortClosed.
package serial
