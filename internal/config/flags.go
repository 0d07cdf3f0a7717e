package config

import (
	"fmt"
	"strconv"
	"strings"

	serial "github.com/allbin/go-serial-terminal"
	"github.com/spf13/pflag"
)

// Flag and configuration keys
const (
	KeyBaud          = "baud"
	KeyDataBits      = "data-bits"
	KeyStopBits      = "stop-bits"
	KeyParity        = "parity"
	KeyEcho          = "echo"
	KeyRTSCTS        = "rtscts"
	KeyExclusive     = "exclusive"
	KeyDTR           = "dtr"
	KeyRTS           = "rts"
	KeyCarrierDetect = "carrier-detect"
	KeyLogLevel      = "log-level"
	KeyLogFile       = "log-file"
)

// Defaults
const (
	DefaultBaud     = 115200
	DefaultDataBits = 8
	DefaultLogLevel = "info"
)

// dataBitsValue accepts 5, 6, 7 or 8
type dataBitsValue int

func (d *dataBitsValue) String() string { return strconv.Itoa(int(*d)) }
func (d *dataBitsValue) Type() string   { return "int" }

func (d *dataBitsValue) Set(s string) error {
	bits, err := parseDataBits(s)
	if err != nil {
		return err
	}
	*d = dataBitsValue(bits)
	return nil
}

func parseDataBits(s string) (int, error) {
	bits, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || bits < 5 || bits > 8 {
		return 0, fmt.Errorf("invalid data bits %q (valid: 5, 6, 7, 8)", s)
	}
	return bits, nil
}

type stopBitsValue serial.StopBits

func (v *stopBitsValue) String() string { return serial.StopBits(*v).String() }
func (v *stopBitsValue) Type() string   { return "string" }

func (v *stopBitsValue) Set(s string) error {
	bits, err := serial.ParseStopBits(s)
	if err != nil {
		return err
	}
	*v = stopBitsValue(bits)
	return nil
}

type parityValue serial.Parity

func (v *parityValue) String() string { return serial.Parity(*v).String() }
func (v *parityValue) Type() string   { return "string" }

func (v *parityValue) Set(s string) error {
	p, err := serial.ParseParity(s)
	if err != nil {
		return err
	}
	*v = parityValue(p)
	return nil
}

// boolValue is a boolean flag that always takes a value (--echo true),
// unlike pflag's Bool which would treat the following word as an argument.
type boolValue bool

func (b *boolValue) String() string { return strconv.FormatBool(bool(*b)) }
func (b *boolValue) Type() string   { return "bool" }

func (b *boolValue) Set(s string) error {
	v, err := strconv.ParseBool(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("invalid boolean %q", s)
	}
	*b = boolValue(v)
	return nil
}

func newBool(fs *pflag.FlagSet, name string, value bool, usage string) {
	v := boolValue(value)
	fs.Var(&v, name, usage)
}

// RegisterFlags adds the serial, session and logging flags to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	dataBits := dataBitsValue(DefaultDataBits)
	stopBits := stopBitsValue(serial.StopBits1)
	parity := parityValue(serial.ParityNone)

	fs.IntP(KeyBaud, "b", DefaultBaud, "baud rate")
	fs.Var(&dataBits, KeyDataBits, "data bits `5|6|7|8`")
	fs.Var(&stopBits, KeyStopBits, "stop bits `1|1.5|2`")
	fs.Var(&parity, KeyParity, "parity `none|even|odd|mark|space`")
	newBool(fs, KeyEcho, false, "echo input to output `true|false`")

	newBool(fs, KeyRTSCTS, false, "RTS/CTS hardware flow control `true|false`")
	newBool(fs, KeyExclusive, true, "open the port for exclusive access `true|false`")
	newBool(fs, KeyDTR, false, "set DTR after opening; left as is when not given `true|false`")
	newBool(fs, KeyRTS, false, "set RTS after opening; left as is when not given `true|false`")
	newBool(fs, KeyCarrierDetect, false, "end the session when carrier (DCD) drops `true|false`")

	fs.String(KeyLogLevel, DefaultLogLevel, "log level `debug|info|warn|error`")
	fs.String(KeyLogFile, "", "also write logs to this file, rotated")
}
