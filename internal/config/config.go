// Package config resolves tsm settings from flags, TSM_* environment
// variables and an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	serial "github.com/allbin/go-serial-terminal"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. TSM_DATA_BITS=7.
const EnvPrefix = "TSM"

// ConfigName is the file looked up in the config search directories.
const ConfigName = "tsm"

// Settings is the resolved configuration of one run.
type Settings struct {
	Port          string
	Baud          int
	DataBits      int
	StopBits      serial.StopBits
	Parity        serial.Parity
	Echo          bool
	RTSCTS        bool
	Exclusive     bool
	DTR           *bool // nil leaves the line alone
	RTS           *bool
	CarrierDetect bool
	LogLevel      string
	LogFile       string

	ConfigFile string // file the settings were read from, if any
}

// Load resolves settings with precedence flag > environment > file >
// default. configFile names an explicit file, which must exist; when empty,
// tsm.yaml is looked up in searchDirs and skipped if absent.
func Load(fs *pflag.FlagSet, configFile string, searchDirs ...string) (*Settings, error) {
	v := viper.New()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(ConfigName)
		v.SetConfigType("yaml")
		for _, dir := range searchDirs {
			v.AddConfigPath(dir)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("bind flags: %w", err)
	}

	if configFile != "" || len(searchDirs) > 0 {
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if configFile != "" || !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	s := &Settings{
		Baud:          v.GetInt(KeyBaud),
		Echo:          v.GetBool(KeyEcho),
		RTSCTS:        v.GetBool(KeyRTSCTS),
		Exclusive:     v.GetBool(KeyExclusive),
		CarrierDetect: v.GetBool(KeyCarrierDetect),
		LogLevel:      strings.ToLower(strings.TrimSpace(v.GetString(KeyLogLevel))),
		LogFile:       v.GetString(KeyLogFile),
		ConfigFile:    v.ConfigFileUsed(),
	}

	var err error
	if s.DataBits, err = parseDataBits(v.GetString(KeyDataBits)); err != nil {
		return nil, err
	}
	if s.StopBits, err = serial.ParseStopBits(v.GetString(KeyStopBits)); err != nil {
		return nil, err
	}
	if s.Parity, err = serial.ParseParity(v.GetString(KeyParity)); err != nil {
		return nil, err
	}
	if v.IsSet(KeyDTR) {
		dtr := v.GetBool(KeyDTR)
		s.DTR = &dtr
	}
	if v.IsSet(KeyRTS) {
		rts := v.GetBool(KeyRTS)
		s.RTS = &rts
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks the values flag parsing cannot.
func (s *Settings) Validate() error {
	if s.Baud <= 0 {
		return fmt.Errorf("invalid baud rate %d: must be a positive integer", s.Baud)
	}
	switch s.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q (valid: debug, info, warn, error)", s.LogLevel)
	}
	return nil
}

// SerialOptions converts the settings into options for serial.Open.
func (s *Settings) SerialOptions() []serial.Option {
	opts := []serial.Option{
		serial.WithBaudRate(s.Baud),
		serial.WithDataBits(s.DataBits),
		serial.WithStopBits(s.StopBits),
		serial.WithParity(s.Parity),
		serial.WithExclusive(s.Exclusive),
	}
	if s.RTSCTS {
		opts = append(opts, serial.WithFlowControl(serial.FlowControlRTSCTS))
	}
	if s.DTR != nil {
		opts = append(opts, serial.WithInitialDTR(*s.DTR))
	}
	if s.RTS != nil {
		opts = append(opts, serial.WithInitialRTS(*s.RTS))
	}
	return opts
}

// DefaultSearchDirs returns the directories searched for tsm.yaml: the
// user config directory and the working directory.
func DefaultSearchDirs() []string {
	var dirs []string
	if dir, err := os.UserConfigDir(); err == nil {
		dirs = append(dirs, filepath.Join(dir, ConfigName))
	}
	return append(dirs, ".")
}
