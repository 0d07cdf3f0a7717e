package serial

import (
	"errors"
	"testing"
)

func TestParseParity(t *testing.T) {
	tests := []struct {
		input    string
		expected Parity
		wantErr  bool
	}{
		{"none", ParityNone, false},
		{"even", ParityEven, false},
		{"odd", ParityOdd, false},
		{"mark", ParityMark, false},
		{"space", ParitySpace, false},
		{"EVEN", ParityEven, false},
		{"xyz", ParityNone, true},
		{"", ParityNone, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseParity(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseParity(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil {
				if !errors.Is(err, ErrInvalidConfig) {
					t.Errorf("ParseParity(%q) error = %v, want ErrInvalidConfig", tt.input, err)
				}
				return
			}
			if got != tt.expected {
				t.Errorf("ParseParity(%q) = %v, want %v", tt.input, got, tt.expected)
			}
			if got.String() != parityNames[tt.expected] {
				t.Errorf("Parity.String() = %q, want %q", got.String(), parityNames[tt.expected])
			}
		})
	}
}

func TestParseStopBits(t *testing.T) {
	tests := []struct {
		input    string
		expected StopBits
		wantErr  bool
	}{
		{"1", StopBits1, false},
		{"1.5", StopBits1Half, false},
		{"2", StopBits2, false},
		{"3", StopBits1, true},
		{"0", StopBits1, true},
		{"one", StopBits1, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseStopBits(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseStopBits(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err == nil && got != tt.expected {
				t.Errorf("ParseStopBits(%q) = %v, want %v", tt.input, got, tt.expected)
			}
			if err == nil && got.String() != tt.input {
				t.Errorf("StopBits.String() = %q, want %q", got.String(), tt.input)
			}
		})
	}
}

func TestNewConfigStopsAtFirstError(t *testing.T) {
	_, err := NewConfig(WithBaudRate(9600), WithDataBits(9), WithParity(ParityEven))
	if err != ErrInvalidConfig {
		t.Errorf("NewConfig error = %v, want %v", err, ErrInvalidConfig)
	}

	config, err := NewConfig(WithBaudRate(9600), WithExclusive(false))
	if err != nil {
		t.Fatalf("NewConfig failed: %v", err)
	}
	if config.BaudRate != 9600 || config.Exclusive {
		t.Errorf("NewConfig = %+v, want BaudRate 9600 and Exclusive false", config)
	}
}
