package relay

import (
	"context"
	"errors"
	"testing"

	serial "github.com/allbin/go-serial-terminal"
)

// fakeWatcher reports an initial DCD state, then one state per wait
type fakeWatcher struct {
	initial bool
	states  []bool
	err     error
	waits   int
}

func (f *fakeWatcher) GetModemSignals() (serial.ModemSignals, error) {
	return serial.ModemSignals{DCD: f.initial}, nil
}

func (f *fakeWatcher) WaitForSignalChangeContext(ctx context.Context, mask serial.SignalMask) (serial.ModemSignals, serial.SignalMask, error) {
	if mask != serial.SignalDCD {
		return serial.ModemSignals{}, 0, serial.ErrInvalidSignalMask
	}
	if f.waits >= len(f.states) {
		if f.err != nil {
			return serial.ModemSignals{}, 0, f.err
		}
		<-ctx.Done()
		return serial.ModemSignals{}, 0, ctx.Err()
	}
	dcd := f.states[f.waits]
	f.waits++
	return serial.ModemSignals{DCD: dcd}, serial.SignalDCD, nil
}

func TestCarrierWatch(t *testing.T) {
	tests := []struct {
		name      string
		initial   bool
		states    []bool
		wantWaits int
	}{
		{"drop while up", true, []bool{false}, 1},
		{"bounce then drop", true, []bool{true, false}, 2},
		{"comes up then drops", false, []bool{false, true, false}, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := &fakeWatcher{initial: tt.initial, states: tt.states}
			if err := CarrierWatch(w)(context.Background()); err != nil {
				t.Fatalf("CarrierWatch returned %v, want nil", err)
			}
			if w.waits != tt.wantWaits {
				t.Errorf("waits = %d, want %d", w.waits, tt.wantWaits)
			}
		})
	}
}

func TestCarrierWatchErrors(t *testing.T) {
	waitErr := errors.New("input/output error")
	w := &fakeWatcher{initial: true, states: []bool{true}, err: waitErr}
	if err := CarrierWatch(w)(context.Background()); !errors.Is(err, waitErr) {
		t.Errorf("CarrierWatch error = %v, want %v", err, waitErr)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w = &fakeWatcher{initial: true}
	if err := CarrierWatch(w)(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("CarrierWatch error = %v, want %v", err, context.Canceled)
	}
}
