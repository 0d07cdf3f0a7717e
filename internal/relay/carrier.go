package relay

import (
	"context"

	serial "github.com/allbin/go-serial-terminal"
)

// SignalWatcher is the modem-signal side of serial.Port.
type SignalWatcher interface {
	GetModemSignals() (serial.ModemSignals, error)
	WaitForSignalChangeContext(ctx context.Context, mask serial.SignalMask) (serial.ModemSignals, serial.SignalMask, error)
}

// CarrierWatch returns a hangup watch for WithHangupWatch that returns nil
// once DCD drops. If carrier is down at the start it first waits for it to
// come up.
func CarrierWatch(w SignalWatcher) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		signals, err := w.GetModemSignals()
		if err != nil {
			return err
		}
		up := signals.DCD

		for {
			signals, _, err := w.WaitForSignalChangeContext(ctx, serial.SignalDCD)
			if err != nil {
				return err
			}
			if up && !signals.DCD {
				return nil
			}
			up = signals.DCD
		}
	}
}
