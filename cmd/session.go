/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/allbin/go-serial-terminal/internal/config"
	"github.com/allbin/go-serial-terminal/internal/logger"
	"github.com/allbin/go-serial-terminal/internal/relay"
	"go.uber.org/zap"
)

// runSession opens the port and relays until the session ends. Failures
// before the relay starts are returned for Execute to print; a failed
// session has already logged its cause and only sets the exit status.
func runSession(ctx context.Context, env *Env, s *config.Settings) error {
	log, closeLog, err := logger.New(logger.Config{Level: s.LogLevel, File: s.LogFile}, env.Stderr)
	if err != nil {
		return err
	}
	defer closeLog()

	if s.ConfigFile != "" {
		log.Debug("loaded config file", zap.String("path", s.ConfigFile))
	}
	log.Info("opening serial port",
		zap.String("port", s.Port),
		zap.Int("baud", s.Baud),
		zap.Int("data_bits", s.DataBits),
		zap.Stringer("stop_bits", s.StopBits),
		zap.Stringer("parity", s.Parity),
		zap.Bool("rtscts", s.RTSCTS),
		zap.Bool("echo", s.Echo),
	)

	port, err := env.Open(s.Port, s.SerialOptions()...)
	if err != nil {
		return err
	}

	if f, ok := env.Stdin.(*os.File); ok {
		restore, err := relay.MakeRaw(f)
		if err != nil {
			port.Close()
			return err
		}
		defer func() {
			if err := restore(); err != nil {
				log.Warn("restore terminal failed", zap.Error(err))
			}
		}()
	}

	if env.Signals {
		var stop context.CancelFunc
		ctx, stop = signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()
	}

	opts := []relay.Option{
		relay.WithEcho(s.Echo),
		relay.WithLogger(log.Named("relay")),
	}
	if s.CarrierDetect {
		opts = append(opts, relay.WithHangupWatch(relay.CarrierWatch(port)))
	}

	res := relay.New(port, env.Stdin, env.Stdout, opts...).Run(ctx)
	log.Debug("session ended", zap.Stringer("result", res), zap.Int("exit_code", res.ExitCode()))

	if code := res.ExitCode(); code != 0 {
		return &ExitError{Code: code, Err: res.Err}
	}
	return nil
}
