/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	serial "github.com/allbin/go-serial-terminal"
	"github.com/allbin/go-serial-terminal/internal/config"
	"github.com/spf13/cobra"
)

// version is overridden at build time with -ldflags "-X ...cmd.version=..."
var version = "dev"

// Env is what the command reads, writes and opens. Tests swap in fakes.
type Env struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	Open func(device string, opts ...serial.Option) (serial.Port, error)
	List func() ([]serial.PortInfo, error)

	ConfigDirs []string // searched for tsm.yaml
	Signals    bool     // end the session on SIGINT/SIGTERM
}

// DefaultEnv wires the command to the process and the real serial package.
func DefaultEnv() *Env {
	return &Env{
		Stdin:      os.Stdin,
		Stdout:     os.Stdout,
		Stderr:     os.Stderr,
		Open:       serial.Open,
		List:       serial.ListPortInfo,
		ConfigDirs: config.DefaultSearchDirs(),
		Signals:    true,
	}
}

// ExitError carries a non-zero exit status for a failure that has already
// been reported.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("exit status %d: %v", e.Code, e.Err)
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

func (e *ExitError) Unwrap() error { return e.Err }

func newRootCmd(env *Env) *cobra.Command {
	var (
		list       bool
		table      bool
		configFile string
	)

	cmd := &cobra.Command{
		Use:   "tsm [flags] <port>",
		Short: "Serial terminal relaying a serial port to standard input and output",
		Long: `tsm opens a serial port and relays bytes both ways between the port and
the terminal. Everything received from the device is written to standard
output unchanged; everything read from standard input is sent to the device.

Press Ctrl-C to close the port and exit. When standard input is a file or
pipe, tsm sends all of it and exits when it ends.

Settings can also come from TSM_* environment variables (TSM_BAUD,
TSM_DATA_BITS, ...) or a tsm.yaml file; command-line flags win.

Example usage:
  tsm /dev/ttyUSB0
  tsm -b 9600 --parity even --echo true /dev/ttyACM0
  tsm --list
  tsm --list --table`,
		Version:       version,
		Args:          portArgs(&list),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if list {
				return runList(env, table)
			}

			settings, err := config.Load(cmd.Flags(), configFile, env.ConfigDirs...)
			if err != nil {
				return err
			}
			settings.Port = args[0]

			return runSession(cmd.Context(), env, settings)
		},
	}

	cmd.SetVersionTemplate("tsm {{.Version}}\n")
	cmd.SetIn(env.Stdin)
	cmd.SetOut(env.Stdout)
	cmd.SetErr(env.Stderr)

	flags := cmd.Flags()
	flags.SortFlags = false
	flags.BoolVarP(&list, "list", "l", false, "list available serial ports and exit")
	flags.BoolVarP(&table, "table", "t", false, "with --list, show a styled table")
	config.RegisterFlags(flags)
	flags.StringVar(&configFile, "config", "", "read settings from this YAML `file`")

	return cmd
}

// portArgs requires exactly one port unless listing
func portArgs(list *bool) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if *list {
			return nil
		}
		switch len(args) {
		case 0:
			return errors.New("no port specified")
		case 1:
			return nil
		default:
			return errors.New("multiple ports specified")
		}
	}
}

// Execute runs tsm with the process arguments and returns the exit status.
func Execute() int {
	return execute(context.Background(), DefaultEnv(), os.Args[1:])
}

func execute(ctx context.Context, env *Env, args []string) int {
	if args == nil {
		// cobra falls back to os.Args for nil
		args = []string{}
	}

	cmd := newRootCmd(env)
	cmd.SetArgs(args)

	if err := cmd.ExecuteContext(ctx); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			return exitErr.Code
		}
		fmt.Fprintf(env.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
