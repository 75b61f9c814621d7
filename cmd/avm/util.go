package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/deepnoodle-ai/avm"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func isTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// Reads global flags from Viper and adjusts the environment accordingly.
func processGlobalFlags(v *viper.Viper) {
	if v.GetBool("no-color") {
		color.NoColor = true
	}
}

// newLogger returns a console logger on w at the configured level. Colors
// follow --no-color and whether w is a terminal.
func newLogger(v *viper.Viper, w io.Writer) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(v.GetString("log-level"))
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid log level: %w", err)
	}
	noColor := v.GetBool("no-color")
	if f, ok := w.(*os.File); !ok || !isTerminal(f) {
		noColor = true
	}
	out := zerolog.ConsoleWriter{Out: w, NoColor: noColor, TimeFormat: "15:04:05"}
	return zerolog.New(out).Level(level).With().Timestamp().Logger(), nil
}

// engineOptions translates the configuration shared by run and exec into
// facade options.
func engineOptions(cmd *cobra.Command, v *viper.Viper) ([]avm.Option, error) {
	logger, err := newLogger(v, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	opts := []avm.Option{avm.WithLogger(logger)}
	if d := v.GetDuration("budget"); d > 0 {
		opts = append(opts, avm.WithBudget(d))
	}
	if n := v.GetInt("max-depth"); n > 0 {
		opts = append(opts, avm.WithMaxDepth(n))
	}
	return opts, nil
}

// readInput returns the bytes of the file named by args[0], or of stdin
// when the argument is "-" or absent and stdin is not a terminal.
func readInput(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) > 0 && args[0] != "-" {
		return os.ReadFile(args[0])
	}
	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && isTerminal(f) {
		return nil, errors.New("no input provided")
	}
	return io.ReadAll(in)
}
