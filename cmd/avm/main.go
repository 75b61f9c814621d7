package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/deepnoodle-ai/avm/errz"
	"github.com/fatih/color"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

var red = color.New(color.FgRed).SprintFunc()

// newRootCmd builds the command tree. Each call gets its own viper instance
// so flag, env and file settings never leak between invocations.
func newRootCmd() *cobra.Command {
	v := viper.New()
	var cfgFile string

	root := &cobra.Command{
		Use:           "avm",
		Short:         "Inspect, disassemble and run ActionScript bytecode",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := loadConfig(v, cfgFile); err != nil {
				return err
			}
			processGlobalFlags(v)
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.avm.yaml)")
	flags.String("log-level", "warn", "log level (trace, debug, info, warn, error)")
	flags.Bool("no-color", false, "disable colored output")
	flags.Duration("budget", 0, "wall-clock limit for one run, e.g. 500ms (0 disables)")
	flags.Int("max-depth", 0, "maximum nested script calls (0 uses the default)")
	flags.StringP("output", "o", "", "output format (json, yaml, raw, text, table)")
	for _, name := range []string{"log-level", "no-color", "budget", "max-depth", "output"} {
		v.BindPFlag(name, flags.Lookup(name))
	}

	root.AddCommand(
		newInspectCmd(v),
		newDisCmd(v),
		newRunCmd(v),
		newExecCmd(v),
		newValidateCmd(v),
		newVersionCmd(v),
	)
	return root
}

// loadConfig reads the optional config file and binds AVM_ environment
// variables. A missing default config file is not an error.
func loadConfig(v *viper.Viper, cfgFile string) error {
	v.SetEnvPrefix("avm")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config: %w", err)
		}
		return nil
	}
	home, err := homedir.Dir()
	if err != nil {
		return nil
	}
	path := filepath.Join(home, ".avm.yaml")
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("reading config: %w", err)
	}
	return nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		msg := err.Error()
		var se *errz.StructuredError
		if errors.As(err, &se) {
			msg = strings.TrimSuffix(se.FriendlyErrorMessage(), "\n")
		}
		fmt.Fprintln(os.Stderr, red(msg))
		os.Exit(1)
	}
}
