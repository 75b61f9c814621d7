package main

import (
	"github.com/deepnoodle-ai/avm"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newRunCmd(v *viper.Viper) *cobra.Command {
	var known []string
	cmd := &cobra.Command{
		Use:   "run [file]",
		Short: "Run the scripts of an ABC unit and print the entry script's result",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			opts, err := engineOptions(cmd, v)
			if err != nil {
				return err
			}
			if len(known) > 0 {
				opts = append(opts, avm.WithKnownClasses(known...))
			}
			result, err := avm.Eval(cmd.Context(), data, opts...)
			if err != nil {
				return err
			}
			return writeOutput(v, cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().StringSliceVar(&known, "known-class", nil, "host class the unit may extend (repeatable)")
	return cmd
}
