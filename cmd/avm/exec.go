package main

import (
	"github.com/deepnoodle-ai/avm"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newExecCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exec [file]",
		Short: "Run a legacy action stream and print its result",
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
			if n := v.GetInt("swf-version"); n > 0 {
				opts = append(opts, avm.WithSWFVersion(n))
			}
			opts = append(opts, avm.WithTrace(cmd.OutOrStdout()))
			result, err := avm.RunActions(cmd.Context(), data, opts...)
			if err != nil {
				return err
			}
			return writeOutput(v, cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().Int("swf-version", 0, "player version the actions were compiled for")
	v.BindPFlag("swf-version", cmd.Flags().Lookup("swf-version"))
	return cmd
}
