package main

import (
	"fmt"
	"os"

	"github.com/deepnoodle-ai/avm"
	"github.com/fatih/color"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var green = color.New(color.FgGreen).SprintFunc()

func newValidateCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "validate file...",
		Short: "Check that ABC units parse and that every method body is well formed",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result *multierror.Error
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err == nil {
					err = avm.Validate(data)
				}
				if err != nil {
					result = multierror.Append(result, fmt.Errorf("%s: %w", path, err))
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", green("ok"), path)
			}
			return result.ErrorOrNil()
		},
	}
}
