package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type versionInfo struct {
	Version string `json:"version" yaml:"version"`
	Commit  string `json:"commit" yaml:"commit"`
	Date    string `json:"date" yaml:"date"`
}

func newVersionCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := versionInfo{Version: version, Commit: commit, Date: date}
			if strings.ToLower(v.GetString("output")) == "" {
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "avm %s (commit %s, built %s)\n", version, commit, date)
				return err
			}
			return writeOutput(v, cmd.OutOrStdout(), info)
		},
	}
}
