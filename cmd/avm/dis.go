package main

import (
	"fmt"
	"io"

	"github.com/deepnoodle-ai/avm"
	"github.com/deepnoodle-ai/avm/abc"
	"github.com/deepnoodle-ai/avm/dis"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newDisCmd(v *viper.Viper) *cobra.Command {
	var method string
	var actions bool
	cmd := &cobra.Command{
		Use:   "dis [file]",
		Short: "Disassemble the method bodies of an ABC unit or a legacy action stream",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if actions {
				instructions, err := dis.DisassembleActions(data)
				if err != nil {
					return err
				}
				dis.Print(instructions, out)
				return nil
			}
			block, err := avm.Load(data)
			if err != nil {
				return err
			}
			return disassembleBlock(block, method, out)
		},
	}
	cmd.Flags().StringVar(&method, "method", "", "disassemble only the method with this name")
	cmd.Flags().BoolVar(&actions, "actions", false, "treat the input as a legacy action stream")
	return cmd
}

var heading = color.New(color.Bold, color.FgHiWhite).SprintFunc()

func disassembleBlock(block *abc.Block, method string, w io.Writer) error {
	found := false
	for _, body := range block.Bodies {
		if method != "" && body.Method.Name != method {
			continue
		}
		found = true
		instructions, err := dis.DisassembleBody(block, body)
		if err != nil {
			return fmt.Errorf("%s: %w", body.Method, err)
		}
		fmt.Fprintf(w, "%s (locals %d, max stack %d, scope %d..%d)\n", heading(body.Method),
			body.LocalCount, body.MaxStack, body.InitScope, body.MaxScope)
		dis.Print(instructions, w)
		for _, ex := range body.Exceptions {
			typ := "*"
			if ex.Type != nil {
				typ = ex.Type.String()
			}
			fmt.Fprintf(w, "  catch %s [%d, %d) -> %d\n", typ, ex.From, ex.To, ex.Target)
		}
	}
	if method != "" && !found {
		return fmt.Errorf("method %q not found", method)
	}
	return nil
}
