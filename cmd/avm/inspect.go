package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/deepnoodle-ai/avm"
	"github.com/deepnoodle-ai/avm/abc"
	"github.com/deepnoodle-ai/avm/bytecode"
	"github.com/deepnoodle-ai/avm/internal/table"
	"github.com/deepnoodle-ai/avm/names"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type blockSummary struct {
	ID      string          `json:"id" yaml:"id"`
	Version string          `json:"version" yaml:"version"`
	Pools   poolSummary     `json:"pools" yaml:"pools"`
	Methods int             `json:"methods" yaml:"methods"`
	Bodies  int             `json:"bodies" yaml:"bodies"`
	Classes []classSummary  `json:"classes" yaml:"classes"`
	Scripts []scriptSummary `json:"scripts" yaml:"scripts"`

	Code bytecode.Stats `json:"code" yaml:"code"`

	// Undecodable counts bodies left out of Code.
	Undecodable int `json:"undecodable,omitempty" yaml:"undecodable,omitempty"`
}

type poolSummary struct {
	Ints          int `json:"ints" yaml:"ints"`
	Uints         int `json:"uints" yaml:"uints"`
	Doubles       int `json:"doubles" yaml:"doubles"`
	Strings       int `json:"strings" yaml:"strings"`
	Namespaces    int `json:"namespaces" yaml:"namespaces"`
	NamespaceSets int `json:"namespace_sets" yaml:"namespace_sets"`
	Multinames    int `json:"multinames" yaml:"multinames"`
}

type classSummary struct {
	Name        string         `json:"name" yaml:"name"`
	Super       string         `json:"super,omitempty" yaml:"super,omitempty"`
	Flags       []string       `json:"flags,omitempty" yaml:"flags,omitempty"`
	Interfaces  []string       `json:"interfaces,omitempty" yaml:"interfaces,omitempty"`
	Placeholder bool           `json:"placeholder,omitempty" yaml:"placeholder,omitempty"`
	Traits      []traitSummary `json:"traits,omitempty" yaml:"traits,omitempty"`
}

type traitSummary struct {
	Name   string `json:"name" yaml:"name"`
	Kind   string `json:"kind" yaml:"kind"`
	Static bool   `json:"static,omitempty" yaml:"static,omitempty"`
}

type scriptSummary struct {
	Init   string         `json:"init" yaml:"init"`
	Traits []traitSummary `json:"traits,omitempty" yaml:"traits,omitempty"`
}

func newInspectCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect [file]",
		Short: "Summarize the pools, classes and scripts of an ABC unit",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			logger, err := newLogger(v, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			block, err := avm.Load(data, avm.WithLogger(logger))
			if err != nil {
				return err
			}
			s := summarize(block)
			switch strings.ToLower(v.GetString("output")) {
			case "", "table":
				printSummary(s, cmd.OutOrStdout())
				return nil
			}
			return writeOutput(v, cmd.OutOrStdout(), s)
		},
	}
}

func poolSize[T any](pool []T) int {
	if len(pool) == 0 {
		return 0
	}
	return len(pool) - 1
}

func summarize(b *abc.Block) blockSummary {
	s := blockSummary{
		ID:      b.ID.String(),
		Version: fmt.Sprintf("%d.%d", b.Major, b.Minor),
		Pools: poolSummary{
			Ints:          poolSize(b.Ints),
			Uints:         poolSize(b.Uints),
			Doubles:       poolSize(b.Doubles),
			Strings:       poolSize(b.Strings),
			Namespaces:    poolSize(b.Namespaces),
			NamespaceSets: poolSize(b.NamespaceSets),
			Multinames:    poolSize(b.Multinames),
		},
		Methods: len(b.Methods),
		Bodies:  len(b.Bodies),
		Classes: []classSummary{},
		Scripts: []scriptSummary{},
	}
	for _, body := range b.Bodies {
		code, err := body.Decode()
		if err != nil {
			s.Undecodable++
			continue
		}
		s.Code.Add(code.Stats())
	}
	for _, c := range b.Classes {
		cs := classSummary{Name: c.QualifiedName(), Placeholder: c.Placeholder}
		if c.SuperName != nil {
			cs.Super = c.SuperName.String()
		}
		if c.IsSealed() {
			cs.Flags = append(cs.Flags, "sealed")
		}
		if c.IsFinal() {
			cs.Flags = append(cs.Flags, "final")
		}
		if c.IsInterface() {
			cs.Flags = append(cs.Flags, "interface")
		}
		for _, i := range c.Interfaces {
			cs.Interfaces = append(cs.Interfaces, i.String())
		}
		cs.Traits = append(summarizeTraits(c.StaticTraits, true), summarizeTraits(c.InstanceTraits, false)...)
		s.Classes = append(s.Classes, cs)
	}
	for _, script := range b.Scripts {
		s.Scripts = append(s.Scripts, scriptSummary{
			Init:   script.Init.String(),
			Traits: summarizeTraits(script.Traits, false),
		})
	}
	return s
}

func summarizeTraits(traits []*abc.Trait, static bool) []traitSummary {
	var out []traitSummary
	for _, t := range traits {
		out = append(out, traitSummary{Name: traitName(t.Name), Kind: t.Kind.String(), Static: static})
	}
	return out
}

func traitName(m *names.MultiName) string {
	if m == nil {
		return "*"
	}
	return m.String()
}

func printSummary(s blockSummary, w io.Writer) {
	fmt.Fprintf(w, "unit %s (version %s)\n", s.ID, s.Version)
	fmt.Fprintf(w, "pools: %d ints, %d uints, %d doubles, %d strings, %d namespaces, %d namespace sets, %d multinames\n",
		s.Pools.Ints, s.Pools.Uints, s.Pools.Doubles, s.Pools.Strings,
		s.Pools.Namespaces, s.Pools.NamespaceSets, s.Pools.Multinames)
	fmt.Fprintf(w, "methods: %d, bodies: %d\n", s.Methods, s.Bodies)
	fmt.Fprintf(w, "code: %d instructions in %d bytes, %d branches (%d backward), %d calls, %d handlers\n",
		s.Code.InstructionCount, s.Code.ByteLength, s.Code.BranchCount,
		s.Code.BackwardBranchCount, s.Code.CallCount, s.Code.HandlerCount)
	if s.Undecodable > 0 {
		fmt.Fprintf(w, "undecodable bodies: %d\n", s.Undecodable)
	}

	if len(s.Classes) > 0 {
		rows := make([][]string, 0, len(s.Classes))
		for _, c := range s.Classes {
			flags := strings.Join(c.Flags, ",")
			if c.Placeholder {
				flags = strings.TrimPrefix(flags+",placeholder", ",")
			}
			rows = append(rows, []string{c.Name, c.Super, flags, strconv.Itoa(len(c.Traits))})
		}
		table.NewTable(w).
			WithHeader([]string{"CLASS", "SUPER", "FLAGS", "TRAITS"}).
			WithColumnAlignment([]table.Alignment{table.AlignLeft, table.AlignLeft, table.AlignLeft, table.AlignRight}).
			WithRows(rows).
			Render()
	}

	rows := make([][]string, 0, len(s.Scripts))
	for i, script := range s.Scripts {
		traits := make([]string, len(script.Traits))
		for j, t := range script.Traits {
			traits[j] = t.Kind + " " + t.Name
		}
		rows = append(rows, []string{strconv.Itoa(i), script.Init, strings.Join(traits, ", ")})
	}
	table.NewTable(w).
		WithHeader([]string{"SCRIPT", "INIT", "TRAITS"}).
		WithColumnAlignment([]table.Alignment{table.AlignRight, table.AlignLeft, table.AlignLeft}).
		WithRows(rows).
		Render()
}
