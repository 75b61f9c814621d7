// Package avm loads and runs compiled ActionScript bytecode: ABC units with
// the vm package and legacy action streams with the legacy package.
//
//	block, err := avm.Load(data)
//	if err != nil {
//		return err
//	}
//	result, err := avm.Run(ctx, block, avm.WithBudget(time.Second))
//
// Results are returned as plain Go values. Script objects become maps,
// arrays become slices and undefined and null become nil.
package avm

import (
	"context"

	"github.com/deepnoodle-ai/avm/abc"
	"github.com/deepnoodle-ai/avm/legacy"
	"github.com/deepnoodle-ai/avm/object"
	"github.com/deepnoodle-ai/avm/vm"
)

// Load parses an ABC unit. The returned Block is immutable and may be run
// by several goroutines at once.
func Load(data []byte, opts ...Option) (*abc.Block, error) {
	o := collectOptions(opts...)
	return abc.Parse(data, o.parserOpts()...)
}

// Validate parses an ABC unit and checks every method body. All problems
// found are reported together.
func Validate(data []byte, opts ...Option) error {
	block, err := Load(data, opts...)
	if err != nil {
		return err
	}
	return abc.Validate(block)
}

// Run executes the scripts of block in fresh runtime state and returns the
// result of the entry script.
func Run(ctx context.Context, block *abc.Block, opts ...Option) (any, error) {
	o := collectOptions(opts...)
	result, err := vm.Run(ctx, block, o.vmOpts()...)
	if err != nil {
		return nil, err
	}
	return object.ToGo(result), nil
}

// Eval is Load followed by Run.
func Eval(ctx context.Context, data []byte, opts ...Option) (any, error) {
	block, err := Load(data, opts...)
	if err != nil {
		return nil, err
	}
	return Run(ctx, block, opts...)
}

// RunActions executes a legacy action stream in fresh runtime state and
// returns the value it returns, if any.
func RunActions(ctx context.Context, code []byte, opts ...Option) (any, error) {
	o := collectOptions(opts...)
	result, err := legacy.Run(ctx, code, o.legacyOpts()...)
	if err != nil {
		return nil, err
	}
	return object.ToGo(result), nil
}
