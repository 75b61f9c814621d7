package vm

import (
	"context"

	"github.com/deepnoodle-ai/avm/abc"
	"github.com/deepnoodle-ai/avm/object"
)

// Run the scripts of block in a new Virtual Machine and return the result of
// the entry script.
func Run(ctx context.Context, block *abc.Block, options ...Option) (object.Value, error) {
	machine, err := New(block, options...)
	if err != nil {
		return nil, err
	}
	return machine.Run(ctx)
}
