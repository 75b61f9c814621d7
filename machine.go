package avm

import (
	"context"
	"fmt"

	"github.com/deepnoodle-ai/avm/abc"
	"github.com/deepnoodle-ai/avm/object"
	"github.com/deepnoodle-ai/avm/vm"
)

// Machine keeps the runtime state of one ABC unit across calls. Unlike Run,
// which starts from scratch each time, a Machine lets the host run the
// unit's scripts once and then call the functions they defined.
type Machine struct {
	machine *vm.VirtualMachine
}

// NewMachine prepares block for stateful execution. The scripts do not run
// until Run is called.
func NewMachine(block *abc.Block, opts ...Option) (*Machine, error) {
	o := collectOptions(opts...)
	machine, err := vm.New(block, o.vmOpts()...)
	if err != nil {
		return nil, err
	}
	return &Machine{machine: machine}, nil
}

// Run runs the unit's scripts and returns the result of the entry script.
func (m *Machine) Run(ctx context.Context) (any, error) {
	result, err := m.machine.Run(ctx)
	if err != nil {
		return nil, err
	}
	return object.ToGo(result), nil
}

// Call invokes a global function by name with the global object as the
// receiver. Arguments are converted from Go values.
func (m *Machine) Call(ctx context.Context, name string, args ...any) (any, error) {
	fn, err := m.machine.Get(name)
	if err != nil {
		return nil, err
	}
	if _, ok := fn.(object.Callable); !ok {
		return nil, fmt.Errorf("%s is not a function (got: %s)", name, fn.Type())
	}
	values := make([]object.Value, len(args))
	for i, arg := range args {
		if values[i], err = object.FromGo(arg); err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
	}
	result, err := m.machine.Invoke(ctx, fn, m.machine.Global(), values...)
	if err != nil {
		return nil, err
	}
	return object.ToGo(result), nil
}

// Get retrieves a global variable as a Go value.
func (m *Machine) Get(name string) (any, error) {
	v, err := m.machine.Get(name)
	if err != nil {
		return nil, err
	}
	return object.ToGo(v), nil
}

// GetValue retrieves a global variable as a script value.
func (m *Machine) GetValue(name string) (object.Value, error) {
	return m.machine.Get(name)
}

// VirtualMachine returns the underlying interpreter.
func (m *Machine) VirtualMachine() *vm.VirtualMachine {
	return m.machine
}
