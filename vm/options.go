package vm

import (
	"time"

	"github.com/rs/zerolog"
)

// Option is a configuration function for a Virtual Machine.
type Option func(*VirtualMachine)

// WithGlobals provides global variables with the given names. Values are
// converted with object.FromGo.
func WithGlobals(globals map[string]any) Option {
	return func(vm *VirtualMachine) {
		for name, value := range globals {
			vm.inputGlobals[name] = value
		}
	}
}

// WithLogger sets the logger. Calls and returns are logged at trace level
// and faults at debug level.
func WithLogger(logger zerolog.Logger) Option {
	return func(vm *VirtualMachine) {
		vm.logger = logger
	}
}

// WithBudget limits the wall-clock time of one outermost Run or Invoke. The
// budget is checked on backward branches only. Zero disables the limit.
func WithBudget(d time.Duration) Option {
	return func(vm *VirtualMachine) {
		vm.budget = d
	}
}

// WithClock replaces the clock used to enforce the budget.
func WithClock(clock func() time.Time) Option {
	return func(vm *VirtualMachine) {
		vm.clock = clock
	}
}

// WithMaxDepth sets the maximum number of nested script calls.
func WithMaxDepth(depth int) Option {
	return func(vm *VirtualMachine) {
		vm.maxDepth = depth
	}
}

// WithStackLimit sets the capacity of the operand stack shared by all
// calls.
func WithStackLimit(n int) Option {
	return func(vm *VirtualMachine) {
		vm.stackLimit = n
	}
}

// WithScopeLimit sets the capacity of the scope stack shared by all calls.
func WithScopeLimit(n int) Option {
	return func(vm *VirtualMachine) {
		vm.scopeLimit = n
	}
}

// WithObserver sets an observer for VM execution events.
// The observer receives callbacks for instruction steps, function calls,
// and function returns.
//
// Observer methods are called synchronously during execution, so
// implementations should be fast to avoid impacting performance.
// Returning false from any observer method halts execution immediately.
func WithObserver(observer Observer) Option {
	return func(vm *VirtualMachine) {
		vm.observer = observer
	}
}
