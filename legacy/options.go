package legacy

import (
	"io"
	"time"

	"github.com/rs/zerolog"
)

// Option is a configuration function for an Interpreter.
type Option func(*Interpreter)

// WithGlobals provides global variables with the given names. Values are
// converted with object.FromGo.
func WithGlobals(globals map[string]any) Option {
	return func(in *Interpreter) {
		for name, value := range globals {
			in.inputGlobals[name] = value
		}
	}
}

// WithLogger sets the logger. Recoverable problems in the action stream are
// logged at warn level.
func WithLogger(logger zerolog.Logger) Option {
	return func(in *Interpreter) {
		in.logger = logger
	}
}

// WithBudget limits the wall-clock time of one outermost Run or Invoke. The
// budget is checked on backward jumps only. Zero disables the limit.
func WithBudget(d time.Duration) Option {
	return func(in *Interpreter) {
		in.budget = d
	}
}

// WithClock replaces the clock used to enforce the budget and to answer
// GetTime.
func WithClock(clock func() time.Time) Option {
	return func(in *Interpreter) {
		in.clock = clock
	}
}

// WithMaxDepth sets the maximum number of nested function calls.
func WithMaxDepth(depth int) Option {
	return func(in *Interpreter) {
		in.maxDepth = depth
	}
}

// WithStackLimit sets the capacity of the operand stack.
func WithStackLimit(n int) Option {
	return func(in *Interpreter) {
		in.stackLimit = n
	}
}

// WithSWFVersion sets the document version the actions were compiled for.
// Versions up to 5 allow 7 nested with blocks and have no super; later
// versions allow 15.
func WithSWFVersion(version int) Option {
	return func(in *Interpreter) {
		in.version = version
	}
}

// WithTrace sends the output of the Trace action to w instead of the
// logger.
func WithTrace(w io.Writer) Option {
	return func(in *Interpreter) {
		in.trace = w
	}
}
