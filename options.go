package avm

import (
	"io"
	"maps"
	"time"

	"github.com/deepnoodle-ai/avm/abc"
	"github.com/deepnoodle-ai/avm/legacy"
	"github.com/deepnoodle-ai/avm/vm"
	"github.com/rs/zerolog"
)

// Option configures loading or execution.
type Option func(*options)

type options struct {
	env        map[string]any
	logger     *zerolog.Logger
	budget     time.Duration
	clock      func() time.Time
	maxDepth   int
	stackLimit int
	scopeLimit int
	observer   vm.Observer
	known      []string
	version    int
	trace      io.Writer
}

func collectOptions(opts ...Option) *options {
	o := &options{env: map[string]any{}}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}

func (o *options) parserOpts() []abc.Option {
	var opts []abc.Option
	if o.logger != nil {
		opts = append(opts, abc.WithLogger(*o.logger))
	}
	if len(o.known) > 0 {
		opts = append(opts, abc.WithKnownClasses(o.known...))
	}
	return opts
}

func (o *options) vmOpts() []vm.Option {
	var opts []vm.Option
	if len(o.env) > 0 {
		opts = append(opts, vm.WithGlobals(o.env))
	}
	if o.logger != nil {
		opts = append(opts, vm.WithLogger(*o.logger))
	}
	if o.budget > 0 {
		opts = append(opts, vm.WithBudget(o.budget))
	}
	if o.clock != nil {
		opts = append(opts, vm.WithClock(o.clock))
	}
	if o.maxDepth > 0 {
		opts = append(opts, vm.WithMaxDepth(o.maxDepth))
	}
	if o.stackLimit > 0 {
		opts = append(opts, vm.WithStackLimit(o.stackLimit))
	}
	if o.scopeLimit > 0 {
		opts = append(opts, vm.WithScopeLimit(o.scopeLimit))
	}
	if o.observer != nil {
		opts = append(opts, vm.WithObserver(o.observer))
	}
	return opts
}

func (o *options) legacyOpts() []legacy.Option {
	var opts []legacy.Option
	if len(o.env) > 0 {
		opts = append(opts, legacy.WithGlobals(o.env))
	}
	if o.logger != nil {
		opts = append(opts, legacy.WithLogger(*o.logger))
	}
	if o.budget > 0 {
		opts = append(opts, legacy.WithBudget(o.budget))
	}
	if o.clock != nil {
		opts = append(opts, legacy.WithClock(o.clock))
	}
	if o.maxDepth > 0 {
		opts = append(opts, legacy.WithMaxDepth(o.maxDepth))
	}
	if o.stackLimit > 0 {
		opts = append(opts, legacy.WithStackLimit(o.stackLimit))
	}
	if o.version > 0 {
		opts = append(opts, legacy.WithSWFVersion(o.version))
	}
	if o.trace != nil {
		opts = append(opts, legacy.WithTrace(o.trace))
	}
	return opts
}

// WithEnv provides global variables that are made available to scripts.
// This option is additive, so multiple WithEnv options may be supplied. If
// the same key is supplied multiple times, the last value wins. Values are
// converted with object.FromGo; Go functions with the signature of
// object.BuiltinFunction become callable host functions.
func WithEnv(env map[string]any) Option {
	return func(o *options) {
		maps.Copy(o.env, env)
	}
}

// WithGlobal supplies a single named global variable.
func WithGlobal(name string, value any) Option {
	return func(o *options) {
		o.env[name] = value
	}
}

// WithLogger sets the logger passed to the parser and both interpreters.
// By default nothing is logged.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = &logger
	}
}

// WithBudget limits the wall-clock time of one run.
func WithBudget(d time.Duration) Option {
	return func(o *options) {
		o.budget = d
	}
}

// WithClock replaces the clock used to enforce the budget.
func WithClock(clock func() time.Time) Option {
	return func(o *options) {
		o.clock = clock
	}
}

// WithMaxDepth sets the maximum number of nested script calls.
func WithMaxDepth(depth int) Option {
	return func(o *options) {
		o.maxDepth = depth
	}
}

// WithStackLimit sets the capacity of the operand stack.
func WithStackLimit(n int) Option {
	return func(o *options) {
		o.stackLimit = n
	}
}

// WithScopeLimit sets the capacity of the scope stack. Only ABC code has
// one.
func WithScopeLimit(n int) Option {
	return func(o *options) {
		o.scopeLimit = n
	}
}

// WithObserver sets an observer for ABC execution events.
func WithObserver(observer vm.Observer) Option {
	return func(o *options) {
		o.observer = observer
	}
}

// WithKnownClasses declares host classes that units may extend, given as
// dotted qualified names.
func WithKnownClasses(qualified ...string) Option {
	return func(o *options) {
		o.known = append(o.known, qualified...)
	}
}

// WithSWFVersion sets the player version legacy code was compiled for.
func WithSWFVersion(version int) Option {
	return func(o *options) {
		o.version = version
	}
}

// WithTrace sends the output of legacy Trace actions to w.
func WithTrace(w io.Writer) Option {
	return func(o *options) {
		o.trace = w
	}
}
