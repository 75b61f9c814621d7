// Package legacy executes legacy action streams, the tag-encoded bytecode
// that predates ABC.
//
// Each action buffer and each function call runs in its own execution: a
// program counter over the buffer, the scope chain, the with blocks and the
// try blocks entered so far. Calls recurse on the Go stack and are bounded by
// WithMaxDepth. All executions share one fenced operand stack.
//
// Script exceptions never unwind the Go stack. A thrown value becomes the
// pending exception of the current execution, which then skips to its next
// stop offset, where the innermost try block decides how to continue.
package legacy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"time"

	"github.com/deepnoodle-ai/avm/bytecode"
	"github.com/deepnoodle-ai/avm/cursor"
	"github.com/deepnoodle-ai/avm/errz"
	"github.com/deepnoodle-ai/avm/object"
	"github.com/deepnoodle-ai/avm/stack"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog"
)

const (
	DefaultMaxDepth   = 256
	DefaultStackLimit = 1 << 16
	DefaultSWFVersion = 10

	// GlobalRegisters is the number of registers shared by code that has no
	// register bank of its own.
	GlobalRegisters = 4
)

var ErrGlobalNotFound = errors.New("global not found")

// Interpreter runs action buffers against one global object. It is not
// safe for concurrent use, but script code may re-enter it through host
// functions.
type Interpreter struct {
	logger zerolog.Logger
	runID  uuid.UUID

	budget     time.Duration
	clock      func() time.Time
	startedAt  time.Time
	maxDepth   int
	stackLimit int
	version    int
	trace      io.Writer
	random     *rand.Rand

	inputGlobals  map[string]any
	global        *object.Dynamic
	objectProto   *object.Dynamic
	functionProto *object.Dynamic
	arrayProto    *object.Dynamic
	registers     [GlobalRegisters]object.Value

	stack  *stack.Stack[object.Value]
	pool   []string
	execs  []*execution
	depth  int
	active int
	fault  error
	thrown *throwSite
}

// throwSite remembers where the exception in flight was raised.
type throwSite struct {
	exc      *object.Exception
	location errz.SourceLocation
	stack    []errz.StackFrame
}

// New creates an Interpreter with a fresh global object.
func New(options ...Option) (*Interpreter, error) {
	in := &Interpreter{
		logger:       zerolog.Nop(),
		clock:        time.Now,
		maxDepth:     DefaultMaxDepth,
		stackLimit:   DefaultStackLimit,
		version:      DefaultSWFVersion,
		inputGlobals: map[string]any{},
	}
	for _, opt := range options {
		opt(in)
	}
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	in.runID = id
	in.logger = in.logger.With().Str("run", id.String()).Logger()
	in.random = rand.New(rand.NewSource(in.clock().UnixNano()))
	in.stack = stack.New[object.Value](in.stackLimit)
	for i := range in.registers {
		in.registers[i] = object.Undefined
	}
	in.installNatives()

	globals, err := object.AsObjects(in.inputGlobals)
	if err != nil {
		return nil, fmt.Errorf("invalid global provided: %w", err)
	}
	for name, value := range globals {
		if err := in.global.SetProperty("", name, value); err != nil {
			return nil, err
		}
	}
	return in, nil
}

// RunID returns the id attached to the interpreter's log lines.
func (in *Interpreter) RunID() uuid.UUID {
	return in.runID
}

// Global returns the global object.
func (in *Interpreter) Global() *object.Dynamic {
	return in.global
}

// Get a global variable by name.
func (in *Interpreter) Get(name string) (object.Value, error) {
	if v, ok := in.global.GetProperty("", name); ok {
		return v, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrGlobalNotFound, name)
}

// Register returns one of the global registers.
func (in *Interpreter) Register(i int) object.Value {
	if i < 0 || i >= GlobalRegisters {
		return object.Undefined
	}
	return in.registers[i]
}

// Run executes an action buffer at the top level. Each buffer starts with
// an empty constant pool. The result is the value of a top-level Return
// action, or undefined.
func (in *Interpreter) Run(ctx context.Context, code []byte) (object.Value, error) {
	return in.enter(ctx, func(ctx context.Context) (object.Value, error) {
		defer in.usePool(nil)()
		e := in.newExecution("<actions>", code, nil, []object.Object{in.global})
		return in.execute(ctx, e)
	})
}

// Invoke calls fn, which may be a script function or any host callable. An
// exception that escapes fn is returned as an ErrScript error, or ErrType
// for type errors, carrying the thrown value.
func (in *Interpreter) Invoke(ctx context.Context, fn object.Value, this object.Value, args ...object.Value) (object.Value, error) {
	return in.enter(ctx, func(ctx context.Context) (object.Value, error) {
		switch fn := fn.(type) {
		case *Function:
			return in.call(ctx, fn, this, args)
		case object.Callable:
			return fn.Call(ctx, this, args)
		}
		return nil, object.TypeErrorf("%s is not a function", object.ToString(fn))
	})
}

// enter wraps an entry from the host. The outermost entry starts the budget
// clock and converts escaping exceptions.
func (in *Interpreter) enter(ctx context.Context, fn func(ctx context.Context) (object.Value, error)) (result object.Value, err error) {
	if in.active == 0 {
		in.thrown = nil
		in.startedAt = in.clock()
	}
	in.active++
	defer func() {
		if r := recover(); r != nil {
			err = errz.NewStructuredErrorf(errz.ErrRuntime, in.location(), in.captureStack(), "panic: %v", r)
		}
		if err != nil {
			in.fault = nil
			err = in.convert(err)
			result = nil
		}
		in.active--
	}()
	return fn(ctx)
}

// usePool installs pool as the constant pool in effect and returns a
// function restoring the previous one.
func (in *Interpreter) usePool(pool []string) func() {
	saved := in.pool
	in.pool = pool
	return func() {
		in.pool = saved
	}
}

// call runs a script function in a new execution.
func (in *Interpreter) call(ctx context.Context, fn *Function, this object.Value, args []object.Value) (object.Value, error) {
	if in.depth >= in.maxDepth {
		return nil, errz.Newf(errz.ErrStack, errz.ErrCallDepth, "call depth %d exceeded calling %s", in.maxDepth, fn.label())
	}
	if object.IsNullish(this) {
		this = in.global
	}
	var caller object.Value
	if e := in.current(); e != nil && e.frame != nil {
		caller = e.frame.Function
	}
	frame := newCallFrame(fn, this, args)
	in.bind(frame, caller)

	defer in.usePool(fn.pool)()
	in.depth++
	defer func() { in.depth-- }()

	scope := make([]object.Object, 0, len(fn.scope)+1)
	scope = append(scope, fn.scope...)
	scope = append(scope, frame.Locals)
	in.logger.Trace().Str("function", fn.label()).Int("args", len(args)).Int("depth", in.depth).Msg("call")
	return in.execute(ctx, in.newExecution(fn.label(), fn.code, frame, scope))
}

// callValue calls any callable value. Calling something that is not a
// function is logged and yields undefined.
func (in *Interpreter) callValue(ctx context.Context, fn object.Value, this object.Value, args []object.Value) (object.Value, error) {
	switch fn := fn.(type) {
	case *Function:
		return in.call(ctx, fn, this, args)
	case object.Callable:
		return fn.Call(ctx, this, args)
	}
	in.logger.Warn().Str("value", object.ToString(fn)).Msg("call of a value that is not a function")
	return object.Undefined, nil
}

// construct creates an object with ctor. Host functions that are not
// constructors run with a fresh object as receiver.
func (in *Interpreter) construct(ctx context.Context, ctor object.Value, args []object.Value) (object.Value, error) {
	switch c := ctor.(type) {
	case object.Constructor:
		return c.Construct(ctx, args)
	case object.Callable:
		var proto object.Object = in.objectProto
		if o, ok := c.(object.Object); ok {
			if p, ok := o.GetProperty("", "prototype"); ok {
				if po, ok := p.(object.Object); ok {
					proto = po
				}
			}
		}
		obj := object.NewDynamic("Object", proto)
		v, err := c.Call(ctx, obj, args)
		if err != nil {
			return nil, err
		}
		if o, ok := v.(object.Object); ok && !object.IsNullish(o) {
			return o, nil
		}
		return obj, nil
	}
	in.logger.Warn().Str("value", object.ToString(ctor)).Msg("new of a value that is not a constructor")
	return object.Undefined, nil
}

// execution is one run over an action buffer: the top-level buffer or the
// body of a called function.
type execution struct {
	in    *Interpreter
	name  string
	code  []byte
	cur   *cursor.Cursor
	frame *CallFrame

	// scope is the scope chain, outermost first. The with blocks entered
	// by this execution are searched before it.
	scope []object.Object
	withs []withBlock
	tries []*TryBlock

	pc    int
	next  int
	stop  int
	start int

	pending   *object.Exception
	returning bool
	result    object.Value
	done      bool
}

type withBlock struct {
	obj object.Object
	end int
}

func (in *Interpreter) newExecution(name string, code []byte, frame *CallFrame, scope []object.Object) *execution {
	return &execution{
		in:     in,
		name:   name,
		code:   code,
		cur:    cursor.New(code),
		frame:  frame,
		scope:  scope,
		stop:   len(code),
		result: object.Undefined,
	}
}

func (e *execution) location() errz.SourceLocation {
	return errz.SourceLocation{Function: e.name, Offset: e.start}
}

// withLimit returns the maximum number of nested with blocks.
func (in *Interpreter) withLimit() int {
	if in.version > 5 {
		return 15
	}
	return 7
}

// execute runs e to completion on its own segment of the operand stack.
// Whatever e leaves on the stack is discarded.
func (in *Interpreter) execute(ctx context.Context, e *execution) (object.Value, error) {
	prev, err := in.stack.SetFence(in.stack.TotalSize())
	if err != nil {
		return nil, err
	}
	in.execs = append(in.execs, e)
	defer func() {
		in.execs = in.execs[:len(in.execs)-1]
		if n := in.stack.Size(); n > 0 {
			in.logger.Debug().Str("function", e.name).Int("values", n).Msg("values left on the stack")
			in.stack.Drop(n)
		}
		in.stack.SetFence(prev)
	}()
	if err := in.run(ctx, e); err != nil {
		return nil, err
	}
	if e.pending != nil {
		return nil, e.pending
	}
	return e.result, nil
}

// run is the dispatch loop of one execution.
func (in *Interpreter) run(ctx context.Context, e *execution) error {
	for !e.done {
		if e.pc >= e.stop {
			if len(e.tries) == 0 || !e.advance(e.tries[len(e.tries)-1]) {
				return nil
			}
			continue
		}
		for len(e.withs) > 0 && e.pc >= e.withs[len(e.withs)-1].end {
			e.withs = e.withs[:len(e.withs)-1]
		}
		if err := e.cur.SeekAbsolute(e.pc); err != nil {
			return in.annotate(e, errz.Malformed(err, "program counter %d outside the buffer", e.pc))
		}
		rec, err := bytecode.ReadAction(e.cur)
		if err != nil {
			return in.annotate(e, errz.Malformed(err, "action at offset %d overruns the buffer", e.pc))
		}
		e.start = rec.Offset
		e.next = rec.End()
		err = in.exec(ctx, e, rec)
		if in.fault != nil {
			err, in.fault = in.fault, nil
		}
		if err != nil {
			exc, ok := in.asException(err)
			if !ok {
				return in.annotate(e, err)
			}
			if in.thrown == nil || in.thrown.exc != exc {
				in.thrown = &throwSite{exc: exc, location: e.location(), stack: in.captureStack()}
			}
			e.pending = exc
			e.next = e.stop
		}
		e.pc = e.next
	}
	return nil
}

// jump moves the execution to target. Backward jumps check the budget.
func (in *Interpreter) jump(ctx context.Context, e *execution, rec bytecode.ActionRecord, target int) error {
	if target < 0 || target > len(e.code) {
		return errz.Malformed(nil, "%s: jump target %d outside the buffer", rec.Action, target)
	}
	if target <= rec.Offset {
		if err := in.checkBudget(ctx); err != nil {
			return err
		}
	}
	e.next = target
	return nil
}

// checkBudget is called on every backward jump.
func (in *Interpreter) checkBudget(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return errz.Newf(errz.ErrTimeout, ctx.Err(), "execution cancelled: %v", ctx.Err())
	default:
	}
	if in.budget > 0 {
		if elapsed := in.clock().Sub(in.startedAt); elapsed > in.budget {
			return errz.Timeout("execution budget of %s exceeded after %s", in.budget, elapsed)
		}
	}
	return nil
}

// asException returns the script exception carried by err. Type errors
// raised by host objects become catchable TypeErrors.
func (in *Interpreter) asException(err error) (*object.Exception, bool) {
	if exc, ok := object.AsException(err); ok {
		return exc, true
	}
	var se *errz.StructuredError
	if !errors.As(err, &se) {
		return nil, false
	}
	switch {
	case se.Value != nil && (se.Kind == errz.ErrScript || se.Kind == errz.ErrType):
		if v, ok := se.Value.(object.Value); ok {
			return object.Throw(v), true
		}
	case se.Kind == errz.ErrType:
		return object.TypeErrorf("%s", se.Message), true
	}
	return nil, false
}

// annotate attaches the location of e and the call stack to err.
func (in *Interpreter) annotate(e *execution, err error) error {
	var se *errz.StructuredError
	if !errors.As(err, &se) {
		return errz.NewStructuredErrorf(errz.ErrRuntime, e.location(), in.captureStack(), "%v", err).WithCause(err)
	}
	if se.Location.IsZero() {
		se.Location = e.location()
		se.Stack = in.captureStack()
	}
	in.logger.Debug().Err(err).Msg("fault")
	return err
}

// convert turns an exception escaping to the host into a StructuredError.
func (in *Interpreter) convert(err error) error {
	exc, ok := object.AsException(err)
	if !ok {
		return err
	}
	kind := errz.ErrScript
	if class, ok := object.ErrorClass(exc.Value); ok && class == "TypeError" {
		kind = errz.ErrType
	}
	se := &errz.StructuredError{
		Message: object.ToString(exc.Value),
		Kind:    kind,
		Cause:   exc,
		Value:   exc.Value,
	}
	if t := in.thrown; t != nil && t.exc == exc {
		se.Location = t.location
		se.Stack = t.stack
	}
	return se
}

func (in *Interpreter) current() *execution {
	if len(in.execs) == 0 {
		return nil
	}
	return in.execs[len(in.execs)-1]
}

func (in *Interpreter) location() errz.SourceLocation {
	if e := in.current(); e != nil {
		return e.location()
	}
	return errz.SourceLocation{}
}

// captureStack returns the live executions, innermost first.
func (in *Interpreter) captureStack() []errz.StackFrame {
	frames := make([]errz.StackFrame, 0, len(in.execs))
	for i := len(in.execs) - 1; i >= 0; i-- {
		e := in.execs[i]
		frames = append(frames, errz.StackFrame{Function: e.name, Location: e.location()})
	}
	return frames
}

// MarkReachable reports every object the interpreter still references to
// m: the global object and registers, the operand stack and, for every live
// execution, its scope chain, with blocks, frame and pending exceptions.
func (in *Interpreter) MarkReachable(m object.Marker) {
	roots := []object.Value{in.global, in.objectProto, in.functionProto, in.arrayProto}
	roots = append(roots, in.registers[:]...)
	in.stack.Each(func(_ int, v object.Value) { roots = append(roots, v) })
	for _, e := range in.execs {
		for _, o := range e.scope {
			roots = append(roots, o)
		}
		for _, w := range e.withs {
			roots = append(roots, w.obj)
		}
		for _, t := range e.tries {
			if t.uncaught != nil {
				roots = append(roots, t.uncaught.Value)
			}
		}
		if e.pending != nil {
			roots = append(roots, e.pending.Value)
		}
		if e.result != nil {
			roots = append(roots, e.result)
		}
		if f := e.frame; f != nil {
			roots = append(roots, f.Function, f.This, f.Locals)
			roots = append(roots, f.Args...)
			roots = append(roots, f.Registers...)
		}
	}
	if in.thrown != nil {
		roots = append(roots, in.thrown.exc.Value)
	}
	object.Reach(m, roots)
}

// Run executes code in a new Interpreter.
func Run(ctx context.Context, code []byte, options ...Option) (object.Value, error) {
	in, err := New(options...)
	if err != nil {
		return nil, err
	}
	return in.Run(ctx, code)
}
