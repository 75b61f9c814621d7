// Package vm provides a VirtualMachine that executes the method bodies of a
// parsed ABC unit.
//
// Calls between script functions never recurse on the Go stack. A call
// saves the caller's state, fences off the caller's segment of the shared
// operand and scope stacks and continues in the same dispatch loop; a return
// pops the saved state. Only calls that cross the host boundary, such as a
// host function calling back into a script function, start a nested loop.
package vm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/deepnoodle-ai/avm/abc"
	"github.com/deepnoodle-ai/avm/bytecode"
	"github.com/deepnoodle-ai/avm/errz"
	"github.com/deepnoodle-ai/avm/names"
	"github.com/deepnoodle-ai/avm/object"
	"github.com/deepnoodle-ai/avm/op"
	"github.com/deepnoodle-ai/avm/stack"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog"
)

const (
	DefaultMaxDepth   = 512
	DefaultStackLimit = 1 << 16
	DefaultScopeLimit = 1024
)

var ErrGlobalNotFound = errors.New("global not found")

// VirtualMachine runs the scripts of one unit against one global object. It
// is not safe for concurrent use, but script code may re-enter it through
// host functions.
type VirtualMachine struct {
	block    *abc.Block
	logger   zerolog.Logger
	runID    uuid.UUID
	resolver *names.Resolver

	budget     time.Duration
	clock      func() time.Time
	startedAt  time.Time
	maxDepth   int
	stackLimit int
	scopeLimit int

	observer  Observer
	obsConfig ObserverConfig
	steps     int
	lastLine  int

	inputGlobals  map[string]any
	global        *object.Dynamic
	natives       map[string]*NativeClass
	objectProto   *object.Dynamic
	functionProto *object.Dynamic
	arrayProto    *object.Dynamic
	classes       map[*abc.Class]*Class
	protos        map[object.Object]*Class
	codes         map[*abc.Body]*bytecode.Code

	stack  *stack.Stack[object.Value]
	scope  *stack.Stack[object.Value]
	cur    *frame
	states []state
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

// New creates a Virtual Machine for block. The traits of every script are
// installed on the global object; nothing runs until Run or Invoke.
func New(block *abc.Block, options ...Option) (*VirtualMachine, error) {
	if block == nil {
		return nil, errors.New("vm: no block provided")
	}
	vm := &VirtualMachine{
		block:        block,
		logger:       zerolog.Nop(),
		resolver:     names.NewResolver(0),
		clock:        time.Now,
		maxDepth:     DefaultMaxDepth,
		stackLimit:   DefaultStackLimit,
		scopeLimit:   DefaultScopeLimit,
		inputGlobals: map[string]any{},
		classes:      map[*abc.Class]*Class{},
		protos:       map[object.Object]*Class{},
		codes:        map[*abc.Body]*bytecode.Code{},
	}
	for _, opt := range options {
		opt(vm)
	}
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	vm.runID = id
	vm.logger = vm.logger.With().Str("run", id.String()).Logger()
	vm.stack = stack.New[object.Value](vm.stackLimit)
	vm.scope = stack.New[object.Value](vm.scopeLimit)
	if vm.observer != nil {
		vm.obsConfig = NormalizeConfig(vm.observer.Config())
	}
	vm.installNatives()

	globals, err := object.AsObjects(vm.inputGlobals)
	if err != nil {
		return nil, fmt.Errorf("invalid global provided: %w", err)
	}
	for name, value := range globals {
		if err := vm.global.SetProperty("", name, value); err != nil {
			return nil, err
		}
	}
	for _, s := range block.Scripts {
		vm.installSlots(vm.global, s.Traits, nil)
		vm.installMembers(vm.global, s.Traits, nil, nil)
	}
	return vm, nil
}

// RunID returns the id attached to the VM's log lines.
func (vm *VirtualMachine) RunID() uuid.UUID {
	return vm.runID
}

// Block returns the unit the VM executes.
func (vm *VirtualMachine) Block() *abc.Block {
	return vm.block
}

// Global returns the global object.
func (vm *VirtualMachine) Global() *object.Dynamic {
	return vm.global
}

// Get a public global by name.
func (vm *VirtualMachine) Get(name string) (object.Value, error) {
	if v, ok := vm.global.GetProperty("", name); ok {
		return v, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrGlobalNotFound, name)
}

// Run runs every script initializer in order with the global object as the
// receiver and returns the result of the last one, the unit's entry point.
func (vm *VirtualMachine) Run(ctx context.Context) (object.Value, error) {
	return vm.enter(ctx, func(ctx context.Context) (object.Value, error) {
		var result object.Value = object.Undefined
		for _, s := range vm.block.Scripts {
			v, err := vm.invoke(ctx, vm.newFunction(s.Init, nil, nil), vm.global, nil)
			if err != nil {
				return nil, err
			}
			result = v
		}
		return result, nil
	})
}

// Invoke calls fn, which may be a script function or any host callable. An
// exception that escapes fn is returned as an ErrScript error, or ErrType
// for type errors, carrying the thrown value.
func (vm *VirtualMachine) Invoke(ctx context.Context, fn object.Value, this object.Value, args ...object.Value) (object.Value, error) {
	return vm.enter(ctx, func(ctx context.Context) (object.Value, error) {
		return vm.callSync(ctx, fn, this, args)
	})
}

// enter wraps an entry from the host. The outermost entry starts the budget
// clock. Whatever happens, the saved states and stacks are restored to
// their shape at entry.
func (vm *VirtualMachine) enter(ctx context.Context, fn func(ctx context.Context) (object.Value, error)) (result object.Value, err error) {
	if vm.active == 0 {
		vm.steps = 0
		vm.lastLine = 0
		vm.thrown = nil
		if vm.budget > 0 {
			vm.startedAt = vm.clock()
		}
	}
	vm.active++
	depth := len(vm.states)
	cur := vm.cur
	defer func() {
		if r := recover(); r != nil {
			err = errz.NewStructuredErrorf(errz.ErrRuntime, vm.location(), vm.captureStack(), "panic: %v", r)
		}
		if err != nil {
			for len(vm.states) > depth {
				vm.popState()
			}
			vm.cur = cur
			vm.fault = nil
			err = vm.convert(err)
			result = nil
		}
		vm.active--
	}()
	return fn(ctx)
}

// invoke runs a script function to completion in a nested dispatch loop.
func (vm *VirtualMachine) invoke(ctx context.Context, fn *Function, this object.Value, args []object.Value) (object.Value, error) {
	if err := vm.pushCall(fn, this, args, retBoundary, nil); err != nil {
		return nil, err
	}
	return vm.eval(ctx)
}

// code returns the decoded instructions of body.
func (vm *VirtualMachine) code(body *abc.Body) (*bytecode.Code, error) {
	if c, ok := vm.codes[body]; ok {
		return c, nil
	}
	c, err := body.Decode()
	if err != nil {
		return nil, err
	}
	vm.codes[body] = c
	return c, nil
}

// pushCall saves the caller's state and makes fn the current frame. The
// caller's operands, including the consumed arguments, are fenced off and
// fn's captured scope chain is pushed for it.
func (vm *VirtualMachine) pushCall(fn *Function, this object.Value, args []object.Value, ret returnKind, result object.Value) error {
	if len(vm.states) >= vm.maxDepth {
		return errz.Newf(errz.ErrStack, errz.ErrCallDepth, "call depth %d exceeded calling %s", vm.maxDepth, fn.method)
	}
	method := fn.method
	if method.IsNative() {
		return errz.Newf(errz.ErrRuntime, nil, "method %s has no body", method)
	}
	code, err := vm.code(method.Body)
	if err != nil {
		return err
	}
	if err := checkArgs(method, len(args)); err != nil {
		return err
	}
	if lim := vm.scope.Limit(); lim > 0 && vm.scope.TotalSize()+len(fn.scope) > lim {
		return errz.StackFault("scope stack overflow calling %s", method)
	}
	if vm.observer != nil && vm.obsConfig.ObserveCalls {
		event := CallEvent{
			FunctionName: method.String(),
			ArgCount:     len(args),
			FrameDepth:   len(vm.states),
		}
		if vm.cur != nil {
			event.Location = vm.cur.location()
		}
		if !vm.observer.OnCall(event) {
			return halted()
		}
	}

	regs := vm.registers(fn, this, args)
	s := state{
		caller:     vm.cur,
		stackTotal: vm.stack.TotalSize(),
		stackFence: vm.stack.Fence(),
		scopeTotal: vm.scope.TotalSize(),
		scopeFence: vm.scope.Fence(),
		ret:        ret,
		result:     result,
	}
	if _, err := vm.stack.SetFence(s.stackTotal); err != nil {
		return err
	}
	for _, v := range fn.scope {
		vm.scope.Push(v)
	}
	if _, err := vm.scope.SetFence(vm.scope.TotalSize()); err != nil {
		return err
	}
	vm.states = append(vm.states, s)
	vm.cur = &frame{
		fn:         fn,
		method:     method,
		code:       code,
		regs:       regs,
		scopeBase:  s.scopeTotal,
		scopeFence: vm.scope.TotalSize(),
		stackFence: s.stackTotal,
		home:       fn.home,
	}
	vm.logger.Trace().Str("function", method.String()).Int("args", len(args)).
		Int("depth", len(vm.states)).Msg("call")
	return nil
}

// registers builds the register bank of a call: the receiver, declared
// parameters with defaults for missing optional ones, then the rest or
// arguments array.
func (vm *VirtualMachine) registers(fn *Function, this object.Value, args []object.Value) []object.Value {
	method := fn.method
	params := method.ParamCount()
	need := 1 + params
	if method.Flags&(abc.NeedArguments|abc.NeedRest) != 0 {
		need++
	}
	size := method.Body.LocalCount
	if size < need {
		size = need
	}
	regs := make([]object.Value, size)
	for i := range regs {
		regs[i] = object.Undefined
	}
	if object.IsNullish(this) {
		this = vm.global
	}
	regs[0] = this
	firstOptional := params - len(method.Optional)
	for i := 0; i < params; i++ {
		switch {
		case i < len(args):
			regs[1+i] = args[i]
		case i >= firstOptional:
			regs[1+i] = vm.constantValue(method.Optional[i-firstOptional])
		}
	}
	switch {
	case method.Has(abc.NeedRest):
		var rest []object.Value
		if len(args) > params {
			rest = append(rest, args[params:]...)
		}
		regs[1+params] = vm.newArray(rest)
	case method.Has(abc.NeedArguments):
		arr := vm.newArray(append([]object.Value(nil), args...))
		arr.DefineHidden("", "callee", fn)
		regs[1+params] = arr
	}
	return regs
}

// popState returns to the caller saved by the most recent call, discarding
// everything the callee left on both stacks.
func (vm *VirtualMachine) popState() (state, error) {
	s := vm.states[len(vm.states)-1]
	vm.states = vm.states[:len(vm.states)-1]
	vm.cur = s.caller
	if err := truncate(vm.stack, s.stackTotal, s.stackFence); err != nil {
		return s, err
	}
	if err := truncate(vm.scope, s.scopeTotal, s.scopeFence); err != nil {
		return s, err
	}
	return s, nil
}

// leave returns v from the current frame. It reports true when the frame
// was entered from Go and v is the result of the nested loop.
func (vm *VirtualMachine) leave(v object.Value) (object.Value, bool, error) {
	f := vm.cur
	if vm.observer != nil && vm.obsConfig.ObserveReturns {
		event := ReturnEvent{
			FunctionName: f.name(),
			Location:     f.location(),
			FrameDepth:   len(vm.states),
		}
		if !vm.observer.OnReturn(event) {
			return nil, false, halted()
		}
	}
	vm.logger.Trace().Str("function", f.name()).Int("depth", len(vm.states)).Msg("return")
	s, err := vm.popState()
	if err != nil {
		return nil, false, err
	}
	switch s.ret {
	case retBoundary:
		return v, true, nil
	case retPush:
		return nil, false, vm.stack.Push(v)
	case retResult:
		return nil, false, vm.stack.Push(s.result)
	}
	return nil, false, nil
}

// eval runs the dispatch loop until the frame pushed with retBoundary by
// the caller returns.
func (vm *VirtualMachine) eval(ctx context.Context) (object.Value, error) {
	for {
		f := vm.cur
		var err error
		if f.ip >= f.code.InstructionCount() {
			// Running off the end of a body returns undefined.
			v, done, lerr := vm.leave(object.Undefined)
			if lerr == nil && done {
				return v, nil
			}
			err = lerr
		} else {
			insn := f.code.InstructionAt(f.ip)
			f.start = insn.Offset
			f.ip++
			err = vm.step(f, insn)
			if err == nil {
				switch insn.Code {
				case op.ReturnVoid, op.ReturnValue:
					var v object.Value = object.Undefined
					if insn.Code == op.ReturnValue {
						v = vm.pop()
					}
					if vm.fault == nil {
						var done bool
						v, done, err = vm.leave(v)
						if err == nil && done {
							return v, nil
						}
					}
				default:
					err = vm.exec(ctx, f, insn)
				}
			}
		}
		if vm.fault != nil {
			err, vm.fault = vm.fault, nil
		}
		if err != nil {
			if err := vm.handleError(err); err != nil {
				return nil, err
			}
		}
	}
}

// step reports the instruction to the observer according to its StepMode.
func (vm *VirtualMachine) step(f *frame, insn bytecode.Instruction) error {
	if vm.observer == nil {
		return nil
	}
	switch vm.obsConfig.StepMode {
	case StepNone:
		return nil
	case StepSampled:
		vm.steps++
		if vm.steps%vm.obsConfig.SampleInterval != 0 {
			return nil
		}
	case StepOnLine:
		line := f.code.LineAt(insn.Offset)
		if line == 0 || line == vm.lastLine {
			return nil
		}
		vm.lastLine = line
	}
	event := StepEvent{
		Offset:     insn.Offset,
		Opcode:     insn.Code,
		OpcodeName: insn.Code.String(),
		Location:   f.location(),
		StackDepth: vm.stack.Size(),
		FrameDepth: len(vm.states),
	}
	if !vm.observer.OnStep(event) {
		return halted()
	}
	return nil
}

// checkBudget is called on every backward branch.
func (vm *VirtualMachine) checkBudget(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return errz.Newf(errz.ErrTimeout, ctx.Err(), "execution cancelled: %v", ctx.Err())
	default:
	}
	if vm.budget > 0 {
		if elapsed := vm.clock().Sub(vm.startedAt); elapsed > vm.budget {
			return errz.Timeout("execution budget of %s exceeded after %s", vm.budget, elapsed)
		}
	}
	return nil
}

func (vm *VirtualMachine) push(v object.Value) {
	if v == nil {
		v = object.Undefined
	}
	if err := vm.stack.Push(v); err != nil && vm.fault == nil {
		vm.fault = err
	}
}

func (vm *VirtualMachine) pop() object.Value {
	v, err := vm.stack.Pop()
	if err != nil {
		if vm.fault == nil {
			vm.fault = err
		}
		return object.Undefined
	}
	return v
}

// popArgs pops n values, returning them in push order.
func (vm *VirtualMachine) popArgs(n int) ([]object.Value, error) {
	if n > vm.stack.Size() {
		return nil, errz.StackFault("%d operand(s) needed, %d available", n, vm.stack.Size())
	}
	args := make([]object.Value, n)
	for i := n - 1; i >= 0; i-- {
		args[i], _ = vm.stack.Pop()
	}
	return args, nil
}

// MarkReachable reports every object the VM still references to m: the
// global object, classes, every live frame's registers, both stacks, saved
// call results and the exception in flight.
func (vm *VirtualMachine) MarkReachable(m object.Marker) {
	roots := []object.Value{vm.global}
	for _, c := range vm.natives {
		roots = append(roots, c)
	}
	for _, c := range vm.classes {
		roots = append(roots, c)
	}
	addFrame := func(f *frame) {
		if f == nil {
			return
		}
		roots = append(roots, f.regs...)
		if f.fn != nil {
			roots = append(roots, f.fn)
		}
	}
	addFrame(vm.cur)
	for _, s := range vm.states {
		addFrame(s.caller)
		if s.result != nil {
			roots = append(roots, s.result)
		}
	}
	vm.stack.Each(func(_ int, v object.Value) { roots = append(roots, v) })
	vm.scope.Each(func(_ int, v object.Value) { roots = append(roots, v) })
	if vm.thrown != nil {
		roots = append(roots, vm.thrown.exc.Value)
	}
	object.Reach(m, roots)
}

func halted() error {
	return errz.Newf(errz.ErrRuntime, nil, "execution halted by observer")
}
