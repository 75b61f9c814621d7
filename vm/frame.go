package vm

import (
	"github.com/deepnoodle-ai/avm/abc"
	"github.com/deepnoodle-ai/avm/bytecode"
	"github.com/deepnoodle-ai/avm/errz"
	"github.com/deepnoodle-ai/avm/object"
	"github.com/deepnoodle-ai/avm/stack"
)

// frame is the activation of one method body.
type frame struct {
	fn     *Function
	method *abc.Method
	code   *bytecode.Code
	ip     int // index of the next instruction
	start  int // byte offset of the executing instruction
	regs   []object.Value

	// scopeBase is the absolute scope stack index of the outermost captured
	// scope. The captured chain occupies [scopeBase, scopeFence).
	scopeBase  int
	scopeFence int
	stackFence int

	home *Class
	line int
	file string
}

func (f *frame) name() string {
	if f.method == nil {
		return "<host>"
	}
	return f.method.String()
}

func (f *frame) location() errz.SourceLocation {
	return errz.SourceLocation{
		Function: f.name(),
		Offset:   f.start,
		File:     f.file,
		Line:     f.line,
	}
}

func (f *frame) reg(i int) (object.Value, error) {
	if i < 0 || i >= len(f.regs) {
		return nil, errz.StackFault("register %d out of range (%d registers) in %s", i, len(f.regs), f.name())
	}
	return f.regs[i], nil
}

func (f *frame) setReg(i int, v object.Value) error {
	if i < 0 || i >= len(f.regs) {
		return errz.StackFault("register %d out of range (%d registers) in %s", i, len(f.regs), f.name())
	}
	f.regs[i] = v
	return nil
}

// returnKind tells a returning call what to leave on the caller's stack.
type returnKind uint8

const (
	// retPush pushes the returned value.
	retPush returnKind = iota
	// retDiscard drops the returned value.
	retDiscard
	// retResult pushes the state's saved result, e.g. a constructed object
	// or the class whose static initializer ran.
	retResult
	// retBoundary ends the eval loop that pushed the state and hands the
	// returned value to its Go caller.
	retBoundary
)

// state is the caller's snapshot saved by a call. Calls between script
// functions never recurse on the Go stack; they push a state and continue
// in the same dispatch loop.
type state struct {
	caller     *frame
	stackTotal int
	stackFence int
	scopeTotal int
	scopeFence int
	ret        returnKind
	result     object.Value
}

// truncate drops every entry at or above total and restores fence.
func truncate[T any](s *stack.Stack[T], total, fence int) error {
	if _, err := s.SetFence(total); err != nil {
		return err
	}
	if err := s.Drop(s.Size()); err != nil {
		return err
	}
	_, err := s.SetFence(fence)
	return err
}
