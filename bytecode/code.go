package bytecode

import (
	"fmt"
	"sort"

	"github.com/deepnoodle-ai/avm/op"
)

// Code is a decoded method body. It is immutable after creation and safe for
// concurrent use.
type Code struct {
	name         string
	bytes        []byte
	instructions []Instruction
	handlers     []ExceptionHandler
	lines        []Line

	// Declared sizing
	maxStack   int
	localCount int
	maxScope   int
}

// CodeParams contains parameters for creating a new Code.
type CodeParams struct {
	Name       string
	Bytes      []byte
	Handlers   []ExceptionHandler
	MaxStack   int
	LocalCount int
	MaxScope   int
}

// NewCode decodes params.Bytes. Input slices are copied.
func NewCode(params CodeParams) (*Code, error) {
	raw := copyBytes(params.Bytes)
	instructions, err := Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", params.Name, err)
	}
	code := &Code{
		name:         params.Name,
		bytes:        raw,
		instructions: instructions,
		handlers:     copyHandlers(params.Handlers),
		maxStack:     params.MaxStack,
		localCount:   params.LocalCount,
		maxScope:     params.MaxScope,
	}
	code.lines = collectLines(instructions)
	return code, nil
}

// Name returns the name of the code's method.
func (c *Code) Name() string {
	return c.name
}

// ByteLength returns the length of the encoded body.
func (c *Code) ByteLength() int {
	return len(c.bytes)
}

// InstructionCount returns the number of instructions.
func (c *Code) InstructionCount() int {
	return len(c.instructions)
}

// InstructionAt returns the instruction at the given index.
func (c *Code) InstructionAt(index int) Instruction {
	return c.instructions[index]
}

// IndexOf returns the index of the instruction starting at offset, or -1 if
// no instruction starts there.
func (c *Code) IndexOf(offset int) int {
	i := sort.Search(len(c.instructions), func(i int) bool {
		return c.instructions[i].Offset >= offset
	})
	if i < len(c.instructions) && c.instructions[i].Offset == offset {
		return i
	}
	return -1
}

// ExceptionHandlerCount returns the number of exception handlers.
func (c *Code) ExceptionHandlerCount() int {
	return len(c.handlers)
}

// ExceptionHandlerAt returns the exception handler at the given index.
func (c *Code) ExceptionHandlerAt(index int) ExceptionHandler {
	return c.handlers[index]
}

// MaxStack returns the declared operand stack size.
func (c *Code) MaxStack() int {
	return c.maxStack
}

// LocalCount returns the declared register count.
func (c *Code) LocalCount() int {
	return c.localCount
}

// Verify checks that every branch target and exception handler boundary
// lands on an instruction start (or the end of the body for exclusive range
// ends) and that register operands are within the declared register count.
func (c *Code) Verify() []error {
	var errs []error
	end := len(c.bytes)
	for _, inst := range c.instructions {
		for _, t := range inst.Targets {
			if c.IndexOf(t) < 0 {
				errs = append(errs, fmt.Errorf("%s: %s at offset %d branches to %d, not an instruction start",
					c.name, inst.Code, inst.Offset, t))
			}
		}
		if reg, ok := registerOperand(inst); ok && c.localCount > 0 && reg >= c.localCount {
			errs = append(errs, fmt.Errorf("%s: %s at offset %d uses register %d of %d",
				c.name, inst.Code, inst.Offset, reg, c.localCount))
		}
	}
	for i, h := range c.handlers {
		if h.From < 0 || h.From > h.To || h.To > end {
			errs = append(errs, fmt.Errorf("%s: exception %d range [%d,%d) outside code of length %d",
				c.name, i, h.From, h.To, end))
		}
		if c.IndexOf(h.Target) < 0 {
			errs = append(errs, fmt.Errorf("%s: exception %d target %d is not an instruction start",
				c.name, i, h.Target))
		}
	}
	return errs
}

func registerOperand(inst Instruction) (int, bool) {
	switch inst.Code {
	case op.GetLocal, op.SetLocal, op.Kill, op.IncLocal, op.DecLocal, op.IncLocalI, op.DecLocalI:
		return inst.Operand(0), true
	case op.GetLocal1, op.SetLocal1:
		return 1, true
	case op.GetLocal2, op.SetLocal2:
		return 2, true
	case op.GetLocal3, op.SetLocal3:
		return 3, true
	}
	return 0, false
}

// Stats returns statistics about this code.
func (c *Code) Stats() Stats {
	s := Stats{
		InstructionCount: len(c.instructions),
		ByteLength:       len(c.bytes),
		HandlerCount:     len(c.handlers),
		MaxStack:         c.maxStack,
		LocalCount:       c.localCount,
	}
	for _, inst := range c.instructions {
		if inst.Code.IsBranch() {
			s.BranchCount++
			for _, t := range inst.Targets {
				if t <= inst.Offset {
					s.BackwardBranchCount++
					break
				}
			}
		}
		switch inst.Code {
		case op.Call, op.CallMethod, op.CallStatic, op.CallSuper, op.CallProperty,
			op.CallPropLex, op.CallSuperVoid, op.CallPropVoid, op.Construct,
			op.ConstructProp, op.ConstructSuper:
			s.CallCount++
		}
	}
	return s
}

func copyBytes(src []byte) []byte {
	if src == nil {
		return nil
	}
	dst := make([]byte, len(src))
	copy(dst, src)
	return dst
}

func copyHandlers(src []ExceptionHandler) []ExceptionHandler {
	if src == nil {
		return nil
	}
	dst := make([]ExceptionHandler, len(src))
	copy(dst, src)
	return dst
}
