package asm

import (
	"fmt"

	"github.com/deepnoodle-ai/avm/cursor"
	"github.com/deepnoodle-ai/avm/op"
)

// Code assembles a method body. Branches name labels, which are resolved
// relative to the branch opcode's start when Bytes is called.
type Code struct {
	w      *cursor.Writer
	labels map[string]int
	fixups []fixup
}

type fixup struct {
	at    int
	start int
	label string
}

// NewCode returns an empty assembler.
func NewCode() *Code {
	return &Code{w: cursor.NewWriter(), labels: map[string]int{}}
}

// Offset returns the offset of the next instruction.
func (c *Code) Offset() int {
	return c.w.Len()
}

// Op appends an instruction with immediate operands encoded according to
// the opcode's operand layout.
func (c *Code) Op(code op.Code, operands ...int) *Code {
	info := op.GetInfo(code)
	if len(operands) != len(info.Operands) || info.Switch {
		panic(fmt.Sprintf("asm: %s takes %d operand(s), got %d", code, len(info.Operands), len(operands)))
	}
	c.w.U8(uint8(code))
	for i, kind := range info.Operands {
		switch kind {
		case op.U8:
			c.w.U8(uint8(operands[i]))
		case op.S24:
			c.w.S24(int32(operands[i]))
		default:
			c.w.U30(operands[i])
		}
	}
	return c
}

// Branch appends a branch instruction targeting label.
func (c *Code) Branch(code op.Code, label string) *Code {
	start := c.w.Len()
	c.w.U8(uint8(code))
	c.fixups = append(c.fixups, fixup{at: c.w.Len(), start: start, label: label})
	c.w.S24(0)
	return c
}

// Switch appends a lookupswitch with a default label and case labels.
func (c *Code) Switch(def string, cases ...string) *Code {
	start := c.w.Len()
	c.w.U8(uint8(op.LookupSwitch))
	c.fixups = append(c.fixups, fixup{at: c.w.Len(), start: start, label: def})
	c.w.S24(0)
	c.w.U30(len(cases) - 1)
	for _, l := range cases {
		c.fixups = append(c.fixups, fixup{at: c.w.Len(), start: start, label: l})
		c.w.S24(0)
	}
	return c
}

// Label binds name to the current offset.
func (c *Code) Label(name string) *Code {
	if _, dup := c.labels[name]; dup {
		panic(fmt.Sprintf("asm: label %q defined twice", name))
	}
	c.labels[name] = c.w.Len()
	return c
}

// LabelOffset returns the offset bound to name.
func (c *Code) LabelOffset(name string) int {
	off, ok := c.labels[name]
	if !ok {
		panic(fmt.Sprintf("asm: undefined label %q", name))
	}
	return off
}

// Raw appends bytes unchanged.
func (c *Code) Raw(b ...byte) *Code {
	c.w.Raw(b)
	return c
}

// Bytes resolves labels and returns the encoded body.
func (c *Code) Bytes() []byte {
	buf := append([]byte(nil), c.w.Bytes()...)
	for _, f := range c.fixups {
		rel := uint32(int32(c.LabelOffset(f.label)-f.start)) & 0xffffff
		buf[f.at] = byte(rel)
		buf[f.at+1] = byte(rel >> 8)
		buf[f.at+2] = byte(rel >> 16)
	}
	return buf
}
