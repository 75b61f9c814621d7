package bytecode

import (
	"fmt"
	"strings"

	"github.com/deepnoodle-ai/avm/cursor"
	"github.com/deepnoodle-ai/avm/errz"
	"github.com/deepnoodle-ai/avm/op"
)

// maxSwitchCases bounds the case count of a lookupswitch so a corrupt count
// cannot trigger a huge allocation before the reads fail.
const maxSwitchCases = 1 << 16

// Instruction is one decoded stack-machine instruction.
type Instruction struct {
	Offset   int
	Length   int
	Code     op.Code
	Operands []int

	// Targets holds absolute branch targets: one for conditional and
	// unconditional branches, the default followed by every case for
	// lookupswitch.
	Targets []int
}

// End returns the offset following the instruction.
func (i Instruction) End() int {
	return i.Offset + i.Length
}

// Operand returns the n-th operand or zero.
func (i Instruction) Operand(n int) int {
	if n < len(i.Operands) {
		return i.Operands[n]
	}
	return 0
}

func (i Instruction) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%04d %s", i.Offset, i.Code)
	if len(i.Targets) > 0 {
		parts := make([]string, len(i.Targets))
		for n, t := range i.Targets {
			parts[n] = fmt.Sprintf("->%d", t)
		}
		sb.WriteString(" " + strings.Join(parts, " "))
		return sb.String()
	}
	for _, o := range i.Operands {
		fmt.Fprintf(&sb, " %d", o)
	}
	return sb.String()
}

// DecodeAt decodes the instruction at the cursor's position, leaving the
// cursor after it.
func DecodeAt(c *cursor.Cursor) (Instruction, error) {
	start := c.Tell()
	b, err := c.ReadU8()
	if err != nil {
		return Instruction{}, err
	}
	code := op.Code(b)
	info := op.GetInfo(code)
	if !info.Valid() {
		return Instruction{}, errz.Malformed(errz.ErrUnknownOpcode,
			"unknown opcode 0x%02x at offset %d", b, start)
	}
	inst := Instruction{Offset: start, Code: code}
	if info.Switch {
		if err := decodeSwitch(c, &inst); err != nil {
			return Instruction{}, err
		}
	} else {
		for _, kind := range info.Operands {
			v, err := readOperand(c, kind)
			if err != nil {
				return Instruction{}, err
			}
			inst.Operands = append(inst.Operands, v)
		}
		if code.IsBranch() {
			inst.Targets = []int{start + inst.Operands[0]}
		}
	}
	inst.Length = c.Tell() - start
	return inst, nil
}

func decodeSwitch(c *cursor.Cursor, inst *Instruction) error {
	def, err := c.ReadS24()
	if err != nil {
		return err
	}
	count, err := c.ReadU30()
	if err != nil {
		return err
	}
	if count >= maxSwitchCases {
		return errz.Malformed(nil, "lookupswitch at offset %d has %d cases", inst.Offset, count)
	}
	inst.Operands = append(inst.Operands, int(def), count)
	inst.Targets = append(inst.Targets, inst.Offset+int(def))
	for n := 0; n <= count; n++ {
		off, err := c.ReadS24()
		if err != nil {
			return err
		}
		inst.Operands = append(inst.Operands, int(off))
		inst.Targets = append(inst.Targets, inst.Offset+int(off))
	}
	return nil
}

func readOperand(c *cursor.Cursor, kind op.OperandKind) (int, error) {
	switch kind {
	case op.U8:
		v, err := c.ReadU8()
		return int(v), err
	case op.U30:
		return c.ReadU30()
	case op.S24:
		v, err := c.ReadS24()
		return int(v), err
	}
	return 0, fmt.Errorf("unknown operand kind %d", kind)
}

// Decode splits code into instructions.
func Decode(code []byte) ([]Instruction, error) {
	c := cursor.New(code)
	var out []Instruction
	for !c.AtEnd() {
		inst, err := DecodeAt(c)
		if err != nil {
			return out, err
		}
		out = append(out, inst)
	}
	return out, nil
}
