// Package dis supports analysis of method bodies and legacy action streams
// by disassembling them. Method bodies are decoded with the opcode table in
// the op package; operands that index a constant pool are resolved against
// the Block the body belongs to.
package dis

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/deepnoodle-ai/avm/abc"
	"github.com/deepnoodle-ai/avm/bytecode"
	"github.com/deepnoodle-ai/avm/cursor"
	"github.com/deepnoodle-ai/avm/internal/table"
	"github.com/deepnoodle-ai/avm/op"
	"github.com/fatih/color"
)

// Kind tells Print how to color an annotation.
type Kind int

const (
	KindNone Kind = iota
	KindName
	KindString
	KindNumber
	KindTarget
	KindFunction
)

// Instruction represents a single instruction or action and its operands.
type Instruction struct {
	Offset     int
	Name       string
	Operands   []int
	Targets    []int
	Annotation string
	Kind       Kind
}

// Disassemble returns a parsed representation of a method body. The block
// resolves pool operands and may be nil, in which case they are left as
// indices.
func Disassemble(block *abc.Block, code []byte) ([]Instruction, error) {
	decoded, err := bytecode.Decode(code)
	if err != nil {
		return nil, err
	}
	instructions := make([]Instruction, 0, len(decoded))
	for _, inst := range decoded {
		out := Instruction{
			Offset:   inst.Offset,
			Name:     inst.Code.String(),
			Operands: inst.Operands,
			Targets:  inst.Targets,
		}
		if len(inst.Targets) > 0 {
			out.Annotation, out.Kind = formatTargets(inst.Targets), KindTarget
		} else if block != nil {
			out.Annotation, out.Kind, err = annotate(block, inst)
			if err != nil {
				return nil, fmt.Errorf("offset %d: %w", inst.Offset, err)
			}
		}
		instructions = append(instructions, out)
	}
	return instructions, nil
}

// DisassembleBody disassembles the code of a parsed method body.
func DisassembleBody(block *abc.Block, body *abc.Body) ([]Instruction, error) {
	return Disassemble(block, body.Code)
}

func annotate(block *abc.Block, inst bytecode.Instruction) (string, Kind, error) {
	index := inst.Operand(0)
	switch inst.Code {
	case op.PushString, op.DebugFile, op.Dxns:
		s, err := block.StringAt(index)
		return strconv.Quote(s), KindString, err
	case op.Debug:
		s, err := block.StringAt(inst.Operand(1))
		return s, KindName, err
	case op.PushInt:
		v, err := block.Int(index)
		return strconv.FormatInt(int64(v), 10), KindNumber, err
	case op.PushUint:
		v, err := block.Uint(index)
		return strconv.FormatUint(uint64(v), 10), KindNumber, err
	case op.PushDouble:
		v, err := block.Double(index)
		return strconv.FormatFloat(v, 'g', -1, 64), KindNumber, err
	case op.PushNamespace:
		ns, err := block.Namespace(index)
		if err != nil {
			return "", KindNone, err
		}
		return ns.URI, KindName, nil
	case op.GetSuper, op.SetSuper, op.GetProperty, op.SetProperty, op.InitProperty,
		op.DeleteProperty, op.GetDescendants, op.FindProperty, op.FindPropStrict,
		op.FindDef, op.GetLex, op.CallProperty, op.CallPropLex, op.CallPropVoid,
		op.CallSuper, op.CallSuperVoid, op.ConstructProp, op.Coerce, op.AsType,
		op.IsType:
		m, err := block.Multiname(index)
		if err != nil {
			return "", KindNone, err
		}
		if m == nil {
			return "*", KindName, nil
		}
		return m.String(), KindName, nil
	case op.NewFunction, op.CallStatic:
		m, err := block.Method(index)
		if err != nil {
			return "", KindNone, err
		}
		return m.String(), KindFunction, nil
	case op.NewClass:
		c, err := block.Class(index)
		if err != nil {
			return "", KindNone, err
		}
		return c.String(), KindFunction, nil
	}
	return "", KindNone, nil
}

func formatTargets(targets []int) string {
	parts := make([]string, len(targets))
	for i, t := range targets {
		parts[i] = "-> " + strconv.Itoa(t)
	}
	return strings.Join(parts, ", ")
}

// DisassembleActions returns a parsed representation of a legacy action
// stream. Function bodies that follow DefineFunction actions are listed
// inline.
func DisassembleActions(code []byte) ([]Instruction, error) {
	records, err := bytecode.DecodeActions(code)
	if err != nil {
		return nil, err
	}
	instructions := make([]Instruction, 0, len(records))
	for _, rec := range records {
		out := Instruction{Offset: rec.Offset, Name: rec.Action.String()}
		if rec.Action.HasPayload() {
			out.Operands = []int{len(rec.Payload)}
		}
		switch rec.Action {
		case op.ActionJump, op.ActionIf:
			if target, ok := rec.BranchTarget(); ok {
				out.Targets = []int{target}
				out.Annotation, out.Kind = formatTargets(out.Targets), KindTarget
			}
		case op.ActionPush:
			out.Annotation, out.Kind = formatPush(rec.Payload), KindString
		case op.ActionConstantPool:
			out.Annotation, out.Kind = formatPool(rec.Payload), KindString
		case op.ActionDefineFunction, op.ActionDefineFunction2:
			out.Annotation, out.Kind = formatFunction(rec), KindFunction
		case op.ActionStoreRegister:
			if len(rec.Payload) > 0 {
				out.Annotation, out.Kind = fmt.Sprintf("r:%d", rec.Payload[0]), KindName
			}
		case op.ActionTry, op.ActionWith:
			out.Annotation, out.Kind = formatBlock(rec), KindTarget
		}
		instructions = append(instructions, out)
	}
	return instructions, nil
}

func formatPush(payload []byte) string {
	c := cursor.New(payload)
	var parts []string
	for !c.AtEnd() {
		kind, _ := c.ReadU8()
		var s string
		var err error
		switch kind {
		case op.PushTypeString:
			var v string
			v, err = c.ReadCString()
			s = strconv.Quote(v)
		case op.PushTypeFloat:
			var v float32
			v, err = c.ReadF32()
			s = strconv.FormatFloat(float64(v), 'g', -1, 32)
		case op.PushTypeNull:
			s = "null"
		case op.PushTypeUndefined:
			s = "undefined"
		case op.PushTypeRegister:
			var v uint8
			v, err = c.ReadU8()
			s = fmt.Sprintf("r:%d", v)
		case op.PushTypeBool:
			var v uint8
			v, err = c.ReadU8()
			s = strconv.FormatBool(v != 0)
		case op.PushTypeDouble:
			var hi, lo uint32
			if hi, err = c.ReadU32(); err == nil {
				lo, err = c.ReadU32()
			}
			s = strconv.FormatFloat(math.Float64frombits(uint64(hi)<<32|uint64(lo)), 'g', -1, 64)
		case op.PushTypeInt:
			var v int32
			v, err = c.ReadS32()
			s = strconv.FormatInt(int64(v), 10)
		case op.PushTypeConstant8:
			var v uint8
			v, err = c.ReadU8()
			s = fmt.Sprintf("c:%d", v)
		case op.PushTypeConstant:
			var v uint16
			v, err = c.ReadU16()
			s = fmt.Sprintf("c:%d", v)
		default:
			return strings.Join(append(parts, fmt.Sprintf("?type %d", kind)), " ")
		}
		if err != nil {
			return strings.Join(append(parts, "<truncated>"), " ")
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, " ")
}

func formatPool(payload []byte) string {
	c := cursor.New(payload)
	n, err := c.ReadU16()
	if err != nil {
		return "<truncated>"
	}
	parts := make([]string, 0, n)
	for i := 0; i < int(n); i++ {
		s, err := c.ReadCString()
		if err != nil {
			parts = append(parts, "<truncated>")
			break
		}
		parts = append(parts, fmt.Sprintf("%d:%q", i, s))
	}
	return strings.Join(parts, " ")
}

func formatFunction(rec bytecode.ActionRecord) string {
	c := cursor.New(rec.Payload)
	name, _ := c.ReadCString()
	if name == "" {
		name = "<anonymous>"
	}
	n, _ := c.ReadU16()
	extended := rec.Action == op.ActionDefineFunction2
	if extended {
		c.ReadU8()
		c.ReadU16()
	}
	params := make([]string, 0, n)
	for i := 0; i < int(n); i++ {
		var reg uint8
		if extended {
			reg, _ = c.ReadU8()
		}
		p, err := c.ReadCString()
		if err != nil {
			break
		}
		if reg != 0 {
			p = fmt.Sprintf("%s=r:%d", p, reg)
		}
		params = append(params, p)
	}
	size, _ := c.ReadU16()
	return fmt.Sprintf("%s(%s) body %d..%d", name, strings.Join(params, ", "), rec.End(), rec.End()+int(size))
}

// formatBlock describes the extent of a Try or With block.
func formatBlock(rec bytecode.ActionRecord) string {
	c := cursor.New(rec.Payload)
	if rec.Action == op.ActionWith {
		size, err := c.ReadU16()
		if err != nil {
			return "<truncated>"
		}
		return fmt.Sprintf("-> %d", rec.End()+int(size))
	}
	flags, err := c.ReadU8()
	if err != nil {
		return "<truncated>"
	}
	var size [3]uint16
	for i := range size {
		if size[i], err = c.ReadU16(); err != nil {
			return "<truncated>"
		}
	}
	catch := rec.End() + int(size[0])
	finally := catch + int(size[1])
	end := finally + int(size[2])
	parts := []string{fmt.Sprintf("try %d..%d", rec.End(), catch)}
	if flags&op.TryHasCatch != 0 {
		parts = append(parts, fmt.Sprintf("catch %d..%d", catch, finally))
	}
	if flags&op.TryHasFinally != 0 {
		parts = append(parts, fmt.Sprintf("finally %d..%d", finally, end))
	}
	return strings.Join(parts, " ")
}

var (
	bold    = color.New(color.Bold).SprintFunc()
	italic  = color.New(color.Italic).SprintFunc()
	yellow  = color.New(color.FgYellow).SprintFunc()
	green   = color.New(color.FgGreen).SprintFunc()
	magenta = color.New(color.FgMagenta).SprintFunc()
	cyan    = color.New(color.FgHiCyan).SprintFunc()
	blue    = color.New(color.FgBlue).SprintFunc()
)

// Print a string representation of the given instructions to the given
// writer. Colors follow color.NoColor.
func Print(instructions []Instruction, writer io.Writer) {
	var lines [][]string
	for _, instr := range instructions {
		values := []string{
			strconv.Itoa(instr.Offset),
			bold(instr.Name),
			formatOperands(instr.Operands),
		}
		a := instr.Annotation
		if len(a) > 80 {
			a = a[:77] + "..."
		}
		switch instr.Kind {
		case KindNumber:
			a = yellow(a)
		case KindString:
			a = green(a)
		case KindFunction:
			if strings.HasPrefix(a, "<anonymous>") {
				a = italic(a)
			}
			a = magenta(a)
		case KindTarget:
			a = blue(a)
		case KindName:
			a = cyan(a)
		}
		values = append(values, a)
		lines = append(lines, values)
	}

	table.NewTable(writer).
		WithHeader([]string{"OFFSET", "OPCODE", "OPERANDS", "INFO"}).
		WithColumnAlignment([]table.Alignment{
			table.AlignRight,
			table.AlignLeft,
			table.AlignRight,
			table.AlignLeft,
		}).
		WithHeaderAlignment([]table.Alignment{
			table.AlignCenter,
			table.AlignCenter,
			table.AlignCenter,
			table.AlignCenter,
		}).
		WithRows(lines).
		Render()
}

func formatOperands(ops []int) string {
	var sb strings.Builder
	for i, o := range ops {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(strconv.Itoa(o))
	}
	return sb.String()
}
