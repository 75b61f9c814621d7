package dis

import (
	"bytes"
	"strings"
	"testing"

	"github.com/deepnoodle-ai/avm/abc"
	"github.com/deepnoodle-ai/avm/internal/asm"
	"github.com/deepnoodle-ai/avm/op"
	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noColor(t *testing.T) {
	saved := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = saved })
}

func TestMethodBodyDisassembly(t *testing.T) {
	noColor(t)
	u := asm.NewUnit()
	trace := u.Public("trace")
	code := asm.NewCode().
		Op(op.GetLocal0).Op(op.PushScope).
		Op(op.FindPropStrict, trace).
		Op(op.PushString, u.String("hi")).
		Op(op.CallPropVoid, trace, 1).
		Branch(op.Jump, "end").
		Label("end").
		Op(op.ReturnVoid)
	u.Script(u.Function(asm.MethodDef{Name: "main"}, 1, code.Bytes()))
	block, err := abc.Parse(u.Bytes())
	require.NoError(t, err)

	instructions, err := DisassembleBody(block, block.Bodies[0])
	require.NoError(t, err)

	var buf bytes.Buffer
	Print(instructions, &buf)
	expected := strings.TrimSpace(`
+--------+----------------+----------+-------+
| OFFSET |     OPCODE     | OPERANDS | INFO  |
+--------+----------------+----------+-------+
|      0 | getlocal0      |          |       |
|      1 | pushscope      |          |       |
|      2 | findpropstrict |        1 | trace |
|      4 | pushstring     |        3 | "hi"  |
|      6 | callpropvoid   |     1, 1 | trace |
|      9 | jump           |        4 | -> 13 |
|     13 | returnvoid     |          |       |
+--------+----------------+----------+-------+
`)
	assert.Equal(t, expected+"\n", buf.String())
}

func TestDisassembleWithoutBlock(t *testing.T) {
	code := asm.NewCode().Op(op.PushByte, 7).Op(op.PushString, 3).Op(op.ReturnValue).Bytes()
	instructions, err := Disassemble(nil, code)
	require.NoError(t, err)
	require.Len(t, instructions, 3)
	assert.Equal(t, "pushbyte", instructions[0].Name)
	assert.Equal(t, []int{7}, instructions[0].Operands)
	assert.Equal(t, "", instructions[1].Annotation)
}

func TestDisassemblePoolFault(t *testing.T) {
	u := asm.NewUnit()
	u.Script(u.Function(asm.MethodDef{Name: "main"}, 1,
		asm.NewCode().Op(op.PushString, 99).Op(op.ReturnValue).Bytes()))
	block, err := abc.Parse(u.Bytes())
	require.NoError(t, err)
	_, err = DisassembleBody(block, block.Bodies[0])
	require.Error(t, err)
	assert.Contains(t, err.Error(), "offset 0")
}

func TestUnknownOpcode(t *testing.T) {
	_, err := Disassemble(nil, []byte{0xff})
	require.Error(t, err)
}

func TestActionDisassembly(t *testing.T) {
	a := asm.NewActions().
		ConstantPool("x").
		Push(asm.Const(0), asm.Int(1), asm.Double(2.5), asm.Reg(1), asm.Null()).
		DefineFunction("f", []string{"a"}, asm.NewActions().Op(op.ActionReturn)).
		Label("top").
		If("top").
		Op(op.ActionEnd)
	instructions, err := DisassembleActions(a.Bytes())
	require.NoError(t, err)

	names := make([]string, len(instructions))
	for i, instr := range instructions {
		names[i] = instr.Name
	}
	assert.Equal(t, []string{
		op.ActionConstantPool.String(),
		op.ActionPush.String(),
		op.ActionDefineFunction.String(),
		op.ActionReturn.String(),
		op.ActionIf.String(),
		op.ActionEnd.String(),
	}, names)
	assert.Equal(t, `0:"x"`, instructions[0].Annotation)
	assert.Equal(t, "c:0 1 2.5 r:1 null", instructions[1].Annotation)
	assert.True(t, strings.HasPrefix(instructions[2].Annotation, "f(a) body "))
	top := instructions[4].Offset
	assert.Equal(t, []int{top}, instructions[4].Targets)
}

func TestTryAnnotation(t *testing.T) {
	a := asm.NewActions().
		Try(asm.Try{HasCatch: true, HasFinally: true, CatchName: "e", CatchLabel: "c", FinallyLabel: "f", EndLabel: "end"}).
		Op(op.ActionPop).
		Label("c").
		Op(op.ActionPop).
		Label("f").
		Op(op.ActionPop).
		Label("end")
	instructions, err := DisassembleActions(a.Bytes())
	require.NoError(t, err)
	require.Len(t, instructions, 4)
	end := instructions[1].Offset
	assert.Equal(t, "try 12..13 catch 13..14 finally 14..15", instructions[0].Annotation)
	assert.Equal(t, 12, end)
}

func TestPrintTruncatesLongAnnotations(t *testing.T) {
	noColor(t)
	long := strings.Repeat("x", 100)
	var buf bytes.Buffer
	Print([]Instruction{{Offset: 0, Name: "push", Annotation: long, Kind: KindString}}, &buf)
	assert.Contains(t, buf.String(), strings.Repeat("x", 77)+"...")
	assert.NotContains(t, buf.String(), strings.Repeat("x", 78))
}
