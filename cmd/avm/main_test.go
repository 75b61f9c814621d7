package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/deepnoodle-ai/avm/errz"
	"github.com/deepnoodle-ai/avm/internal/asm"
	"github.com/deepnoodle-ai/avm/op"
	"github.com/fatih/color"
	"github.com/mitchellh/go-homedir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the CLI with args and returns what it wrote to stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	saved := color.NoColor
	t.Cleanup(func() { color.NoColor = saved })
	color.NoColor = true
	homedir.DisableCache = true
	t.Setenv("HOME", t.TempDir())

	var stdout, stderr bytes.Buffer
	root := newRootCmd()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetIn(bytes.NewReader(nil))
	root.SetArgs(append([]string{"--no-color"}, args...))
	err := root.Execute()
	return stdout.String(), err
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func prologue() *asm.Code {
	return asm.NewCode().Op(op.GetLocal0).Op(op.PushScope)
}

// sumUnit returns a unit whose entry script returns 1 + 2.
func sumUnit(t *testing.T) string {
	u := asm.NewUnit()
	u.Script(u.Function(asm.MethodDef{Name: "main"}, 1, prologue().
		Op(op.PushByte, 1).Op(op.PushByte, 2).Op(op.Add).
		Op(op.ReturnValue).Bytes()))
	return writeFile(t, "sum.abc", u.Bytes())
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "avm dev (commit unknown, built unknown)\n", out)

	out, err = execute(t, "version", "-o", "json")
	require.NoError(t, err)
	var info map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, "dev", info["version"])
}

func TestRun(t *testing.T) {
	out, err := execute(t, "run", sumUnit(t))
	require.NoError(t, err)
	assert.Equal(t, "3\n", out)
}

func TestRunObjectAsYAML(t *testing.T) {
	u := asm.NewUnit()
	u.Script(u.Function(asm.MethodDef{Name: "main"}, 1, prologue().
		Op(op.PushString, u.String("answer")).Op(op.PushByte, 42).
		Op(op.NewObject, 1).
		Op(op.ReturnValue).Bytes()))
	path := writeFile(t, "obj.abc", u.Bytes())

	out, err := execute(t, "run", "-o", "yaml", path)
	require.NoError(t, err)
	assert.Equal(t, "answer: 42\n", out)

	out, err = execute(t, "run", "-o", "raw", path)
	require.NoError(t, err)
	assert.Contains(t, out, `"answer"`)
	assert.Contains(t, out, "(int64) 42")
}

func TestRunBudget(t *testing.T) {
	u := asm.NewUnit()
	u.Script(u.Function(asm.MethodDef{Name: "main"}, 1, prologue().
		Label("top").
		Branch(op.Jump, "top").Bytes()))
	path := writeFile(t, "loop.abc", u.Bytes())

	_, err := execute(t, "run", "--budget", "20ms", path)
	require.Error(t, err)
	assert.ErrorIs(t, err, errz.ErrBudgetExceeded)
}

func TestRunUnknownOutput(t *testing.T) {
	_, err := execute(t, "run", "-o", "xml", sumUnit(t))
	assert.ErrorContains(t, err, "unknown output format: xml")
}

func TestRunWithoutInput(t *testing.T) {
	_, err := execute(t, "run")
	require.Error(t, err)
}

func TestExec(t *testing.T) {
	code := asm.NewActions().
		Push(asm.Str("hello")).Op(op.ActionTrace).
		Push(asm.Int(5)).Op(op.ActionReturn).
		Bytes()
	out, err := execute(t, "exec", writeFile(t, "actions.bin", code))
	require.NoError(t, err)
	assert.Equal(t, "hello\n5\n", out)
}

// eightWiths nests eight with blocks, which only players from version 6 on
// accept.
func eightWiths() []byte {
	body := asm.NewActions().Push(asm.Str("reached"), asm.Bool(true)).Op(op.ActionSetVariable)
	for i := 0; i < 7; i++ {
		body = asm.NewActions().
			Push(asm.Str("o")).Op(op.ActionGetVariable).
			With(body)
	}
	return asm.NewActions().
		Push(asm.Str("o"), asm.Int(0)).Op(op.ActionInitObject).Op(op.ActionSetVariable).
		Push(asm.Str("o")).Op(op.ActionGetVariable).
		With(body).
		Push(asm.Str("reached")).Op(op.ActionGetVariable).
		Op(op.ActionReturn).
		Bytes()
}

func TestExecSWFVersion(t *testing.T) {
	path := writeFile(t, "withs.bin", eightWiths())

	out, err := execute(t, "exec", "--swf-version", "6", path)
	require.NoError(t, err)
	assert.Equal(t, "true\n", out)

	_, err = execute(t, "exec", "--swf-version", "5", path)
	require.Error(t, err)
	var se *errz.StructuredError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, errz.ErrStack, se.Kind)
}

func TestDis(t *testing.T) {
	out, err := execute(t, "dis", sumUnit(t))
	require.NoError(t, err)
	assert.Contains(t, out, "main (locals 1")
	assert.Contains(t, out, "pushbyte")
	assert.Contains(t, out, "returnvalue")

	_, err = execute(t, "dis", "--method", "missing", sumUnit(t))
	assert.ErrorContains(t, err, `method "missing" not found`)
}

func TestDisActions(t *testing.T) {
	code := asm.NewActions().Push(asm.Str("hi")).Op(op.ActionTrace).Op(op.ActionEnd).Bytes()
	out, err := execute(t, "dis", "--actions", writeFile(t, "actions.bin", code))
	require.NoError(t, err)
	assert.Contains(t, out, `"hi"`)
	assert.Contains(t, out, op.ActionTrace.String())
}

func TestInspect(t *testing.T) {
	path := sumUnit(t)
	out, err := execute(t, "inspect", path)
	require.NoError(t, err)
	assert.Contains(t, out, "methods: 1, bodies: 1")
	assert.Contains(t, out, "code: 6 instructions in 8 bytes, 0 branches (0 backward), 0 calls, 0 handlers")
	assert.Contains(t, out, "| SCRIPT | INIT |")

	out, err = execute(t, "inspect", "-o", "json", path)
	require.NoError(t, err)
	var s blockSummary
	require.NoError(t, json.Unmarshal([]byte(out), &s))
	assert.Equal(t, 1, s.Methods)
	assert.Equal(t, 6, s.Code.InstructionCount)
	require.Len(t, s.Scripts, 1)
	assert.Equal(t, "main", s.Scripts[0].Init)
	assert.Empty(t, s.Classes)
}

func TestInspectTraits(t *testing.T) {
	u := asm.NewUnit()
	name := u.Public("helper")
	helper := u.Function(asm.MethodDef{Name: "helper"}, 1, asm.NewCode().Op(op.ReturnVoid).Bytes())
	u.Script(u.Function(asm.MethodDef{Name: "main"}, 1, prologue().Op(op.ReturnVoid).Bytes()),
		asm.MethodTrait(name, helper))
	out, err := execute(t, "inspect", "-o", "yaml", writeFile(t, "traits.abc", u.Bytes()))
	require.NoError(t, err)
	assert.Contains(t, out, "name: helper")
	assert.Contains(t, out, "kind: method")
}

func TestValidate(t *testing.T) {
	good := sumUnit(t)
	u := asm.NewUnit()
	u.Script(u.Function(asm.MethodDef{Name: "main"}, 1, asm.NewCode().
		Op(op.Jump, 100).Op(op.ReturnVoid).Bytes()))
	bad := writeFile(t, "bad.abc", u.Bytes())
	truncated := writeFile(t, "truncated.abc", []byte{0x10})

	out, err := execute(t, "validate", good, bad, truncated)
	require.Error(t, err)
	assert.Contains(t, out, "ok "+good)
	assert.Contains(t, err.Error(), "2 errors occurred")
	assert.Contains(t, err.Error(), bad)
	assert.Contains(t, err.Error(), truncated)

	out, err = execute(t, "validate", good)
	require.NoError(t, err)
	assert.Equal(t, "ok "+good+"\n", out)
}

func TestConfigFile(t *testing.T) {
	cfg := writeFile(t, "avm.yaml", []byte("output: text\n"))
	out, err := execute(t, "--config", cfg, "run", sumUnit(t))
	require.NoError(t, err)
	assert.Equal(t, "3\n", out)

	_, err = execute(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"), "version")
	assert.ErrorContains(t, err, "reading config")
}

func TestEnvironment(t *testing.T) {
	path := sumUnit(t)
	t.Setenv("AVM_OUTPUT", "yaml")
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "version: dev")

	t.Setenv("AVM_LOG_LEVEL", "nonsense")
	_, err = execute(t, "run", path)
	assert.ErrorContains(t, err, "invalid log level")
}
