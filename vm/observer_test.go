package vm

import (
	"context"
	"testing"

	"github.com/deepnoodle-ai/avm/errz"
	"github.com/deepnoodle-ai/avm/internal/asm"
	"github.com/deepnoodle-ai/avm/object"
	"github.com/deepnoodle-ai/avm/op"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestObserver is a test observer that records events.
type TestObserver struct {
	NoOpObserver
	Steps   []StepEvent
	Calls   []CallEvent
	Returns []ReturnEvent
}

func (o *TestObserver) OnStep(event StepEvent) bool {
	o.Steps = append(o.Steps, event)
	return true
}

func (o *TestObserver) OnCall(event CallEvent) bool {
	o.Calls = append(o.Calls, event)
	return true
}

func (o *TestObserver) OnReturn(event ReturnEvent) bool {
	o.Returns = append(o.Returns, event)
	return true
}

func addUnit() *asm.Unit {
	u := asm.NewUnit()
	add := u.Public("add")
	f := u.Function(asm.MethodDef{Name: "add", Params: []int{0, 0}}, 3, asm.NewCode().
		Op(op.GetLocal1).Op(op.GetLocal2).Op(op.Add).Op(op.ReturnValue).Bytes())
	main := u.Function(asm.MethodDef{Name: "main"}, 1, prologue().
		Op(op.FindPropStrict, add).
		Op(op.PushByte, 1).
		Op(op.PushByte, 2).
		Op(op.CallProperty, add, 2).
		Op(op.ReturnValue).Bytes())
	u.Script(main, asm.MethodTrait(add, f))
	return u
}

func TestObserverOnStep(t *testing.T) {
	observer := &TestObserver{}
	_, err := run(t, addUnit(), WithObserver(observer))
	require.NoError(t, err)

	require.NotEmpty(t, observer.Steps)
	for _, step := range observer.Steps {
		assert.NotEmpty(t, step.OpcodeName)
	}
	assert.Equal(t, "getlocal0", observer.Steps[0].OpcodeName)
	assert.Equal(t, "main", observer.Steps[0].Location.Function)
}

func TestObserverOnCallAndReturn(t *testing.T) {
	observer := &TestObserver{}
	result, err := run(t, addUnit(), WithObserver(observer))
	require.NoError(t, err)
	assert.Equal(t, 3.0, object.ToNumber(result))

	var found bool
	for _, call := range observer.Calls {
		if call.FunctionName == "add" {
			found = true
			assert.Equal(t, 2, call.ArgCount)
			assert.Equal(t, "main", call.Location.Function)
		}
	}
	assert.True(t, found, "expected a call event for add")
	assert.Len(t, observer.Returns, len(observer.Calls))
}

type haltingObserver struct {
	NoOpObserver
	haltAfter int
	steps     int
}

func (o *haltingObserver) OnStep(event StepEvent) bool {
	o.steps++
	return o.steps < o.haltAfter
}

func TestObserverHaltOnStep(t *testing.T) {
	observer := &haltingObserver{haltAfter: 3}
	_, err := run(t, addUnit(), WithObserver(observer))
	se := structured(t, err)
	assert.Equal(t, errz.ErrRuntime, se.Kind)
	assert.Equal(t, 3, observer.steps)
}

type sampledObserver struct {
	NoOpObserver
	steps int
}

func (o *sampledObserver) Config() ObserverConfig {
	cfg := NewObserverConfig(StepSampled)
	cfg.SampleInterval = 2
	return cfg
}

func (o *sampledObserver) OnStep(StepEvent) bool {
	o.steps++
	return true
}

func TestObserverSampledSteps(t *testing.T) {
	all := &TestObserver{}
	_, err := run(t, addUnit(), WithObserver(all))
	require.NoError(t, err)

	sampled := &sampledObserver{}
	_, err = newVM(t, addUnit(), WithObserver(sampled)).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, len(all.Steps)/2, sampled.steps)
}
