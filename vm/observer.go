package vm

import (
	"github.com/deepnoodle-ai/avm/errz"
	"github.com/deepnoodle-ai/avm/op"
)

// StepMode controls when OnStep callbacks are triggered.
type StepMode uint8

const (
	// StepAll calls OnStep for every instruction.
	StepAll StepMode = iota

	// StepNone never calls OnStep.
	StepNone

	// StepSampled calls OnStep every N instructions.
	StepSampled

	// StepOnLine calls OnStep when the debug line changes.
	StepOnLine
)

// ObserverConfig specifies what events an observer wants to receive.
// Use NewObserverConfig() to create configs with safe defaults.
type ObserverConfig struct {
	// StepMode controls OnStep callback frequency.
	StepMode StepMode

	// SampleInterval is the number of instructions between OnStep calls
	// when StepMode is StepSampled. Values <= 0 are treated as 1.
	SampleInterval int

	// ObserveCalls enables OnCall callbacks.
	ObserveCalls bool

	// ObserveReturns enables OnReturn callbacks.
	ObserveReturns bool
}

// NewObserverConfig creates a config with ObserveCalls and ObserveReturns
// enabled.
func NewObserverConfig(mode StepMode) ObserverConfig {
	return ObserverConfig{
		StepMode:       mode,
		SampleInterval: 1000,
		ObserveCalls:   true,
		ObserveReturns: true,
	}
}

// NormalizeConfig clamps config values.
func NormalizeConfig(cfg ObserverConfig) ObserverConfig {
	if cfg.StepMode == StepSampled && cfg.SampleInterval <= 0 {
		cfg.SampleInterval = 1
	}
	return cfg
}

// Observer receives VM execution events. Implementations can embed
// NoOpObserver and override only what they need.
type Observer interface {
	// Config is called once when a run starts.
	Config() ObserverConfig

	// OnStep is called before an instruction executes, according to the
	// StepMode. Returns false to halt execution.
	OnStep(event StepEvent) bool

	// OnCall is called when a script function is entered.
	OnCall(event CallEvent) bool

	// OnReturn is called when a script function returns normally.
	OnReturn(event ReturnEvent) bool
}

// StepEvent describes one instruction about to execute.
type StepEvent struct {
	// Offset is the byte offset of the instruction in its method body.
	Offset int

	Opcode     op.Code
	OpcodeName string
	Location   errz.SourceLocation

	// StackDepth is the number of operands visible to the current call.
	StackDepth int

	// FrameDepth is the number of saved call states.
	FrameDepth int
}

// CallEvent describes entry into a script function.
type CallEvent struct {
	FunctionName string
	ArgCount     int
	// Location is the call site, or zero for calls made by the host.
	Location   errz.SourceLocation
	FrameDepth int
}

// ReturnEvent describes a normal return from a script function.
type ReturnEvent struct {
	FunctionName string
	Location     errz.SourceLocation
	FrameDepth   int
}

// NoOpObserver is an Observer that does nothing.
type NoOpObserver struct{}

func (NoOpObserver) Config() ObserverConfig {
	return NewObserverConfig(StepAll)
}

func (NoOpObserver) OnStep(StepEvent) bool     { return true }
func (NoOpObserver) OnCall(CallEvent) bool     { return true }
func (NoOpObserver) OnReturn(ReturnEvent) bool { return true }

var _ Observer = NoOpObserver{}
