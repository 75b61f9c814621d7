package legacy

import (
	"fmt"

	"github.com/deepnoodle-ai/avm/cursor"
	"github.com/deepnoodle-ai/avm/errz"
	"github.com/deepnoodle-ai/avm/object"
	"github.com/deepnoodle-ai/avm/op"
)

// TryPhase is the phase of a TryBlock.
type TryPhase int

const (
	PhaseTry TryPhase = iota
	PhaseCatch
	PhaseFinally
	PhaseEnd
)

func (p TryPhase) String() string {
	switch p {
	case PhaseTry:
		return "try"
	case PhaseCatch:
		return "catch"
	case PhaseFinally:
		return "finally"
	case PhaseEnd:
		return "end"
	default:
		return fmt.Sprintf("TryPhase(%d)", int(p))
	}
}

// TryBlock tracks one try/catch/finally construct while it executes. The
// execution stops at each phase boundary and lets the block decide where to
// continue.
type TryBlock struct {
	Phase         TryPhase
	CatchOffset   int
	FinallyOffset int
	AfterOffset   int
	HasCatch      bool
	CatchName     string
	CatchRegister uint8
	InRegister    bool

	// savedStop is the stop offset of the execution when the block was
	// entered.
	savedStop int
	// uncaught is the exception the block rethrows once finally has run.
	uncaught *object.Exception
}

// decodeTry parses the payload of a Try action. Offsets are relative to
// the end of the record.
func decodeTry(payload []byte, end int) (*TryBlock, error) {
	c := cursor.New(payload)
	flags, err := c.ReadU8()
	if err != nil {
		return nil, errz.Malformed(err, "try: missing flags")
	}
	var size [3]uint16
	for i := range size {
		if size[i], err = c.ReadU16(); err != nil {
			return nil, errz.Malformed(err, "try: missing block sizes")
		}
	}
	t := &TryBlock{
		HasCatch:   flags&op.TryHasCatch != 0,
		InRegister: flags&op.TryCatchInRegister != 0,
	}
	if !t.HasCatch {
		size[1] = 0
	}
	if flags&op.TryHasFinally == 0 {
		size[2] = 0
	}
	if t.InRegister {
		if t.CatchRegister, err = c.ReadU8(); err != nil {
			return nil, errz.Malformed(err, "try: missing catch register")
		}
	} else if t.CatchName, err = c.ReadCString(); err != nil {
		return nil, errz.Malformed(err, "try: missing catch name")
	}
	t.CatchOffset = end + int(size[0])
	t.FinallyOffset = t.CatchOffset + int(size[1])
	t.AfterOffset = t.FinallyOffset + int(size[2])
	return t, nil
}

// advance moves t to its next phase when the execution reaches its stop
// offset. It reports false when the execution should finish because a
// return is complete.
func (e *execution) advance(t *TryBlock) bool {
	switch t.Phase {
	case PhaseTry:
		if e.pending != nil {
			e.pc = t.CatchOffset
			t.Phase = PhaseCatch
			// A catch register is only meaningful when a catch block
			// exists. Without one the exception stays pending for finally.
			if t.HasCatch && t.InRegister {
				e.setRegister(t.CatchRegister, e.pending.Value)
				e.pending = nil
			}
			break
		}
		// Reaching the catch offset without an exception leaves pc alone:
		// the try body either jumped past the catch block or falls into
		// it. A return skips straight to finally.
		if e.returning {
			e.pc = t.FinallyOffset
		}
		e.stop = t.FinallyOffset
		t.Phase = PhaseFinally

	case PhaseCatch:
		if e.pending != nil {
			if t.HasCatch {
				e.setLocal(t.CatchName, e.pending.Value)
				t.uncaught = nil
			} else {
				t.uncaught = e.pending
			}
			e.pending = nil
		}
		e.stop = t.FinallyOffset
		t.Phase = PhaseFinally

	case PhaseFinally:
		// An exception here was thrown by the catch block and replaces
		// whatever the block remembered. It also cancels a pending return.
		if e.pending != nil {
			t.uncaught = e.pending
			e.pending = nil
			e.returning = false
		}
		e.stop = t.AfterOffset
		t.Phase = PhaseEnd

	case PhaseEnd:
		e.tries = e.tries[:len(e.tries)-1]
		if e.pending != nil {
			e.stop = t.AfterOffset
			break
		}
		if t.uncaught != nil {
			e.pending = t.uncaught
			e.stop = t.AfterOffset
			break
		}
		e.stop = t.savedStop
		if e.returning {
			// Let the enclosing block, if any, run its own finally.
			e.pc = e.stop
			if len(e.tries) == 0 {
				return false
			}
		}
	}
	return true
}
