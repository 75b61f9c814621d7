package bytecode

// Stats contains statistics about decoded code.
// This is useful for auditing units before execution.
type Stats struct {
	// InstructionCount is the total number of instructions.
	InstructionCount int

	// ByteLength is the size of the encoded body.
	ByteLength int

	// BranchCount is the number of branch and switch instructions.
	BranchCount int

	// BackwardBranchCount is the number of branches with at least one target
	// at or before their own offset. Each is an execution budget check point.
	BackwardBranchCount int

	// CallCount is the number of call and construct instructions.
	CallCount int

	// HandlerCount is the number of exception handlers.
	HandlerCount int

	// MaxStack and LocalCount are the declared sizes.
	MaxStack   int
	LocalCount int
}

// Add accumulates o into s.
func (s *Stats) Add(o Stats) {
	s.InstructionCount += o.InstructionCount
	s.ByteLength += o.ByteLength
	s.BranchCount += o.BranchCount
	s.BackwardBranchCount += o.BackwardBranchCount
	s.CallCount += o.CallCount
	s.HandlerCount += o.HandlerCount
	if o.MaxStack > s.MaxStack {
		s.MaxStack = o.MaxStack
	}
	if o.LocalCount > s.LocalCount {
		s.LocalCount = o.LocalCount
	}
}
