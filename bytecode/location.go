package bytecode

import (
	"sort"

	"github.com/deepnoodle-ai/avm/op"
)

// Line maps a byte offset to the source line announced by a debugline
// instruction at that offset.
type Line struct {
	Offset int
	Line   int
}

func collectLines(instructions []Instruction) []Line {
	var lines []Line
	for _, inst := range instructions {
		if inst.Code == op.DebugLine {
			lines = append(lines, Line{Offset: inst.Offset, Line: inst.Operand(0)})
		}
	}
	return lines
}

// LineAt returns the source line in effect at offset, or 0 when the code
// carries no debug line before it.
func (c *Code) LineAt(offset int) int {
	i := sort.Search(len(c.lines), func(i int) bool {
		return c.lines[i].Offset > offset
	})
	if i == 0 {
		return 0
	}
	return c.lines[i-1].Line
}

// LineCount returns the number of debug line records.
func (c *Code) LineCount() int {
	return len(c.lines)
}
