package vm

import (
	"github.com/deepnoodle-ai/avm/abc"
	"github.com/deepnoodle-ai/avm/object"
)

// checkArgs throws ArgumentError when argc is outside the range the method
// accepts. Methods collecting extra arguments have no upper bound.
func checkArgs(m *abc.Method, argc int) error {
	if argc < m.MinArgs() {
		return object.Throwf("ArgumentError", "%s expects at least %d argument(s), got %d", m, m.MinArgs(), argc)
	}
	if max := m.MaxArgs(); max >= 0 && argc > max {
		return object.Throwf("ArgumentError", "%s expects at most %d argument(s), got %d", m, max, argc)
	}
	return nil
}
