package abc

import (
	"strings"

	"github.com/rs/zerolog"
)

// Option configures Parse.
type Option func(*parser)

// WithLogger sets the logger used to report recoverable problems such as
// placeholder superclasses.
func WithLogger(logger zerolog.Logger) Option {
	return func(p *parser) {
		p.logger = logger
	}
}

// WithKnownClasses declares classes the host provides, given as dotted
// qualified names such as "flash.display.Sprite". Superclasses matching one
// of them are linked to a placeholder without a warning.
func WithKnownClasses(qualified ...string) Option {
	return func(p *parser) {
		for _, q := range qualified {
			uri, name := splitQualified(q)
			p.known[knownKey{uri, name}] = true
		}
	}
}

// builtinClasses are always known to the linker.
var builtinClasses = []string{
	"Object", "Class", "Function", "Array", "String", "Number", "int", "uint",
	"Boolean", "Namespace", "Error", "TypeError", "ReferenceError",
	"ArgumentError", "RangeError", "VerifyError",
}

type knownKey struct {
	uri  string
	name string
}

func splitQualified(q string) (string, string) {
	if i := strings.LastIndexAny(q, ".:"); i >= 0 {
		return strings.TrimRight(q[:i], ":"), q[i+1:]
	}
	return "", q
}
