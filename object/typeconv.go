package object

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

// Primitiver is implemented by objects with a primitive default value.
type Primitiver interface {
	ToPrimitive() Value
}

// ToPrimitive converts objects to their default primitive value and returns
// primitives unchanged.
func ToPrimitive(v Value) Value {
	switch v := v.(type) {
	case Primitiver:
		return v.ToPrimitive()
	case Callable:
		return String("[type Function]")
	case Object:
		return String("[object Object]")
	case *Namespace:
		return String(v.NS.URI)
	}
	return v
}

// ToNumber converts v to a double.
func ToNumber(v Value) float64 {
	switch v := v.(type) {
	case nil:
		return math.NaN()
	case Number:
		return float64(v)
	case Int:
		return float64(v)
	case Uint:
		return float64(v)
	case Bool:
		if v {
			return 1
		}
		return 0
	case String:
		return StringToNumber(string(v))
	}
	switch v {
	case Undefined:
		return math.NaN()
	case Null:
		return 0
	}
	p := ToPrimitive(v)
	if _, isObj := p.(Object); isObj {
		return math.NaN()
	}
	return ToNumber(p)
}

// StringToNumber parses s the way numeric coercion does: surrounding
// whitespace is ignored, the empty string is zero, hex literals are
// accepted and anything else unparsable is NaN.
func StringToNumber(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	if len(s) > 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		n, err := strconv.ParseUint(s[2:], 16, 64)
		if err != nil {
			return math.NaN()
		}
		return float64(n)
	}
	switch s {
	case "Infinity", "+Infinity":
		return math.Inf(1)
	case "-Infinity":
		return math.Inf(-1)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return f
		}
		return math.NaN()
	}
	// ParseFloat accepts "inf" and "nan" spellings that scripts do not.
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return math.NaN()
	}
	return f
}

// ToString converts v to a string.
func ToString(v Value) string {
	switch v := v.(type) {
	case nil:
		return "undefined"
	case String:
		return string(v)
	case Number:
		return FormatNumber(float64(v))
	case Int:
		return strconv.FormatInt(int64(v), 10)
	case Uint:
		return strconv.FormatUint(uint64(v), 10)
	case Bool:
		if v {
			return "true"
		}
		return "false"
	}
	switch v {
	case Undefined:
		return "undefined"
	case Null:
		return "null"
	}
	p := ToPrimitive(v)
	if s, ok := p.(String); ok {
		return string(s)
	}
	if _, isObj := p.(Object); isObj {
		return "[object Object]"
	}
	return ToString(p)
}

// FormatNumber renders a double the way scripts print numbers: integral
// values without a fraction, exponent notation outside [1e-6, 1e21).
func FormatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		return "0"
	}
	abs := math.Abs(f)
	if abs >= 1e21 || abs < 1e-6 {
		s := strconv.FormatFloat(f, 'e', -1, 64)
		// Go writes "1e+21" and "1e-07"; scripts write "1e+21" and "1e-7".
		if i := strings.IndexAny(s, "e"); i >= 0 {
			mant, exp := s[:i], s[i+1:]
			sign := exp[0]
			exp = strings.TrimLeft(exp[1:], "0")
			s = mant + "e" + string(sign) + exp
		}
		return s
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// ToBoolean converts v to a boolean.
func ToBoolean(v Value) bool {
	switch v := v.(type) {
	case nil:
		return false
	case Bool:
		return bool(v)
	case Number:
		f := float64(v)
		return f != 0 && !math.IsNaN(f)
	case Int:
		return v != 0
	case Uint:
		return v != 0
	case String:
		return v != ""
	}
	switch v {
	case Undefined, Null:
		return false
	}
	return true
}

// ToInt32 converts v with modular 32-bit wrapping.
func ToInt32(v Value) int32 {
	switch v := v.(type) {
	case Int:
		return int32(v)
	case Uint:
		return int32(v)
	}
	return int32(ToUint32(v))
}

// ToUint32 converts v with modular 32-bit wrapping.
func ToUint32(v Value) uint32 {
	switch v := v.(type) {
	case Int:
		return uint32(v)
	case Uint:
		return uint32(v)
	}
	f := ToNumber(v)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	f = math.Trunc(f)
	f = math.Mod(f, 4294967296)
	if f < 0 {
		f += 4294967296
	}
	return uint32(f)
}

// ToInteger truncates v toward zero, mapping NaN to zero.
func ToInteger(v Value) float64 {
	f := ToNumber(v)
	if math.IsNaN(f) {
		return 0
	}
	return math.Trunc(f)
}

// NumberValue returns the most compact numeric value holding f.
func NumberValue(f float64) Value {
	if f == math.Trunc(f) && f >= math.MinInt32 && f <= math.MaxInt32 && !(f == 0 && math.Signbit(f)) {
		return Int(int32(f))
	}
	return Number(f)
}

// TypeOf returns the typeof operator's result for v.
func TypeOf(v Value) string {
	switch v.(type) {
	case nil:
		return "undefined"
	case Bool:
		return "boolean"
	case Number, Int, Uint:
		return "number"
	case String:
		return "string"
	case Callable:
		return "function"
	}
	switch v {
	case Undefined:
		return "undefined"
	case Null:
		return "object"
	}
	return "object"
}
