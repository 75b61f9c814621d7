package object

import (
	"math"
	"slices"
	"unicode/utf16"
	"unicode/utf8"
)

// Add implements the generic addition operator: string concatenation if
// either primitive operand is a string, numeric addition otherwise.
func Add(a, b Value) Value {
	pa, pb := ToPrimitive(a), ToPrimitive(b)
	_, sa := pa.(String)
	_, sb := pb.(String)
	if sa || sb {
		return String(ToString(pa) + ToString(pb))
	}
	return NumberValue(ToNumber(pa) + ToNumber(pb))
}

// Subtract returns a - b.
func Subtract(a, b Value) Value {
	return NumberValue(ToNumber(a) - ToNumber(b))
}

// Multiply returns a * b.
func Multiply(a, b Value) Value {
	return NumberValue(ToNumber(a) * ToNumber(b))
}

// Divide returns a / b with IEEE754 semantics for zero divisors.
func Divide(a, b Value) Value {
	return NumberValue(ToNumber(a) / ToNumber(b))
}

// Modulo returns the floating point remainder of a / b.
func Modulo(a, b Value) Value {
	return NumberValue(math.Mod(ToNumber(a), ToNumber(b)))
}

// Negate returns -v.
func Negate(v Value) Value {
	return NumberValue(-ToNumber(v))
}

// LessThan implements the abstract relational comparison a < b. Two strings
// compare by UTF-16 code units; anything else is compared numerically. When either
// operand is NaN the ordering is undefined and undefinedResult is returned.
// Infinite operands are decided by explicit sign checks.
func LessThan(a, b Value, undefinedResult bool) bool {
	pa, pb := ToPrimitive(a), ToPrimitive(b)
	if sa, ok := pa.(String); ok {
		if sb, ok := pb.(String); ok {
			return lessUTF16(string(sa), string(sb))
		}
	}
	na, nb := ToNumber(pa), ToNumber(pb)
	if math.IsNaN(na) || math.IsNaN(nb) {
		return undefinedResult
	}
	switch {
	case math.IsInf(na, 1):
		return false
	case math.IsInf(nb, 1):
		return true
	case math.IsInf(nb, -1):
		return false
	case math.IsInf(na, -1):
		return true
	}
	return na < nb
}

// Equals implements abstract (loose) equality.
func Equals(a, b Value) bool {
	if a == nil {
		a = Undefined
	}
	if b == nil {
		b = Undefined
	}
	if IsNumeric(a) && IsNumeric(b) {
		return ToNumber(a) == ToNumber(b)
	}
	if IsNullish(a) || IsNullish(b) {
		return IsNullish(a) && IsNullish(b)
	}
	switch av := a.(type) {
	case String:
		switch bv := b.(type) {
		case String:
			return av == bv
		case Object:
			return Equals(a, ToPrimitive(bv))
		}
		return ToNumber(a) == ToNumber(b)
	case Bool:
		return Equals(NumberValue(ToNumber(av)), b)
	case *Namespace:
		if bn, ok := b.(*Namespace); ok {
			return av.NS.URI == bn.NS.URI
		}
		return Equals(ToPrimitive(av), b)
	case Object:
		if _, ok := b.(Object); ok {
			return a == b
		}
		return Equals(ToPrimitive(av), b)
	}
	// a is numeric here and b is not.
	switch bv := b.(type) {
	case Bool:
		return ToNumber(a) == ToNumber(bv)
	case String:
		return ToNumber(a) == ToNumber(bv)
	case Object, *Namespace:
		return Equals(a, ToPrimitive(bv))
	}
	return false
}

// StrictEquals implements identity equality without coercion, except that
// all numeric representations compare by value.
func StrictEquals(a, b Value) bool {
	if a == nil {
		a = Undefined
	}
	if b == nil {
		b = Undefined
	}
	if IsNumeric(a) && IsNumeric(b) {
		return ToNumber(a) == ToNumber(b)
	}
	if an, ok := a.(*Namespace); ok {
		bn, ok := b.(*Namespace)
		return ok && an.NS.URI == bn.NS.URI
	}
	return a == b
}

// BitAnd returns a & b on 32-bit integers.
func BitAnd(a, b Value) Value { return Int(ToInt32(a) & ToInt32(b)) }

// BitOr returns a | b on 32-bit integers.
func BitOr(a, b Value) Value { return Int(ToInt32(a) | ToInt32(b)) }

// BitXor returns a ^ b on 32-bit integers.
func BitXor(a, b Value) Value { return Int(ToInt32(a) ^ ToInt32(b)) }

// BitNot returns ^v on a 32-bit integer.
func BitNot(v Value) Value { return Int(^ToInt32(v)) }

// LeftShift returns a << (b & 31).
func LeftShift(a, b Value) Value { return Int(ToInt32(a) << (ToUint32(b) & 31)) }

// RightShift returns the arithmetic a >> (b & 31).
func RightShift(a, b Value) Value { return Int(ToInt32(a) >> (ToUint32(b) & 31)) }

// UnsignedRightShift returns the logical a >>> (b & 31).
func UnsignedRightShift(a, b Value) Value {
	return NumberValue(float64(ToUint32(a) >> (ToUint32(b) & 31)))
}

// lessUTF16 orders strings by UTF-16 code units. Byte order agrees except
// when supplementary characters meet U+E000 through U+FFFF.
func lessUTF16(a, b string) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] >= utf8.RuneSelf || b[i] >= utf8.RuneSelf {
			return slices.Compare(utf16.Encode([]rune(a[i:])), utf16.Encode([]rune(b[i:]))) < 0
		}
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}
