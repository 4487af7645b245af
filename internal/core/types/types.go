// Package types defines IntelliSql's closed logical type set and the
// coercion rules the dialect layer applies during validation.
package types

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Kind is one of the fixed logical types every catalog Column and every
// LogicalTree output row type is drawn from. The set is closed: a connector
// that discovers a source type outside this set fails with TypeNotSupported
// rather than silently coercing (spec.md §4.3).
type Kind int

const (
	Unknown Kind = iota
	String
	Boolean
	Int32
	Int64
	Float64
	Decimal
	Date
	Timestamp
	Binary
	Array
	JSON
)

func (k Kind) String() string {
	switch k {
	case String:
		return "string"
	case Boolean:
		return "boolean"
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	case Float64:
		return "float64"
	case Decimal:
		return "decimal"
	case Date:
		return "date"
	case Timestamp:
		return "timestamp"
	case Binary:
		return "binary"
	case Array:
		return "array"
	case JSON:
		return "json"
	default:
		return "unknown"
	}
}

// ParseKind maps a type name onto a Kind, returning false if the name isn't
// one of the closed set. The match is exact against the lower-case spelling
// Kind.String returns, so callers lower-case the name first.
func ParseKind(name string) (Kind, bool) {
	for k := String; k <= JSON; k++ {
		if k.String() == name {
			return k, true
		}
	}
	return Unknown, false
}

// numericRank orders the integer/float widening lattice used by implicit
// coercion: a smaller-ranked type widens to a larger-ranked one for free.
var numericRank = map[Kind]int{
	Int32:   1,
	Int64:   2,
	Float64: 3,
	Decimal: 4,
}

// IsNumeric reports whether k is one of the numeric kinds subject to
// widening coercion.
func IsNumeric(k Kind) bool {
	_, ok := numericRank[k]
	return ok
}

// IsTemporal reports whether k is Date or Timestamp.
func IsTemporal(k Kind) bool {
	return k == Date || k == Timestamp
}

// Widen returns the common type two kinds coerce to for a binary
// comparison or arithmetic operation, per spec.md §4.1's coercion rules:
// any two numeric kinds widen to the higher-ranked one, date/timestamp
// pairs widen to timestamp, and a string paired with a numeric kind takes
// the numeric kind. It reports ok=false only when the two kinds have no
// common type (e.g. boolean with string); it never narrows, so no pair is
// rejected for precision loss.
func Widen(a, b Kind) (Kind, bool) {
	if a == b {
		return a, true
	}
	if IsTemporal(a) && IsTemporal(b) {
		return Timestamp, true
	}
	ra, aok := numericRank[a]
	rb, bok := numericRank[b]
	if aok && bok {
		if ra >= rb {
			return a, true
		}
		return b, true
	}
	// string<->numeric: the string side casts to the numeric type.
	if a == String && bok {
		return b, true
	}
	if b == String && aok {
		return a, true
	}
	return Unknown, false
}

// LossyNarrowing reports whether converting a value of kind `from` into kind
// `to` can silently drop information (e.g. decimal -> int32), which spec.md
// §4.1 requires to fail validation absent an explicit CAST.
func LossyNarrowing(from, to Kind) bool {
	rf, fok := numericRank[from]
	rt, tok := numericRank[to]
	if !fok || !tok {
		return false
	}
	return rf > rt
}

// Value is a single typed, possibly-null value matching a Column's Kind. It
// is the unit the wire protocol's {type, value, isNull} triple (spec.md §6)
// and the executor's Row elements are both built from.
type Value struct {
	Kind   Kind
	Native interface{}
	Null   bool
}

// NullValue constructs a null Value of the given kind.
func NullValue(k Kind) Value { return Value{Kind: k, Null: true} }

// NewValue constructs a non-null Value holding v as given; it performs no
// conversion of v to match k.
func NewValue(k Kind, v interface{}) Value {
	return Value{Kind: k, Native: v}
}

func (v Value) String() string {
	if v.Null {
		return "NULL"
	}
	switch n := v.Native.(type) {
	case decimal.Decimal:
		return n.String()
	default:
		return fmt.Sprintf("%v", n)
	}
}
