package ir

import (
	"cmp"
	"fmt"
	"strconv"
	"strings"
)

// Kind identifies the variant of a Value.
// The numeric order of kinds is the first key of CompareValues.
type Kind int

const (
	KindNone Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindTuple
)

// String returns the lowercase kind name.
func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindTuple:
		return "tuple"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Value is a sealed interface representing the values a stream can carry.
// Only None, Bool, Int, Float, String and Tuple implement this.
type Value interface {
	value() // Sealed - only these types implement it
	Kind() Kind
	String() string
}

// None is the absent optional value. Offset accesses past the available
// history and sliding windows still waiting for their duration yield None.
type None struct{}

func (None) value()         {}
func (None) Kind() Kind     { return KindNone }
func (None) String() string { return "#" }

// Bool is a boolean stream value.
type Bool bool

func (Bool) value()     {}
func (Bool) Kind() Kind { return KindBool }
func (b Bool) String() string {
	return strconv.FormatBool(bool(b))
}

// Int is a signed integer stream value.
type Int int64

func (Int) value()     {}
func (Int) Kind() Kind { return KindInt }
func (i Int) String() string {
	return strconv.FormatInt(int64(i), 10)
}

// Float is a floating point stream value.
type Float float64

func (Float) value()     {}
func (Float) Kind() Kind { return KindFloat }
func (f Float) String() string {
	return strconv.FormatFloat(float64(f), 'g', -1, 64)
}

// String is a text stream value.
type String string

func (String) value()     {}
func (String) Kind() Kind { return KindString }

// String returns the raw text. Quoting is left to the encoders.
func (s String) String() string { return string(s) }

// Tuple is a fixed-size composite value.
type Tuple []Value

func (Tuple) value()     {}
func (Tuple) Kind() Kind { return KindTuple }
func (t Tuple) String() string {
	parts := make([]string, len(t))
	for i, v := range t {
		parts[i] = v.String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// IsNone reports whether v is absent (nil or None).
func IsNone(v Value) bool {
	if v == nil {
		return true
	}
	_, ok := v.(None)
	return ok
}

// CompareValues is the total order over values used for canonicalisation.
// Values are ordered by Kind first, then by payload; tuples compare
// lexicographically. NaN sorts before every other float.
func CompareValues(a, b Value) int {
	if a == nil {
		a = None{}
	}
	if b == nil {
		b = None{}
	}
	if c := cmp.Compare(a.Kind(), b.Kind()); c != 0 {
		return c
	}

	switch av := a.(type) {
	case None:
		return 0
	case Bool:
		bv := b.(Bool)
		switch {
		case av == bv:
			return 0
		case !bool(av):
			return -1
		default:
			return 1
		}
	case Int:
		return cmp.Compare(av, b.(Int))
	case Float:
		return cmp.Compare(av, b.(Float))
	case String:
		return strings.Compare(string(av), string(b.(String)))
	case Tuple:
		bv := b.(Tuple)
		for i := 0; i < len(av) && i < len(bv); i++ {
			if c := CompareValues(av[i], bv[i]); c != 0 {
				return c
			}
		}
		return cmp.Compare(len(av), len(bv))
	default:
		panic(fmt.Sprintf("unknown Value type: %T", a))
	}
}

// EqualValues reports whether two values are identical under CompareValues.
func EqualValues(a, b Value) bool {
	return CompareValues(a, b) == 0
}

// ValueFromAny converts a decoded YAML/JSON scalar or list to a Value.
// Lists become tuples, nil becomes None. Maps are rejected.
func ValueFromAny(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return None{}, nil
	case Value:
		return val, nil
	case bool:
		return Bool(val), nil
	case int:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case uint64:
		return Int(int64(val)), nil
	case float64:
		return Float(val), nil
	case float32:
		return Float(val), nil
	case string:
		return String(val), nil
	case []any:
		tuple := make(Tuple, len(val))
		for i, elem := range val {
			ev, err := ValueFromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("tuple[%d]: %w", i, err)
			}
			tuple[i] = ev
		}
		return tuple, nil
	default:
		return nil, fmt.Errorf("unsupported value type: %T", v)
	}
}

// ParseValue parses the textual form of a value of the given type.
// Used by event sources reading untyped text such as CSV cells.
func ParseValue(ty Type, raw string) (Value, error) {
	raw = strings.TrimSpace(raw)
	switch ty {
	case TypeInt:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse int %q: %w", raw, err)
		}
		return Int(n), nil
	case TypeFloat:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("parse float %q: %w", raw, err)
		}
		return Float(f), nil
	case TypeBool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("parse bool %q: %w", raw, err)
		}
		return Bool(b), nil
	case TypeString:
		return String(raw), nil
	default:
		return nil, fmt.Errorf("cannot parse values of type %q from text", ty)
	}
}
