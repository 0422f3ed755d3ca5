package ir

import (
	"cmp"
	"strings"
)

// Parameters identifies one instance of a parameterized stream.
// A nil Parameters means the stream is unparameterized.
type Parameters []Value

// Key returns a canonical string usable as a map key.
// Two parameter lists have the same key iff they are EqualParameters.
func (p Parameters) Key() string {
	if p == nil {
		return ""
	}
	b, err := MarshalCanonical(p)
	if err != nil {
		// only reachable with a Value implementation outside this package
		return "!" + p.String()
	}
	return string(b)
}

// String renders the parameters as "(v1, v2)" or "" when absent.
func (p Parameters) String() string {
	if p == nil {
		return ""
	}
	parts := make([]string, len(p))
	for i, v := range p {
		parts[i] = v.String()
	}
	return strings.Join(parts, ", ")
}

// Clone returns a copy that does not alias p.
func (p Parameters) Clone() Parameters {
	if p == nil {
		return nil
	}
	out := make(Parameters, len(p))
	copy(out, p)
	return out
}

// CompareParameters orders absent parameters first, then lexicographically
// by CompareValues, shorter lists before longer ones on a common prefix.
func CompareParameters(a, b Parameters) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	for i := 0; i < len(a) && i < len(b); i++ {
		if c := CompareValues(a[i], b[i]); c != 0 {
			return c
		}
	}
	return cmp.Compare(len(a), len(b))
}

// EqualParameters reports whether a and b identify the same instance.
func EqualParameters(a, b Parameters) bool {
	return CompareParameters(a, b) == 0
}
