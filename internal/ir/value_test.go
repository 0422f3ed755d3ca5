package ir

import (
	"math"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueSealedInterface(t *testing.T) {
	// Compile-time check: all value types implement Value
	var _ Value = None{}
	var _ Value = Bool(true)
	var _ Value = Int(1)
	var _ Value = Float(1.5)
	var _ Value = String("x")
	var _ Value = Tuple{Int(1)}
}

func TestValueString(t *testing.T) {
	tests := []struct {
		name  string
		value Value
		want  string
	}{
		{"none", None{}, "#"},
		{"bool", Bool(false), "false"},
		{"int", Int(-3), "-3"},
		{"float", Float(2.5), "2.5"},
		{"float integral", Float(3), "3"},
		{"string", String("hi"), "hi"},
		{"tuple", Tuple{Int(1), String("a")}, "(1, a)"},
		{"empty tuple", Tuple{}, "()"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.value.String())
		})
	}
}

func TestCompareValues_KindRank(t *testing.T) {
	ordered := []Value{None{}, Bool(true), Int(-100), Float(-1e9), String(""), Tuple{}}
	for i := 0; i < len(ordered)-1; i++ {
		assert.Equal(t, -1, CompareValues(ordered[i], ordered[i+1]),
			"%s should sort before %s", ordered[i].Kind(), ordered[i+1].Kind())
		assert.Equal(t, 1, CompareValues(ordered[i+1], ordered[i]))
	}
}

func TestCompareValues_Payload(t *testing.T) {
	tests := []struct {
		name string
		a, b Value
		want int
	}{
		{"false before true", Bool(false), Bool(true), -1},
		{"equal bools", Bool(true), Bool(true), 0},
		{"ints", Int(2), Int(10), -1},
		{"floats", Float(0.5), Float(0.25), 1},
		{"nan first", Float(math.NaN()), Float(math.Inf(-1)), -1},
		{"strings bytewise", String("B"), String("a"), -1},
		{"tuple lexicographic", Tuple{Int(1), Int(2)}, Tuple{Int(1), Int(3)}, -1},
		{"tuple prefix shorter first", Tuple{Int(1)}, Tuple{Int(1), Int(0)}, -1},
		{"nil is none", nil, None{}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CompareValues(tt.a, tt.b))
		})
	}
}

func TestCompareValues_SortIsTotal(t *testing.T) {
	values := []Value{String("z"), Int(3), None{}, Tuple{Bool(true)}, Float(1), Bool(false), Int(-1)}
	slices.SortFunc(values, CompareValues)

	want := []Value{None{}, Bool(false), Int(-1), Int(3), Float(1), String("z"), Tuple{Bool(true)}}
	assert.Equal(t, want, values)
}

func TestIsNone(t *testing.T) {
	assert.True(t, IsNone(nil))
	assert.True(t, IsNone(None{}))
	assert.False(t, IsNone(Int(0)))
	assert.False(t, IsNone(Tuple{}))
}

func TestValueFromAny(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  Value
	}{
		{"nil", nil, None{}},
		{"bool", true, Bool(true)},
		{"int", 5, Int(5)},
		{"int64", int64(-7), Int(-7)},
		{"float64", 1.25, Float(1.25)},
		{"string", "x", String("x")},
		{"list", []any{1, "a"}, Tuple{Int(1), String("a")}},
		{"value passthrough", Float(2), Float(2)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValueFromAny(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValueFromAny_RejectsMaps(t *testing.T) {
	_, err := ValueFromAny(map[string]any{"a": 1})
	require.Error(t, err)

	_, err = ValueFromAny([]any{1, map[string]any{}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tuple[1]")
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		ty   Type
		raw  string
		want Value
	}{
		{TypeInt, " 42 ", Int(42)},
		{TypeFloat, "0.5", Float(0.5)},
		{TypeBool, "true", Bool(true)},
		{TypeString, "hello", String("hello")},
	}
	for _, tt := range tests {
		t.Run(string(tt.ty), func(t *testing.T) {
			got, err := ParseValue(tt.ty, tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseValue(TypeInt, "4.5")
	assert.Error(t, err)
	_, err = ParseValue(TypeTuple, "(1, 2)")
	assert.Error(t, err)
}

func TestTypeAdmits(t *testing.T) {
	assert.True(t, TypeInt.Admits(Int(1)))
	assert.True(t, TypeInt.Admits(None{}))
	assert.False(t, TypeInt.Admits(Float(1)))
	assert.True(t, TypeTuple.Admits(Tuple{}))
	assert.False(t, Type("nope").Admits(Int(1)))
}
