package ir

import (
	"slices"
	"time"
)

// Type is the declared value type of a stream or parameter.
type Type string

const (
	TypeInt    Type = "int"
	TypeFloat  Type = "float"
	TypeBool   Type = "bool"
	TypeString Type = "string"
	TypeTuple  Type = "tuple"
)

// ValidTypes defines allowed stream types.
var ValidTypes = map[Type]bool{
	TypeInt:    true,
	TypeFloat:  true,
	TypeBool:   true,
	TypeString: true,
	TypeTuple:  true,
}

// Admits reports whether v may be stored in a stream of type t.
// None is admitted everywhere because optional results are legal values.
func (t Type) Admits(v Value) bool {
	if IsNone(v) {
		return true
	}
	switch t {
	case TypeInt:
		return v.Kind() == KindInt
	case TypeFloat:
		return v.Kind() == KindFloat
	case TypeBool:
		return v.Kind() == KindBool
	case TypeString:
		return v.Kind() == KindString
	case TypeTuple:
		return v.Kind() == KindTuple
	default:
		return false
	}
}

// StreamIR is the compiled specification executed by the monitor.
type StreamIR struct {
	Inputs      []InputStream  `json:"inputs"`
	Outputs     []OutputStream `json:"outputs"`
	Windows     []Window       `json:"windows"`
	Frequencies []Frequency    `json:"frequencies"`

	// Stmt is the compiled per-cycle evaluation order. It is executed
	// once per cycle, top to bottom, and never reordered.
	Stmt Stmt `json:"-"`
}

// InputStream is an input declaration.
type InputStream struct {
	Name   string `json:"name"`
	Type   Type   `json:"type"`
	Memory int    `json:"memory"` // retained history depth, at least 1
}

// Parameter is one entry of a parameterized output's parameter schema.
type Parameter struct {
	Name string `json:"name"`
	Type Type   `json:"type"`
}

// OutputStream is an output declaration.
type OutputStream struct {
	Name       string      `json:"name"`
	Type       Type        `json:"type"`
	Memory     int         `json:"memory"`
	Parameters []Parameter `json:"parameters,omitempty"`

	// Dynamic marks an unparameterized output with a spawn/close lifecycle.
	// Parameterized outputs are always dynamic.
	Dynamic bool `json:"dynamic,omitempty"`

	// Trigger marks an output whose values are violations to report.
	Trigger bool `json:"trigger,omitempty"`
}

// IsParameterized reports whether instances of the output are keyed by Parameters.
func (o OutputStream) IsParameterized() bool { return len(o.Parameters) > 0 }

// IsStatic reports whether the output lives for the monitor's whole lifetime.
func (o OutputStream) IsStatic() bool { return !o.Dynamic && !o.IsParameterized() }

// Ref returns the output reference for the stream at index i.
func (o OutputStream) Ref(i int) OutputReference {
	return OutputReference{Index: i, Parameterized: o.IsParameterized()}
}

// WindowKind selects between time-based and count-based windows.
type WindowKind string

const (
	WindowSliding  WindowKind = "sliding"
	WindowDiscrete WindowKind = "discrete"
)

// Aggregation is the accumulator function of a window.
type Aggregation string

const (
	AggSum         Aggregation = "sum"
	AggCount       Aggregation = "count"
	AggMin         Aggregation = "min"
	AggMax         Aggregation = "max"
	AggAvg         Aggregation = "avg"
	AggConjunction Aggregation = "conjunction"
	AggDisjunction Aggregation = "disjunction"
	AggLast        Aggregation = "last"
)

// ValidAggregations defines allowed window operations.
var ValidAggregations = map[Aggregation]bool{
	AggSum:         true,
	AggCount:       true,
	AggMin:         true,
	AggMax:         true,
	AggAvg:         true,
	AggConjunction: true,
	AggDisjunction: true,
	AggLast:        true,
}

// Window is a stateful aggregation over the recent history of Source.
type Window struct {
	Name   string          `json:"name"`
	Kind   WindowKind      `json:"kind"`
	Source StreamReference `json:"source"`

	// Owner is the output whose instances own separate window state.
	// Nil, or an unparameterized owner, means a single global window.
	Owner *OutputReference `json:"owner,omitempty"`

	Op       Aggregation   `json:"op"`
	Duration time.Duration `json:"duration,omitempty"` // sliding only
	Count    int           `json:"count,omitempty"`    // discrete only

	// Wait yields None until the window has covered its full span.
	Wait bool `json:"wait,omitempty"`
}

// IsInstanced reports whether state is kept per owner instance.
func (w Window) IsInstanced() bool { return w.Owner != nil && w.Owner.Parameterized }

// Frequency is a named evaluation period.
type Frequency struct {
	Name   string        `json:"name"`
	Period time.Duration `json:"period"`
}

// Stream returns the name and type of the referenced stream.
func (s *StreamIR) Stream(ref StreamReference) (string, Type, bool) {
	switch ref.Kind {
	case KindInput:
		if ref.Index < 0 || ref.Index >= len(s.Inputs) {
			return "", "", false
		}
		in := s.Inputs[ref.Index]
		return in.Name, in.Type, true
	case KindOutput:
		if ref.Index < 0 || ref.Index >= len(s.Outputs) {
			return "", "", false
		}
		out := s.Outputs[ref.Index]
		return out.Name, out.Type, true
	}
	return "", "", false
}

// StreamName returns the declared name of ref, or its index form if unknown.
func (s *StreamIR) StreamName(ref StreamReference) string {
	if name, _, ok := s.Stream(ref); ok {
		return name
	}
	return ref.String()
}

// Memory returns the retained history depth of ref.
func (s *StreamIR) Memory(ref StreamReference) int {
	if ref.Kind == KindInput {
		return s.Inputs[ref.Index].Memory
	}
	return s.Outputs[ref.Index].Memory
}

// LookupStream resolves a stream name. Inputs shadow outputs.
func (s *StreamIR) LookupStream(name string) (StreamReference, bool) {
	for i, in := range s.Inputs {
		if in.Name == name {
			return InputRef(i), true
		}
	}
	for i, out := range s.Outputs {
		if out.Name == name {
			return OutputRef(i), true
		}
	}
	return StreamReference{}, false
}

// LookupOutput resolves an output name into an OutputReference.
func (s *StreamIR) LookupOutput(name string) (OutputReference, bool) {
	for i, out := range s.Outputs {
		if out.Name == name {
			return out.Ref(i), true
		}
	}
	return OutputReference{}, false
}

// LookupWindow resolves a window name.
func (s *StreamIR) LookupWindow(name string) (WindowReference, bool) {
	for i, w := range s.Windows {
		if w.Name == name {
			return WindowReference(i), true
		}
	}
	return 0, false
}

// LookupFrequency resolves a frequency name.
func (s *StreamIR) LookupFrequency(name string) (FrequencyReference, bool) {
	for i, f := range s.Frequencies {
		if f.Name == name {
			return FrequencyReference(i), true
		}
	}
	return 0, false
}

// StaticOutputs returns the outputs that are always alive.
func (s *StreamIR) StaticOutputs() []OutputReference {
	return s.filterOutputs(func(o OutputStream) bool { return o.IsStatic() })
}

// DynamicOutputs returns the unparameterized outputs with a spawn/close lifecycle.
func (s *StreamIR) DynamicOutputs() []OutputReference {
	return s.filterOutputs(func(o OutputStream) bool { return o.Dynamic && !o.IsParameterized() })
}

// ParameterizedOutputs returns the outputs keyed by Parameters.
func (s *StreamIR) ParameterizedOutputs() []OutputReference {
	return s.filterOutputs(OutputStream.IsParameterized)
}

// Triggers returns the outputs marked as triggers.
func (s *StreamIR) Triggers() []OutputReference {
	return s.filterOutputs(func(o OutputStream) bool { return o.Trigger })
}

func (s *StreamIR) filterOutputs(keep func(OutputStream) bool) []OutputReference {
	var refs []OutputReference
	for i, out := range s.Outputs {
		if keep(out) {
			refs = append(refs, out.Ref(i))
		}
	}
	return refs
}

// WindowsOver returns the windows whose source is ref, in declaration order.
func (s *StreamIR) WindowsOver(ref StreamReference) []WindowReference {
	var refs []WindowReference
	for i, w := range s.Windows {
		if w.Source == ref {
			refs = append(refs, WindowReference(i))
		}
	}
	return refs
}

// StaticPeriods returns the distinct periods referenced by global frequency
// guards, ascending. These are armed as static deadlines.
func (s *StreamIR) StaticPeriods() []time.Duration {
	var periods []time.Duration
	Walk(s.Stmt, func(n any) {
		if g, ok := n.(GuardGlobalFreq); ok {
			if int(g.Frequency) >= 0 && int(g.Frequency) < len(s.Frequencies) {
				periods = append(periods, s.Frequencies[g.Frequency].Period)
			}
		}
	})
	slices.Sort(periods)
	return slices.Compact(periods)
}
