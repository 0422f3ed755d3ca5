package ir

import "fmt"

// StreamKind distinguishes input from output streams.
type StreamKind int

const (
	KindInput StreamKind = iota
	KindOutput
)

// StreamReference identifies an input or output stream by kind and index
// into StreamIR.Inputs or StreamIR.Outputs.
type StreamReference struct {
	Kind  StreamKind `json:"kind"`
	Index int        `json:"index"`
}

// InputRef returns a reference to the input stream at index i.
func InputRef(i int) StreamReference { return StreamReference{Kind: KindInput, Index: i} }

// OutputRef returns a reference to the output stream at index i.
func OutputRef(i int) StreamReference { return StreamReference{Kind: KindOutput, Index: i} }

func (r StreamReference) IsInput() bool  { return r.Kind == KindInput }
func (r StreamReference) IsOutput() bool { return r.Kind == KindOutput }

func (r StreamReference) String() string {
	if r.Kind == KindInput {
		return fmt.Sprintf("in%d", r.Index)
	}
	return fmt.Sprintf("out%d", r.Index)
}

// OutputReference names an output stream and records whether it is
// parameterized. The index space is shared with StreamReference outputs.
type OutputReference struct {
	Index         int  `json:"index"`
	Parameterized bool `json:"parameterized"`
}

// Stream converts the output reference into a general stream reference.
func (o OutputReference) Stream() StreamReference { return OutputRef(o.Index) }

func (o OutputReference) String() string {
	if o.Parameterized {
		return fmt.Sprintf("out%d(..)", o.Index)
	}
	return fmt.Sprintf("out%d", o.Index)
}

// WindowReference indexes StreamIR.Windows.
type WindowReference int

// FrequencyReference indexes StreamIR.Frequencies.
type FrequencyReference int
