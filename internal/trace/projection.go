package trace

import (
	"fmt"
	"slices"
	"strings"

	"github.com/reactive-systems/rtlola-streamir/internal/ir"
	"github.com/reactive-systems/rtlola-streamir/internal/verdict"
)

// Verbosity selects a default set of reported streams.
type Verbosity string

const (
	VerbositySilent  Verbosity = "silent"
	VerbosityTrigger Verbosity = "trigger"
	VerbosityOutputs Verbosity = "outputs"
	VerbosityStreams Verbosity = "streams"
)

// ValidVerbosities lists the accepted verbosity levels.
var ValidVerbosities = []Verbosity{VerbositySilent, VerbosityTrigger, VerbosityOutputs, VerbosityStreams}

// Projection is the ordered set of streams a sink reports.
type Projection struct {
	streams []ir.StreamReference
	names   []string
}

// NewProjection builds a projection from an explicit list of stream names,
// or from verbosity when names is empty. Names may be comma separated.
func NewProjection(spec *ir.StreamIR, verbosity Verbosity, names []string) (*Projection, error) {
	p := &Projection{}
	var explicit []string
	for _, n := range names {
		for _, part := range strings.Split(n, ",") {
			if part = strings.TrimSpace(part); part != "" {
				explicit = append(explicit, part)
			}
		}
	}

	if len(explicit) > 0 {
		for _, name := range explicit {
			ref, ok := spec.LookupStream(name)
			if !ok {
				return nil, fmt.Errorf("stream %s does not exist in the specification", name)
			}
			p.add(ref, name)
		}
		return p, nil
	}

	switch verbosity {
	case VerbositySilent:
	case VerbosityTrigger:
		for _, out := range spec.Triggers() {
			p.add(out.Stream(), spec.Outputs[out.Index].Name)
		}
	case VerbosityOutputs, "":
		for i, out := range spec.Outputs {
			p.add(ir.OutputRef(i), out.Name)
		}
	case VerbosityStreams:
		for i, in := range spec.Inputs {
			p.add(ir.InputRef(i), in.Name)
		}
		for i, out := range spec.Outputs {
			p.add(ir.OutputRef(i), out.Name)
		}
	default:
		return nil, fmt.Errorf("invalid verbosity %q: must be one of %v", verbosity, ValidVerbosities)
	}
	return p, nil
}

func (p *Projection) add(ref ir.StreamReference, name string) {
	if slices.Contains(p.streams, ref) {
		return
	}
	p.streams = append(p.streams, ref)
	p.names = append(p.names, name)
}

// Streams returns the projected streams in report order.
func (p *Projection) Streams() []ir.StreamReference { return p.streams }

// Names returns the projected stream names in report order.
func (p *Projection) Names() []string { return p.names }

// Apply drops every input and output outside the projection.
func (p *Projection) Apply(inc verdict.Incremental) verdict.Incremental {
	var out verdict.Incremental
	for _, in := range inc.Inputs {
		if slices.Contains(p.streams, ir.InputRef(in.Input)) {
			out.Inputs = append(out.Inputs, in)
		}
	}
	for _, oc := range inc.Outputs {
		if slices.Contains(p.streams, ir.OutputRef(oc.Output)) {
			out.Outputs = append(out.Outputs, oc)
		}
	}
	return out
}
