package trace

import (
	"fmt"
	"io"
	"time"

	"github.com/reactive-systems/rtlola-streamir/internal/ir"
	"github.com/reactive-systems/rtlola-streamir/internal/verdict"
)

// JSONSink writes one canonical JSON document per cycle with activity in a
// projected stream (JSON Lines).
//
//	{"inputs":[...],"outputs":[{"changes":[...],"output":0}],"ts":1000000000}
type JSONSink struct {
	w    io.Writer
	proj *Projection
}

// NewJSONSink creates a sink writing to w.
func NewJSONSink(w io.Writer, proj *Projection) *JSONSink {
	return &JSONSink{w: w, proj: proj}
}

// Accept writes the document of a cycle.
func (s *JSONSink) Accept(ts time.Duration, inc verdict.Incremental) error {
	inc = s.proj.Apply(inc)
	if inc.IsEmpty() {
		return nil
	}
	data, err := ir.MarshalCanonical(verdict.Timed{TS: ts, Incremental: inc}.Document())
	if err != nil {
		return fmt.Errorf("encode verdict: %w", err)
	}
	if _, err := s.w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write verdict: %w", err)
	}
	return nil
}

// Close does nothing; the writer is owned by the caller.
func (s *JSONSink) Close() error { return nil }
