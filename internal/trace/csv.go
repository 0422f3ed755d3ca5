package trace

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/reactive-systems/rtlola-streamir/internal/ir"
	"github.com/reactive-systems/rtlola-streamir/internal/verdict"
)

// TimeColumn is the header of the timestamp column in CSV traces.
const TimeColumn = "time"

// CSVSource reads events from a CSV trace.
//
// The header names the time column and any subset of the specification's
// inputs. An empty cell (or "#") leaves that input absent in the event.
// Timestamps are seconds ("1.5") or Go durations ("1500ms").
type CSVSource struct {
	r       *csv.Reader
	spec    *ir.StreamIR
	timeCol int
	columns []int // input index per column, -1 for the time column
	line    int
}

// NewCSVSource reads the header and prepares a source over r.
func NewCSVSource(r io.Reader, spec *ir.StreamIR) (*CSVSource, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	s := &CSVSource{r: cr, spec: spec, timeCol: -1, columns: make([]int, len(header)), line: 1}
	for col, name := range header {
		name = strings.TrimSpace(name)
		if strings.EqualFold(name, TimeColumn) {
			s.timeCol = col
			s.columns[col] = -1
			continue
		}
		idx := -1
		for i, in := range spec.Inputs {
			if in.Name == name {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, fmt.Errorf("csv column %q is not an input of the specification", name)
		}
		s.columns[col] = idx
	}
	if s.timeCol < 0 {
		return nil, fmt.Errorf("csv header has no %q column", TimeColumn)
	}
	return s, nil
}

// Next parses the next row.
func (s *CSVSource) Next(ctx context.Context) (Event, bool, error) {
	if err := ctx.Err(); err != nil {
		return Event{}, false, err
	}
	row, err := s.r.Read()
	if errors.Is(err, io.EOF) {
		return Event{}, false, nil
	}
	s.line++
	if err != nil {
		return Event{}, false, fmt.Errorf("csv line %d: %w", s.line, err)
	}

	ts, err := ParseTimestamp(row[s.timeCol])
	if err != nil {
		return Event{}, false, fmt.Errorf("csv line %d: %w", s.line, err)
	}
	ev := Event{TS: ts, Inputs: make(map[int]ir.Value)}
	for col, cell := range row {
		idx := s.columns[col]
		cell = strings.TrimSpace(cell)
		if idx < 0 || cell == "" || cell == "#" {
			continue
		}
		in := s.spec.Inputs[idx]
		v, err := ir.ParseValue(in.Type, cell)
		if err != nil {
			return Event{}, false, fmt.Errorf("csv line %d, input %s: %w", s.line, in.Name, err)
		}
		ev.Inputs[idx] = v
	}
	return ev, true, nil
}

// ParseTimestamp parses seconds as a decimal number or a Go duration.
func ParseTimestamp(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if secs, err := strconv.ParseFloat(raw, 64); err == nil {
		if secs < 0 || math.IsNaN(secs) || math.IsInf(secs, 0) {
			return 0, fmt.Errorf("invalid timestamp %q", raw)
		}
		return time.Duration(math.Round(secs * float64(time.Second))), nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid timestamp %q: expected seconds or a duration", raw)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid timestamp %q", raw)
	}
	return d, nil
}

// FormatTimestamp renders ts as decimal seconds.
func FormatTimestamp(ts time.Duration) string {
	return strconv.FormatFloat(ts.Seconds(), 'f', -1, 64)
}

// CSVSink writes one row per cycle with activity in a projected stream.
//
// Inputs render as their value. Outputs render their changes joined by
// ";" (for example "Spawn<5>;Instance<5> = 3").
type CSVSink struct {
	w    *csv.Writer
	proj *Projection
}

// NewCSVSink writes the header "time,<names...>" to w.
func NewCSVSink(w io.Writer, proj *Projection) (*CSVSink, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(append([]string{TimeColumn}, proj.Names()...)); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	return &CSVSink{w: cw, proj: proj}, nil
}

// Accept writes the row of a cycle.
func (s *CSVSink) Accept(ts time.Duration, inc verdict.Incremental) error {
	inc = s.proj.Apply(inc)
	if inc.IsEmpty() {
		return nil
	}
	row := make([]string, 0, len(s.proj.Streams())+1)
	row = append(row, FormatTimestamp(ts))
	for _, ref := range s.proj.Streams() {
		row = append(row, cell(ref, inc))
	}
	if err := s.w.Write(row); err != nil {
		return fmt.Errorf("write csv row: %w", err)
	}
	s.w.Flush()
	return s.w.Error()
}

// Close flushes buffered rows.
func (s *CSVSink) Close() error {
	s.w.Flush()
	return s.w.Error()
}

func cell(ref ir.StreamReference, inc verdict.Incremental) string {
	if ref.IsInput() {
		for _, in := range inc.Inputs {
			if in.Input == ref.Index {
				return in.Value.String()
			}
		}
		return ""
	}
	changes := inc.Changes(ref.Index)
	parts := make([]string, len(changes))
	for i, ch := range changes {
		parts[i] = ch.String()
	}
	return strings.Join(parts, ";")
}
