package compiler

import (
	"fmt"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/reactive-systems/rtlola-streamir/internal/ir"
)

// CompileSpec parses a CUE value into a StreamIR.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value is the root of the specification:
//
//	inputs:      { a: { type: "int" } }
//	outputs:     { b: { type: "int" } }
//	frequencies: { hz: "100ms" }
//	eval: [ { assign: "b", expr: { op: "+", args: ["a", 1] } } ]
//
// Declarations are indexed in CUE field order. Names are resolved after
// every declaration is known, so windows and statements may refer to
// streams declared later.
func CompileSpec(v cue.Value) (*ir.StreamIR, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	spec := &ir.StreamIR{}
	var err error

	if spec.Inputs, err = parseInputs(v); err != nil {
		return nil, err
	}
	if spec.Outputs, err = parseOutputs(v); err != nil {
		return nil, err
	}
	if spec.Frequencies, err = parseFrequencies(v); err != nil {
		return nil, err
	}
	// Windows refer to streams, so they are parsed once all streams exist.
	if spec.Windows, err = parseWindows(v, spec); err != nil {
		return nil, err
	}

	evalVal, ok := field(v, "eval")
	if !ok {
		return nil, &CompileError{
			Field:   "eval",
			Message: "eval is required",
			Pos:     v.Pos(),
		}
	}
	if spec.Stmt, err = parseStmts(evalVal, spec, "eval"); err != nil {
		return nil, err
	}

	inferMemory(spec)
	return spec, nil
}

// parseInputs extracts input declarations.
func parseInputs(v cue.Value) ([]ir.InputStream, error) {
	var inputs []ir.InputStream
	err := eachField(v, "inputs", func(name string, fv cue.Value) error {
		ty, err := parseType(fv, "inputs."+name)
		if err != nil {
			return err
		}
		mem, err := optionalInt(fv, "memory", "inputs."+name)
		if err != nil {
			return err
		}
		inputs = append(inputs, ir.InputStream{Name: name, Type: ty, Memory: mem})
		return nil
	})
	return inputs, err
}

// parseOutputs extracts output declarations.
func parseOutputs(v cue.Value) ([]ir.OutputStream, error) {
	var outputs []ir.OutputStream
	err := eachField(v, "outputs", func(name string, fv cue.Value) error {
		path := "outputs." + name
		ty, err := parseType(fv, path)
		if err != nil {
			return err
		}
		out := ir.OutputStream{Name: name, Type: ty}
		if out.Memory, err = optionalInt(fv, "memory", path); err != nil {
			return err
		}
		if out.Dynamic, err = optionalBool(fv, "dynamic", path); err != nil {
			return err
		}
		if out.Trigger, err = optionalBool(fv, "trigger", path); err != nil {
			return err
		}

		if pv, ok := field(fv, "parameters"); ok {
			iter, err := pv.List()
			if err != nil {
				return formatCUEError(err)
			}
			for iter.Next() {
				p := iter.Value()
				pname, err := requiredString(p, "name", path+".parameters")
				if err != nil {
					return err
				}
				pty, err := parseType(p, path+".parameters."+pname)
				if err != nil {
					return err
				}
				out.Parameters = append(out.Parameters, ir.Parameter{Name: pname, Type: pty})
			}
		}
		if out.IsParameterized() {
			out.Dynamic = true
		}
		outputs = append(outputs, out)
		return nil
	})
	return outputs, err
}

// parseFrequencies extracts named periods: { hz: "100ms" }.
func parseFrequencies(v cue.Value) ([]ir.Frequency, error) {
	var freqs []ir.Frequency
	err := eachField(v, "frequencies", func(name string, fv cue.Value) error {
		period, err := parseDuration(fv, "frequencies."+name)
		if err != nil {
			return err
		}
		freqs = append(freqs, ir.Frequency{Name: name, Period: period})
		return nil
	})
	return freqs, err
}

// parseWindows extracts window declarations.
func parseWindows(v cue.Value, spec *ir.StreamIR) ([]ir.Window, error) {
	var windows []ir.Window
	err := eachField(v, "windows", func(name string, fv cue.Value) error {
		path := "windows." + name
		w := ir.Window{Name: name}

		kind, err := requiredString(fv, "kind", path)
		if err != nil {
			return err
		}
		w.Kind = ir.WindowKind(kind)

		source, err := requiredString(fv, "source", path)
		if err != nil {
			return err
		}
		ref, ok := spec.LookupStream(source)
		if !ok {
			return &CompileError{Field: path + ".source", Message: fmt.Sprintf("unknown stream %q", source), Pos: fv.Pos()}
		}
		w.Source = ref

		if ov, ok := field(fv, "owner"); ok {
			owner, err := ov.String()
			if err != nil {
				return formatCUEError(err)
			}
			oref, ok := spec.LookupOutput(owner)
			if !ok {
				return &CompileError{Field: path + ".owner", Message: fmt.Sprintf("unknown output %q", owner), Pos: ov.Pos()}
			}
			w.Owner = &oref
		}

		op, err := requiredString(fv, "op", path)
		if err != nil {
			return err
		}
		w.Op = ir.Aggregation(op)

		if dv, ok := field(fv, "duration"); ok {
			if w.Duration, err = parseDuration(dv, path+".duration"); err != nil {
				return err
			}
		}
		if w.Count, err = optionalInt(fv, "count", path); err != nil {
			return err
		}
		if w.Wait, err = optionalBool(fv, "wait", path); err != nil {
			return err
		}
		windows = append(windows, w)
		return nil
	})
	return windows, err
}

// inferMemory sizes every stream without an explicit memory to the deepest
// offset read from it plus one.
func inferMemory(spec *ir.StreamIR) {
	depth := make(map[ir.StreamReference]int)
	ir.Walk(spec.Stmt, func(n any) {
		if load, ok := n.(ir.Load); ok && load.Offset+1 > depth[load.Stream] {
			depth[load.Stream] = load.Offset + 1
		}
	})
	for i := range spec.Inputs {
		if spec.Inputs[i].Memory == 0 {
			spec.Inputs[i].Memory = max(1, depth[ir.InputRef(i)])
		}
	}
	for i := range spec.Outputs {
		if spec.Outputs[i].Memory == 0 {
			spec.Outputs[i].Memory = max(1, depth[ir.OutputRef(i)])
		}
	}
}

// eachField calls fn for every field of the struct at v.name, in order.
// A missing struct is treated as empty.
func eachField(v cue.Value, name string, fn func(label string, fv cue.Value) error) error {
	sv, ok := field(v, name)
	if !ok {
		return nil
	}
	iter, err := sv.Fields()
	if err != nil {
		return formatCUEError(err)
	}
	for iter.Next() {
		if err := fn(iter.Selector().Unquoted(), iter.Value()); err != nil {
			return err
		}
	}
	return nil
}

// field looks up a regular field by name. Keywords such as "if" are valid
// names here.
func field(v cue.Value, name string) (cue.Value, bool) {
	fv := v.LookupPath(cue.MakePath(cue.Str(name)))
	return fv, fv.Exists()
}

func requiredString(v cue.Value, name, path string) (string, error) {
	fv, ok := field(v, name)
	if !ok {
		return "", &CompileError{Field: path + "." + name, Message: name + " is required", Pos: v.Pos()}
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func optionalInt(v cue.Value, name, path string) (int, error) {
	fv, ok := field(v, name)
	if !ok {
		return 0, nil
	}
	n, err := fv.Int64()
	if err != nil {
		return 0, &CompileError{Field: path + "." + name, Message: "must be an integer", Pos: fv.Pos()}
	}
	return int(n), nil
}

func optionalBool(v cue.Value, name, path string) (bool, error) {
	fv, ok := field(v, name)
	if !ok {
		return false, nil
	}
	b, err := fv.Bool()
	if err != nil {
		return false, &CompileError{Field: path + "." + name, Message: "must be a boolean", Pos: fv.Pos()}
	}
	return b, nil
}

// parseType reads the "type" field of a declaration.
func parseType(v cue.Value, path string) (ir.Type, error) {
	s, err := requiredString(v, "type", path)
	if err != nil {
		return "", err
	}
	ty := ir.Type(s)
	if !ir.ValidTypes[ty] {
		tv, _ := field(v, "type")
		return "", &CompileError{
			Field:   path + ".type",
			Message: fmt.Sprintf("unsupported type %q (expected int, float, bool, string or tuple)", s),
			Pos:     tv.Pos(),
		}
	}
	return ty, nil
}

// parseDuration reads a Go duration string such as "100ms".
func parseDuration(v cue.Value, path string) (time.Duration, error) {
	s, err := v.String()
	if err != nil {
		return 0, &CompileError{Field: path, Message: "must be a duration string such as \"100ms\"", Pos: v.Pos()}
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, &CompileError{Field: path, Message: err.Error(), Pos: v.Pos()}
	}
	return d, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
