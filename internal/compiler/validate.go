package compiler

import (
	"fmt"

	"github.com/reactive-systems/rtlola-streamir/internal/ir"
)

// Validation error codes (E200-E299)
const (
	// Declaration errors (E200-E209)
	ErrDuplicateName    = "E201" // duplicate stream, window or frequency name
	ErrInvalidType      = "E202" // unsupported stream or parameter type
	ErrInvalidMemory    = "E203" // memory must be at least 1
	ErrInvalidWindow    = "E204" // window kind, op or span is malformed
	ErrInvalidFrequency = "E205" // period must be positive

	// Statement errors (E210-E219)
	ErrMissingStmt       = "E210" // eval is empty
	ErrInvalidReference  = "E211" // reference out of range or of the wrong kind
	ErrOffsetOutOfMemory = "E212" // offset beyond the stream's memory
	ErrArityMismatch     = "E213" // parameter count does not match the schema
	ErrUnboundInstance   = "E214" // instance access outside an Iterate or Bind
	ErrStaticLifecycle   = "E215" // spawn or close of a static output
	ErrInvalidOperator   = "E216" // unknown operator or builtin
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// ValidateIR checks a compiled StreamIR for structural consistency.
// Returns all errors found (does not fail-fast).
//
// Validation is structural only. Expression types are checked at
// evaluation time.
func ValidateIR(spec *ir.StreamIR) []ValidationError {
	v := &validator{spec: spec}
	v.declarations()
	if spec.Stmt == nil {
		v.add("eval", ErrMissingStmt, "eval is required")
	} else {
		v.stmt(spec.Stmt, "eval", scope{})
	}
	return v.errs
}

type validator struct {
	spec *ir.StreamIR
	errs []ValidationError
}

func (v *validator) add(field, code, format string, args ...any) {
	v.errs = append(v.errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...), Code: code})
}

func (v *validator) declarations() {
	// Inputs and outputs share one namespace.
	names := make(map[string]bool)
	unique := func(field, kind, name string) {
		if names[name] {
			v.add(field, ErrDuplicateName, "duplicate %s name: %q", kind, name)
		}
		names[name] = true
	}

	for i, in := range v.spec.Inputs {
		path := fmt.Sprintf("inputs[%d]", i)
		unique(path+".name", "stream", in.Name)
		v.typ(path+".type", in.Type)
		if in.Memory < 1 {
			v.add(path+".memory", ErrInvalidMemory, "memory of %q must be at least 1, got %d", in.Name, in.Memory)
		}
	}

	for i, out := range v.spec.Outputs {
		path := fmt.Sprintf("outputs[%d]", i)
		unique(path+".name", "stream", out.Name)
		v.typ(path+".type", out.Type)
		if out.Memory < 1 {
			v.add(path+".memory", ErrInvalidMemory, "memory of %q must be at least 1, got %d", out.Name, out.Memory)
		}
		params := make(map[string]bool)
		for j, p := range out.Parameters {
			ppath := fmt.Sprintf("%s.parameters[%d]", path, j)
			if params[p.Name] {
				v.add(ppath+".name", ErrDuplicateName, "duplicate parameter name: %q", p.Name)
			}
			params[p.Name] = true
			v.typ(ppath+".type", p.Type)
		}
	}

	names = make(map[string]bool)
	for i, w := range v.spec.Windows {
		v.window(fmt.Sprintf("windows[%d]", i), w)
		unique(fmt.Sprintf("windows[%d].name", i), "window", w.Name)
	}

	names = make(map[string]bool)
	for i, f := range v.spec.Frequencies {
		path := fmt.Sprintf("frequencies[%d]", i)
		unique(path+".name", "frequency", f.Name)
		if f.Period <= 0 {
			v.add(path+".period", ErrInvalidFrequency, "period of %q must be positive, got %s", f.Name, f.Period)
		}
	}
}

func (v *validator) typ(field string, ty ir.Type) {
	if !ir.ValidTypes[ty] {
		v.add(field, ErrInvalidType, "invalid type %q", ty)
	}
}

func (v *validator) window(path string, w ir.Window) {
	if !ir.ValidAggregations[w.Op] {
		v.add(path+".op", ErrInvalidWindow, "invalid aggregation %q", w.Op)
	}
	switch w.Kind {
	case ir.WindowSliding:
		if w.Duration <= 0 {
			v.add(path+".duration", ErrInvalidWindow, "sliding window %q needs a positive duration", w.Name)
		}
	case ir.WindowDiscrete:
		if w.Count <= 0 {
			v.add(path+".count", ErrInvalidWindow, "discrete window %q needs a positive count", w.Name)
		}
	default:
		v.add(path+".kind", ErrInvalidWindow, "invalid window kind %q, must be \"sliding\" or \"discrete\"", w.Kind)
	}
	srcOK := v.streamRef(path+".source", w.Source)
	ownerOK := w.Owner != nil && v.outputRef(path+".owner", *w.Owner)
	if !srcOK || !w.Source.IsOutput() {
		return
	}
	// Instances of a parameterized source feed the owner instance with the
	// same parameters, so the owner must be parameterized alike.
	src := v.spec.Outputs[w.Source.Index]
	if !src.IsParameterized() || (w.Owner != nil && !ownerOK) {
		return
	}
	if w.Owner == nil || !sameParameterTypes(src.Parameters, v.spec.Outputs[w.Owner.Index].Parameters) {
		v.add(path+".owner", ErrInvalidWindow,
			"window %q over parameterized %q needs an owner with the same parameter types", w.Name, src.Name)
	}
}

func sameParameterTypes(a, b []ir.Parameter) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Type != b[i].Type {
			return false
		}
	}
	return true
}

func (v *validator) streamRef(field string, ref ir.StreamReference) bool {
	n := len(v.spec.Inputs)
	if ref.IsOutput() {
		n = len(v.spec.Outputs)
	}
	if ref.Index < 0 || ref.Index >= n {
		v.add(field, ErrInvalidReference, "stream reference %s out of range", ref)
		return false
	}
	return true
}

func (v *validator) outputRef(field string, ref ir.OutputReference) bool {
	if ref.Index < 0 || ref.Index >= len(v.spec.Outputs) {
		v.add(field, ErrInvalidReference, "output reference %s out of range", ref)
		return false
	}
	if out := v.spec.Outputs[ref.Index]; out.IsParameterized() != ref.Parameterized {
		v.add(field, ErrInvalidReference, "reference %s disagrees with declaration of %q", ref, out.Name)
		return false
	}
	return true
}

// scope tracks the instance context of a statement: the outputs bound by
// enclosing Iterate and Bind nodes.
type scope struct {
	bound map[int]bool
	depth int
}

func (s scope) bind(outputs ...int) scope {
	next := scope{bound: make(map[int]bool, len(s.bound)+len(outputs)), depth: s.depth + 1}
	for k := range s.bound {
		next.bound[k] = true
	}
	for _, o := range outputs {
		next.bound[o] = true
	}
	return next
}

func (v *validator) stmt(s ir.Stmt, path string, sc scope) {
	switch n := s.(type) {
	case ir.Skip:
	case ir.Seq:
		for i, child := range n {
			v.stmt(child, fmt.Sprintf("%s[%d]", path, i), sc)
		}
	case ir.If:
		v.guard(n.Guard, path+".if", sc)
		v.stmt(n.Then, path+".then", sc)
		if n.Else != nil {
			v.stmt(n.Else, path+".else", sc)
		}
	case ir.Iterate:
		var outputs []int
		for i, ref := range n.Outputs {
			field := fmt.Sprintf("%s.iterate[%d]", path, i)
			if !v.outputRef(field, ref) {
				continue
			}
			if v.spec.Outputs[ref.Index].IsStatic() {
				v.add(field, ErrStaticLifecycle, "cannot iterate static output %q", v.spec.Outputs[ref.Index].Name)
			}
			outputs = append(outputs, ref.Index)
		}
		v.stmt(n.Body, path+".do", sc.bind(outputs...))
	case ir.Assign:
		if v.outputRef(path+".assign", n.Output) {
			v.requireBound(path+".assign", n.Output, sc)
		}
		v.expr(n.Expr, path+".expr", sc)
	case ir.Spawn:
		if v.outputRef(path+".spawn", n.Output) {
			out := v.spec.Outputs[n.Output.Index]
			v.lifecycle(path+".spawn", out)
			v.arity(path+".with", out, len(n.With))
		}
		for i, e := range n.With {
			v.expr(e, fmt.Sprintf("%s.with[%d]", path, i), sc)
		}
		for i, f := range n.Frequencies {
			if int(f) < 0 || int(f) >= len(v.spec.Frequencies) {
				v.add(fmt.Sprintf("%s.freq[%d]", path, i), ErrInvalidReference, "frequency reference %d out of range", f)
			}
		}
	case ir.Close:
		if v.outputRef(path+".close", n.Output) {
			v.lifecycle(path+".close", v.spec.Outputs[n.Output.Index])
			v.requireBound(path+".close", n.Output, sc)
		}
	case ir.Bind:
		if v.outputRef(path+".bind", n.Output) {
			out := v.spec.Outputs[n.Output.Index]
			if !out.IsParameterized() {
				v.add(path+".bind", ErrArityMismatch, "cannot bind unparameterized output %q", out.Name)
			} else {
				v.arity(path+".with", out, len(n.With))
			}
		}
		for i, e := range n.With {
			v.expr(e, fmt.Sprintf("%s.with[%d]", path, i), sc)
		}
		v.stmt(n.Body, path+".do", sc.bind(n.Output.Index))
	case nil:
		v.add(path, ErrMissingStmt, "missing statement")
	default:
		v.add(path, ErrInvalidReference, "unknown statement %T", s)
	}
}

func (v *validator) guard(g ir.Guard, path string, sc scope) {
	switch n := g.(type) {
	case ir.GuardConst:
	case ir.GuardFresh:
		v.streamRef(path+".fresh", n.Stream)
	case ir.GuardAlive:
		v.streamRef(path+".alive", n.Stream)
	case ir.GuardGlobalFreq:
		if int(n.Frequency) < 0 || int(n.Frequency) >= len(v.spec.Frequencies) {
			v.add(path+".global", ErrInvalidReference, "frequency reference %d out of range", n.Frequency)
		}
	case ir.GuardLocalFreq:
		if v.outputRef(path+".local", n.Output) {
			v.requireBound(path+".local", n.Output, sc)
		}
	case ir.GuardExpr:
		v.expr(n.Expr, path+".expr", sc)
	case ir.GuardAnd:
		for i, child := range n {
			v.guard(child, fmt.Sprintf("%s.and[%d]", path, i), sc)
		}
	case ir.GuardOr:
		for i, child := range n {
			v.guard(child, fmt.Sprintf("%s.or[%d]", path, i), sc)
		}
	default:
		v.add(path, ErrInvalidReference, "unknown guard %T", g)
	}
}

func (v *validator) expr(e ir.Expr, path string, sc scope) {
	switch n := e.(type) {
	case ir.Const:
	case ir.Load:
		if !v.streamRef(path+".load", n.Stream) {
			return
		}
		mem := v.spec.Memory(n.Stream)
		if mem >= 1 && (n.Offset < 0 || n.Offset >= mem) {
			v.add(path+".offset", ErrOffsetOutOfMemory, "offset %d of %q outside memory %d", n.Offset, v.spec.StreamName(n.Stream), mem)
		}
		if n.Stream.IsOutput() {
			out := v.spec.Outputs[n.Stream.Index]
			switch {
			case len(n.Params) > 0:
				v.arity(path+".params", out, len(n.Params))
			case out.IsParameterized():
				v.requireBound(path+".load", out.Ref(n.Stream.Index), sc)
			}
		} else if len(n.Params) > 0 {
			v.add(path+".params", ErrArityMismatch, "input %q takes no parameters", v.spec.StreamName(n.Stream))
		}
		for i, p := range n.Params {
			v.expr(p, fmt.Sprintf("%s.params[%d]", path, i), sc)
		}
	case ir.Param:
		if sc.depth == 0 {
			v.add(path+".param", ErrUnboundInstance, "parameter %d read outside an instance context", n.Index)
		}
	case ir.WindowAccess:
		if int(n.Window) < 0 || int(n.Window) >= len(v.spec.Windows) {
			v.add(path+".window", ErrInvalidReference, "window reference %d out of range", n.Window)
			return
		}
		if w := v.spec.Windows[n.Window]; w.IsInstanced() {
			v.requireBound(path+".window", *w.Owner, sc)
		}
	case ir.Default:
		v.expr(n.Expr, path+".default", sc)
		v.expr(n.Fallback, path+".or", sc)
	case ir.Unary:
		if n.Op != ir.OpNeg && n.Op != ir.OpNot {
			v.add(path+".op", ErrInvalidOperator, "unknown operator %q", n.Op)
		}
		v.expr(n.Arg, path+".args[0]", sc)
	case ir.Binary:
		if !ir.ValidBinaryOps[n.Op] {
			v.add(path+".op", ErrInvalidOperator, "unknown operator %q", n.Op)
		}
		v.expr(n.Left, path+".args[0]", sc)
		v.expr(n.Right, path+".args[1]", sc)
	case ir.Ite:
		v.expr(n.Cond, path+".ite", sc)
		v.expr(n.Then, path+".then", sc)
		v.expr(n.Else, path+".else", sc)
	case ir.TupleOf:
		for i, elem := range n {
			v.expr(elem, fmt.Sprintf("%s.tuple[%d]", path, i), sc)
		}
	case ir.Project:
		if n.Index < 0 {
			v.add(path+".index", ErrInvalidReference, "negative projection index %d", n.Index)
		}
		v.expr(n.Expr, path+".project", sc)
	case ir.Call:
		if want, ok := ir.Builtins[n.Func]; !ok {
			v.add(path+".call", ErrInvalidOperator, "unknown function %q", n.Func)
		} else if len(n.Args) != want {
			v.add(path+".args", ErrArityMismatch, "%s takes %d arguments, got %d", n.Func, want, len(n.Args))
		}
		for i, a := range n.Args {
			v.expr(a, fmt.Sprintf("%s.args[%d]", path, i), sc)
		}
	case nil:
		v.add(path, ErrInvalidReference, "missing expression")
	default:
		v.add(path, ErrInvalidReference, "unknown expression %T", e)
	}
}

// requireBound flags instance-scoped access to a parameterized output that
// no enclosing Iterate or Bind has bound.
func (v *validator) requireBound(field string, ref ir.OutputReference, sc scope) {
	if ref.Parameterized && !sc.bound[ref.Index] {
		v.add(field, ErrUnboundInstance, "%q accessed outside an instance context", v.spec.Outputs[ref.Index].Name)
	}
}

func (v *validator) lifecycle(field string, out ir.OutputStream) {
	if out.IsStatic() {
		v.add(field, ErrStaticLifecycle, "output %q is static and has no lifecycle", out.Name)
	}
}

func (v *validator) arity(field string, out ir.OutputStream, got int) {
	if got != len(out.Parameters) {
		v.add(field, ErrArityMismatch, "%q takes %d parameters, got %d", out.Name, len(out.Parameters), got)
	}
}
