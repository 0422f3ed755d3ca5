package compiler

import (
	"fmt"

	"cuelang.org/go/cue"

	"github.com/reactive-systems/rtlola-streamir/internal/ir"
)

// parseStmts parses a statement list (or a single statement) into a
// statement. A one-element list yields the element itself.
func parseStmts(v cue.Value, spec *ir.StreamIR, path string) (ir.Stmt, error) {
	if v.Kind() != cue.ListKind {
		return parseStmt(v, spec, path)
	}
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var seq ir.Seq
	for i := 0; iter.Next(); i++ {
		s, err := parseStmt(iter.Value(), spec, fmt.Sprintf("%s[%d]", path, i))
		if err != nil {
			return nil, err
		}
		seq = append(seq, s)
	}
	switch len(seq) {
	case 0:
		return ir.Skip{}, nil
	case 1:
		return seq[0], nil
	default:
		return seq, nil
	}
}

// parseStmt parses one statement. The statement kind is selected by the
// first matching key.
func parseStmt(v cue.Value, spec *ir.StreamIR, path string) (ir.Stmt, error) {
	if v.Kind() != cue.StructKind {
		return nil, &CompileError{Field: path, Message: "statement must be a struct", Pos: v.Pos()}
	}

	if sv, ok := field(v, "seq"); ok {
		return parseStmts(sv, spec, path+".seq")
	}

	if gv, ok := field(v, "if"); ok {
		g, err := parseGuard(gv, spec, path+".if")
		if err != nil {
			return nil, err
		}
		tv, ok := field(v, "then")
		if !ok {
			return nil, &CompileError{Field: path + ".then", Message: "then is required", Pos: v.Pos()}
		}
		stmt := ir.If{Guard: g}
		if stmt.Then, err = parseStmts(tv, spec, path+".then"); err != nil {
			return nil, err
		}
		if ev, ok := field(v, "else"); ok {
			if stmt.Else, err = parseStmts(ev, spec, path+".else"); err != nil {
				return nil, err
			}
		}
		return stmt, nil
	}

	if iv, ok := field(v, "iterate"); ok {
		var names []string
		if iv.Kind() == cue.ListKind {
			if err := iv.Decode(&names); err != nil {
				return nil, formatCUEError(err)
			}
		} else {
			name, err := iv.String()
			if err != nil {
				return nil, &CompileError{Field: path + ".iterate", Message: "must be an output name or a list of names", Pos: iv.Pos()}
			}
			names = []string{name}
		}
		stmt := ir.Iterate{}
		for _, name := range names {
			ref, err := lookupOutput(spec, name, iv, path+".iterate")
			if err != nil {
				return nil, err
			}
			stmt.Outputs = append(stmt.Outputs, ref)
		}
		body, err := requiredStmts(v, "do", spec, path)
		if err != nil {
			return nil, err
		}
		stmt.Body = body
		return stmt, nil
	}

	if av, ok := field(v, "assign"); ok {
		ref, err := outputField(spec, av, path+".assign")
		if err != nil {
			return nil, err
		}
		ev, ok := field(v, "expr")
		if !ok {
			return nil, &CompileError{Field: path + ".expr", Message: "expr is required", Pos: v.Pos()}
		}
		e, err := parseExpr(ev, spec, path+".expr")
		if err != nil {
			return nil, err
		}
		return ir.Assign{Output: ref, Expr: e}, nil
	}

	if sv, ok := field(v, "spawn"); ok {
		ref, err := outputField(spec, sv, path+".spawn")
		if err != nil {
			return nil, err
		}
		stmt := ir.Spawn{Output: ref}
		if wv, ok := field(v, "with"); ok {
			if stmt.With, err = parseExprList(wv, spec, path+".with"); err != nil {
				return nil, err
			}
		}
		if fv, ok := field(v, "freq"); ok {
			var names []string
			if err := fv.Decode(&names); err != nil {
				return nil, formatCUEError(err)
			}
			for _, name := range names {
				fref, ok := spec.LookupFrequency(name)
				if !ok {
					return nil, &CompileError{Field: path + ".freq", Message: fmt.Sprintf("unknown frequency %q", name), Pos: fv.Pos()}
				}
				stmt.Frequencies = append(stmt.Frequencies, fref)
			}
		}
		return stmt, nil
	}

	if cv, ok := field(v, "close"); ok {
		ref, err := outputField(spec, cv, path+".close")
		if err != nil {
			return nil, err
		}
		return ir.Close{Output: ref}, nil
	}

	if bv, ok := field(v, "bind"); ok {
		ref, err := outputField(spec, bv, path+".bind")
		if err != nil {
			return nil, err
		}
		stmt := ir.Bind{Output: ref}
		wv, ok := field(v, "with")
		if !ok {
			return nil, &CompileError{Field: path + ".with", Message: "with is required", Pos: v.Pos()}
		}
		if stmt.With, err = parseExprList(wv, spec, path+".with"); err != nil {
			return nil, err
		}
		if stmt.Body, err = requiredStmts(v, "do", spec, path); err != nil {
			return nil, err
		}
		return stmt, nil
	}

	if _, ok := field(v, "skip"); ok {
		return ir.Skip{}, nil
	}

	return nil, &CompileError{Field: path, Message: "unknown statement", Pos: v.Pos()}
}

func requiredStmts(v cue.Value, name string, spec *ir.StreamIR, path string) (ir.Stmt, error) {
	bv, ok := field(v, name)
	if !ok {
		return nil, &CompileError{Field: path + "." + name, Message: name + " is required", Pos: v.Pos()}
	}
	return parseStmts(bv, spec, path+"."+name)
}

// parseGuard parses an activation condition.
func parseGuard(v cue.Value, spec *ir.StreamIR, path string) (ir.Guard, error) {
	switch v.Kind() {
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.GuardConst(b), nil
	case cue.StructKind:
	default:
		return nil, &CompileError{Field: path, Message: "guard must be a boolean or a struct", Pos: v.Pos()}
	}

	if fv, ok := field(v, "fresh"); ok {
		ref, err := streamField(spec, fv, path+".fresh")
		if err != nil {
			return nil, err
		}
		return ir.GuardFresh{Stream: ref}, nil
	}
	if av, ok := field(v, "alive"); ok {
		ref, err := streamField(spec, av, path+".alive")
		if err != nil {
			return nil, err
		}
		return ir.GuardAlive{Stream: ref}, nil
	}
	if gv, ok := field(v, "global"); ok {
		name, err := gv.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		ref, ok := spec.LookupFrequency(name)
		if !ok {
			return nil, &CompileError{Field: path + ".global", Message: fmt.Sprintf("unknown frequency %q", name), Pos: gv.Pos()}
		}
		return ir.GuardGlobalFreq{Frequency: ref}, nil
	}
	if lv, ok := field(v, "local"); ok {
		ref, err := outputField(spec, lv, path+".local")
		if err != nil {
			return nil, err
		}
		return ir.GuardLocalFreq{Output: ref}, nil
	}
	if ev, ok := field(v, "expr"); ok {
		e, err := parseExpr(ev, spec, path+".expr")
		if err != nil {
			return nil, err
		}
		return ir.GuardExpr{Expr: e}, nil
	}
	for _, name := range []string{"and", "or"} {
		lv, ok := field(v, name)
		if !ok {
			continue
		}
		iter, err := lv.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		var operands []ir.Guard
		for i := 0; iter.Next(); i++ {
			g, err := parseGuard(iter.Value(), spec, fmt.Sprintf("%s.%s[%d]", path, name, i))
			if err != nil {
				return nil, err
			}
			operands = append(operands, g)
		}
		if name == "and" {
			return ir.GuardAnd(operands), nil
		}
		return ir.GuardOr(operands), nil
	}

	return nil, &CompileError{Field: path, Message: "unknown guard", Pos: v.Pos()}
}

// parseExpr parses a pure expression. A bare string is shorthand for
// loading the most recent value of the named stream.
func parseExpr(v cue.Value, spec *ir.StreamIR, path string) (ir.Expr, error) {
	switch v.Kind() {
	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.Const{Value: ir.Int(n)}, nil
	case cue.FloatKind, cue.NumberKind:
		f, err := v.Float64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.Const{Value: ir.Float(f)}, nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.Const{Value: ir.Bool(b)}, nil
	case cue.StringKind:
		ref, err := streamField(spec, v, path)
		if err != nil {
			return nil, err
		}
		return ir.Load{Stream: ref}, nil
	case cue.StructKind:
	default:
		return nil, &CompileError{Field: path, Message: "expression must be a literal, a stream name or a struct", Pos: v.Pos()}
	}

	if sv, ok := field(v, "str"); ok {
		s, err := sv.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.Const{Value: ir.String(s)}, nil
	}
	if _, ok := field(v, "none"); ok {
		return ir.Const{Value: ir.None{}}, nil
	}

	if lv, ok := field(v, "load"); ok {
		ref, err := streamField(spec, lv, path+".load")
		if err != nil {
			return nil, err
		}
		load := ir.Load{Stream: ref}
		if load.Offset, err = optionalInt(v, "offset", path); err != nil {
			return nil, err
		}
		if pv, ok := field(v, "params"); ok {
			if load.Params, err = parseExprList(pv, spec, path+".params"); err != nil {
				return nil, err
			}
		}
		return load, nil
	}

	if pv, ok := field(v, "param"); ok {
		n, err := pv.Int64()
		if err != nil {
			return nil, &CompileError{Field: path + ".param", Message: "must be an integer", Pos: pv.Pos()}
		}
		return ir.Param{Index: int(n)}, nil
	}

	if wv, ok := field(v, "window"); ok {
		name, err := wv.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		ref, ok := spec.LookupWindow(name)
		if !ok {
			return nil, &CompileError{Field: path + ".window", Message: fmt.Sprintf("unknown window %q", name), Pos: wv.Pos()}
		}
		return ir.WindowAccess{Window: ref}, nil
	}

	if dv, ok := field(v, "default"); ok {
		e, err := parseExpr(dv, spec, path+".default")
		if err != nil {
			return nil, err
		}
		ov, ok := field(v, "or")
		if !ok {
			return nil, &CompileError{Field: path + ".or", Message: "or is required", Pos: v.Pos()}
		}
		fallback, err := parseExpr(ov, spec, path+".or")
		if err != nil {
			return nil, err
		}
		return ir.Default{Expr: e, Fallback: fallback}, nil
	}

	if ov, ok := field(v, "op"); ok {
		return parseOp(v, ov, spec, path)
	}

	if cv, ok := field(v, "ite"); ok {
		parts := make([]ir.Expr, 3)
		for i, name := range []string{"ite", "then", "else"} {
			pv := cv
			if i > 0 {
				if pv, ok = field(v, name); !ok {
					return nil, &CompileError{Field: path + "." + name, Message: name + " is required", Pos: v.Pos()}
				}
			}
			e, err := parseExpr(pv, spec, path+"."+name)
			if err != nil {
				return nil, err
			}
			parts[i] = e
		}
		return ir.Ite{Cond: parts[0], Then: parts[1], Else: parts[2]}, nil
	}

	if tv, ok := field(v, "tuple"); ok {
		elems, err := parseExprList(tv, spec, path+".tuple")
		if err != nil {
			return nil, err
		}
		return ir.TupleOf(elems), nil
	}

	if pv, ok := field(v, "project"); ok {
		e, err := parseExpr(pv, spec, path+".project")
		if err != nil {
			return nil, err
		}
		idx, err := optionalInt(v, "index", path)
		if err != nil {
			return nil, err
		}
		return ir.Project{Expr: e, Index: idx}, nil
	}

	if cv, ok := field(v, "call"); ok {
		fn, err := cv.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		if _, ok := ir.Builtins[fn]; !ok {
			return nil, &CompileError{Field: path + ".call", Message: fmt.Sprintf("unknown function %q", fn), Pos: cv.Pos()}
		}
		call := ir.Call{Func: fn}
		if av, ok := field(v, "args"); ok {
			if call.Args, err = parseExprList(av, spec, path+".args"); err != nil {
				return nil, err
			}
		}
		return call, nil
	}

	return nil, &CompileError{Field: path, Message: "unknown expression", Pos: v.Pos()}
}

// parseOp parses {op: <op>, args: [...]}. Unary operators take one
// argument, binary operators two.
func parseOp(v, ov cue.Value, spec *ir.StreamIR, path string) (ir.Expr, error) {
	op, err := ov.String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	av, ok := field(v, "args")
	if !ok {
		return nil, &CompileError{Field: path + ".args", Message: "args is required", Pos: v.Pos()}
	}
	args, err := parseExprList(av, spec, path+".args")
	if err != nil {
		return nil, err
	}

	switch uop := ir.UnaryOp(op); uop {
	case ir.OpNeg, ir.OpNot:
		if len(args) != 1 {
			return nil, &CompileError{Field: path + ".args", Message: fmt.Sprintf("%s takes 1 argument, got %d", op, len(args)), Pos: av.Pos()}
		}
		return ir.Unary{Op: uop, Arg: args[0]}, nil
	}

	bop := ir.BinaryOp(op)
	if !ir.ValidBinaryOps[bop] {
		return nil, &CompileError{Field: path + ".op", Message: fmt.Sprintf("unknown operator %q", op), Pos: ov.Pos()}
	}
	if len(args) != 2 {
		return nil, &CompileError{Field: path + ".args", Message: fmt.Sprintf("%s takes 2 arguments, got %d", op, len(args)), Pos: av.Pos()}
	}
	return ir.Binary{Op: bop, Left: args[0], Right: args[1]}, nil
}

func parseExprList(v cue.Value, spec *ir.StreamIR, path string) ([]ir.Expr, error) {
	iter, err := v.List()
	if err != nil {
		return nil, &CompileError{Field: path, Message: "must be a list of expressions", Pos: v.Pos()}
	}
	var out []ir.Expr
	for i := 0; iter.Next(); i++ {
		e, err := parseExpr(iter.Value(), spec, fmt.Sprintf("%s[%d]", path, i))
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func streamField(spec *ir.StreamIR, v cue.Value, path string) (ir.StreamReference, error) {
	name, err := v.String()
	if err != nil {
		return ir.StreamReference{}, &CompileError{Field: path, Message: "must be a stream name", Pos: v.Pos()}
	}
	ref, ok := spec.LookupStream(name)
	if !ok {
		return ir.StreamReference{}, &CompileError{Field: path, Message: fmt.Sprintf("unknown stream %q", name), Pos: v.Pos()}
	}
	return ref, nil
}

func outputField(spec *ir.StreamIR, v cue.Value, path string) (ir.OutputReference, error) {
	name, err := v.String()
	if err != nil {
		return ir.OutputReference{}, &CompileError{Field: path, Message: "must be an output name", Pos: v.Pos()}
	}
	return lookupOutput(spec, name, v, path)
}

func lookupOutput(spec *ir.StreamIR, name string, v cue.Value, path string) (ir.OutputReference, error) {
	ref, ok := spec.LookupOutput(name)
	if !ok {
		return ir.OutputReference{}, &CompileError{Field: path, Message: fmt.Sprintf("unknown output %q", name), Pos: v.Pos()}
	}
	return ref, nil
}
