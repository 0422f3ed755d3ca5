package ir

import (
	"fmt"
	"strconv"
	"strings"
)

// Format renders a StreamIR as indented text. The output is deterministic
// and is used both as the debug view of a compiled specification and as the
// input of SpecHash.
func Format(s *StreamIR) string {
	var b strings.Builder
	for _, in := range s.Inputs {
		fmt.Fprintf(&b, "input %s: %s[%d]\n", in.Name, in.Type, in.Memory)
	}
	for _, out := range s.Outputs {
		fmt.Fprintf(&b, "output %s", out.Name)
		if out.IsParameterized() {
			params := make([]string, len(out.Parameters))
			for i, p := range out.Parameters {
				params[i] = p.Name + ": " + string(p.Type)
			}
			fmt.Fprintf(&b, "(%s)", strings.Join(params, ", "))
		}
		fmt.Fprintf(&b, ": %s[%d]", out.Type, out.Memory)
		if out.Dynamic {
			b.WriteString(" dynamic")
		}
		if out.Trigger {
			b.WriteString(" trigger")
		}
		b.WriteByte('\n')
	}
	for _, w := range s.Windows {
		fmt.Fprintf(&b, "window %s: %s(%s, %s", w.Name, w.Kind, s.StreamName(w.Source), w.Op)
		if w.Kind == WindowSliding {
			fmt.Fprintf(&b, ", %s", w.Duration)
		} else {
			fmt.Fprintf(&b, ", %d", w.Count)
		}
		if w.Wait {
			b.WriteString(", wait")
		}
		b.WriteByte(')')
		if w.Owner != nil {
			fmt.Fprintf(&b, " owner %s", s.StreamName(w.Owner.Stream()))
		}
		b.WriteByte('\n')
	}
	for _, f := range s.Frequencies {
		fmt.Fprintf(&b, "frequency %s: %s\n", f.Name, f.Period)
	}
	b.WriteString("eval:\n")
	p := printer{ir: s, b: &b}
	p.stmt(s.Stmt, 1)
	return b.String()
}

type printer struct {
	ir *StreamIR
	b  *strings.Builder
}

func (p printer) line(depth int, format string, args ...any) {
	p.b.WriteString(strings.Repeat("  ", depth))
	fmt.Fprintf(p.b, format, args...)
	p.b.WriteByte('\n')
}

func (p printer) output(o OutputReference) string {
	return p.ir.StreamName(o.Stream())
}

func (p printer) stmt(s Stmt, depth int) {
	switch n := s.(type) {
	case nil:
		p.line(depth, "skip")
	case Seq:
		p.line(depth, "seq")
		for _, child := range n {
			p.stmt(child, depth+1)
		}
	case If:
		p.line(depth, "if %s", p.guard(n.Guard))
		p.stmt(n.Then, depth+1)
		if n.Else != nil {
			p.line(depth, "else")
			p.stmt(n.Else, depth+1)
		}
	case Iterate:
		names := make([]string, len(n.Outputs))
		for i, o := range n.Outputs {
			names[i] = p.output(o)
		}
		p.line(depth, "iterate %s", strings.Join(names, ", "))
		p.stmt(n.Body, depth+1)
	case Assign:
		p.line(depth, "assign %s = %s", p.output(n.Output), p.expr(n.Expr))
	case Spawn:
		line := "spawn " + p.output(n.Output)
		if len(n.With) > 0 {
			line += " with (" + p.exprs(n.With) + ")"
		}
		for _, f := range n.Frequencies {
			line += " @" + p.frequency(f)
		}
		p.line(depth, "%s", line)
	case Close:
		p.line(depth, "close %s", p.output(n.Output))
	case Bind:
		p.line(depth, "bind %s(%s)", p.output(n.Output), p.exprs(n.With))
		p.stmt(n.Body, depth+1)
	case Skip:
		p.line(depth, "skip")
	default:
		p.line(depth, "<unknown %T>", s)
	}
}

func (p printer) frequency(f FrequencyReference) string {
	if int(f) >= 0 && int(f) < len(p.ir.Frequencies) {
		return p.ir.Frequencies[f].Name
	}
	return "freq" + strconv.Itoa(int(f))
}

func (p printer) guard(g Guard) string {
	switch n := g.(type) {
	case GuardConst:
		return strconv.FormatBool(bool(n))
	case GuardFresh:
		return "fresh(" + p.ir.StreamName(n.Stream) + ")"
	case GuardAlive:
		return "alive(" + p.ir.StreamName(n.Stream) + ")"
	case GuardGlobalFreq:
		return "global(" + p.frequency(n.Frequency) + ")"
	case GuardLocalFreq:
		return "local(" + p.output(n.Output) + ")"
	case GuardExpr:
		return p.expr(n.Expr)
	case GuardAnd:
		return p.guards(n, " && ")
	case GuardOr:
		return p.guards(n, " || ")
	default:
		return fmt.Sprintf("<unknown %T>", g)
	}
}

func (p printer) guards(gs []Guard, sep string) string {
	parts := make([]string, len(gs))
	for i, g := range gs {
		parts[i] = p.guard(g)
	}
	return "(" + strings.Join(parts, sep) + ")"
}

func (p printer) exprs(es []Expr) string {
	parts := make([]string, len(es))
	for i, e := range es {
		parts[i] = p.expr(e)
	}
	return strings.Join(parts, ", ")
}

func (p printer) expr(e Expr) string {
	switch n := e.(type) {
	case Const:
		if s, ok := n.Value.(String); ok {
			return strconv.Quote(string(s))
		}
		if n.Value == nil {
			return None{}.String()
		}
		return n.Value.String()
	case Load:
		s := p.ir.StreamName(n.Stream)
		if len(n.Params) > 0 {
			s += "(" + p.exprs(n.Params) + ")"
		}
		return fmt.Sprintf("%s[%d]", s, n.Offset)
	case Param:
		return "$" + strconv.Itoa(n.Index)
	case WindowAccess:
		if int(n.Window) >= 0 && int(n.Window) < len(p.ir.Windows) {
			return "window(" + p.ir.Windows[n.Window].Name + ")"
		}
		return "window(" + strconv.Itoa(int(n.Window)) + ")"
	case Default:
		return "default(" + p.expr(n.Expr) + ", " + p.expr(n.Fallback) + ")"
	case Unary:
		if n.Op == OpNot {
			return "!" + p.expr(n.Arg)
		}
		return "-" + p.expr(n.Arg)
	case Binary:
		return "(" + p.expr(n.Left) + " " + string(n.Op) + " " + p.expr(n.Right) + ")"
	case Ite:
		return "if " + p.expr(n.Cond) + " then " + p.expr(n.Then) + " else " + p.expr(n.Else)
	case TupleOf:
		return "(" + p.exprs(n) + ")"
	case Project:
		return fmt.Sprintf("%s.%d", p.expr(n.Expr), n.Index)
	case Call:
		return n.Func + "(" + p.exprs(n.Args) + ")"
	default:
		return fmt.Sprintf("<unknown %T>", e)
	}
}
