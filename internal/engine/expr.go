package engine

import (
	"math"

	"github.com/reactive-systems/rtlola-streamir/internal/ir"
)

// eval evaluates a pure expression against the cycle's memory and the
// current instance context. Expressions never mutate memory.
func (c *cycle) eval(e ir.Expr) (ir.Value, error) {
	switch n := e.(type) {
	case ir.Const:
		if n.Value == nil {
			return ir.None{}, nil
		}
		return n.Value, nil

	case ir.Load:
		params, err := c.instanceFor(n.Stream, n.Params)
		if err != nil {
			return nil, err
		}
		v, err := c.mem.Get(n.Stream, params, n.Offset)
		if err != nil {
			return nil, wrapMemoryError(err, c.spec.StreamName(n.Stream))
		}
		return v, nil

	case ir.Param:
		if len(c.current) == 0 {
			return nil, NewConfigurationError("parameter access outside an instance context", nil)
		}
		params := c.current[len(c.current)-1]
		if n.Index < 0 || n.Index >= len(params) {
			return nil, NewTypeError("parameter index %d out of range for (%s)", n.Index, params)
		}
		return params[n.Index], nil

	case ir.WindowAccess:
		return c.window(n.Window)

	case ir.Default:
		v, err := c.eval(n.Expr)
		if err != nil {
			return nil, err
		}
		if ir.IsNone(v) {
			return c.eval(n.Fallback)
		}
		return v, nil

	case ir.Unary:
		v, err := c.eval(n.Arg)
		if err != nil {
			return nil, err
		}
		return unary(n.Op, v)

	case ir.Binary:
		return c.binary(n)

	case ir.Ite:
		cond, err := c.evalBool(n.Cond)
		if err != nil {
			return nil, err
		}
		if cond {
			return c.eval(n.Then)
		}
		return c.eval(n.Else)

	case ir.TupleOf:
		tuple := make(ir.Tuple, len(n))
		for i, elem := range n {
			v, err := c.eval(elem)
			if err != nil {
				return nil, err
			}
			tuple[i] = v
		}
		return tuple, nil

	case ir.Project:
		v, err := c.eval(n.Expr)
		if err != nil {
			return nil, err
		}
		tuple, ok := v.(ir.Tuple)
		if !ok {
			return nil, NewTypeError("projection on %s value", kindOf(v))
		}
		if n.Index < 0 || n.Index >= len(tuple) {
			return nil, NewTypeError("projection index %d on tuple of %d", n.Index, len(tuple))
		}
		return tuple[n.Index], nil

	case ir.Call:
		args := make([]ir.Value, len(n.Args))
		for i, a := range n.Args {
			v, err := c.eval(a)
			if err != nil {
				return nil, err
			}
			args[i] = v
		}
		return call(n.Func, args)

	default:
		return nil, NewConfigurationError("unknown expression", map[string]string{"type": typeName(e)})
	}
}

// evalBool evaluates e as a condition. None counts as false.
func (c *cycle) evalBool(e ir.Expr) (bool, error) {
	v, err := c.eval(e)
	if err != nil {
		return false, err
	}
	if ir.IsNone(v) {
		return false, nil
	}
	b, ok := v.(ir.Bool)
	if !ok {
		return false, NewTypeError("condition evaluated to %s", v.Kind())
	}
	return bool(b), nil
}

func (c *cycle) window(ref ir.WindowReference) (ir.Value, error) {
	if int(ref) < 0 || int(ref) >= len(c.spec.Windows) {
		return nil, NewConfigurationError("unknown window", nil)
	}
	def := c.spec.Windows[ref]
	var params ir.Parameters
	if def.IsInstanced() {
		bound, ok := c.bound[def.Owner.Index]
		if !ok {
			return nil, NewConfigurationError("window "+def.Name+" read outside its owner's instance context", nil)
		}
		params = bound
	}
	v, err := c.mem.Windows().Get(ref, params, c.now)
	if err != nil {
		if wrapped := wrapMemoryError(err, def.Name); wrapped != err {
			return nil, wrapped
		}
		return nil, NewTypeError("window %s: %v", def.Name, err)
	}
	return v, nil
}

func (c *cycle) binary(n ir.Binary) (ir.Value, error) {
	left, err := c.eval(n.Left)
	if err != nil {
		return nil, err
	}

	// Logical operators short-circuit.
	switch n.Op {
	case ir.OpAnd, ir.OpOr:
		lb, ok := left.(ir.Bool)
		if !ok {
			return nil, NewTypeError("%s on %s value", n.Op, kindOf(left))
		}
		if (n.Op == ir.OpAnd && !bool(lb)) || (n.Op == ir.OpOr && bool(lb)) {
			return lb, nil
		}
		right, err := c.eval(n.Right)
		if err != nil {
			return nil, err
		}
		rb, ok := right.(ir.Bool)
		if !ok {
			return nil, NewTypeError("%s on %s value", n.Op, kindOf(right))
		}
		return rb, nil
	}

	right, err := c.eval(n.Right)
	if err != nil {
		return nil, err
	}
	return binary(n.Op, left, right)
}

func unary(op ir.UnaryOp, v ir.Value) (ir.Value, error) {
	switch op {
	case ir.OpNeg:
		switch x := v.(type) {
		case ir.Int:
			return -x, nil
		case ir.Float:
			return -x, nil
		}
	case ir.OpNot:
		if b, ok := v.(ir.Bool); ok {
			return !b, nil
		}
	}
	return nil, NewTypeError("%s on %s value", op, kindOf(v))
}

func binary(op ir.BinaryOp, l, r ir.Value) (ir.Value, error) {
	switch op {
	case ir.OpEq:
		return ir.Bool(equalNumeric(l, r)), nil
	case ir.OpNe:
		return ir.Bool(!equalNumeric(l, r)), nil
	}

	if ls, ok := l.(ir.String); ok {
		rs, ok := r.(ir.String)
		if !ok {
			return nil, NewTypeError("%s on string and %s", op, kindOf(r))
		}
		switch op {
		case ir.OpAdd:
			return ls + rs, nil
		case ir.OpLt:
			return ir.Bool(ls < rs), nil
		case ir.OpLe:
			return ir.Bool(ls <= rs), nil
		case ir.OpGt:
			return ir.Bool(ls > rs), nil
		case ir.OpGe:
			return ir.Bool(ls >= rs), nil
		}
		return nil, NewTypeError("%s on strings", op)
	}

	li, lInt := l.(ir.Int)
	ri, rInt := r.(ir.Int)
	if lInt && rInt {
		switch op {
		case ir.OpAdd:
			return li + ri, nil
		case ir.OpSub:
			return li - ri, nil
		case ir.OpMul:
			return li * ri, nil
		case ir.OpDiv:
			if ri == 0 {
				return nil, NewTypeError("integer division by zero")
			}
			return li / ri, nil
		case ir.OpMod:
			if ri == 0 {
				return nil, NewTypeError("integer modulo by zero")
			}
			return li % ri, nil
		case ir.OpLt:
			return ir.Bool(li < ri), nil
		case ir.OpLe:
			return ir.Bool(li <= ri), nil
		case ir.OpGt:
			return ir.Bool(li > ri), nil
		case ir.OpGe:
			return ir.Bool(li >= ri), nil
		}
		return nil, NewTypeError("%s on integers", op)
	}

	lf, lok := toFloat(l)
	rf, rok := toFloat(r)
	if !lok || !rok {
		return nil, NewTypeError("%s on %s and %s", op, kindOf(l), kindOf(r))
	}
	switch op {
	case ir.OpAdd:
		return ir.Float(lf + rf), nil
	case ir.OpSub:
		return ir.Float(lf - rf), nil
	case ir.OpMul:
		return ir.Float(lf * rf), nil
	case ir.OpDiv:
		return ir.Float(lf / rf), nil
	case ir.OpMod:
		return ir.Float(math.Mod(lf, rf)), nil
	case ir.OpLt:
		return ir.Bool(lf < rf), nil
	case ir.OpLe:
		return ir.Bool(lf <= rf), nil
	case ir.OpGt:
		return ir.Bool(lf > rf), nil
	case ir.OpGe:
		return ir.Bool(lf >= rf), nil
	}
	return nil, NewTypeError("%s on numbers", op)
}

// equalNumeric compares values structurally, treating an Int and a Float
// with the same numeric value as equal.
func equalNumeric(l, r ir.Value) bool {
	lf, lok := toFloat(l)
	rf, rok := toFloat(r)
	if lok && rok && l.Kind() != r.Kind() {
		return lf == rf
	}
	return ir.EqualValues(l, r)
}

func call(fn string, args []ir.Value) (ir.Value, error) {
	if want, ok := ir.Builtins[fn]; !ok {
		return nil, NewConfigurationError("unknown function "+fn, nil)
	} else if len(args) != want {
		return nil, NewTypeError("%s expects %d arguments, got %d", fn, want, len(args))
	}

	switch fn {
	case "abs":
		switch x := args[0].(type) {
		case ir.Int:
			if x < 0 {
				return -x, nil
			}
			return x, nil
		case ir.Float:
			return ir.Float(math.Abs(float64(x))), nil
		}
	case "sqrt":
		if f, ok := toFloat(args[0]); ok {
			return ir.Float(math.Sqrt(f)), nil
		}
	case "min", "max":
		a, b := args[0], args[1]
		ai, aInt := a.(ir.Int)
		bi, bInt := b.(ir.Int)
		if aInt && bInt {
			if (fn == "min") == (ai <= bi) {
				return ai, nil
			}
			return bi, nil
		}
		af, aok := toFloat(a)
		bf, bok := toFloat(b)
		if aok && bok {
			if fn == "min" {
				return ir.Float(math.Min(af, bf)), nil
			}
			return ir.Float(math.Max(af, bf)), nil
		}
	}
	return nil, NewTypeError("%s on %s value", fn, kindOf(args[0]))
}

func toFloat(v ir.Value) (float64, bool) {
	switch x := v.(type) {
	case ir.Int:
		return float64(x), true
	case ir.Float:
		return float64(x), true
	}
	return 0, false
}

func kindOf(v ir.Value) string {
	if v == nil {
		return ir.KindNone.String()
	}
	return v.Kind().String()
}
