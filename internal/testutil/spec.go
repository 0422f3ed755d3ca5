package testutil

import (
	"time"

	"github.com/reactive-systems/rtlola-streamir/internal/ir"
)

// Expression builders keep hand-written IR in tests readable.

// C is a constant expression.
func C(v ir.Value) ir.Const { return ir.Const{Value: v} }

// In reads input i at offset.
func In(i, offset int) ir.Load { return ir.Load{Stream: ir.InputRef(i), Offset: offset} }

// Out reads output i at offset from the bound instance.
func Out(i, offset int) ir.Load { return ir.Load{Stream: ir.OutputRef(i), Offset: offset} }

// Bin applies a binary operator.
func Bin(op ir.BinaryOp, l, r ir.Expr) ir.Binary { return ir.Binary{Op: op, Left: l, Right: r} }

// FreshIn holds when input i is fresh.
func FreshIn(i int) ir.GuardFresh { return ir.GuardFresh{Stream: ir.InputRef(i)} }

// FreshOut holds when output i is fresh.
func FreshOut(i int) ir.GuardFresh { return ir.GuardFresh{Stream: ir.OutputRef(i)} }

// IntInput declares an int input with one value of history.
func IntInput(name string) ir.InputStream {
	return ir.InputStream{Name: name, Type: ir.TypeInt, Memory: 1}
}

// IntOutput declares a static int output.
func IntOutput(name string, memory int) ir.OutputStream {
	return ir.OutputStream{Name: name, Type: ir.TypeInt, Memory: memory}
}

// PlusOne is input a and the static output b = a + 1 evaluated on every
// event.
func PlusOne() *ir.StreamIR {
	return &ir.StreamIR{
		Inputs:  []ir.InputStream{IntInput("a")},
		Outputs: []ir.OutputStream{IntOutput("b", 1)},
		Stmt: ir.Seq{
			ir.Assign{
				Output: ir.OutputReference{Index: 0},
				Expr:   Bin(ir.OpAdd, In(0, 0), C(ir.Int(1))),
			},
		},
	}
}

// Instances is input a and the output c(p: int) spawned with parameter a
// when a > 0. Every instance is closed when a < 0.
func Instances() *ir.StreamIR {
	c := ir.OutputReference{Index: 0, Parameterized: true}
	return &ir.StreamIR{
		Inputs: []ir.InputStream{IntInput("a")},
		Outputs: []ir.OutputStream{{
			Name:       "c",
			Type:       ir.TypeInt,
			Memory:     1,
			Parameters: []ir.Parameter{{Name: "p", Type: ir.TypeInt}},
		}},
		Stmt: ir.Seq{
			ir.If{
				Guard: ir.GuardAnd{FreshIn(0), ir.GuardExpr{Expr: Bin(ir.OpGt, In(0, 0), C(ir.Int(0)))}},
				Then:  ir.Spawn{Output: c, With: []ir.Expr{In(0, 0)}},
			},
			ir.If{
				Guard: ir.GuardAnd{FreshIn(0), ir.GuardExpr{Expr: Bin(ir.OpLt, In(0, 0), C(ir.Int(0)))}},
				Then:  ir.Iterate{Outputs: []ir.OutputReference{c}, Body: ir.Close{Output: c}},
			},
		},
	}
}

// Sampler is input a and the static output s sampling a every period.
// The frequency is named "hz".
func Sampler(period time.Duration) *ir.StreamIR {
	return &ir.StreamIR{
		Inputs:      []ir.InputStream{IntInput("a")},
		Outputs:     []ir.OutputStream{IntOutput("s", 1)},
		Frequencies: []ir.Frequency{{Name: "hz", Period: period}},
		Stmt: ir.If{
			Guard: ir.GuardGlobalFreq{Frequency: 0},
			Then: ir.Assign{
				Output: ir.OutputReference{Index: 0},
				Expr:   ir.Default{Expr: In(0, 0), Fallback: C(ir.Int(0))},
			},
		},
	}
}

// SlidingSum is input a and the output total reading a sliding sum window
// of span over a on every event.
func SlidingSum(span time.Duration) *ir.StreamIR {
	return &ir.StreamIR{
		Inputs:  []ir.InputStream{IntInput("a")},
		Outputs: []ir.OutputStream{IntOutput("total", 1)},
		Windows: []ir.Window{{
			Name:     "w",
			Kind:     ir.WindowSliding,
			Source:   ir.InputRef(0),
			Op:       ir.AggSum,
			Duration: span,
		}},
		Stmt: ir.If{
			Guard: FreshIn(0),
			Then:  ir.Assign{Output: ir.OutputReference{Index: 0}, Expr: ir.WindowAccess{Window: 0}},
		},
	}
}
