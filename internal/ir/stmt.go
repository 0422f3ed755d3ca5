package ir

// Stmt is a sealed interface for the nodes of the compiled evaluation order.
type Stmt interface {
	stmt()
}

// Seq executes its statements in order.
type Seq []Stmt

// If executes Then when Guard holds, Else otherwise. Else may be nil.
type If struct {
	Guard Guard
	Then  Stmt
	Else  Stmt
}

// Iterate runs Body once per live instance of Outputs. The instance set is
// the sorted union of the outputs' live parameters, snapshotted when the
// node starts; every listed output is bound to the current parameters.
type Iterate struct {
	Outputs []OutputReference
	Body    Stmt
}

// Assign evaluates Expr and writes it to Output as a fresh value. For a
// parameterized output the instance bound by an enclosing Iterate or Bind
// is written.
type Assign struct {
	Output OutputReference
	Expr   Expr
}

// Spawn creates an instance of Output. With computes the instance's
// parameters and must be empty for unparameterized outputs. Each listed
// frequency arms a dynamic deadline for the new instance.
type Spawn struct {
	Output      OutputReference
	With        []Expr
	Frequencies []FrequencyReference
}

// Close destroys the bound instance of Output.
type Close struct {
	Output OutputReference
}

// Bind evaluates With into parameters and runs Body with Output bound to
// that instance.
type Bind struct {
	Output OutputReference
	With   []Expr
	Body   Stmt
}

// Skip does nothing.
type Skip struct{}

func (Seq) stmt()     {}
func (If) stmt()      {}
func (Iterate) stmt() {}
func (Assign) stmt()  {}
func (Spawn) stmt()   {}
func (Close) stmt()   {}
func (Bind) stmt()    {}
func (Skip) stmt()    {}

// Guard is a sealed interface for activation conditions.
type Guard interface {
	guard()
}

// GuardConst is a constant condition.
type GuardConst bool

// GuardFresh holds when Stream received a value in the current cycle.
type GuardFresh struct {
	Stream StreamReference
}

// GuardAlive holds when Stream (or its bound instance) is alive.
// Inputs and static outputs are always alive.
type GuardAlive struct {
	Stream StreamReference
}

// GuardGlobalFreq holds in periodic cycles whose batch contains the static
// deadline of Frequency.
type GuardGlobalFreq struct {
	Frequency FrequencyReference
}

// GuardLocalFreq holds in periodic cycles whose batch contains a dynamic
// deadline for the bound instance of Output.
type GuardLocalFreq struct {
	Output OutputReference
}

// GuardExpr holds when Expr evaluates to true.
type GuardExpr struct {
	Expr Expr
}

// GuardAnd holds when every operand holds. Evaluation short-circuits.
type GuardAnd []Guard

// GuardOr holds when any operand holds. Evaluation short-circuits.
type GuardOr []Guard

func (GuardConst) guard()      {}
func (GuardFresh) guard()      {}
func (GuardAlive) guard()      {}
func (GuardGlobalFreq) guard() {}
func (GuardLocalFreq) guard()  {}
func (GuardExpr) guard()       {}
func (GuardAnd) guard()        {}
func (GuardOr) guard()         {}

// Expr is a sealed interface for pure expressions.
type Expr interface {
	expr()
}

// Const is a literal value.
type Const struct {
	Value Value
}

// Load reads Stream at Offset (0 = most recent). For parameterized outputs
// Params selects the instance; when Params is empty the bound instance is
// read.
type Load struct {
	Stream StreamReference
	Offset int
	Params []Expr
}

// Param reads the Index-th parameter of the innermost bound instance.
type Param struct {
	Index int
}

// WindowAccess reads the current aggregate of a window.
type WindowAccess struct {
	Window WindowReference
}

// Default yields Fallback when Expr evaluates to None.
type Default struct {
	Expr     Expr
	Fallback Expr
}

// UnaryOp is a unary operator.
type UnaryOp string

const (
	OpNeg UnaryOp = "neg"
	OpNot UnaryOp = "not"
)

// Unary applies Op to Arg.
type Unary struct {
	Op  UnaryOp
	Arg Expr
}

// BinaryOp is a binary operator.
type BinaryOp string

const (
	OpAdd BinaryOp = "+"
	OpSub BinaryOp = "-"
	OpMul BinaryOp = "*"
	OpDiv BinaryOp = "/"
	OpMod BinaryOp = "%"
	OpEq  BinaryOp = "=="
	OpNe  BinaryOp = "!="
	OpLt  BinaryOp = "<"
	OpLe  BinaryOp = "<="
	OpGt  BinaryOp = ">"
	OpGe  BinaryOp = ">="
	OpAnd BinaryOp = "&&"
	OpOr  BinaryOp = "||"
)

// ValidBinaryOps defines allowed binary operators.
var ValidBinaryOps = map[BinaryOp]bool{
	OpAdd: true, OpSub: true, OpMul: true, OpDiv: true, OpMod: true,
	OpEq: true, OpNe: true, OpLt: true, OpLe: true, OpGt: true, OpGe: true,
	OpAnd: true, OpOr: true,
}

// Binary applies Op to Left and Right.
type Binary struct {
	Op    BinaryOp
	Left  Expr
	Right Expr
}

// Ite is a conditional expression.
type Ite struct {
	Cond Expr
	Then Expr
	Else Expr
}

// TupleOf builds a tuple from its elements.
type TupleOf []Expr

// Project selects element Index of a tuple.
type Project struct {
	Expr  Expr
	Index int
}

// Call applies a builtin function.
type Call struct {
	Func string
	Args []Expr
}

// Builtins maps builtin function names to their arity.
var Builtins = map[string]int{
	"abs":  1,
	"sqrt": 1,
	"min":  2,
	"max":  2,
}

func (Const) expr()        {}
func (Load) expr()         {}
func (Param) expr()        {}
func (WindowAccess) expr() {}
func (Default) expr()      {}
func (Unary) expr()        {}
func (Binary) expr()       {}
func (Ite) expr()          {}
func (TupleOf) expr()      {}
func (Project) expr()      {}
func (Call) expr()         {}

// Walk visits node and every statement, guard and expression below it in
// evaluation order. A nil node is ignored.
func Walk(node any, visit func(any)) {
	if node == nil {
		return
	}
	visit(node)
	switch n := node.(type) {
	case Seq:
		for _, s := range n {
			Walk(s, visit)
		}
	case If:
		Walk(n.Guard, visit)
		Walk(n.Then, visit)
		Walk(n.Else, visit)
	case Iterate:
		Walk(n.Body, visit)
	case Assign:
		Walk(n.Expr, visit)
	case Spawn:
		for _, e := range n.With {
			Walk(e, visit)
		}
	case Bind:
		for _, e := range n.With {
			Walk(e, visit)
		}
		Walk(n.Body, visit)
	case GuardExpr:
		Walk(n.Expr, visit)
	case GuardAnd:
		for _, g := range n {
			Walk(g, visit)
		}
	case GuardOr:
		for _, g := range n {
			Walk(g, visit)
		}
	case Load:
		for _, e := range n.Params {
			Walk(e, visit)
		}
	case Default:
		Walk(n.Expr, visit)
		Walk(n.Fallback, visit)
	case Unary:
		Walk(n.Arg, visit)
	case Binary:
		Walk(n.Left, visit)
		Walk(n.Right, visit)
	case Ite:
		Walk(n.Cond, visit)
		Walk(n.Then, visit)
		Walk(n.Else, visit)
	case TupleOf:
		for _, e := range n {
			Walk(e, visit)
		}
	case Project:
		Walk(n.Expr, visit)
	case Call:
		for _, e := range n.Args {
			Walk(e, visit)
		}
	}
}
