package expr

import "fmt"

// Expr is a node of a scalar expression or of generated loop code.
//
// This is a sealed interface - only types in this package implement it.
// Every consumer (Rewrite, Format, the equivalence comparer and hasher, the
// backend) switches over the complete set of node kinds and treats an
// unknown kind as a programming error.
//
// Scalar kinds:
//   - *Constant, *Param, *Member
//   - *Binary, *Unary, *Call, *Conditional
//   - *Block, *Lambda
//
// Loop-code kinds, produced by fusion:
//   - *Assign, *Loop, *Break
//   - *Index, *Len
//   - *CursorOpen, *CursorNext, *CursorCurrent, *CursorClose
type Expr interface {
	Type() Type
	exprNode() // Marker method - seals interface to this package
}

// Constant is a literal runtime value.
type Constant struct {
	Value any
	T     Type
}

// Param is a variable: a lambda parameter, a block-local variable, or a
// placeholder introduced by extraction. Identity is the pointer.
type Param struct {
	Name string
	T    Type
}

// Member reads a named field of an environment.
//
// When Object is a *Constant holding an *Env, the member is a captured
// variable and extraction hoists it into a context parameter.
type Member struct {
	Object Expr
	Field  string
	T      Type
}

// BinaryOp enumerates binary operators.
type BinaryOp int

const (
	OpAdd BinaryOp = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpAnd
	OpOr
)

var binaryOpNames = [...]string{
	OpAdd: "+", OpSub: "-", OpMul: "*", OpDiv: "/", OpMod: "%",
	OpEq: "==", OpNe: "!=", OpLt: "<", OpLe: "<=", OpGt: ">", OpGe: ">=",
	OpAnd: "&&", OpOr: "||",
}

func (op BinaryOp) String() string {
	if op < 0 || int(op) >= len(binaryOpNames) {
		return fmt.Sprintf("BinaryOp(%d)", int(op))
	}
	return binaryOpNames[op]
}

// IsComparison reports whether op yields a bool from two operands of the
// same type.
func (op BinaryOp) IsComparison() bool { return op >= OpEq && op <= OpGe }

// IsLogical reports whether op is a short-circuit boolean operator.
func (op BinaryOp) IsLogical() bool { return op == OpAnd || op == OpOr }

// Binary applies a binary operator.
type Binary struct {
	Op          BinaryOp
	Left, Right Expr
}

// UnaryOp enumerates unary operators.
type UnaryOp int

const (
	OpNeg UnaryOp = iota
	OpNot
)

func (op UnaryOp) String() string {
	switch op {
	case OpNeg:
		return "-"
	case OpNot:
		return "!"
	}
	return fmt.Sprintf("UnaryOp(%d)", int(op))
}

// Unary applies a unary operator.
type Unary struct {
	Op      UnaryOp
	Operand Expr
}

// Func is a host function callable from expressions. Two calls refer to the
// same function only if they share the *Func pointer.
type Func struct {
	Name   string
	Params []Type
	Result Type
	Impl   func(args []any) any
}

// Call invokes a host function.
type Call struct {
	Fn   *Func
	Args []Expr
}

// Conditional is an if/else. A nil IfFalse makes it a statement of type void.
type Conditional struct {
	Test    Expr
	IfTrue  Expr
	IfFalse Expr
}

// Block declares Vars and evaluates Exprs in order. Its value is the value
// of the last expression.
type Block struct {
	Vars  []*Param
	Exprs []Expr
}

// Lambda binds Params in Body.
type Lambda struct {
	Params []*Param
	Body   Expr
}

// Assign stores Value into Target.
type Assign struct {
	Target *Param
	Value  Expr
}

// Label is a jump target. Identity is the pointer.
type Label struct {
	Name string
}

// Loop evaluates Body until a Break to its own label.
type Loop struct {
	Body  Expr
	Break *Label
}

// Break transfers control to the end of the loop owning Target.
type Break struct {
	Target *Label
}

// Index reads Array[Index].
type Index struct {
	Array Expr
	Index Expr
}

// Len is the length of an array.
type Len struct {
	Array Expr
}

// CursorOpen starts iterating a sequence.
type CursorOpen struct {
	Source Expr
}

// CursorNext advances a cursor and reports whether an element is available.
type CursorNext struct {
	Cursor Expr
}

// CursorCurrent reads the element the last CursorNext advanced to.
type CursorCurrent struct {
	Cursor Expr
}

// CursorClose releases a cursor.
type CursorClose struct {
	Cursor Expr
}

func (*Constant) exprNode()      {}
func (*Param) exprNode()         {}
func (*Member) exprNode()        {}
func (*Binary) exprNode()        {}
func (*Unary) exprNode()         {}
func (*Call) exprNode()          {}
func (*Conditional) exprNode()   {}
func (*Block) exprNode()         {}
func (*Lambda) exprNode()        {}
func (*Assign) exprNode()        {}
func (*Loop) exprNode()          {}
func (*Break) exprNode()         {}
func (*Index) exprNode()         {}
func (*Len) exprNode()           {}
func (*CursorOpen) exprNode()    {}
func (*CursorNext) exprNode()    {}
func (*CursorCurrent) exprNode() {}
func (*CursorClose) exprNode()   {}

func (c *Constant) Type() Type { return c.T }
func (p *Param) Type() Type    { return p.T }
func (m *Member) Type() Type   { return m.T }

func (b *Binary) Type() Type {
	if b.Op.IsComparison() || b.Op.IsLogical() {
		return BoolType
	}
	return b.Left.Type()
}

func (u *Unary) Type() Type {
	if u.Op == OpNot {
		return BoolType
	}
	return u.Operand.Type()
}

func (c *Call) Type() Type { return c.Fn.Result }

func (c *Conditional) Type() Type {
	if c.IfFalse == nil {
		return VoidType
	}
	return c.IfTrue.Type()
}

func (b *Block) Type() Type {
	if len(b.Exprs) == 0 {
		return VoidType
	}
	return b.Exprs[len(b.Exprs)-1].Type()
}

func (l *Lambda) Type() Type {
	params := make([]Type, len(l.Params))
	for i, p := range l.Params {
		params[i] = p.T
	}
	return FuncOf(params, l.Body.Type())
}

func (a *Assign) Type() Type        { return a.Target.T }
func (*Loop) Type() Type            { return VoidType }
func (*Break) Type() Type           { return VoidType }
func (i *Index) Type() Type         { return i.Array.Type().Elem() }
func (*Len) Type() Type             { return IntType }
func (c *CursorOpen) Type() Type    { return CursorOf(c.Source.Type().Elem()) }
func (*CursorNext) Type() Type      { return BoolType }
func (c *CursorCurrent) Type() Type { return c.Cursor.Type().Elem() }
func (*CursorClose) Type() Type     { return VoidType }

// Lit returns a constant whose type is inferred from v. Go ints are widened
// to int64. Lit panics if the type cannot be inferred; use ConstOf instead.
func Lit(v any) *Constant {
	if i, ok := v.(int); ok {
		v = int64(i)
	}
	t, ok := TypeOf(v)
	if !ok {
		panic(fmt.Sprintf("expr.Lit: cannot infer type of %T", v))
	}
	return &Constant{Value: v, T: t}
}

// ConstOf returns a constant of an explicit type.
func ConstOf(v any, t Type) *Constant {
	if i, ok := v.(int); ok {
		v = int64(i)
	}
	return &Constant{Value: v, T: t}
}

// NewParam returns a fresh variable.
func NewParam(name string, t Type) *Param { return &Param{Name: name, T: t} }

// Capture returns a read of a captured variable of env.
func Capture(env *Env, field string, t Type) *Member {
	return &Member{Object: ConstOf(env, EnvType), Field: NormalizeField(field), T: t}
}

// Bin builds a binary node.
func Bin(op BinaryOp, left, right Expr) *Binary {
	return &Binary{Op: op, Left: left, Right: right}
}

// Fn builds a lambda.
func Fn(body Expr, params ...*Param) *Lambda {
	return &Lambda{Params: params, Body: body}
}

// Seq builds a block without declared variables.
func Seq(exprs ...Expr) *Block { return &Block{Exprs: exprs} }

// If builds a conditional statement with an optional else branch.
func If(test, then, otherwise Expr) *Conditional {
	return &Conditional{Test: test, IfTrue: then, IfFalse: otherwise}
}

// Set builds an assignment.
func Set(target *Param, value Expr) *Assign { return &Assign{Target: target, Value: value} }
