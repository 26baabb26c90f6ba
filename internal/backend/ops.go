package backend

import (
	"fmt"
	"math"

	"github.com/roach88/fuseq/internal/expr"
)

func (c *compiler) binary(n *expr.Binary) (evalFn, error) {
	l, err := c.compile(n.Left)
	if err != nil {
		return nil, err
	}
	r, err := c.compile(n.Right)
	if err != nil {
		return nil, err
	}
	lt, rt := n.Left.Type(), n.Right.Type()
	if lt != rt {
		return nil, unsupported(n, fmt.Sprintf("operands of %s have types %s and %s", n.Op, lt, rt))
	}

	if n.Op.IsLogical() {
		if lt != expr.BoolType {
			return nil, unsupported(n, fmt.Sprintf("%s on %s", n.Op, lt))
		}
		if n.Op == expr.OpAnd {
			return func(f *frame) any { return l(f).(bool) && r(f).(bool) }, nil
		}
		return func(f *frame) any { return l(f).(bool) || r(f).(bool) }, nil
	}

	var fn evalFn
	switch lt {
	case expr.IntType:
		fn = intBinary(n.Op, l, r)
	case expr.FloatType:
		fn = floatBinary(n.Op, l, r)
	case expr.StringType:
		fn = stringBinary(n.Op, l, r)
	case expr.BoolType:
		fn = boolBinary(n.Op, l, r)
	}
	if fn == nil {
		return nil, unsupported(n, fmt.Sprintf("%s on %s", n.Op, lt))
	}
	return fn, nil
}

func intBinary(op expr.BinaryOp, l, r evalFn) evalFn {
	switch op {
	case expr.OpAdd:
		return func(f *frame) any { return l(f).(int64) + r(f).(int64) }
	case expr.OpSub:
		return func(f *frame) any { return l(f).(int64) - r(f).(int64) }
	case expr.OpMul:
		return func(f *frame) any { return l(f).(int64) * r(f).(int64) }
	case expr.OpDiv:
		return func(f *frame) any { return l(f).(int64) / r(f).(int64) }
	case expr.OpMod:
		return func(f *frame) any { return l(f).(int64) % r(f).(int64) }
	case expr.OpEq:
		return func(f *frame) any { return l(f).(int64) == r(f).(int64) }
	case expr.OpNe:
		return func(f *frame) any { return l(f).(int64) != r(f).(int64) }
	case expr.OpLt:
		return func(f *frame) any { return l(f).(int64) < r(f).(int64) }
	case expr.OpLe:
		return func(f *frame) any { return l(f).(int64) <= r(f).(int64) }
	case expr.OpGt:
		return func(f *frame) any { return l(f).(int64) > r(f).(int64) }
	case expr.OpGe:
		return func(f *frame) any { return l(f).(int64) >= r(f).(int64) }
	}
	return nil
}

func floatBinary(op expr.BinaryOp, l, r evalFn) evalFn {
	switch op {
	case expr.OpAdd:
		return func(f *frame) any { return l(f).(float64) + r(f).(float64) }
	case expr.OpSub:
		return func(f *frame) any { return l(f).(float64) - r(f).(float64) }
	case expr.OpMul:
		return func(f *frame) any { return l(f).(float64) * r(f).(float64) }
	case expr.OpDiv:
		return func(f *frame) any { return l(f).(float64) / r(f).(float64) }
	case expr.OpMod:
		return func(f *frame) any { return math.Mod(l(f).(float64), r(f).(float64)) }
	case expr.OpEq:
		return func(f *frame) any { return l(f).(float64) == r(f).(float64) }
	case expr.OpNe:
		return func(f *frame) any { return l(f).(float64) != r(f).(float64) }
	case expr.OpLt:
		return func(f *frame) any { return l(f).(float64) < r(f).(float64) }
	case expr.OpLe:
		return func(f *frame) any { return l(f).(float64) <= r(f).(float64) }
	case expr.OpGt:
		return func(f *frame) any { return l(f).(float64) > r(f).(float64) }
	case expr.OpGe:
		return func(f *frame) any { return l(f).(float64) >= r(f).(float64) }
	}
	return nil
}

func stringBinary(op expr.BinaryOp, l, r evalFn) evalFn {
	switch op {
	case expr.OpAdd:
		return func(f *frame) any { return l(f).(string) + r(f).(string) }
	case expr.OpEq:
		return func(f *frame) any { return l(f).(string) == r(f).(string) }
	case expr.OpNe:
		return func(f *frame) any { return l(f).(string) != r(f).(string) }
	case expr.OpLt:
		return func(f *frame) any { return l(f).(string) < r(f).(string) }
	case expr.OpLe:
		return func(f *frame) any { return l(f).(string) <= r(f).(string) }
	case expr.OpGt:
		return func(f *frame) any { return l(f).(string) > r(f).(string) }
	case expr.OpGe:
		return func(f *frame) any { return l(f).(string) >= r(f).(string) }
	}
	return nil
}

func boolBinary(op expr.BinaryOp, l, r evalFn) evalFn {
	switch op {
	case expr.OpEq:
		return func(f *frame) any { return l(f).(bool) == r(f).(bool) }
	case expr.OpNe:
		return func(f *frame) any { return l(f).(bool) != r(f).(bool) }
	}
	return nil
}

func (c *compiler) unary(n *expr.Unary) (evalFn, error) {
	operand, err := c.compile(n.Operand)
	if err != nil {
		return nil, err
	}
	t := n.Operand.Type()
	switch {
	case n.Op == expr.OpNot && t == expr.BoolType:
		return func(f *frame) any { return !operand(f).(bool) }, nil
	case n.Op == expr.OpNeg && t == expr.IntType:
		return func(f *frame) any { return -operand(f).(int64) }, nil
	case n.Op == expr.OpNeg && t == expr.FloatType:
		return func(f *frame) any { return -operand(f).(float64) }, nil
	}
	return nil, unsupported(n, fmt.Sprintf("%s on %s", n.Op, t))
}
