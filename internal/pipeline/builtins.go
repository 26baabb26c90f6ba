package pipeline

import (
	"fmt"
	"math"

	"github.com/roach88/fuseq/internal/expr"
)

// Host functions are shared by every loaded pipeline. Calls compare by
// function identity, so two files using range() produce equivalent plans.
var (
	rangeFunc = &expr.Func{
		Name:   "range",
		Params: []expr.Type{expr.IntType, expr.IntType},
		Result: expr.ArrayOf(expr.IntType),
		Impl: func(args []any) any {
			return expr.Range(int(args[0].(int64)), int(max(args[1].(int64), 0)))
		},
	}
	floatFunc = &expr.Func{
		Name:   "float",
		Params: []expr.Type{expr.IntType},
		Result: expr.FloatType,
		Impl:   func(args []any) any { return float64(args[0].(int64)) },
	}
	intFunc = &expr.Func{
		Name:   "int",
		Params: []expr.Type{expr.FloatType},
		Result: expr.IntType,
		Impl:   func(args []any) any { return int64(args[0].(float64)) },
	}
	absInt = &expr.Func{
		Name:   "abs",
		Params: []expr.Type{expr.IntType},
		Result: expr.IntType,
		Impl: func(args []any) any {
			if v := args[0].(int64); v < 0 {
				return -v
			}
			return args[0]
		},
	}
	absFloat = &expr.Func{
		Name:   "abs",
		Params: []expr.Type{expr.FloatType},
		Result: expr.FloatType,
		Impl:   func(args []any) any { return math.Abs(args[0].(float64)) },
	}
	minInt   = intPair("min", func(a, b int64) int64 { return min(a, b) })
	maxInt   = intPair("max", func(a, b int64) int64 { return max(a, b) })
	minFloat = floatPair("min", math.Min)
	maxFloat = floatPair("max", math.Max)
)

func intPair(name string, fn func(a, b int64) int64) *expr.Func {
	return &expr.Func{
		Name:   name,
		Params: []expr.Type{expr.IntType, expr.IntType},
		Result: expr.IntType,
		Impl:   func(args []any) any { return fn(args[0].(int64), args[1].(int64)) },
	}
}

func floatPair(name string, fn func(a, b float64) float64) *expr.Func {
	return &expr.Func{
		Name:   name,
		Params: []expr.Type{expr.FloatType, expr.FloatType},
		Result: expr.FloatType,
		Impl:   func(args []any) any { return fn(args[0].(float64), args[1].(float64)) },
	}
}

// Builtins lists the functions available in lambda bodies.
var Builtins = []string{"abs", "cond", "float", "int", "len", "max", "min", "range"}

func builtin(name string, args []expr.Expr) (expr.Expr, error) {
	switch name {
	case "len":
		if err := arity(name, args, 1); err != nil {
			return nil, err
		}
		if !args[0].Type().IsArray() {
			return nil, fmt.Errorf("len of %s", args[0].Type())
		}
		return &expr.Len{Array: args[0]}, nil

	case "cond":
		if err := arity(name, args, 3); err != nil {
			return nil, err
		}
		if args[0].Type() != expr.BoolType {
			return nil, fmt.Errorf("cond test of type %s", args[0].Type())
		}
		if args[1].Type() != args[2].Type() {
			return nil, fmt.Errorf("cond branches of types %s and %s", args[1].Type(), args[2].Type())
		}
		return expr.If(args[0], args[1], args[2]), nil

	case "range":
		return call(rangeFunc, args)
	case "float":
		return call(floatFunc, args)
	case "int":
		return call(intFunc, args)
	case "abs":
		return numeric(absInt, absFloat, args)
	case "min":
		return numeric(minInt, minFloat, args)
	case "max":
		return numeric(maxInt, maxFloat, args)
	}
	return nil, fmt.Errorf("undefined function %s", name)
}

func arity(name string, args []expr.Expr, n int) error {
	if len(args) != n {
		return fmt.Errorf("%s takes %d arguments, got %d", name, n, len(args))
	}
	return nil
}

func call(fn *expr.Func, args []expr.Expr) (expr.Expr, error) {
	if err := arity(fn.Name, args, len(fn.Params)); err != nil {
		return nil, err
	}
	for i, a := range args {
		if a.Type() != fn.Params[i] {
			return nil, fmt.Errorf("%s argument %d is %s, want %s", fn.Name, i, a.Type(), fn.Params[i])
		}
	}
	return &expr.Call{Fn: fn, Args: args}, nil
}

func numeric(ints, floats *expr.Func, args []expr.Expr) (expr.Expr, error) {
	if len(args) > 0 && args[0].Type() == expr.FloatType {
		return call(floats, args)
	}
	return call(ints, args)
}
