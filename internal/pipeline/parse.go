package pipeline

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"strconv"

	"github.com/roach88/fuseq/internal/expr"
)

var binaryOps = map[token.Token]expr.BinaryOp{
	token.ADD:  expr.OpAdd,
	token.SUB:  expr.OpSub,
	token.MUL:  expr.OpMul,
	token.QUO:  expr.OpDiv,
	token.REM:  expr.OpMod,
	token.EQL:  expr.OpEq,
	token.NEQ:  expr.OpNe,
	token.LSS:  expr.OpLt,
	token.LEQ:  expr.OpLe,
	token.GTR:  expr.OpGt,
	token.GEQ:  expr.OpGe,
	token.LAND: expr.OpAnd,
	token.LOR:  expr.OpOr,
}

// scope resolves identifiers in a lambda body: parameters first, then env
// fields.
type scope struct {
	params map[string]*expr.Param
	env    *expr.Env
}

// parseLambda parses body with the given parameter names and types.
func parseLambda(env *expr.Env, names []string, types []expr.Type, body string) (*expr.Lambda, error) {
	if len(names) != len(types) {
		return nil, fmt.Errorf("want %d params, got %d", len(types), len(names))
	}
	s := &scope{params: make(map[string]*expr.Param, len(names)), env: env}
	params := make([]*expr.Param, len(names))
	for i, name := range names {
		if !token.IsIdentifier(name) {
			return nil, fmt.Errorf("param %q is not an identifier", name)
		}
		if _, dup := s.params[name]; dup {
			return nil, fmt.Errorf("duplicate param %q", name)
		}
		params[i] = expr.NewParam(name, types[i])
		s.params[name] = params[i]
	}
	e, err := s.parse(body)
	if err != nil {
		return nil, err
	}
	return expr.Fn(e, params...), nil
}

// parseExpr parses a closed expression over env fields.
func parseExpr(env *expr.Env, src string) (expr.Expr, error) {
	s := &scope{env: env}
	return s.parse(src)
}

func (s *scope) parse(src string) (expr.Expr, error) {
	node, err := parser.ParseExpr(src)
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", src, err)
	}
	return s.convert(node)
}

func (s *scope) convert(n ast.Expr) (expr.Expr, error) {
	switch n := n.(type) {
	case *ast.ParenExpr:
		return s.convert(n.X)

	case *ast.BasicLit:
		return literal(n)

	case *ast.Ident:
		return s.ident(n.Name)

	case *ast.SelectorExpr:
		obj, err := s.convert(n.X)
		if err != nil {
			return nil, err
		}
		return s.selector(obj, n.Sel.Name)

	case *ast.UnaryExpr:
		x, err := s.convert(n.X)
		if err != nil {
			return nil, err
		}
		switch n.Op {
		case token.SUB:
			if !x.Type().IsNumeric() {
				return nil, fmt.Errorf("operator - on %s", x.Type())
			}
			return &expr.Unary{Op: expr.OpNeg, Operand: x}, nil
		case token.NOT:
			if x.Type() != expr.BoolType {
				return nil, fmt.Errorf("operator ! on %s", x.Type())
			}
			return &expr.Unary{Op: expr.OpNot, Operand: x}, nil
		case token.ADD:
			return x, nil
		}
		return nil, fmt.Errorf("unsupported unary operator %s", n.Op)

	case *ast.BinaryExpr:
		return s.binary(n)

	case *ast.IndexExpr:
		arr, err := s.convert(n.X)
		if err != nil {
			return nil, err
		}
		idx, err := s.convert(n.Index)
		if err != nil {
			return nil, err
		}
		if !arr.Type().IsArray() {
			return nil, fmt.Errorf("cannot index %s", arr.Type())
		}
		if idx.Type() != expr.IntType {
			return nil, fmt.Errorf("index of type %s", idx.Type())
		}
		return &expr.Index{Array: arr, Index: idx}, nil

	case *ast.CallExpr:
		return s.call(n)
	}
	return nil, fmt.Errorf("unsupported syntax %T", n)
}

func literal(n *ast.BasicLit) (expr.Expr, error) {
	switch n.Kind {
	case token.INT:
		v, err := strconv.ParseInt(n.Value, 0, 64)
		if err != nil {
			return nil, err
		}
		return expr.Lit(v), nil
	case token.FLOAT:
		v, err := strconv.ParseFloat(n.Value, 64)
		if err != nil {
			return nil, err
		}
		return expr.Lit(v), nil
	case token.STRING:
		v, err := strconv.Unquote(n.Value)
		if err != nil {
			return nil, err
		}
		return expr.Lit(v), nil
	}
	return nil, fmt.Errorf("unsupported literal %s", n.Value)
}

func (s *scope) ident(name string) (expr.Expr, error) {
	if p, ok := s.params[name]; ok {
		return p, nil
	}
	switch name {
	case "true":
		return expr.Lit(true), nil
	case "false":
		return expr.Lit(false), nil
	}
	if s.env == nil {
		return nil, fmt.Errorf("undefined: %s", name)
	}
	return s.capture(s.env, expr.ConstOf(s.env, expr.EnvType), name)
}

// selector reads a field of a nested environment. The receiver must be an
// env-typed expression whose environment is known now, so the field's type
// can be taken from its current value.
func (s *scope) selector(obj expr.Expr, field string) (expr.Expr, error) {
	env := staticEnv(obj)
	if env == nil {
		return nil, fmt.Errorf("selector .%s on %s", field, obj.Type())
	}
	return s.capture(env, obj, field)
}

func (s *scope) capture(env *expr.Env, obj expr.Expr, field string) (expr.Expr, error) {
	v, err := env.Lookup(field)
	if err != nil {
		return nil, fmt.Errorf("undefined: %s", field)
	}
	t, ok := expr.TypeOf(v)
	if !ok {
		return nil, fmt.Errorf("env field %s: cannot infer type of %T", field, v)
	}
	return &expr.Member{Object: obj, Field: field, T: t}, nil
}

func staticEnv(e expr.Expr) *expr.Env {
	switch n := e.(type) {
	case *expr.Constant:
		env, _ := n.Value.(*expr.Env)
		return env
	case *expr.Member:
		outer := staticEnv(n.Object)
		if outer == nil {
			return nil
		}
		v, err := outer.Lookup(n.Field)
		if err != nil {
			return nil
		}
		env, _ := v.(*expr.Env)
		return env
	}
	return nil
}

func (s *scope) binary(n *ast.BinaryExpr) (expr.Expr, error) {
	op, ok := binaryOps[n.Op]
	if !ok {
		return nil, fmt.Errorf("unsupported operator %s", n.Op)
	}
	left, err := s.convert(n.X)
	if err != nil {
		return nil, err
	}
	right, err := s.convert(n.Y)
	if err != nil {
		return nil, err
	}
	lt, rt := left.Type(), right.Type()
	if lt != rt {
		return nil, fmt.Errorf("mismatched types %s %s %s", lt, n.Op, rt)
	}
	switch {
	case op.IsLogical():
		if lt != expr.BoolType {
			return nil, fmt.Errorf("operator %s on %s", n.Op, lt)
		}
	case op == expr.OpEq || op == expr.OpNe:
		if !lt.IsNumeric() && lt != expr.StringType && lt != expr.BoolType {
			return nil, fmt.Errorf("operator %s on %s", n.Op, lt)
		}
	case op.IsComparison():
		if !lt.IsNumeric() && lt != expr.StringType {
			return nil, fmt.Errorf("operator %s on %s", n.Op, lt)
		}
	case op == expr.OpAdd:
		if !lt.IsNumeric() && lt != expr.StringType {
			return nil, fmt.Errorf("operator %s on %s", n.Op, lt)
		}
	default:
		if !lt.IsNumeric() {
			return nil, fmt.Errorf("operator %s on %s", n.Op, lt)
		}
	}
	return expr.Bin(op, left, right), nil
}

func (s *scope) call(n *ast.CallExpr) (expr.Expr, error) {
	id, ok := n.Fun.(*ast.Ident)
	if !ok {
		return nil, fmt.Errorf("unsupported call target %T", n.Fun)
	}
	if _, shadowed := s.params[id.Name]; shadowed {
		return nil, fmt.Errorf("%s is not a function", id.Name)
	}
	args := make([]expr.Expr, len(n.Args))
	for i, a := range n.Args {
		e, err := s.convert(a)
		if err != nil {
			return nil, err
		}
		args[i] = e
	}
	return builtin(id.Name, args)
}
