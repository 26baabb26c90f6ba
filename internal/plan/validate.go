package plan

import (
	"fmt"

	"github.com/roach88/fuseq/internal/expr"
)

// ValidationResult contains the fusability analysis of a plan.
type ValidationResult struct {
	// Errors lists problems that make the plan impossible to compile.
	Errors []string

	// Warnings lists constructs that compile but are probably mistakes or
	// produce needless code.
	Warnings []string
}

// OK reports whether the plan can be lowered and compiled.
func (r ValidationResult) OK() bool { return len(r.Errors) == 0 }

// Validate checks every payload of n.
//
// Rules (errors):
//  1. Every variable a lambda reads is one of its parameters, a variable
//     declared inside it, or one of bound (the context parameters).
//  2. Lambdas appear only as node payloads, never inside a payload body.
//
// Rules (warnings):
//  1. A Where whose predicate is a constant.
//  2. A Select whose selector returns its parameter unchanged.
//
// Validate is a pure function with no side effects.
func Validate(n Node, bound ...*expr.Param) ValidationResult {
	v := &validator{
		errors:   []string{},
		warnings: []string{},
		bound:    make(map[*expr.Param]bool, len(bound)),
	}
	for _, p := range bound {
		v.bound[p] = true
	}
	v.validateNode(n)

	return ValidationResult{Errors: v.errors, Warnings: v.warnings}
}

// validator accumulates findings during traversal.
type validator struct {
	errors   []string
	warnings []string
	bound    map[*expr.Param]bool
}

func (v *validator) addError(format string, args ...any) {
	v.errors = append(v.errors, fmt.Sprintf(format, args...))
}

func (v *validator) addWarning(format string, args ...any) {
	v.warnings = append(v.warnings, fmt.Sprintf(format, args...))
}

func (v *validator) validateNode(n Node) {
	if n == nil {
		v.addError("nil plan node")
		return
	}

	switch node := n.(type) {
	case *Source:
		v.validateExpr("source", node.Ref, nil)
	case *Where:
		v.validateNode(node.Source)
		v.validateLambda("where predicate", node.Predicate)
		if c, ok := node.Predicate.Body.(*expr.Constant); ok {
			v.addWarning("where predicate is always %v", c.Value)
		}
	case *Select:
		v.validateNode(node.Source)
		v.validateLambda("select selector", node.Selector)
		if len(node.Selector.Params) == 1 && node.Selector.Body == expr.Expr(node.Selector.Params[0]) {
			v.addWarning("select selector is the identity")
		}
	case *SelectMany:
		v.validateNode(node.Source)
		v.validateLambda("selectMany selector", node.Selector)
		if node.Projection != nil {
			v.validateLambda("selectMany projection", node.Projection)
		}
	case *Aggregate:
		v.validateNode(node.Source)
		v.validateExpr("aggregate seed", node.Seed, nil)
		v.validateLambda("aggregate func", node.Func)
	default:
		v.addError("unknown plan node %T", n)
	}
}

func (v *validator) validateLambda(where string, l *expr.Lambda) {
	if l == nil {
		v.addError("%s: nil lambda", where)
		return
	}
	v.validateExpr(where, l.Body, l.Params)
}

func (v *validator) validateExpr(where string, e expr.Expr, params []*expr.Param) {
	if e == nil {
		v.addError("%s: nil expression", where)
		return
	}
	scope := make(map[*expr.Param]bool, len(params))
	for _, p := range params {
		scope[p] = true
	}
	reported := make(map[*expr.Param]bool)
	expr.Walk(e, func(n expr.Expr) bool {
		switch x := n.(type) {
		case *expr.Lambda:
			v.addError("%s: nested lambda is not supported", where)
			return false
		case *expr.Block:
			for _, d := range x.Vars {
				scope[d] = true
			}
		case *expr.Param:
			if !scope[x] && !v.bound[x] && !reported[x] {
				reported[x] = true
				v.addError("%s: free variable %q", where, x.Name)
			}
		case *expr.Assign:
			if !scope[x.Target] && !v.bound[x.Target] && !reported[x.Target] {
				reported[x.Target] = true
				v.addError("%s: assignment to free variable %q", where, x.Target.Name)
			}
		}
		return true
	})
}
