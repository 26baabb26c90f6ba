package plan

import (
	"fmt"

	"github.com/roach88/fuseq/internal/expr"
)

// BuildError is a plan-construction error: caller misuse detected while a
// pipeline is being composed.
type BuildError struct {
	Code    BuildErrorCode
	Op      string // builder that rejected the input, e.g. "where"
	Message string
}

// BuildErrorCode categorizes plan-construction errors.
type BuildErrorCode string

const (
	// ErrCodeNilInput indicates a nil source, lambda or seed.
	ErrCodeNilInput BuildErrorCode = "E200"

	// ErrCodeNotSequence indicates a source or selector that is not an array
	// or sequence.
	ErrCodeNotSequence BuildErrorCode = "E201"

	// ErrCodeArity indicates a lambda with the wrong number of parameters.
	ErrCodeArity BuildErrorCode = "E202"

	// ErrCodeTypeMismatch indicates a lambda whose parameter or result type
	// does not fit the pipeline.
	ErrCodeTypeMismatch BuildErrorCode = "E203"

	// ErrCodeTerminal indicates an operator applied to an Aggregate.
	ErrCodeTerminal BuildErrorCode = "E204"
)

func (e *BuildError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Code, e.Op, e.Message)
}

func buildErr(code BuildErrorCode, op, format string, args ...any) *BuildError {
	return &BuildError{Code: code, Op: op, Message: fmt.Sprintf(format, args...)}
}

// From starts a pipeline over ref, which must be of array or sequence type.
func From(ref expr.Expr) (*Source, error) {
	if ref == nil {
		return nil, buildErr(ErrCodeNilInput, "from", "nil source")
	}
	t := ref.Type()
	if !t.IsSequence() {
		return nil, buildErr(ErrCodeNotSequence, "from", "source of type %s is not an array or sequence", t)
	}
	return &Source{Ref: ref, Elem: t.Elem()}, nil
}

// FromArray starts a pipeline over an array value with elements of type elem.
func FromArray(values []any, elem expr.Type) *Source {
	return &Source{Ref: expr.ConstOf(values, expr.ArrayOf(elem)), Elem: elem}
}

// FromSequence starts a pipeline over a one-shot sequence.
func FromSequence(seq *expr.Sequence) *Source {
	return &Source{Ref: expr.ConstOf(seq, expr.SeqOf(seq.Elem())), Elem: seq.Elem()}
}

// NewWhere filters src with a one-parameter predicate returning bool.
func NewWhere(src Node, predicate *expr.Lambda) (*Where, error) {
	if err := checkSource("where", src); err != nil {
		return nil, err
	}
	if err := checkLambda("where", predicate, src.ElemType()); err != nil {
		return nil, err
	}
	if t := predicate.Body.Type(); t != expr.BoolType {
		return nil, buildErr(ErrCodeTypeMismatch, "where", "predicate returns %s, want bool", t)
	}
	return &Where{Source: src, Predicate: predicate}, nil
}

// NewSelect maps src with a one-parameter selector.
func NewSelect(src Node, selector *expr.Lambda) (*Select, error) {
	if err := checkSource("select", src); err != nil {
		return nil, err
	}
	if err := checkLambda("select", selector, src.ElemType()); err != nil {
		return nil, err
	}
	if t := selector.Body.Type(); t == expr.VoidType {
		return nil, buildErr(ErrCodeTypeMismatch, "select", "selector returns no value")
	}
	return &Select{Source: src, Selector: selector}, nil
}

// NewSelectMany flattens the sequences selector returns for each element
// of src. projection may be nil; otherwise it takes (outer, inner).
func NewSelectMany(src Node, selector, projection *expr.Lambda) (*SelectMany, error) {
	if err := checkSource("selectMany", src); err != nil {
		return nil, err
	}
	if err := checkLambda("selectMany", selector, src.ElemType()); err != nil {
		return nil, err
	}
	inner := selector.Body.Type()
	if !inner.IsSequence() {
		return nil, buildErr(ErrCodeNotSequence, "selectMany", "selector returns %s, not an array or sequence", inner)
	}
	if projection != nil {
		if err := checkLambda("selectMany", projection, src.ElemType(), inner.Elem()); err != nil {
			return nil, err
		}
	}
	return &SelectMany{Source: src, Selector: selector, Projection: projection}, nil
}

// NewAggregate folds src. fn takes (accumulator, element) and must return
// the seed's type.
func NewAggregate(src Node, seed expr.Expr, fn *expr.Lambda) (*Aggregate, error) {
	if err := checkSource("aggregate", src); err != nil {
		return nil, err
	}
	if seed == nil {
		return nil, buildErr(ErrCodeNilInput, "aggregate", "nil seed")
	}
	acc := seed.Type()
	if err := checkLambda("aggregate", fn, acc, src.ElemType()); err != nil {
		return nil, err
	}
	if t := fn.Body.Type(); t != acc {
		return nil, buildErr(ErrCodeTypeMismatch, "aggregate", "func returns %s, seed is %s", t, acc)
	}
	return &Aggregate{Source: src, Seed: seed, Func: fn}, nil
}

// NewAggregateSeedExpr folds src starting from the value of a
// zero-parameter seed lambda, evaluated once per execution.
func NewAggregateSeedExpr(src Node, seed *expr.Lambda, fn *expr.Lambda) (*Aggregate, error) {
	if seed == nil {
		return nil, buildErr(ErrCodeNilInput, "aggregate", "nil seed")
	}
	if len(seed.Params) != 0 {
		return nil, buildErr(ErrCodeArity, "aggregate", "seed takes %d parameters, want 0", len(seed.Params))
	}
	return NewAggregate(src, seed.Body, fn)
}

func checkSource(op string, src Node) error {
	if src == nil {
		return buildErr(ErrCodeNilInput, op, "nil source")
	}
	if _, ok := src.(*Aggregate); ok {
		return buildErr(ErrCodeTerminal, op, "source is an aggregate")
	}
	return nil
}

func checkLambda(op string, l *expr.Lambda, params ...expr.Type) error {
	if l == nil {
		return buildErr(ErrCodeNilInput, op, "nil lambda")
	}
	if len(l.Params) != len(params) {
		return buildErr(ErrCodeArity, op, "lambda takes %d parameters, want %d", len(l.Params), len(params))
	}
	for i, p := range l.Params {
		if p.T != params[i] {
			return buildErr(ErrCodeTypeMismatch, op, "parameter %q is %s, want %s", p.Name, p.T, params[i])
		}
	}
	return nil
}
