package fusion

import (
	"fmt"

	"github.com/roach88/fuseq/internal/expr"
)

// Continuation builds the code that consumes one element. It receives the
// variable holding the current element and returns the code to run next.
//
// Continuations are plain functions over AST values: calling one builds
// code, it never runs anything.
type Continuation func(elem *expr.Param) expr.Expr

// Producer is a code-generation recipe for one forward pass over a sequence.
//
// The three methods describe where code goes, not what happens at run time:
//
//	Initialize(k)  declares the producer's state, sets it up, then runs k
//	HasNext()      a bool expression, true while elements remain
//	MoveNext(k)    advances by one element and runs k(element)
//
// A producer is built fresh for every lowering and never mutated. Wrapping
// producers (select, where) delegate to the producer they wrap and only
// change what MoveNext passes to its continuation.
type Producer interface {
	ElemType() expr.Type
	Initialize(k expr.Expr) expr.Expr
	HasNext() expr.Expr
	MoveNext(k Continuation) expr.Expr
}

// ArrayProducer walks an indexable array with an index and a cached length.
type ArrayProducer struct {
	source expr.Expr
	arr    *expr.Param
	index  *expr.Param
	length *expr.Param
}

// NewArrayProducer returns a producer over the array that source evaluates
// to. The source expression is evaluated once, in Initialize.
func NewArrayProducer(source expr.Expr) *ArrayProducer {
	return &ArrayProducer{
		source: source,
		arr:    expr.NewParam("arr", source.Type()),
		index:  expr.NewParam("i", expr.IntType),
		length: expr.NewParam("n", expr.IntType),
	}
}

func (p *ArrayProducer) ElemType() expr.Type { return p.source.Type().Elem() }

func (p *ArrayProducer) Initialize(k expr.Expr) expr.Expr {
	return &expr.Block{
		Vars: []*expr.Param{p.arr, p.index, p.length},
		Exprs: []expr.Expr{
			expr.Set(p.arr, p.source),
			expr.Set(p.length, &expr.Len{Array: p.arr}),
			expr.Set(p.index, expr.Lit(0)),
			k,
		},
	}
}

func (p *ArrayProducer) HasNext() expr.Expr {
	return expr.Bin(expr.OpLt, p.index, p.length)
}

func (p *ArrayProducer) MoveNext(k Continuation) expr.Expr {
	elem := expr.NewParam("elem", p.ElemType())
	return &expr.Block{
		Vars: []*expr.Param{elem},
		Exprs: []expr.Expr{
			expr.Set(elem, &expr.Index{Array: p.arr, Index: p.index}),
			expr.Set(p.index, expr.Bin(expr.OpAdd, p.index, expr.Lit(1))),
			k(elem),
		},
	}
}

// CursorProducer steps a one-shot sequence through a cursor. It looks one
// element ahead: hasNext holds the result of the last advance.
type CursorProducer struct {
	source  expr.Expr
	cursor  *expr.Param
	hasNext *expr.Param
}

// NewCursorProducer returns a producer over the sequence that source
// evaluates to.
func NewCursorProducer(source expr.Expr) *CursorProducer {
	return &CursorProducer{
		source:  source,
		cursor:  expr.NewParam("cur", expr.CursorOf(source.Type().Elem())),
		hasNext: expr.NewParam("more", expr.BoolType),
	}
}

func (p *CursorProducer) ElemType() expr.Type { return p.source.Type().Elem() }

func (p *CursorProducer) Initialize(k expr.Expr) expr.Expr {
	return &expr.Block{
		Vars: []*expr.Param{p.cursor, p.hasNext},
		Exprs: []expr.Expr{
			expr.Set(p.cursor, &expr.CursorOpen{Source: p.source}),
			expr.Set(p.hasNext, &expr.CursorNext{Cursor: p.cursor}),
			k,
			&expr.CursorClose{Cursor: p.cursor},
		},
	}
}

func (p *CursorProducer) HasNext() expr.Expr { return p.hasNext }

func (p *CursorProducer) MoveNext(k Continuation) expr.Expr {
	elem := expr.NewParam("elem", p.ElemType())
	return &expr.Block{
		Vars: []*expr.Param{elem},
		Exprs: []expr.Expr{
			expr.Set(elem, &expr.CursorCurrent{Cursor: p.cursor}),
			expr.Set(p.hasNext, &expr.CursorNext{Cursor: p.cursor}),
			k(elem),
		},
	}
}

// selectProducer binds each element of base to a fresh variable holding
// the selector's result.
type selectProducer struct {
	base     Producer
	selector *expr.Lambda
}

func (p *selectProducer) ElemType() expr.Type              { return p.selector.Body.Type() }
func (p *selectProducer) Initialize(k expr.Expr) expr.Expr { return p.base.Initialize(k) }
func (p *selectProducer) HasNext() expr.Expr               { return p.base.HasNext() }

func (p *selectProducer) MoveNext(k Continuation) expr.Expr {
	return p.base.MoveNext(func(elem *expr.Param) expr.Expr {
		v := expr.NewParam("sel", p.ElemType())
		return &expr.Block{
			Vars: []*expr.Param{v},
			Exprs: []expr.Expr{
				expr.Set(v, expr.Substitute(p.selector, elem)),
				k(v),
			},
		}
	})
}

// whereProducer only runs its continuation for elements of base that
// satisfy the predicate.
type whereProducer struct {
	base      Producer
	predicate *expr.Lambda
}

func (p *whereProducer) ElemType() expr.Type              { return p.base.ElemType() }
func (p *whereProducer) Initialize(k expr.Expr) expr.Expr { return p.base.Initialize(k) }
func (p *whereProducer) HasNext() expr.Expr               { return p.base.HasNext() }

func (p *whereProducer) MoveNext(k Continuation) expr.Expr {
	return p.base.MoveNext(func(elem *expr.Param) expr.Expr {
		return expr.If(expr.Substitute(p.predicate, elem), k(elem), nil)
	})
}

// ProducerFor returns the initial producer for a sequence-typed expression:
// an ArrayProducer for arrays and a CursorProducer for one-shot sequences.
func ProducerFor(source expr.Expr) (Producer, error) {
	t := source.Type()
	switch {
	case t.IsArray():
		return NewArrayProducer(source), nil
	case t.IsSeq():
		return NewCursorProducer(source), nil
	}
	return nil, &NotSequenceError{Type: t}
}

// NotSequenceError reports an expression that was expected to produce a
// sequence but has a non-sequence type.
type NotSequenceError struct {
	Type expr.Type
}

func (e *NotSequenceError) Error() string {
	return fmt.Sprintf("expression of type %s is not a sequence", e.Type)
}
