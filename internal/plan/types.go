package plan

import "github.com/roach88/fuseq/internal/expr"

// Node is a plan node.
//
// This is a sealed interface - only types in this package implement it.
// ElemType is the element type of the sequence the node produces; for
// Aggregate it is the type of the folded value.
type Node interface {
	ElemType() expr.Type
	planNode() // Marker method - seals interface to this package
}

// Source is the start of every pipeline.
//
// Semantics:
//
//	for each element of Ref
//
// Ref is any expression of array or sequence type. Arrays lower to an
// indexed loop; sequences lower to a cursor that is stepped until exhausted.
// Ref is usually a constant holding the data or a captured member; both are
// turned into context parameters by extraction.
type Source struct {
	Ref  expr.Expr
	Elem expr.Type
}

// Where keeps the elements of Source for which Predicate is true.
//
// Semantics:
//
//	for each e of Source: if Predicate(e) then yield e
//
// Predicate takes one parameter of the source's element type and returns
// bool.
type Where struct {
	Source    Node
	Predicate *expr.Lambda
}

// Select maps each element of Source.
//
// Semantics:
//
//	for each e of Source: yield Selector(e)
type Select struct {
	Source   Node
	Selector *expr.Lambda
}

// SelectMany flattens the sequences Selector returns for each element.
//
// Semantics:
//
//	for each e of Source:
//	  for each x of Selector(e):
//	    yield Projection(e, x)   // or x when Projection is nil
//
// Selector must return an array or sequence type. Projection, if present,
// takes (outer element, inner element).
type SelectMany struct {
	Source     Node
	Selector   *expr.Lambda
	Projection *expr.Lambda
}

// Aggregate folds Source into one value.
//
// Semantics:
//
//	acc := Seed
//	for each e of Source: acc = Func(acc, e)
//	return acc
//
// Seed is an expression. A literal seed is a *expr.Constant; a seed
// computed from captured variables is any other scalar expression.
// Aggregate is the only terminal node: it lowers to finished code, not to
// another enumerable.
type Aggregate struct {
	Source Node
	Seed   expr.Expr
	Func   *expr.Lambda
}

func (*Source) planNode()     {}
func (*Where) planNode()      {}
func (*Select) planNode()     {}
func (*SelectMany) planNode() {}
func (*Aggregate) planNode()  {}

func (s *Source) ElemType() expr.Type { return s.Elem }
func (w *Where) ElemType() expr.Type  { return w.Source.ElemType() }
func (s *Select) ElemType() expr.Type { return s.Selector.Body.Type() }

func (s *SelectMany) ElemType() expr.Type {
	if s.Projection != nil {
		return s.Projection.Body.Type()
	}
	return s.Selector.Body.Type().Elem()
}

func (a *Aggregate) ElemType() expr.Type { return a.Seed.Type() }
