package fusion

import (
	"fmt"

	"github.com/roach88/fuseq/internal/expr"
)

// Enumerable is the fusion IR for a not-yet-consumed sequence.
//
// This is a sealed interface - only Linear and Nested implement it.
//
//   - Linear: a single producer.
//   - Nested: a base producer plus a function giving, for each base element,
//     the enumerable to flatten at that point. The nested result may itself
//     be Nested, so flatten depth is unbounded.
//
// GetNested is only ever called with a variable of the base producer's
// element type.
type Enumerable interface {
	ElemType() expr.Type
	enumerableNode() // Marker method - seals interface to this package
}

// Linear is an enumerable backed by one producer.
type Linear struct {
	Producer Producer
}

// Nested is an enumerable that flattens the enumerables produced for each
// element of BaseProducer.
type Nested struct {
	BaseProducer Producer
	GetNested    func(elem *expr.Param) Enumerable
	elem         expr.Type
}

func (Linear) enumerableNode() {}
func (Nested) enumerableNode() {}

func (l Linear) ElemType() expr.Type { return l.Producer.ElemType() }
func (n Nested) ElemType() expr.Type { return n.elem }

// NewNested builds a Nested enumerable. elem is the element type of the
// innermost enumerables, the type of the flattened sequence.
func NewNested(base Producer, elem expr.Type, getNested func(*expr.Param) Enumerable) Nested {
	return Nested{BaseProducer: base, GetNested: getNested, elem: elem}
}

// FromSource returns the Linear enumerable over a sequence-typed expression.
func FromSource(source expr.Expr) (Enumerable, error) {
	p, err := ProducerFor(source)
	if err != nil {
		return nil, err
	}
	return Linear{Producer: p}, nil
}

// Select maps every element through selector, a one-parameter lambda.
//
// On Linear the producer is wrapped so MoveNext binds the selector's result
// to a fresh variable before continuing. On Nested the rewrite is pushed to
// the leaf enumerables.
func Select(e Enumerable, selector *expr.Lambda) Enumerable {
	switch n := e.(type) {
	case Linear:
		return Linear{Producer: &selectProducer{base: n.Producer, selector: selector}}
	case Nested:
		return NewNested(n.BaseProducer, selector.Body.Type(), func(elem *expr.Param) Enumerable {
			return Select(n.GetNested(elem), selector)
		})
	}
	panic(unknownEnumerable(e))
}

// Where keeps the elements for which predicate, a one-parameter lambda
// returning bool, is true. Skipped elements never reach the continuation.
func Where(e Enumerable, predicate *expr.Lambda) Enumerable {
	switch n := e.(type) {
	case Linear:
		return Linear{Producer: &whereProducer{base: n.Producer, predicate: predicate}}
	case Nested:
		return NewNested(n.BaseProducer, n.elem, func(elem *expr.Param) Enumerable {
			return Where(n.GetNested(elem), predicate)
		})
	}
	panic(unknownEnumerable(e))
}

// SelectMany flattens the sequences selector returns for each element.
//
// selector takes one element and must return an array or sequence. When
// projection is non-nil it takes (outer, inner) and its result becomes the
// element of the flattened sequence.
//
// On Linear the producer becomes the base of a Nested enumerable whose
// GetNested lowers the selector's result for that element. On Nested the
// base producer is kept and the rewrite applies to the leaves.
func SelectMany(e Enumerable, selector, projection *expr.Lambda) (Enumerable, error) {
	innerType := selector.Body.Type()
	if !innerType.IsSequence() {
		return nil, &NotSequenceError{Type: innerType}
	}
	elem := innerType.Elem()
	if projection != nil {
		elem = projection.Body.Type()
	}
	return selectMany(e, selector, projection, elem), nil
}

func selectMany(e Enumerable, selector, projection *expr.Lambda, elem expr.Type) Enumerable {
	switch n := e.(type) {
	case Linear:
		return NewNested(n.Producer, elem, func(outer *expr.Param) Enumerable {
			inner, err := FromSource(expr.Substitute(selector, outer))
			if err != nil {
				// The selector type was checked by SelectMany.
				panic(err)
			}
			if projection != nil {
				inner = Select(inner, expr.Partial(projection, outer))
			}
			return inner
		})
	case Nested:
		return NewNested(n.BaseProducer, elem, func(outer *expr.Param) Enumerable {
			return selectMany(n.GetNested(outer), selector, projection, elem)
		})
	}
	panic(unknownEnumerable(e))
}

func unknownEnumerable(e Enumerable) string {
	return fmt.Sprintf("fusion: unknown enumerable %T", e)
}
