package plan

import (
	"fmt"

	"github.com/roach88/fuseq/internal/expr"
	"github.com/roach88/fuseq/internal/fusion"
)

// Lower turns a non-terminal plan into its fusion IR by lowering the source
// first and then applying the node's operator.
func Lower(n Node) (fusion.Enumerable, error) {
	switch node := n.(type) {
	case *Source:
		return fusion.FromSource(node.Ref)

	case *Where:
		src, err := Lower(node.Source)
		if err != nil {
			return nil, err
		}
		return fusion.Where(src, node.Predicate), nil

	case *Select:
		src, err := Lower(node.Source)
		if err != nil {
			return nil, err
		}
		return fusion.Select(src, node.Selector), nil

	case *SelectMany:
		src, err := Lower(node.Source)
		if err != nil {
			return nil, err
		}
		return fusion.SelectMany(src, node.Selector, node.Projection)

	case *Aggregate:
		return nil, fmt.Errorf("aggregate is terminal, use LowerAggregate")
	}
	return nil, fmt.Errorf("unsupported plan node: %T", n)
}

// LowerAggregate lowers a complete pipeline to the loop code computing its
// value.
func LowerAggregate(a *Aggregate) (expr.Expr, error) {
	src, err := Lower(a.Source)
	if err != nil {
		return nil, fmt.Errorf("lower %T: %w", a.Source, err)
	}
	return fusion.Aggregate(src, a.Seed, a.Func), nil
}
