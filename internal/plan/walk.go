package plan

import (
	"fmt"

	"github.com/roach88/fuseq/internal/expr"
)

// Site identifies which payload of a plan node an expression came from.
type Site int

const (
	SiteSource Site = iota
	SitePredicate
	SiteSelector
	SiteProjection
	SiteSeed
	SiteFunc
)

func (s Site) String() string {
	switch s {
	case SiteSource:
		return "source"
	case SitePredicate:
		return "predicate"
	case SiteSelector:
		return "selector"
	case SiteProjection:
		return "projection"
	case SiteSeed:
		return "seed"
	case SiteFunc:
		return "func"
	}
	return fmt.Sprintf("Site(%d)", int(s))
}

// Walk visits n and then its sources, root first. Returning false stops the
// walk.
func Walk(n Node, fn func(Node) bool) {
	for n != nil {
		if !fn(n) {
			return
		}
		n = sourceOf(n)
	}
}

func sourceOf(n Node) Node {
	switch node := n.(type) {
	case *Source:
		return nil
	case *Where:
		return node.Source
	case *Select:
		return node.Source
	case *SelectMany:
		return node.Source
	case *Aggregate:
		return node.Source
	}
	panic(fmt.Sprintf("plan: unknown node %T", n))
}

// Depth is the number of nodes in the pipeline ending at n.
func Depth(n Node) int {
	d := 0
	Walk(n, func(Node) bool { d++; return true })
	return d
}

// MapExprs rebuilds n with fn applied to every payload expression, in
// pipeline order: the source's payloads before those of the nodes built on
// it, and within a node in field order. Lambda payloads are passed as
// *expr.Lambda and fn must return a lambda for them. Nodes whose payloads
// and source are unchanged are reused.
func MapExprs(n Node, fn func(Site, expr.Expr) expr.Expr) Node {
	switch node := n.(type) {
	case *Source:
		ref := fn(SiteSource, node.Ref)
		if ref == node.Ref {
			return node
		}
		return &Source{Ref: ref, Elem: node.Elem}

	case *Where:
		src := MapExprs(node.Source, fn)
		pred := mapLambda(SitePredicate, node.Predicate, fn)
		if src == node.Source && pred == node.Predicate {
			return node
		}
		return &Where{Source: src, Predicate: pred}

	case *Select:
		src := MapExprs(node.Source, fn)
		sel := mapLambda(SiteSelector, node.Selector, fn)
		if src == node.Source && sel == node.Selector {
			return node
		}
		return &Select{Source: src, Selector: sel}

	case *SelectMany:
		src := MapExprs(node.Source, fn)
		sel := mapLambda(SiteSelector, node.Selector, fn)
		var proj *expr.Lambda
		if node.Projection != nil {
			proj = mapLambda(SiteProjection, node.Projection, fn)
		}
		if src == node.Source && sel == node.Selector && proj == node.Projection {
			return node
		}
		return &SelectMany{Source: src, Selector: sel, Projection: proj}

	case *Aggregate:
		src := MapExprs(node.Source, fn)
		seed := fn(SiteSeed, node.Seed)
		f := mapLambda(SiteFunc, node.Func, fn)
		if src == node.Source && seed == node.Seed && f == node.Func {
			return node
		}
		return &Aggregate{Source: src, Seed: seed, Func: f}
	}
	panic(fmt.Sprintf("plan: unknown node %T", n))
}

func mapLambda(site Site, l *expr.Lambda, fn func(Site, expr.Expr) expr.Expr) *expr.Lambda {
	out, ok := fn(site, l).(*expr.Lambda)
	if !ok {
		panic(fmt.Sprintf("plan: rewrite of %s lambda returned a non-lambda", site))
	}
	return out
}
