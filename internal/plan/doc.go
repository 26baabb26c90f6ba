// Package plan provides the query plan IR: the declarative shape of a
// pipeline before it is fused into a loop.
//
// ARCHITECTURE:
//
// A plan sits between the front end that builds pipelines and the fusion
// engine that turns them into code:
//
//	[builders] → [plan] → extract → cache lookup → Lower → [fusion IR] → [loop AST]
//
// NODES:
//
// The plan IR is a closed set of nodes:
//   - Source(ref, elem) - an array or one-shot sequence
//   - Where(source, predicate) - keep matching elements
//   - Select(source, selector) - map each element
//   - SelectMany(source, selector, projection?) - flatten per-element sequences
//   - Aggregate(source, seed, func) - fold into one value (terminal)
//
// PERSISTENCE:
//
// Plans are immutable. Composing an operator allocates a new node that
// points at its source, so a prefix can be shared by several pipelines that
// terminate differently:
//
//	evens, _ := plan.NewWhere(src, isEven)
//	sum, _ := plan.NewAggregate(evens, zero, add)
//	max, _ := plan.NewAggregate(evens, minInt, maxOf)
//
// SEALED INTERFACES:
//
// Node is a sealed interface using the marker method pattern. Lower,
// Validate, Walk and MapExprs switch over every node kind, and the
// equivalence comparer does the same. Adding a node kind means updating
// each of them.
//
// ERRORS:
//
// The New* builders check element types as the plan is built and return a
// *BuildError immediately, so a malformed pipeline never reaches lowering.
// Lowering itself only fails for SelectMany selectors whose result is not a
// sequence, which the builders also reject.
package plan
