// Package expr defines the expression trees that flow through fuseq.
//
// One sealed interface, Expr, covers both the scalar logic supplied by users
// (constants, parameter references, captured members, operators, calls,
// conditionals, blocks, lambdas) and the imperative loop code produced by
// fusion (assignments, loops, breaks, array indexing, cursor stepping).
// Keeping both in one tree lets the comparator, the hasher, the printer and
// the backend share a single exhaustive switch over node kinds.
//
// # Identity
//
// Parameters (*Param) and labels (*Label) are identified by pointer. Two
// parameters with the same name are different variables. Substitution and
// extraction rely on this: replacing a parameter never captures a same-named
// variable from an enclosing scope.
//
// # Types
//
// Every node reports a static Type. Types are canonical strings such as
// "int", "[]int", "seq[int]" or "cursor[[]int]", so they can be compared with
// == and hashed directly.
//
// # Runtime values
//
// The backend evaluates trees over this value domain:
//
//	int      int64
//	float    float64
//	bool     bool
//	string   string
//	[]T      []any
//	seq[T]   *Sequence
//	cursor   *Cursor
//	env      *Env
//
// Nothing in this package evaluates expressions. Env.Lookup is the only
// operation that reads a runtime value, and it is used by extraction to hoist
// captured members.
package expr
