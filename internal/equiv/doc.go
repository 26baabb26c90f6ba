// Package equiv decides whether two plans or expressions are the same up to
// a consistent renaming of bound variables and loop labels, and hashes them
// consistently with that equality.
//
// Binders (lambda parameters and block variables) are pushed on parallel
// scope stacks. A variable reference is compared by its position on the
// stack, never by name or pointer. A variable that no scope binds is free
// and compares by identity.
//
// Labels are matched through a bidirectional map filled in while the trees
// are walked. Breaks are recorded as they are met and checked against the
// map once the walk is complete, so a break seen before its loop is fine.
//
// Comparer and Hasher switch over the complete set of expression kinds. An
// unknown kind is a programming error and panics.
package equiv
