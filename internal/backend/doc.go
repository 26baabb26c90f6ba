// Package backend compiles loop code into callable Go closures.
//
// Compilation walks the tree once and returns a closure per node; running
// a program is a chain of direct closure calls with variables held in a
// slot array. Operators are specialized on the static operand type at
// compile time, so the running program never dispatches on types.
//
// Compile accepts any well-typed expr tree whose variables are all bound;
// it knows nothing about plans or fusion.
package backend
