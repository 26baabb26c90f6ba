// Package executor runs plans: it extracts context parameters, looks the
// parameterized plan up in a compiled-plan cache, compiles it on a miss and
// invokes the compiled loop with the extracted values.
//
// A pipeline that differs from an earlier one only in captured values (a
// threshold, a seed, the source array) hits the cache and is not compiled
// again.
//
// Basic usage:
//
//	ex := executor.New()
//	v, err := ex.Execute(ctx, agg)
//
// Executors created without WithCache share one process-wide cache. Tests
// and callers that need isolation pass their own.
package executor
