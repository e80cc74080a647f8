// Package incremental provides dependency-tracked memoization.
//
// A computation runs with a Frame that records every dependency it reads.
// Its result is cached under its key until one of those dependencies is
// invalidated. Memo keys are themselves dependencies: a computation that
// calls Compute for another key depends on that key, so invalidation
// propagates transitively to everything built on top of a changed input.
//
// There is no ambient context. Callers pass the current Frame explicitly;
// a nil Frame computes without being tracked.
package incremental
