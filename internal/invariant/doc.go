// Package invariant holds the cross-cutting predicates re-validated at
// the two fixed enforcement points: term construction (citation, lineage)
// and post-transform (phase and kernel conservation between a stage's
// input and output sets).
//
// The checks are pure functions over term collections. A non-empty
// violation list after a transform aborts that stage and fails the run.
package invariant
