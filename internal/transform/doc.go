// Package transform implements the structural reduction steps of the
// derivation and the strict runner that executes them.
//
// A transform maps an ordered collection of input terms to an ordered
// collection of output terms, constructing every new term through the
// run's ledger. Input terms are values and are never mutated. The runner
// stages each call against a clone of the ledger and re-validates the
// conservation invariants before committing; a violation rolls the stage
// back and fails the run.
package transform
