// Package ledger is the append-only term arena for one pipeline run.
//
// The ledger is the only place term identifiers are assigned. A term can
// only name parents that already exist in the ledger at its own
// construction time, which rules out lineage cycles by construction.
// Terms are never removed; a run's ledger is discarded as a unit at the
// run boundary.
package ledger
