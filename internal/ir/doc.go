// Package ir defines the immutable term model: one Term per symbolic
// object in the derivation, with its kernels, phases, ranges, lineage
// history and stage metadata.
//
// This package contains value types and per-term validation only. All
// other internal packages import ir; ir imports nothing internal except
// scale. Terms are never mutated after construction: transforms build new
// terms through the ledger, which is the only place identifiers are
// assigned.
package ir
