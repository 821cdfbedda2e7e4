// Package export renders the claims envelope of a verified run: the
// cited bounds, their derivation paths, and the verification verdict,
// in canonical JSON (RFC 8785 key order, NFC strings, no floats). The
// envelope is the interchange artifact downstream checkers consume, so
// its bytes must be stable across runs and platforms.
package export

import (
	"fmt"

	"github.com/JohnNDvorak/mollitheta/internal/ir"
	"github.com/JohnNDvorak/mollitheta/internal/ledger"
	"github.com/JohnNDvorak/mollitheta/internal/verify"
)

// Envelope serializes the verified run.
//
// Only leaf terms enter the envelope: BoundOnly leaves as cited bounds
// with their full derivation paths, MainTerm leaves as extracted main
// terms. Error leaves are part of the governing sum but carry no claim
// of their own.
func Envelope(runID string, report verify.Report, lg *ledger.Ledger) ([]byte, error) {
	bounds := []any{}
	mains := []any{}

	for _, t := range lg.Leaves() {
		switch t.Status {
		case ir.StatusBoundOnly:
			path, err := lg.DerivationPath(t.ID)
			if err != nil {
				return nil, fmt.Errorf("export: %w", err)
			}
			derivation := make([]any, len(path))
			for i, id := range path {
				derivation[i] = string(id)
			}
			entry := map[string]any{
				"id":           string(t.ID),
				"citation":     t.Citation,
				"exponent":     t.Scale.ExponentString(),
				"log_power":    t.Scale.LogPower,
				"multiplicity": t.Multiplicity,
				"derivation":   derivation,
			}
			if bm, ok := ir.FindMeta[ir.BoundMeta](t); ok {
				entry["family"] = bm.Family
			}
			bounds = append(bounds, entry)
		case ir.StatusMainTerm:
			mains = append(mains, map[string]any{
				"id":        string(t.ID),
				"exponent":  t.Scale.ExponentString(),
				"log_power": t.Scale.LogPower,
			})
		}
	}

	env := map[string]any{
		"run_id":            runID,
		"theta":             report.Theta.RatString(),
		"verdict":           string(report.Verdict),
		"boundary":          report.Boundary.RatString(),
		"exponent_at_theta": report.ExponentAt.RatString(),
		"governing":         report.Governing.String(),
		"bounds":            bounds,
		"main_terms":        mains,
	}
	return ir.MarshalCanonical(env)
}
