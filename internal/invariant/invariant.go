package invariant

import (
	"fmt"

	"github.com/JohnNDvorak/mollitheta/internal/ir"
	"github.com/JohnNDvorak/mollitheta/internal/scale"
)

// CheckTerms runs the per-term predicates over a collection: citation on
// BoundOnly terms, and size-neutrality records on absorbed phases.
func CheckTerms(terms []ir.Term) []Violation {
	var out []Violation
	for _, t := range terms {
		if t.Status == ir.StatusBoundOnly && t.Citation == "" {
			out = append(out, Violation{
				Code:    CodeMissingCitation,
				TermID:  t.ID,
				Message: "BoundOnly term without citation",
			})
		}
		out = append(out, checkAbsorption(t)...)
	}
	return out
}

// checkAbsorption verifies every absorbed phase is covered by an
// AbsorptionMeta record whose neutrality witness is size-neutral.
func checkAbsorption(t ir.Term) []Violation {
	var absorbed []string
	for _, p := range t.Phases {
		if p.Absorbed {
			absorbed = append(absorbed, p.Expression)
		}
	}
	if len(absorbed) == 0 {
		return nil
	}

	covered := map[string]bool{}
	for _, m := range t.Meta {
		am, ok := m.(ir.AbsorptionMeta)
		if !ok {
			continue
		}
		neutral := am.Neutrality.Equal(scale.Unit())
		for _, expr := range am.AbsorbedPhases {
			if neutral {
				covered[expr] = true
			}
		}
	}

	var out []Violation
	for _, expr := range absorbed {
		if !covered[expr] {
			out = append(out, Violation{
				Code:    CodeAbsorptionUnjustified,
				TermID:  t.ID,
				Message: fmt.Sprintf("phase %q absorbed without a size-neutral justification", expr),
			})
		}
	}
	return out
}

// CheckLineage verifies every newly produced output term names the
// transform in its history and at least one stage input among its
// parents. Outputs passed through unchanged (same ID as an input) are
// exempt: they were not produced by this stage.
func CheckLineage(transform string, inputs, outputs []ir.Term) []Violation {
	inputIDs := map[ir.TermID]bool{}
	for _, t := range inputs {
		inputIDs[t.ID] = true
	}

	var out []Violation
	for _, t := range outputs {
		if inputIDs[t.ID] {
			continue
		}
		last := t.LastHistory()
		if last.Transform != transform {
			out = append(out, Violation{
				Code:   CodeOrphanOutput,
				TermID: t.ID,
				Message: fmt.Sprintf("history names %q, want %q",
					last.Transform, transform),
			})
			continue
		}
		linked := false
		for _, p := range t.Parents {
			if inputIDs[p] {
				linked = true
				break
			}
		}
		if !linked {
			out = append(out, Violation{
				Code:    CodeOrphanOutput,
				TermID:  t.ID,
				Message: "no stage input among parents",
			})
		}
	}
	return out
}

// CheckPhases verifies phase conservation across a transform: every phase
// expression present on an input term appears on some output term, or its
// consumption is recorded in an output's stage metadata (Kloosterman
// formation or t-integration), or it is marked absorbed on an output.
func CheckPhases(inputs, outputs []ir.Term) []Violation {
	present := map[string]bool{}
	for _, t := range outputs {
		for _, p := range t.Phases {
			present[p.Expression] = true
		}
	}

	consumed := map[string]bool{}
	for _, t := range outputs {
		if km, ok := ir.FindMeta[ir.KloostermanMeta](t); ok {
			for _, expr := range km.ConsumedPhases {
				consumed[expr] = true
			}
		}
		if im, ok := ir.FindMeta[ir.IntegrationMeta](t); ok {
			for _, expr := range im.ConsumedPhases {
				consumed[expr] = true
			}
		}
	}

	var out []Violation
	reported := map[string]bool{}
	for _, t := range inputs {
		for _, p := range t.Phases {
			expr := p.Expression
			if present[expr] || consumed[expr] || reported[expr] {
				continue
			}
			reported[expr] = true
			out = append(out, Violation{
				Code:    CodePhaseLost,
				TermID:  t.ID,
				Message: fmt.Sprintf("phase %q lost without absorption or recorded consumption", expr),
			})
		}
	}
	return out
}

// CheckKernels verifies kernel conservation across a transform: every
// kernel name on an input term appears on some output term, or its
// removal is documented in an output term's latest history entry.
func CheckKernels(inputs, outputs []ir.Term) []Violation {
	present := map[string]bool{}
	for _, t := range outputs {
		for _, k := range t.Kernels {
			present[k.Name] = true
		}
	}

	documented := map[string]bool{}
	for _, t := range outputs {
		for _, name := range t.LastHistory().RemovedKernels {
			documented[name] = true
		}
	}

	var out []Violation
	reported := map[string]bool{}
	for _, t := range inputs {
		for _, k := range t.Kernels {
			if present[k.Name] || documented[k.Name] || reported[k.Name] {
				continue
			}
			reported[k.Name] = true
			out = append(out, Violation{
				Code:    CodeKernelLost,
				TermID:  t.ID,
				Message: fmt.Sprintf("kernel %q dropped without documented removal", k.Name),
			})
		}
	}
	return out
}
