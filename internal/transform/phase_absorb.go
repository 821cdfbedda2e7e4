package transform

import (
	"fmt"

	"github.com/JohnNDvorak/mollitheta/internal/ir"
	"github.com/JohnNDvorak/mollitheta/internal/ledger"
	"github.com/JohnNDvorak/mollitheta/internal/scale"
)

// PhaseAbsorb folds separable unit-modulus oscillations into the smooth
// kernel weights. The phase records survive on the output with the
// Absorbed flag set; this transform is the only producer of that flag,
// and it always attaches the size-neutrality witness the absorption
// check demands.
type PhaseAbsorb struct{}

// Name implements Transform.
func (PhaseAbsorb) Name() string { return "PhaseAbsorb" }

// Apply implements Transform.
func (a PhaseAbsorb) Apply(in []ir.Term, lg *ledger.Ledger) ([]ir.Term, error) {
	var out []ir.Term
	for _, term := range in {
		var absorbable []string
		for _, p := range term.Phases {
			if p.Separable && p.UnitModulus && !p.Absorbed {
				absorbable = append(absorbable, p.Expression)
			}
		}
		if len(absorbable) == 0 {
			out = append(out, term)
			continue
		}

		phases := ir.CopyPhases(term.Phases)
		for i := range phases {
			if phases[i].Separable && phases[i].UnitModulus && !phases[i].Absorbed {
				phases[i].Absorbed = true
			}
		}

		next, err := lg.Create(ledger.Draft{
			Kind:         term.Kind,
			Status:       term.Status,
			Expression:   fmt.Sprintf("ABSORB[%s]", term.Expression),
			Variables:    term.Variables,
			Ranges:       term.Ranges,
			Kernels:      term.Kernels,
			Phases:       phases,
			Scale:        term.Scale,
			Parents:      []ir.TermID{term.ID},
			Citation:     term.Citation,
			Multiplicity: term.Multiplicity,
			Meta: ir.AppendMeta(term.Meta, ir.AbsorptionMeta{
				AbsorbedPhases: absorbable,
				Justification:  "separable unit-modulus factor folded into the smooth weight",
				Neutrality:     scale.Unit(),
			}),
			Transform: a.Name(),
			Note:      fmt.Sprintf("absorbed %d separable unit-modulus phase(s)", len(absorbable)),
		})
		if err != nil {
			return nil, err
		}
		out = append(out, next)
	}
	return out, nil
}
