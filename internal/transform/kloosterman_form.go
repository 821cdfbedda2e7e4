package transform

import (
	"fmt"
	"strings"

	"github.com/JohnNDvorak/mollitheta/internal/ir"
	"github.com/JohnNDvorak/mollitheta/internal/ledger"
)

// KloostermanForm folds the additive characters produced by the delta
// method into complete Kloosterman sums S(m,n;c). The consumed characters
// are recorded on the output's KloostermanMeta, which is what the
// phase-conservation check reads.
type KloostermanForm struct{}

// Name implements Transform.
func (KloostermanForm) Name() string { return "KloostermanForm" }

// Apply implements Transform.
func (k KloostermanForm) Apply(in []ir.Term, lg *ledger.Ledger) ([]ir.Term, error) {
	var out []ir.Term
	for _, term := range in {
		meta, ok := ir.FindMeta[ir.DeltaMeta](term)
		if !ok || !meta.Collapsed {
			out = append(out, term)
			continue
		}
		next, err := k.formOne(term, meta.ModulusVariable, lg)
		if err != nil {
			return nil, err
		}
		out = append(out, next)
	}
	return out, nil
}

func (k KloostermanForm) formOne(term ir.Term, modulus string, lg *ledger.Ledger) (ir.Term, error) {
	var kept []ir.Phase
	var consumed []string
	for _, p := range term.Phases {
		if isAdditiveCharacter(p, modulus) {
			consumed = append(consumed, p.Expression)
			continue
		}
		kept = append(kept, p)
	}
	if len(consumed) == 0 {
		return ir.Term{}, fmt.Errorf("kloosterman: term %s carries no additive characters mod %s", term.ID, modulus)
	}

	// The Kloosterman sum is bounded, not unit-modulus; Weil gives
	// |S(m,n;c)| << c^{1/2+eps}. It stays a phase record so the bound
	// layer can see exactly what structure is available.
	kept = append(kept, ir.Phase{
		Expression: fmt.Sprintf("S(m,n;%s)/%s", modulus, modulus),
		DependsOn:  []string{"m", "n", modulus},
	})

	return lg.Create(ledger.Draft{
		Kind:         ir.KindKloosterman,
		Expression:   fmt.Sprintf("sum_%s S(m,n;%s)/%s KERNELS[%s]", modulus, modulus, modulus, term.Expression),
		Variables:    term.Variables,
		Ranges:       term.Ranges,
		Kernels:      term.Kernels,
		Phases:       kept,
		Parents:      []ir.TermID{term.ID},
		Multiplicity: term.Multiplicity,
		Meta: ir.AppendMeta(term.Meta, ir.KloostermanMeta{
			Formed:         true,
			Variables:      []string{"m", "n", modulus},
			ConsumedPhases: consumed,
		}),
		Transform: k.Name(),
		Note:      "additive characters summed over residues into S(m,n;c)",
	})
}

// isAdditiveCharacter recognizes the e(x/c) phases the delta collapse
// emits: an additive exponential depending on the modulus variable.
func isAdditiveCharacter(p ir.Phase, modulus string) bool {
	if !strings.HasPrefix(p.Expression, "e(") {
		return false
	}
	for _, d := range p.DependsOn {
		if d == modulus {
			return true
		}
	}
	return false
}
