package transform

import (
	"github.com/JohnNDvorak/mollitheta/internal/ir"
	"github.com/JohnNDvorak/mollitheta/internal/ledger"
	"github.com/JohnNDvorak/mollitheta/internal/scale"
)

// ApproxFunctionalEq replaces each integral term with two Dirichlet-sum
// terms (short sum, and long sum via the functional equation) plus one
// Error-status tail term. The tail persists in the term set as a visible,
// classifiable term; it is never discarded.
type ApproxFunctionalEq struct{}

// Name implements Transform.
func (ApproxFunctionalEq) Name() string { return "ApproxFunctionalEq" }

// Apply implements Transform.
func (a ApproxFunctionalEq) Apply(in []ir.Term, lg *ledger.Ledger) ([]ir.Term, error) {
	var out []ir.Term
	for _, term := range in {
		produced, err := a.applyOne(term, lg)
		if err != nil {
			return nil, err
		}
		out = append(out, produced...)
	}
	return out, nil
}

func (a ApproxFunctionalEq) applyOne(term ir.Term, lg *ledger.Ledger) ([]ir.Term, error) {
	parents := []ir.TermID{term.ID}
	ranges := []ir.Range{
		{Variable: "n", Lower: "1", Upper: "sqrt(t/2pi)"},
		{Variable: "t", Lower: "0", Upper: "T"},
	}

	short, err := lg.Create(ledger.Draft{
		Kind:       ir.KindDirichletSum,
		Expression: "sum_{n<=x} a_n n^{-1/2-it} W(n/x)",
		Variables:  []string{"n", "t"},
		Ranges:     ranges,
		Kernels: []ir.Kernel{{
			Name:        "W_AFE",
			Support:     "(0, inf)",
			Argument:    "n/sqrt(t/2pi)",
			Description: "approximate functional equation kernel (short sum)",
			Properties: map[string]string{
				"mellin_transform":  "Gamma(s/2) pi^{-s/2} / Gamma(1/4)",
				"residue_structure": "pole at s=1 with residue 1",
				"rapid_decay":       "true",
			},
		}},
		Phases:    term.Phases,
		Parents:   parents,
		Transform: a.Name(),
		Note:      "short sum",
	})
	if err != nil {
		return nil, err
	}

	longPhases := append(ir.CopyPhases(term.Phases), ir.Phase{
		Expression:  "chi(1/2+it)",
		DependsOn:   []string{"t"},
		UnitModulus: true,
	})
	long, err := lg.Create(ledger.Draft{
		Kind:       ir.KindDirichletSum,
		Expression: "chi(s) sum_{n<=x} a_n n^{-1/2+it} W_tilde(n/x)",
		Variables:  []string{"n", "t"},
		Ranges:     ranges,
		Kernels: []ir.Kernel{{
			Name:        "W_AFE_tilde",
			Support:     "(0, inf)",
			Argument:    "n/sqrt(t/2pi)",
			Description: "approximate functional equation kernel (long sum)",
			Properties: map[string]string{
				"mellin_transform":  "Gamma((1-s)/2) pi^{-(1-s)/2} / Gamma(1/4)",
				"residue_structure": "pole at s=0 with residue 1",
				"rapid_decay":       "true",
			},
		}},
		Phases:    longPhases,
		Parents:   parents,
		Transform: a.Name(),
		Note:      "long sum via functional equation",
	})
	if err != nil {
		return nil, err
	}

	tail, err := lg.Create(ledger.Draft{
		Kind:       ir.KindError,
		Status:     ir.StatusError,
		Expression: "O(T^{-A}) AFE truncation tail",
		Scale:      scale.Negligible("afe tail"),
		Parents:    parents,
		Transform:  a.Name(),
		Note:       "truncation tail, rapid decay of W",
	})
	if err != nil {
		return nil, err
	}

	return []ir.Term{short, long, tail}, nil
}
