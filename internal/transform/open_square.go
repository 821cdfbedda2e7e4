package transform

import (
	"fmt"

	"github.com/JohnNDvorak/mollitheta/internal/ir"
	"github.com/JohnNDvorak/mollitheta/internal/ledger"
)

// OpenSquare expands |M*zeta|^2 into K*(K+1)/2 cross-term families, one
// per unordered mollifier pair (l1, l2). Off-diagonal pairs carry
// multiplicity 2 and an explicit conjugation phase. No cancellation is
// performed at this step.
type OpenSquare struct {
	K int
}

// Name implements Transform.
func (o OpenSquare) Name() string { return "OpenSquare" }

// Apply implements Transform.
func (o OpenSquare) Apply(in []ir.Term, lg *ledger.Ledger) ([]ir.Term, error) {
	k := o.K
	if k < 1 {
		return nil, fmt.Errorf("open square: K = %d, want >= 1", k)
	}
	var out []ir.Term
	for _, term := range in {
		for l1 := 1; l1 <= k; l1++ {
			for l2 := l1; l2 <= k; l2++ {
				cross, err := o.crossTerm(term, l1, l2, lg)
				if err != nil {
					return nil, err
				}
				out = append(out, cross)
			}
		}
	}
	return out, nil
}

func (o OpenSquare) crossTerm(term ir.Term, l1, l2 int, lg *ledger.Ledger) (ir.Term, error) {
	diagonalPair := l1 == l2
	mult := 2
	if diagonalPair {
		mult = 1
	}

	phases := ir.CopyPhases(term.Phases)
	if !diagonalPair {
		phases = append(phases, ir.Phase{
			Expression:  fmt.Sprintf("(l%d_m / l%d_n)^{it}", l1, l2),
			DependsOn:   []string{"m", "n", "t"},
			Separable:   true,
			UnitModulus: true,
		})
	}

	return lg.Create(ledger.Draft{
		Kind: ir.KindCross,
		Expression: fmt.Sprintf(
			"sum_{m,n} a_{l%d,m} conj(a_{l%d,n}) (l%d*m)^{-1/2-it} (l%d*n)^{-1/2+it} W(m) W(n)",
			l1, l2, l1, l2),
		Variables: []string{"m", "n", "t"},
		Ranges: []ir.Range{
			{Variable: "m", Lower: "1", Upper: "T^theta", Description: "mollifier length"},
			{Variable: "n", Lower: "1", Upper: "T^theta", Description: "mollifier length"},
			{Variable: "t", Lower: "0", Upper: "T"},
		},
		Kernels:      term.Kernels,
		Phases:       phases,
		Parents:      []ir.TermID{term.ID},
		Multiplicity: mult,
		Meta: ir.AppendMeta(term.Meta, ir.CrossMeta{
			L1: l1, L2: l2, DiagonalPair: diagonalPair,
		}),
		Transform: o.Name(),
		Note:      fmt.Sprintf("cross family (l1=%d, l2=%d), multiplicity %d", l1, l2, mult),
	})
}
