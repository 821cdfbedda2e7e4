package transform

import (
	"fmt"

	"github.com/JohnNDvorak/mollitheta/internal/ir"
	"github.com/JohnNDvorak/mollitheta/internal/ledger"
)

// DiagonalSplit partitions cross terms by the structural predicate
// am = bn into a Diagonal and an OffDiagonal part.
//
// The predicate is structural: it requires both bilinear index variables
// on the term, not a numeric evaluation. A term for which diagonality
// cannot be structurally determined is not guessed at; it stays Active,
// is excluded from both subsets, and the transform records a warning in
// its history.
type DiagonalSplit struct{}

// Name implements Transform.
func (DiagonalSplit) Name() string { return "DiagonalSplit" }

// Apply implements Transform.
func (d DiagonalSplit) Apply(in []ir.Term, lg *ledger.Ledger) ([]ir.Term, error) {
	var out []ir.Term
	for _, term := range in {
		if !d.decidable(term) {
			undecided, err := lg.Create(ledger.Draft{
				Kind:         term.Kind,
				Expression:   term.Expression,
				Variables:    term.Variables,
				Ranges:       term.Ranges,
				Kernels:      term.Kernels,
				Phases:       term.Phases,
				Scale:        term.Scale,
				Parents:      []ir.TermID{term.ID},
				Multiplicity: term.Multiplicity,
				Meta:         term.Meta,
				Transform:    d.Name(),
				Note:         "diagonal predicate not structurally determinable; term left active",
				Warning:      true,
			})
			if err != nil {
				return nil, err
			}
			out = append(out, undecided)
			continue
		}

		// Diagonal side: oscillations depending on both m and n vanish
		// on am = bn. The dropped phase survives on the off-diagonal
		// sibling, so the stage conserves the phase set.
		var diagPhases []ir.Phase
		for _, p := range term.Phases {
			if dependsOnBoth(p, "m", "n") {
				continue
			}
			diagPhases = append(diagPhases, p)
		}

		diag, err := lg.Create(ledger.Draft{
			Kind:         ir.KindDiagonal,
			Expression:   fmt.Sprintf("DIAG[%s] (am=bn)", term.Expression),
			Variables:    term.Variables,
			Ranges:       term.Ranges,
			Kernels:      term.Kernels,
			Phases:       diagPhases,
			Parents:      []ir.TermID{term.ID},
			Multiplicity: term.Multiplicity,
			Meta:         ir.AppendMeta(term.Meta, ir.SplitMeta{Role: "diagonal"}),
			Transform:    d.Name(),
			Note:         "diagonal part: bilinear oscillations vanish on am=bn",
		})
		if err != nil {
			return nil, err
		}

		offdiag, err := lg.Create(ledger.Draft{
			Kind:         ir.KindOffDiagonal,
			Expression:   fmt.Sprintf("OFFDIAG[%s] (am!=bn)", term.Expression),
			Variables:    term.Variables,
			Ranges:       term.Ranges,
			Kernels:      term.Kernels,
			Phases:       term.Phases,
			Parents:      []ir.TermID{term.ID},
			Multiplicity: term.Multiplicity,
			Meta:         ir.AppendMeta(term.Meta, ir.SplitMeta{Role: "off_diagonal"}),
			Transform:    d.Name(),
			Note:         "off-diagonal part: all phases retained",
		})
		if err != nil {
			return nil, err
		}

		out = append(out, diag, offdiag)
	}
	return out, nil
}

// decidable reports whether the equality predicate am = bn can be read
// off the term's structure: both bilinear indices must be summation
// variables of the term.
func (DiagonalSplit) decidable(term ir.Term) bool {
	return term.HasVariable("m") && term.HasVariable("n")
}

func dependsOnBoth(p ir.Phase, a, b string) bool {
	var hasA, hasB bool
	for _, d := range p.DependsOn {
		if d == a {
			hasA = true
		}
		if d == b {
			hasB = true
		}
	}
	return hasA && hasB
}
