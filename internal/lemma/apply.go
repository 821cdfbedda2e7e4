package lemma

import (
	"fmt"

	"github.com/JohnNDvorak/mollitheta/internal/ir"
	"github.com/JohnNDvorak/mollitheta/internal/ledger"
)

// ApplyBounds is the transform that closes out a reduction: every Active
// term is reclassified BoundOnly by the first applicable lemma, carrying
// the lemma's citation and exponent. MainTerm and Error terms pass
// through; their sizes were fixed by the transforms that produced them.
//
// An Active term no lemma covers fails the stage. The run cannot end
// with an unbounded term.
type ApplyBounds struct {
	Lemmas []Lemma
}

// Name implements the transform interface.
func (ApplyBounds) Name() string { return "ApplyBounds" }

// Apply implements the transform interface.
func (b ApplyBounds) Apply(in []ir.Term, lg *ledger.Ledger) ([]ir.Term, error) {
	var out []ir.Term
	for _, term := range in {
		if term.Status != ir.StatusActive {
			out = append(out, term)
			continue
		}

		bounded, err := b.boundOne(term, lg)
		if err != nil {
			return nil, err
		}
		out = append(out, bounded)
	}
	return out, nil
}

func (b ApplyBounds) boundOne(term ir.Term, lg *ledger.Ledger) (ir.Term, error) {
	for _, l := range b.Lemmas {
		if !l.Applies(term) {
			continue
		}
		entry := l.Entry()
		return lg.Create(ledger.Draft{
			Kind:         term.Kind,
			Status:       ir.StatusBoundOnly,
			Expression:   fmt.Sprintf("BOUND[%s] << T^{%s}", term.Expression, entry.Exponent),
			Variables:    term.Variables,
			Ranges:       term.Ranges,
			Kernels:      term.Kernels,
			Phases:       term.Phases,
			Scale:        l.Bound(term),
			Parents:      []ir.TermID{term.ID},
			Citation:     entry.Citation,
			Multiplicity: term.Multiplicity,
			Meta: ir.AppendMeta(term.Meta, ir.BoundMeta{
				Family:        entry.Family,
				Citation:      entry.Citation,
				ErrorExponent: entry.Exponent.String(),
			}),
			Transform: b.Name(),
			Note:      fmt.Sprintf("bounded via %s", l.Name()),
		})
	}
	return ir.Term{}, fmt.Errorf("apply bounds: no lemma applies to active term %s (kind %s)", term.ID, term.Kind)
}
