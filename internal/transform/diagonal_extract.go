package transform

import (
	"fmt"

	"github.com/JohnNDvorak/mollitheta/internal/ir"
	"github.com/JohnNDvorak/mollitheta/internal/ledger"
	"github.com/JohnNDvorak/mollitheta/internal/scale"
)

// DiagonalExtract evaluates the diagonal terms am = bn. Each diagonal
// term yields a MainTerm of size T (log T)^LogPower together with a
// residual Error term of size T^{1/2} from shifting the evaluation
// contour. Non-diagonal terms pass through untouched.
type DiagonalExtract struct {
	// LogPower is the log power of the extracted main term. For a
	// K-piece mollifier the diagonal evaluation contributes (log T)^{K-1}.
	LogPower int
}

// Name implements Transform.
func (DiagonalExtract) Name() string { return "DiagonalExtract" }

// Apply implements Transform.
func (e DiagonalExtract) Apply(in []ir.Term, lg *ledger.Ledger) ([]ir.Term, error) {
	var out []ir.Term
	for _, term := range in {
		if term.Kind != ir.KindDiagonal {
			out = append(out, term)
			continue
		}
		main, residual, err := e.extractOne(term, lg)
		if err != nil {
			return nil, err
		}
		out = append(out, main, residual)
	}
	return out, nil
}

func (e DiagonalExtract) extractOne(term ir.Term, lg *ledger.Ledger) (ir.Term, ir.Term, error) {
	parents := []ir.TermID{term.ID}

	// The kernel is evaluated at its concentration point on the diagonal;
	// the residual below retains it, so the kernel set is conserved across
	// the stage's outputs.
	main, err := lg.Create(ledger.Draft{
		Kind:       ir.KindDiagonal,
		Status:     ir.StatusMainTerm,
		Expression: fmt.Sprintf("c_main * T * (log T)^%d [diagonal of %s]", e.LogPower, term.Expression),
		Scale:      scale.New(scale.Const(1, 1), e.LogPower, "diagonal main term"),
		Parents:    parents,
		Meta:       ir.AppendMeta(term.Meta, ir.ExtractMeta{Role: "main_term", LogPower: e.LogPower}),
		Transform:  e.Name(),
		Note:       "leading diagonal contribution from the kernel residue",
	})
	if err != nil {
		return ir.Term{}, ir.Term{}, err
	}

	residual, err := lg.Create(ledger.Draft{
		Kind:       ir.KindError,
		Status:     ir.StatusError,
		Expression: fmt.Sprintf("O(T^{1/2}) [diagonal residual of %s]", term.Expression),
		Variables:  term.Variables,
		Ranges:     term.Ranges,
		Kernels:    term.Kernels,
		Phases:     term.Phases,
		Scale:      scale.New(scale.Const(1, 2), 0, "diagonal contour residual"),
		Parents:    parents,
		Meta:       ir.AppendMeta(term.Meta, ir.ExtractMeta{Role: "residual"}),
		Transform:  e.Name(),
		Note:       "residual from shifting the kernel contour",
	})
	if err != nil {
		return ir.Term{}, ir.Term{}, err
	}

	return main, residual, nil
}
