package transform

import (
	"fmt"

	"github.com/JohnNDvorak/mollitheta/internal/ir"
	"github.com/JohnNDvorak/mollitheta/internal/ledger"
)

// IntegrateOverT replaces the t-integration on each term with a Fourier
// kernel K(log(am/bn)). The kernel is retained in functional form; it is
// never approximated by a delta object at this stage.
//
// Phases depending only on t are consumed by the integration; their
// consumption is recorded in the output's IntegrationMeta, which is what
// the phase-conservation check reads. Mixed phases lose their
// t-dependence but the phase record survives.
type IntegrateOverT struct{}

// Name implements Transform.
func (IntegrateOverT) Name() string { return "IntegrateOverT" }

// Apply implements Transform.
func (i IntegrateOverT) Apply(in []ir.Term, lg *ledger.Ledger) ([]ir.Term, error) {
	out := make([]ir.Term, 0, len(in))
	for _, term := range in {
		next, err := i.applyOne(term, lg)
		if err != nil {
			return nil, err
		}
		out = append(out, next)
	}
	return out, nil
}

func (i IntegrateOverT) applyOne(term ir.Term, lg *ledger.Ledger) (ir.Term, error) {
	fourier := ir.Kernel{
		Name:        "FourierKernel",
		Support:     "R",
		Argument:    "log(am/bn)",
		Description: "Fourier kernel from integrating (am/bn)^{it} over [0,T]; concentrates near am=bn but is not delta-approximated",
		Properties: map[string]string{
			"is_fourier":          "true",
			"concentration_scale": "1/T",
		},
	}

	variables := make([]string, 0, len(term.Variables))
	for _, v := range term.Variables {
		if v != "t" {
			variables = append(variables, v)
		}
	}
	ranges := make([]ir.Range, 0, len(term.Ranges))
	for _, r := range term.Ranges {
		if r.Variable != "t" {
			ranges = append(ranges, r)
		}
	}

	var phases []ir.Phase
	var consumed []string
	for _, p := range term.Phases {
		deps := p.DependsOn
		if len(deps) == 1 && deps[0] == "t" {
			// Pure t-phase, consumed by the integration.
			consumed = append(consumed, p.Expression)
			continue
		}
		next := p
		if p.Expression != "" {
			var kept []string
			for _, d := range deps {
				if d != "t" {
					kept = append(kept, d)
				}
			}
			next.DependsOn = kept
		}
		phases = append(phases, next)
	}

	return lg.Create(ledger.Draft{
		Kind:         term.Kind,
		Expression:   fmt.Sprintf("sum_{m,n} ... K(log(am/bn)) [from %s]", term.Expression),
		Variables:    variables,
		Ranges:       ranges,
		Kernels:      append(ir.CopyKernels(term.Kernels), fourier),
		Phases:       phases,
		Parents:      []ir.TermID{term.ID},
		Multiplicity: term.Multiplicity,
		Meta: ir.AppendMeta(term.Meta, ir.IntegrationMeta{
			KernelName:     fourier.Name,
			ConsumedPhases: consumed,
		}),
		Transform: i.Name(),
		Note:      "t-integral replaced by Fourier kernel, not delta-approximated",
	})
}
