package transform

import (
	"fmt"

	"github.com/JohnNDvorak/mollitheta/internal/ir"
	"github.com/JohnNDvorak/mollitheta/internal/ledger"
)

const (
	deltaKernelName          = "DeltaMethodKernel"
	deltaKernelCollapsedName = "DeltaMethodKernelCollapsed"
)

// DeltaMethodSetup introduces the delta-method detection of the equation
// am = bn + h on off-diagonal terms: a new modulus variable c with its
// summation range and the uncollapsed delta kernel. No additive
// characters appear yet; they are produced by DeltaMethodCollapse.
type DeltaMethodSetup struct{}

// Name implements Transform.
func (DeltaMethodSetup) Name() string { return "DeltaMethodSetup" }

// Apply implements Transform.
func (d DeltaMethodSetup) Apply(in []ir.Term, lg *ledger.Ledger) ([]ir.Term, error) {
	var out []ir.Term
	for _, term := range in {
		if term.Kind != ir.KindOffDiagonal {
			out = append(out, term)
			continue
		}

		deltaKernel := ir.Kernel{
			Name:        deltaKernelName,
			Support:     "R",
			Argument:    "(am - bn)/c",
			Description: "delta-method detector for am=bn+h before stationary-phase collapse",
			Properties: map[string]string{
				"modulus_variable": "c",
				"collapsed":        "false",
			},
		}

		next, err := lg.Create(ledger.Draft{
			Kind:         term.Kind,
			Expression:   fmt.Sprintf("sum_c DELTA[%s]", term.Expression),
			Variables:    append(ir.CopyVariables(term.Variables), "c"),
			Ranges:       append(ir.CopyRanges(term.Ranges), ir.Range{Variable: "c", Lower: "1", Upper: "C(T,theta)", Description: "delta-method modulus"}),
			Kernels:      append(ir.CopyKernels(term.Kernels), deltaKernel),
			Phases:       term.Phases,
			Parents:      []ir.TermID{term.ID},
			Multiplicity: term.Multiplicity,
			Meta:         ir.AppendMeta(term.Meta, ir.DeltaMeta{Stage: "setup", ModulusVariable: "c"}),
			Transform:    d.Name(),
			Note:         "delta-method modulus sum introduced, kernel uncollapsed",
		})
		if err != nil {
			return nil, err
		}
		out = append(out, next)
	}
	return out, nil
}

// DeltaMethodCollapse evaluates the delta kernel by stationary phase,
// replacing it with its collapsed form and making the additive characters
// e(am/c), e(-bn/c) explicit. The removal of the uncollapsed kernel is
// documented on the output's history entry.
type DeltaMethodCollapse struct{}

// Name implements Transform.
func (DeltaMethodCollapse) Name() string { return "DeltaMethodCollapse" }

// Apply implements Transform.
func (d DeltaMethodCollapse) Apply(in []ir.Term, lg *ledger.Ledger) ([]ir.Term, error) {
	var out []ir.Term
	for _, term := range in {
		meta, ok := ir.FindMeta[ir.DeltaMeta](term)
		if !ok || meta.Stage != "setup" {
			out = append(out, term)
			continue
		}

		kernels := make([]ir.Kernel, 0, len(term.Kernels))
		removed := false
		for _, k := range term.Kernels {
			if k.Name == deltaKernelName {
				removed = true
				continue
			}
			kernels = append(kernels, k)
		}
		if !removed {
			return nil, fmt.Errorf("delta collapse: term %s is in setup stage but carries no %s kernel", term.ID, deltaKernelName)
		}
		kernels = append(kernels, ir.Kernel{
			Name:        deltaKernelCollapsedName,
			Support:     "(0, inf)",
			Argument:    "am/c, bn/c",
			Description: "stationary-phase collapse of the delta detector",
			Properties: map[string]string{
				"modulus_variable": meta.ModulusVariable,
				"collapsed":        "true",
			},
		})

		c := meta.ModulusVariable
		phases := append(ir.CopyPhases(term.Phases),
			ir.Phase{
				Expression:  fmt.Sprintf("e(am/%s)", c),
				Separable:   false,
				UnitModulus: true,
				DependsOn:   []string{"m", c},
			},
			ir.Phase{
				Expression:  fmt.Sprintf("e(-bn/%s)", c),
				Separable:   false,
				UnitModulus: true,
				DependsOn:   []string{"n", c},
			},
		)

		next, err := lg.Create(ledger.Draft{
			Kind:           term.Kind,
			Expression:     fmt.Sprintf("sum_%s e(am/%s) e(-bn/%s) COLLAPSED[%s]", c, c, c, term.Expression),
			Variables:      term.Variables,
			Ranges:         term.Ranges,
			Kernels:        kernels,
			Phases:         phases,
			Parents:        []ir.TermID{term.ID},
			Multiplicity:   term.Multiplicity,
			Meta:           ir.AppendMeta(term.Meta, ir.DeltaMeta{Stage: "collapsed", Collapsed: true, ModulusVariable: c}),
			Transform:      d.Name(),
			Note:           "delta kernel collapsed by stationary phase; additive characters explicit",
			RemovedKernels: []string{deltaKernelName},
		})
		if err != nil {
			return nil, err
		}
		out = append(out, next)
	}
	return out, nil
}
