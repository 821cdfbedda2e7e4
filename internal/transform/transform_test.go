package transform

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JohnNDvorak/mollitheta/internal/invariant"
	"github.com/JohnNDvorak/mollitheta/internal/ir"
	"github.com/JohnNDvorak/mollitheta/internal/ledger"
)

func seedIntegral(t *testing.T, lg *ledger.Ledger) ir.Term {
	t.Helper()
	seed, err := lg.Create(ledger.Draft{
		Kind:       ir.KindIntegral,
		Expression: "int_0^T |M(1/2+it) zeta(1/2+it)|^2 dt",
		Variables:  []string{"t"},
		Ranges:     []ir.Range{{Variable: "t", Lower: "0", Upper: "T"}},
		Transform:  "Seed",
	})
	require.NoError(t, err)
	return seed
}

// dropKernelTransform deletes a kernel without documenting the removal.
// Exists to exercise the runner's rollback path.
type dropKernelTransform struct{ kernel string }

func (dropKernelTransform) Name() string { return "DropKernel" }

func (d dropKernelTransform) Apply(in []ir.Term, lg *ledger.Ledger) ([]ir.Term, error) {
	var out []ir.Term
	for _, term := range in {
		var kept []ir.Kernel
		for _, k := range term.Kernels {
			if k.Name != d.kernel {
				kept = append(kept, k)
			}
		}
		next, err := lg.Create(ledger.Draft{
			Kind:       term.Kind,
			Expression: term.Expression,
			Variables:  term.Variables,
			Ranges:     term.Ranges,
			Kernels:    kept,
			Phases:     term.Phases,
			Parents:    []ir.TermID{term.ID},
			Transform:  "DropKernel",
		})
		if err != nil {
			return nil, err
		}
		out = append(out, next)
	}
	return out, nil
}

func TestRunner_RunStage_CommitsOnSuccess(t *testing.T) {
	lg := ledger.New()
	seed := seedIntegral(t, lg)
	r := NewRunner(lg, nil)

	out, err := r.RunStage(ApproxFunctionalEq{}, []ir.Term{seed})
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, 4, lg.Len())

	stages := r.Stages()
	require.Len(t, stages, 1)
	assert.Equal(t, StageRecord{Stage: "ApproxFunctionalEq", Inputs: 1, Outputs: 3}, stages[0])
}

func TestRunner_RunStage_RollsBackOnViolation(t *testing.T) {
	lg := ledger.New()
	seed, err := lg.Create(ledger.Draft{
		Kind:       ir.KindDirichletSum,
		Expression: "sum with kernel",
		Kernels:    []ir.Kernel{{Name: "W_test"}},
		Transform:  "Seed",
	})
	require.NoError(t, err)
	before := lg.Len()

	r := NewRunner(lg, nil)
	out, err := r.RunStage(dropKernelTransform{kernel: "W_test"}, []ir.Term{seed})
	require.Error(t, err)
	assert.Nil(t, out)
	assert.True(t, invariant.IsViolation(err))

	var ie *invariant.Error
	require.True(t, errors.As(err, &ie))
	require.Len(t, ie.Violations, 1)
	assert.Equal(t, invariant.CodeKernelLost, ie.Violations[0].Code)

	// Rolled back: the dropped-kernel successor never entered the ledger.
	assert.Equal(t, before, lg.Len())
	assert.Empty(t, r.Stages())
}

func TestRunner_RunStage_DocumentedRemovalCommits(t *testing.T) {
	lg := ledger.New()
	seed, err := lg.Create(ledger.Draft{
		Kind:       ir.KindOffDiagonal,
		Expression: "delta setup",
		Variables:  []string{"m", "n", "c"},
		Kernels:    []ir.Kernel{{Name: "DeltaMethodKernel"}},
		Meta:       []ir.StageMeta{ir.DeltaMeta{Stage: "setup", ModulusVariable: "c"}},
		Transform:  "Seed",
	})
	require.NoError(t, err)

	r := NewRunner(lg, nil)
	out, err := r.RunStage(DeltaMethodCollapse{}, []ir.Term{seed})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, []string{"DeltaMethodKernel"}, out[0].LastHistory().RemovedKernels)
}

func TestApproxFunctionalEq_Apply_ShortLongTail(t *testing.T) {
	lg := ledger.New()
	seed := seedIntegral(t, lg)

	out, err := ApproxFunctionalEq{}.Apply([]ir.Term{seed}, lg)
	require.NoError(t, err)
	require.Len(t, out, 3)

	short, long, tail := out[0], out[1], out[2]
	assert.Equal(t, ir.KindDirichletSum, short.Kind)
	assert.Equal(t, ir.KindDirichletSum, long.Kind)
	assert.Equal(t, ir.KindError, tail.Kind)
	assert.Equal(t, ir.StatusError, tail.Status)

	// The long sum carries the functional-equation factor.
	require.Len(t, long.Phases, 1)
	assert.Equal(t, "chi(1/2+it)", long.Phases[0].Expression)
	assert.True(t, long.Phases[0].UnitModulus)

	// The tail persists as a term; it is not silently discarded.
	assert.True(t, lg.Contains(tail.ID))
	assert.Equal(t, []ir.TermID{seed.ID}, tail.Parents)
}

func TestOpenSquare_Apply_PairFamilies(t *testing.T) {
	lg := ledger.New()
	seed := seedIntegral(t, lg)

	out, err := OpenSquare{K: 3}.Apply([]ir.Term{seed}, lg)
	require.NoError(t, err)
	require.Len(t, out, 6) // K(K+1)/2

	diagonalPairs, offPairs := 0, 0
	for _, term := range out {
		meta, ok := ir.FindMeta[ir.CrossMeta](term)
		require.True(t, ok)
		if meta.DiagonalPair {
			diagonalPairs++
			assert.Equal(t, 1, term.Multiplicity)
			assert.Empty(t, term.Phases)
		} else {
			offPairs++
			assert.Equal(t, 2, term.Multiplicity)
			require.Len(t, term.Phases, 1)
			assert.True(t, term.Phases[0].UnitModulus)
			assert.True(t, term.Phases[0].Separable)
		}
	}
	assert.Equal(t, 3, diagonalPairs)
	assert.Equal(t, 3, offPairs)
}

func TestOpenSquare_Apply_RejectsBadK(t *testing.T) {
	lg := ledger.New()
	seed := seedIntegral(t, lg)

	_, err := OpenSquare{K: 0}.Apply([]ir.Term{seed}, lg)
	require.Error(t, err)
}

func TestIntegrateOverT_Apply_ConsumesPureTPhases(t *testing.T) {
	lg := ledger.New()
	seed, err := lg.Create(ledger.Draft{
		Kind:      ir.KindCross,
		Variables: []string{"m", "n", "t"},
		Ranges: []ir.Range{
			{Variable: "m", Lower: "1", Upper: "T^theta"},
			{Variable: "n", Lower: "1", Upper: "T^theta"},
			{Variable: "t", Lower: "0", Upper: "T"},
		},
		Phases: []ir.Phase{
			{Expression: "chi(1/2+it)", DependsOn: []string{"t"}, UnitModulus: true},
			{Expression: "(l1_m / l2_n)^{it}", DependsOn: []string{"m", "n", "t"}, Separable: true, UnitModulus: true},
		},
		Transform: "Seed",
	})
	require.NoError(t, err)

	out, err := IntegrateOverT{}.Apply([]ir.Term{seed}, lg)
	require.NoError(t, err)
	require.Len(t, out, 1)
	next := out[0]

	assert.False(t, next.HasVariable("t"))
	_, hasT := next.RangeFor("t")
	assert.False(t, hasT)
	assert.Contains(t, next.KernelNames(), "FourierKernel")

	// The pure t-phase is gone but its consumption is on record.
	meta, ok := ir.FindMeta[ir.IntegrationMeta](next)
	require.True(t, ok)
	assert.Equal(t, "FourierKernel", meta.KernelName)
	assert.Equal(t, []string{"chi(1/2+it)"}, meta.ConsumedPhases)

	// The mixed phase survives with its t-dependence stripped.
	require.Len(t, next.Phases, 1)
	assert.Equal(t, "(l1_m / l2_n)^{it}", next.Phases[0].Expression)
	assert.Equal(t, []string{"m", "n"}, next.Phases[0].DependsOn)

	assert.Empty(t, invariant.CheckPhases([]ir.Term{seed}, out))
}

func TestDiagonalSplit_Apply_SplitsDecidableTerm(t *testing.T) {
	lg := ledger.New()
	seed, err := lg.Create(ledger.Draft{
		Kind:      ir.KindCross,
		Variables: []string{"m", "n"},
		Phases: []ir.Phase{
			{Expression: "(l1_m / l2_n)^{it}", DependsOn: []string{"m", "n"}, Separable: true, UnitModulus: true},
			{Expression: "e(alpha m)", DependsOn: []string{"m"}, UnitModulus: true},
		},
		Kernels:   []ir.Kernel{{Name: "FourierKernel"}},
		Transform: "Seed",
	})
	require.NoError(t, err)

	out, err := DiagonalSplit{}.Apply([]ir.Term{seed}, lg)
	require.NoError(t, err)
	require.Len(t, out, 2)

	diag, off := out[0], out[1]
	assert.Equal(t, ir.KindDiagonal, diag.Kind)
	assert.Equal(t, ir.KindOffDiagonal, off.Kind)

	dm, ok := ir.FindMeta[ir.SplitMeta](diag)
	require.True(t, ok)
	assert.Equal(t, "diagonal", dm.Role)
	om, ok := ir.FindMeta[ir.SplitMeta](off)
	require.True(t, ok)
	assert.Equal(t, "off_diagonal", om.Role)

	// The bilinear oscillation vanishes on the diagonal side only; the
	// off-diagonal sibling keeps it, so the stage conserves phases.
	assert.Equal(t, []string{"e(alpha m)"}, diag.PhaseExpressions())
	assert.ElementsMatch(t, []string{"(l1_m / l2_n)^{it}", "e(alpha m)"}, off.PhaseExpressions())
	assert.Empty(t, invariant.CheckPhases([]ir.Term{seed}, out))
}

func TestDiagonalSplit_Apply_UndecidableStaysActiveWithWarning(t *testing.T) {
	lg := ledger.New()
	seed, err := lg.Create(ledger.Draft{
		Kind:      ir.KindCross,
		Variables: []string{"m"}, // n missing: predicate not structural
		Transform: "Seed",
	})
	require.NoError(t, err)

	out, err := DiagonalSplit{}.Apply([]ir.Term{seed}, lg)
	require.NoError(t, err)
	require.Len(t, out, 1)

	undecided := out[0]
	assert.Equal(t, ir.StatusActive, undecided.Status)
	assert.NotEqual(t, ir.KindDiagonal, undecided.Kind)
	assert.NotEqual(t, ir.KindOffDiagonal, undecided.Kind)
	assert.True(t, undecided.LastHistory().Warning)
}

func TestDiagonalExtract_Apply_MainTermAndResidual(t *testing.T) {
	lg := ledger.New()
	diag, err := lg.Create(ledger.Draft{
		Kind:      ir.KindDiagonal,
		Variables: []string{"m", "n"},
		Kernels:   []ir.Kernel{{Name: "FourierKernel"}},
		Transform: "Seed",
	})
	require.NoError(t, err)
	other, err := lg.Create(ledger.Draft{
		Kind:      ir.KindOffDiagonal,
		Transform: "Seed",
	})
	require.NoError(t, err)

	out, err := DiagonalExtract{LogPower: 2}.Apply([]ir.Term{diag, other}, lg)
	require.NoError(t, err)
	require.Len(t, out, 3)

	main, residual := out[0], out[1]
	assert.Equal(t, ir.StatusMainTerm, main.Status)
	assert.Equal(t, "1", main.Scale.Exp.String())
	assert.Equal(t, 2, main.Scale.LogPower)

	assert.Equal(t, ir.StatusError, residual.Status)
	assert.Equal(t, "1/2", residual.Scale.Exp.String())
	assert.Contains(t, residual.KernelNames(), "FourierKernel")

	// Non-diagonal input passes through untouched.
	assert.Equal(t, other.ID, out[2].ID)
	assert.Empty(t, invariant.CheckKernels([]ir.Term{diag, other}, out))
}

func TestDeltaMethodSetup_Apply_AddsModulusAndKernel(t *testing.T) {
	lg := ledger.New()
	off, err := lg.Create(ledger.Draft{
		Kind:      ir.KindOffDiagonal,
		Variables: []string{"m", "n"},
		Transform: "Seed",
	})
	require.NoError(t, err)

	out, err := DeltaMethodSetup{}.Apply([]ir.Term{off}, lg)
	require.NoError(t, err)
	require.Len(t, out, 1)
	next := out[0]

	assert.True(t, next.HasVariable("c"))
	cRange, ok := next.RangeFor("c")
	require.True(t, ok)
	assert.Equal(t, "C(T,theta)", cRange.Upper)
	assert.Contains(t, next.KernelNames(), "DeltaMethodKernel")

	meta, ok := ir.FindMeta[ir.DeltaMeta](next)
	require.True(t, ok)
	assert.Equal(t, "setup", meta.Stage)
	assert.False(t, meta.Collapsed)
	assert.Equal(t, "c", meta.ModulusVariable)
	// No additive characters yet.
	assert.Empty(t, next.Phases)
}

func TestDeltaMethodCollapse_Apply_SwapsKernelAndEmitsCharacters(t *testing.T) {
	lg := ledger.New()
	off, err := lg.Create(ledger.Draft{
		Kind:      ir.KindOffDiagonal,
		Variables: []string{"m", "n"},
		Transform: "Seed",
	})
	require.NoError(t, err)

	setup, err := DeltaMethodSetup{}.Apply([]ir.Term{off}, lg)
	require.NoError(t, err)
	out, err := DeltaMethodCollapse{}.Apply(setup, lg)
	require.NoError(t, err)
	require.Len(t, out, 1)
	next := out[0]

	assert.NotContains(t, next.KernelNames(), "DeltaMethodKernel")
	assert.Contains(t, next.KernelNames(), "DeltaMethodKernelCollapsed")
	assert.Equal(t, []string{"DeltaMethodKernel"}, next.LastHistory().RemovedKernels)

	assert.ElementsMatch(t, []string{"e(am/c)", "e(-bn/c)"}, next.PhaseExpressions())
	meta, ok := ir.FindMeta[ir.DeltaMeta](next)
	require.True(t, ok)
	assert.Equal(t, "collapsed", meta.Stage)
	assert.True(t, meta.Collapsed)

	assert.Empty(t, invariant.CheckKernels(setup, out))
}

func TestDeltaMethodCollapse_Apply_PassesThroughNonSetupTerms(t *testing.T) {
	lg := ledger.New()
	plain, err := lg.Create(ledger.Draft{
		Kind:      ir.KindDiagonal,
		Transform: "Seed",
	})
	require.NoError(t, err)

	out, err := DeltaMethodCollapse{}.Apply([]ir.Term{plain}, lg)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, plain.ID, out[0].ID)
}

func TestKloostermanForm_Apply_ConsumesAdditiveCharacters(t *testing.T) {
	lg := ledger.New()
	off, err := lg.Create(ledger.Draft{
		Kind:      ir.KindOffDiagonal,
		Variables: []string{"m", "n"},
		Transform: "Seed",
	})
	require.NoError(t, err)
	setup, err := DeltaMethodSetup{}.Apply([]ir.Term{off}, lg)
	require.NoError(t, err)
	collapsed, err := DeltaMethodCollapse{}.Apply(setup, lg)
	require.NoError(t, err)

	out, err := KloostermanForm{}.Apply(collapsed, lg)
	require.NoError(t, err)
	require.Len(t, out, 1)
	next := out[0]

	assert.Equal(t, ir.KindKloosterman, next.Kind)
	meta, ok := ir.FindMeta[ir.KloostermanMeta](next)
	require.True(t, ok)
	assert.True(t, meta.Formed)
	assert.ElementsMatch(t, []string{"e(am/c)", "e(-bn/c)"}, meta.ConsumedPhases)

	// The Kloosterman sum is a phase record but not unit-modulus.
	require.Len(t, next.Phases, 1)
	assert.Equal(t, "S(m,n;c)/c", next.Phases[0].Expression)
	assert.False(t, next.Phases[0].UnitModulus)

	assert.Empty(t, invariant.CheckPhases(collapsed, out))
}

func TestKloostermanForm_Apply_ErrorsWithoutCharacters(t *testing.T) {
	lg := ledger.New()
	bare, err := lg.Create(ledger.Draft{
		Kind:      ir.KindOffDiagonal,
		Variables: []string{"m", "n", "c"},
		Meta:      []ir.StageMeta{ir.DeltaMeta{Stage: "collapsed", Collapsed: true, ModulusVariable: "c"}},
		Transform: "Seed",
	})
	require.NoError(t, err)

	_, err = KloostermanForm{}.Apply([]ir.Term{bare}, lg)
	require.Error(t, err)
}

func TestPhaseAbsorb_Apply_MarksAbsorbedWithNeutralityWitness(t *testing.T) {
	lg := ledger.New()
	seed, err := lg.Create(ledger.Draft{
		Kind:      ir.KindKloosterman,
		Variables: []string{"m", "n", "c"},
		Phases: []ir.Phase{
			{Expression: "(l1_m / l2_n)^{it}", DependsOn: []string{"m", "n"}, Separable: true, UnitModulus: true},
			{Expression: "S(m,n;c)/c", DependsOn: []string{"m", "n", "c"}},
		},
		Transform: "Seed",
	})
	require.NoError(t, err)

	out, err := PhaseAbsorb{}.Apply([]ir.Term{seed}, lg)
	require.NoError(t, err)
	require.Len(t, out, 1)
	next := out[0]

	require.Len(t, next.Phases, 2)
	assert.True(t, next.Phases[0].Absorbed)
	assert.False(t, next.Phases[1].Absorbed)

	meta, ok := ir.FindMeta[ir.AbsorptionMeta](next)
	require.True(t, ok)
	assert.Equal(t, []string{"(l1_m / l2_n)^{it}"}, meta.AbsorbedPhases)

	// The witness satisfies the absorption check.
	assert.Empty(t, invariant.CheckTerms(out))
}

func TestPhaseAbsorb_Apply_NothingToAbsorbPassesThrough(t *testing.T) {
	lg := ledger.New()
	seed, err := lg.Create(ledger.Draft{
		Kind:      ir.KindKloosterman,
		Variables: []string{"m", "n", "c"},
		Phases: []ir.Phase{
			{Expression: "S(m,n;c)/c", DependsOn: []string{"m", "n", "c"}},
		},
		Transform: "Seed",
	})
	require.NoError(t, err)

	out, err := PhaseAbsorb{}.Apply([]ir.Term{seed}, lg)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, seed.ID, out[0].ID)
}

func TestRunner_FullReduction_AllStagesCommit(t *testing.T) {
	lg := ledger.New()
	seed := seedIntegral(t, lg)
	r := NewRunner(lg, nil)

	afe, err := r.RunStage(ApproxFunctionalEq{}, []ir.Term{seed})
	require.NoError(t, err)

	var sums []ir.Term
	for _, term := range afe {
		if term.Kind == ir.KindDirichletSum {
			sums = append(sums, term)
		}
	}
	require.Len(t, sums, 2)

	cross, err := r.RunStage(OpenSquare{K: 2}, sums[:1])
	require.NoError(t, err)
	require.Len(t, cross, 3)

	integrated, err := r.RunStage(IntegrateOverT{}, cross)
	require.NoError(t, err)

	split, err := r.RunStage(DiagonalSplit{}, integrated)
	require.NoError(t, err)
	require.Len(t, split, 6)

	extracted, err := r.RunStage(DiagonalExtract{LogPower: 1}, split)
	require.NoError(t, err)

	setup, err := r.RunStage(DeltaMethodSetup{}, extracted)
	require.NoError(t, err)
	collapsed, err := r.RunStage(DeltaMethodCollapse{}, setup)
	require.NoError(t, err)
	formed, err := r.RunStage(KloostermanForm{}, collapsed)
	require.NoError(t, err)
	final, err := r.RunStage(PhaseAbsorb{}, formed)
	require.NoError(t, err)

	kloosterman := 0
	for _, term := range final {
		if term.Kind == ir.KindKloosterman {
			kloosterman++
		}
	}
	assert.Equal(t, 3, kloosterman)
	assert.Len(t, r.Stages(), 9)

	// Every Kloosterman term traces back to the seed integral.
	for _, term := range final {
		if term.Kind != ir.KindKloosterman {
			continue
		}
		root, err := lg.Root(term.ID)
		require.NoError(t, err)
		assert.Equal(t, seed.ID, root.ID)
	}
}
