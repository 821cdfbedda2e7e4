package lemma

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JohnNDvorak/mollitheta/internal/catalog"
	"github.com/JohnNDvorak/mollitheta/internal/invariant"
	"github.com/JohnNDvorak/mollitheta/internal/ir"
	"github.com/JohnNDvorak/mollitheta/internal/ledger"
)

func loadCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.Load()
	require.NoError(t, err)
	return c
}

func kloostermanTerm(t *testing.T, lg *ledger.Ledger) ir.Term {
	t.Helper()
	term, err := lg.Create(ledger.Draft{
		Kind:      ir.KindKloosterman,
		Variables: []string{"m", "n", "c"},
		Phases: []ir.Phase{
			{Expression: "S(m,n;c)/c", DependsOn: []string{"m", "n", "c"}},
		},
		Meta: []ir.StageMeta{ir.KloostermanMeta{
			Formed:         true,
			Variables:      []string{"m", "n", "c"},
			ConsumedPhases: []string{"e(am/c)", "e(-bn/c)"},
		}},
		Transform: "Seed",
	})
	require.NoError(t, err)
	return term
}

func TestDeshouillersIwaniec_Applies_OnlyToFormedKloosterman(t *testing.T) {
	c := loadCatalog(t)
	di, err := NewDeshouillersIwaniec(c)
	require.NoError(t, err)

	lg := ledger.New()
	formed := kloostermanTerm(t, lg)
	assert.True(t, di.Applies(formed))

	plain, err := lg.Create(ledger.Draft{Kind: ir.KindOffDiagonal, Transform: "Seed"})
	require.NoError(t, err)
	assert.False(t, di.Applies(plain))

	// Kloosterman kind without the formation record is not enough.
	unformed, err := lg.Create(ledger.Draft{Kind: ir.KindKloosterman, Transform: "Seed"})
	require.NoError(t, err)
	assert.False(t, di.Applies(unformed))
}

func TestDeshouillersIwaniec_Bound_ExponentSevenQuartersTheta(t *testing.T) {
	c := loadCatalog(t)
	di, err := NewDeshouillersIwaniec(c)
	require.NoError(t, err)

	lg := ledger.New()
	model := di.Bound(kloostermanTerm(t, lg))
	assert.Equal(t, "7*theta/4", model.Exp.String())
	assert.Zero(t, model.Exp.Evaluate(big.NewRat(4, 7)).Cmp(big.NewRat(1, 1)))
}

func TestTrivial_Applies_Everywhere(t *testing.T) {
	c := loadCatalog(t)
	trivial, err := NewTrivial(c)
	require.NoError(t, err)

	lg := ledger.New()
	plain, err := lg.Create(ledger.Draft{Kind: ir.KindCross, Transform: "Seed"})
	require.NoError(t, err)
	assert.True(t, trivial.Applies(plain))
	assert.Equal(t, "1 + 2*theta", trivial.Bound(plain).Exp.String())
}

func TestStandardSet_OrderedStrongestFirst(t *testing.T) {
	set, err := StandardSet(loadCatalog(t))
	require.NoError(t, err)
	require.Len(t, set, 3)
	assert.Equal(t, "deshouillers_iwaniec", set[0].Name())
	assert.Equal(t, "weil", set[1].Name())
	assert.Equal(t, "trivial", set[2].Name())
}

func TestApplyBounds_Apply_KloostermanGetsDICitation(t *testing.T) {
	set, err := StandardSet(loadCatalog(t))
	require.NoError(t, err)

	lg := ledger.New()
	term := kloostermanTerm(t, lg)

	out, err := ApplyBounds{Lemmas: set}.Apply([]ir.Term{term}, lg)
	require.NoError(t, err)
	require.Len(t, out, 1)
	bounded := out[0]

	assert.Equal(t, ir.StatusBoundOnly, bounded.Status)
	assert.Equal(t, "Deshouillers-Iwaniec 1982/83, Theorem 12; Conrey 1989, Section 4", bounded.Citation)
	assert.Equal(t, "7*theta/4", bounded.Scale.Exp.String())

	meta, ok := ir.FindMeta[ir.BoundMeta](bounded)
	require.True(t, ok)
	assert.Equal(t, "kloosterman", meta.Family)
	assert.Equal(t, "7*theta/4", meta.ErrorExponent)

	// Citation present, phases carried: the bound stage passes the
	// same checks every transform faces.
	assert.Empty(t, invariant.CheckTerms(out))
	assert.Empty(t, invariant.CheckPhases([]ir.Term{term}, out))
}

func TestApplyBounds_Apply_NonActiveTermsPassThrough(t *testing.T) {
	set, err := StandardSet(loadCatalog(t))
	require.NoError(t, err)

	lg := ledger.New()
	main, err := lg.Create(ledger.Draft{
		Kind:      ir.KindDiagonal,
		Status:    ir.StatusMainTerm,
		Transform: "Seed",
	})
	require.NoError(t, err)
	tail, err := lg.Create(ledger.Draft{
		Kind:      ir.KindError,
		Status:    ir.StatusError,
		Transform: "Seed",
	})
	require.NoError(t, err)

	out, err := ApplyBounds{Lemmas: set}.Apply([]ir.Term{main, tail}, lg)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, main.ID, out[0].ID)
	assert.Equal(t, tail.ID, out[1].ID)
}

func TestApplyBounds_Apply_UncoveredActiveTermFails(t *testing.T) {
	// Only Kloosterman lemmas, no trivial floor: a leftover cross term
	// has no applicable bound and the stage must fail.
	c := loadCatalog(t)
	di, err := NewDeshouillersIwaniec(c)
	require.NoError(t, err)

	lg := ledger.New()
	cross, err := lg.Create(ledger.Draft{Kind: ir.KindCross, Transform: "Seed"})
	require.NoError(t, err)

	_, err = ApplyBounds{Lemmas: []Lemma{di}}.Apply([]ir.Term{cross}, lg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no lemma applies")
}
