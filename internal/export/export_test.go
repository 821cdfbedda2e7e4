package export

import (
	"math/big"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JohnNDvorak/mollitheta/internal/ir"
	"github.com/JohnNDvorak/mollitheta/internal/ledger"
	"github.com/JohnNDvorak/mollitheta/internal/scale"
	"github.com/JohnNDvorak/mollitheta/internal/verify"
)

const diCitation = "Deshouillers-Iwaniec 1982/83, Theorem 12; Conrey 1989, Section 4"

func verifiedRun(t *testing.T) (*ledger.Ledger, verify.Report) {
	t.Helper()
	lg := ledger.New()

	_, err := lg.Create(ledger.Draft{
		Kind:      ir.KindDiagonal,
		Status:    ir.StatusMainTerm,
		Scale:     scale.New(scale.Const(1, 1), 1, "diagonal main term"),
		Transform: "Seed",
	})
	require.NoError(t, err)

	_, err = lg.Create(ledger.Draft{
		Kind:     ir.KindKloosterman,
		Status:   ir.StatusBoundOnly,
		Scale:    scale.New(scale.ThetaTimes(7, 4), 0, "deshouillers_iwaniec"),
		Citation: diCitation,
		Meta: []ir.StageMeta{ir.BoundMeta{
			Family:        "kloosterman",
			Citation:      diCitation,
			ErrorExponent: "7*theta/4",
		}},
		Transform: "Seed",
	})
	require.NoError(t, err)

	_, err = lg.Create(ledger.Draft{
		Kind:      ir.KindError,
		Status:    ir.StatusError,
		Scale:     scale.Negligible("afe tail"),
		Transform: "Seed",
	})
	require.NoError(t, err)

	report, err := verify.New(nil, nil).Verify(lg, big.NewRat(14, 25))
	require.NoError(t, err)
	return lg, report
}

func TestEnvelope_GoldenPass(t *testing.T) {
	lg, report := verifiedRun(t)

	data, err := Envelope("run-1", report, lg)
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "envelope_pass", data)
}

func TestEnvelope_Deterministic(t *testing.T) {
	lg, report := verifiedRun(t)

	first, err := Envelope("run-1", report, lg)
	require.NoError(t, err)
	second, err := Envelope("run-1", report, lg)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestEnvelope_OnlyLeavesExported(t *testing.T) {
	lg, report := verifiedRun(t)

	// Supersede the bounded term; the interior term must leave the
	// envelope and the successor must carry a two-step derivation.
	bounded := lg.ByStatus(ir.StatusBoundOnly)
	require.Len(t, bounded, 1)
	successor, err := lg.Reclassify(bounded[0], ir.StatusBoundOnly, bounded[0].Citation)
	require.NoError(t, err)

	data, err := Envelope("run-1", report, lg)
	require.NoError(t, err)

	s := string(data)
	assert.Contains(t, s, `"id":"`+string(successor.ID)+`"`)
	assert.NotContains(t, s, `"id":"`+string(bounded[0].ID)+`"`)
	assert.Contains(t, s, `"derivation":["t-0002","t-0004"]`)
}
