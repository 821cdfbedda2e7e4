package catalog

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_EmbeddedCatalog(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)
	require.Len(t, c.Entries(), 3)

	di, ok := c.Entry("deshouillers_iwaniec")
	require.True(t, ok)
	assert.Equal(t, "kloosterman", di.Family)
	assert.Equal(t, "Deshouillers-Iwaniec 1982/83, Theorem 12; Conrey 1989, Section 4", di.Citation)
	assert.Equal(t, "7*theta/4", di.Exponent.String())
	assert.Contains(t, di.Requires, "kloosterman_formed")

	// Exact evaluation at theta = 4/7 gives exponent 1.
	val := di.Exponent.Evaluate(big.NewRat(4, 7))
	assert.Zero(t, val.Cmp(big.NewRat(1, 1)))

	weil, ok := c.Entry("weil")
	require.True(t, ok)
	assert.Equal(t, "1/2 + 3*theta/2", weil.Exponent.String())

	trivial, ok := c.Entry("trivial")
	require.True(t, ok)
	assert.Equal(t, "absolute_values", trivial.Family)
	assert.Empty(t, trivial.Requires)
}

func TestCatalog_ByFamily(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)

	kloosterman := c.ByFamily("kloosterman")
	require.Len(t, kloosterman, 2)
	assert.Equal(t, "deshouillers_iwaniec", kloosterman[0].Name)
	assert.Equal(t, "weil", kloosterman[1].Name)

	assert.Empty(t, c.ByFamily("no_such_family"))
}

func TestCompile_RejectsMissingCitation(t *testing.T) {
	_, err := compile(`bound: incomplete: {
		family: "kloosterman"
		exponent: {theta_num: 1, theta_den: 1, const_num: 0, const_den: 1}
	}`)
	require.Error(t, err)
	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Contains(t, le.Message, "citation")
}

func TestCompile_RejectsZeroDenominator(t *testing.T) {
	_, err := compile(`bound: bad: {
		family:   "kloosterman"
		citation: "x"
		exponent: {theta_num: 1, theta_den: 0, const_num: 0, const_den: 1}
	}`)
	require.Error(t, err)
}

func TestCompile_RejectsEmptyCatalog(t *testing.T) {
	_, err := compile(`bound: {}`)
	require.Error(t, err)
}
