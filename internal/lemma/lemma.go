// Package lemma is the bound layer: it reclassifies reduced terms as
// BoundOnly by citing estimates from the bound catalog. A lemma never
// invents an exponent; every bound it applies is a catalog entry with a
// citation attached.
package lemma

import (
	"fmt"

	"github.com/JohnNDvorak/mollitheta/internal/catalog"
	"github.com/JohnNDvorak/mollitheta/internal/ir"
	"github.com/JohnNDvorak/mollitheta/internal/scale"
)

// Lemma is one citable estimate together with its applicability test.
type Lemma interface {
	Name() string

	// Entry returns the catalog record backing this lemma.
	Entry() catalog.Entry

	// Applies reports whether the estimate's hypotheses hold for t,
	// judged structurally from the term's kind and stage metadata.
	Applies(t ir.Term) bool

	// Bound returns the size model the estimate yields for t.
	Bound(t ir.Term) scale.Model
}

// kloostermanLemma covers the estimates whose hypothesis is a formed
// Kloosterman structure: Deshouillers-Iwaniec and Weil.
type kloostermanLemma struct {
	entry catalog.Entry
}

func (l kloostermanLemma) Name() string { return l.entry.Name }
func (l kloostermanLemma) Entry() catalog.Entry { return l.entry }

func (l kloostermanLemma) Applies(t ir.Term) bool {
	if t.Kind != ir.KindKloosterman {
		return false
	}
	meta, ok := ir.FindMeta[ir.KloostermanMeta](t)
	return ok && meta.Formed
}

func (l kloostermanLemma) Bound(t ir.Term) scale.Model {
	return scale.New(l.entry.Exponent, 0, l.entry.Name)
}

// trivialLemma bounds any term by absolute values. It always applies;
// it is the floor every other estimate must beat.
type trivialLemma struct {
	entry catalog.Entry
}

func (l trivialLemma) Name() string { return l.entry.Name }
func (l trivialLemma) Entry() catalog.Entry { return l.entry }
func (l trivialLemma) Applies(ir.Term) bool { return true }

func (l trivialLemma) Bound(t ir.Term) scale.Model {
	return scale.New(l.entry.Exponent, 0, l.entry.Name)
}

// NewDeshouillersIwaniec builds the spectral Kloosterman-sum lemma from
// the catalog.
func NewDeshouillersIwaniec(c *catalog.Catalog) (Lemma, error) {
	entry, ok := c.Entry("deshouillers_iwaniec")
	if !ok {
		return nil, fmt.Errorf("lemma: catalog has no deshouillers_iwaniec entry")
	}
	return kloostermanLemma{entry: entry}, nil
}

// NewWeil builds the termwise Weil-bound lemma from the catalog.
func NewWeil(c *catalog.Catalog) (Lemma, error) {
	entry, ok := c.Entry("weil")
	if !ok {
		return nil, fmt.Errorf("lemma: catalog has no weil entry")
	}
	return kloostermanLemma{entry: entry}, nil
}

// NewTrivial builds the absolute-value lemma from the catalog.
func NewTrivial(c *catalog.Catalog) (Lemma, error) {
	entry, ok := c.Entry("trivial")
	if !ok {
		return nil, fmt.Errorf("lemma: catalog has no trivial entry")
	}
	return trivialLemma{entry: entry}, nil
}

// StandardSet returns the catalog lemmas in application order, strongest
// hypothesis first. ApplyBounds takes the first applicable lemma, so the
// order encodes preference.
func StandardSet(c *catalog.Catalog) ([]Lemma, error) {
	di, err := NewDeshouillersIwaniec(c)
	if err != nil {
		return nil, err
	}
	weil, err := NewWeil(c)
	if err != nil {
		return nil, err
	}
	trivial, err := NewTrivial(c)
	if err != nil {
		return nil, err
	}
	return []Lemma{di, weil, trivial}, nil
}
