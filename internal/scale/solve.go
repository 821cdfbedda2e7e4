package scale

import "math/big"

// UnitBoundary solves E(theta) = 1 for the boundary theta below which the
// size is o(T).
//
// For an affine exponent c + s*theta the boundary is (1-c)/s when s > 0.
// When s <= 0 the exponent imposes no upper constraint on theta and the
// second return value is false. For a max node the binding constraint is
// the smallest boundary over the branches: E < 1 requires every branch
// below 1.
func (m Model) UnitBoundary() (*big.Rat, bool) {
	return unitBoundary(m.expr())
}

func unitBoundary(e Expr) (*big.Rat, bool) {
	switch x := e.(type) {
	case Linear:
		if x.s.Sign() <= 0 {
			return nil, false
		}
		b := new(big.Rat).Sub(big.NewRat(1, 1), x.c)
		return b.Quo(b, x.s), true
	case maxNode:
		var best *big.Rat
		for _, t := range x.terms {
			b, ok := unitBoundary(t)
			if !ok {
				continue
			}
			if best == nil || b.Cmp(best) < 0 {
				best = b
			}
		}
		return best, best != nil
	}
	return nil, false
}
