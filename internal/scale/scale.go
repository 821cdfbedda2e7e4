package scale

import (
	"fmt"
	"math/big"
)

// Expr is a sealed symbolic exponent expression in theta.
// Only linear forms and max nodes implement it.
type Expr interface {
	exprNode()

	// Evaluate substitutes an exact rational theta and returns the value.
	Evaluate(theta *big.Rat) *big.Rat

	// String renders the expression in display syntax, e.g. "7*theta/4".
	String() string
}

// Linear is the affine form c + s*theta with exact rational coefficients.
type Linear struct {
	c *big.Rat
	s *big.Rat
}

func (Linear) exprNode() {}

// maxNode is the symbolic max of two or more expressions whose dominance
// could not be resolved uniformly on theta in (0, 1).
type maxNode struct {
	terms []Expr
}

func (maxNode) exprNode() {}

// NewLinear builds the affine exponent c + s*theta.
// The coefficients are copied; callers may reuse their rationals.
func NewLinear(c, s *big.Rat) Linear {
	return Linear{c: ratCopy(c), s: ratCopy(s)}
}

// Const builds a theta-free exponent.
func Const(num, den int64) Linear {
	return NewLinear(big.NewRat(num, den), big.NewRat(0, 1))
}

// ThetaTimes builds the exponent (num/den)*theta.
func ThetaTimes(num, den int64) Linear {
	return NewLinear(big.NewRat(0, 1), big.NewRat(num, den))
}

// ConstPart returns a copy of the theta-free coefficient.
func (l Linear) ConstPart() *big.Rat { return ratCopy(l.c) }

// Slope returns a copy of the theta coefficient.
func (l Linear) Slope() *big.Rat { return ratCopy(l.s) }

// Evaluate substitutes theta into c + s*theta.
func (l Linear) Evaluate(theta *big.Rat) *big.Rat {
	v := new(big.Rat).Mul(l.s, theta)
	return v.Add(v, l.c)
}

// Evaluate returns the maximum of the child values at theta.
func (m maxNode) Evaluate(theta *big.Rat) *big.Rat {
	best := m.terms[0].Evaluate(theta)
	for _, e := range m.terms[1:] {
		if v := e.Evaluate(theta); v.Cmp(best) > 0 {
			best = v
		}
	}
	return best
}

// Model is the asymptotic size handle carried by a term:
// T^{Exp(theta)} * (log T)^{LogPower}.
//
// The zero Model is T^0, the unit for Product.
type Model struct {
	Exp      Expr
	LogPower int
	Desc     string
}

// New builds a model from an exponent expression.
func New(exp Expr, logPower int, desc string) Model {
	return Model{Exp: exp, LogPower: logPower, Desc: desc}
}

// Unit is the multiplicative identity T^0.
func Unit() Model {
	return Model{Exp: Const(0, 1)}
}

// Negligible is the size of a tail that decays faster than any fixed
// power of T. Exponent -1 is sufficient for every dominance comparison
// the pipeline performs.
func Negligible(desc string) Model {
	return Model{Exp: Const(-1, 1), Desc: desc}
}

func (m Model) expr() Expr {
	if m.Exp == nil {
		return Const(0, 1)
	}
	return m.Exp
}

// Product multiplies two sizes: exponents add, log powers add.
func Product(a, b Model) Model {
	la, aok := a.expr().(Linear)
	lb, bok := b.expr().(Linear)
	if !aok || !bok {
		panic("scale: product over max nodes is not defined")
	}
	return Model{
		Exp: NewLinear(
			new(big.Rat).Add(la.c, lb.c),
			new(big.Rat).Add(la.s, lb.s),
		),
		LogPower: a.LogPower + b.LogPower,
		Desc:     joinDesc("*", a.Desc, b.Desc),
	}
}

// Sum combines two sizes asymptotically: the dominant exponent wins.
//
// Dominance is decided structurally on the open interval theta in (0, 1).
// If the two exponents are symbolically equal the log powers ADD (the
// tie-break rule; see DESIGN.md). If neither side dominates uniformly,
// the result keeps a symbolic max with the larger log power.
func Sum(a, b Model) Model {
	la, aok := a.expr().(Linear)
	lb, bok := b.expr().(Linear)
	if aok && bok {
		switch dominance(la, lb) {
		case 0:
			return Model{
				Exp:      la,
				LogPower: a.LogPower + b.LogPower,
				Desc:     joinDesc("+", a.Desc, b.Desc),
			}
		case 1:
			return Model{Exp: la, LogPower: a.LogPower, Desc: a.Desc}
		case -1:
			return Model{Exp: lb, LogPower: b.LogPower, Desc: b.Desc}
		}
	}
	return Model{
		Exp:      maxOf(a.expr(), b.expr()),
		LogPower: maxInt(a.LogPower, b.LogPower),
		Desc:     joinDesc("max", a.Desc, b.Desc),
	}
}

// SumAll folds Sum over a non-empty slice.
func SumAll(models []Model) (Model, error) {
	if len(models) == 0 {
		return Model{}, fmt.Errorf("scale: sum over empty model set")
	}
	acc := models[0]
	for _, m := range models[1:] {
		acc = Sum(acc, m)
	}
	return acc, nil
}

// Evaluate substitutes an exact rational theta into the exponent.
// The result is exact; it is intended for final numeric comparisons only.
func (m Model) Evaluate(theta *big.Rat) *big.Rat {
	return m.expr().Evaluate(theta)
}

// EvaluateFloat evaluates the exponent at a float theta.
func (m Model) EvaluateFloat(theta float64) float64 {
	v := m.Evaluate(new(big.Rat).SetFloat64(theta))
	f, _ := v.Float64()
	return f
}

// DominatedAt reports whether the size is o(T) at theta: E(theta) < 1,
// strict inequality.
func (m Model) DominatedAt(theta *big.Rat) bool {
	return m.Evaluate(theta).Cmp(big.NewRat(1, 1)) < 0
}

// Equal reports symbolic equality of exponent and log power.
func (m Model) Equal(other Model) bool {
	la, aok := m.expr().(Linear)
	lb, bok := other.expr().(Linear)
	if !aok || !bok {
		return m.LogPower == other.LogPower && m.expr().String() == other.expr().String()
	}
	return m.LogPower == other.LogPower &&
		la.c.Cmp(lb.c) == 0 && la.s.Cmp(lb.s) == 0
}

// dominance compares two affine exponents on theta in (0, 1).
// Returns 0 for symbolic equality, 1 if a >= b on the whole interval,
// -1 if b >= a on the whole interval, and 2 if the sign flips.
func dominance(a, b Linear) int {
	dc := new(big.Rat).Sub(a.c, b.c)
	ds := new(big.Rat).Sub(a.s, b.s)
	if dc.Sign() == 0 && ds.Sign() == 0 {
		return 0
	}
	// The difference dc + ds*theta is affine: its sign on (0, 1) is
	// fixed iff the values at both endpoints agree in sign.
	at0 := dc.Sign()
	at1 := new(big.Rat).Add(dc, ds).Sign()
	if at0 >= 0 && at1 >= 0 {
		return 1
	}
	if at0 <= 0 && at1 <= 0 {
		return -1
	}
	return 2
}

func maxOf(a, b Expr) Expr {
	terms := []Expr{}
	for _, e := range []Expr{a, b} {
		if mn, ok := e.(maxNode); ok {
			terms = append(terms, mn.terms...)
		} else {
			terms = append(terms, e)
		}
	}
	return maxNode{terms: terms}
}

func ratCopy(r *big.Rat) *big.Rat {
	if r == nil {
		return new(big.Rat)
	}
	return new(big.Rat).Set(r)
}

func joinDesc(op, a, b string) string {
	if a == "" {
		return b
	}
	if b == "" {
		return a
	}
	return "(" + a + ") " + op + " (" + b + ")"
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
