package scale

import (
	"encoding/json"
	"math/big"
	"strconv"
	"strings"
)

// String renders the affine exponent, e.g. "7*theta/4", "1/2 + 3*theta/2",
// "1 - theta". The output is the interchange syntax used by the export
// envelope; it must stay stable.
func (l Linear) String() string {
	if l.s.Sign() == 0 {
		return l.c.RatString()
	}
	slope := slopeString(new(big.Rat).Abs(l.s))
	if l.c.Sign() == 0 {
		if l.s.Sign() < 0 {
			return "-" + slope
		}
		return slope
	}
	op := " + "
	if l.s.Sign() < 0 {
		op = " - "
	}
	return l.c.RatString() + op + slope
}

// String renders a max node as "max(a, b, ...)".
func (m maxNode) String() string {
	parts := make([]string, len(m.terms))
	for i, e := range m.terms {
		parts[i] = e.String()
	}
	return "max(" + strings.Join(parts, ", ") + ")"
}

// String renders the full model, e.g. "T^(7*theta/4) * (log T)^2".
func (m Model) String() string {
	s := "T^(" + m.expr().String() + ")"
	if m.LogPower != 0 {
		s += " * (log T)^" + strconv.Itoa(m.LogPower)
	}
	return s
}

// ExponentString renders only the exponent expression, without the
// T^ wrapper or log factor.
func (m Model) ExponentString() string { return m.expr().String() }

// MarshalJSON renders the model in its stable interchange form:
// the exponent display syntax plus the log power.
func (m Model) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Exponent string `json:"exponent"`
		LogPower int    `json:"log_power"`
	}{Exponent: m.expr().String(), LogPower: m.LogPower})
}

// slopeString renders a positive rational slope applied to theta:
// 1 -> "theta", 3 -> "3*theta", 7/4 -> "7*theta/4", 1/2 -> "theta/2".
func slopeString(s *big.Rat) string {
	num := s.Num().String()
	den := s.Denom().String()
	out := "theta"
	if num != "1" {
		out = num + "*theta"
	}
	if den != "1" {
		out += "/" + den
	}
	return out
}
