// Package verify is the closing audit of a run. It works in two layers:
// a symbolic layer that recovers the admissible theta range from the
// bounded terms and checks it against the published reference value, and
// a numeric layer that evaluates the governing exponent at the requested
// theta. The symbolic layer failing is fatal; a numeric failure is an
// ordinary negative verdict.
package verify

import (
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/JohnNDvorak/mollitheta/internal/ir"
	"github.com/JohnNDvorak/mollitheta/internal/ledger"
	"github.com/JohnNDvorak/mollitheta/internal/scale"
)

// Outcome is the numeric-layer verdict.
type Outcome string

const (
	// OutcomePass: every bounded contribution is o(T) at the requested
	// theta, strict inequality.
	OutcomePass Outcome = "pass"

	// OutcomeFail: some bounded contribution reaches size T.
	OutcomeFail Outcome = "fail"
)

// Report is the result of a successful verification (either verdict).
type Report struct {
	// Governing is the asymptotic sum of all bounded contributions.
	Governing scale.Model

	// Boundary is the solved theta boundary of the governing exponent.
	Boundary *big.Rat

	// Theta is the requested mollifier-length exponent.
	Theta *big.Rat

	// ExponentAt is the governing exponent evaluated at Theta, exact.
	ExponentAt *big.Rat

	Verdict Outcome
}

// MismatchError reports a symbolic-layer failure: the boundary recovered
// from the run disagrees with the reference value. It is fatal and must
// never be downgraded to a Fail verdict; a Fail says "theta too large",
// a mismatch says "the derivation itself is wrong".
type MismatchError struct {
	Expected  *big.Rat
	Got       *big.Rat
	Governing string
}

func (e *MismatchError) Error() string {
	got := "none"
	if e.Got != nil {
		got = e.Got.RatString()
	}
	return fmt.Sprintf("verify: boundary mismatch: derivation yields %s, reference is %s (governing %s)",
		got, e.Expected.RatString(), e.Governing)
}

// IsMismatch reports whether err is a symbolic-layer mismatch.
// Uses errors.As to handle wrapped errors.
func IsMismatch(err error) bool {
	var me *MismatchError
	return errors.As(err, &me)
}

// DefaultReference is the published admissible boundary theta = 4/7.
func DefaultReference() *big.Rat { return big.NewRat(4, 7) }

// Verifier audits completed runs against a reference boundary.
type Verifier struct {
	reference *big.Rat
	log       *slog.Logger
}

// New creates a verifier with the given reference boundary.
// A nil reference means DefaultReference; a nil logger disables logging.
func New(reference *big.Rat, logger *slog.Logger) *Verifier {
	if reference == nil {
		reference = DefaultReference()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Verifier{reference: reference, log: logger}
}

// Verify audits the ledger at the requested theta.
//
// Preconditions checked here: every leaf term is classified (MainTerm,
// BoundOnly, or Error; a leftover Active leaf fails), and at least one
// main term and one bounded term exist. The governing size is the
// asymptotic sum over BoundOnly and Error leaves; MainTerm leaves are
// the extracted main term, not error contributions.
func (v *Verifier) Verify(lg *ledger.Ledger, theta *big.Rat) (Report, error) {
	leaves := lg.Leaves()
	if len(leaves) == 0 {
		return Report{}, fmt.Errorf("verify: empty term set")
	}

	var models []scale.Model
	mainTerms := 0
	for _, t := range leaves {
		switch t.Status {
		case ir.StatusActive:
			return Report{}, fmt.Errorf("verify: unresolved active term %s (kind %s)", t.ID, t.Kind)
		case ir.StatusMainTerm:
			mainTerms++
		case ir.StatusBoundOnly, ir.StatusError:
			models = append(models, t.Scale)
		}
	}
	if mainTerms == 0 {
		return Report{}, fmt.Errorf("verify: no main term extracted")
	}
	if len(models) == 0 {
		return Report{}, fmt.Errorf("verify: no bounded terms to audit")
	}

	governing, err := scale.SumAll(models)
	if err != nil {
		return Report{}, err
	}

	// Symbolic layer: the recovered boundary must equal the reference
	// exactly. Rational arithmetic makes this an equality test, not a
	// tolerance test.
	boundary, ok := governing.UnitBoundary()
	if !ok || boundary.Cmp(v.reference) != 0 {
		err := &MismatchError{
			Expected:  new(big.Rat).Set(v.reference),
			Got:       boundary,
			Governing: governing.String(),
		}
		v.log.Error("boundary mismatch", "error", err)
		return Report{}, err
	}

	// Numeric layer: strict dominance at the requested theta.
	exponentAt := governing.Evaluate(theta)
	verdict := OutcomeFail
	if governing.DominatedAt(theta) {
		verdict = OutcomePass
	}

	v.log.Info("verification complete",
		"theta", theta.RatString(),
		"boundary", boundary.RatString(),
		"exponent", exponentAt.RatString(),
		"verdict", string(verdict))

	return Report{
		Governing:  governing,
		Boundary:   boundary,
		Theta:      new(big.Rat).Set(theta),
		ExponentAt: exponentAt,
		Verdict:    verdict,
	}, nil
}
