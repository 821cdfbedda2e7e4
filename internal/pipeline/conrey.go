// Package pipeline assembles the full reduction of the mollified second
// moment: from the seed integral through the structural transforms, the
// bound layer, and the closing verification. One Run works one theta;
// Sweep fans runs out over a theta grid.
package pipeline

import (
	"fmt"
	"log/slog"
	"math/big"

	"github.com/JohnNDvorak/mollitheta/internal/catalog"
	"github.com/JohnNDvorak/mollitheta/internal/ir"
	"github.com/JohnNDvorak/mollitheta/internal/ledger"
	"github.com/JohnNDvorak/mollitheta/internal/lemma"
	"github.com/JohnNDvorak/mollitheta/internal/transform"
	"github.com/JohnNDvorak/mollitheta/internal/verify"
)

// Options configure a run.
type Options struct {
	// K is the number of mollifier pieces. Defaults to 2.
	K int

	// Logger receives stage and verification logs. Nil disables logging.
	Logger *slog.Logger

	// RunIDs generates the run identifier. Defaults to UUIDv7.
	RunIDs RunIDGenerator

	// Reference overrides the verification boundary. Nil means the
	// published 4/7.
	Reference *big.Rat
}

// Option mutates Options.
type Option func(*Options)

// WithK sets the number of mollifier pieces.
func WithK(k int) Option { return func(o *Options) { o.K = k } }

// WithLogger sets the run logger.
func WithLogger(l *slog.Logger) Option { return func(o *Options) { o.Logger = l } }

// WithRunIDs sets the run-identifier generator.
func WithRunIDs(g RunIDGenerator) Option { return func(o *Options) { o.RunIDs = g } }

// WithReference overrides the verification reference boundary.
func WithReference(r *big.Rat) Option { return func(o *Options) { o.Reference = r } }

// Result is one completed run: the verification report plus the full
// derivation it audited.
type Result struct {
	RunID  string
	Theta  *big.Rat
	K      int
	Report verify.Report
	Ledger *ledger.Ledger
	Stages []transform.StageRecord
}

func buildOptions(opts []Option) Options {
	o := Options{K: 2, RunIDs: UUIDv7Generator{}}
	for _, opt := range opts {
		opt(&o)
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	return o
}

// Run executes the full reduction at one theta and verifies the outcome.
//
// Any stage rolling back, any unbounded term, and any boundary mismatch
// surface as errors; a Result with a Fail verdict is a successful run at
// a theta past the admissible range.
func Run(theta *big.Rat, opts ...Option) (*Result, error) {
	o := buildOptions(opts)
	if theta == nil || theta.Sign() <= 0 || theta.Cmp(big.NewRat(1, 1)) >= 0 {
		return nil, fmt.Errorf("pipeline: theta must be in (0, 1), got %v", theta)
	}

	runID := o.RunIDs.Generate()
	log := o.Logger.With("run_id", runID, "theta", theta.RatString())

	cat, err := catalog.Load()
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	lemmas, err := lemma.StandardSet(cat)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	lg := ledger.New()
	seed, err := lg.Create(ledger.Draft{
		Kind:       ir.KindIntegral,
		Expression: "int_0^T |M(1/2+it) zeta(1/2+it)|^2 dt",
		Variables:  []string{"t"},
		Ranges:     []ir.Range{{Variable: "t", Lower: "0", Upper: "T"}},
		Transform:  "Seed",
		Note:       fmt.Sprintf("mollified second moment, K=%d, theta=%s", o.K, theta.RatString()),
	})
	if err != nil {
		return nil, fmt.Errorf("pipeline: seed: %w", err)
	}

	runner := transform.NewRunner(lg, log)

	afe, err := runner.RunStage(transform.ApproxFunctionalEq{}, []ir.Term{seed})
	if err != nil {
		return nil, err
	}
	var sums []ir.Term
	for _, t := range afe {
		if t.Kind == ir.KindDirichletSum {
			sums = append(sums, t)
		}
	}

	terms, err := runner.RunStage(transform.OpenSquare{K: o.K}, sums)
	if err != nil {
		return nil, err
	}
	if terms, err = runner.RunStage(transform.IntegrateOverT{}, terms); err != nil {
		return nil, err
	}
	if terms, err = runner.RunStage(transform.DiagonalSplit{}, terms); err != nil {
		return nil, err
	}
	if terms, err = runner.RunStage(transform.DiagonalExtract{LogPower: o.K - 1}, terms); err != nil {
		return nil, err
	}
	if terms, err = runner.RunStage(transform.DeltaMethodSetup{}, terms); err != nil {
		return nil, err
	}
	if terms, err = runner.RunStage(transform.DeltaMethodCollapse{}, terms); err != nil {
		return nil, err
	}
	if terms, err = runner.RunStage(transform.KloostermanForm{}, terms); err != nil {
		return nil, err
	}
	if terms, err = runner.RunStage(transform.PhaseAbsorb{}, terms); err != nil {
		return nil, err
	}
	if _, err = runner.RunStage(lemma.ApplyBounds{Lemmas: lemmas}, terms); err != nil {
		return nil, err
	}

	report, err := verify.New(o.Reference, log).Verify(lg, theta)
	if err != nil {
		return nil, err
	}

	log.Info("run complete",
		"verdict", string(report.Verdict),
		"exponent", report.ExponentAt.RatString(),
		"terms", lg.Len())

	return &Result{
		RunID:  runID,
		Theta:  new(big.Rat).Set(theta),
		K:      o.K,
		Report: report,
		Ledger: lg,
		Stages: runner.Stages(),
	}, nil
}

// ParseTheta parses a theta given as a rational ("4/7") or decimal
// ("0.56") literal, exactly.
func ParseTheta(s string) (*big.Rat, error) {
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return nil, fmt.Errorf("pipeline: cannot parse theta %q", s)
	}
	return r, nil
}
