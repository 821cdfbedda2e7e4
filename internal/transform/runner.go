package transform

import (
	"fmt"
	"log/slog"

	"github.com/JohnNDvorak/mollitheta/internal/invariant"
	"github.com/JohnNDvorak/mollitheta/internal/ir"
	"github.com/JohnNDvorak/mollitheta/internal/ledger"
)

// Transform is one structural reduction step.
//
// Apply consumes the input terms and returns the stage's output
// collection, creating new terms through lg. It must not mutate input
// terms and must record its name and parent links on every term it
// creates; the runner re-checks both.
type Transform interface {
	Name() string
	Apply(in []ir.Term, lg *ledger.Ledger) ([]ir.Term, error)
}

// StageRecord summarizes one executed stage.
type StageRecord struct {
	Stage   string `json:"stage"`
	Inputs  int    `json:"inputs"`
	Outputs int    `json:"outputs"`
}

// Runner executes transforms with copy-on-write invariant enforcement.
type Runner struct {
	ledger *ledger.Ledger
	log    *slog.Logger
	stages []StageRecord
}

// NewRunner creates a runner over the given ledger.
// A nil logger disables stage logging.
func NewRunner(lg *ledger.Ledger, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Runner{ledger: lg, log: logger}
}

// Ledger returns the committed ledger.
func (r *Runner) Ledger() *ledger.Ledger { return r.ledger }

// Stages returns the log of executed stages.
func (r *Runner) Stages() []StageRecord {
	return append([]StageRecord(nil), r.stages...)
}

// RunStage applies one transform under full invariant checking.
//
// The transform runs against a clone of the ledger. If it errors, or any
// post-transform invariant fails, the clone is discarded, the committed
// ledger is untouched, and the stage error propagates: the run is failed,
// not partially salvageable.
func (r *Runner) RunStage(tr Transform, in []ir.Term) ([]ir.Term, error) {
	name := tr.Name()
	trial := r.ledger.Clone()

	out, err := tr.Apply(in, trial)
	if err != nil {
		return nil, fmt.Errorf("stage %s: %w", name, err)
	}

	var violations []invariant.Violation
	violations = append(violations, invariant.CheckTerms(out)...)
	violations = append(violations, invariant.CheckLineage(name, in, out)...)
	violations = append(violations, invariant.CheckPhases(in, out)...)
	violations = append(violations, invariant.CheckKernels(in, out)...)

	if len(violations) > 0 {
		r.log.Error("stage rolled back",
			"stage", name,
			"violations", len(violations))
		return nil, &invariant.Error{Stage: name, Violations: violations}
	}

	r.ledger.Adopt(trial)
	r.stages = append(r.stages, StageRecord{
		Stage:   name,
		Inputs:  len(in),
		Outputs: len(out),
	})
	r.log.Info("stage committed",
		"stage", name,
		"inputs", len(in),
		"outputs", len(out))
	return out, nil
}
