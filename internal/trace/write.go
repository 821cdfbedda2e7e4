package trace

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/JohnNDvorak/mollitheta/internal/ir"
)

// RunRecord is the stored summary of one run. All rationals are stored
// in their exact string form; no floats enter the database.
type RunRecord struct {
	ID        string
	Theta     string
	K         int
	Verdict   string
	Boundary  string
	Exponent  string
	Governing string
}

// WriteRun inserts a run record.
// Uses ON CONFLICT(id) DO NOTHING for idempotency: re-storing a run that
// is already on file is a no-op, not an error.
func (s *Store) WriteRun(ctx context.Context, rec RunRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs
		(id, theta, k, verdict, boundary, exponent, governing)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		rec.ID,
		rec.Theta,
		rec.K,
		rec.Verdict,
		rec.Boundary,
		rec.Exponent,
		rec.Governing,
	)
	if err != nil {
		return fmt.Errorf("trace: write run: %w", err)
	}
	return nil
}

// WriteTerms inserts the full term set of a run, in ledger order, in one
// transaction. Idempotent per (run_id, term_id); the run record must
// already exist (foreign key constraint).
func (s *Store) WriteTerms(ctx context.Context, runID string, terms []ir.Term) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("trace: write terms: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO terms
		(run_id, term_id, seq, kind, status, expression, citation, multiplicity, scale, term_json, meta_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, term_id) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("trace: write terms: prepare: %w", err)
	}
	defer stmt.Close()

	for seq, t := range terms {
		termJSON, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("trace: write terms: marshal %s: %w", t.ID, err)
		}
		metaJSON, err := ir.EncodeMeta(t.Meta)
		if err != nil {
			return fmt.Errorf("trace: write terms: %s: %w", t.ID, err)
		}

		_, err = stmt.ExecContext(ctx,
			runID,
			string(t.ID),
			seq,
			string(t.Kind),
			string(t.Status),
			t.Expression,
			t.Citation,
			t.Multiplicity,
			t.Scale.String(),
			string(termJSON),
			string(metaJSON),
		)
		if err != nil {
			return fmt.Errorf("trace: write terms: insert %s: %w", t.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("trace: write terms: commit: %w", err)
	}
	return nil
}
