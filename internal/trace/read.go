package trace

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/JohnNDvorak/mollitheta/internal/ir"
)

// TermRecord is one stored term row. Structured fields (ranges, kernels,
// phases, history) live in the Term. The scale and metadata survive only
// in their serialized forms: the symbolic exponent and the metadata
// union do not round-trip through JSON.
type TermRecord struct {
	RunID    string
	Seq      int
	Term     ir.Term
	Scale    string
	MetaJSON string
}

// GetRun returns the stored run record.
// The second return value is false if the run is not on file.
func (s *Store) GetRun(ctx context.Context, id string) (RunRecord, bool, error) {
	var rec RunRecord
	err := s.db.QueryRowContext(ctx, `
		SELECT id, theta, k, verdict, boundary, exponent, governing
		FROM runs WHERE id = ?
	`, id).Scan(&rec.ID, &rec.Theta, &rec.K, &rec.Verdict, &rec.Boundary, &rec.Exponent, &rec.Governing)
	if errors.Is(err, sql.ErrNoRows) {
		return RunRecord{}, false, nil
	}
	if err != nil {
		return RunRecord{}, false, fmt.Errorf("trace: get run: %w", err)
	}
	return rec, true, nil
}

// ListRuns returns all stored runs ordered by creation time. UUIDv7 run
// identifiers make the id ordering agree with the insertion ordering.
func (s *Store) ListRuns(ctx context.Context) ([]RunRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, theta, k, verdict, boundary, exponent, governing
		FROM runs ORDER BY created_at, id
	`)
	if err != nil {
		return nil, fmt.Errorf("trace: list runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var rec RunRecord
		if err := rows.Scan(&rec.ID, &rec.Theta, &rec.K, &rec.Verdict, &rec.Boundary, &rec.Exponent, &rec.Governing); err != nil {
			return nil, fmt.Errorf("trace: list runs: scan: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("trace: list runs: %w", err)
	}
	return out, nil
}

// Terms returns the stored term set of a run in ledger order.
func (s *Store) Terms(ctx context.Context, runID string) ([]TermRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, scale, term_json, meta_json
		FROM terms WHERE run_id = ? ORDER BY seq
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("trace: terms: %w", err)
	}
	defer rows.Close()

	var out []TermRecord
	for rows.Next() {
		rec := TermRecord{RunID: runID}
		var termJSON string
		if err := rows.Scan(&rec.Seq, &rec.Scale, &termJSON, &rec.MetaJSON); err != nil {
			return nil, fmt.Errorf("trace: terms: scan: %w", err)
		}
		if err := json.Unmarshal([]byte(termJSON), &rec.Term); err != nil {
			return nil, fmt.Errorf("trace: terms: decode: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("trace: terms: %w", err)
	}
	return out, nil
}

// BoundOnlyTerms returns the stored BoundOnly rows of a run: the cited
// bounds the run rests on.
func (s *Store) BoundOnlyTerms(ctx context.Context, runID string) ([]TermRecord, error) {
	all, err := s.Terms(ctx, runID)
	if err != nil {
		return nil, err
	}
	var out []TermRecord
	for _, rec := range all {
		if rec.Term.Status == ir.StatusBoundOnly {
			out = append(out, rec)
		}
	}
	return out, nil
}
