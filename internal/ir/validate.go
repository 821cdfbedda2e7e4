package ir

import (
	"errors"
	"fmt"
)

// ValidationError reports a construction-time rule violation. It aborts
// the construction of the offending term; it is never deferred to a
// later audit.
type ValidationError struct {
	Code    ValidationCode
	TermID  TermID
	Message string
}

// ValidationCode categorizes construction-time failures.
type ValidationCode string

const (
	// ErrCodeMissingCitation indicates a BoundOnly term without a citation.
	ErrCodeMissingCitation ValidationCode = "MISSING_CITATION"

	// ErrCodeUnknownParent indicates a parent ID not present in the run's
	// term set at construction time.
	ErrCodeUnknownParent ValidationCode = "UNKNOWN_PARENT"

	// ErrCodeBadMultiplicity indicates a non-positive multiplicity.
	ErrCodeBadMultiplicity ValidationCode = "BAD_MULTIPLICITY"

	// ErrCodePhaseDeps indicates a phase depending on a variable the term
	// does not carry.
	ErrCodePhaseDeps ValidationCode = "PHASE_DEPENDENCIES"

	// ErrCodeDuplicateID indicates an identifier reuse attempt.
	ErrCodeDuplicateID ValidationCode = "DUPLICATE_ID"
)

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.TermID != "" {
		return fmt.Sprintf("%s: %s (term=%s)", e.Code, e.Message, e.TermID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsValidation reports whether err is a construction-time validation
// failure. Uses errors.As to handle wrapped errors.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Validate runs the per-term construction rules:
// BoundOnly requires a citation, multiplicity is positive, and phase
// dependencies are a subset of the term's variables.
func Validate(t Term) error {
	if t.Status == StatusBoundOnly && t.Citation == "" {
		return &ValidationError{
			Code:    ErrCodeMissingCitation,
			TermID:  t.ID,
			Message: "BoundOnly term without citation",
		}
	}
	if t.Multiplicity < 1 {
		return &ValidationError{
			Code:    ErrCodeBadMultiplicity,
			TermID:  t.ID,
			Message: fmt.Sprintf("multiplicity %d, want >= 1", t.Multiplicity),
		}
	}
	for _, p := range t.Phases {
		for _, dep := range p.DependsOn {
			if !t.HasVariable(dep) {
				return &ValidationError{
					Code:   ErrCodePhaseDeps,
					TermID: t.ID,
					Message: fmt.Sprintf(
						"phase %q depends on %q, not among term variables",
						p.Expression, dep),
				}
			}
		}
	}
	return nil
}
