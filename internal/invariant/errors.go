package invariant

import (
	"errors"
	"fmt"
	"strings"

	"github.com/JohnNDvorak/mollitheta/internal/ir"
)

// Code identifies the violated rule.
type Code string

const (
	// CodePhaseLost indicates an input phase absent from every output
	// term without an absorption or recorded consumption.
	CodePhaseLost Code = "PHASE_LOST"

	// CodeKernelLost indicates an input kernel absent from every output
	// term without a documented removal in any output's history entry.
	CodeKernelLost Code = "KERNEL_LOST"

	// CodeMissingCitation indicates a BoundOnly term without a citation.
	CodeMissingCitation Code = "MISSING_CITATION"

	// CodeOrphanOutput indicates an output term that does not name any
	// stage input among its parents.
	CodeOrphanOutput Code = "ORPHAN_OUTPUT"

	// CodeAbsorptionUnjustified indicates an absorbed phase without a
	// size-neutrality record.
	CodeAbsorptionUnjustified Code = "ABSORPTION_UNJUSTIFIED"
)

// Violation is one failed predicate, tied to the offending term when one
// can be named.
type Violation struct {
	Code    Code
	TermID  ir.TermID
	Message string
}

func (v Violation) String() string {
	if v.TermID != "" {
		return fmt.Sprintf("%s: %s (term=%s)", v.Code, v.Message, v.TermID)
	}
	return fmt.Sprintf("%s: %s", v.Code, v.Message)
}

// Error aggregates the violations found after one transform stage.
// It fails the whole run; it is not a warning.
type Error struct {
	Stage      string
	Violations []Violation
}

// Error implements the error interface.
func (e *Error) Error() string {
	lines := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		lines[i] = "  " + v.String()
	}
	return fmt.Sprintf("invariant violation after %s:\n%s",
		e.Stage, strings.Join(lines, "\n"))
}

// IsViolation reports whether err is a post-transform invariant failure.
// Uses errors.As to handle wrapped errors.
func IsViolation(err error) bool {
	var ie *Error
	return errors.As(err, &ie)
}
