// Package catalog holds the declarative bound catalog: the published
// estimates the lemma layer is allowed to cite, with their error
// exponents as exact rational coefficients. The catalog is written in
// CUE and compiled at load time through the CUE Go API.
package catalog

import (
	_ "embed"
	"fmt"
	"math/big"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/JohnNDvorak/mollitheta/internal/scale"
)

//go:embed lemmas.cue
var lemmasSource string

// Entry is one catalog bound: a citable estimate with its error exponent
// c + s*theta.
type Entry struct {
	Name        string
	Family      string
	Citation    string
	Exponent    scale.Linear
	Requires    []string
	Description string
}

// Catalog is the compiled bound catalog.
type Catalog struct {
	entries []Entry
	byName  map[string]Entry
}

// Load compiles the embedded catalog source.
func Load() (*Catalog, error) {
	return compile(lemmasSource)
}

func compile(source string) (*Catalog, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(source)
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	boundVal := v.LookupPath(cue.ParsePath("bound"))
	if !boundVal.Exists() {
		return nil, &LoadError{Field: "bound", Message: "bound block is required", Pos: v.Pos()}
	}

	iter, err := boundVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	c := &Catalog{byName: make(map[string]Entry)}
	for iter.Next() {
		entry, err := parseEntry(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		if _, dup := c.byName[entry.Name]; dup {
			return nil, &LoadError{
				Field:   entry.Name,
				Message: "duplicate bound name",
				Pos:     iter.Value().Pos(),
			}
		}
		c.entries = append(c.entries, entry)
		c.byName[entry.Name] = entry
	}
	if len(c.entries) == 0 {
		return nil, &LoadError{Field: "bound", Message: "at least one bound is required", Pos: boundVal.Pos()}
	}
	return c, nil
}

func parseEntry(name string, v cue.Value) (Entry, error) {
	entry := Entry{Name: name}

	var err error
	if entry.Family, err = requiredString(v, "family"); err != nil {
		return entry, err
	}
	if entry.Citation, err = requiredString(v, "citation"); err != nil {
		return entry, err
	}

	expVal := v.LookupPath(cue.ParsePath("exponent"))
	if !expVal.Exists() {
		return entry, &LoadError{
			Field:   fmt.Sprintf("bound.%s.exponent", name),
			Message: "exponent is required",
			Pos:     v.Pos(),
		}
	}
	thetaNum, err := requiredInt(expVal, "theta_num")
	if err != nil {
		return entry, err
	}
	thetaDen, err := requiredInt(expVal, "theta_den")
	if err != nil {
		return entry, err
	}
	constNum, err := requiredInt(expVal, "const_num")
	if err != nil {
		return entry, err
	}
	constDen, err := requiredInt(expVal, "const_den")
	if err != nil {
		return entry, err
	}
	if thetaDen == 0 || constDen == 0 {
		return entry, &LoadError{
			Field:   fmt.Sprintf("bound.%s.exponent", name),
			Message: "zero denominator",
			Pos:     expVal.Pos(),
		}
	}
	entry.Exponent = scale.NewLinear(
		big.NewRat(constNum, constDen),
		big.NewRat(thetaNum, thetaDen),
	)

	reqVal := v.LookupPath(cue.ParsePath("requires"))
	if reqVal.Exists() {
		reqIter, err := reqVal.List()
		if err != nil {
			return entry, formatCUEError(err)
		}
		for reqIter.Next() {
			s, err := reqIter.Value().String()
			if err != nil {
				return entry, formatCUEError(err)
			}
			entry.Requires = append(entry.Requires, s)
		}
	}

	descVal := v.LookupPath(cue.ParsePath("description"))
	if descVal.Exists() {
		if entry.Description, err = descVal.String(); err != nil {
			return entry, formatCUEError(err)
		}
	}
	return entry, nil
}

func requiredString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", &LoadError{Field: field, Message: field + " is required", Pos: v.Pos()}
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func requiredInt(v cue.Value, field string) (int64, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return 0, &LoadError{Field: field, Message: field + " is required", Pos: v.Pos()}
	}
	n, err := fv.Int64()
	if err != nil {
		return 0, formatCUEError(err)
	}
	return n, nil
}

// Entry returns the named bound.
func (c *Catalog) Entry(name string) (Entry, bool) {
	e, ok := c.byName[name]
	return e, ok
}

// Entries returns all bounds in catalog order.
func (c *Catalog) Entries() []Entry {
	return append([]Entry(nil), c.entries...)
}

// ByFamily returns the bounds of one family, in catalog order.
func (c *Catalog) ByFamily(family string) []Entry {
	var out []Entry
	for _, e := range c.entries {
		if e.Family == family {
			out = append(out, e)
		}
	}
	return out
}

// LoadError reports a catalog compilation failure with source position.
type LoadError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func formatCUEError(err error) error {
	if err == nil {
		return nil
	}
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		return &LoadError{Field: "cue", Message: first.Error(), Pos: positions[0]}
	}
	return err
}
