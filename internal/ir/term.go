package ir

import (
	"slices"

	"github.com/JohnNDvorak/mollitheta/internal/scale"
)

// TermID uniquely identifies a term within one pipeline run.
// IDs are assigned by the ledger at construction and never reused.
type TermID string

// Kind is the structural kind of a term.
type Kind string

const (
	KindIntegral     Kind = "Integral"
	KindDirichletSum Kind = "DirichletSum"
	KindCross        Kind = "Cross"
	KindDiagonal     Kind = "Diagonal"
	KindOffDiagonal  Kind = "OffDiagonal"
	KindKloosterman  Kind = "Kloosterman"
	KindSpectral     Kind = "Spectral"
	KindError        Kind = "Error"
)

// Status is the lifecycle status of a term.
type Status string

const (
	StatusActive    Status = "Active"
	StatusMainTerm  Status = "MainTerm"
	StatusBoundOnly Status = "BoundOnly"
	StatusError     Status = "Error"
)

// Range is a summation or integration range for one variable.
// Purely descriptive; the scale model derives sum-length exponents from it.
type Range struct {
	Variable    string `json:"variable"`
	Lower       string `json:"lower"`
	Upper       string `json:"upper"`
	Description string `json:"description,omitempty"`
}

// Kernel is a named smooth weight attached to a term.
// Kernels are never implicitly dropped: a transform that removes one must
// list it in the output term's history entry (HistoryEntry.RemovedKernels).
type Kernel struct {
	Name        string            `json:"name"`
	Support     string            `json:"support,omitempty"`
	Argument    string            `json:"argument,omitempty"`
	Description string            `json:"description,omitempty"`
	Properties  map[string]string `json:"properties,omitempty"`
}

// Phase is an oscillatory factor tracked on a term.
//
// A phase is conserved into some output term of every transform unless a
// dedicated absorption step marks it Absorbed, or the transform records
// its consumption in stage metadata.
type Phase struct {
	Expression  string   `json:"expression"`
	Separable   bool     `json:"separable"`
	Absorbed    bool     `json:"absorbed"`
	UnitModulus bool     `json:"unit_modulus"`
	DependsOn   []string `json:"depends_on,omitempty"`
}

// HistoryEntry is one step in a term's derivation history.
type HistoryEntry struct {
	Transform string   `json:"transform"`
	Parents   []TermID `json:"parents,omitempty"`
	Note      string   `json:"note,omitempty"`

	// RemovedKernels documents kernels deliberately dropped by this step.
	// The post-transform invariant check accepts a missing kernel only
	// when it is listed here.
	RemovedKernels []string `json:"removed_kernels,omitempty"`

	// Warning marks entries recording structural inapplicability
	// (e.g. an undecidable diagonal predicate) rather than progress.
	Warning bool `json:"warning,omitempty"`
}

// Term is the central immutable value: one symbolic object in the
// expansion. Transforms never mutate a Term; they construct successors
// through the ledger.
type Term struct {
	ID           TermID         `json:"id"`
	Kind         Kind           `json:"kind"`
	Status       Status         `json:"status"`
	Expression   string         `json:"expression"`
	Variables    []string       `json:"variables,omitempty"`
	Ranges       []Range        `json:"ranges,omitempty"`
	Kernels      []Kernel       `json:"kernels,omitempty"`
	Phases       []Phase        `json:"phases,omitempty"`
	Scale        scale.Model    `json:"scale"`
	History      []HistoryEntry `json:"history"`
	Parents      []TermID       `json:"parents,omitempty"`
	Citation     string         `json:"citation,omitempty"`
	Multiplicity int            `json:"multiplicity"`
	Meta         []StageMeta    `json:"-"`
}

// HasVariable reports whether the term sums or integrates over v.
func (t Term) HasVariable(v string) bool {
	return slices.Contains(t.Variables, v)
}

// RangeFor returns the range for a variable, if present.
func (t Term) RangeFor(v string) (Range, bool) {
	for _, r := range t.Ranges {
		if r.Variable == v {
			return r, true
		}
	}
	return Range{}, false
}

// KernelNames returns the attached kernel names in order.
func (t Term) KernelNames() []string {
	names := make([]string, len(t.Kernels))
	for i, k := range t.Kernels {
		names[i] = k.Name
	}
	return names
}

// PhaseExpressions returns the attached phase expressions in order.
func (t Term) PhaseExpressions() []string {
	exprs := make([]string, len(t.Phases))
	for i, p := range t.Phases {
		exprs[i] = p.Expression
	}
	return exprs
}

// LastHistory returns the most recent history entry.
// Every term has at least one entry (its construction record).
func (t Term) LastHistory() HistoryEntry {
	return t.History[len(t.History)-1]
}

// CopyVariables returns a defensive copy of the variable list.
func CopyVariables(vs []string) []string {
	return slices.Clone(vs)
}

// CopyRanges returns a defensive copy of a range list.
func CopyRanges(rs []Range) []Range {
	return slices.Clone(rs)
}

// CopyKernels returns a deep copy of a kernel list.
func CopyKernels(ks []Kernel) []Kernel {
	out := make([]Kernel, len(ks))
	for i, k := range ks {
		out[i] = k
		if k.Properties != nil {
			props := make(map[string]string, len(k.Properties))
			for pk, pv := range k.Properties {
				props[pk] = pv
			}
			out[i].Properties = props
		}
	}
	return out
}

// CopyPhases returns a deep copy of a phase list.
func CopyPhases(ps []Phase) []Phase {
	out := make([]Phase, len(ps))
	for i, p := range ps {
		out[i] = p
		out[i].DependsOn = slices.Clone(p.DependsOn)
	}
	return out
}

// CopyHistory returns a deep copy of a history list.
func CopyHistory(hs []HistoryEntry) []HistoryEntry {
	out := make([]HistoryEntry, len(hs))
	for i, h := range hs {
		out[i] = h
		out[i].Parents = slices.Clone(h.Parents)
		out[i].RemovedKernels = slices.Clone(h.RemovedKernels)
	}
	return out
}

// CopyParents returns a defensive copy of a parent-ID list.
func CopyParents(ps []TermID) []TermID {
	return slices.Clone(ps)
}
