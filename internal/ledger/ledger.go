package ledger

import (
	"fmt"

	"github.com/JohnNDvorak/mollitheta/internal/ir"
	"github.com/JohnNDvorak/mollitheta/internal/scale"
)

// Ledger is the append-only collection of terms for one run.
// Not safe for concurrent writers; a run is single-threaded by design and
// each run owns a disjoint ledger.
type Ledger struct {
	terms map[ir.TermID]ir.Term
	order []ir.TermID
	seq   int
}

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{terms: make(map[ir.TermID]ir.Term)}
}

// Draft is the construction request for a new term. The ledger assigns
// the identifier, derives the history from the first parent, and
// validates the construction gates before the term enters the set.
type Draft struct {
	Kind       ir.Kind
	Status     ir.Status // zero value means Active
	Expression string
	Variables  []string
	Ranges     []ir.Range
	Kernels    []ir.Kernel
	Phases     []ir.Phase
	Scale      scale.Model
	Parents    []ir.TermID
	Citation   string
	// Multiplicity zero means 1.
	Multiplicity int
	Meta         []ir.StageMeta

	// Transform names the step that produced this term; it becomes the
	// history entry. Required.
	Transform      string
	Note           string
	RemovedKernels []string
	Warning        bool
}

// Create constructs a new immutable term from the draft and appends it to
// the ledger. Fails with a ValidationError if any parent ID is unknown or
// a per-term construction rule is violated; on failure nothing enters the
// ledger.
func (l *Ledger) Create(d Draft) (ir.Term, error) {
	if d.Transform == "" {
		return ir.Term{}, fmt.Errorf("ledger: draft without transform name")
	}
	for _, p := range d.Parents {
		if _, ok := l.terms[p]; !ok {
			return ir.Term{}, &ir.ValidationError{
				Code:    ir.ErrCodeUnknownParent,
				Message: fmt.Sprintf("parent %q not in term set", p),
			}
		}
	}

	entry := ir.HistoryEntry{
		Transform:      d.Transform,
		Parents:        ir.CopyParents(d.Parents),
		Note:           d.Note,
		RemovedKernels: append([]string(nil), d.RemovedKernels...),
		Warning:        d.Warning,
	}
	var history []ir.HistoryEntry
	if len(d.Parents) > 0 {
		// Primary lineage: the first parent's history carries forward.
		history = ir.CopyHistory(l.terms[d.Parents[0]].History)
	}
	history = append(history, entry)

	status := d.Status
	if status == "" {
		status = ir.StatusActive
	}
	mult := d.Multiplicity
	if mult == 0 {
		mult = 1
	}

	l.seq++
	term := ir.Term{
		ID:           ir.TermID(fmt.Sprintf("t-%04d", l.seq)),
		Kind:         d.Kind,
		Status:       status,
		Expression:   d.Expression,
		Variables:    ir.CopyVariables(d.Variables),
		Ranges:       ir.CopyRanges(d.Ranges),
		Kernels:      ir.CopyKernels(d.Kernels),
		Phases:       ir.CopyPhases(d.Phases),
		Scale:        d.Scale,
		History:      history,
		Parents:      ir.CopyParents(d.Parents),
		Citation:     d.Citation,
		Multiplicity: mult,
		Meta:         append([]ir.StageMeta(nil), d.Meta...),
	}

	if err := ir.Validate(term); err != nil {
		l.seq--
		return ir.Term{}, err
	}

	l.terms[term.ID] = term
	l.order = append(l.order, term.ID)
	return term, nil
}

// Reclassify constructs a successor of t with a new status (and citation,
// for BoundOnly). The input term is untouched; the successor records the
// reclassification as a history step with t as its only parent.
func (l *Ledger) Reclassify(t ir.Term, status ir.Status, citation string) (ir.Term, error) {
	return l.Create(Draft{
		Kind:         t.Kind,
		Status:       status,
		Expression:   t.Expression,
		Variables:    t.Variables,
		Ranges:       t.Ranges,
		Kernels:      t.Kernels,
		Phases:       t.Phases,
		Scale:        t.Scale,
		Parents:      []ir.TermID{t.ID},
		Citation:     citation,
		Multiplicity: t.Multiplicity,
		Meta:         t.Meta,
		Transform:    "Reclassify",
		Note:         fmt.Sprintf("status %s -> %s", t.Status, status),
	})
}

// Get retrieves a term by ID.
func (l *Ledger) Get(id ir.TermID) (ir.Term, bool) {
	t, ok := l.terms[id]
	return t, ok
}

// Contains reports whether the ID is in the term set.
func (l *Ledger) Contains(id ir.TermID) bool {
	_, ok := l.terms[id]
	return ok
}

// Len returns the number of terms.
func (l *Ledger) Len() int { return len(l.terms) }

// All returns every term in insertion order.
func (l *Ledger) All() []ir.Term {
	out := make([]ir.Term, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, l.terms[id])
	}
	return out
}

// ByStatus returns terms with the given status, in insertion order.
func (l *Ledger) ByStatus(s ir.Status) []ir.Term {
	return l.Filter(func(t ir.Term) bool { return t.Status == s })
}

// ByKind returns terms of the given kind, in insertion order.
func (l *Ledger) ByKind(k ir.Kind) []ir.Term {
	return l.Filter(func(t ir.Term) bool { return t.Kind == k })
}

// Filter returns terms satisfying the predicate, in insertion order.
func (l *Ledger) Filter(pred func(ir.Term) bool) []ir.Term {
	var out []ir.Term
	for _, id := range l.order {
		if t := l.terms[id]; pred(t) {
			out = append(out, t)
		}
	}
	return out
}

// Leaves returns the terms no other term derives from, in insertion
// order. Leaves are the surviving contributions of a run; every interior
// term has been superseded by its successors.
func (l *Ledger) Leaves() []ir.Term {
	referenced := map[ir.TermID]bool{}
	for _, t := range l.terms {
		for _, p := range t.Parents {
			referenced[p] = true
		}
	}
	return l.Filter(func(t ir.Term) bool { return !referenced[t.ID] })
}

// Clone returns a shallow copy sharing the immutable terms. Used by the
// transform runner for copy-on-write staging: a failed stage discards the
// clone and the original ledger is untouched.
func (l *Ledger) Clone() *Ledger {
	terms := make(map[ir.TermID]ir.Term, len(l.terms))
	for id, t := range l.terms {
		terms[id] = t
	}
	return &Ledger{
		terms: terms,
		order: append([]ir.TermID(nil), l.order...),
		seq:   l.seq,
	}
}

// Adopt replaces this ledger's contents with those of the clone.
// Called by the runner when a stage commits.
func (l *Ledger) Adopt(clone *Ledger) {
	l.terms = clone.terms
	l.order = clone.order
	l.seq = clone.seq
}

// Root walks parent links from id and returns the unique parentless root.
// Returns an error if the walk does not terminate within the ledger size
// (a cycle, impossible by construction) or if the ancestry contains more
// than one root.
func (l *Ledger) Root(id ir.TermID) (ir.Term, error) {
	start, ok := l.terms[id]
	if !ok {
		return ir.Term{}, fmt.Errorf("ledger: unknown term %q", id)
	}

	bound := len(l.terms) + 1
	seen := map[ir.TermID]bool{}
	frontier := []ir.Term{start}
	var roots []ir.Term

	for steps := 0; len(frontier) > 0; steps++ {
		if steps > bound {
			return ir.Term{}, fmt.Errorf("ledger: lineage walk from %q exceeded %d steps", id, bound)
		}
		next := frontier
		frontier = nil
		for _, t := range next {
			if seen[t.ID] {
				continue
			}
			seen[t.ID] = true
			if len(t.Parents) == 0 {
				roots = append(roots, t)
				continue
			}
			for _, p := range t.Parents {
				pt, ok := l.terms[p]
				if !ok {
					return ir.Term{}, fmt.Errorf("ledger: term %q references unknown parent %q", t.ID, p)
				}
				frontier = append(frontier, pt)
			}
		}
	}

	if len(roots) != 1 {
		return ir.Term{}, fmt.Errorf("ledger: term %q has %d roots, want exactly 1", id, len(roots))
	}
	return roots[0], nil
}

// DerivationPath returns the primary-parent chain from the root to id,
// inclusive. The primary parent is the first entry of the parent list.
func (l *Ledger) DerivationPath(id ir.TermID) ([]ir.TermID, error) {
	t, ok := l.terms[id]
	if !ok {
		return nil, fmt.Errorf("ledger: unknown term %q", id)
	}
	var rev []ir.TermID
	bound := len(l.terms) + 1
	for steps := 0; ; steps++ {
		if steps > bound {
			return nil, fmt.Errorf("ledger: derivation walk from %q exceeded %d steps", id, bound)
		}
		rev = append(rev, t.ID)
		if len(t.Parents) == 0 {
			break
		}
		parent, ok := l.terms[t.Parents[0]]
		if !ok {
			return nil, fmt.Errorf("ledger: term %q references unknown parent %q", t.ID, t.Parents[0])
		}
		t = parent
	}
	path := make([]ir.TermID, len(rev))
	for i, id := range rev {
		path[len(rev)-1-i] = id
	}
	return path, nil
}
