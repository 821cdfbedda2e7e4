package ir

import (
	"encoding/json"
	"fmt"

	"github.com/JohnNDvorak/mollitheta/internal/scale"
)

// StageMeta is a sealed interface over per-stage metadata records.
// One variant exists per pipeline stage that needs to attach structured
// data to a term; the set is closed so downstream consumers can switch
// exhaustively.
type StageMeta interface {
	stageMeta()

	// MetaKind is the stable discriminator used in serialized form.
	MetaKind() string
}

// CrossMeta records which mollifier pair produced a cross term.
type CrossMeta struct {
	L1           int  `json:"l1"`
	L2           int  `json:"l2"`
	DiagonalPair bool `json:"diagonal_pair"`
}

func (CrossMeta) stageMeta()       {}
func (CrossMeta) MetaKind() string { return "cross" }

// IntegrationMeta records the t-integration step: the kernel that replaced
// the integral and the phases the integration consumed. Consumption listed
// here is authoritative for the phase-conservation check.
type IntegrationMeta struct {
	KernelName     string   `json:"kernel_name"`
	ConsumedPhases []string `json:"consumed_phases,omitempty"`
}

func (IntegrationMeta) stageMeta()       {}
func (IntegrationMeta) MetaKind() string { return "integration" }

// SplitMeta records which side of the diagonal split a term landed on.
type SplitMeta struct {
	Role string `json:"role"` // "diagonal" or "off_diagonal"
}

func (SplitMeta) stageMeta()       {}
func (SplitMeta) MetaKind() string { return "split" }

// ExtractMeta records the diagonal extraction role and the log power of
// the extracted leading behavior.
type ExtractMeta struct {
	Role     string `json:"role"` // "main_term" or "residual"
	LogPower int    `json:"log_power"`
}

func (ExtractMeta) stageMeta()       {}
func (ExtractMeta) MetaKind() string { return "extract" }

// DeltaMeta records the delta-method stage a term has reached.
type DeltaMeta struct {
	Stage           string `json:"stage"` // "setup" or "collapsed"
	Collapsed       bool   `json:"collapsed"`
	ModulusVariable string `json:"modulus_variable"`
}

func (DeltaMeta) stageMeta()       {}
func (DeltaMeta) MetaKind() string { return "delta" }

// KloostermanMeta records Kloosterman formation. ConsumedPhases is the
// authoritative list of additive-character phases folded into S(m,n;c);
// the phase-conservation check accepts a missing phase only when it is
// recorded here or in IntegrationMeta.
type KloostermanMeta struct {
	Formed         bool     `json:"formed"`
	Variables      []string `json:"variables,omitempty"`
	ConsumedPhases []string `json:"consumed_phases,omitempty"`
}

func (KloostermanMeta) stageMeta()       {}
func (KloostermanMeta) MetaKind() string { return "kloosterman" }

// AbsorptionMeta records phase absorption together with its
// size-neutrality witness: the combined scale of the absorbed phases,
// which must be the unit model (unit-modulus factors carry no size).
type AbsorptionMeta struct {
	AbsorbedPhases []string    `json:"absorbed_phases"`
	Justification  string      `json:"justification"`
	Neutrality     scale.Model `json:"neutrality"`
}

func (AbsorptionMeta) stageMeta()       {}
func (AbsorptionMeta) MetaKind() string { return "absorption" }

// BoundMeta records an applied bound on a BoundOnly term.
type BoundMeta struct {
	Family        string `json:"family"`
	Citation      string `json:"citation"`
	ErrorExponent string `json:"error_exponent"`
}

func (BoundMeta) stageMeta()       {}
func (BoundMeta) MetaKind() string { return "bound" }

// FindMeta returns the metadata record of type M on the term. Records
// accumulate in stage order, so the most recent one wins: a term that
// passed through delta setup and then collapse reports the collapse
// record.
func FindMeta[M StageMeta](t Term) (M, bool) {
	for i := len(t.Meta) - 1; i >= 0; i-- {
		if v, ok := t.Meta[i].(M); ok {
			return v, true
		}
	}
	var zero M
	return zero, false
}

// AppendMeta returns a new metadata list with m appended.
// The input list is not modified.
func AppendMeta(meta []StageMeta, m StageMeta) []StageMeta {
	out := make([]StageMeta, 0, len(meta)+1)
	out = append(out, meta...)
	return append(out, m)
}

// EncodeMeta serializes a metadata list with explicit type discriminators,
// for the derivation-trace store.
func EncodeMeta(meta []StageMeta) ([]byte, error) {
	type tagged struct {
		Type string    `json:"type"`
		Data StageMeta `json:"data"`
	}
	records := make([]tagged, len(meta))
	for i, m := range meta {
		records[i] = tagged{Type: m.MetaKind(), Data: m}
	}
	b, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("encode stage metadata: %w", err)
	}
	return b, nil
}
