package assignment

import (
	"fmt"
	"time"
)

// IntegrationType identifies the inbound lead channel an integration
// belongs to.
type IntegrationType string

const (
	TypeWebsite  IntegrationType = "website"
	TypeFacebook IntegrationType = "facebook"
	TypeShopify  IntegrationType = "shopify"
	TypeGeneric  IntegrationType = "generic"
)

var validTypes = map[IntegrationType]bool{
	TypeWebsite:  true,
	TypeFacebook: true,
	TypeShopify:  true,
	TypeGeneric:  true,
}

func (t IntegrationType) Valid() bool { return validTypes[t] }

// Key addresses one integration's assignment record.
type Key struct {
	Type IntegrationType `json:"integration_type"`
	ID   string          `json:"integration_id"`
}

func (k Key) String() string { return fmt.Sprintf("%s/%s", k.Type, k.ID) }

type Mode string

const (
	ModeManual   Mode = "manual"
	ModeAuto     Mode = "auto"
	ModeSpecific Mode = "specific"
)

func (m Mode) Valid() bool {
	return m == ModeManual || m == ModeAuto || m == ModeSpecific
}

type Algorithm string

const (
	AlgoRoundRobin         Algorithm = "round-robin"
	AlgoWeightedRoundRobin Algorithm = "weighted-round-robin"
	AlgoLeastActive        Algorithm = "least-active"
	AlgoRandom             Algorithm = "random"
)

func (a Algorithm) Valid() bool {
	switch a {
	case AlgoRoundRobin, AlgoWeightedRoundRobin, AlgoLeastActive, AlgoRandom:
		return true
	}
	return false
}

// Target is one configured assignee. Inactive targets stay in configuration
// but are excluded from every resolved pool.
type Target struct {
	Identifier string `json:"identifier"`
	Weight     int    `json:"weight"`
	Active     bool   `json:"active"`
}

// Cursor is the durable "where we left off" marker for one integration.
// LastIndex is a position within the pool expansion computed for the decision
// that wrote it; -1 means nothing has been consumed yet (fresh or reset
// cursor). Version is the optimistic-concurrency guard: a commit only
// succeeds when the stored version still matches the one the decision read.
type Cursor struct {
	LastIndex      int        `json:"last_index"`
	LastAssignedTo *string    `json:"last_assigned_to,omitempty"`
	LastAssignedAt *time.Time `json:"last_assigned_at,omitempty"`
	Version        int64      `json:"version"`
}

// FreshCursor returns the cursor state of a never-assigned integration.
func FreshCursor() Cursor {
	return Cursor{LastIndex: -1}
}

// Policy is the per-integration assignment configuration. The engine reads
// everything and mutates only the cursor.
type Policy struct {
	Enabled   bool      `json:"enabled"`
	Mode      Mode      `json:"mode"`
	Algorithm Algorithm `json:"algorithm"`
	Targets   []Target  `json:"targets"`
	Cursor    Cursor    `json:"cursor"`
}

// Applicable reports whether the engine should assign at all under this
// policy. Disabled or manual-mode integrations are a normal short-circuit,
// not an error.
func (p Policy) Applicable() bool {
	return p.Enabled && p.Mode != ModeManual && p.Mode != ""
}

// ActiveTargets returns the targets eligible for pool membership, in
// configuration order.
func (p Policy) ActiveTargets() []Target {
	out := make([]Target, 0, len(p.Targets))
	for _, t := range p.Targets {
		if t.Active {
			out = append(out, t)
		}
	}
	return out
}

// Validate rejects malformed configuration before it is persisted. The
// engine itself treats a malformed stored policy as a hard failure.
func (p Policy) Validate() error {
	if !p.Mode.Valid() {
		return fmt.Errorf("invalid assignment mode %q", p.Mode)
	}
	if p.Algorithm != "" && !p.Algorithm.Valid() {
		return fmt.Errorf("invalid assignment algorithm %q", p.Algorithm)
	}
	for i, t := range p.Targets {
		if t.Identifier == "" {
			return fmt.Errorf("target %d: empty identifier", i)
		}
		if t.Weight < 0 || t.Weight > 10 {
			return fmt.Errorf("target %q: weight %d out of range 1..10", t.Identifier, t.Weight)
		}
	}
	return nil
}

// Outcome is what one assignment decision produced. It is returned to the
// triggering channel collaborator and never persisted by this core.
type Outcome struct {
	Assigned           bool   `json:"assigned"`
	Assignee           string `json:"assignee,omitempty"`
	Reason             string `json:"reason,omitempty"`
	AlgorithmUsed      string `json:"algorithm_used,omitempty"`
	FairnessGuaranteed bool   `json:"fairness_guaranteed"`
}

// Non-assignment reasons surfaced in Outcome.Reason. Business outcomes are
// reasons, never errors — lead creation must not be blocked by assignment.
const (
	ReasonDisabledOrManual = "disabled-or-manual"
	ReasonNoEligibleUsers  = "no-eligible-users"
)
