package identity

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Kind distinguishes the two assignee populations. Humans live in the
// organization directory; agents are autonomous workers identified by a
// UUID and are not necessarily known to the directory at all.
type Kind string

const (
	KindHuman Kind = "human"
	KindAgent Kind = "agent"
)

// AgentDomain is the reserved local namespace for synthesized agent
// addresses. Nothing is ever delivered there.
const AgentDomain = "agents.lead-mesh.local"

// EligibleUser is one candidate assignee in a resolved pool. It is computed
// fresh for every assignment decision and never persisted.
type EligibleUser struct {
	Identifier   string `json:"identifier"`
	Kind         Kind   `json:"kind"`
	Weight       int    `json:"weight"`
	DisplayName  string `json:"display_name,omitempty"`
	DisplayEmail string `json:"display_email,omitempty"`
}

// Classify reports whether an assignment-target identifier denotes a human
// operator or an autonomous agent. An identifier is an agent iff it is the
// canonical hyphenated UUID form with a version nibble of 1-5 and an
// RFC 4122 variant. Everything else, including other UUID text forms that
// uuid.Parse would accept (urn: prefix, braces, no hyphens), is a human.
func Classify(identifier string) Kind {
	if !canonicalForm(identifier) {
		return KindHuman
	}
	u, err := uuid.Parse(identifier)
	if err != nil {
		return KindHuman
	}
	if v := u.Version(); v < 1 || v > 5 {
		return KindHuman
	}
	if u.Variant() != uuid.RFC4122 {
		return KindHuman
	}
	return KindAgent
}

// canonicalForm checks the 8-4-4-4-12 hyphenated layout before handing the
// string to uuid.Parse, which is laxer than the classifier contract.
func canonicalForm(s string) bool {
	if len(s) != 36 {
		return false
	}
	return s[8] == '-' && s[13] == '-' && s[18] == '-' && s[23] == '-'
}

// SynthesizeAgent derives an EligibleUser for an agent identifier without
// any directory lookup. The display name embeds the first 8 hex characters
// so operators can tell agents apart; the address is fabricated under the
// reserved AgentDomain. weight values outside 1..10 are clamped.
func SynthesizeAgent(identifier string, weight int) EligibleUser {
	short := strings.ToLower(identifier[:8])
	return EligibleUser{
		Identifier:   identifier,
		Kind:         KindAgent,
		Weight:       ClampWeight(weight),
		DisplayName:  fmt.Sprintf("Agent %s", short),
		DisplayEmail: fmt.Sprintf("agent-%s@%s", short, AgentDomain),
	}
}

// ClampWeight bounds a target weight to the 1..10 range used by the
// weighted-round-robin expansion.
func ClampWeight(w int) int {
	if w < 1 {
		return 1
	}
	if w > 10 {
		return 10
	}
	return w
}
