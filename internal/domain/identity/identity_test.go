package identity_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jmoreland/lead-mesh/internal/domain/identity"
)

func TestClassify_AgentUUID(t *testing.T) {
	assert.Equal(t, identity.KindAgent, identity.Classify("550e8400-e29b-41d4-a716-446655440000"))
}

func TestClassify_HumanObjectID(t *testing.T) {
	assert.Equal(t, identity.KindHuman, identity.Classify("68e42b14adfc780e4f56fecc"))
}

func TestClassify_Total(t *testing.T) {
	// Every input maps to exactly one of the two kinds, no error path.
	inputs := []string{
		"",
		"alice",
		"alice@example.com",
		"550e8400-e29b-41d4-a716-446655440000",
		"550E8400-E29B-41D4-A716-446655440000", // uppercase canonical
		"550e8400e29b41d4a716446655440000",     // no hyphens — not canonical
		"urn:uuid:550e8400-e29b-41d4-a716-446655440000",
		"{550e8400-e29b-41d4-a716-446655440000}",
		"550e8400-e29b-01d4-a716-446655440000", // version 0
		"550e8400-e29b-71d4-a716-446655440000", // version 7
		"550e8400-e29b-41d4-c716-446655440000", // wrong variant
		strings.Repeat("x", 36),
	}
	for _, in := range inputs {
		kind := identity.Classify(in)
		assert.Contains(t, []identity.Kind{identity.KindHuman, identity.KindAgent}, kind, "input %q", in)
	}
}

func TestClassify_NonCanonicalFormsAreHuman(t *testing.T) {
	for _, in := range []string{
		"550e8400e29b41d4a716446655440000",
		"urn:uuid:550e8400-e29b-41d4-a716-446655440000",
		"{550e8400-e29b-41d4-a716-446655440000}",
		"550e8400-e29b-01d4-a716-446655440000",
		"550e8400-e29b-41d4-c716-446655440000",
	} {
		assert.Equal(t, identity.KindHuman, identity.Classify(in), "input %q", in)
	}
}

func TestSynthesizeAgent(t *testing.T) {
	u := identity.SynthesizeAgent("550E8400-e29b-41d4-a716-446655440000", 3)

	assert.Equal(t, identity.KindAgent, u.Kind)
	assert.Equal(t, 3, u.Weight)
	assert.Equal(t, "Agent 550e8400", u.DisplayName)
	assert.Equal(t, "agent-550e8400@"+identity.AgentDomain, u.DisplayEmail)
}

func TestSynthesizeAgent_ClampsWeight(t *testing.T) {
	assert.Equal(t, 1, identity.SynthesizeAgent("550e8400-e29b-41d4-a716-446655440000", 0).Weight)
	assert.Equal(t, 10, identity.SynthesizeAgent("550e8400-e29b-41d4-a716-446655440000", 50).Weight)
}

func TestClampWeight(t *testing.T) {
	assert.Equal(t, 1, identity.ClampWeight(-5))
	assert.Equal(t, 1, identity.ClampWeight(0))
	assert.Equal(t, 4, identity.ClampWeight(4))
	assert.Equal(t, 10, identity.ClampWeight(11))
}
