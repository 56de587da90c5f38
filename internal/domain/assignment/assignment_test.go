package assignment_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmoreland/lead-mesh/internal/domain/assignment"
)

func TestPolicy_Applicable(t *testing.T) {
	assert.False(t, assignment.Policy{Enabled: false, Mode: assignment.ModeAuto}.Applicable())
	assert.False(t, assignment.Policy{Enabled: true, Mode: assignment.ModeManual}.Applicable())
	assert.False(t, assignment.Policy{Enabled: true}.Applicable())
	assert.True(t, assignment.Policy{Enabled: true, Mode: assignment.ModeAuto}.Applicable())
	assert.True(t, assignment.Policy{Enabled: true, Mode: assignment.ModeSpecific}.Applicable())
}

func TestPolicy_ActiveTargets_PreservesOrder(t *testing.T) {
	p := assignment.Policy{Targets: []assignment.Target{
		{Identifier: "u1", Active: true},
		{Identifier: "u2", Active: false},
		{Identifier: "u3", Active: true},
	}}

	active := p.ActiveTargets()
	require.Len(t, active, 2)
	assert.Equal(t, "u1", active[0].Identifier)
	assert.Equal(t, "u3", active[1].Identifier)
}

func TestPolicy_Validate(t *testing.T) {
	valid := assignment.Policy{
		Mode:      assignment.ModeSpecific,
		Algorithm: assignment.AlgoRoundRobin,
		Targets:   []assignment.Target{{Identifier: "u1", Weight: 1, Active: true}},
	}
	require.NoError(t, valid.Validate())

	badMode := valid
	badMode.Mode = "sometimes"
	assert.Error(t, badMode.Validate())

	badAlgo := valid
	badAlgo.Algorithm = "fastest"
	assert.Error(t, badAlgo.Validate())

	badWeight := valid
	badWeight.Targets = []assignment.Target{{Identifier: "u1", Weight: 11}}
	assert.Error(t, badWeight.Validate())

	emptyID := valid
	emptyID.Targets = []assignment.Target{{Identifier: "", Weight: 1}}
	assert.Error(t, emptyID.Validate())
}

func TestFreshCursor_OutOfBounds(t *testing.T) {
	c := assignment.FreshCursor()
	assert.Equal(t, -1, c.LastIndex)
	assert.Equal(t, int64(0), c.Version)
	assert.Nil(t, c.LastAssignedTo)
}

func TestIntegrationType_Valid(t *testing.T) {
	for _, ty := range []assignment.IntegrationType{
		assignment.TypeWebsite, assignment.TypeFacebook, assignment.TypeShopify, assignment.TypeGeneric,
	} {
		assert.True(t, ty.Valid())
	}
	assert.False(t, assignment.IntegrationType("carrier-pigeon").Valid())
}
