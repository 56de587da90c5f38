package assignment_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmoreland/lead-mesh/internal/adapter/memory"
	domainassign "github.com/jmoreland/lead-mesh/internal/domain/assignment"
	assignersvc "github.com/jmoreland/lead-mesh/internal/service/assigner"
	settingssvc "github.com/jmoreland/lead-mesh/internal/service/settings"
	"github.com/jmoreland/lead-mesh/internal/testutil"
	transportassign "github.com/jmoreland/lead-mesh/internal/transport/assignment"
)

func init() { gin.SetMode(gin.TestMode) }

var key = domainassign.Key{Type: domainassign.TypeWebsite, ID: "site-1"}

type fixture struct {
	router *gin.Engine
	repo   *memory.PolicyRepository
	leads  *testutil.FakeLeadStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := memory.NewPolicyRepository()
	leads := &testutil.FakeLeadStore{}
	bus := &testutil.CaptureBus{}

	assigner := assignersvc.NewService(repo, leads, bus, assignersvc.DefaultConfig())
	settings := settingssvc.NewService(repo, leads, memory.NewLocker(), bus)

	r := gin.New()
	transportassign.Register(r.Group("/api"), assigner, settings, nil)
	return &fixture{router: r, repo: repo, leads: leads}
}

func (f *fixture) seed() {
	f.repo.Seed(key, "org1", domainassign.Policy{
		Enabled:   true,
		Mode:      domainassign.ModeSpecific,
		Algorithm: domainassign.AlgoRoundRobin,
		Targets: []domainassign.Target{
			{Identifier: "u1", Weight: 1, Active: true},
			{Identifier: "u2", Weight: 1, Active: true},
		},
		Cursor: domainassign.Cursor{LastIndex: 0},
	})
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequestWithContext(context.Background(), method, path, &buf)
	require.NoError(t, err)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestTriggerAssign_Success(t *testing.T) {
	f := newFixture(t)
	f.seed()

	w := f.do(t, http.MethodPost, "/api/assignments", gin.H{
		"lead_id":          "lead-1",
		"integration_type": "website",
		"integration_id":   "site-1",
		"org_id":           "org1",
	})

	assert.Equal(t, http.StatusOK, w.Code)
	var out domainassign.Outcome
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.True(t, out.Assigned)
	assert.Equal(t, "u2", out.Assignee)
}

func TestTriggerAssign_MissingFields(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodPost, "/api/assignments", gin.H{"lead_id": "lead-1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTriggerAssign_UnknownIntegration(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodPost, "/api/assignments", gin.H{
		"lead_id":          "lead-1",
		"integration_type": "website",
		"integration_id":   "nope",
		"org_id":           "org1",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetSettings(t *testing.T) {
	f := newFixture(t)
	f.seed()

	w := f.do(t, http.MethodGet, "/api/integrations/website/site-1/assignment/settings", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var p domainassign.Policy
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
	assert.Equal(t, domainassign.ModeSpecific, p.Mode)
	assert.Len(t, p.Targets, 2)
}

func TestGetSettings_BadType(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodGet, "/api/integrations/pigeon/site-1/assignment/settings", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPutSettings_ThenGet(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPut, "/api/integrations/shopify/shop-1/assignment/settings", gin.H{
		"org_id":    "org1",
		"enabled":   true,
		"mode":      "specific",
		"algorithm": "weighted-round-robin",
		"targets":   []gin.H{{"identifier": "u1", "weight": 2, "active": true}},
	})
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodGet, "/api/integrations/shopify/shop-1/assignment/settings", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestPutSettings_InvalidWeight(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodPut, "/api/integrations/website/site-1/assignment/settings", gin.H{
		"org_id":  "org1",
		"enabled": true,
		"mode":    "specific",
		"targets": []gin.H{{"identifier": "u1", "weight": 42, "active": true}},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPreview(t *testing.T) {
	f := newFixture(t)
	f.seed()

	w := f.do(t, http.MethodGet, "/api/integrations/website/site-1/assignment/preview?org_id=org1", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Next *struct {
			Identifier string `json:"identifier"`
		} `json:"next"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Next)
	assert.Equal(t, "u2", resp.Next.Identifier)

	// Preview twice returns the same answer — no state was consumed.
	w = f.do(t, http.MethodGet, "/api/integrations/website/site-1/assignment/preview?org_id=org1", nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Next)
	assert.Equal(t, "u2", resp.Next.Identifier)
}

func TestListEligible(t *testing.T) {
	f := newFixture(t)
	f.seed()

	w := f.do(t, http.MethodGet, "/api/integrations/website/site-1/assignment/eligible?org_id=org1", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var users []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &users))
	assert.Len(t, users, 2)
}

func TestResetCursor(t *testing.T) {
	f := newFixture(t)
	f.seed()

	w := f.do(t, http.MethodPost, "/api/integrations/website/site-1/assignment/reset", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	p, err := f.repo.GetPolicy(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, -1, p.Cursor.LastIndex)
}

func TestManualAssign(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/leads/lead-3/assign", gin.H{"assignee": "u9"})
	assert.Equal(t, http.StatusOK, w.Code)

	call, ok := f.leads.LastOwner()
	require.True(t, ok)
	assert.Equal(t, "lead-3", call.LeadID)
	assert.Equal(t, "u9", call.Assignee)
	assert.Equal(t, "manual-assignment", call.Reason)
}
