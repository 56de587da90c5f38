package assigner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoreland/lead-mesh/internal/domain/assignment"
	"github.com/jmoreland/lead-mesh/internal/domain/event"
	"github.com/jmoreland/lead-mesh/internal/domain/identity"
	portdir "github.com/jmoreland/lead-mesh/internal/port/directory"
	portbus "github.com/jmoreland/lead-mesh/internal/port/eventbus"
	portlead "github.com/jmoreland/lead-mesh/internal/port/leadstore"
	portpolicy "github.com/jmoreland/lead-mesh/internal/port/policy"
	"github.com/jmoreland/lead-mesh/internal/service/pool"
	"github.com/jmoreland/lead-mesh/internal/service/selector"
)

// ErrMissingOrgID rejects triggers that omit the organization. There is no
// default organization — every channel collaborator must say whose roster it
// is assigning from.
var ErrMissingOrgID = errors.New("organization id is required")

// Config bounds the orchestrator's external behavior.
type Config struct {
	// MaxAttempts bounds select-commit retries after cursor conflicts.
	MaxAttempts int
	// CallTimeout bounds each outbound network call.
	CallTimeout time.Duration
	// ActiveStatuses are the lead statuses counted by least-active.
	ActiveStatuses []string
}

func DefaultConfig() Config {
	return Config{
		MaxAttempts:    3,
		CallTimeout:    30 * time.Second,
		ActiveStatuses: []string{"new", "contacted", "qualified"},
	}
}

// Service is the assignment orchestrator: one call per freshly created lead.
// It composes the pool resolver, the selector, the conditional cursor commit
// and the Lead Store notification into a single structured outcome.
type Service struct {
	policies portpolicy.Repository
	leads    portlead.LeadStore
	bus      portbus.EventBus
	cfg      Config
}

func NewService(policies portpolicy.Repository, leads portlead.LeadStore, bus portbus.EventBus, cfg Config) *Service {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 30 * time.Second
	}
	return &Service{policies: policies, leads: leads, bus: bus, cfg: cfg}
}

// Assign decides who receives the lead and records the decision. Business
// non-assignment ("disabled-or-manual", "no-eligible-users", downstream
// notify failure) is reported in the outcome, never as an error; only a
// missing org id or a missing/corrupt policy record is a hard failure.
func (s *Service) Assign(ctx context.Context, leadID string, key assignment.Key, orgID string, dir portdir.Directory) (assignment.Outcome, error) {
	if orgID == "" {
		return assignment.Outcome{}, ErrMissingOrgID
	}
	if !key.Type.Valid() {
		return assignment.Outcome{}, fmt.Errorf("invalid integration type %q", key.Type)
	}

	p, err := s.policies.GetPolicy(ctx, key)
	if err != nil {
		return assignment.Outcome{}, fmt.Errorf("load assignment policy for %s: %w", key, err)
	}
	if !p.Applicable() {
		return assignment.Outcome{Reason: assignment.ReasonDisabledOrManual}, nil
	}

	sel, committed, err := s.selectAndCommit(ctx, key, p, orgID, dir)
	if err != nil {
		return assignment.Outcome{}, err
	}
	if sel == nil {
		return assignment.Outcome{Reason: assignment.ReasonNoEligibleUsers}, nil
	}

	reason := fmt.Sprintf("auto-assignment-%s", key.Type)
	notifyCtx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
	defer cancel()
	if err := s.leads.SetOwner(notifyCtx, leadID, sel.Chosen.Identifier, reason); err != nil {
		// The committed cursor stays authoritative: the decision was made,
		// only the downstream notification failed. Callers retry SetOwner
		// independently — it is idempotent on (leadID, assignee).
		slog.ErrorContext(ctx, "lead store notification failed",
			"lead_id", leadID, "integration", key.String(), "assignee", sel.Chosen.Identifier, "error", err)
		return assignment.Outcome{Reason: fmt.Sprintf("lead store: %s", err)}, nil
	}

	e := event.New(event.TypeLeadAssigned)
	e.IntegrationType = string(key.Type)
	e.IntegrationID = key.ID
	e.LeadID = leadID
	e.Assignee = sel.Chosen.Identifier
	s.bus.Publish(ctx, e) //nolint:errcheck

	slog.InfoContext(ctx, "lead assigned",
		"lead_id", leadID, "integration", key.String(),
		"assignee", sel.Chosen.Identifier, "algorithm", s.algorithmUsed(p), "fair", committed)

	return assignment.Outcome{
		Assigned:           true,
		Assignee:           sel.Chosen.Identifier,
		AlgorithmUsed:      s.algorithmUsed(p),
		FairnessGuaranteed: committed,
	}, nil
}

// selectAndCommit runs resolve → select → conditional commit, re-resolving
// on cursor conflict up to MaxAttempts. When every attempt loses the race the
// last selection is kept anyway with committed=false — a duplicate index
// beats an unassigned lead.
func (s *Service) selectAndCommit(ctx context.Context, key assignment.Key, p assignment.Policy, orgID string, dir portdir.Directory) (*selector.Selection, bool, error) {
	caps := selector.Capabilities{ActiveCounts: s.activeCounts}

	var last *selector.Selection
	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		users, err := pool.Resolve(ctx, p, orgID, dir)
		if err != nil {
			return nil, false, fmt.Errorf("resolve eligible pool for %s: %w", key, err)
		}
		sel, ok := selector.Next(ctx, users, p.Algorithm, p.Cursor, caps)
		if !ok {
			return nil, false, nil
		}
		last = &sel

		// A commit in flight is never interrupted by the caller hanging up:
		// a half-applied cursor would match no chosen assignee.
		commitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.CallTimeout)
		err = s.policies.CommitCursor(commitCtx, key, p.Cursor, sel.Cursor)
		cancel()
		if err == nil {
			return last, true, nil
		}
		if !errors.Is(err, portpolicy.ErrCursorConflict) {
			return nil, false, fmt.Errorf("commit cursor for %s: %w", key, err)
		}

		slog.InfoContext(ctx, "cursor commit conflict, retrying",
			"integration", key.String(), "attempt", attempt)
		e := event.New(event.TypeAssignmentConflict)
		e.IntegrationType = string(key.Type)
		e.IntegrationID = key.ID
		s.bus.Publish(ctx, e) //nolint:errcheck

		p, err = s.policies.GetPolicy(ctx, key)
		if err != nil {
			return nil, false, fmt.Errorf("reload policy after conflict for %s: %w", key, err)
		}
	}

	slog.WarnContext(ctx, "cursor commit retries exhausted, assigning without fairness guarantee",
		"integration", key.String(), "attempts", s.cfg.MaxAttempts)
	return last, false, nil
}

// Preview returns the assignee the next real assignment would pick, using
// the exact same selector, without committing any state.
func (s *Service) Preview(ctx context.Context, key assignment.Key, orgID string, dir portdir.Directory) (*identity.EligibleUser, error) {
	p, err := s.policies.GetPolicy(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load assignment policy for %s: %w", key, err)
	}
	users, err := pool.Resolve(ctx, p, orgID, dir)
	if err != nil {
		return nil, fmt.Errorf("resolve eligible pool for %s: %w", key, err)
	}
	sel, ok := selector.Next(ctx, users, p.Algorithm, p.Cursor, selector.Capabilities{ActiveCounts: s.activeCounts})
	if !ok {
		return nil, nil
	}
	u := sel.Chosen
	return &u, nil
}

// Eligible returns the resolved pool for an integration, for the
// administrative listing surface.
func (s *Service) Eligible(ctx context.Context, key assignment.Key, orgID string, dir portdir.Directory) ([]identity.EligibleUser, error) {
	p, err := s.policies.GetPolicy(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load assignment policy for %s: %w", key, err)
	}
	return pool.Resolve(ctx, p, orgID, dir)
}

// activeCounts adapts the Lead Store count endpoint into the selector's
// least-active capability, with the configured active statuses.
func (s *Service) activeCounts(ctx context.Context, ids []string) (map[string]int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
	defer cancel()
	return s.leads.CountActiveByUsers(ctx, ids, s.cfg.ActiveStatuses)
}

func (s *Service) algorithmUsed(p assignment.Policy) string {
	if !p.Algorithm.Valid() {
		return string(assignment.AlgoWeightedRoundRobin)
	}
	return string(p.Algorithm)
}
