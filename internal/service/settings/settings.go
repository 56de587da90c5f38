package settings

import (
	"context"
	"fmt"
	"hash/fnv"

	"github.com/jmoreland/lead-mesh/internal/domain/assignment"
	"github.com/jmoreland/lead-mesh/internal/domain/event"
	portbus "github.com/jmoreland/lead-mesh/internal/port/eventbus"
	portlead "github.com/jmoreland/lead-mesh/internal/port/leadstore"
	portlocker "github.com/jmoreland/lead-mesh/internal/port/locker"
	portpolicy "github.com/jmoreland/lead-mesh/internal/port/policy"
)

// Service is the administrative surface over assignment configuration:
// settings read/replace, cursor reset and manual assignment. The engine core
// never calls it.
type Service struct {
	policies portpolicy.Repository
	leads    portlead.LeadStore
	locker   portlocker.AdvisoryLocker
	bus      portbus.EventBus
}

func NewService(policies portpolicy.Repository, leads portlead.LeadStore, locker portlocker.AdvisoryLocker, bus portbus.EventBus) *Service {
	return &Service{policies: policies, leads: leads, locker: locker, bus: bus}
}

func (s *Service) Get(ctx context.Context, key assignment.Key) (assignment.Policy, error) {
	p, err := s.policies.GetPolicy(ctx, key)
	if err != nil {
		return assignment.Policy{}, fmt.Errorf("get assignment settings: %w", err)
	}
	return p, nil
}

// Update replaces the policy configuration. The cursor is untouched — the
// engine is its sole mutator.
func (s *Service) Update(ctx context.Context, key assignment.Key, orgID string, p assignment.Policy) error {
	if orgID == "" {
		return fmt.Errorf("organization id is required")
	}
	if err := p.Validate(); err != nil {
		return fmt.Errorf("validate assignment settings: %w", err)
	}
	if err := s.policies.UpsertSettings(ctx, key, orgID, p); err != nil {
		return fmt.Errorf("store assignment settings: %w", err)
	}

	e := event.New(event.TypeSettingsUpdated)
	e.IntegrationType = string(key.Type)
	e.IntegrationID = key.ID
	s.bus.Publish(ctx, e) //nolint:errcheck
	return nil
}

// ResetCursor rewinds an integration to the never-assigned state. Serialised
// behind a per-integration advisory lock so a reset never interleaves with a
// concurrent assignment's read-select-commit window.
func (s *Service) ResetCursor(ctx context.Context, key assignment.Key) error {
	err := s.locker.WithLock(ctx, advisoryKey(key), func(ctx context.Context) error {
		return s.policies.ResetCursor(ctx, key)
	})
	if err != nil {
		return fmt.Errorf("reset assignment cursor: %w", err)
	}

	e := event.New(event.TypeCursorReset)
	e.IntegrationType = string(key.Type)
	e.IntegrationID = key.ID
	s.bus.Publish(ctx, e) //nolint:errcheck
	return nil
}

// ManualAssign hands a lead to an explicit assignee, bypassing the selector
// and leaving the cursor alone.
func (s *Service) ManualAssign(ctx context.Context, leadID, assignee string) error {
	if leadID == "" || assignee == "" {
		return fmt.Errorf("lead id and assignee are required")
	}
	if err := s.leads.SetOwner(ctx, leadID, assignee, "manual-assignment"); err != nil {
		return fmt.Errorf("manual assign lead %s: %w", leadID, err)
	}

	e := event.New(event.TypeLeadAssigned)
	e.LeadID = leadID
	e.Assignee = assignee
	s.bus.Publish(ctx, e) //nolint:errcheck
	return nil
}

// advisoryKey hashes the integration key to a stable int64 for
// pg_advisory_lock.
func advisoryKey(key assignment.Key) int64 {
	h := fnv.New64a()
	h.Write([]byte(key.Type))
	h.Write([]byte{0})
	h.Write([]byte(key.ID))
	return int64(h.Sum64())
}
