package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/jmoreland/lead-mesh/internal/domain/assignment"
	portpolicy "github.com/jmoreland/lead-mesh/internal/port/policy"
)

var _ portpolicy.Repository = (*PolicyRepository)(nil)

type record struct {
	orgID  string
	policy assignment.Policy
}

// PolicyRepository is an in-process policy store with the same conditional
// cursor-commit contract as the Postgres adapter, serialised by a mutex
// instead of a row-version UPDATE. Used when no database is configured and
// as the repository double in service tests.
type PolicyRepository struct {
	mu      sync.Mutex
	records map[assignment.Key]*record
}

func NewPolicyRepository() *PolicyRepository {
	return &PolicyRepository{records: make(map[assignment.Key]*record)}
}

// Seed installs a policy directly, bypassing validation. Test helper.
func (r *PolicyRepository) Seed(key assignment.Key, orgID string, p assignment.Policy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[key] = &record{orgID: orgID, policy: p}
}

func (r *PolicyRepository) GetPolicy(_ context.Context, key assignment.Key) (assignment.Policy, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[key]
	if !ok {
		return assignment.Policy{}, fmt.Errorf("integration %s: %w", key, portpolicy.ErrNotFound)
	}
	p := rec.policy
	p.Targets = append([]assignment.Target(nil), rec.policy.Targets...)
	return p, nil
}

func (r *PolicyRepository) CommitCursor(_ context.Context, key assignment.Key, prev, next assignment.Cursor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[key]
	if !ok {
		return fmt.Errorf("integration %s: %w", key, portpolicy.ErrNotFound)
	}
	if rec.policy.Cursor.Version != prev.Version {
		return fmt.Errorf("integration %s at version %d: %w", key, prev.Version, portpolicy.ErrCursorConflict)
	}
	rec.policy.Cursor = next
	return nil
}

func (r *PolicyRepository) UpsertSettings(_ context.Context, key assignment.Key, orgID string, p assignment.Policy) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[key]
	if !ok {
		p.Cursor = assignment.FreshCursor()
		r.records[key] = &record{orgID: orgID, policy: p}
		return nil
	}
	cursor := rec.policy.Cursor
	rec.orgID = orgID
	rec.policy = p
	rec.policy.Cursor = cursor
	return nil
}

func (r *PolicyRepository) ResetCursor(_ context.Context, key assignment.Key) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[key]
	if !ok {
		return fmt.Errorf("integration %s: %w", key, portpolicy.ErrNotFound)
	}
	rec.policy.Cursor = assignment.FreshCursor()
	return nil
}
