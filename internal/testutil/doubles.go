package testutil

import (
	"context"
	"sync"

	"github.com/jmoreland/lead-mesh/internal/domain/event"
	portdir "github.com/jmoreland/lead-mesh/internal/port/directory"
	porteventbus "github.com/jmoreland/lead-mesh/internal/port/eventbus"
)

// CaptureBus records published events with a mutex so it is safe for
// concurrent use. Subscriptions are accepted and ignored.
type CaptureBus struct {
	mu     sync.Mutex
	Events []event.Event
}

func (b *CaptureBus) Publish(_ context.Context, e event.Event) error {
	b.mu.Lock()
	b.Events = append(b.Events, e)
	b.mu.Unlock()
	return nil
}

func (b *CaptureBus) Subscribe(context.Context, event.Channel, porteventbus.Handler) (porteventbus.Subscription, error) {
	return noopSubscription{}, nil
}

// ByType returns all recorded events of one type.
func (b *CaptureBus) ByType(t event.Type) []event.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []event.Event
	for _, e := range b.Events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type noopSubscription struct{}

func (noopSubscription) Unsubscribe() {}

// FakeDirectory serves lookups from a fixed member set and counts calls.
type FakeDirectory struct {
	mu      sync.Mutex
	Members map[string]portdir.Member
	Roster  []portdir.Member
	Err     error
	Lookups int
}

func (d *FakeDirectory) LookupByIDs(_ context.Context, ids []string, _ string) ([]portdir.Member, error) {
	d.mu.Lock()
	d.Lookups++
	d.mu.Unlock()
	if d.Err != nil {
		return nil, d.Err
	}
	var out []portdir.Member
	for _, id := range ids {
		if m, ok := d.Members[id]; ok {
			out = append(out, m)
		}
	}
	return out, nil
}

func (d *FakeDirectory) LookupRoster(context.Context, string) ([]portdir.Member, error) {
	d.mu.Lock()
	d.Lookups++
	d.mu.Unlock()
	if d.Err != nil {
		return nil, d.Err
	}
	return d.Roster, nil
}

// OwnerCall records one SetOwner delivery to the fake Lead Store.
type OwnerCall struct {
	LeadID   string
	Assignee string
	Reason   string
}

// FakeLeadStore implements port/leadstore.LeadStore against in-memory state.
type FakeLeadStore struct {
	mu          sync.Mutex
	Owners      []OwnerCall
	Counts      map[string]int
	SetOwnerErr error
	CountsErr   error
}

func (s *FakeLeadStore) SetOwner(_ context.Context, leadID, assignee, reason string) error {
	if s.SetOwnerErr != nil {
		return s.SetOwnerErr
	}
	s.mu.Lock()
	s.Owners = append(s.Owners, OwnerCall{LeadID: leadID, Assignee: assignee, Reason: reason})
	s.mu.Unlock()
	return nil
}

func (s *FakeLeadStore) CountActiveByUsers(_ context.Context, ids []string, _ []string) (map[string]int, error) {
	if s.CountsErr != nil {
		return nil, s.CountsErr
	}
	out := make(map[string]int, len(ids))
	for _, id := range ids {
		out[id] = s.Counts[id]
	}
	return out, nil
}

// LastOwner returns the most recent SetOwner call, or false when none.
func (s *FakeLeadStore) LastOwner() (OwnerCall, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Owners) == 0 {
		return OwnerCall{}, false
	}
	return s.Owners[len(s.Owners)-1], true
}
