package leadstore

import "context"

// LeadStore is the external service of record for lead ownership. It is
// notified of assignment decisions but never owned by this engine.
type LeadStore interface {
	// SetOwner records the chosen assignee on a lead. Must be idempotent
	// under retry with the same (leadID, assignee) pair.
	SetOwner(ctx context.Context, leadID, assignee, reason string) error

	// CountActiveByUsers returns, per identifier, how many leads in the given
	// statuses the user currently holds. Backing capability for the
	// least-active algorithm.
	CountActiveByUsers(ctx context.Context, ids []string, activeStatuses []string) (map[string]int, error)
}
