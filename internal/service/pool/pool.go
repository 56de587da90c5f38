package pool

import (
	"context"
	"log/slog"

	"github.com/jmoreland/lead-mesh/internal/domain/assignment"
	"github.com/jmoreland/lead-mesh/internal/domain/identity"
	portdir "github.com/jmoreland/lead-mesh/internal/port/directory"
)

// Resolve computes the ordered eligible pool for one assignment decision.
// dir may be nil: channels that cannot authenticate to the directory still
// assign, with degraded display data for humans. The returned order is
// deterministic and follows target order (roster order in auto mode), so the
// cursor arithmetic in the selector stays meaningful across decisions.
func Resolve(ctx context.Context, p assignment.Policy, orgID string, dir portdir.Directory) ([]identity.EligibleUser, error) {
	if !p.Applicable() {
		return nil, nil
	}

	// Auto mode with an explicit roster behaves as specific — the override
	// takes precedence over the organization-wide default. The branch keys on
	// the configured list, not the active subset: deactivating every member of
	// an explicit roster leaves the pool empty, it does not widen assignment
	// to the whole organization.
	if p.Mode == assignment.ModeSpecific || len(p.Targets) > 0 {
		return resolveTargets(ctx, p.ActiveTargets(), orgID, dir)
	}

	// Auto mode, no roster override: the whole organization. Without
	// directory access there is no way to know the membership — empty pool,
	// never a guess.
	if dir == nil {
		return nil, nil
	}
	members, err := dir.LookupRoster(ctx, orgID)
	if err != nil {
		// Degrade, never abort: an unreachable directory leaves the lead
		// unassigned, it does not fail the decision.
		slog.WarnContext(ctx, "org roster lookup failed, resolving empty pool", "org_id", orgID, "error", err)
		return nil, nil
	}
	users := make([]identity.EligibleUser, 0, len(members))
	for _, m := range members {
		users = append(users, identity.EligibleUser{
			Identifier:   m.ID,
			Kind:         identity.KindHuman,
			Weight:       1,
			DisplayName:  m.Name,
			DisplayEmail: m.Email,
		})
	}
	return users, nil
}

// resolveTargets partitions targets by classifier: agents synthesize with no
// I/O, humans go through a single batched directory lookup. A failed lookup
// omits the human subset rather than aborting the resolution.
func resolveTargets(ctx context.Context, targets []assignment.Target, orgID string, dir portdir.Directory) ([]identity.EligibleUser, error) {
	var humanIDs []string
	for _, t := range targets {
		if identity.Classify(t.Identifier) == identity.KindHuman {
			humanIDs = append(humanIDs, t.Identifier)
		}
	}

	// members stays nil when the directory is unavailable; degraded stubs
	// below keep assignment going for anonymous channels.
	var members map[string]portdir.Member
	degraded := dir == nil
	if dir != nil && len(humanIDs) > 0 {
		found, err := dir.LookupByIDs(ctx, humanIDs, orgID)
		if err != nil {
			slog.WarnContext(ctx, "directory lookup failed, omitting human targets",
				"org_id", orgID, "count", len(humanIDs), "error", err)
		} else {
			members = make(map[string]portdir.Member, len(found))
			for _, m := range found {
				members[m.ID] = m
			}
		}
	}

	users := make([]identity.EligibleUser, 0, len(targets))
	for _, t := range targets {
		if identity.Classify(t.Identifier) == identity.KindAgent {
			users = append(users, identity.SynthesizeAgent(t.Identifier, t.Weight))
			continue
		}
		if degraded {
			users = append(users, identity.EligibleUser{
				Identifier: t.Identifier,
				Kind:       identity.KindHuman,
				Weight:     identity.ClampWeight(t.Weight),
			})
			continue
		}
		m, ok := members[t.Identifier]
		if !ok {
			// Lookup failed or the directory does not know this operator.
			continue
		}
		users = append(users, identity.EligibleUser{
			Identifier:   t.Identifier,
			Kind:         identity.KindHuman,
			Weight:       identity.ClampWeight(t.Weight),
			DisplayName:  m.Name,
			DisplayEmail: m.Email,
		})
	}
	return users, nil
}
