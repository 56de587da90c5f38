package selector

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"github.com/jmoreland/lead-mesh/internal/domain/assignment"
	"github.com/jmoreland/lead-mesh/internal/domain/identity"
)

// ActiveCountFunc reports how many active leads each identifier currently
// holds. Supplied by the caller — the selector owns no I/O of its own.
type ActiveCountFunc func(ctx context.Context, ids []string) (map[string]int, error)

// Capabilities are the two injected impurities: the least-active count query
// and the random source. Both have safe defaults so preview paths and tests
// can pass the zero value.
type Capabilities struct {
	ActiveCounts ActiveCountFunc
	Intn         func(n int) int
}

func (c Capabilities) intn(n int) int {
	if c.Intn != nil {
		return c.Intn(n)
	}
	return rand.Intn(n)
}

// Selection is one decision: the chosen assignee and the cursor mutation that
// choosing them implies. The caller commits the cursor (or, for preview,
// discards it).
type Selection struct {
	Chosen identity.EligibleUser
	Cursor assignment.Cursor
}

// Next picks the next assignee from a pool. Returns false when the pool is
// empty. An unknown algorithm falls back to weighted-round-robin. The same
// function serves real assignment and the externally-visible preview, so the
// two can never disagree.
func Next(ctx context.Context, pool []identity.EligibleUser, algo assignment.Algorithm, cur assignment.Cursor, caps Capabilities) (Selection, bool) {
	if len(pool) == 0 {
		return Selection{}, false
	}

	var chosen identity.EligibleUser
	var nextIndex int

	switch algo {
	case assignment.AlgoRoundRobin:
		nextIndex = advance(cur.LastIndex, len(pool))
		chosen = pool[nextIndex]

	case assignment.AlgoLeastActive:
		chosen, nextIndex = leastActive(ctx, pool, caps)

	case assignment.AlgoRandom:
		chosen = pool[caps.intn(len(pool))]
		// The index has no selection effect under random; it still advances
		// so the cursor remains a usable audit trail.
		nextIndex = advance(cur.LastIndex, len(pool))

	default: // weighted-round-robin, also the fallback
		expanded := expand(pool)
		nextIndex = advance(cur.LastIndex, len(expanded))
		chosen = expanded[nextIndex]
	}

	now := time.Now().UTC()
	id := chosen.Identifier
	return Selection{
		Chosen: chosen,
		Cursor: assignment.Cursor{
			LastIndex:      nextIndex,
			LastAssignedTo: &id,
			LastAssignedAt: &now,
			Version:        cur.Version + 1,
		},
	}, true
}

// advance implements the round-robin rule: step forward modulo n while the
// stored index is still a valid position, otherwise restart at 0. The stored
// index can fall out of bounds whenever the pool shrank (or the cursor was
// reset to -1) since the last decision — restarting at 0 is the accepted
// approximation for a changed pool.
func advance(lastIndex, n int) int {
	if lastIndex >= 0 && lastIndex < n {
		return (lastIndex + 1) % n
	}
	return 0
}

// expand flattens the pool so each member appears weight times in original
// order. The cursor index is a position within this expansion.
func expand(pool []identity.EligibleUser) []identity.EligibleUser {
	var out []identity.EligibleUser
	for _, u := range pool {
		w := identity.ClampWeight(u.Weight)
		for i := 0; i < w; i++ {
			out = append(out, u)
		}
	}
	return out
}

// leastActive picks the member holding the fewest active leads, ties broken
// by earliest pool position. A failed count query falls back to pool[0] —
// availability over optimality, a lead must never go unassigned because a
// count was slow.
func leastActive(ctx context.Context, pool []identity.EligibleUser, caps Capabilities) (identity.EligibleUser, int) {
	if caps.ActiveCounts == nil {
		return pool[0], 0
	}
	ids := make([]string, len(pool))
	for i, u := range pool {
		ids[i] = u.Identifier
	}
	counts, err := caps.ActiveCounts(ctx, ids)
	if err != nil {
		slog.WarnContext(ctx, "least-active count query failed, falling back to first member", "error", err)
		return pool[0], 0
	}
	best := 0
	for i := 1; i < len(pool); i++ {
		if counts[pool[i].Identifier] < counts[pool[best].Identifier] {
			best = i
		}
	}
	return pool[best], best
}
