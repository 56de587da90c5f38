package policy

import (
	"context"
	"errors"

	"github.com/jmoreland/lead-mesh/internal/domain/assignment"
)

// ErrNotFound means no assignment record exists for the integration key.
var ErrNotFound = errors.New("assignment policy not found")

// ErrCursorConflict means a conditional cursor commit lost a race: the stored
// cursor no longer matches the one the decision was computed against. The
// caller re-resolves the pool, re-selects, and retries.
var ErrCursorConflict = errors.New("assignment cursor conflict")

// Reader is the narrow read interface the orchestrator needs.
type Reader interface {
	GetPolicy(ctx context.Context, key assignment.Key) (assignment.Policy, error)
}

// CursorStore owns the consistency contract for the per-integration cursor.
// CommitCursor is the only mutation path for cursors in the whole system.
type CursorStore interface {
	// CommitCursor persists next iff the stored cursor version still equals
	// prev.Version (compare-and-swap). Returns ErrCursorConflict otherwise.
	CommitCursor(ctx context.Context, key assignment.Key, prev, next assignment.Cursor) error
}

// Repository is the full policy surface: the engine's read + CAS paths plus
// the administrative operations layered on top of the core.
type Repository interface {
	Reader
	CursorStore

	// UpsertSettings replaces the policy configuration (everything except the
	// cursor) for an integration, creating the record if absent.
	UpsertSettings(ctx context.Context, key assignment.Key, orgID string, p assignment.Policy) error

	// ResetCursor writes a fresh cursor unconditionally. Callers serialize
	// against in-flight assignments with an advisory lock.
	ResetCursor(ctx context.Context, key assignment.Key) error
}
