package policy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jmoreland/lead-mesh/internal/domain/assignment"
	portpolicy "github.com/jmoreland/lead-mesh/internal/port/policy"
)

var _ portpolicy.Repository = (*Repository)(nil)

// settings is the settings_jsonb wire shape: the policy minus its cursor.
type settings struct {
	Enabled   bool                 `json:"enabled"`
	Mode      assignment.Mode      `json:"mode"`
	Algorithm assignment.Algorithm `json:"algorithm"`
	Targets   []assignment.Target  `json:"targets"`
}

// Repository stores per-integration assignment records in the integrations
// table, keyed by (integration_type, integration_id). The cursor commit is a
// conditional update guarded by the cursor version — the CAS that keeps
// concurrent webhook deliveries from double-consuming a pool position.
type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) GetPolicy(ctx context.Context, key assignment.Key) (assignment.Policy, error) {
	query := `SELECT settings_jsonb, cursor_jsonb FROM integrations
		WHERE integration_type = $1 AND integration_id = $2`

	var settingsRaw, cursorRaw []byte
	err := r.pool.QueryRow(ctx, query, key.Type, key.ID).Scan(&settingsRaw, &cursorRaw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return assignment.Policy{}, fmt.Errorf("integration %s: %w", key, portpolicy.ErrNotFound)
		}
		return assignment.Policy{}, fmt.Errorf("querying assignment policy: %w", err)
	}

	var s settings
	if err := json.Unmarshal(settingsRaw, &s); err != nil {
		return assignment.Policy{}, fmt.Errorf("decoding settings for %s: %w", key, err)
	}
	p := assignment.Policy{
		Enabled:   s.Enabled,
		Mode:      s.Mode,
		Algorithm: s.Algorithm,
		Targets:   s.Targets,
		Cursor:    assignment.FreshCursor(),
	}
	if len(cursorRaw) > 0 {
		if err := json.Unmarshal(cursorRaw, &p.Cursor); err != nil {
			return assignment.Policy{}, fmt.Errorf("decoding cursor for %s: %w", key, err)
		}
	}
	return p, nil
}

// CommitCursor performs the conditional update: the row's cursor version must
// still equal prev.Version. Zero rows affected means another decision won the
// race and the caller must re-select against the fresh cursor.
func (r *Repository) CommitCursor(ctx context.Context, key assignment.Key, prev, next assignment.Cursor) error {
	nextRaw, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("encoding cursor: %w", err)
	}

	query := `UPDATE integrations
		SET cursor_jsonb = $3, updated_at = NOW()
		WHERE integration_type = $1 AND integration_id = $2
		  AND COALESCE((cursor_jsonb->>'version')::bigint, 0) = $4`

	tag, err := r.pool.Exec(ctx, query, key.Type, key.ID, nextRaw, prev.Version)
	if err != nil {
		return fmt.Errorf("committing cursor: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("integration %s at version %d: %w", key, prev.Version, portpolicy.ErrCursorConflict)
	}
	return nil
}

func (r *Repository) UpsertSettings(ctx context.Context, key assignment.Key, orgID string, p assignment.Policy) error {
	raw, err := json.Marshal(settings{
		Enabled:   p.Enabled,
		Mode:      p.Mode,
		Algorithm: p.Algorithm,
		Targets:   p.Targets,
	})
	if err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}

	freshRaw, _ := json.Marshal(assignment.FreshCursor())
	query := `INSERT INTO integrations (integration_type, integration_id, org_id, settings_jsonb, cursor_jsonb, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (integration_type, integration_id)
		DO UPDATE SET org_id = EXCLUDED.org_id, settings_jsonb = EXCLUDED.settings_jsonb, updated_at = NOW()`

	if _, err := r.pool.Exec(ctx, query, key.Type, key.ID, orgID, raw, freshRaw); err != nil {
		return fmt.Errorf("upserting assignment settings: %w", err)
	}
	return nil
}

// ResetCursor writes the never-assigned cursor unconditionally. Serialisation
// against in-flight commits is the caller's job (advisory lock).
func (r *Repository) ResetCursor(ctx context.Context, key assignment.Key) error {
	raw, err := json.Marshal(assignment.FreshCursor())
	if err != nil {
		return fmt.Errorf("encoding cursor: %w", err)
	}

	query := `UPDATE integrations SET cursor_jsonb = $3, updated_at = NOW()
		WHERE integration_type = $1 AND integration_id = $2`

	tag, err := r.pool.Exec(ctx, query, key.Type, key.ID, raw)
	if err != nil {
		return fmt.Errorf("resetting cursor: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("integration %s: %w", key, portpolicy.ErrNotFound)
	}
	return nil
}
