//go:build integration

package policy_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pgpolicy "github.com/jmoreland/lead-mesh/internal/adapter/postgres/policy"
	"github.com/jmoreland/lead-mesh/internal/domain/assignment"
	portpolicy "github.com/jmoreland/lead-mesh/internal/port/policy"
	"github.com/jmoreland/lead-mesh/internal/testutil"
)

func freshKey() assignment.Key {
	return assignment.Key{Type: assignment.TypeWebsite, ID: "it-" + uuid.New().String()[:8]}
}

func seedPolicy(t *testing.T, ctx context.Context, r *pgpolicy.Repository, key assignment.Key) assignment.Policy {
	t.Helper()
	p := assignment.Policy{
		Enabled:   true,
		Mode:      assignment.ModeSpecific,
		Algorithm: assignment.AlgoRoundRobin,
		Targets: []assignment.Target{
			{Identifier: "u1", Weight: 1, Active: true},
			{Identifier: "u2", Weight: 3, Active: true},
		},
	}
	require.NoError(t, r.UpsertSettings(ctx, key, "org1", p))
	return p
}

func TestGetPolicy_NotFound(t *testing.T) {
	pool := testutil.SetupTestDB(t)
	r := pgpolicy.New(pool)

	_, err := r.GetPolicy(context.Background(), freshKey())
	assert.ErrorIs(t, err, portpolicy.ErrNotFound)
}

func TestUpsertAndGet_RoundTrip(t *testing.T) {
	pool := testutil.SetupTestDB(t)
	r := pgpolicy.New(pool)
	ctx := context.Background()
	key := freshKey()

	seedPolicy(t, ctx, r, key)

	got, err := r.GetPolicy(ctx, key)
	require.NoError(t, err)
	assert.True(t, got.Enabled)
	assert.Equal(t, assignment.ModeSpecific, got.Mode)
	assert.Equal(t, assignment.AlgoRoundRobin, got.Algorithm)
	require.Len(t, got.Targets, 2)
	assert.Equal(t, "u2", got.Targets[1].Identifier)
	assert.Equal(t, 3, got.Targets[1].Weight)
	assert.Equal(t, assignment.FreshCursor(), got.Cursor)
}

func TestCommitCursor_AdvancesVersion(t *testing.T) {
	pool := testutil.SetupTestDB(t)
	r := pgpolicy.New(pool)
	ctx := context.Background()
	key := freshKey()

	seedPolicy(t, ctx, r, key)

	got, err := r.GetPolicy(ctx, key)
	require.NoError(t, err)

	assignee := "u1"
	next := assignment.Cursor{LastIndex: 0, LastAssignedTo: &assignee, Version: got.Cursor.Version + 1}
	require.NoError(t, r.CommitCursor(ctx, key, got.Cursor, next))

	after, err := r.GetPolicy(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, next.Version, after.Cursor.Version)
	assert.Equal(t, 0, after.Cursor.LastIndex)
	require.NotNil(t, after.Cursor.LastAssignedTo)
	assert.Equal(t, "u1", *after.Cursor.LastAssignedTo)
}

func TestCommitCursor_StaleVersionConflicts(t *testing.T) {
	pool := testutil.SetupTestDB(t)
	r := pgpolicy.New(pool)
	ctx := context.Background()
	key := freshKey()

	seedPolicy(t, ctx, r, key)

	got, err := r.GetPolicy(ctx, key)
	require.NoError(t, err)

	next := assignment.Cursor{LastIndex: 0, Version: got.Cursor.Version + 1}
	require.NoError(t, r.CommitCursor(ctx, key, got.Cursor, next))

	// Same prev again: the row moved on, so this must lose.
	err = r.CommitCursor(ctx, key, got.Cursor, next)
	assert.ErrorIs(t, err, portpolicy.ErrCursorConflict)
}

func TestCommitCursor_ConcurrentWriters(t *testing.T) {
	pool := testutil.SetupTestDB(t)
	r := pgpolicy.New(pool)
	ctx := context.Background()
	key := freshKey()

	seedPolicy(t, ctx, r, key)
	prev, err := r.GetPolicy(ctx, key)
	require.NoError(t, err)

	const writers = 4
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			next := assignment.Cursor{LastIndex: i, Version: prev.Cursor.Version + 1}
			errs[i] = r.CommitCursor(ctx, key, prev.Cursor, next)
		}(i)
	}
	wg.Wait()

	var wins, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, portpolicy.ErrCursorConflict):
			conflicts++
		default:
			t.Fatalf("unexpected commit error: %v", err)
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, writers-1, conflicts)
}

func TestUpsertSettings_PreservesCursor(t *testing.T) {
	pool := testutil.SetupTestDB(t)
	r := pgpolicy.New(pool)
	ctx := context.Background()
	key := freshKey()

	p := seedPolicy(t, ctx, r, key)

	got, err := r.GetPolicy(ctx, key)
	require.NoError(t, err)
	next := assignment.Cursor{LastIndex: 1, Version: got.Cursor.Version + 1}
	require.NoError(t, r.CommitCursor(ctx, key, got.Cursor, next))

	p.Algorithm = assignment.AlgoLeastActive
	require.NoError(t, r.UpsertSettings(ctx, key, "org1", p))

	after, err := r.GetPolicy(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, assignment.AlgoLeastActive, after.Algorithm)
	assert.Equal(t, next.Version, after.Cursor.Version, "settings update must not rewind the cursor")
	assert.Equal(t, 1, after.Cursor.LastIndex)
}

func TestResetCursor(t *testing.T) {
	pool := testutil.SetupTestDB(t)
	r := pgpolicy.New(pool)
	ctx := context.Background()
	key := freshKey()

	seedPolicy(t, ctx, r, key)

	got, err := r.GetPolicy(ctx, key)
	require.NoError(t, err)
	next := assignment.Cursor{LastIndex: 1, Version: got.Cursor.Version + 1}
	require.NoError(t, r.CommitCursor(ctx, key, got.Cursor, next))

	require.NoError(t, r.ResetCursor(ctx, key))

	after, err := r.GetPolicy(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, assignment.FreshCursor(), after.Cursor)
}

func TestResetCursor_MissingIntegration(t *testing.T) {
	pool := testutil.SetupTestDB(t)
	r := pgpolicy.New(pool)

	err := r.ResetCursor(context.Background(), freshKey())
	assert.ErrorIs(t, err, portpolicy.ErrNotFound)
}
