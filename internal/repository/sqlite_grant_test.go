package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alexanderramin/timeclock/internal/domain"
	"github.com/alexanderramin/timeclock/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGrantRepo_HasActive(t *testing.T) {
	repo := NewSQLiteGrantRepo(testutil.NewTestDB(t))
	ctx := context.Background()
	now := testutil.Epoch

	has, err := repo.HasActive(ctx, "lead", domain.CapabilityUnlimitedSessions, now)
	require.NoError(t, err)
	assert.False(t, has)

	expiry := now.Add(time.Hour)
	g := testutil.NewTestGrant("lead", now.Add(-time.Hour))
	g.ExpiresAt = &expiry
	require.NoError(t, repo.Create(ctx, g))

	has, err = repo.HasActive(ctx, "lead", domain.CapabilityUnlimitedSessions, now)
	require.NoError(t, err)
	assert.True(t, has)

	has, err = repo.HasActive(ctx, "lead", domain.CapabilityUnlimitedSessions, expiry)
	require.NoError(t, err)
	assert.False(t, has, "expired at its expiry instant")

	has, err = repo.HasActive(ctx, "lead", domain.CapabilityUnlimitedSessions, now.Add(-2*time.Hour))
	require.NoError(t, err)
	assert.False(t, has, "not yet granted")

	has, err = repo.HasActive(ctx, "someone-else", domain.CapabilityUnlimitedSessions, now)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestGrantRepo_Revoke(t *testing.T) {
	repo := NewSQLiteGrantRepo(testutil.NewTestDB(t))
	ctx := context.Background()
	now := testutil.Epoch

	require.NoError(t, repo.Create(ctx, testutil.NewTestGrant("lead", now)))
	require.NoError(t, repo.Create(ctx, testutil.NewTestGrant("lead", now.Add(time.Minute))))

	n, err := repo.Revoke(ctx, "lead", domain.CapabilityUnlimitedSessions, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	has, err := repo.HasActive(ctx, "lead", domain.CapabilityUnlimitedSessions, now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.False(t, has)

	has, err = repo.HasActive(ctx, "lead", domain.CapabilityUnlimitedSessions, now.Add(30*time.Minute))
	require.NoError(t, err)
	assert.True(t, has, "still in force before the revocation instant")

	grants, err := repo.ListByWorker(ctx, "lead")
	require.NoError(t, err)
	require.Len(t, grants, 2)
	for _, g := range grants {
		require.NotNil(t, g.RevokedAt)
		assert.False(t, g.ActiveAt(now.Add(2*time.Hour)))
	}

	n, err = repo.Revoke(ctx, "lead", domain.CapabilityUnlimitedSessions, now.Add(3*time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n)
}
