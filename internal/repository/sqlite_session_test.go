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

// sessionTestSetup creates the work item sessions hang off.
func sessionTestSetup(t *testing.T) (*SQLiteSessionRepo, string) {
	t.Helper()
	db := testutil.NewTestDB(t)

	wi := testutil.NewTestWorkItem("Task1")
	require.NoError(t, NewSQLiteWorkItemRepo(db).Create(context.Background(), wi))

	return NewSQLiteSessionRepo(db), wi.ID
}

func TestSessionRepo_CreateAndLast(t *testing.T) {
	repo, wiID := sessionTestSetup(t)
	ctx := context.Background()

	sess := testutil.NewTestSession(wiID, "worker-1", 1, testutil.Epoch)
	require.NoError(t, repo.Create(ctx, sess))

	fetched, err := repo.Last(ctx, wiID)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, fetched.ID)
	assert.Equal(t, wiID, fetched.WorkItemID)
	assert.Equal(t, "worker-1", fetched.WorkerID)
	assert.Equal(t, 1, fetched.Seq)
	assert.Equal(t, domain.ReasonStart, fetched.OpenReason)
	assert.Empty(t, fetched.CloseReason)
	assert.True(t, fetched.IsOpen())
	assert.True(t, testutil.Epoch.Equal(fetched.StartedAt))
}

func TestSessionRepo_CloseAndGetOpen(t *testing.T) {
	repo, wiID := sessionTestSetup(t)
	ctx := context.Background()

	sess := testutil.NewTestSession(wiID, "worker-1", 1, testutil.Epoch)
	require.NoError(t, repo.Create(ctx, sess))

	open, err := repo.GetOpen(ctx, wiID)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, open.ID)

	_, err = open.Close(domain.ReasonPause, testutil.Epoch.Add(25*time.Minute))
	require.NoError(t, err)
	require.NoError(t, repo.Close(ctx, open))

	_, err = repo.GetOpen(ctx, wiID)
	assert.ErrorIs(t, err, ErrNotFound)

	closed, err := repo.Last(ctx, wiID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonPause, closed.CloseReason)
	assert.Equal(t, int64(1500), closed.Duration())
	require.NotNil(t, closed.PausedAt)
	assert.Nil(t, closed.FinishedAt)
}

func TestSessionRepo_Close_ClosedRowIsImmutable(t *testing.T) {
	repo, wiID := sessionTestSetup(t)
	ctx := context.Background()

	sess := testutil.NewTestSession(wiID, "worker-1", 1, testutil.Epoch,
		testutil.WithClosed(domain.ReasonFinish, time.Hour))
	require.NoError(t, repo.Create(ctx, sess))

	err := repo.Close(ctx, sess)
	assert.ErrorIs(t, err, domain.ErrSessionClosed)

	got, err := repo.Last(ctx, wiID)
	require.NoError(t, err)
	assert.Equal(t, int64(3600), got.Duration())
}

func TestSessionRepo_Close_RequiresClosingEdge(t *testing.T) {
	repo, wiID := sessionTestSetup(t)
	ctx := context.Background()

	sess := testutil.NewTestSession(wiID, "worker-1", 1, testutil.Epoch)
	require.NoError(t, repo.Create(ctx, sess))
	assert.Error(t, repo.Close(ctx, sess))
}

func TestSessionRepo_OnlyOneOpenRowPerItem(t *testing.T) {
	repo, wiID := sessionTestSetup(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, testutil.NewTestSession(wiID, "worker-1", 1, testutil.Epoch)))
	err := repo.Create(ctx, testutil.NewTestSession(wiID, "worker-1", 2, testutil.Epoch.Add(time.Minute)))
	assert.Error(t, err)
}

func TestSessionRepo_ListByWorkItem_OrderedBySeq(t *testing.T) {
	repo, wiID := sessionTestSetup(t)
	ctx := context.Background()

	s1 := testutil.NewTestSession(wiID, "worker-1", 1, testutil.Epoch,
		testutil.WithClosed(domain.ReasonPause, 30*time.Minute))
	s2 := testutil.NewTestSession(wiID, "worker-1", 2, testutil.Epoch.Add(time.Hour),
		testutil.WithOpenReason(domain.ReasonResume), testutil.WithClosed(domain.ReasonFinish, 45*time.Minute))
	// Insert out of order: the sequence, not insertion order, decides.
	require.NoError(t, repo.Create(ctx, s2))
	require.NoError(t, repo.Create(ctx, s1))

	list, err := repo.ListByWorkItem(ctx, wiID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, s1.ID, list[0].ID)
	assert.Equal(t, s2.ID, list[1].ID)
	assert.Equal(t, domain.ReasonResume, list[1].OpenReason)

	last, err := repo.Last(ctx, wiID)
	require.NoError(t, err)
	assert.Equal(t, s2.ID, last.ID)

	seq, err := repo.NextSeq(ctx, wiID)
	require.NoError(t, err)
	assert.Equal(t, 3, seq)

	total, err := repo.SumClosed(ctx, wiID)
	require.NoError(t, err)
	assert.Equal(t, int64(30*60+45*60), total)
}

func TestSessionRepo_EmptyHistory(t *testing.T) {
	repo, wiID := sessionTestSetup(t)
	ctx := context.Background()

	seq, err := repo.NextSeq(ctx, wiID)
	require.NoError(t, err)
	assert.Equal(t, 1, seq)

	total, err := repo.SumClosed(ctx, wiID)
	require.NoError(t, err)
	assert.Zero(t, total)

	_, err = repo.Last(ctx, wiID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSessionRepo_SkewFlagRoundTrips(t *testing.T) {
	repo, wiID := sessionTestSetup(t)
	ctx := context.Background()

	sess := testutil.NewTestSession(wiID, "worker-1", 1, testutil.Epoch,
		testutil.WithClosed(domain.ReasonFinish, -5*time.Minute))
	require.NoError(t, repo.Create(ctx, sess))

	got, err := repo.Last(ctx, wiID)
	require.NoError(t, err)
	assert.True(t, got.ClockSkew)
	assert.Zero(t, got.Duration())
	assert.False(t, got.IsOpen())
}
