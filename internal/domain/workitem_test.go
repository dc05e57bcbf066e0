package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWorkItem_Validation(t *testing.T) {
	_, err := NewWorkItem("", KindTask, "Fix login", "w1", "", testNow)
	assert.Error(t, err)

	_, err = NewWorkItem("i1", "epic", "Fix login", "w1", "", testNow)
	assert.Error(t, err)

	_, err = NewWorkItem("i1", KindBug, "   ", "w1", "", testNow)
	assert.Error(t, err)

	_, err = NewWorkItem("i1", KindQAReview, "Review login", "qa1", "", testNow)
	assert.Error(t, err, "qa review needs the reviewed item")

	w, err := NewWorkItem("i1", KindQAReview, " Review login ", "qa1", "t1", testNow)
	require.NoError(t, err)
	assert.Equal(t, "Review login", w.Title)
	assert.Equal(t, StateIdle, w.State)
	assert.Equal(t, PoolReview, w.Pool())
}

func TestItemKind_Pool(t *testing.T) {
	assert.Equal(t, PoolWork, KindTask.Pool())
	assert.Equal(t, PoolWork, KindBug.Pool())
	assert.Equal(t, PoolReview, KindQAReview.Pool())
	assert.ElementsMatch(t, []ItemKind{KindTask, KindBug}, PoolWork.Kinds())
	assert.Equal(t, []ItemKind{KindQAReview}, PoolReview.Kinds())
	assert.Nil(t, Pool("other").Kinds())
}

func TestWorkItem_ReassignRequiresNoOpenSlot(t *testing.T) {
	w, err := NewWorkItem("i1", KindTask, "Task", "w1", "", testNow)
	require.NoError(t, err)

	require.NoError(t, w.Start(testNow))
	err = w.Reassign("w2", testNow)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = w.Pause(testNow.Add(time.Minute))
	require.NoError(t, err)
	assert.ErrorIs(t, w.Reassign("w2", testNow), ErrInvalidTransition)

	_, err = w.Finish(testNow.Add(2 * time.Minute))
	require.NoError(t, err)
	require.NoError(t, w.Reassign("w2", testNow))
	assert.True(t, w.HeldBy("w2"))
	assert.False(t, w.HeldBy("w1"))
}

func TestSession_CloseIsOneShot(t *testing.T) {
	s := NewOpenSession("s1", "i1", "w1", 1, ReasonStart, testNow, testNow)
	assert.True(t, s.IsOpen())

	iv, err := s.Close(ReasonPause, testNow.Add(10*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(600), iv.Seconds)
	require.NotNil(t, s.PausedAt)
	assert.Nil(t, s.FinishedAt)
	assert.Equal(t, int64(600), s.Duration())

	_, err = s.Close(ReasonFinish, testNow.Add(time.Hour))
	assert.ErrorIs(t, err, ErrSessionClosed)
	assert.Equal(t, int64(600), s.Duration(), "closed row is not rewritten")
}

func TestSession_CloseBeforeStartIsFlagged(t *testing.T) {
	s := NewOpenSession("s1", "i1", "w1", 1, ReasonStart, testNow, testNow)
	iv, err := s.Close(ReasonFinish, testNow.Add(-5*time.Minute))
	require.NoError(t, err)
	assert.True(t, iv.Skewed)
	assert.True(t, s.ClockSkew)
	assert.Equal(t, int64(0), s.Duration())
	require.NotNil(t, s.ClosedAt())
}

func TestSumClosed_SkipsOpenRows(t *testing.T) {
	a := NewOpenSession("a", "i1", "w1", 1, ReasonStart, testNow, testNow)
	_, err := a.Close(ReasonPause, testNow.Add(time.Minute))
	require.NoError(t, err)
	b := NewOpenSession("b", "i1", "w1", 2, ReasonResume, testNow.Add(2*time.Minute), testNow)
	assert.Equal(t, int64(60), SumClosed([]*Session{a, b}))
}

func TestGrant_ActiveAt(t *testing.T) {
	g := &ConcurrencyGrant{WorkerID: "w1", Capability: CapabilityUnlimitedSessions}
	assert.True(t, g.ActiveAt(testNow))

	exp := testNow.Add(time.Hour)
	g.ExpiresAt = &exp
	assert.True(t, g.ActiveAt(testNow))
	assert.False(t, g.ActiveAt(exp))

	rev := testNow.Add(-time.Minute)
	g.RevokedAt = &rev
	assert.False(t, g.ActiveAt(testNow))
}

func TestLimitError_NamesBlockingItems(t *testing.T) {
	err := &LimitError{WorkerID: "w1", Pool: PoolWork, Cap: 3, Active: []ActiveItem{
		{WorkItemID: "t1", State: StateActive},
		{WorkItemID: "t2", State: StatePaused},
	}}
	assert.ErrorIs(t, err, ErrConcurrencyLimitExceeded)
	assert.Contains(t, err.Error(), "t1(active)")
	assert.Contains(t, err.Error(), "t2(paused)")
}

func TestStoreError_IsStoreUnavailable(t *testing.T) {
	err := &StoreError{Op: OpStart, Err: ErrConcurrentUpdate}
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.ErrorIs(t, err, ErrConcurrentUpdate)
	assert.False(t, IsDomainError(err))
	assert.True(t, IsDomainError(&TransitionError{Op: OpPause, From: StateIdle}))
}

func TestSkewError(t *testing.T) {
	claimed := testNow.Add(time.Minute)
	err := &SkewError{Op: OpStart, Claimed: claimed, Reference: testNow, Detail: "is later than server time"}

	assert.ErrorIs(t, err, ErrClockSkew)
	assert.True(t, IsDomainError(err))
	assert.Contains(t, err.Error(), "start: claimed instant 2025-06-15T10:01:00Z is later than server time")
}
