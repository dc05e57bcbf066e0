package service

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alexanderramin/timeclock/internal/clock"
	"github.com/alexanderramin/timeclock/internal/db"
	"github.com/alexanderramin/timeclock/internal/domain"
	"github.com/alexanderramin/timeclock/internal/repository"
	"github.com/alexanderramin/timeclock/internal/testutil"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

type harness struct {
	t        *testing.T
	db       *sql.DB
	uow      db.UnitOfWork
	clock    *clock.Manual
	items    *repository.SQLiteWorkItemRepo
	sessions *repository.SQLiteSessionRepo
	audits   *repository.SQLiteAuditRepo
	grants   *repository.SQLiteGrantRepo
	limiter  *ConcurrencyLimiter
	engine   SessionEngine
	queries  TimerQueries
	itemSvc  ItemService
	grantSvc GrantService
	auditor  Auditor
	notifier *recordingNotifier
	sweeper  Sweeper
}

type harnessConfig struct {
	database *sql.DB
	caps     PoolCaps
	sweeper  SweeperConfig
}

type harnessOption func(*harnessConfig)

func withDatabase(database *sql.DB) harnessOption {
	return func(c *harnessConfig) { c.database = database }
}

func withCaps(caps PoolCaps) harnessOption {
	return func(c *harnessConfig) { c.caps = caps }
}

func withSweeperConfig(cfg SweeperConfig) harnessOption {
	return func(c *harnessConfig) { c.sweeper = cfg }
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()
	cfg := harnessConfig{sweeper: DefaultSweeperConfig()}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.database == nil {
		cfg.database = testutil.NewTestDB(t)
	}

	h := &harness{
		t:        t,
		db:       cfg.database,
		uow:      testutil.NewTestUoW(cfg.database),
		clock:    clock.NewManual(testNow),
		items:    repository.NewSQLiteWorkItemRepo(cfg.database),
		sessions: repository.NewSQLiteSessionRepo(cfg.database),
		audits:   repository.NewSQLiteAuditRepo(cfg.database),
		grants:   repository.NewSQLiteGrantRepo(cfg.database),
		notifier: &recordingNotifier{},
	}
	grantChecker := NewStoreGrants(h.grants, h.clock)
	h.limiter = NewConcurrencyLimiter(h.items, grantChecker, cfg.caps)
	h.engine = NewSessionEngine(h.uow, h.clock, h.limiter, NewStoreAssignments(h.items), grantChecker, EngineOptions{})
	h.queries = NewTimerQueries(h.items, h.sessions, h.audits, h.clock)
	h.itemSvc = NewItemService(h.items, h.uow, h.clock)
	h.grantSvc = NewGrantService(h.grants, h.clock)
	h.auditor = NewAuditor(h.items, h.uow, h.clock, nil)
	h.sweeper = NewStalenessSweeper(h.engine, h.items, h.auditor, h.notifier, h.clock, cfg.sweeper, nil)
	return h
}

// register creates an Idle item held by workerID.
func (h *harness) register(kind domain.ItemKind, workerID string) *domain.WorkItem {
	h.t.Helper()
	req := RegisterRequest{Kind: kind, Title: string(kind) + " item", AssigneeID: workerID}
	if kind == domain.KindQAReview {
		parent := h.register(domain.KindTask, "dev")
		req.ParentID = parent.ID
	}
	item, err := h.itemSvc.Register(context.Background(), req)
	require.NoError(h.t, err)
	return item
}

func (h *harness) req(item *domain.WorkItem, workerID string) TransitionRequest {
	return TransitionRequest{WorkItemID: item.ID, WorkerID: workerID}
}

func (h *harness) mustStart(item *domain.WorkItem, workerID string) *TransitionResult {
	h.t.Helper()
	res, err := h.engine.Start(context.Background(), h.req(item, workerID))
	require.NoError(h.t, err)
	return res
}

func (h *harness) mustPause(item *domain.WorkItem, workerID string) *TransitionResult {
	h.t.Helper()
	res, err := h.engine.Pause(context.Background(), h.req(item, workerID))
	require.NoError(h.t, err)
	return res
}

func (h *harness) reload(id string) *domain.WorkItem {
	h.t.Helper()
	item, err := h.items.GetByID(context.Background(), id)
	require.NoError(h.t, err)
	return item
}

func (h *harness) history(id string) []*domain.Session {
	h.t.Helper()
	sessions, err := h.queries.SessionHistory(context.Background(), id)
	require.NoError(h.t, err)
	return sessions
}

// requireConsistent asserts the aggregate total equals its closed history.
func (h *harness) requireConsistent(id string) {
	h.t.Helper()
	item := h.reload(id)
	history := h.history(id)
	require.Equal(h.t, domain.SumClosed(history), item.AccumulatedSeconds, "total must equal closed history")
	for _, s := range history {
		if !s.IsOpen() {
			require.GreaterOrEqual(h.t, s.Duration(), int64(0))
		}
	}
	require.NoError(h.t, item.Validate())
}

type alertCall struct {
	WorkItemID     string
	WorkerID       string
	ElapsedSeconds int64
}

type autoCloseCall struct {
	WorkItemID         string
	WorkerID           string
	AccumulatedSeconds int64
}

type recordingNotifier struct {
	mu         sync.Mutex
	alerts     []alertCall
	autoCloses []autoCloseCall
	fail       bool
}

func (n *recordingNotifier) AlertRaised(_ context.Context, workItemID, workerID string, elapsedSeconds int64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, alertCall{workItemID, workerID, elapsedSeconds})
	if n.fail {
		return errors.New("notification channel down")
	}
	return nil
}

func (n *recordingNotifier) AutoClosed(_ context.Context, workItemID, workerID string, accumulatedSeconds int64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.autoCloses = append(n.autoCloses, autoCloseCall{workItemID, workerID, accumulatedSeconds})
	if n.fail {
		return errors.New("notification channel down")
	}
	return nil
}

func (n *recordingNotifier) counts() (alerts, autoCloses int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.alerts), len(n.autoCloses)
}

func ptr[T any](v T) *T { return &v }
