package service

import (
	"context"
	"time"

	"github.com/alexanderramin/timeclock/internal/domain"
)

// TransitionRequest is a worker-driven transition on one work item.
type TransitionRequest struct {
	WorkItemID string
	WorkerID   string
	// ClientTime is the instant the worker's client claims for the edge.
	// Nil means the engine clock's now.
	ClientTime *time.Time
}

// TransitionResult is the committed outcome of a transition.
type TransitionResult struct {
	Item *domain.WorkItem
	// Session is the row the transition opened or closed; nil when finishing
	// an already paused item.
	Session            *domain.Session
	AccumulatedSeconds int64
	ClockSkew          bool
}

// ForceFinishRequest closes an item on behalf of the sweeper or an operator.
type ForceFinishRequest struct {
	WorkItemID string
	// At is the credited close instant. Nil means now.
	At *time.Time
	// IfStartedAt makes the call conditional: it applies only while the item
	// is still Active on the session that started at this instant.
	IfStartedAt *time.Time
}

// AlertRequest records that alert thresholds were notified for the running
// session that started at SessionStartedAt.
type AlertRequest struct {
	WorkItemID       string
	SessionStartedAt time.Time
	Covered          int
	At               time.Time
}

type SessionEngine interface {
	Start(ctx context.Context, req TransitionRequest) (*TransitionResult, error)
	Pause(ctx context.Context, req TransitionRequest) (*TransitionResult, error)
	Resume(ctx context.Context, req TransitionRequest) (*TransitionResult, error)
	Finish(ctx context.Context, req TransitionRequest) (*TransitionResult, error)
	ForceFinish(ctx context.Context, req ForceFinishRequest) (*TransitionResult, error)
	Reopen(ctx context.Context, workItemID string) (*domain.WorkItem, error)
	// MarkAlerted stores alert bookkeeping and reports whether anything new
	// was recorded.
	MarkAlerted(ctx context.Context, req AlertRequest) (bool, error)
}

type Limiter interface {
	CanActivate(ctx context.Context, workerID string, pool domain.Pool) (bool, error)
	ActiveCount(ctx context.Context, workerID string, pool domain.Pool) (int, error)
	ActiveItems(ctx context.Context, workerID string, pool domain.Pool) ([]domain.ActiveItem, error)
	Cap(pool domain.Pool) int
}

type TimerQueries interface {
	Item(ctx context.Context, workItemID string) (*domain.WorkItem, error)
	AccumulatedSeconds(ctx context.Context, workItemID string) (int64, error)
	LiveElapsedSeconds(ctx context.Context, workItemID string) (int64, error)
	CurrentState(ctx context.Context, workItemID string) (domain.SessionState, error)
	SessionHistory(ctx context.Context, workItemID string) ([]*domain.Session, error)
	AuditFlags(ctx context.Context, workItemID string) ([]*domain.AuditFlag, error)
	RecentAuditFlags(ctx context.Context, limit int) ([]*domain.AuditFlag, error)
}

// SweepReport summarizes one sweeper pass.
type SweepReport struct {
	Scanned    int
	Alerted    int
	AutoClosed int
	Skipped    int
	Failed     int
	Audit      *AuditReport
}

type Sweeper interface {
	Sweep(ctx context.Context) (*SweepReport, error)
	Run(ctx context.Context) error
}

// AuditReport summarizes a recompute-from-history pass.
type AuditReport struct {
	Checked  int
	Repaired []string
}

type Auditor interface {
	Verify(ctx context.Context, workItemID string) (bool, error)
	VerifyAll(ctx context.Context) (*AuditReport, error)
}

// RegisterRequest creates a trackable work item.
type RegisterRequest struct {
	ID         string
	Kind       domain.ItemKind
	Title      string
	AssigneeID string
	ParentID   string
}

type ItemService interface {
	Register(ctx context.Context, req RegisterRequest) (*domain.WorkItem, error)
	Assign(ctx context.Context, workItemID, workerID string) (*domain.WorkItem, error)
	List(ctx context.Context, assigneeID string, states []domain.SessionState) ([]*domain.WorkItem, error)
}

type GrantService interface {
	Grant(ctx context.Context, workerID string, expiresAt *time.Time) (*domain.ConcurrencyGrant, error)
	Revoke(ctx context.Context, workerID string) (int64, error)
	List(ctx context.Context, workerID string) ([]*domain.ConcurrencyGrant, error)
}

// AssignmentChecker is the Assignment collaborator.
type AssignmentChecker interface {
	IsAssignedTo(ctx context.Context, workItemID, workerID string) (bool, error)
}

// GrantChecker is the Authorization collaborator.
type GrantChecker interface {
	HasGrant(ctx context.Context, workerID string, capability domain.Capability) (bool, error)
}

// Notifier is the Notification collaborator. Delivery is fire-and-forget;
// an error is logged and never undoes the transition it reports.
type Notifier interface {
	AlertRaised(ctx context.Context, workItemID, workerID string, elapsedSeconds int64) error
	AutoClosed(ctx context.Context, workItemID, workerID string, accumulatedSeconds int64) error
}
