package domain

// ItemKind identifies which work item variant carries a timer.
type ItemKind string

const (
	KindTask     ItemKind = "task"
	KindBug      ItemKind = "bug"
	KindQAReview ItemKind = "qa_review"
)

// ValidItemKinds is the canonical set of accepted item kind strings.
var ValidItemKinds = map[string]bool{
	string(KindTask): true, string(KindBug): true, string(KindQAReview): true,
}

// Pool returns the concurrency pool the kind draws slots from.
func (k ItemKind) Pool() Pool {
	if k == KindQAReview {
		return PoolReview
	}
	return PoolWork
}

// Pool groups item kinds that share one per-worker concurrency cap.
type Pool string

const (
	PoolWork   Pool = "work"
	PoolReview Pool = "review"
)

// Kinds lists the item kinds counted against the pool.
func (p Pool) Kinds() []ItemKind {
	switch p {
	case PoolReview:
		return []ItemKind{KindQAReview}
	case PoolWork:
		return []ItemKind{KindTask, KindBug}
	default:
		return nil
	}
}

// SessionState is the lifecycle state of a work item's timer.
type SessionState string

const (
	StateIdle       SessionState = "idle"
	StateActive     SessionState = "active"
	StatePaused     SessionState = "paused"
	StateFinished   SessionState = "finished"
	StateAutoClosed SessionState = "auto_closed"
)

// IsTerminal reports whether worker-driven transitions are closed for good
// (until an administrative reopen).
func (s SessionState) IsTerminal() bool {
	return s == StateFinished || s == StateAutoClosed
}

// OccupiesSlot reports whether an item in this state counts toward the
// holder's concurrency cap. Paused work is unfinished committed work.
func (s SessionState) OccupiesSlot() bool {
	return s == StateActive || s == StatePaused
}

// Reason tags the edge that opened or closed a session row.
type Reason string

const (
	ReasonStart     Reason = "start"
	ReasonPause     Reason = "pause"
	ReasonResume    Reason = "resume"
	ReasonFinish    Reason = "finish"
	ReasonAutoClose Reason = "auto_close"
)

// Op names an engine operation for errors and telemetry.
type Op string

const (
	OpStart       Op = "start"
	OpPause       Op = "pause"
	OpResume      Op = "resume"
	OpFinish      Op = "finish"
	OpForceFinish Op = "force_finish"
	OpReopen      Op = "reopen"
	OpRegister    Op = "register"
	OpAssign      Op = "assign"
	OpAlert       Op = "alert"
	OpAudit       Op = "audit"
)

// Capability names an authorization grant understood by the limiter.
type Capability string

const CapabilityUnlimitedSessions Capability = "unlimited_concurrent_sessions"

// AuditKind classifies an audit flag.
type AuditKind string

const (
	AuditClockSkewClose    AuditKind = "clock_skew_close"
	AuditClockSkewRejected AuditKind = "clock_skew_rejected"
	AuditTotalMismatch     AuditKind = "total_mismatch"
	AuditPointerRepair     AuditKind = "pointer_repair"
)
