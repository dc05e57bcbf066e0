package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/alexanderramin/timeclock/internal/db"
	"github.com/alexanderramin/timeclock/internal/domain"
)

const sessionColumns = `id, work_item_id, worker_id, seq, open_reason, close_reason,
		started_at, paused_at, finished_at, duration_seconds, clock_skew, created_at`

// SQLiteSessionRepo implements SessionRepo using a SQLite database.
type SQLiteSessionRepo struct {
	db db.DBTX
}

// NewSQLiteSessionRepo creates a new SQLiteSessionRepo.
func NewSQLiteSessionRepo(db db.DBTX) *SQLiteSessionRepo {
	return &SQLiteSessionRepo{db: db}
}

func (r *SQLiteSessionRepo) Create(ctx context.Context, s *domain.Session) error {
	query := `INSERT INTO sessions (` + sessionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		s.ID,
		s.WorkItemID,
		s.WorkerID,
		s.Seq,
		string(s.OpenReason),
		nullableReason(s.CloseReason),
		formatTime(s.StartedAt),
		nullableTimeToString(s.PausedAt),
		nullableTimeToString(s.FinishedAt),
		nullableInt64ToValue(s.DurationSeconds),
		boolToInt(s.ClockSkew),
		formatTime(s.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting session: %w", err)
	}
	return nil
}

func (r *SQLiteSessionRepo) GetOpen(ctx context.Context, workItemID string) (*domain.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions
		WHERE work_item_id = ? AND duration_seconds IS NULL`
	return r.scanSession(r.db.QueryRowContext(ctx, query, workItemID))
}

func (r *SQLiteSessionRepo) Last(ctx context.Context, workItemID string) (*domain.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions
		WHERE work_item_id = ? ORDER BY seq DESC LIMIT 1`
	return r.scanSession(r.db.QueryRowContext(ctx, query, workItemID))
}

func (r *SQLiteSessionRepo) ListByWorkItem(ctx context.Context, workItemID string) ([]*domain.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions
		WHERE work_item_id = ? ORDER BY seq`
	rows, err := r.db.QueryContext(ctx, query, workItemID)
	if err != nil {
		return nil, fmt.Errorf("listing sessions by work item: %w", err)
	}
	defer rows.Close()
	return r.scanSessions(rows)
}

func (r *SQLiteSessionRepo) NextSeq(ctx context.Context, workItemID string) (int, error) {
	var seq int
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) + 1 FROM sessions WHERE work_item_id = ?`, workItemID,
	).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("reading next session seq: %w", err)
	}
	return seq, nil
}

func (r *SQLiteSessionRepo) Close(ctx context.Context, s *domain.Session) error {
	if s.IsOpen() {
		return fmt.Errorf("closing session %s: no closing edge set", s.ID)
	}
	query := `UPDATE sessions SET close_reason = ?, paused_at = ?, finished_at = ?,
		duration_seconds = ?, clock_skew = ?
		WHERE id = ? AND duration_seconds IS NULL`
	res, err := r.db.ExecContext(ctx, query,
		string(s.CloseReason),
		nullableTimeToString(s.PausedAt),
		nullableTimeToString(s.FinishedAt),
		*s.DurationSeconds,
		boolToInt(s.ClockSkew),
		s.ID,
	)
	if err != nil {
		return fmt.Errorf("closing session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("closing session: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("session %s: %w", s.ID, domain.ErrSessionClosed)
	}
	return nil
}

func (r *SQLiteSessionRepo) SumClosed(ctx context.Context, workItemID string) (int64, error) {
	var total int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(duration_seconds), 0) FROM sessions
		 WHERE work_item_id = ? AND duration_seconds IS NOT NULL`, workItemID,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("summing closed sessions: %w", err)
	}
	return total, nil
}

func nullableReason(r domain.Reason) any {
	if r == "" {
		return nil
	}
	return string(r)
}

// scanSession scans a single session from a *sql.Row.
func (r *SQLiteSessionRepo) scanSession(row *sql.Row) (*domain.Session, error) {
	s, err := r.scanInto(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("session: %w", ErrNotFound)
		}
		return nil, err
	}
	return s, nil
}

// scanSessions scans multiple sessions from *sql.Rows.
func (r *SQLiteSessionRepo) scanSessions(rows *sql.Rows) ([]*domain.Session, error) {
	var sessions []*domain.Session
	for rows.Next() {
		s, err := r.scanInto(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sessions: %w", err)
	}
	return sessions, nil
}

func (r *SQLiteSessionRepo) scanInto(sc rowScanner) (*domain.Session, error) {
	var (
		s                    domain.Session
		openReason           string
		closeReason          sql.NullString
		startedAt, createdAt string
		pausedAt, finishedAt sql.NullString
		duration             sql.NullInt64
		skew                 int
	)
	err := sc.Scan(
		&s.ID, &s.WorkItemID, &s.WorkerID, &s.Seq, &openReason, &closeReason,
		&startedAt, &pausedAt, &finishedAt, &duration, &skew, &createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning session: %w", err)
	}
	s.OpenReason = domain.Reason(openReason)
	if closeReason.Valid {
		s.CloseReason = domain.Reason(closeReason.String)
	}
	if duration.Valid {
		d := duration.Int64
		s.DurationSeconds = &d
	}
	s.ClockSkew = intToBool(skew)

	if s.StartedAt, err = parseTime(startedAt, "started_at"); err != nil {
		return nil, err
	}
	if s.PausedAt, err = parseNullableTime(pausedAt, "paused_at"); err != nil {
		return nil, err
	}
	if s.FinishedAt, err = parseNullableTime(finishedAt, "finished_at"); err != nil {
		return nil, err
	}
	if s.CreatedAt, err = parseTime(createdAt, "created_at"); err != nil {
		return nil, err
	}
	return &s, nil
}
