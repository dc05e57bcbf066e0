package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/alexanderramin/timeclock/internal/db"
	"github.com/alexanderramin/timeclock/internal/domain"
)

// workItemColumns is the canonical SELECT column list for work_items.
const workItemColumns = `id, kind, title, parent_id, assignee_id, state,
		accumulated_seconds, current_session_started_at, current_session_paused_at,
		alert_count, last_alert_at, version, created_at, updated_at`

// SQLiteWorkItemRepo implements WorkItemRepo using a SQLite database.
type SQLiteWorkItemRepo struct {
	db db.DBTX
}

// NewSQLiteWorkItemRepo creates a new SQLiteWorkItemRepo.
func NewSQLiteWorkItemRepo(db db.DBTX) *SQLiteWorkItemRepo {
	return &SQLiteWorkItemRepo{db: db}
}

func (r *SQLiteWorkItemRepo) Create(ctx context.Context, w *domain.WorkItem) error {
	if w.Version == 0 {
		w.Version = 1
	}
	query := `INSERT INTO work_items (` + workItemColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		w.ID,
		string(w.Kind),
		w.Title,
		w.ParentID,
		w.AssigneeID,
		string(w.State),
		w.AccumulatedSeconds,
		nullableTimeToString(w.SessionStartedAt),
		nullableTimeToString(w.SessionPausedAt),
		w.AlertCount,
		nullableTimeToString(w.LastAlertAt),
		w.Version,
		formatTime(w.CreatedAt),
		formatTime(w.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting work item: %w", err)
	}
	return nil
}

func (r *SQLiteWorkItemRepo) GetByID(ctx context.Context, id string) (*domain.WorkItem, error) {
	query := `SELECT ` + workItemColumns + ` FROM work_items WHERE id = ?`
	row := r.db.QueryRowContext(ctx, query, id)
	return r.scanWorkItem(row)
}

func (r *SQLiteWorkItemRepo) List(ctx context.Context, filter WorkItemFilter) ([]*domain.WorkItem, error) {
	var (
		where []string
		args  []any
	)
	if filter.AssigneeID != "" {
		where = append(where, "assignee_id = ?")
		args = append(args, filter.AssigneeID)
	}
	if len(filter.States) > 0 {
		where = append(where, "state IN ("+placeholders(len(filter.States))+")")
		for _, s := range filter.States {
			args = append(args, string(s))
		}
	}
	if len(filter.Kinds) > 0 {
		where = append(where, "kind IN ("+placeholders(len(filter.Kinds))+")")
		for _, k := range filter.Kinds {
			args = append(args, string(k))
		}
	}

	query := `SELECT ` + workItemColumns + ` FROM work_items`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing work items: %w", err)
	}
	defer rows.Close()
	return r.scanWorkItems(rows)
}

func (r *SQLiteWorkItemRepo) ListSlotHolders(ctx context.Context, workerID string, kinds []domain.ItemKind, excludeID string) ([]*domain.WorkItem, error) {
	if len(kinds) == 0 {
		return nil, nil
	}
	args := []any{workerID, excludeID}
	for _, k := range kinds {
		args = append(args, string(k))
	}
	query := `SELECT ` + workItemColumns + ` FROM work_items
		WHERE assignee_id = ?
		  AND id <> ?
		  AND state IN ('active', 'paused')
		  AND kind IN (` + placeholders(len(kinds)) + `)
		ORDER BY updated_at, id`
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing slot holders: %w", err)
	}
	defer rows.Close()
	return r.scanWorkItems(rows)
}

func (r *SQLiteWorkItemRepo) Update(ctx context.Context, w *domain.WorkItem) error {
	query := `UPDATE work_items SET
		title = ?, parent_id = ?, assignee_id = ?, state = ?,
		accumulated_seconds = ?, current_session_started_at = ?, current_session_paused_at = ?,
		alert_count = ?, last_alert_at = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`
	res, err := r.db.ExecContext(ctx, query,
		w.Title,
		w.ParentID,
		w.AssigneeID,
		string(w.State),
		w.AccumulatedSeconds,
		nullableTimeToString(w.SessionStartedAt),
		nullableTimeToString(w.SessionPausedAt),
		w.AlertCount,
		nullableTimeToString(w.LastAlertAt),
		formatTime(w.UpdatedAt),
		w.ID,
		w.Version,
	)
	if err != nil {
		return fmt.Errorf("updating work item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating work item: %w", err)
	}
	if n == 0 {
		var exists int
		err := r.db.QueryRowContext(ctx, `SELECT 1 FROM work_items WHERE id = ?`, w.ID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("work item %s: %w", w.ID, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("checking work item: %w", err)
		}
		return fmt.Errorf("work item %s at version %d: %w", w.ID, w.Version, domain.ErrConcurrentUpdate)
	}
	w.Version++
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanWorkItem scans a single work item from a *sql.Row.
func (r *SQLiteWorkItemRepo) scanWorkItem(row *sql.Row) (*domain.WorkItem, error) {
	w, err := r.scanInto(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("work item: %w", ErrNotFound)
		}
		return nil, err
	}
	return w, nil
}

// scanWorkItems scans multiple work items from *sql.Rows.
func (r *SQLiteWorkItemRepo) scanWorkItems(rows *sql.Rows) ([]*domain.WorkItem, error) {
	var items []*domain.WorkItem
	for rows.Next() {
		w, err := r.scanInto(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating work items: %w", err)
	}
	return items, nil
}

func (r *SQLiteWorkItemRepo) scanInto(s rowScanner) (*domain.WorkItem, error) {
	var (
		w                          domain.WorkItem
		kind, state                string
		startedAt, pausedAt, alert sql.NullString
		createdAt, updatedAt       string
	)
	err := s.Scan(
		&w.ID, &kind, &w.Title, &w.ParentID, &w.AssigneeID, &state,
		&w.AccumulatedSeconds, &startedAt, &pausedAt,
		&w.AlertCount, &alert, &w.Version, &createdAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning work item: %w", err)
	}
	w.Kind = domain.ItemKind(kind)
	w.State = domain.SessionState(state)

	if w.SessionStartedAt, err = parseNullableTime(startedAt, "current_session_started_at"); err != nil {
		return nil, err
	}
	if w.SessionPausedAt, err = parseNullableTime(pausedAt, "current_session_paused_at"); err != nil {
		return nil, err
	}
	if w.LastAlertAt, err = parseNullableTime(alert, "last_alert_at"); err != nil {
		return nil, err
	}
	if w.CreatedAt, err = parseTime(createdAt, "created_at"); err != nil {
		return nil, err
	}
	if w.UpdatedAt, err = parseTime(updatedAt, "updated_at"); err != nil {
		return nil, err
	}
	return &w, nil
}
