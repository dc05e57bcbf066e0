package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/alexanderramin/timeclock/internal/db"
	"github.com/alexanderramin/timeclock/internal/domain"
)

// SQLiteAuditRepo implements AuditRepo using a SQLite database.
type SQLiteAuditRepo struct {
	db db.DBTX
}

// NewSQLiteAuditRepo creates a new SQLiteAuditRepo.
func NewSQLiteAuditRepo(db db.DBTX) *SQLiteAuditRepo {
	return &SQLiteAuditRepo{db: db}
}

func (r *SQLiteAuditRepo) Create(ctx context.Context, f *domain.AuditFlag) error {
	query := `INSERT INTO audit_flags (id, work_item_id, worker_id, session_id, kind, detail, observed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		f.ID, f.WorkItemID, f.WorkerID, f.SessionID, string(f.Kind), f.Detail, formatTime(f.ObservedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting audit flag: %w", err)
	}
	return nil
}

func (r *SQLiteAuditRepo) ListByWorkItem(ctx context.Context, workItemID string) ([]*domain.AuditFlag, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, work_item_id, worker_id, session_id, kind, detail, observed_at
		FROM audit_flags WHERE work_item_id = ? ORDER BY observed_at, id`, workItemID)
	if err != nil {
		return nil, fmt.Errorf("listing audit flags: %w", err)
	}
	defer rows.Close()
	return scanAuditFlags(rows)
}

func (r *SQLiteAuditRepo) ListRecent(ctx context.Context, limit int) ([]*domain.AuditFlag, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `SELECT id, work_item_id, worker_id, session_id, kind, detail, observed_at
		FROM audit_flags ORDER BY observed_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing recent audit flags: %w", err)
	}
	defer rows.Close()
	return scanAuditFlags(rows)
}

func scanAuditFlags(rows *sql.Rows) ([]*domain.AuditFlag, error) {
	var flags []*domain.AuditFlag
	for rows.Next() {
		var (
			f          domain.AuditFlag
			kind, seen string
		)
		if err := rows.Scan(&f.ID, &f.WorkItemID, &f.WorkerID, &f.SessionID, &kind, &f.Detail, &seen); err != nil {
			return nil, fmt.Errorf("scanning audit flag: %w", err)
		}
		f.Kind = domain.AuditKind(kind)
		var err error
		if f.ObservedAt, err = parseTime(seen, "observed_at"); err != nil {
			return nil, err
		}
		flags = append(flags, &f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit flags: %w", err)
	}
	return flags, nil
}
