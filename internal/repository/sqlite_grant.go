package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/alexanderramin/timeclock/internal/db"
	"github.com/alexanderramin/timeclock/internal/domain"
)

// SQLiteGrantRepo implements GrantRepo using a SQLite database.
type SQLiteGrantRepo struct {
	db db.DBTX
}

// NewSQLiteGrantRepo creates a new SQLiteGrantRepo.
func NewSQLiteGrantRepo(db db.DBTX) *SQLiteGrantRepo {
	return &SQLiteGrantRepo{db: db}
}

func (r *SQLiteGrantRepo) Create(ctx context.Context, g *domain.ConcurrencyGrant) error {
	query := `INSERT INTO concurrency_grants (id, worker_id, capability, granted_at, expires_at, revoked_at)
		VALUES (?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		g.ID,
		g.WorkerID,
		string(g.Capability),
		formatTime(g.GrantedAt),
		nullableTimeToString(g.ExpiresAt),
		nullableTimeToString(g.RevokedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting grant: %w", err)
	}
	return nil
}

func (r *SQLiteGrantRepo) ListByWorker(ctx context.Context, workerID string) ([]*domain.ConcurrencyGrant, error) {
	query := `SELECT id, worker_id, capability, granted_at, expires_at, revoked_at
		FROM concurrency_grants WHERE worker_id = ? ORDER BY granted_at, id`
	rows, err := r.db.QueryContext(ctx, query, workerID)
	if err != nil {
		return nil, fmt.Errorf("listing grants: %w", err)
	}
	defer rows.Close()

	var grants []*domain.ConcurrencyGrant
	for rows.Next() {
		var (
			g                   domain.ConcurrencyGrant
			capability, granted string
			expires, revoked    sql.NullString
		)
		if err := rows.Scan(&g.ID, &g.WorkerID, &capability, &granted, &expires, &revoked); err != nil {
			return nil, fmt.Errorf("scanning grant: %w", err)
		}
		g.Capability = domain.Capability(capability)
		if g.GrantedAt, err = parseTime(granted, "granted_at"); err != nil {
			return nil, err
		}
		if g.ExpiresAt, err = parseNullableTime(expires, "expires_at"); err != nil {
			return nil, err
		}
		if g.RevokedAt, err = parseNullableTime(revoked, "revoked_at"); err != nil {
			return nil, err
		}
		grants = append(grants, &g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating grants: %w", err)
	}
	return grants, nil
}

func (r *SQLiteGrantRepo) HasActive(ctx context.Context, workerID string, capability domain.Capability, now time.Time) (bool, error) {
	at := formatTime(now)
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM concurrency_grants
		WHERE worker_id = ? AND capability = ?
		  AND granted_at <= ?
		  AND (expires_at IS NULL OR expires_at > ?)
		  AND (revoked_at IS NULL OR revoked_at > ?)`,
		workerID, string(capability), at, at, at,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking grant: %w", err)
	}
	return n > 0, nil
}

// Revoke stamps every live grant of the capability for the worker and
// returns how many were revoked.
func (r *SQLiteGrantRepo) Revoke(ctx context.Context, workerID string, capability domain.Capability, at time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE concurrency_grants SET revoked_at = ?
		WHERE worker_id = ? AND capability = ? AND revoked_at IS NULL`,
		formatTime(at), workerID, string(capability),
	)
	if err != nil {
		return 0, fmt.Errorf("revoking grant: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("revoking grant: %w", err)
	}
	return n, nil
}
