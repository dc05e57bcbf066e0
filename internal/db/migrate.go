package db

import (
	"database/sql"
	"fmt"
	"strings"
)

// Migrate runs all schema migrations.
func Migrate(db *sql.DB) error {
	for i, stmt := range migrations {
		if _, err := db.Exec(stmt); err != nil {
			// Tolerate "duplicate column name" errors from ALTER TABLE
			// since the migration system re-runs all statements.
			if strings.Contains(err.Error(), "duplicate column name") {
				continue
			}
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}

var migrations = []string{
	// Work item aggregate: identity, holder and the session-state projection.
	// The CHECK keeps the current-session pointer consistent with the state.
	`CREATE TABLE IF NOT EXISTS work_items (
		id                          TEXT PRIMARY KEY,
		kind                        TEXT NOT NULL
		                            CHECK(kind IN ('task','bug','qa_review')),
		title                       TEXT NOT NULL,
		parent_id                   TEXT NOT NULL DEFAULT '',
		assignee_id                 TEXT NOT NULL DEFAULT '',
		state                       TEXT NOT NULL DEFAULT 'idle'
		                            CHECK(state IN ('idle','active','paused','finished','auto_closed')),
		accumulated_seconds         INTEGER NOT NULL DEFAULT 0 CHECK(accumulated_seconds >= 0),
		current_session_started_at  TEXT,
		current_session_paused_at   TEXT,
		alert_count                 INTEGER NOT NULL DEFAULT 0,
		last_alert_at               TEXT,
		version                     INTEGER NOT NULL DEFAULT 1,
		created_at                  TEXT NOT NULL,
		updated_at                  TEXT NOT NULL,
		CHECK (
			(state = 'active' AND current_session_started_at IS NOT NULL AND current_session_paused_at IS NULL) OR
			(state = 'paused' AND current_session_started_at IS NULL AND current_session_paused_at IS NOT NULL) OR
			(state IN ('idle','finished','auto_closed') AND current_session_started_at IS NULL AND current_session_paused_at IS NULL)
		)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_work_items_assignee_state ON work_items(assignee_id, state)`,
	`CREATE INDEX IF NOT EXISTS idx_work_items_state ON work_items(state)`,

	// Append-only session history.
	`CREATE TABLE IF NOT EXISTS sessions (
		id               TEXT PRIMARY KEY,
		work_item_id     TEXT NOT NULL REFERENCES work_items(id) ON DELETE CASCADE,
		worker_id        TEXT NOT NULL,
		seq              INTEGER NOT NULL CHECK(seq > 0),
		open_reason      TEXT NOT NULL CHECK(open_reason IN ('start','resume')),
		close_reason     TEXT CHECK(close_reason IN ('pause','finish','auto_close')),
		started_at       TEXT NOT NULL,
		paused_at        TEXT,
		finished_at      TEXT,
		duration_seconds INTEGER CHECK(duration_seconds >= 0),
		clock_skew       INTEGER NOT NULL DEFAULT 0,
		created_at       TEXT NOT NULL,
		UNIQUE (work_item_id, seq)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_sessions_work_item ON sessions(work_item_id, seq)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_worker ON sessions(worker_id)`,

	// At most one open row per work item.
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_sessions_one_open
		ON sessions(work_item_id) WHERE duration_seconds IS NULL`,

	// Closed rows are history: no rewrite, no delete.
	`CREATE TRIGGER IF NOT EXISTS trg_sessions_closed_immutable
		BEFORE UPDATE ON sessions
		WHEN OLD.duration_seconds IS NOT NULL
		BEGIN
			SELECT RAISE(ABORT, 'session row is closed');
		END`,

	`CREATE TRIGGER IF NOT EXISTS trg_sessions_no_delete
		BEFORE DELETE ON sessions
		WHEN OLD.duration_seconds IS NOT NULL
		  AND EXISTS (SELECT 1 FROM work_items WHERE id = OLD.work_item_id)
		BEGIN
			SELECT RAISE(ABORT, 'session history is append-only');
		END`,

	`CREATE TABLE IF NOT EXISTS concurrency_grants (
		id          TEXT PRIMARY KEY,
		worker_id   TEXT NOT NULL,
		capability  TEXT NOT NULL,
		granted_at  TEXT NOT NULL,
		expires_at  TEXT,
		revoked_at  TEXT
	)`,

	`CREATE INDEX IF NOT EXISTS idx_grants_worker ON concurrency_grants(worker_id, capability)`,

	`CREATE TABLE IF NOT EXISTS audit_flags (
		id            TEXT PRIMARY KEY,
		work_item_id  TEXT NOT NULL,
		worker_id     TEXT NOT NULL DEFAULT '',
		session_id    TEXT NOT NULL DEFAULT '',
		kind          TEXT NOT NULL
		              CHECK(kind IN ('clock_skew_close','clock_skew_rejected','total_mismatch','pointer_repair')),
		detail        TEXT NOT NULL DEFAULT '',
		observed_at   TEXT NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_audit_flags_item ON audit_flags(work_item_id, observed_at)`,
}
