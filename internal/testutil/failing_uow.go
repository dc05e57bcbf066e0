package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/alexanderramin/timeclock/internal/db"
)

// FailOnNthExecUoW injects Err on the FailOn-th ExecContext of a
// transaction, counted from 1 and reset for every transaction. Reads pass
// through. When Match is set only statements containing it are counted.
// Times bounds how many transactions are sabotaged; zero means all of them.
type FailOnNthExecUoW struct {
	DB     *sql.DB
	FailOn int32
	Err    error
	Match  string
	Times  int32

	failed atomic.Int32
	txs    atomic.Int32
}

func (u *FailOnNthExecUoW) WithinTx(ctx context.Context, fn func(ctx context.Context, tx db.DBTX) error) error {
	u.txs.Add(1)
	tx, err := u.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	wrapped := &failingTx{DBTX: tx, owner: u}
	if fnErr := fn(ctx, wrapped); fnErr != nil {
		_ = tx.Rollback()
		return fnErr
	}
	return tx.Commit()
}

// Transactions reports how many transactions were attempted.
func (u *FailOnNthExecUoW) Transactions() int { return int(u.txs.Load()) }

// Failures reports how many errors were injected.
func (u *FailOnNthExecUoW) Failures() int { return int(u.failed.Load()) }

func (u *FailOnNthExecUoW) exhausted() bool {
	return u.Times > 0 && u.failed.Load() >= u.Times
}

type failingTx struct {
	db.DBTX
	owner *FailOnNthExecUoW
	count atomic.Int32
}

func (f *failingTx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if f.owner.Match == "" || strings.Contains(query, f.owner.Match) {
		n := f.count.Add(1)
		if n == f.owner.FailOn && !f.owner.exhausted() {
			f.owner.failed.Add(1)
			return nil, f.owner.Err
		}
	}
	return f.DBTX.ExecContext(ctx, query, args...)
}
