package db_test

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/alexanderramin/timeclock/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *db.SQLiteUnitOfWork {
	t.Helper()
	database, err := db.OpenDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	// Create a simple test table outside the migration set.
	_, err = database.Exec(`CREATE TABLE IF NOT EXISTS uow_test (id TEXT PRIMARY KEY, val TEXT)`)
	require.NoError(t, err)

	return db.NewSQLiteUnitOfWork(database)
}

// readVal is a helper that reads val for a given id using the underlying DB.
func readVal(uow *db.SQLiteUnitOfWork, id string) (string, bool) {
	// We need a raw *sql.DB to read outside transactions.
	// Re-use WithinTx with a read-only operation for simplicity.
	var val string
	var found bool
	_ = uow.WithinTx(context.Background(), func(ctx context.Context, tx db.DBTX) error {
		row := tx.QueryRowContext(ctx, `SELECT val FROM uow_test WHERE id = ?`, id)
		if err := row.Scan(&val); err != nil {
			return nil // not found
		}
		found = true
		return nil
	})
	return val, found
}

func TestWithinTx_CommitOnSuccess(t *testing.T) {
	uow := openTestDB(t)

	err := uow.WithinTx(context.Background(), func(ctx context.Context, tx db.DBTX) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO uow_test (id, val) VALUES (?, ?)`, "k1", "v1")
		return err
	})
	require.NoError(t, err)

	val, found := readVal(uow, "k1")
	assert.True(t, found, "row should exist after commit")
	assert.Equal(t, "v1", val)
}

func TestWithinTx_RollbackOnError(t *testing.T) {
	uow := openTestDB(t)

	err := uow.WithinTx(context.Background(), func(ctx context.Context, tx db.DBTX) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO uow_test (id, val) VALUES (?, ?)`, "k2", "v2")
		if err != nil {
			return err
		}
		return fmt.Errorf("deliberate failure")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "deliberate failure")

	_, found := readVal(uow, "k2")
	assert.False(t, found, "row should not exist after rollback")
}

func TestWithinTx_RollbackOnPanic(t *testing.T) {
	uow := openTestDB(t)

	assert.Panics(t, func() {
		_ = uow.WithinTx(context.Background(), func(ctx context.Context, tx db.DBTX) error {
			_, _ = tx.ExecContext(ctx, `INSERT INTO uow_test (id, val) VALUES (?, ?)`, "k3", "v3")
			panic("boom")
		})
	})

	_, found := readVal(uow, "k3")
	assert.False(t, found, "row should not exist after panic rollback")
}

func TestIsBusy(t *testing.T) {
	assert.False(t, db.IsBusy(nil))
	assert.False(t, db.IsBusy(fmt.Errorf("no such table: x")))
	assert.True(t, db.IsBusy(fmt.Errorf("exec: database is locked (5) (SQLITE_BUSY)")))
	assert.True(t, db.IsBusy(fmt.Errorf("wrapped: %w", db.ErrBusy)))
}

func TestWithinTx_FileDatabaseSerializesWriters(t *testing.T) {
	database, err := db.OpenDB(filepath.Join(t.TempDir(), "uow.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	_, err = database.Exec(`CREATE TABLE counter (n INTEGER NOT NULL)`)
	require.NoError(t, err)
	_, err = database.Exec(`INSERT INTO counter (n) VALUES (0)`)
	require.NoError(t, err)

	uow := db.NewSQLiteUnitOfWork(database)
	const writers = 8
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- uow.WithinTx(context.Background(), func(ctx context.Context, tx db.DBTX) error {
				var n int
				if err := tx.QueryRowContext(ctx, `SELECT n FROM counter`).Scan(&n); err != nil {
					return err
				}
				_, err := tx.ExecContext(ctx, `UPDATE counter SET n = ?`, n+1)
				return err
			})
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	var n int
	require.NoError(t, database.QueryRow(`SELECT n FROM counter`).Scan(&n))
	assert.Equal(t, writers, n, "immediate transactions must not lose updates")
}
