package repository

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// timeLayout is fixed-width so stored instants sort lexically in time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s, column string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing %s: %w", column, err)
	}
	return t.UTC(), nil
}

// parseNullableTime parses a sql.NullString into a *time.Time.
// Returns nil if the value is NULL or empty.
func parseNullableTime(s sql.NullString, column string) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := parseTime(s.String, column)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// nullableTimeToString converts a *time.Time to a value suitable for SQLite storage.
// Returns nil (SQL NULL) if the pointer is nil, otherwise returns the formatted string.
func nullableTimeToString(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

// nullableInt64ToValue converts a *int64 to a value suitable for SQLite storage.
func nullableInt64ToValue(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

// boolToInt converts a Go bool to an integer (0 or 1) for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// intToBool converts a SQLite integer (0 or 1) to a Go bool.
func intToBool(i int) bool {
	return i != 0
}

// placeholders returns "?, ?, ?" for n bind parameters.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
