// Package logging builds the process slog.Logger on top of a
// charmbracelet/log handler.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	charmLog "github.com/charmbracelet/log"
)

const prefix = "timeclock"

// New returns a logger writing to w at level ("debug", "info", "warn",
// "error") in format ("text" or "json").
func New(w io.Writer, level, format string) (*slog.Logger, error) {
	lvl, err := charmLog.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse logging level %q: %w", level, err)
	}
	var formatter charmLog.Formatter
	switch format {
	case "", "text":
		formatter = charmLog.TextFormatter
	case "json":
		formatter = charmLog.JSONFormatter
	default:
		return nil, fmt.Errorf("unknown logging format %q", format)
	}
	if w == nil {
		w = io.Discard
	}

	handler := charmLog.NewWithOptions(w, charmLog.Options{
		Level:           lvl,
		Prefix:          prefix,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Formatter:       formatter,
	})
	return slog.New(handler), nil
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
