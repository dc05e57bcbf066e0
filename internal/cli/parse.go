package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/alexanderramin/timeclock/internal/domain"
)

// parseInstant reads an RFC 3339 instant. Empty input means "now" and
// returns nil.
func parseInstant(flag, value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return nil, fmt.Errorf("--%s must be an RFC 3339 instant such as 2025-06-15T09:30:00Z: %w", flag, err)
	}
	t = t.UTC()
	return &t, nil
}

func parseKind(value string) (domain.ItemKind, error) {
	v := strings.ToLower(strings.TrimSpace(value))
	v = strings.ReplaceAll(v, "-", "_")
	if !domain.ValidItemKinds[v] {
		return "", fmt.Errorf("invalid kind %q (want task, bug or qa_review)", value)
	}
	return domain.ItemKind(v), nil
}

func parseStates(values []string) ([]domain.SessionState, error) {
	states := make([]domain.SessionState, 0, len(values))
	for _, v := range values {
		s := domain.SessionState(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(v)), "-", "_"))
		switch s {
		case domain.StateIdle, domain.StateActive, domain.StatePaused, domain.StateFinished, domain.StateAutoClosed:
			states = append(states, s)
		default:
			return nil, fmt.Errorf("invalid state %q", v)
		}
	}
	return states, nil
}

func parsePool(value string) (domain.Pool, error) {
	switch p := domain.Pool(strings.ToLower(strings.TrimSpace(value))); p {
	case domain.PoolWork, domain.PoolReview:
		return p, nil
	default:
		return "", fmt.Errorf("invalid pool %q (want work or review)", value)
	}
}
