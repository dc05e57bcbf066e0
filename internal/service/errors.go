package service

import (
	"errors"
	"fmt"

	"github.com/alexanderramin/timeclock/internal/domain"
)

// ErrStaleScan is returned by conditional engine calls when the item left
// the state the caller scanned it in. The sweeper treats it as a no-op.
var ErrStaleScan = errors.New("work item changed since scan")

// classify maps a failed operation onto the error taxonomy: typed domain
// outcomes pass through, everything else becomes a StoreError.
func classify(op domain.Op, err error) error {
	if err == nil {
		return nil
	}
	if domain.IsDomainError(err) || errors.Is(err, ErrStaleScan) || errors.Is(err, domain.ErrStoreUnavailable) {
		return err
	}
	return &domain.StoreError{Op: op, Err: err}
}

func notAssigned(op domain.Op, workItemID, workerID string) error {
	return fmt.Errorf("%s %s by %s: %w", op, workItemID, workerID, domain.ErrNotAssigned)
}
