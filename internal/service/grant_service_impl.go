package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/alexanderramin/timeclock/internal/clock"
	"github.com/alexanderramin/timeclock/internal/domain"
	"github.com/alexanderramin/timeclock/internal/repository"
	"github.com/google/uuid"
)

// grantService administers the grant table the default Authorization
// adapter reads.
type grantService struct {
	grants   repository.GrantRepo
	clock    clock.Clock
	observer UseCaseObserver
}

func NewGrantService(grants repository.GrantRepo, clk clock.Clock, observers ...UseCaseObserver) GrantService {
	return &grantService{grants: grants, clock: clock.OrSystem(clk), observer: useCaseObserverOrNoop(observers)}
}

func (s *grantService) Grant(ctx context.Context, workerID string, expiresAt *time.Time) (g *domain.ConcurrencyGrant, err error) {
	ctx, uc := beginUseCase(ctx, s.observer, "grant_add", map[string]any{"worker_id": workerID})
	defer func() { uc.end(ctx, err) }()

	workerID = strings.TrimSpace(workerID)
	if workerID == "" {
		return nil, fmt.Errorf("worker id is required")
	}
	now := s.clock.Now()
	if expiresAt != nil && !expiresAt.After(now) {
		return nil, fmt.Errorf("grant expiry %s is not in the future", expiresAt.Format(time.RFC3339))
	}
	g = &domain.ConcurrencyGrant{
		ID:         uuid.NewString(),
		WorkerID:   workerID,
		Capability: domain.CapabilityUnlimitedSessions,
		GrantedAt:  now,
		ExpiresAt:  expiresAt,
	}
	if err := s.grants.Create(ctx, g); err != nil {
		return nil, err
	}
	return g, nil
}

func (s *grantService) Revoke(ctx context.Context, workerID string) (n int64, err error) {
	ctx, uc := beginUseCase(ctx, s.observer, "grant_revoke", map[string]any{"worker_id": workerID})
	defer func() { uc.end(ctx, err) }()

	n, err = s.grants.Revoke(ctx, workerID, domain.CapabilityUnlimitedSessions, s.clock.Now())
	uc.set("revoked", n)
	return n, err
}

func (s *grantService) List(ctx context.Context, workerID string) ([]*domain.ConcurrencyGrant, error) {
	return s.grants.ListByWorker(ctx, workerID)
}
