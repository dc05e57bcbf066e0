package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/alexanderramin/timeclock/internal/clock"
	"github.com/alexanderramin/timeclock/internal/db"
	"github.com/alexanderramin/timeclock/internal/domain"
	"github.com/alexanderramin/timeclock/internal/repository"
	"github.com/google/uuid"
)

var errReviewOfReview = errors.New("a qa review cannot review another review")

// itemService is the thin stand-in for the product's work item CRUD and its
// Assignment component.
type itemService struct {
	items    repository.WorkItemRepo
	uow      db.UnitOfWork
	clock    clock.Clock
	observer UseCaseObserver
}

func NewItemService(items repository.WorkItemRepo, uow db.UnitOfWork, clk clock.Clock, observers ...UseCaseObserver) ItemService {
	return &itemService{
		items:    items,
		uow:      uow,
		clock:    clock.OrSystem(clk),
		observer: useCaseObserverOrNoop(observers),
	}
}

func (s *itemService) Register(ctx context.Context, req RegisterRequest) (item *domain.WorkItem, err error) {
	ctx, uc := beginUseCase(ctx, s.observer, "item_register", map[string]any{
		"kind":        string(req.Kind),
		"assignee_id": req.AssigneeID,
	})
	defer func() { uc.end(ctx, err) }()

	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}
	item, err = domain.NewWorkItem(id, req.Kind, req.Title, req.AssigneeID, req.ParentID, s.clock.Now())
	if err != nil {
		return nil, err
	}
	uc.set("work_item_id", item.ID)

	err = s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		items := repository.NewSQLiteWorkItemRepo(tx)
		if item.ParentID != "" {
			parent, err := items.GetByID(ctx, item.ParentID)
			if err != nil {
				return fmt.Errorf("reviewed item %s: %w", item.ParentID, err)
			}
			if parent.Kind == domain.KindQAReview {
				return fmt.Errorf("qa review %s: %w", item.ID, errReviewOfReview)
			}
		}
		return items.Create(ctx, item)
	})
	if errors.Is(err, errReviewOfReview) {
		return nil, err
	}
	if err != nil {
		return nil, classify(domain.OpRegister, err)
	}
	return item, nil
}

// Assign changes the holder. An item occupying a slot must be paused and
// finished (or force-finished) first.
func (s *itemService) Assign(ctx context.Context, workItemID, workerID string) (item *domain.WorkItem, err error) {
	ctx, uc := beginUseCase(ctx, s.observer, "item_assign", map[string]any{
		"work_item_id": workItemID,
		"worker_id":    workerID,
	})
	defer func() { uc.end(ctx, err) }()

	now := s.clock.Now()
	err = s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		items := repository.NewSQLiteWorkItemRepo(tx)
		w, err := items.GetByID(ctx, workItemID)
		if err != nil {
			return err
		}
		if err := w.Reassign(workerID, now); err != nil {
			return err
		}
		if err := items.Update(ctx, w); err != nil {
			return err
		}
		item = w
		return nil
	})
	if err != nil {
		return nil, classify(domain.OpAssign, err)
	}
	return item, nil
}

func (s *itemService) List(ctx context.Context, assigneeID string, states []domain.SessionState) ([]*domain.WorkItem, error) {
	return s.items.List(ctx, repository.WorkItemFilter{AssigneeID: assigneeID, States: states})
}
