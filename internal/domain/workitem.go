package domain

import (
	"fmt"
	"strings"
	"time"
)

// WorkItem is the Task, Bug or QA review aggregate. The embedded Timer is the
// only session state; it is mutated through the session engine alone.
type WorkItem struct {
	ID         string
	Kind       ItemKind
	Title      string
	ParentID   string // reviewed task/bug for QA reviews
	AssigneeID string // current holder
	Timer

	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewWorkItem builds an Idle item.
func NewWorkItem(id string, kind ItemKind, title, assigneeID, parentID string, now time.Time) (*WorkItem, error) {
	w := &WorkItem{
		ID:         strings.TrimSpace(id),
		Kind:       kind,
		Title:      strings.TrimSpace(title),
		ParentID:   strings.TrimSpace(parentID),
		AssigneeID: strings.TrimSpace(assigneeID),
		Timer:      Timer{State: StateIdle},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := w.validateIdentity(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *WorkItem) validateIdentity() error {
	if w.ID == "" {
		return fmt.Errorf("work item id is required")
	}
	if !ValidItemKinds[string(w.Kind)] {
		return fmt.Errorf("invalid work item kind %q", w.Kind)
	}
	if w.Title == "" {
		return fmt.Errorf("work item title is required")
	}
	if w.Kind == KindQAReview && w.ParentID == "" {
		return fmt.Errorf("qa review requires the reviewed item id")
	}
	return nil
}

// Pool returns the concurrency pool this item draws from.
func (w *WorkItem) Pool() Pool {
	return w.Kind.Pool()
}

// HeldBy reports whether workerID is the item's current holder.
func (w *WorkItem) HeldBy(workerID string) bool {
	return w.AssigneeID != "" && w.AssigneeID == workerID
}

// Reassign changes the holder. The timer must not have an open or paused
// session, so the previous holder's slot is never silently transferred.
func (w *WorkItem) Reassign(workerID string, now time.Time) error {
	if w.State.OccupiesSlot() {
		return &TransitionError{Op: OpAssign, From: w.State}
	}
	w.AssigneeID = strings.TrimSpace(workerID)
	w.UpdatedAt = now
	return nil
}

// Touch stamps the aggregate as modified.
func (w *WorkItem) Touch(now time.Time) {
	w.UpdatedAt = now
}

// ActiveItem projects the item for limiter diagnostics.
func (w *WorkItem) ActiveItem() ActiveItem {
	return ActiveItem{WorkItemID: w.ID, Kind: w.Kind, Title: w.Title, State: w.State}
}
