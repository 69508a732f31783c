package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/noah-isme/learning-center-api/internal/models"
	"github.com/noah-isme/learning-center-api/internal/repository"
)

// WaitlistLedger owns position assignment and next-candidate selection for
// the per-course queues. It holds no state of its own; every call works
// against the EntityStore it is handed, which is how callers choose between a
// locked transaction and a plain read.
type WaitlistLedger struct {
	now func() time.Time
}

// NewWaitlistLedger constructs a ledger using the wall clock.
func NewWaitlistLedger() *WaitlistLedger {
	return &WaitlistLedger{now: func() time.Time { return time.Now().UTC() }}
}

// GetOrCreateQueue returns the course's queue, creating an empty one on first use.
func (l *WaitlistLedger) GetOrCreateQueue(ctx context.Context, es repository.EntityStore, courseID string) (*models.Waitlist, error) {
	return es.GetOrCreateWaitlist(ctx, courseID)
}

// Append adds studentID to the back of the course queue. Deduplication is the
// caller's job.
func (l *WaitlistLedger) Append(ctx context.Context, es repository.EntityStore, courseID, studentID string, priority int) (*models.WaitlistEntry, error) {
	queue, err := l.GetOrCreateQueue(ctx, es, courseID)
	if err != nil {
		return nil, err
	}
	waiting, err := es.ListWaitingEntries(ctx, courseID)
	if err != nil {
		return nil, err
	}

	entry := &models.WaitlistEntry{
		WaitlistID: queue.ID,
		CourseID:   courseID,
		StudentID:  studentID,
		Position:   nextPosition(waiting),
		Priority:   priority,
		Status:     models.WaitlistStatusWaiting,
		JoinedAt:   l.now(),
	}
	if err := es.CreateWaitlistEntry(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// PeekNext returns the entry that should be served next, or nil when nobody
// is waiting.
func (l *WaitlistLedger) PeekNext(ctx context.Context, es repository.EntityStore, courseID string) (*models.WaitlistEntry, error) {
	waiting, err := es.ListWaitingEntries(ctx, courseID)
	if err != nil {
		return nil, err
	}
	return selectNext(waiting), nil
}

// PositionOf returns the student's position, or nil when not waiting.
func (l *WaitlistLedger) PositionOf(ctx context.Context, es repository.EntityStore, courseID, studentID string) (*int, error) {
	entry, err := es.GetWaitingEntry(ctx, studentID, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	position := entry.Position
	return &position, nil
}

// Snapshot lists waiting entries by ascending position. Display order only;
// PeekNext may pick differently when priorities differ.
func (l *WaitlistLedger) Snapshot(ctx context.Context, es repository.EntityStore, courseID string) ([]models.WaitlistEntry, error) {
	return es.ListWaitingEntries(ctx, courseID)
}

// nextPosition is one past the highest waiting position, or 1 for an empty
// queue. Gaps left by removed entries are kept.
func nextPosition(waiting []models.WaitlistEntry) int {
	highest := 0
	for _, e := range waiting {
		if e.Position > highest {
			highest = e.Position
		}
	}
	return highest + 1
}

// selectNext picks the highest priority, breaking ties by lowest position.
func selectNext(waiting []models.WaitlistEntry) *models.WaitlistEntry {
	var best *models.WaitlistEntry
	for i := range waiting {
		candidate := &waiting[i]
		if candidate.Status != models.WaitlistStatusWaiting {
			continue
		}
		if best == nil ||
			candidate.Priority > best.Priority ||
			(candidate.Priority == best.Priority && candidate.Position < best.Position) {
			best = candidate
		}
	}
	if best == nil {
		return nil
	}
	picked := *best
	return &picked
}
