package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/learning-center-api/internal/models"
)

func TestNextPosition(t *testing.T) {
	assert.Equal(t, 1, nextPosition(nil))
	assert.Equal(t, 5, nextPosition([]models.WaitlistEntry{{Position: 1}, {Position: 4}, {Position: 3}}))
}

func TestSelectNextPrefersPriorityThenPosition(t *testing.T) {
	waiting := []models.WaitlistEntry{
		{ID: "a", Position: 1, Status: models.WaitlistStatusWaiting},
		{ID: "b", Position: 2, Priority: 2, Status: models.WaitlistStatusWaiting},
		{ID: "c", Position: 3, Priority: 2, Status: models.WaitlistStatusWaiting},
		{ID: "d", Position: 0, Priority: 9, Status: models.WaitlistStatusCancelled},
	}
	next := selectNext(waiting)
	require.NotNil(t, next)
	assert.Equal(t, "b", next.ID)

	next.Position = 99
	assert.Equal(t, 2, waiting[1].Position)

	assert.Nil(t, selectNext(nil))
	assert.Nil(t, selectNext([]models.WaitlistEntry{{ID: "x", Status: models.WaitlistStatusCompleted}}))
}

func TestLedgerAppendAndPositionOf(t *testing.T) {
	store := newMemoryStore()
	ledger := NewWaitlistLedger()
	ctx := context.Background()
	course := store.addCourse("C", 1)
	first, second := store.addStudent("A"), store.addStudent("B")
	es := store.Reader()

	position, err := ledger.PositionOf(ctx, es, course, first)
	require.NoError(t, err)
	assert.Nil(t, position)

	entryA, err := ledger.Append(ctx, es, course, first, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, entryA.Position)
	assert.Equal(t, models.WaitlistStatusWaiting, entryA.Status)
	assert.False(t, entryA.JoinedAt.IsZero())

	entryB, err := ledger.Append(ctx, es, course, second, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, entryB.Position)
	assert.Equal(t, entryA.WaitlistID, entryB.WaitlistID)

	position, err = ledger.PositionOf(ctx, es, course, second)
	require.NoError(t, err)
	require.NotNil(t, position)
	assert.Equal(t, 2, *position)

	next, err := ledger.PeekNext(ctx, es, course)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, first, next.StudentID)

	queue, err := ledger.GetOrCreateQueue(ctx, es, course)
	require.NoError(t, err)
	assert.Equal(t, entryA.WaitlistID, queue.ID)
}

func TestLedgerRestartsAtOneWhenQueueDrains(t *testing.T) {
	store := newMemoryStore()
	ledger := NewWaitlistLedger()
	ctx := context.Background()
	course := store.addCourse("C", 1)
	es := store.Reader()

	entry, err := ledger.Append(ctx, es, course, store.addStudent("A"), 0)
	require.NoError(t, err)
	require.NoError(t, es.UpdateWaitlistEntryStatus(ctx, entry.ID, models.WaitlistStatusCompleted, nil))

	next, err := ledger.PeekNext(ctx, es, course)
	require.NoError(t, err)
	assert.Nil(t, next)

	again, err := ledger.Append(ctx, es, course, store.addStudent("B"), 0)
	require.NoError(t, err)
	assert.Equal(t, 1, again.Position)
}
