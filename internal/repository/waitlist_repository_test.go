package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/learning-center-api/internal/models"
)

var entryCols = []string{"id", "waitlist_id", "course_id", "student_id", "position", "priority", "status", "joined_at", "completed_at", "notes"}

func TestGetOrCreateWaitlistIsIdempotent(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	es := NewStore(db).Reader()

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO waitlists (id, course_id, created_at) VALUES ($1, $2, $3) ON CONFLICT (course_id) DO NOTHING`)).
		WithArgs(sqlmock.AnyArg(), "course-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, course_id, created_at FROM waitlists WHERE course_id = $1`)).
		WithArgs("course-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "course_id", "created_at"}).AddRow("wl-1", "course-1", time.Now()))

	waitlist, err := es.GetOrCreateWaitlist(context.Background(), "course-1")
	require.NoError(t, err)
	assert.Equal(t, "wl-1", waitlist.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListWaitingEntriesOrdersByPosition(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	es := NewStore(db).Reader()

	now := time.Now()
	rows := sqlmock.NewRows(entryCols).
		AddRow("e1", "wl-1", "course-1", "stu-d", 1, 0, "WAITING", now, nil, nil).
		AddRow("e3", "wl-1", "course-1", "stu-f", 3, 0, "WAITING", now, nil, nil)
	mock.ExpectQuery(`FROM waitlist_entries e\s+JOIN waitlists w ON w.id = e.waitlist_id WHERE w.course_id = \$1 AND e.status = \$2 ORDER BY e.position`).
		WithArgs("course-1", models.WaitlistStatusWaiting).
		WillReturnRows(rows)

	entries, err := es.ListWaitingEntries(context.Background(), "course-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, 1, entries[0].Position)
	assert.Equal(t, 3, entries[1].Position)
	assert.Equal(t, "course-1", entries[1].CourseID)
}

func TestGetWaitingEntryMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	es := NewStore(db).Reader()

	mock.ExpectQuery(`WHERE w.course_id = \$1 AND e.student_id = \$2 AND e.status = \$3`).
		WithArgs("course-1", "stu-x", models.WaitlistStatusWaiting).
		WillReturnRows(sqlmock.NewRows(entryCols))

	_, err := es.GetWaitingEntry(context.Background(), "stu-x", "course-1")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestUpdateWaitlistEntryStatus(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	es := NewStore(db).Reader()

	done := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE waitlist_entries SET status = $2, completed_at = $3 WHERE id = $1`)).
		WithArgs("e1", models.WaitlistStatusCompleted, &done).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, es.UpdateWaitlistEntryStatus(context.Background(), "e1", models.WaitlistStatusCompleted, &done))
	assert.NoError(t, mock.ExpectationsWereMet())
}
