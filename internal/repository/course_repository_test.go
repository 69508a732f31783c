package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/learning-center-api/internal/models"
)

func TestCourseRepositoryListAllWithCounts(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	now := time.Now()
	cols := append(append([]string{}, courseCols...), "active_count", "waiting_count")
	rows := sqlmock.NewRows(cols).
		AddRow("c1", "Algebra I", "ALG-1", nil, nil, 2, "150.00", nil, nil, now, now, 2, 6).
		AddRow("c2", "Piano", "PNO-1", nil, nil, 10, "0", nil, nil, now, now, 3, 0)
	mock.ExpectQuery(`AS waiting_count\s+FROM courses c ORDER BY c.code`).WillReturnRows(rows)

	courses, err := repo.ListAllWithCounts(context.Background())
	require.NoError(t, err)
	require.Len(t, courses, 2)
	assert.Equal(t, 6, courses[0].WaitingCount)
	assert.Equal(t, 0, courses[0].AvailableSlots())
	assert.Equal(t, 7, courses[1].AvailableSlots())
	assert.InDelta(t, 150.0, courses[0].Fee, 0.001)
}

func TestCourseRepositoryCreateDuplicateCode(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectExec("INSERT INTO courses").WillReturnError(&pq.Error{Code: "23505", Constraint: "courses_code_key"})

	err := repo.Create(context.Background(), &models.Course{Name: "Algebra", Code: "ALG-1", Capacity: 2})
	assert.ErrorIs(t, err, ErrConflictingWrite)
}

func TestDeleteCourseInsideTransaction(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	store := NewStore(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM courses WHERE id = $1`)).WithArgs("c1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.WithinCourse(context.Background(), "c1", func(es EntityStore) error {
		return es.DeleteCourse(context.Background(), "c1")
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
