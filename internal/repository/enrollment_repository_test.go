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

var enrollmentCols = []string{"id", "student_id", "course_id", "enrolled_at", "status", "updated_at"}

func TestGetEnrollment(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	store := NewStore(db)
	now := time.Now()

	mock.ExpectQuery(`SELECT .* FROM enrollments WHERE id = \$1$`).
		WithArgs("enr-1").
		WillReturnRows(sqlmock.NewRows(enrollmentCols).AddRow("enr-1", "student-1", "course-1", now, "ACTIVE", now))

	enrollment, err := store.Reader().GetEnrollment(context.Background(), "enr-1")
	require.NoError(t, err)
	assert.Equal(t, "student-1", enrollment.StudentID)
	assert.Equal(t, models.EnrollmentStatusActive, enrollment.Status)

	mock.ExpectQuery(`SELECT .* FROM enrollments WHERE id = \$1$`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(enrollmentCols))

	_, err = store.Reader().GetEnrollment(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetActiveEnrollmentFiltersByStatus(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	store := NewStore(db)

	mock.ExpectQuery(`SELECT .* FROM enrollments WHERE student_id = \$1 AND course_id = \$2 AND status = \$3 LIMIT 1`).
		WithArgs("student-1", "course-1", models.EnrollmentStatusActive).
		WillReturnRows(sqlmock.NewRows(enrollmentCols))

	_, err := store.Reader().GetActiveEnrollment(context.Background(), "student-1", "course-1")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateEnrollmentInsertsActiveRow(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	store := NewStore(db)
	at := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)

	mock.ExpectExec("INSERT INTO enrollments").
		WithArgs(sqlmock.AnyArg(), "student-1", "course-1", at, models.EnrollmentStatusActive, at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	enrollment, err := store.Reader().CreateEnrollment(context.Background(), "student-1", "course-1", at)
	require.NoError(t, err)
	assert.NotEmpty(t, enrollment.ID)
	assert.Equal(t, models.EnrollmentStatusActive, enrollment.Status)
	assert.Equal(t, at, enrollment.EnrolledAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateEnrollmentStatus(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	store := NewStore(db)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE enrollments SET status = $2, updated_at = $3 WHERE id = $1`)).
		WithArgs("enr-1", models.EnrollmentStatusCompleted, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Reader().UpdateEnrollmentStatus(context.Background(), "enr-1", models.EnrollmentStatusCompleted))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListStudentEnrollments(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	store := NewStore(db)
	now := time.Now()

	cols := append(append([]string{}, enrollmentCols...), "course_name", "course_code")
	mock.ExpectQuery(`SELECT e.id, .* FROM enrollments e\s+JOIN courses c ON c.id = e.course_id\s+WHERE e.student_id = \$1 AND e.status = \$2`).
		WithArgs("student-1", models.EnrollmentStatusActive).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("enr-1", "student-1", "course-1", now, "ACTIVE", now, "Piano", "PNO-1").
			AddRow("enr-2", "student-1", "course-2", now, "ACTIVE", now, "Guitar", "GTR-1"))

	items, err := store.Reader().ListStudentEnrollments(context.Background(), "student-1")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Piano", items[0].CourseName)
	assert.Equal(t, "GTR-1", items[1].CourseCode)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListStudentEnrollmentsEmpty(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	store := NewStore(db)

	mock.ExpectQuery(`FROM enrollments e`).
		WithArgs("student-9", models.EnrollmentStatusActive).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	items, err := store.Reader().ListStudentEnrollments(context.Background(), "student-9")
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)
}
