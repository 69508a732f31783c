package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var studentCols = []string{"user_id", "student_number", "grade_level", "enrollment_date", "parent_id", "full_name", "email", "active"}

func TestStudentRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery(`FROM students s\s+JOIN users u ON u.id = s.user_id\s+WHERE s.user_id = \$1`).
		WithArgs("student-1").
		WillReturnRows(sqlmock.NewRows(studentCols).AddRow("student-1", "S-001", nil, nil, "parent-1", "Kid One", "kid@example.com", true))

	student, err := repo.FindByID(context.Background(), "student-1")
	require.NoError(t, err)
	assert.Equal(t, "Kid One", student.FullName)
	require.NotNil(t, student.ParentID)
	assert.Equal(t, "parent-1", *student.ParentID)
	assert.Nil(t, student.GradeLevel)

	mock.ExpectQuery(`WHERE s.user_id = \$1`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(studentCols))

	_, err = repo.FindByID(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryListByParent(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery(`WHERE s.parent_id = \$1\s+ORDER BY u.full_name`).
		WithArgs("parent-1").
		WillReturnRows(sqlmock.NewRows(studentCols).
			AddRow("student-1", nil, nil, nil, "parent-1", "Ana", "ana@example.com", true).
			AddRow("student-2", nil, nil, nil, "parent-1", "Budi", "budi@example.com", false))

	children, err := repo.ListByParent(context.Background(), "parent-1")
	require.NoError(t, err)
	require.Len(t, children, 2)
	assert.Equal(t, "Ana", children[0].FullName)
	assert.False(t, children[1].Active)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentExists(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	store := NewStore(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS (SELECT 1 FROM students WHERE user_id = $1)`)).
		WithArgs("student-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := store.Reader().StudentExists(context.Background(), "student-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}
