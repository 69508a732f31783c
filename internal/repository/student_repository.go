package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/learning-center-api/internal/models"
)

// StudentRepository reads student profiles.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// FindByID returns the profile joined with its user row.
func (r *StudentRepository) FindByID(ctx context.Context, userID string) (*models.StudentDetail, error) {
	const query = `SELECT s.user_id, s.student_number, s.grade_level, s.enrollment_date, s.parent_id,
        u.full_name, u.email, u.active
        FROM students s
        JOIN users u ON u.id = s.user_id
        WHERE s.user_id = $1`
	var student models.StudentDetail
	if err := r.db.GetContext(ctx, &student, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find student: %w", err)
	}
	return &student, nil
}

// ListByParent returns the children linked to a parent account.
func (r *StudentRepository) ListByParent(ctx context.Context, parentID string) ([]models.StudentDetail, error) {
	const query = `SELECT s.user_id, s.student_number, s.grade_level, s.enrollment_date, s.parent_id,
        u.full_name, u.email, u.active
        FROM students s
        JOIN users u ON u.id = s.user_id
        WHERE s.parent_id = $1
        ORDER BY u.full_name`
	students := make([]models.StudentDetail, 0)
	if err := r.db.SelectContext(ctx, &students, query, parentID); err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}
	return students, nil
}

// StudentExists reports whether a student profile exists for studentID.
func (s *entityStore) StudentExists(ctx context.Context, studentID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM students WHERE user_id = $1)`
	var exists bool
	if err := sqlx.GetContext(ctx, s.ext, &exists, query, studentID); err != nil {
		return false, fmt.Errorf("check student: %w", err)
	}
	return exists, nil
}

func insertStudent(ctx context.Context, ext sqlx.ExtContext, student *models.Student) error {
	const query = `INSERT INTO students (user_id, student_number, grade_level, enrollment_date, parent_id)
        VALUES (:user_id, :student_number, :grade_level, :enrollment_date, :parent_id)`
	if _, err := sqlx.NamedExecContext(ctx, ext, query, student); err != nil {
		return fmt.Errorf("create student profile: %w", mapWriteError(err))
	}
	return nil
}
