package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/learning-center-api/internal/models"
)

const enrollmentColumns = `id, student_id, course_id, enrolled_at, status, updated_at`

// GetEnrollment returns an enrollment by id.
func (s *entityStore) GetEnrollment(ctx context.Context, enrollmentID string) (*models.Enrollment, error) {
	const query = `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE id = $1`
	var enrollment models.Enrollment
	if err := sqlx.GetContext(ctx, s.ext, &enrollment, query, enrollmentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get enrollment: %w", err)
	}
	return &enrollment, nil
}

// GetActiveEnrollment returns the student's active enrollment in the course.
func (s *entityStore) GetActiveEnrollment(ctx context.Context, studentID, courseID string) (*models.Enrollment, error) {
	const query = `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE student_id = $1 AND course_id = $2 AND status = $3 LIMIT 1`
	var enrollment models.Enrollment
	if err := sqlx.GetContext(ctx, s.ext, &enrollment, query, studentID, courseID, models.EnrollmentStatusActive); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get active enrollment: %w", err)
	}
	return &enrollment, nil
}

// CountActiveEnrollments counts the occupied slots of a course.
func (s *entityStore) CountActiveEnrollments(ctx context.Context, courseID string) (int, error) {
	const query = `SELECT COUNT(*) FROM enrollments WHERE course_id = $1 AND status = $2`
	var count int
	if err := sqlx.GetContext(ctx, s.ext, &count, query, courseID, models.EnrollmentStatusActive); err != nil {
		return 0, fmt.Errorf("count active enrollments: %w", err)
	}
	return count, nil
}

// CreateEnrollment inserts an ACTIVE enrollment.
func (s *entityStore) CreateEnrollment(ctx context.Context, studentID, courseID string, at time.Time) (*models.Enrollment, error) {
	enrollment := &models.Enrollment{
		ID:         uuid.NewString(),
		StudentID:  studentID,
		CourseID:   courseID,
		EnrolledAt: at,
		Status:     models.EnrollmentStatusActive,
		UpdatedAt:  at,
	}
	const query = `INSERT INTO enrollments (` + enrollmentColumns + `) VALUES (:id, :student_id, :course_id, :enrolled_at, :status, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, s.ext, query, enrollment); err != nil {
		return nil, fmt.Errorf("create enrollment: %w", mapWriteError(err))
	}
	return enrollment, nil
}

// UpdateEnrollmentStatus moves an enrollment to status.
func (s *entityStore) UpdateEnrollmentStatus(ctx context.Context, enrollmentID string, status models.EnrollmentStatus) error {
	const query = `UPDATE enrollments SET status = $2, updated_at = $3 WHERE id = $1`
	res, err := s.ext.ExecContext(ctx, query, enrollmentID, status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update enrollment status: %w", mapWriteError(err))
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListStudentEnrollments returns the student's active enrollments across courses.
func (s *entityStore) ListStudentEnrollments(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error) {
	const query = `SELECT e.id, e.student_id, e.course_id, e.enrolled_at, e.status, e.updated_at,
        c.name AS course_name, c.code AS course_code
        FROM enrollments e
        JOIN courses c ON c.id = e.course_id
        WHERE e.student_id = $1 AND e.status = $2
        ORDER BY e.enrolled_at`
	enrollments := make([]models.EnrollmentDetail, 0)
	if err := sqlx.SelectContext(ctx, s.ext, &enrollments, query, studentID, models.EnrollmentStatusActive); err != nil {
		return nil, fmt.Errorf("list student enrollments: %w", err)
	}
	return enrollments, nil
}
