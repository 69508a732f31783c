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

const entrySelect = `SELECT e.id, e.waitlist_id, w.course_id, e.student_id, e.position, e.priority, e.status,
    e.joined_at, e.completed_at, e.notes
    FROM waitlist_entries e
    JOIN waitlists w ON w.id = e.waitlist_id`

// GetWaitlist returns the course's queue without creating it.
func (s *entityStore) GetWaitlist(ctx context.Context, courseID string) (*models.Waitlist, error) {
	const query = `SELECT id, course_id, created_at FROM waitlists WHERE course_id = $1`
	var waitlist models.Waitlist
	if err := sqlx.GetContext(ctx, s.ext, &waitlist, query, courseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get waitlist: %w", err)
	}
	return &waitlist, nil
}

// GetOrCreateWaitlist returns the course's queue, creating it on first use.
func (s *entityStore) GetOrCreateWaitlist(ctx context.Context, courseID string) (*models.Waitlist, error) {
	const insert = `INSERT INTO waitlists (id, course_id, created_at) VALUES ($1, $2, $3) ON CONFLICT (course_id) DO NOTHING`
	if _, err := s.ext.ExecContext(ctx, insert, uuid.NewString(), courseID, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("create waitlist: %w", err)
	}
	return s.GetWaitlist(ctx, courseID)
}

// ListWaitingEntries returns WAITING entries of a course ordered by position.
func (s *entityStore) ListWaitingEntries(ctx context.Context, courseID string) ([]models.WaitlistEntry, error) {
	query := entrySelect + ` WHERE w.course_id = $1 AND e.status = $2 ORDER BY e.position`
	entries := make([]models.WaitlistEntry, 0)
	if err := sqlx.SelectContext(ctx, s.ext, &entries, query, courseID, models.WaitlistStatusWaiting); err != nil {
		return nil, fmt.Errorf("list waiting entries: %w", err)
	}
	return entries, nil
}

// GetWaitingEntry returns the student's WAITING entry for a course.
func (s *entityStore) GetWaitingEntry(ctx context.Context, studentID, courseID string) (*models.WaitlistEntry, error) {
	query := entrySelect + ` WHERE w.course_id = $1 AND e.student_id = $2 AND e.status = $3 LIMIT 1`
	var entry models.WaitlistEntry
	if err := sqlx.GetContext(ctx, s.ext, &entry, query, courseID, studentID, models.WaitlistStatusWaiting); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get waiting entry: %w", err)
	}
	return &entry, nil
}

// GetWaitlistEntry returns an entry in any status.
func (s *entityStore) GetWaitlistEntry(ctx context.Context, entryID string) (*models.WaitlistEntry, error) {
	query := entrySelect + ` WHERE e.id = $1`
	var entry models.WaitlistEntry
	if err := sqlx.GetContext(ctx, s.ext, &entry, query, entryID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get waitlist entry: %w", err)
	}
	return &entry, nil
}

// CreateWaitlistEntry inserts entry. ID is generated when empty.
func (s *entityStore) CreateWaitlistEntry(ctx context.Context, entry *models.WaitlistEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Status == "" {
		entry.Status = models.WaitlistStatusWaiting
	}
	const query = `INSERT INTO waitlist_entries (id, waitlist_id, student_id, position, priority, status, joined_at, completed_at, notes)
        VALUES (:id, :waitlist_id, :student_id, :position, :priority, :status, :joined_at, :completed_at, :notes)`
	if _, err := sqlx.NamedExecContext(ctx, s.ext, query, entry); err != nil {
		return fmt.Errorf("create waitlist entry: %w", mapWriteError(err))
	}
	return nil
}

// UpdateWaitlistEntryStatus moves an entry out of (or back into) WAITING.
func (s *entityStore) UpdateWaitlistEntryStatus(ctx context.Context, entryID string, status models.WaitlistEntryStatus, completedAt *time.Time) error {
	const query = `UPDATE waitlist_entries SET status = $2, completed_at = $3 WHERE id = $1`
	res, err := s.ext.ExecContext(ctx, query, entryID, status, completedAt)
	if err != nil {
		return fmt.Errorf("update waitlist entry status: %w", mapWriteError(err))
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListStudentWaitingEntries returns every WAITING entry of a student.
func (s *entityStore) ListStudentWaitingEntries(ctx context.Context, studentID string) ([]models.WaitlistEntryDetail, error) {
	const query = `SELECT e.id, e.waitlist_id, w.course_id, e.student_id, e.position, e.priority, e.status,
        e.joined_at, e.completed_at, e.notes, u.full_name AS student_name, c.name AS course_name
        FROM waitlist_entries e
        JOIN waitlists w ON w.id = e.waitlist_id
        JOIN courses c ON c.id = w.course_id
        JOIN users u ON u.id = e.student_id
        WHERE e.student_id = $1 AND e.status = $2
        ORDER BY e.joined_at`
	entries := make([]models.WaitlistEntryDetail, 0)
	if err := sqlx.SelectContext(ctx, s.ext, &entries, query, studentID, models.WaitlistStatusWaiting); err != nil {
		return nil, fmt.Errorf("list student waiting entries: %w", err)
	}
	return entries, nil
}
