package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/learning-center-api/internal/models"
)

// ErrConflictingWrite reports a unique-constraint violation caused by a
// concurrent writer. Callers may retry the whole decision.
var ErrConflictingWrite = errors.New("conflicting concurrent write")

const uniqueViolation = "23505"

// EntityStore is the storage contract of the enrollment engine. Lookups of a
// single absent row return sql.ErrNoRows.
type EntityStore interface {
	GetCourse(ctx context.Context, courseID string) (*models.Course, error)
	UpdateCourse(ctx context.Context, course *models.Course) error
	DeleteCourse(ctx context.Context, courseID string) error
	StudentExists(ctx context.Context, studentID string) (bool, error)

	GetEnrollment(ctx context.Context, enrollmentID string) (*models.Enrollment, error)
	GetActiveEnrollment(ctx context.Context, studentID, courseID string) (*models.Enrollment, error)
	CountActiveEnrollments(ctx context.Context, courseID string) (int, error)
	CreateEnrollment(ctx context.Context, studentID, courseID string, at time.Time) (*models.Enrollment, error)
	UpdateEnrollmentStatus(ctx context.Context, enrollmentID string, status models.EnrollmentStatus) error
	ListStudentEnrollments(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error)

	GetWaitlist(ctx context.Context, courseID string) (*models.Waitlist, error)
	GetOrCreateWaitlist(ctx context.Context, courseID string) (*models.Waitlist, error)
	ListWaitingEntries(ctx context.Context, courseID string) ([]models.WaitlistEntry, error)
	GetWaitingEntry(ctx context.Context, studentID, courseID string) (*models.WaitlistEntry, error)
	GetWaitlistEntry(ctx context.Context, entryID string) (*models.WaitlistEntry, error)
	CreateWaitlistEntry(ctx context.Context, entry *models.WaitlistEntry) error
	UpdateWaitlistEntryStatus(ctx context.Context, entryID string, status models.WaitlistEntryStatus, completedAt *time.Time) error
	ListStudentWaitingEntries(ctx context.Context, studentID string) ([]models.WaitlistEntryDetail, error)
}

// Store hands out EntityStore views over the database.
type Store struct {
	db *sqlx.DB
}

// NewStore constructs a Store.
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Reader returns an EntityStore bound to the pool for read-only projections.
func (s *Store) Reader() EntityStore {
	return &entityStore{ext: s.db}
}

// WithinCourse runs fn inside one transaction. Every GetCourse issued through
// the provided EntityStore takes a row lock, so writers touching the same
// course are serialized while other courses proceed independently. The
// transaction commits only when fn returns nil.
func (s *Store) WithinCourse(ctx context.Context, courseID string, fn func(EntityStore) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin course %s transaction: %w", courseID, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(&entityStore{ext: tx, lock: true}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit course %s transaction: %w", courseID, mapWriteError(err))
	}
	return nil
}

type entityStore struct {
	ext  sqlx.ExtContext
	lock bool
}

func mapWriteError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", ErrConflictingWrite, pqErr.Constraint)
	}
	return err
}
