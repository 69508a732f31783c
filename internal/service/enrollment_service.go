package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/learning-center-api/internal/dto"
	"github.com/noah-isme/learning-center-api/internal/models"
	"github.com/noah-isme/learning-center-api/internal/repository"
	"github.com/noah-isme/learning-center-api/pkg/config"
	appErrors "github.com/noah-isme/learning-center-api/pkg/errors"
)

// errCapacityRace is returned from inside a course transaction when a write
// left the course above capacity. The transaction is rolled back and the
// decision is taken again from scratch.
var errCapacityRace = errors.New("course capacity exceeded by concurrent writer")

const (
	msgStudentNotFound    = "Student not found."
	msgCourseNotFound     = "Course not found."
	msgAlreadyEnrolled    = "Student is already enrolled in this course."
	msgAlreadyQueued      = "Student is already in the waiting list at position %d."
	msgEnrolled           = "Student enrolled successfully."
	msgQueued             = "Course is full. Student added to waiting list at position %d."
	msgEnrollmentNotFound = "Enrollment not found."
	msgNotActive          = "Enrollment is not active."
	msgDropped            = "Enrollment dropped successfully."
	msgDroppedPromoted    = "Enrollment dropped successfully. Next student in queue has been notified."
	msgCompleted          = "Enrollment marked as completed."
	msgEntryNotFound      = "Waitlist entry not found."
	msgNotWaiting         = "Waitlist entry is not waiting."
	msgWithdrawn          = "Student removed from the waiting list."
)

type courseStore interface {
	Reader() repository.EntityStore
	WithinCourse(ctx context.Context, courseID string, fn func(repository.EntityStore) error) error
}

type promotionNotifier interface {
	NotifyPromotion(ctx context.Context, course *models.Course, enrollment *models.Enrollment)
}

// promotion is a committed-to-be waitlist promotion awaiting its side effects.
type promotion struct {
	course     *models.Course
	enrollment *models.Enrollment
	entry      *models.WaitlistEntry
}

// EnrollmentService is the single authority on admission, drop and promotion.
// Every state change for a course runs inside Store.WithinCourse so capacity
// reads and the writes that depend on them are serialized per course. Audit
// rows, cache invalidation, metrics and notifications are emitted only after
// the transaction commits.
type EnrollmentService struct {
	store     courseStore
	ledger    *WaitlistLedger
	audit     auditTrail
	cache     *CacheService
	metrics   *MetricsService
	notifier  promotionNotifier
	cfg       config.EnrollmentConfig
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(store courseStore, ledger *WaitlistLedger, audit auditWriter, cache *CacheService, metrics *MetricsService, notifier promotionNotifier, cfg config.EnrollmentConfig, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if ledger == nil {
		ledger = NewWaitlistLedger()
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxDecisionAttempts < 1 {
		cfg.MaxDecisionAttempts = 1
	}
	return &EnrollmentService{
		store:     store,
		ledger:    ledger,
		audit:     auditTrail{repo: audit, logger: logger},
		cache:     cache,
		metrics:   metrics,
		notifier:  notifier,
		cfg:       cfg,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Enroll admits the student, queues them when the course is full, or rejects
// the request. Only storage failures are returned as errors.
func (s *EnrollmentService) Enroll(ctx context.Context, req dto.EnrollRequest) (*dto.EnrollResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}

	var result *dto.EnrollResult
	err := s.decide(ctx, "enroll", req.CourseID, func(es repository.EntityStore) error {
		result = nil
		decided, err := s.enrollOnce(ctx, es, req.StudentID, req.CourseID)
		if err != nil {
			return err
		}
		result = decided
		return nil
	})
	if err != nil {
		s.logger.Error("enroll failed", zap.String("student_id", req.StudentID), zap.String("course_id", req.CourseID), zap.Error(err))
		return nil, appErrors.Internal(err, "failed to process enrollment")
	}

	s.metrics.RecordEnrollmentOutcome(string(result.Outcome))
	switch result.Outcome {
	case dto.OutcomeAdmitted:
		s.audit.record(ctx, models.AuditActionEnroll, models.AuditResourceEnrollment, result.Enrollment.ID, result.Enrollment)
		s.cache.Invalidate(ctx, queueCachePattern)
	case dto.OutcomeQueued:
		s.audit.record(ctx, models.AuditActionQueue, models.AuditResourceWaitlistEntry, result.Entry.ID, result.Entry)
		s.cache.Invalidate(ctx, queueCachePattern)
	}
	return result, nil
}

func (s *EnrollmentService) enrollOnce(ctx context.Context, es repository.EntityStore, studentID, courseID string) (*dto.EnrollResult, error) {
	if !validID(studentID) {
		return rejected(dto.ReasonStudentNotFound, msgStudentNotFound, nil), nil
	}
	exists, err := es.StudentExists(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return rejected(dto.ReasonStudentNotFound, msgStudentNotFound, nil), nil
	}

	if !validID(courseID) {
		return rejected(dto.ReasonCourseNotFound, msgCourseNotFound, nil), nil
	}
	course, err := es.GetCourse(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rejected(dto.ReasonCourseNotFound, msgCourseNotFound, nil), nil
		}
		return nil, err
	}

	if _, err := es.GetActiveEnrollment(ctx, studentID, courseID); err == nil {
		return rejected(dto.ReasonAlreadyEnrolled, msgAlreadyEnrolled, nil), nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	position, err := s.ledger.PositionOf(ctx, es, courseID, studentID)
	if err != nil {
		return nil, err
	}
	if position != nil {
		return rejected(dto.ReasonAlreadyQueued, fmt.Sprintf(msgAlreadyQueued, *position), position), nil
	}

	active, err := es.CountActiveEnrollments(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if active < course.Capacity {
		enrollment, err := es.CreateEnrollment(ctx, studentID, courseID, s.now())
		if err != nil {
			return nil, err
		}
		if err := checkCapacity(ctx, es, course); err != nil {
			return nil, err
		}
		return &dto.EnrollResult{Outcome: dto.OutcomeAdmitted, Message: msgEnrolled, Enrollment: enrollment}, nil
	}

	entry, err := s.ledger.Append(ctx, es, courseID, studentID, 0)
	if err != nil {
		return nil, err
	}
	assigned := entry.Position
	return &dto.EnrollResult{
		Outcome:  dto.OutcomeQueued,
		Message:  fmt.Sprintf(msgQueued, assigned),
		Position: &assigned,
		Entry:    entry,
	}, nil
}

// Drop marks an active enrollment dropped and hands the freed seat to the
// head of the course waitlist in the same transaction.
func (s *EnrollmentService) Drop(ctx context.Context, enrollmentID string) (*dto.DropResult, error) {
	notFound := &dto.DropResult{Reason: dto.ReasonNotFound, Message: msgEnrollmentNotFound}
	if !validID(enrollmentID) {
		return notFound, nil
	}
	current, err := s.store.Reader().GetEnrollment(ctx, enrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return notFound, nil
		}
		return nil, appErrors.Internal(err, "failed to load enrollment")
	}

	var (
		result   *dto.DropResult
		promoted *promotion
	)
	err = s.decide(ctx, "drop", current.CourseID, func(es repository.EntityStore) error {
		result, promoted = nil, nil
		course, err := es.GetCourse(ctx, current.CourseID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				result = notFound
				return nil
			}
			return err
		}
		enrollment, err := es.GetEnrollment(ctx, enrollmentID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				result = notFound
				return nil
			}
			return err
		}
		if enrollment.Status != models.EnrollmentStatusActive {
			result = &dto.DropResult{Reason: dto.ReasonNotActive, Message: msgNotActive}
			return nil
		}
		if err := es.UpdateEnrollmentStatus(ctx, enrollmentID, models.EnrollmentStatusDropped); err != nil {
			return err
		}
		next, err := s.promoteNext(ctx, es, course)
		if err != nil {
			return err
		}
		promoted = next
		result = &dto.DropResult{Success: true, Message: msgDropped}
		return nil
	})
	if err != nil {
		s.logger.Error("drop failed", zap.String("enrollment_id", enrollmentID), zap.Error(err))
		return nil, appErrors.Internal(err, "failed to drop enrollment")
	}
	if !result.Success {
		return result, nil
	}

	s.audit.record(ctx, models.AuditActionDrop, models.AuditResourceEnrollment, enrollmentID, map[string]interface{}{
		"course_id":  current.CourseID,
		"student_id": current.StudentID,
		"status":     models.EnrollmentStatusDropped,
	})
	if promoted != nil {
		result.Message = msgDroppedPromoted
		result.Promoted = promoted.enrollment
		s.publishPromotions(ctx, []promotion{*promoted})
	}
	s.cache.Invalidate(ctx, queueCachePattern)
	return result, nil
}

// Complete marks an active enrollment completed. The seat is not reassigned.
func (s *EnrollmentService) Complete(ctx context.Context, enrollmentID string) (*dto.CompleteResult, error) {
	notFound := &dto.CompleteResult{Reason: dto.ReasonNotFound, Message: msgEnrollmentNotFound}
	if !validID(enrollmentID) {
		return notFound, nil
	}
	current, err := s.store.Reader().GetEnrollment(ctx, enrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return notFound, nil
		}
		return nil, appErrors.Internal(err, "failed to load enrollment")
	}

	var result *dto.CompleteResult
	err = s.store.WithinCourse(ctx, current.CourseID, func(es repository.EntityStore) error {
		if _, err := es.GetCourse(ctx, current.CourseID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				result = notFound
				return nil
			}
			return err
		}
		enrollment, err := es.GetEnrollment(ctx, enrollmentID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				result = notFound
				return nil
			}
			return err
		}
		if enrollment.Status != models.EnrollmentStatusActive {
			result = &dto.CompleteResult{Reason: dto.ReasonNotActive, Message: msgNotActive}
			return nil
		}
		if err := es.UpdateEnrollmentStatus(ctx, enrollmentID, models.EnrollmentStatusCompleted); err != nil {
			return err
		}
		result = &dto.CompleteResult{Success: true, Message: msgCompleted}
		return nil
	})
	if err != nil {
		return nil, appErrors.Internal(err, "failed to complete enrollment")
	}
	if result.Success {
		s.audit.record(ctx, models.AuditActionComplete, models.AuditResourceEnrollment, enrollmentID, map[string]interface{}{
			"course_id": current.CourseID,
			"status":    models.EnrollmentStatusCompleted,
		})
		s.cache.Invalidate(ctx, queueCachePattern)
	}
	return result, nil
}

// Withdraw cancels a waiting entry. Other entries keep their positions.
func (s *EnrollmentService) Withdraw(ctx context.Context, entryID string) (*dto.WithdrawResult, error) {
	notFound := &dto.WithdrawResult{Reason: dto.ReasonNotFound, Message: msgEntryNotFound}
	if !validID(entryID) {
		return notFound, nil
	}
	current, err := s.store.Reader().GetWaitlistEntry(ctx, entryID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return notFound, nil
		}
		return nil, appErrors.Internal(err, "failed to load waitlist entry")
	}

	var result *dto.WithdrawResult
	err = s.store.WithinCourse(ctx, current.CourseID, func(es repository.EntityStore) error {
		if _, err := es.GetCourse(ctx, current.CourseID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				result = notFound
				return nil
			}
			return err
		}
		entry, err := es.GetWaitlistEntry(ctx, entryID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				result = notFound
				return nil
			}
			return err
		}
		if entry.Status != models.WaitlistStatusWaiting {
			result = &dto.WithdrawResult{Reason: dto.ReasonNotWaiting, Message: msgNotWaiting}
			return nil
		}
		now := s.now()
		if err := es.UpdateWaitlistEntryStatus(ctx, entryID, models.WaitlistStatusCancelled, &now); err != nil {
			return err
		}
		result = &dto.WithdrawResult{Success: true, Message: msgWithdrawn}
		return nil
	})
	if err != nil {
		return nil, appErrors.Internal(err, "failed to withdraw waitlist entry")
	}
	if result.Success {
		s.audit.record(ctx, models.AuditActionWithdraw, models.AuditResourceWaitlistEntry, entryID, map[string]interface{}{
			"course_id":  current.CourseID,
			"student_id": current.StudentID,
			"position":   current.Position,
		})
		s.cache.Invalidate(ctx, queueCachePattern)
	}
	return result, nil
}

// Promote runs one promotion cascade for the course and reports whether a
// waiting student was admitted.
func (s *EnrollmentService) Promote(ctx context.Context, courseID string) (bool, error) {
	promotions, err := s.promoteUpTo(ctx, "promote", courseID, 1)
	if err != nil {
		return false, err
	}
	return len(promotions) > 0, nil
}

// FillOpenSlots promotes waiting students until the course is full or its
// waitlist is empty, returning the number promoted.
func (s *EnrollmentService) FillOpenSlots(ctx context.Context, courseID string) (int, error) {
	promotions, err := s.promoteUpTo(ctx, "fill", courseID, 0)
	if err != nil {
		return 0, err
	}
	return len(promotions), nil
}

// promoteUpTo promotes at most limit students, or as many as fit when limit
// is zero.
func (s *EnrollmentService) promoteUpTo(ctx context.Context, op, courseID string, limit int) ([]promotion, error) {
	if !validID(courseID) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, msgCourseNotFound)
	}
	var promotions []promotion
	err := s.decide(ctx, op, courseID, func(es repository.EntityStore) error {
		promotions = nil
		course, err := es.GetCourse(ctx, courseID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, msgCourseNotFound)
			}
			return err
		}
		if limit == 0 {
			promotions, err = s.backfill(ctx, es, course)
			return err
		}
		for len(promotions) < limit {
			next, err := s.promoteNext(ctx, es, course)
			if err != nil {
				return err
			}
			if next == nil {
				break
			}
			promotions = append(promotions, *next)
		}
		return nil
	})
	if err != nil {
		return nil, engineError(err, "failed to promote from waitlist")
	}
	if len(promotions) > 0 {
		s.publishPromotions(ctx, promotions)
		s.cache.Invalidate(ctx, queueCachePattern)
	}
	return promotions, nil
}

// backfill promotes until capacity is reached or nobody is waiting. The
// course row must already be locked through es.
func (s *EnrollmentService) backfill(ctx context.Context, es repository.EntityStore, course *models.Course) ([]promotion, error) {
	var promotions []promotion
	for {
		next, err := s.promoteNext(ctx, es, course)
		if err != nil {
			return nil, err
		}
		if next == nil {
			return promotions, nil
		}
		promotions = append(promotions, *next)
	}
}

// promoteNext admits the waitlist head when a seat is free. It returns nil
// when the course is full or nobody is waiting.
func (s *EnrollmentService) promoteNext(ctx context.Context, es repository.EntityStore, course *models.Course) (*promotion, error) {
	for {
		active, err := es.CountActiveEnrollments(ctx, course.ID)
		if err != nil {
			return nil, err
		}
		if active >= course.Capacity {
			return nil, nil
		}
		next, err := s.ledger.PeekNext(ctx, es, course.ID)
		if err != nil {
			return nil, err
		}
		if next == nil {
			return nil, nil
		}

		now := s.now()
		if _, err := es.GetActiveEnrollment(ctx, next.StudentID, course.ID); err == nil {
			// Stale entry for a student who already holds a seat.
			if err := es.UpdateWaitlistEntryStatus(ctx, next.ID, models.WaitlistStatusCancelled, &now); err != nil {
				return nil, err
			}
			continue
		} else if !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}

		enrollment, err := es.CreateEnrollment(ctx, next.StudentID, course.ID, now)
		if err != nil {
			return nil, err
		}
		if err := es.UpdateWaitlistEntryStatus(ctx, next.ID, models.WaitlistStatusCompleted, &now); err != nil {
			return nil, err
		}
		if err := checkCapacity(ctx, es, course); err != nil {
			return nil, err
		}
		next.Status = models.WaitlistStatusCompleted
		next.CompletedAt = &now
		return &promotion{course: course, enrollment: enrollment, entry: next}, nil
	}
}

func (s *EnrollmentService) publishPromotions(ctx context.Context, promotions []promotion) {
	if len(promotions) == 0 {
		return
	}
	s.metrics.RecordPromotions(len(promotions))
	for _, p := range promotions {
		s.logger.Info("waitlist entry promoted",
			zap.String("course_id", p.course.ID),
			zap.String("student_id", p.enrollment.StudentID),
			zap.String("enrollment_id", p.enrollment.ID),
			zap.Int("position", p.entry.Position),
		)
		s.audit.record(ctx, models.AuditActionPromote, models.AuditResourceEnrollment, p.enrollment.ID, map[string]interface{}{
			"course_id":  p.course.ID,
			"student_id": p.enrollment.StudentID,
			"entry_id":   p.entry.ID,
			"position":   p.entry.Position,
		})
		if s.notifier != nil {
			s.notifier.NotifyPromotion(ctx, p.course, p.enrollment)
		}
	}
}

// GetEnrollment loads an enrollment, mapping absence to NotFound.
func (s *EnrollmentService) GetEnrollment(ctx context.Context, enrollmentID string) (*models.Enrollment, error) {
	if !validID(enrollmentID) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, msgEnrollmentNotFound)
	}
	enrollment, err := s.store.Reader().GetEnrollment(ctx, enrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, msgEnrollmentNotFound)
		}
		return nil, appErrors.Internal(err, "failed to load enrollment")
	}
	return enrollment, nil
}

// GetWaitlistEntry loads a waitlist entry, mapping absence to NotFound.
func (s *EnrollmentService) GetWaitlistEntry(ctx context.Context, entryID string) (*models.WaitlistEntry, error) {
	if !validID(entryID) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, msgEntryNotFound)
	}
	entry, err := s.store.Reader().GetWaitlistEntry(ctx, entryID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, msgEntryNotFound)
		}
		return nil, appErrors.Internal(err, "failed to load waitlist entry")
	}
	return entry, nil
}

// decide runs fn in a course transaction, retrying from scratch when the
// attempt lost a capacity race or hit a concurrent unique write.
func (s *EnrollmentService) decide(ctx context.Context, op, courseID string, fn func(repository.EntityStore) error) error {
	var err error
	for attempt := 1; attempt <= s.cfg.MaxDecisionAttempts; attempt++ {
		err = s.store.WithinCourse(ctx, courseID, fn)
		if err == nil || !retryable(err) {
			return err
		}
		if attempt < s.cfg.MaxDecisionAttempts {
			s.metrics.RecordDecisionRetry(op)
			s.logger.Warn("enrollment decision lost a race, retrying",
				zap.String("operation", op),
				zap.String("course_id", courseID),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
		}
	}
	return err
}

func retryable(err error) bool {
	return errors.Is(err, errCapacityRace) || errors.Is(err, repository.ErrConflictingWrite)
}

func checkCapacity(ctx context.Context, es repository.EntityStore, course *models.Course) error {
	active, err := es.CountActiveEnrollments(ctx, course.ID)
	if err != nil {
		return err
	}
	if active > course.Capacity {
		return fmt.Errorf("%w: course %s holds %d of %d", errCapacityRace, course.ID, active, course.Capacity)
	}
	return nil
}

func rejected(reason dto.Reason, message string, position *int) *dto.EnrollResult {
	return &dto.EnrollResult{Outcome: dto.OutcomeRejected, Reason: reason, Message: message, Position: position}
}

// validID reports whether id can name a stored row. Malformed ids are
// treated as absent.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// engineError keeps typed errors and wraps everything else as internal.
func engineError(err error, message string) error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return appErrors.Internal(err, message)
}
