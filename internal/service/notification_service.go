package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/learning-center-api/internal/models"
	"github.com/noah-isme/learning-center-api/pkg/config"
	appErrors "github.com/noah-isme/learning-center-api/pkg/errors"
	"github.com/noah-isme/learning-center-api/pkg/jobs"
)

const jobWaitlistPromoted = "waitlist_promoted"

type notificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	ListByUser(ctx context.Context, userID string, unreadOnly bool, page, size int) ([]models.Notification, int, error)
	MarkRead(ctx context.Context, id, userID string, at time.Time) error
}

// promotedPayload is what the worker needs to write the inbox row.
type promotedPayload struct {
	StudentID    string
	CourseID     string
	CourseName   string
	EnrollmentID string
}

// NotificationService tells promoted students about their new seat. The
// engine only enqueues; a worker pool writes the inbox rows so a slow
// database never holds up an admission decision.
type NotificationService struct {
	repo   notificationRepository
	queue  *jobs.Queue
	logger *zap.Logger
	now    func() time.Time
}

// NewNotificationService wires the service to its own worker queue.
func NewNotificationService(repo notificationRepository, cfg config.NotificationConfig, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &NotificationService{
		repo:   repo,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
	s.queue = jobs.NewQueue("notifications", s.Handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.Retries,
		RetryDelay: 2 * time.Second,
		Logger:     logger,
	})
	return s
}

// Start launches the delivery workers.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the workers.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// Pending reports buffered deliveries.
func (s *NotificationService) Pending() int {
	return s.queue.Len()
}

// NotifyPromotion queues an inbox message for the promoted student. A full
// or stopped queue drops the message with a warning.
func (s *NotificationService) NotifyPromotion(_ context.Context, course *models.Course, enrollment *models.Enrollment) {
	if course == nil || enrollment == nil {
		return
	}
	job := jobs.Job{
		ID:   uuid.NewString(),
		Type: jobWaitlistPromoted,
		Payload: promotedPayload{
			StudentID:    enrollment.StudentID,
			CourseID:     course.ID,
			CourseName:   course.Name,
			EnrollmentID: enrollment.ID,
		},
	}
	if err := s.queue.TryEnqueue(job); err != nil {
		s.logger.Warn("promotion notification dropped",
			zap.String("student_id", enrollment.StudentID),
			zap.String("course_id", course.ID),
			zap.Error(err),
		)
	}
}

// Handle is the worker entry point.
func (s *NotificationService) Handle(ctx context.Context, job jobs.Job) error {
	switch job.Type {
	case jobWaitlistPromoted:
		payload, ok := job.Payload.(promotedPayload)
		if !ok {
			s.logger.Error("unexpected notification payload", zap.String("job_id", job.ID))
			return nil
		}
		courseID := payload.CourseID
		notification := &models.Notification{
			UserID:   payload.StudentID,
			Kind:     models.NotificationPromoted,
			Title:    "You have a seat",
			Body:     fmt.Sprintf("You have been enrolled in %s from the waiting list.", payload.CourseName),
			CourseID: &courseID,
		}
		if err := s.repo.Create(ctx, notification); err != nil {
			return err
		}
		s.logger.Debug("promotion notification stored",
			zap.String("student_id", payload.StudentID),
			zap.String("enrollment_id", payload.EnrollmentID),
		)
		return nil
	default:
		s.logger.Warn("unknown notification job", zap.String("type", job.Type))
		return nil
	}
}

// List returns a page of the user's inbox.
func (s *NotificationService) List(ctx context.Context, userID string, unreadOnly bool, page, size int) ([]models.Notification, *models.Pagination, error) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	items, total, err := s.repo.ListByUser(ctx, userID, unreadOnly, page, size)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list notifications")
	}
	return items, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// MarkRead marks one of the user's notifications as read.
func (s *NotificationService) MarkRead(ctx context.Context, id, userID string) error {
	if !validID(id) {
		return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
	}
	if err := s.repo.MarkRead(ctx, id, userID, s.now()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
		}
		return appErrors.Internal(err, "failed to update notification")
	}
	return nil
}
