package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/learning-center-api/internal/dto"
	"github.com/noah-isme/learning-center-api/internal/models"
	appErrors "github.com/noah-isme/learning-center-api/pkg/errors"
)

// needsNewClassThreshold is the waiting count at which a course is flagged
// for opening another cohort.
const needsNewClassThreshold = 5

type courseCounter interface {
	ListAllWithCounts(ctx context.Context) ([]models.CourseWithCounts, error)
}

// QueueService serves read-only projections of the course queues.
type QueueService struct {
	store    courseStore
	courses  courseCounter
	ledger   *WaitlistLedger
	cache    *CacheService
	cacheTTL time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// NewQueueService constructs QueueService.
func NewQueueService(store courseStore, courses courseCounter, ledger *WaitlistLedger, cache *CacheService, cacheTTL time.Duration, logger *zap.Logger) *QueueService {
	if ledger == nil {
		ledger = NewWaitlistLedger()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueueService{
		store:    store,
		courses:  courses,
		ledger:   ledger,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// PositionOf reports the student's place in the course queue.
func (s *QueueService) PositionOf(ctx context.Context, studentID, courseID string) (*dto.QueuePosition, error) {
	reader := s.store.Reader()
	if _, err := s.loadCourse(ctx, courseID); err != nil {
		return nil, err
	}
	result := &dto.QueuePosition{CourseID: courseID, StudentID: studentID}
	if !validID(studentID) {
		return result, nil
	}
	position, err := s.ledger.PositionOf(ctx, reader, courseID, studentID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to look up queue position")
	}
	result.Position = position
	result.Waiting = position != nil
	return result, nil
}

// QueueDetail dumps the waiting list of a course in position order.
func (s *QueueService) QueueDetail(ctx context.Context, courseID string) (*dto.QueueDetail, error) {
	course, err := s.loadCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	waiting, err := s.ledger.Snapshot(ctx, s.store.Reader(), courseID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load waiting list")
	}

	now := s.now()
	entries := make([]dto.QueueEntryView, 0, len(waiting))
	for _, entry := range waiting {
		entries = append(entries, dto.QueueEntryView{
			EntryID:     entry.ID,
			StudentID:   entry.StudentID,
			Position:    entry.Position,
			Priority:    entry.Priority,
			JoinedAt:    entry.JoinedAt,
			WaitMinutes: int64(entry.WaitDuration(now) / time.Minute),
		})
	}
	return &dto.QueueDetail{
		CourseID:      course.ID,
		CourseName:    course.Name,
		CourseCode:    course.Code,
		WaitingCount:  len(entries),
		Entries:       entries,
		NeedsNewClass: needsNewClass(len(entries)),
	}, nil
}

// AllCourseSummaries lists occupancy for every course. The second return
// value reports whether the result came from cache.
func (s *QueueService) AllCourseSummaries(ctx context.Context) ([]dto.CourseSummary, bool, error) {
	var cached []dto.CourseSummary
	if s.cache.Get(ctx, queueSummaryCacheKey, &cached) {
		return cached, true, nil
	}

	courses, err := s.courses.ListAllWithCounts(ctx)
	if err != nil {
		return nil, false, appErrors.Internal(err, "failed to load course summaries")
	}
	summaries := make([]dto.CourseSummary, 0, len(courses))
	for _, course := range courses {
		summaries = append(summaries, dto.CourseSummary{
			CourseID:       course.ID,
			CourseName:     course.Name,
			CourseCode:     course.Code,
			Capacity:       course.Capacity,
			ActiveCount:    course.ActiveCount,
			AvailableSlots: course.AvailableSlots(),
			WaitingCount:   course.WaitingCount,
			NeedsNewClass:  needsNewClass(course.WaitingCount),
		})
	}
	s.cache.Set(ctx, queueSummaryCacheKey, summaries, s.cacheTTL)
	return summaries, false, nil
}

// StudentCoursesAndQueues merges a student's active seats and waiting places.
func (s *QueueService) StudentCoursesAndQueues(ctx context.Context, studentID string) (*dto.StudentCourses, error) {
	if !validID(studentID) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, msgStudentNotFound)
	}
	reader := s.store.Reader()
	exists, err := reader.StudentExists(ctx, studentID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load student")
	}
	if !exists {
		return nil, appErrors.Clone(appErrors.ErrNotFound, msgStudentNotFound)
	}

	enrolled, err := reader.ListStudentEnrollments(ctx, studentID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load enrollments")
	}
	queued, err := reader.ListStudentWaitingEntries(ctx, studentID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load waiting entries")
	}
	return &dto.StudentCourses{StudentID: studentID, Enrolled: enrolled, Queued: queued}, nil
}

func (s *QueueService) loadCourse(ctx context.Context, courseID string) (*models.Course, error) {
	if !validID(courseID) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, msgCourseNotFound)
	}
	course, err := s.store.Reader().GetCourse(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, msgCourseNotFound)
		}
		return nil, appErrors.Internal(err, "failed to load course")
	}
	return course, nil
}

func needsNewClass(waiting int) bool {
	return waiting >= needsNewClassThreshold
}
