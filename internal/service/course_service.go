package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/learning-center-api/internal/dto"
	"github.com/noah-isme/learning-center-api/internal/models"
	"github.com/noah-isme/learning-center-api/internal/repository"
	appErrors "github.com/noah-isme/learning-center-api/pkg/errors"
)

type courseRepository interface {
	Create(ctx context.Context, course *models.Course) error
	FindByID(ctx context.Context, id string) (*models.CourseWithCounts, error)
	ExistsByCode(ctx context.Context, code, excludeID string) (bool, error)
	List(ctx context.Context, filter models.CourseFilter) ([]models.CourseWithCounts, int, error)
}

// CourseService manages the course catalogue. Capacity changes go through
// the enrollment engine's course transaction so a raised capacity is
// backfilled from the waiting list immediately.
type CourseService struct {
	repo      courseRepository
	store     courseStore
	engine    *EnrollmentService
	audit     auditTrail
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCourseService constructs CourseService.
func NewCourseService(repo courseRepository, store courseStore, engine *EnrollmentService, audit auditWriter, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseService{
		repo:      repo,
		store:     store,
		engine:    engine,
		audit:     auditTrail{repo: audit, logger: logger},
		cache:     cache,
		validator: validate,
		logger:    logger,
	}
}

// List returns courses with pagination metadata.
func (s *CourseService) List(ctx context.Context, filter models.CourseFilter) ([]models.CourseWithCounts, *models.Pagination, error) {
	courses, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list courses")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return courses, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one course with its live counts.
func (s *CourseService) Get(ctx context.Context, id string) (*models.CourseWithCounts, error) {
	if !validID(id) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, msgCourseNotFound)
	}
	course, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, msgCourseNotFound)
		}
		return nil, appErrors.Internal(err, "failed to load course")
	}
	return course, nil
}

// Create adds a course to the catalogue.
func (s *CourseService) Create(ctx context.Context, req dto.CreateCourseRequest) (*models.CourseWithCounts, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	course := &models.Course{
		Name:        strings.TrimSpace(req.Name),
		Code:        strings.ToUpper(strings.TrimSpace(req.Code)),
		Description: req.Description,
		TeacherID:   req.TeacherID,
		Capacity:    req.Capacity,
		Fee:         req.Fee,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
	}
	if err := validateCourseDates(course); err != nil {
		return nil, err
	}
	exists, err := s.repo.ExistsByCode(ctx, course.Code, "")
	if err != nil {
		return nil, appErrors.Internal(err, "failed to validate course code")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "course code already exists")
	}
	if err := s.repo.Create(ctx, course); err != nil {
		if errors.Is(err, repository.ErrConflictingWrite) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "course code already exists")
		}
		return nil, appErrors.Internal(err, "failed to create course")
	}

	s.audit.record(ctx, models.AuditActionCourseCreate, models.AuditResourceCourse, course.ID, course)
	s.cache.Invalidate(ctx, queueCachePattern)
	return &models.CourseWithCounts{Course: *course}, nil
}

// Update patches a course. Lowering capacity below the active count is
// refused; raising it promotes waiting students into the new seats.
func (s *CourseService) Update(ctx context.Context, id string, req dto.UpdateCourseRequest) (*dto.CourseUpdateResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	if !validID(id) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, msgCourseNotFound)
	}

	var (
		updated    *models.Course
		promotions []promotion
	)
	err := s.engine.decide(ctx, "course_update", id, func(es repository.EntityStore) error {
		updated, promotions = nil, nil
		course, err := es.GetCourse(ctx, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, msgCourseNotFound)
			}
			return err
		}
		applyCoursePatch(course, req)
		if err := validateCourseDates(course); err != nil {
			return err
		}

		active, err := es.CountActiveEnrollments(ctx, id)
		if err != nil {
			return err
		}
		if course.Capacity < active {
			return appErrors.Clone(appErrors.ErrPreconditionFailed, fmt.Sprintf("capacity %d is below the %d active enrollments", course.Capacity, active))
		}
		if req.Code != nil {
			exists, err := s.repo.ExistsByCode(ctx, course.Code, id)
			if err != nil {
				return err
			}
			if exists {
				return appErrors.Clone(appErrors.ErrConflict, "course code already exists")
			}
		}
		if err := es.UpdateCourse(ctx, course); err != nil {
			return err
		}
		promoted, err := s.engine.backfill(ctx, es, course)
		if err != nil {
			return err
		}
		updated, promotions = course, promoted
		return nil
	})
	if err != nil {
		return nil, engineError(err, "failed to update course")
	}

	s.audit.record(ctx, models.AuditActionCourseUpdate, models.AuditResourceCourse, id, updated)
	s.engine.publishPromotions(ctx, promotions)
	s.cache.Invalidate(ctx, queueCachePattern)

	withCounts, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &dto.CourseUpdateResult{Course: withCounts, Promoted: len(promotions)}, nil
}

// Delete removes a course that has no active enrollments and nobody waiting.
func (s *CourseService) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return appErrors.Clone(appErrors.ErrNotFound, msgCourseNotFound)
	}
	err := s.store.WithinCourse(ctx, id, func(es repository.EntityStore) error {
		if _, err := es.GetCourse(ctx, id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, msgCourseNotFound)
			}
			return err
		}
		active, err := es.CountActiveEnrollments(ctx, id)
		if err != nil {
			return err
		}
		waiting, err := es.ListWaitingEntries(ctx, id)
		if err != nil {
			return err
		}
		if active > 0 || len(waiting) > 0 {
			return appErrors.Clone(appErrors.ErrConflict, "course still has active enrollments or waiting students")
		}
		if err := es.DeleteCourse(ctx, id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, msgCourseNotFound)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return engineError(err, "failed to delete course")
	}

	s.audit.record(ctx, models.AuditActionCourseDelete, models.AuditResourceCourse, id, nil)
	s.cache.Invalidate(ctx, queueCachePattern)
	return nil
}

func applyCoursePatch(course *models.Course, req dto.UpdateCourseRequest) {
	if req.Name != nil {
		course.Name = strings.TrimSpace(*req.Name)
	}
	if req.Code != nil {
		course.Code = strings.ToUpper(strings.TrimSpace(*req.Code))
	}
	if req.Description != nil {
		course.Description = req.Description
	}
	if req.TeacherID != nil {
		course.TeacherID = req.TeacherID
	}
	if req.Capacity != nil {
		course.Capacity = *req.Capacity
	}
	if req.Fee != nil {
		course.Fee = *req.Fee
	}
	if req.StartDate != nil {
		course.StartDate = req.StartDate
	}
	if req.EndDate != nil {
		course.EndDate = req.EndDate
	}
}

func validateCourseDates(course *models.Course) error {
	if course.StartDate != nil && course.EndDate != nil && course.EndDate.Before(*course.StartDate) {
		return appErrors.Clone(appErrors.ErrValidation, "end date must not be before start date")
	}
	return nil
}
