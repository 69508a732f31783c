package handler

import (
	"context"
	"database/sql"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/learning-center-api/internal/dto"
	"github.com/noah-isme/learning-center-api/internal/middleware"
	"github.com/noah-isme/learning-center-api/internal/models"
	"github.com/noah-isme/learning-center-api/internal/service"
	appErrors "github.com/noah-isme/learning-center-api/pkg/errors"
	"github.com/noah-isme/learning-center-api/pkg/response"
)

type queueService interface {
	PositionOf(ctx context.Context, studentID, courseID string) (*dto.QueuePosition, error)
	QueueDetail(ctx context.Context, courseID string) (*dto.QueueDetail, error)
	AllCourseSummaries(ctx context.Context) ([]dto.CourseSummary, bool, error)
	StudentCoursesAndQueues(ctx context.Context, studentID string) (*dto.StudentCourses, error)
}

type exportService interface {
	QueueSummaries(ctx context.Context, format string) (*service.ExportFile, error)
}

type studentDirectory interface {
	FindByID(ctx context.Context, userID string) (*models.StudentDetail, error)
	ListByParent(ctx context.Context, parentID string) ([]models.StudentDetail, error)
}

// QueueHandler serves the read-only queue projections and reports.
type QueueHandler struct {
	queues   queueService
	exports  exportService
	students studentDirectory
}

// NewQueueHandler constructs QueueHandler.
func NewQueueHandler(queues queueService, exports exportService, students studentDirectory) *QueueHandler {
	return &QueueHandler{queues: queues, exports: exports, students: students}
}

// Detail godoc
// @Summary Course waiting list
// @Tags Queues
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /courses/{id}/queue [get]
func (h *QueueHandler) Detail(c *gin.Context) {
	detail, err := h.queues.QueueDetail(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Position godoc
// @Summary Student position in a course queue
// @Description Students may only look up themselves; studentId defaults to the caller.
// @Tags Queues
// @Produce json
// @Param id path string true "Course ID"
// @Param studentId query string false "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /courses/{id}/queue/position [get]
func (h *QueueHandler) Position(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	studentID := c.Query("studentId")
	if claims.Role == models.RoleStudent {
		if studentID != "" && studentID != claims.UserID {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "students can only see their own position"))
			return
		}
		studentID = claims.UserID
	}
	if studentID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "studentId is required"))
		return
	}

	position, err := h.queues.PositionOf(c.Request.Context(), studentID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, position, nil)
}

// Summary godoc
// @Summary Occupancy of every course
// @Tags Queues
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /queues/summary [get]
func (h *QueueHandler) Summary(c *gin.Context) {
	summaries, hit, err := h.queues.AllCourseSummaries(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, summaries, nil, middleware.ExtractMeta(c))
}

// Export godoc
// @Summary Download the occupancy report
// @Tags Queues
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /queues/summary/export [get]
func (h *QueueHandler) Export(c *gin.Context) {
	file, err := h.exports.QueueSummaries(c.Request.Context(), c.DefaultQuery("format", "csv"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Payload)
}

// StudentCourses godoc
// @Summary A student's seats and queue places
// @Description Students see themselves, parents see their children, staff see anyone.
// @Tags Queues
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /students/{id}/courses [get]
func (h *QueueHandler) StudentCourses(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	studentID := c.Param("id")
	if err := h.canViewStudent(c.Request.Context(), claims, studentID); err != nil {
		response.Error(c, err)
		return
	}

	courses, err := h.queues.StudentCoursesAndQueues(c.Request.Context(), studentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, courses, nil)
}

// Children godoc
// @Summary The caller's children
// @Tags Queues
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /children [get]
func (h *QueueHandler) Children(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	children, err := h.students.ListByParent(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, appErrors.Internal(err, "failed to list children"))
		return
	}
	response.JSON(c, http.StatusOK, children, nil)
}

func (h *QueueHandler) canViewStudent(ctx context.Context, claims *models.JWTClaims, studentID string) error {
	switch claims.Role {
	case models.RoleStudent:
		if studentID != claims.UserID {
			return appErrors.Clone(appErrors.ErrForbidden, "students can only see their own courses")
		}
	case models.RoleParent:
		student, err := h.students.FindByID(ctx, studentID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "Student not found.")
			}
			return appErrors.Internal(err, "failed to load student")
		}
		if student.ParentID == nil || *student.ParentID != claims.UserID {
			return appErrors.Clone(appErrors.ErrForbidden, "not your child")
		}
	}
	return nil
}
