package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/learning-center-api/internal/dto"
	"github.com/noah-isme/learning-center-api/internal/models"
	appErrors "github.com/noah-isme/learning-center-api/pkg/errors"
	"github.com/noah-isme/learning-center-api/pkg/response"
)

type enrollmentEngine interface {
	Enroll(ctx context.Context, req dto.EnrollRequest) (*dto.EnrollResult, error)
	Drop(ctx context.Context, enrollmentID string) (*dto.DropResult, error)
	Complete(ctx context.Context, enrollmentID string) (*dto.CompleteResult, error)
	Withdraw(ctx context.Context, entryID string) (*dto.WithdrawResult, error)
	GetEnrollment(ctx context.Context, enrollmentID string) (*models.Enrollment, error)
	GetWaitlistEntry(ctx context.Context, entryID string) (*models.WaitlistEntry, error)
}

// EnrollmentHandler exposes the admission engine. Students act only on their
// own seats and queue entries; managers act on anyone's.
type EnrollmentHandler struct {
	engine enrollmentEngine
}

// NewEnrollmentHandler constructs EnrollmentHandler.
func NewEnrollmentHandler(engine enrollmentEngine) *EnrollmentHandler {
	return &EnrollmentHandler{engine: engine}
}

// Enroll godoc
// @Summary Enroll a student
// @Description Admits the student (201), queues them when the course is full (202), or rejects the request (404 for an unknown student or course, 409 when already enrolled or queued).
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param payload body dto.EnrollRequest true "Enrollment request"
// @Success 201 {object} response.Envelope
// @Success 202 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /enrollments [post]
func (h *EnrollmentHandler) Enroll(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req dto.EnrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid enrollment payload"))
		return
	}
	if claims.Role == models.RoleStudent {
		if req.StudentID != "" && req.StudentID != claims.UserID {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "students can only enroll themselves"))
			return
		}
		req.StudentID = claims.UserID
	}
	if req.StudentID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "studentId is required"))
		return
	}

	result, err := h.engine.Enroll(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, enrollStatus(result), result, nil)
}

// Drop godoc
// @Summary Drop an enrollment
// @Description Frees the seat; the next waiting student is promoted into it.
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /enrollments/{id}/drop [post]
func (h *EnrollmentHandler) Drop(c *gin.Context) {
	if !h.ownsEnrollment(c) {
		return
	}
	result, err := h.engine.Drop(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, reasonStatus(result.Success, result.Reason), result, nil)
}

// Complete godoc
// @Summary Complete an enrollment
// @Description Marks the enrollment completed. The seat is not handed to the waiting list.
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /enrollments/{id}/complete [post]
func (h *EnrollmentHandler) Complete(c *gin.Context) {
	result, err := h.engine.Complete(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, reasonStatus(result.Success, result.Reason), result, nil)
}

// Withdraw godoc
// @Summary Leave a waiting list
// @Description Cancels a waiting entry. Other students keep their positions.
// @Tags Waitlist
// @Produce json
// @Param id path string true "Waitlist entry ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /waitlist-entries/{id} [delete]
func (h *EnrollmentHandler) Withdraw(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	if claims.Role == models.RoleStudent {
		entry, err := h.engine.GetWaitlistEntry(c.Request.Context(), c.Param("id"))
		if err != nil {
			response.Error(c, err)
			return
		}
		if entry.StudentID != claims.UserID {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "not your waitlist entry"))
			return
		}
	}
	result, err := h.engine.Withdraw(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, reasonStatus(result.Success, result.Reason), result, nil)
}

func (h *EnrollmentHandler) ownsEnrollment(c *gin.Context) bool {
	claims := requireClaims(c)
	if claims == nil {
		return false
	}
	if claims.Role != models.RoleStudent {
		return true
	}
	enrollment, err := h.engine.GetEnrollment(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return false
	}
	if enrollment.StudentID != claims.UserID {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "not your enrollment"))
		return false
	}
	return true
}

func enrollStatus(result *dto.EnrollResult) int {
	switch result.Outcome {
	case dto.OutcomeAdmitted:
		return http.StatusCreated
	case dto.OutcomeQueued:
		return http.StatusAccepted
	}
	switch result.Reason {
	case dto.ReasonStudentNotFound, dto.ReasonCourseNotFound:
		return http.StatusNotFound
	default:
		return http.StatusConflict
	}
}

func reasonStatus(success bool, reason dto.Reason) int {
	if success {
		return http.StatusOK
	}
	if reason == dto.ReasonNotFound {
		return http.StatusNotFound
	}
	return http.StatusConflict
}
