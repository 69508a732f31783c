package dto

import (
	"time"

	"github.com/noah-isme/learning-center-api/internal/models"
)

// CreateCourseRequest is the payload for creating a course.
type CreateCourseRequest struct {
	Name        string     `json:"name" validate:"required,max=100"`
	Code        string     `json:"code" validate:"required,max=20"`
	Description *string    `json:"description"`
	TeacherID   *string    `json:"teacherId"`
	Capacity    int        `json:"capacity" validate:"required,gt=0"`
	Fee         float64    `json:"fee" validate:"gte=0"`
	StartDate   *time.Time `json:"startDate"`
	EndDate     *time.Time `json:"endDate"`
}

// UpdateCourseRequest patches a course. Nil fields are left unchanged.
type UpdateCourseRequest struct {
	Name        *string    `json:"name" validate:"omitempty,max=100"`
	Code        *string    `json:"code" validate:"omitempty,max=20"`
	Description *string    `json:"description"`
	TeacherID   *string    `json:"teacherId"`
	Capacity    *int       `json:"capacity" validate:"omitempty,gt=0"`
	Fee         *float64   `json:"fee" validate:"omitempty,gte=0"`
	StartDate   *time.Time `json:"startDate"`
	EndDate     *time.Time `json:"endDate"`
}

// CourseUpdateResult carries the updated course and any seats backfilled
// from the waiting list by a capacity increase.
type CourseUpdateResult struct {
	Course   *models.CourseWithCounts `json:"course"`
	Promoted int                      `json:"promoted"`
}
