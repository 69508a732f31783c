package dto

import "github.com/noah-isme/learning-center-api/internal/models"

// CreateUserRequest is the payload a manager submits to open an account.
type CreateUserRequest struct {
	Email         string          `json:"email" validate:"required,email"`
	Password      string          `json:"password" validate:"required,min=8"`
	FullName      string          `json:"fullName" validate:"required,max=150"`
	Role          models.UserRole `json:"role" validate:"required,oneof=MANAGER TEACHER STUDENT PARENT WORKER"`
	StudentNumber *string         `json:"studentNumber"`
	GradeLevel    *string         `json:"gradeLevel"`
	ParentID      *string         `json:"parentId"`
}
