package dto

import "github.com/noah-isme/learning-center-api/internal/models"

// EnrollOutcome is the terminal state of an enroll request.
type EnrollOutcome string

const (
	OutcomeAdmitted EnrollOutcome = "ADMITTED"
	OutcomeQueued   EnrollOutcome = "QUEUED"
	OutcomeRejected EnrollOutcome = "REJECTED"
)

// Reason explains why an engine operation did not take effect.
type Reason string

const (
	ReasonStudentNotFound Reason = "STUDENT_NOT_FOUND"
	ReasonCourseNotFound  Reason = "COURSE_NOT_FOUND"
	ReasonAlreadyEnrolled Reason = "ALREADY_ENROLLED"
	ReasonAlreadyQueued   Reason = "ALREADY_QUEUED"
	ReasonNotFound        Reason = "NOT_FOUND"
	ReasonNotActive       Reason = "NOT_ACTIVE"
	ReasonNotWaiting      Reason = "NOT_WAITING"
)

// EnrollRequest asks for a seat in a course. StudentID defaults to the
// caller when the caller is a student.
type EnrollRequest struct {
	StudentID string `json:"studentId"`
	CourseID  string `json:"courseId" validate:"required"`
}

// EnrollResult reports exactly one of Admitted, Queued or Rejected.
type EnrollResult struct {
	Outcome    EnrollOutcome         `json:"outcome"`
	Reason     Reason                `json:"reason,omitempty"`
	Message    string                `json:"message"`
	Position   *int                  `json:"position,omitempty"`
	Enrollment *models.Enrollment    `json:"enrollment,omitempty"`
	Entry      *models.WaitlistEntry `json:"entry,omitempty"`
}

// DropResult reports the outcome of a drop. Promoted is set when the freed
// seat went to a waiting student.
type DropResult struct {
	Success  bool               `json:"success"`
	Reason   Reason             `json:"reason,omitempty"`
	Message  string             `json:"message"`
	Promoted *models.Enrollment `json:"promoted,omitempty"`
}

// CompleteResult reports the outcome of marking an enrollment completed.
type CompleteResult struct {
	Success bool   `json:"success"`
	Reason  Reason `json:"reason,omitempty"`
	Message string `json:"message"`
}

// WithdrawResult reports the outcome of leaving a waitlist.
type WithdrawResult struct {
	Success bool   `json:"success"`
	Reason  Reason `json:"reason,omitempty"`
	Message string `json:"message"`
}
