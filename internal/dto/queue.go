package dto

import (
	"time"

	"github.com/noah-isme/learning-center-api/internal/models"
)

// QueuePosition answers "where is this student in the queue".
type QueuePosition struct {
	CourseID  string `json:"courseId"`
	StudentID string `json:"studentId"`
	Waiting   bool   `json:"waiting"`
	Position  *int   `json:"position,omitempty"`
}

// QueueEntryView is one waiting student in a queue dump.
type QueueEntryView struct {
	EntryID     string    `json:"entryId"`
	StudentID   string    `json:"studentId"`
	Position    int       `json:"position"`
	Priority    int       `json:"priority"`
	JoinedAt    time.Time `json:"joinedAt"`
	WaitMinutes int64     `json:"waitMinutes"`
}

// QueueDetail is the full waiting list of one course.
type QueueDetail struct {
	CourseID      string           `json:"courseId"`
	CourseName    string           `json:"courseName"`
	CourseCode    string           `json:"courseCode"`
	WaitingCount  int              `json:"waitingCount"`
	Entries       []QueueEntryView `json:"entries"`
	NeedsNewClass bool             `json:"needsNewClass"`
}

// CourseSummary is one row of the cross-course occupancy report.
type CourseSummary struct {
	CourseID       string `json:"courseId"`
	CourseName     string `json:"courseName"`
	CourseCode     string `json:"courseCode"`
	Capacity       int    `json:"capacity"`
	ActiveCount    int    `json:"activeCount"`
	AvailableSlots int    `json:"availableSlots"`
	WaitingCount   int    `json:"waitingCount"`
	NeedsNewClass  bool   `json:"needsNewClass"`
}

// StudentCourses merges a student's seats and queue places.
type StudentCourses struct {
	StudentID string                       `json:"studentId"`
	Enrolled  []models.EnrollmentDetail    `json:"enrolled"`
	Queued    []models.WaitlistEntryDetail `json:"queued"`
}
