package models

import "time"

// Course is a capacity-bounded offering students enroll in.
type Course struct {
	ID          string     `db:"id" json:"id"`
	Name        string     `db:"name" json:"name"`
	Code        string     `db:"code" json:"code"`
	Description *string    `db:"description" json:"description,omitempty"`
	TeacherID   *string    `db:"teacher_id" json:"teacher_id,omitempty"`
	Capacity    int        `db:"capacity" json:"capacity"`
	Fee         float64    `db:"fee" json:"fee"`
	StartDate   *time.Time `db:"start_date" json:"start_date,omitempty"`
	EndDate     *time.Time `db:"end_date" json:"end_date,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// CourseWithCounts carries the live occupancy of a course.
type CourseWithCounts struct {
	Course
	ActiveCount  int `db:"active_count" json:"active_count"`
	WaitingCount int `db:"waiting_count" json:"waiting_count"`
}

// AvailableSlots is capacity minus active enrollments, floored at zero.
func (c CourseWithCounts) AvailableSlots() int {
	if free := c.Capacity - c.ActiveCount; free > 0 {
		return free
	}
	return 0
}

// CourseFilter describes list criteria for courses.
type CourseFilter struct {
	Search    string
	TeacherID string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
