package models

import "time"

// WaitlistEntryStatus tracks an entry through the queue.
type WaitlistEntryStatus string

const (
	WaitlistStatusWaiting    WaitlistEntryStatus = "WAITING"
	WaitlistStatusInProgress WaitlistEntryStatus = "IN_PROGRESS"
	WaitlistStatusCompleted  WaitlistEntryStatus = "COMPLETED"
	WaitlistStatusCancelled  WaitlistEntryStatus = "CANCELLED"
)

// Waitlist is the per-course queue, created on the first overflow.
type Waitlist struct {
	ID        string    `db:"id" json:"id"`
	CourseID  string    `db:"course_id" json:"course_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// WaitlistEntry is one student's place in a course queue.
type WaitlistEntry struct {
	ID          string              `db:"id" json:"id"`
	WaitlistID  string              `db:"waitlist_id" json:"waitlist_id"`
	CourseID    string              `db:"course_id" json:"course_id"`
	StudentID   string              `db:"student_id" json:"student_id"`
	Position    int                 `db:"position" json:"position"`
	Priority    int                 `db:"priority" json:"priority"`
	Status      WaitlistEntryStatus `db:"status" json:"status"`
	JoinedAt    time.Time           `db:"joined_at" json:"joined_at"`
	CompletedAt *time.Time          `db:"completed_at" json:"completed_at,omitempty"`
	Notes       *string             `db:"notes" json:"notes,omitempty"`
}

// WaitDuration is the time spent waiting, up to completion or now.
func (e WaitlistEntry) WaitDuration(now time.Time) time.Duration {
	end := now
	if e.CompletedAt != nil {
		end = *e.CompletedAt
	}
	if end.Before(e.JoinedAt) {
		return 0
	}
	return end.Sub(e.JoinedAt)
}

// WaitlistEntryDetail joins an entry with student and course names.
type WaitlistEntryDetail struct {
	WaitlistEntry
	StudentName string `db:"student_name" json:"student_name"`
	CourseName  string `db:"course_name" json:"course_name"`
}
