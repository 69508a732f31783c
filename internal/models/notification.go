package models

import "time"

// Notification kinds.
const (
	NotificationPromoted = "WAITLIST_PROMOTED"
)

// Notification is an in-app message delivered to a user.
type Notification struct {
	ID        string     `db:"id" json:"id"`
	UserID    string     `db:"user_id" json:"user_id"`
	Kind      string     `db:"kind" json:"kind"`
	Title     string     `db:"title" json:"title"`
	Body      string     `db:"body" json:"body"`
	CourseID  *string    `db:"course_id" json:"course_id,omitempty"`
	ReadAt    *time.Time `db:"read_at" json:"read_at,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}
