package models

import "time"

// Student is the profile attached to a STUDENT user.
type Student struct {
	UserID         string     `db:"user_id" json:"user_id"`
	StudentNumber  *string    `db:"student_number" json:"student_number,omitempty"`
	GradeLevel     *string    `db:"grade_level" json:"grade_level,omitempty"`
	EnrollmentDate *time.Time `db:"enrollment_date" json:"enrollment_date,omitempty"`
	ParentID       *string    `db:"parent_id" json:"parent_id,omitempty"`
}

// StudentDetail joins the profile with its user row.
type StudentDetail struct {
	Student
	FullName string `db:"full_name" json:"full_name"`
	Email    string `db:"email" json:"email"`
	Active   bool   `db:"active" json:"active"`
}
