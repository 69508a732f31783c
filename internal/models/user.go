package models

import "time"

// UserRole tags every account with exactly one role.
type UserRole string

const (
	RoleManager UserRole = "MANAGER"
	RoleTeacher UserRole = "TEACHER"
	RoleStudent UserRole = "STUDENT"
	RoleParent  UserRole = "PARENT"
	RoleWorker  UserRole = "WORKER"
)

// Valid reports whether r is a known role.
func (r UserRole) Valid() bool {
	_, ok := RolePermissions[r]
	return ok
}

// Can reports whether r grants p.
func (r UserRole) Can(p Permission) bool {
	for _, granted := range RolePermissions[r] {
		if granted == p {
			return true
		}
	}
	return false
}

// Permission names a capability checked by the router.
type Permission string

const (
	PermManageUsers       Permission = "manage_users"
	PermManageCourses     Permission = "manage_courses"
	PermViewCourses       Permission = "view_courses"
	PermManageEnrollments Permission = "manage_enrollments"
	PermJoinQueues        Permission = "join_queues"
	PermManageQueues      Permission = "manage_queues"
	PermViewQueues        Permission = "view_queues"
	PermViewReports       Permission = "view_reports"
	PermViewMyCourses     Permission = "view_my_courses"
	PermViewChildren      Permission = "view_children"
)

// RolePermissions maps each role to its permission set.
var RolePermissions = map[UserRole][]Permission{
	RoleManager: {
		PermManageUsers, PermManageCourses, PermViewCourses, PermManageEnrollments,
		PermManageQueues, PermViewQueues, PermViewReports, PermJoinQueues,
	},
	RoleTeacher: {PermViewCourses, PermViewQueues, PermViewMyCourses},
	RoleStudent: {PermViewCourses, PermJoinQueues, PermViewMyCourses},
	RoleParent:  {PermViewCourses, PermViewChildren},
	RoleWorker:  {PermViewCourses},
}

// User represents an application user stored in the users table.
type User struct {
	ID           string     `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	FullName     string     `db:"full_name" json:"full_name"`
	Role         UserRole   `db:"role" json:"role"`
	Active       bool       `db:"active" json:"active"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role      *UserRole
	Active    *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
