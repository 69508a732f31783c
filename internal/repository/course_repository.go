package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/learning-center-api/internal/models"
)

const courseColumns = `id, name, code, description, teacher_id, capacity, fee, start_date, end_date, created_at, updated_at`

const courseCountsSelect = `SELECT c.id, c.name, c.code, c.description, c.teacher_id, c.capacity, c.fee, c.start_date, c.end_date, c.created_at, c.updated_at,
    (SELECT COUNT(*) FROM enrollments e WHERE e.course_id = c.id AND e.status = 'ACTIVE') AS active_count,
    (SELECT COUNT(*) FROM waitlist_entries we JOIN waitlists w ON w.id = we.waitlist_id
        WHERE w.course_id = c.id AND we.status = 'WAITING') AS waiting_count
    FROM courses c`

// CourseRepository manages course catalogue rows outside the engine.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository creates a new CourseRepository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// Create inserts a course.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course) error {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	course.CreatedAt = now
	course.UpdatedAt = now
	const query = `INSERT INTO courses (` + courseColumns + `) VALUES (:id, :name, :code, :description, :teacher_id, :capacity, :fee, :start_date, :end_date, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("create course: %w", mapWriteError(err))
	}
	return nil
}

// FindByID returns a course together with its live counts.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.CourseWithCounts, error) {
	query := courseCountsSelect + ` WHERE c.id = $1`
	var course models.CourseWithCounts
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find course: %w", err)
	}
	return &course, nil
}

// ExistsByCode reports whether another course already uses code.
func (r *CourseRepository) ExistsByCode(ctx context.Context, code, excludeID string) (bool, error) {
	query := `SELECT 1 FROM courses WHERE LOWER(code) = LOWER($1)`
	args := []interface{}{code}
	if excludeID != "" {
		query += ` AND id <> $2`
		args = append(args, excludeID)
	}
	query += ` LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check course code: %w", err)
	}
	return true, nil
}

// List returns courses with counts, filtered and paginated.
func (r *CourseRepository) List(ctx context.Context, filter models.CourseFilter) ([]models.CourseWithCounts, int, error) {
	var conditions []string
	var args []interface{}

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(c.name) LIKE $%d OR LOWER(c.code) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	if filter.TeacherID != "" {
		conditions = append(conditions, fmt.Sprintf("c.teacher_id = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"name":       "c.name",
		"code":       "c.code",
		"capacity":   "c.capacity",
		"created_at": "c.created_at",
	}
	orderBy, ok := allowedSorts[filter.SortBy]
	if !ok {
		orderBy = "c.name"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}

	query := fmt.Sprintf("%s%s ORDER BY %s %s LIMIT %d OFFSET %d", courseCountsSelect, where, orderBy, order, size, (page-1)*size)
	var courses []models.CourseWithCounts
	if err := r.db.SelectContext(ctx, &courses, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list courses: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM courses c"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count courses: %w", err)
	}
	return courses, total, nil
}

// ListAllWithCounts returns every course with its counts ordered by code.
func (r *CourseRepository) ListAllWithCounts(ctx context.Context) ([]models.CourseWithCounts, error) {
	var courses []models.CourseWithCounts
	if err := r.db.SelectContext(ctx, &courses, courseCountsSelect+` ORDER BY c.code`); err != nil {
		return nil, fmt.Errorf("list course counts: %w", err)
	}
	return courses, nil
}

// GetCourse loads a course, locking the row when inside WithinCourse.
func (s *entityStore) GetCourse(ctx context.Context, courseID string) (*models.Course, error) {
	query := `SELECT ` + courseColumns + ` FROM courses WHERE id = $1`
	if s.lock {
		query += ` FOR UPDATE`
	}
	var course models.Course
	if err := sqlx.GetContext(ctx, s.ext, &course, query, courseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get course: %w", err)
	}
	return &course, nil
}

// UpdateCourse writes the mutable course attributes.
func (s *entityStore) UpdateCourse(ctx context.Context, course *models.Course) error {
	course.UpdatedAt = time.Now().UTC()
	const query = `UPDATE courses SET name = :name, code = :code, description = :description, teacher_id = :teacher_id,
        capacity = :capacity, fee = :fee, start_date = :start_date, end_date = :end_date, updated_at = :updated_at WHERE id = :id`
	if _, err := sqlx.NamedExecContext(ctx, s.ext, query, course); err != nil {
		return fmt.Errorf("update course: %w", mapWriteError(err))
	}
	return nil
}

// DeleteCourse removes the course row; history rows cascade.
func (s *entityStore) DeleteCourse(ctx context.Context, courseID string) error {
	res, err := s.ext.ExecContext(ctx, `DELETE FROM courses WHERE id = $1`, courseID)
	if err != nil {
		return fmt.Errorf("delete course: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
