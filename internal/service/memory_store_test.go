package service

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/learning-center-api/internal/models"
	"github.com/noah-isme/learning-center-api/internal/repository"
)

// memoryStore is an in-memory courseStore. WithinCourse holds a per-course
// mutex and rolls writes back through an undo journal when fn fails.
type memoryStore struct {
	mu          sync.Mutex
	courseLocks map[string]*sync.Mutex

	courses     map[string]models.Course
	students    map[string]string
	enrollments map[string]models.Enrollment
	waitlists   map[string]models.Waitlist
	entries     map[string]models.WaitlistEntry

	// interfere runs once inside the next CreateEnrollment, outside any
	// journal, to simulate a writer that bypassed the course lock.
	interfere func(m *memoryStore, courseID string)
	failWith  error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		courseLocks: make(map[string]*sync.Mutex),
		courses:     make(map[string]models.Course),
		students:    make(map[string]string),
		enrollments: make(map[string]models.Enrollment),
		waitlists:   make(map[string]models.Waitlist),
		entries:     make(map[string]models.WaitlistEntry),
	}
}

func (m *memoryStore) addCourse(name string, capacity int) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.NewString()
	now := time.Now().UTC()
	m.courses[id] = models.Course{ID: id, Name: name, Code: name, Capacity: capacity, CreatedAt: now, UpdatedAt: now}
	return id
}

func (m *memoryStore) addStudent(name string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.NewString()
	m.students[id] = name
	return id
}

func (m *memoryStore) activeCount(courseID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.countActiveLocked(courseID)
}

func (m *memoryStore) countActiveLocked(courseID string) int {
	count := 0
	for _, e := range m.enrollments {
		if e.CourseID == courseID && e.Status == models.EnrollmentStatusActive {
			count++
		}
	}
	return count
}

func (m *memoryStore) entryOf(studentID, courseID string) (models.WaitlistEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.StudentID == studentID && e.CourseID == courseID {
			return e, true
		}
	}
	return models.WaitlistEntry{}, false
}

func (m *memoryStore) entryCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *memoryStore) Reader() repository.EntityStore {
	return &memoryTx{store: m}
}

func (m *memoryStore) WithinCourse(ctx context.Context, courseID string, fn func(repository.EntityStore) error) error {
	m.mu.Lock()
	lock, ok := m.courseLocks[courseID]
	if !ok {
		lock = &sync.Mutex{}
		m.courseLocks[courseID] = lock
	}
	m.mu.Unlock()

	lock.Lock()
	defer lock.Unlock()

	tx := &memoryTx{store: m, journal: true}
	if err := fn(tx); err != nil {
		m.mu.Lock()
		for i := len(tx.undo) - 1; i >= 0; i-- {
			tx.undo[i]()
		}
		m.mu.Unlock()
		return err
	}
	return nil
}

type memoryTx struct {
	store   *memoryStore
	journal bool
	undo    []func()
}

func (t *memoryTx) record(fn func()) {
	if t.journal {
		t.undo = append(t.undo, fn)
	}
}

func (t *memoryTx) GetCourse(_ context.Context, courseID string) (*models.Course, error) {
	m := t.store
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	course, ok := m.courses[courseID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &course, nil
}

func (t *memoryTx) UpdateCourse(_ context.Context, course *models.Course) error {
	m := t.store
	m.mu.Lock()
	defer m.mu.Unlock()
	previous, ok := m.courses[course.ID]
	if !ok {
		return sql.ErrNoRows
	}
	m.courses[course.ID] = *course
	t.record(func() { m.courses[course.ID] = previous })
	return nil
}

func (t *memoryTx) DeleteCourse(_ context.Context, courseID string) error {
	m := t.store
	m.mu.Lock()
	defer m.mu.Unlock()
	previous, ok := m.courses[courseID]
	if !ok {
		return sql.ErrNoRows
	}
	delete(m.courses, courseID)
	t.record(func() { m.courses[courseID] = previous })
	return nil
}

func (t *memoryTx) StudentExists(_ context.Context, studentID string) (bool, error) {
	m := t.store
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.students[studentID]
	return ok, nil
}

func (t *memoryTx) GetEnrollment(_ context.Context, enrollmentID string) (*models.Enrollment, error) {
	m := t.store
	m.mu.Lock()
	defer m.mu.Unlock()
	enrollment, ok := m.enrollments[enrollmentID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &enrollment, nil
}

func (t *memoryTx) GetActiveEnrollment(_ context.Context, studentID, courseID string) (*models.Enrollment, error) {
	m := t.store
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.enrollments {
		if e.StudentID == studentID && e.CourseID == courseID && e.Status == models.EnrollmentStatusActive {
			found := e
			return &found, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (t *memoryTx) CountActiveEnrollments(_ context.Context, courseID string) (int, error) {
	m := t.store
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.countActiveLocked(courseID), nil
}

func (t *memoryTx) CreateEnrollment(_ context.Context, studentID, courseID string, at time.Time) (*models.Enrollment, error) {
	m := t.store
	m.mu.Lock()
	if interfere := m.interfere; interfere != nil {
		m.interfere = nil
		m.mu.Unlock()
		interfere(m, courseID)
		m.mu.Lock()
	}
	defer m.mu.Unlock()
	for _, e := range m.enrollments {
		if e.StudentID == studentID && e.CourseID == courseID && e.Status == models.EnrollmentStatusActive {
			return nil, repository.ErrConflictingWrite
		}
	}
	enrollment := models.Enrollment{
		ID:         uuid.NewString(),
		StudentID:  studentID,
		CourseID:   courseID,
		EnrolledAt: at,
		Status:     models.EnrollmentStatusActive,
		UpdatedAt:  at,
	}
	m.enrollments[enrollment.ID] = enrollment
	t.record(func() { delete(m.enrollments, enrollment.ID) })
	return &enrollment, nil
}

func (t *memoryTx) UpdateEnrollmentStatus(_ context.Context, enrollmentID string, status models.EnrollmentStatus) error {
	m := t.store
	m.mu.Lock()
	defer m.mu.Unlock()
	previous, ok := m.enrollments[enrollmentID]
	if !ok {
		return sql.ErrNoRows
	}
	updated := previous
	updated.Status = status
	m.enrollments[enrollmentID] = updated
	t.record(func() { m.enrollments[enrollmentID] = previous })
	return nil
}

func (t *memoryTx) ListStudentEnrollments(_ context.Context, studentID string) ([]models.EnrollmentDetail, error) {
	m := t.store
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]models.EnrollmentDetail, 0)
	for _, e := range m.enrollments {
		if e.StudentID == studentID && e.Status == models.EnrollmentStatusActive {
			course := m.courses[e.CourseID]
			result = append(result, models.EnrollmentDetail{Enrollment: e, CourseName: course.Name, CourseCode: course.Code})
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].EnrolledAt.Before(result[j].EnrolledAt) })
	return result, nil
}

func (t *memoryTx) GetWaitlist(_ context.Context, courseID string) (*models.Waitlist, error) {
	m := t.store
	m.mu.Lock()
	defer m.mu.Unlock()
	queue, ok := m.waitlists[courseID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &queue, nil
}

func (t *memoryTx) GetOrCreateWaitlist(_ context.Context, courseID string) (*models.Waitlist, error) {
	m := t.store
	m.mu.Lock()
	defer m.mu.Unlock()
	if queue, ok := m.waitlists[courseID]; ok {
		return &queue, nil
	}
	queue := models.Waitlist{ID: uuid.NewString(), CourseID: courseID, CreatedAt: time.Now().UTC()}
	m.waitlists[courseID] = queue
	t.record(func() { delete(m.waitlists, courseID) })
	return &queue, nil
}

func (t *memoryTx) ListWaitingEntries(_ context.Context, courseID string) ([]models.WaitlistEntry, error) {
	m := t.store
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]models.WaitlistEntry, 0)
	for _, e := range m.entries {
		if e.CourseID == courseID && e.Status == models.WaitlistStatusWaiting {
			result = append(result, e)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Position < result[j].Position })
	return result, nil
}

func (t *memoryTx) GetWaitingEntry(_ context.Context, studentID, courseID string) (*models.WaitlistEntry, error) {
	m := t.store
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.StudentID == studentID && e.CourseID == courseID && e.Status == models.WaitlistStatusWaiting {
			found := e
			return &found, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (t *memoryTx) GetWaitlistEntry(_ context.Context, entryID string) (*models.WaitlistEntry, error) {
	m := t.store
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[entryID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &entry, nil
}

func (t *memoryTx) CreateWaitlistEntry(_ context.Context, entry *models.WaitlistEntry) error {
	m := t.store
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.CourseID != entry.CourseID || e.Status != models.WaitlistStatusWaiting {
			continue
		}
		if e.StudentID == entry.StudentID || e.Position == entry.Position {
			return repository.ErrConflictingWrite
		}
	}
	entry.ID = uuid.NewString()
	m.entries[entry.ID] = *entry
	id := entry.ID
	t.record(func() { delete(m.entries, id) })
	return nil
}

func (t *memoryTx) UpdateWaitlistEntryStatus(_ context.Context, entryID string, status models.WaitlistEntryStatus, completedAt *time.Time) error {
	m := t.store
	m.mu.Lock()
	defer m.mu.Unlock()
	previous, ok := m.entries[entryID]
	if !ok {
		return sql.ErrNoRows
	}
	updated := previous
	updated.Status = status
	updated.CompletedAt = completedAt
	m.entries[entryID] = updated
	t.record(func() { m.entries[entryID] = previous })
	return nil
}

func (t *memoryTx) ListStudentWaitingEntries(_ context.Context, studentID string) ([]models.WaitlistEntryDetail, error) {
	m := t.store
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]models.WaitlistEntryDetail, 0)
	for _, e := range m.entries {
		if e.StudentID == studentID && e.Status == models.WaitlistStatusWaiting {
			result = append(result, models.WaitlistEntryDetail{
				WaitlistEntry: e,
				StudentName:   m.students[studentID],
				CourseName:    m.courses[e.CourseID].Name,
			})
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].JoinedAt.Before(result[j].JoinedAt) })
	return result, nil
}

// recordingNotifier captures promotion notifications.
type recordingNotifier struct {
	mu       sync.Mutex
	promoted []string
}

func (n *recordingNotifier) NotifyPromotion(_ context.Context, _ *models.Course, enrollment *models.Enrollment) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.promoted = append(n.promoted, enrollment.StudentID)
}

// recordingAudit captures audit actions.
type recordingAudit struct {
	mu      sync.Mutex
	actions []string
}

func (a *recordingAudit) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.actions = append(a.actions, log.Action)
	return nil
}
