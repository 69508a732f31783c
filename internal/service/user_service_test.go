package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/learning-center-api/internal/dto"
	"github.com/noah-isme/learning-center-api/internal/models"
	appErrors "github.com/noah-isme/learning-center-api/pkg/errors"
)

type mockUserRepo struct {
	users     map[string]*models.User
	students  map[string]*models.Student
	listUsers []models.User
	listCount int
	listErr   error
	auditLogs []*models.AuditLog
}

func (m *mockUserRepo) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	if m.listErr != nil {
		return nil, 0, m.listErr
	}
	return m.listUsers, m.listCount, nil
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if user, ok := m.users[id]; ok {
		copy := *user
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			copy := *u
			return &copy, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) Create(ctx context.Context, user *models.User, student *models.Student) error {
	if m.users == nil {
		m.users = make(map[string]*models.User)
	}
	copy := *user
	m.users[user.ID] = &copy
	if student != nil {
		if m.students == nil {
			m.students = make(map[string]*models.Student)
		}
		student.UserID = user.ID
		m.students[user.ID] = student
	}
	return nil
}

func (m *mockUserRepo) Deactivate(ctx context.Context, id string) error {
	if user, ok := m.users[id]; ok {
		user.Active = false
		return nil
	}
	return sql.ErrNoRows
}

func (m *mockUserRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, log)
	return nil
}

func TestUserServiceList(t *testing.T) {
	repo := &mockUserRepo{listUsers: []models.User{{ID: "1", Email: "a@example.com"}}, listCount: 1}
	svc := NewUserService(repo, repo, validator.New(), zap.NewNop())
	users, pagination, err := svc.List(context.Background(), models.UserFilter{Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Len(t, users, 1)
	assert.Equal(t, 1, pagination.TotalCount)
	assert.Equal(t, 10, pagination.PageSize)
}

func TestUserServiceCreateManager(t *testing.T) {
	repo := &mockUserRepo{users: make(map[string]*models.User)}
	svc := NewUserService(repo, repo, validator.New(), zap.NewNop())
	user, err := svc.Create(context.Background(), dto.CreateUserRequest{Email: "USER@EXAMPLE.COM", FullName: "User", Password: "secret123", Role: models.RoleManager})
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", user.Email)
	assert.True(t, user.Active)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("secret123")))
	assert.Empty(t, repo.students)
	require.Len(t, repo.auditLogs, 1)
	assert.Equal(t, models.AuditActionUserCreate, repo.auditLogs[0].Action)

	_, err = svc.Create(context.Background(), dto.CreateUserRequest{Email: "user@example.com", FullName: "Dup", Password: "secret123", Role: models.RoleTeacher})
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestUserServiceCreateStudentWithParent(t *testing.T) {
	parentID := uuid.NewString()
	repo := &mockUserRepo{users: map[string]*models.User{
		parentID: {ID: parentID, Email: "parent@example.com", Role: models.RoleParent, Active: true},
	}}
	svc := NewUserService(repo, repo, validator.New(), zap.NewNop())
	number := "S-001"

	user, err := svc.Create(context.Background(), dto.CreateUserRequest{
		Email:         "kid@example.com",
		FullName:      "Kid",
		Password:      "secret123",
		Role:          models.RoleStudent,
		StudentNumber: &number,
		ParentID:      &parentID,
	})
	require.NoError(t, err)
	profile, ok := repo.students[user.ID]
	require.True(t, ok)
	assert.Equal(t, &number, profile.StudentNumber)
	require.NotNil(t, profile.ParentID)
	assert.Equal(t, parentID, *profile.ParentID)
	assert.NotNil(t, profile.EnrollmentDate)
}

func TestUserServiceCreateStudentRejectsNonParent(t *testing.T) {
	teacherID := uuid.NewString()
	repo := &mockUserRepo{users: map[string]*models.User{
		teacherID: {ID: teacherID, Email: "teacher@example.com", Role: models.RoleTeacher, Active: true},
	}}
	svc := NewUserService(repo, repo, validator.New(), zap.NewNop())

	_, err := svc.Create(context.Background(), dto.CreateUserRequest{
		Email: "kid@example.com", FullName: "Kid", Password: "secret123", Role: models.RoleStudent, ParentID: &teacherID,
	})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.Create(context.Background(), dto.CreateUserRequest{
		Email: "kid@example.com", FullName: "Kid", Password: "secret123", Role: "ADMIN",
	})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestUserServiceDeactivate(t *testing.T) {
	id := uuid.NewString()
	actorID := uuid.NewString()
	repo := &mockUserRepo{users: map[string]*models.User{id: {ID: id, Email: "a@example.com", FullName: "Old", Role: models.RoleTeacher, Active: true}}}
	svc := NewUserService(repo, repo, validator.New(), zap.NewNop())
	ctx := WithActor(context.Background(), Actor{UserID: actorID, IP: "127.0.0.1"})

	require.NoError(t, svc.Deactivate(ctx, id))
	assert.False(t, repo.users[id].Active)
	require.Len(t, repo.auditLogs, 1)
	require.NotNil(t, repo.auditLogs[0].UserID)
	assert.Equal(t, actorID, *repo.auditLogs[0].UserID)
	assert.Equal(t, "127.0.0.1", repo.auditLogs[0].IPAddress)

	err := svc.Deactivate(ctx, uuid.NewString())
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	self := WithActor(context.Background(), Actor{UserID: id})
	err = svc.Deactivate(self, id)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}
