package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/learning-center-api/internal/dto"
	"github.com/noah-isme/learning-center-api/internal/models"
	"github.com/noah-isme/learning-center-api/internal/repository"
	appErrors "github.com/noah-isme/learning-center-api/pkg/errors"
)

type userRepository interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User, student *models.Student) error
	Deactivate(ctx context.Context, id string) error
}

// UserService handles account administration.
type UserService struct {
	repo      userRepository
	audit     auditTrail
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService creates an instance of UserService.
func NewUserService(repo userRepository, audit auditWriter, validate *validator.Validate, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &UserService{repo: repo, audit: auditTrail{repo: audit, logger: logger}, validator: validate, logger: logger}
}

// List returns paginated users and pagination metadata.
func (s *UserService) List(ctx context.Context, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list users")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}

	return users, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Get returns a user by ID.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	if !validID(id) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
	}
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Internal(err, "failed to load user")
	}
	return user, nil
}

// Create opens an account. Students also get a profile row, optionally
// linked to a parent account.
func (s *UserService) Create(ctx context.Context, req dto.CreateUserRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid create user payload")
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := s.repo.FindByEmail(ctx, email); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email already exists")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Internal(err, "failed to check email uniqueness")
	}

	var student *models.Student
	if req.Role == models.RoleStudent {
		profile, err := s.studentProfile(ctx, req)
		if err != nil {
			return nil, err
		}
		student = profile
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to hash password")
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Email:        email,
		FullName:     strings.TrimSpace(req.FullName),
		Role:         req.Role,
		Active:       true,
		PasswordHash: string(passwordHash),
	}
	if err := s.repo.Create(ctx, user, student); err != nil {
		if errors.Is(err, repository.ErrConflictingWrite) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "email or student number already exists")
		}
		return nil, appErrors.Internal(err, "failed to create user")
	}

	s.audit.record(ctx, models.AuditActionUserCreate, models.AuditResourceUser, user.ID, map[string]interface{}{
		"email": user.Email,
		"role":  user.Role,
	})
	return user, nil
}

func (s *UserService) studentProfile(ctx context.Context, req dto.CreateUserRequest) (*models.Student, error) {
	joined := time.Now().UTC()
	profile := &models.Student{
		StudentNumber:  req.StudentNumber,
		GradeLevel:     req.GradeLevel,
		EnrollmentDate: &joined,
	}
	if req.ParentID == nil || *req.ParentID == "" {
		return profile, nil
	}
	parent, err := s.Get(ctx, *req.ParentID)
	if err != nil {
		return nil, err
	}
	if parent.Role != models.RoleParent {
		return nil, appErrors.Clone(appErrors.ErrValidation, "parentId must reference a parent account")
	}
	profile.ParentID = &parent.ID
	return profile, nil
}

// Deactivate disables an account and revokes its sessions. Enrollment
// history is kept.
func (s *UserService) Deactivate(ctx context.Context, id string) error {
	user, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if actor := ActorFrom(ctx); actor.UserID == user.ID {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "cannot deactivate your own account")
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return appErrors.Internal(err, "failed to deactivate user")
	}

	s.audit.record(ctx, models.AuditActionUserDelete, models.AuditResourceUser, user.ID, map[string]interface{}{"active": false})
	return nil
}
