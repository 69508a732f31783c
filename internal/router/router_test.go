package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/noah-isme/learning-center-api/internal/handler"
	"github.com/noah-isme/learning-center-api/internal/models"
	"github.com/noah-isme/learning-center-api/pkg/config"
	appErrors "github.com/noah-isme/learning-center-api/pkg/errors"
)

type roleTokens map[string]models.UserRole

func (r roleTokens) ValidateToken(token string) (*models.JWTClaims, error) {
	role, ok := r[token]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
	}
	return &models.JWTClaims{UserID: token, Role: role}, nil
}

func newTestRouter() http.Handler {
	cfg := &config.Config{Env: "test", APIPrefix: "/api/v1"}
	return Setup(Options{
		Config: cfg,
		Logger: zap.NewNop(),
		Tokens: roleTokens{"student": models.RoleStudent, "parent": models.RoleParent, "teacher": models.RoleTeacher},
	}, Handlers{
		Auth:          handler.NewAuthHandler(nil),
		Users:         handler.NewUserHandler(nil),
		Courses:       handler.NewCourseHandler(nil),
		Enrollments:   handler.NewEnrollmentHandler(nil),
		Queues:        handler.NewQueueHandler(nil, nil, nil),
		Notifications: handler.NewNotificationHandler(nil),
		Metrics:       handler.NewMetricsHandler(nil, nil),
	})
}

func TestRouterGuards(t *testing.T) {
	r := newTestRouter()
	cases := []struct {
		method, path, token string
		want                int
	}{
		{http.MethodGet, "/health", "", http.StatusOK},
		{http.MethodGet, "/ready", "", http.StatusOK},
		{http.MethodGet, "/api/v1/courses", "", http.StatusUnauthorized},
		{http.MethodPost, "/api/v1/courses", "student", http.StatusForbidden},
		{http.MethodGet, "/api/v1/users", "teacher", http.StatusForbidden},
		{http.MethodPost, "/api/v1/enrollments", "parent", http.StatusForbidden},
		{http.MethodPost, "/api/v1/enrollments/x/complete", "student", http.StatusForbidden},
		{http.MethodGet, "/api/v1/queues/summary", "student", http.StatusForbidden},
		{http.MethodGet, "/api/v1/courses/x/queue", "student", http.StatusForbidden},
		{http.MethodGet, "/api/v1/children", "student", http.StatusForbidden},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(tc.method, tc.path, nil)
		if tc.token != "" {
			req.Header.Set("Authorization", "Bearer "+tc.token)
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		assert.Equal(t, tc.want, rec.Code, "%s %s as %q", tc.method, tc.path, tc.token)
	}
}
