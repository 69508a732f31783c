package router

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/learning-center-api/internal/handler"
	"github.com/noah-isme/learning-center-api/internal/middleware"
	"github.com/noah-isme/learning-center-api/internal/models"
	"github.com/noah-isme/learning-center-api/pkg/config"
	"github.com/noah-isme/learning-center-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/learning-center-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/learning-center-api/pkg/middleware/requestid"
)

// Handlers groups every HTTP handler the router mounts.
type Handlers struct {
	Auth          *handler.AuthHandler
	Users         *handler.UserHandler
	Courses       *handler.CourseHandler
	Enrollments   *handler.EnrollmentHandler
	Queues        *handler.QueueHandler
	Notifications *handler.NotificationHandler
	Metrics       *handler.MetricsHandler
}

// Options carries the cross-cutting collaborators.
type Options struct {
	Config   *config.Config
	Logger   *zap.Logger
	Tokens   middleware.TokenValidator
	Observer middleware.RequestObserver
}

// Setup builds the gin engine with every route mounted.
func Setup(opts Options, h Handlers) *gin.Engine {
	cfg := opts.Config
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(opts.Logger, "/health", "/ready", "/metrics"))
	r.Use(corsmiddleware.New(cfg.CORS))
	r.Use(middleware.Metrics(opts.Observer))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	r.GET("/metrics", h.Metrics.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.Actor())

	auth := api.Group("/auth")
	auth.POST("/login", h.Auth.Login)
	auth.POST("/refresh", h.Auth.Refresh)

	secured := api.Group("")
	secured.Use(middleware.JWT(opts.Tokens), middleware.Actor())

	secured.POST("/auth/logout", h.Auth.Logout)
	secured.POST("/auth/change-password", h.Auth.ChangePassword)

	users := secured.Group("/users", middleware.RequirePermission(models.PermManageUsers))
	users.GET("", h.Users.List)
	users.POST("", h.Users.Create)
	users.GET("/:id", h.Users.Get)
	users.DELETE("/:id", h.Users.Delete)

	manageCourses := middleware.RequirePermission(models.PermManageCourses)
	courses := secured.Group("/courses")
	courses.GET("", middleware.RequirePermission(models.PermViewCourses), h.Courses.List)
	courses.GET("/:id", middleware.RequirePermission(models.PermViewCourses), h.Courses.Get)
	courses.POST("", manageCourses, h.Courses.Create)
	courses.PUT("/:id", manageCourses, h.Courses.Update)
	courses.DELETE("/:id", manageCourses, h.Courses.Delete)

	viewQueues := middleware.RequirePermission(models.PermViewQueues, models.PermJoinQueues)
	courses.GET("/:id/queue", middleware.RequirePermission(models.PermViewQueues), h.Queues.Detail)
	courses.GET("/:id/queue/position", viewQueues, h.Queues.Position)

	joinQueues := middleware.RequirePermission(models.PermJoinQueues, models.PermManageEnrollments)
	secured.POST("/enrollments", joinQueues, h.Enrollments.Enroll)
	secured.POST("/enrollments/:id/drop", joinQueues, h.Enrollments.Drop)
	secured.POST("/enrollments/:id/complete", middleware.RequirePermission(models.PermManageEnrollments), h.Enrollments.Complete)
	secured.DELETE("/waitlist-entries/:id", joinQueues, h.Enrollments.Withdraw)

	reports := middleware.RequirePermission(models.PermViewReports)
	secured.GET("/queues/summary", reports, h.Queues.Summary)
	secured.GET("/queues/summary/export", reports, h.Queues.Export)
	secured.GET("/metrics/summary", reports, h.Metrics.Summary)

	secured.GET("/students/:id/courses",
		middleware.RequirePermission(models.PermViewMyCourses, models.PermViewChildren, models.PermManageEnrollments),
		h.Queues.StudentCourses)
	secured.GET("/children", middleware.RequireRoles(models.RoleParent), h.Queues.Children)

	secured.GET("/notifications", h.Notifications.List)
	secured.POST("/notifications/:id/read", h.Notifications.MarkRead)

	return r
}
