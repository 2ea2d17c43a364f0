package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/gradeflow/gradeflow-api/internal/middleware"
	"github.com/gradeflow/gradeflow-api/internal/service"
)

// Handlers groups the HTTP handlers registered on the router.
type Handlers struct {
	Auth      *AuthHandler
	Tasks     *TaskHandler
	Migration *MigrationHandler
	Imports   *ImportHandler
	Metrics   *MetricsHandler
}

// Register mounts all API routes under the given prefix.
func Register(r *gin.Engine, prefix string, h Handlers, authService *service.AuthService, metricsService *service.MetricsService) {
	r.Use(middleware.Metrics(metricsService))

	r.GET("/metrics", h.Metrics.Prometheus)
	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Health)

	api := r.Group(prefix)

	auth := api.Group("/auth")
	auth.POST("/login", h.Auth.Login)
	auth.GET("/me", middleware.JWT(authService), h.Auth.Me)

	protected := api.Group("")
	protected.Use(middleware.JWT(authService))

	protected.GET("/tasks", h.Tasks.List)
	protected.GET("/tasks/:id", h.Tasks.Get)

	protected.POST("/courses/:courseId/migrations", h.Migration.CreateMaster)
	protected.GET("/courses/:courseId/migrations", h.Migration.ListMasters)

	migrations := protected.Group("/migrations/:masterId")
	migrations.GET("", h.Migration.GetMaster)
	migrations.DELETE("", h.Migration.DeleteMaster)
	migrations.POST("/migrations", h.Migration.AddMigration)
	migrations.PUT("/migrations/:migrationId/policy", h.Migration.SetPolicy)
	migrations.POST("/migrations/:migrationId/scores/:source", h.Imports.Upload)
	migrations.POST("/load/validate", h.Migration.ValidateLoad)
	migrations.POST("/start", h.Migration.StartProcessing)
	migrations.GET("/review", h.Migration.Review)
	migrations.PUT("/migrations/:migrationId/review", h.Migration.OverrideScore)
	migrations.POST("/review/finalize", h.Migration.FinalizeReview)
	migrations.POST("/post", h.Migration.StartPost)
	migrations.POST("/post/finalize", h.Migration.FinalizePost)
}
