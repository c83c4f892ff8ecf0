package routes

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/enrollhub/enrollment-server-go/internal/features/accessrequest"
	"github.com/enrollhub/enrollment-server-go/internal/features/course"
	"github.com/enrollhub/enrollment-server-go/internal/features/enrollment"
	"github.com/enrollhub/enrollment-server-go/internal/features/progress"
	"github.com/enrollhub/enrollment-server-go/internal/middleware"
	"github.com/enrollhub/enrollment-server-go/pkg/cache"
	"github.com/enrollhub/enrollment-server-go/pkg/config"
	"github.com/enrollhub/enrollment-server-go/pkg/events"
	"github.com/enrollhub/enrollment-server-go/pkg/executor"
	"github.com/enrollhub/enrollment-server-go/pkg/health"
	"github.com/enrollhub/enrollment-server-go/pkg/types"
)

// Register wires all feature routes onto the engine.
func Register(engine *gin.Engine, cfg *config.Config, db *gorm.DB, logger *slog.Logger, exec *executor.Service, emitter *events.Emitter, cacheClient *cache.RedisClient) {
	// Health check endpoints (no /api prefix for Kubernetes probes)
	healthHandler := health.NewHandler(db, logger)
	engine.GET("/health", healthHandler.Health)
	engine.GET("/ready", healthHandler.Ready)
	engine.GET("/version", healthHandler.Version)

	// Metrics endpoint for Prometheus
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if !cfg.IsProduction() {
		engine.GET("/debug/db-stats", healthHandler.DBStats)
	}

	auth := middleware.NewAuth(db, cfg.JWTSecret, logger)
	adminOnly := auth.RequireRoles(types.UserTypeAdmin)

	api := engine.Group("/api")
	api.Use(auth.Authenticate())

	course.RegisterRoutes(api, course.NewHandler(db, logger, cacheClient), adminOnly)
	enrollment.RegisterRoutes(api, enrollment.NewHandler(db, logger, exec, emitter), adminOnly)
	progress.RegisterRoutes(api, progress.NewHandler(db, logger, exec, emitter))
	accessrequest.RegisterRoutes(api, accessrequest.NewHandler(db, logger, exec, emitter), adminOnly)
}
