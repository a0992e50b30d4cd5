package routes

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/policygraph/policygraph/internal/api/handlers"
	"github.com/policygraph/policygraph/internal/api/middleware"
	"github.com/policygraph/policygraph/internal/config"
	"github.com/policygraph/policygraph/internal/database"
	"github.com/policygraph/policygraph/internal/logger"
	"github.com/policygraph/policygraph/internal/metrics"
	"github.com/policygraph/policygraph/internal/services"
)

// Register wires up API routes and brings the schema to the current version.
func Register(router *gin.Engine, db *gorm.DB, cfg config.Config) error {
	schemaVersion, err := database.Migrate(db)
	if err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	logger.WithFields(map[string]interface{}{"schema_version": schemaVersion}).Info("schema ready")

	registry := prometheus.NewRegistry()
	metrics.Register(registry)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	router.GET("/api/v1/health", handlers.HealthHandler)

	notifier := services.NewNotificationService(cfg.NotifyURLs)
	authService := services.NewAuthService(db, cfg)
	authHandler := handlers.NewAuthHandler(authService)

	api := router.Group("/api/v1")
	api.POST("/auth/login", authHandler.Login)

	protected := api.Group("")
	protected.Use(middleware.AuthMiddleware(authService))

	handlers.NewPolicyHandler(db, notifier).RegisterRoutes(protected)
	handlers.NewAuditHandler(db).RegisterRoutes(protected)
	handlers.NewBackupHandler(db, notifier).RegisterRoutes(protected)
	handlers.NewTemplateHandler(db).RegisterRoutes(protected)
	handlers.NewThreatHandler(db).RegisterRoutes(protected)

	if err := services.NewTemplateService(db).SeedBuiltins(); err != nil {
		return fmt.Errorf("seed built-in templates: %w", err)
	}

	return nil
}
