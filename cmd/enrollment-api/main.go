package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/edusphere/enrollment-api/api/swagger"
	"github.com/edusphere/enrollment-api/internal/handler"
	"github.com/edusphere/enrollment-api/internal/middleware"
	"github.com/edusphere/enrollment-api/internal/models"
	"github.com/edusphere/enrollment-api/internal/repository"
	"github.com/edusphere/enrollment-api/internal/service"
	"github.com/edusphere/enrollment-api/pkg/config"
	"github.com/edusphere/enrollment-api/pkg/database"
	"github.com/edusphere/enrollment-api/pkg/logger"
	corsmiddleware "github.com/edusphere/enrollment-api/pkg/middleware/cors"
	reqidmiddleware "github.com/edusphere/enrollment-api/pkg/middleware/requestid"
)

// @title Enrollment API
// @version 1.0.0
// @description Student enrollment records with weighted final grades
// @BasePath /
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	enrollmentRepo := repository.NewEnrollmentRepository(db)
	catalogRepo := repository.NewCourseCatalogRepository(cfg.Catalog)

	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, catalogRepo, nil, logr)
	policy := service.NewAccessPolicy(catalogRepo)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentSvc, policy)

	var metricsSvc *service.MetricsService
	if cfg.Metrics.Enabled {
		metricsSvc = service.NewMetricsService()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	if metricsSvc != nil {
		r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))
	}

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	enrollments := api.Group("/enrollments")
	enrollments.Use(middleware.JWT(cfg.JWT.Secret))
	enrollments.POST("", middleware.RequireRoles(models.RoleAdmin, models.RoleStudent), enrollmentHandler.Create)
	enrollments.GET("", middleware.RequireRoles(models.RoleAdmin, models.RoleProfessor, models.RoleStudent), enrollmentHandler.List)
	enrollments.GET("/:id", middleware.RequireRoles(models.RoleAdmin, models.RoleProfessor, models.RoleStudent), enrollmentHandler.Get)
	enrollments.PUT("/:id", middleware.RequireRoles(models.RoleProfessor, models.RoleAdmin), enrollmentHandler.Update)
	enrollments.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin, models.RoleStudent), enrollmentHandler.Delete)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
