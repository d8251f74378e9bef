package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/lms-teams-api/api/swagger"
	"github.com/noah-isme/lms-teams-api/internal/handler"
	"github.com/noah-isme/lms-teams-api/internal/middleware"
	"github.com/noah-isme/lms-teams-api/internal/repository"
	"github.com/noah-isme/lms-teams-api/internal/service"
	"github.com/noah-isme/lms-teams-api/pkg/cache"
	"github.com/noah-isme/lms-teams-api/pkg/config"
	"github.com/noah-isme/lms-teams-api/pkg/database"
	"github.com/noah-isme/lms-teams-api/pkg/export"
	"github.com/noah-isme/lms-teams-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/lms-teams-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/lms-teams-api/pkg/middleware/requestid"
)

// @title LMS Teams API
// @version 0.1.0
// @description Team membership import and lookup service
// @BasePath /api/v1
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
		logr.Sugar().Fatalw("failed to connect to database", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, team lookups uncached", "error", err)
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	users := repository.NewUserRepository(db)
	enrollments := repository.NewEnrollmentRepository(db)
	courses := repository.NewCourseRepository(db)
	teams := repository.NewTeamRepository(db)
	events := repository.NewEventRepository(db)
	lookupCache := repository.NewCacheRepository(redisClient, logr)

	metricsSvc := service.NewMetricsService()

	eventSvc := service.NewEventService(events, cfg.Events, logr)
	eventSvc.Start(context.Background())
	defer eventSvc.Stop()

	importSvc := service.NewTeamMembershipImportService(
		users, enrollments, courses, teams, eventSvc, lookupCache, metricsSvc,
		cfg.Import.MaxErrors, logr,
	)
	teamSvc := service.NewTeamService(teams, users, courses, lookupCache, export.NewPDFExporter(), service.TeamServiceConfig{
		DashboardBaseURL: cfg.Teams.DashboardBaseURL,
		LookupCacheTTL:   cfg.Teams.LookupCacheTTL,
		AnonIDNamespace:  cfg.Teams.AnonIDNamespace,
	}, nil, logr)

	importHandler := handler.NewImportHandler(importSvc, cfg.Import.MaxFileSizeBytes)
	teamHandler := handler.NewTeamHandler(teamSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(middleware.Metrics(metricsSvc))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", metricsHandler.Scrape)

	api := r.Group(cfg.APIPrefix)
	api.POST("/courses/:courseId/teams/memberships/import", importHandler.Import)
	api.GET("/courses/:courseId/teams", teamHandler.List)
	api.POST("/courses/:courseId/teams", teamHandler.Create)
	api.GET("/courses/:courseId/teamsets/:teamsetId/team", teamHandler.TeamForUser)
	api.GET("/teams/:id", teamHandler.Get)
	api.GET("/teams/:id/anonymous-member-ids", teamHandler.AnonymousMemberIDs)
	api.GET("/teams/:id/roster.pdf", teamHandler.Roster)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
