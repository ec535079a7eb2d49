package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/family-console-api/api/swagger"
	"github.com/noah-isme/family-console-api/internal/handler"
	internalmiddleware "github.com/noah-isme/family-console-api/internal/middleware"
	"github.com/noah-isme/family-console-api/internal/models"
	"github.com/noah-isme/family-console-api/internal/repository"
	"github.com/noah-isme/family-console-api/internal/service"
	"github.com/noah-isme/family-console-api/pkg/cache"
	"github.com/noah-isme/family-console-api/pkg/config"
	"github.com/noah-isme/family-console-api/pkg/database"
	"github.com/noah-isme/family-console-api/pkg/export"
	"github.com/noah-isme/family-console-api/pkg/jobs"
	"github.com/noah-isme/family-console-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/family-console-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/family-console-api/pkg/middleware/requestid"
)

// @title Family Console API
// @version 1.0.0
// @description Family builder and job assignment console
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	var redisClient *redis.Client
	var cacheRepo service.CacheRepository
	if cfg.Cache.Enabled {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, caching disabled", zap.Error(err))
		} else {
			defer redisClient.Close() //nolint:errcheck
			cacheRepo = repository.NewCacheRepository(redisClient, cfg.Cache.Namespace, logr)
		}
	}

	validate := validator.New()
	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.FamilyTTL, logr, cacheRepo != nil)

	userRepo := repository.NewUserRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	jobRepo := repository.NewJobRepository(db, cfg.Jobs.MaxPerStudent)
	familyRepo := repository.NewFamilyRepository(db)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	studentSvc := service.NewStudentService(studentRepo, cacheSvc, service.StudentServiceConfig{
		MaxJobsPerStudent: cfg.Jobs.MaxPerStudent,
		PoolTTL:           cfg.Cache.StudentTTL,
	}, validate, logr)
	jobSvc := service.NewJobService(jobRepo, cacheSvc, metricsSvc, cfg.Jobs.MaxPerStudent, validate, logr)
	familySvc := service.NewFamilyService(familyRepo, studentSvc, cacheSvc, metricsSvc, cfg.Cache.FamilyTTL, validate, logr)
	exportSvc := service.NewExportService(familySvc, export.NewCSVExporter(','), export.NewPDFExporter(), logr)

	autoAssignSvc := service.NewAutoAssignService(
		familySvc,
		studentSvc,
		service.NewHTTPChildMatcher(cfg.AutoAssign.URL, cfg.AutoAssign.Timeout),
		metricsSvc,
		service.AutoAssignConfig{Enabled: cfg.AutoAssign.Enabled, MaxRetries: cfg.AutoAssign.Retries},
		validate,
		logr,
	)
	autoAssignQueue := jobs.NewQueue("auto-assign", autoAssignSvc.Handle, jobs.QueueConfig{
		Workers:    cfg.AutoAssign.Workers,
		MaxRetries: cfg.AutoAssign.Retries,
		Logger:     logr,
	})
	autoAssignSvc.SetQueue(autoAssignQueue)
	autoAssignQueue.Start(ctx)
	defer autoAssignQueue.Stop()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc, "/metrics", "/health", "/ready"))
	r.Use(internalmiddleware.WithResponseMeta())

	metricsHandler := handler.NewMetricsHandler(metricsSvc, readinessChecks(db, redisClient)...)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	registerRoutes(r.Group(cfg.APIPrefix), routeDeps{
		auth:       handler.NewAuthHandler(authSvc),
		students:   handler.NewStudentHandler(studentSvc),
		jobs:       handler.NewJobHandler(jobSvc),
		families:   handler.NewFamilyHandler(familySvc, exportSvc),
		autoAssign: handler.NewAutoAssignHandler(autoAssignSvc),
		metrics:    metricsHandler,
		authSvc:    authSvc,
		audit:      userRepo,
		logger:     logr,
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

type routeDeps struct {
	auth       *handler.AuthHandler
	students   *handler.StudentHandler
	jobs       *handler.JobHandler
	families   *handler.FamilyHandler
	autoAssign *handler.AutoAssignHandler
	metrics    *handler.MetricsHandler
	authSvc    *service.AuthService
	audit      *repository.UserRepository
	logger     *zap.Logger
}

func registerRoutes(api *gin.RouterGroup, d routeDeps) {
	editor := internalmiddleware.RequireRoles(models.RoleAdmin)
	audit := func(action, resource string) gin.HandlerFunc {
		return internalmiddleware.Audit(d.audit, d.logger, action, resource)
	}

	api.POST("/auth/login", d.auth.Login)

	secured := api.Group("")
	secured.Use(internalmiddleware.JWT(d.authSvc))
	secured.GET("/auth/me", d.auth.Me)
	secured.GET("/system/metrics", editor, d.metrics.Snapshot)

	students := secured.Group("/students")
	students.GET("", d.students.List)
	students.GET("/eligible", d.students.Eligible)
	students.GET("/:id", d.students.Get)
	students.POST("", editor, audit(models.AuditActionCreate, "student"), d.students.Create)
	students.PUT("/:id", editor, audit(models.AuditActionUpdate, "student"), d.students.Update)
	students.DELETE("/:id", editor, audit(models.AuditActionDelete, "student"), d.students.Delete)

	jobsGroup := secured.Group("/jobs")
	jobsGroup.GET("", d.jobs.List)
	jobsGroup.GET("/types", d.jobs.TypeOptions)
	jobsGroup.GET("/:id", d.jobs.Get)
	jobsGroup.POST("", editor, audit(models.AuditActionCreate, "job"), d.jobs.Create)
	jobsGroup.PUT("/:id", editor, audit(models.AuditActionUpdate, "job"), d.jobs.Update)
	jobsGroup.DELETE("/:id", editor, audit(models.AuditActionDelete, "job"), d.jobs.Delete)

	families := secured.Group("/families")
	families.GET("", d.families.List)
	families.GET("/:id", d.families.Get)
	families.GET("/:id/roster", d.families.Roster)
	families.POST("/validate", d.families.Validate)
	families.POST("/candidates", d.families.Candidates)
	families.POST("/assign-slot", d.families.AssignSlot)
	families.POST("", editor, audit(models.AuditActionCreate, "family"), d.families.Create)
	families.PUT("/:id", editor, audit(models.AuditActionUpdate, "family"), d.families.Update)
	families.PATCH("/:id/status", editor, audit(models.AuditActionStatusChange, "family"), d.families.UpdateStatus)

	autoAssign := secured.Group("/auto-assign/runs")
	autoAssign.POST("", editor, audit(models.AuditActionCreate, "auto_assign_run"), d.autoAssign.Start)
	autoAssign.GET("/:id", d.autoAssign.Get)
}

func readinessChecks(db *sqlx.DB, redisClient *redis.Client) []handler.ReadinessCheck {
	checks := []handler.ReadinessCheck{{Name: "postgres", Ping: db.PingContext}}
	if redisClient != nil {
		checks = append(checks, handler.ReadinessCheck{Name: "redis", Ping: func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}})
	}
	return checks
}
