package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/lexfirm/lexcase-api/api/swagger"
	"github.com/lexfirm/lexcase-api/internal/handler"
	internalmiddleware "github.com/lexfirm/lexcase-api/internal/middleware"
	"github.com/lexfirm/lexcase-api/internal/repository"
	"github.com/lexfirm/lexcase-api/internal/service"
	"github.com/lexfirm/lexcase-api/pkg/cache"
	"github.com/lexfirm/lexcase-api/pkg/config"
	"github.com/lexfirm/lexcase-api/pkg/database"
	"github.com/lexfirm/lexcase-api/pkg/logger"
	corsmiddleware "github.com/lexfirm/lexcase-api/pkg/middleware/cors"
	reqidmiddleware "github.com/lexfirm/lexcase-api/pkg/middleware/requestid"
	"github.com/lexfirm/lexcase-api/pkg/password"
)

// @title LexCase Identity API
// @version 0.1.0
// @description Identity, session and permission service for the LexCase practice suite
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close() //nolint:errcheck

	validate := validator.New()

	identityRepo := repository.NewIdentityRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	permissionRepo := repository.NewPermissionRepository(db)
	resetRepo := repository.NewResetRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	metricsSvc := service.NewMetricsService()

	permissionSvc := service.NewPermissionService(permissionRepo, identityRepo, cacheRepo, metricsSvc, logr, service.PermissionConfig{
		CacheTTL:         cfg.Permissions.CacheTTL,
		FullAccessTitles: cfg.Permissions.FullAccessTitles,
	})

	authSvc := service.NewAuthService(identityRepo, sessionRepo, permissionSvc, metricsSvc, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.Sessions.AccessTokenSecret,
		AccessTokenExpiry: cfg.Sessions.AccessTokenExpiry,
		SessionExpiry:     cfg.Sessions.SessionExpiry,
		Issuer:            cfg.Sessions.Issuer,
		SingleSession:     cfg.Sessions.SingleSession,
	})

	lifecycleSvc := service.NewLifecycleService(identityRepo, resetRepo, authSvc, metricsSvc, validate, logr, service.LifecycleConfig{
		Policy:       password.Policy{MinLength: cfg.Password.MinLength},
		HistoryDepth: cfg.Password.HistoryDepth,
	})

	approvalSvc := service.NewApprovalService(identityRepo, resetRepo, validate, logr)
	identitySvc := service.NewIdentityService(identityRepo, permissionSvc, validate, logr)

	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc))

	handler.RegisterRoutes(r, cfg.APIPrefix, handler.Handlers{
		Auth:        handler.NewAuthHandler(authSvc, lifecycleSvc),
		Identity:    handler.NewIdentityHandler(identitySvc),
		Permission:  handler.NewPermissionHandler(permissionSvc),
		Approval:    handler.NewApprovalHandler(approvalSvc),
		AuthService: authSvc,
		Permissions: permissionSvc,
	})

	r.GET("/health", metricsHandler.Health)

	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
