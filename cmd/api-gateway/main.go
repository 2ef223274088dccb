package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/thesisflow-api/api/swagger"
	"github.com/noah-isme/thesisflow-api/internal/handler"
	"github.com/noah-isme/thesisflow-api/internal/middleware"
	"github.com/noah-isme/thesisflow-api/internal/models"
	"github.com/noah-isme/thesisflow-api/internal/repository"
	"github.com/noah-isme/thesisflow-api/internal/service"
	"github.com/noah-isme/thesisflow-api/pkg/cache"
	"github.com/noah-isme/thesisflow-api/pkg/config"
	"github.com/noah-isme/thesisflow-api/pkg/database"
	"github.com/noah-isme/thesisflow-api/pkg/jobs"
	"github.com/noah-isme/thesisflow-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/thesisflow-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/thesisflow-api/pkg/middleware/requestid"
	"github.com/noah-isme/thesisflow-api/pkg/storage"
)

// @title ThesisFlow API
// @version 1.0.0
// @description Thesis topic proposal and review workflow service
// @BasePath /api/v1
// @schemes http
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	if err := database.RunMigrations(db.DB, logr); err != nil {
		logr.Sugar().Fatalw("failed to run migrations", "error", err)
	}

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close()

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	groupRepo := repository.NewGroupRepository(db)
	proposalRepo := repository.NewProposalRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	authService := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "thesisflow-api",
	})
	userService := service.NewUserService(userRepo, validate, logr)
	groupService := service.NewGroupService(groupRepo, userRepo, validate, logr)

	realtimeService := service.NewRealtimeService(redisClient, cfg.Realtime, logr)

	notificationService := service.NewNotificationService(notificationRepo, groupRepo, jobs.QueueConfig{
		Workers:    cfg.Notifications.Workers,
		MaxRetries: cfg.Notifications.MaxRetries,
		RetryDelay: cfg.Notifications.RetryDelay,
	}, logr, service.WithNotificationPublisher(realtimeService))

	metricsService := service.NewMetricsService()

	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	cacheService := service.NewCacheService(cacheRepo, metricsService, 0, logr, true)

	proposalService := service.NewProposalService(
		proposalRepo, groupRepo, userRepo,
		notificationService, realtimeService,
		validate, logr, cfg.Proposals.MaxEntriesPerSet,
		service.WithProposalCache(cacheService),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	notificationService.StartQueue(rootCtx)
	defer notificationService.StopQueue()

	var exportHandler *handler.ExportHandler
	if cfg.Exports.Enabled {
		store, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("failed to init export storage", "error", err)
		}
		signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
		exportService := service.NewExportService(proposalRepo, groupRepo, store, signer, logr)
		exportHandler = handler.NewExportHandler(exportService)

		go func() {
			ticker := time.NewTicker(cfg.Exports.CleanupInterval)
			defer ticker.Stop()
			for {
				select {
				case <-rootCtx.Done():
					return
				case <-ticker.C:
					exportService.Cleanup(cfg.Exports.SignedURLTTL)
				}
			}
		}()
	}

	authHandler := handler.NewAuthHandler(authService, groupService)
	userHandler := handler.NewUserHandler(userService)
	groupHandler := handler.NewGroupHandler(groupService)
	proposalHandler := handler.NewProposalHandler(proposalService)
	notificationHandler := handler.NewNotificationHandler(notificationService)
	eventHandler := handler.NewEventHandler(realtimeService, proposalService)
	metricsHandler := handler.NewMetricsHandler(metricsService)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))

	r.GET("/health", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", middleware.JWT(authService), authHandler.Logout)
		auth.POST("/change-password", middleware.JWT(authService), authHandler.ChangePassword)
		auth.POST("/forgot-password", authHandler.ForgotPassword)
		auth.POST("/reset-password", authHandler.ResetPassword)
		auth.GET("/me", middleware.JWT(authService), authHandler.Me)
	}

	protected := api.Group("")
	protected.Use(middleware.JWT(authService))

	users := protected.Group("/users")
	users.Use(middleware.RequireRoles(models.RoleAdmin))
	{
		users.GET("", userHandler.List)
		users.POST("", userHandler.Create)
		users.GET("/:id", userHandler.Get)
		users.PUT("/:id", userHandler.Update)
		users.DELETE("/:id", userHandler.Delete)
	}

	groups := protected.Group("/groups")
	{
		groups.GET("", groupHandler.List)
		groups.POST("", middleware.RequireRoles(models.RoleAdmin, models.RoleHead), groupHandler.Create)
		groups.GET("/:groupId", groupHandler.Get)
		groups.PUT("/:groupId", middleware.RequireRoles(models.RoleAdmin, models.RoleHead), groupHandler.Update)

		groups.GET("/:groupId/proposal-sets", proposalHandler.ListByGroup)
		groups.POST("/:groupId/proposal-sets", middleware.RequireRoles(models.RoleStudent), proposalHandler.Create)
		groups.GET("/:groupId/events", eventHandler.Stream)
	}

	sets := protected.Group("/proposal-sets")
	{
		sets.GET("/pending", middleware.RequireRoles(models.RoleModerator, models.RoleHead, models.RoleAdmin), proposalHandler.ListPending)
		sets.GET("/:id", proposalHandler.Get)
		sets.PUT("/:id/entries", middleware.RequireRoles(models.RoleStudent), proposalHandler.UpdateEntries)
		sets.POST("/:id/submit", middleware.RequireRoles(models.RoleStudent), proposalHandler.Submit)
		sets.POST("/:id/entries/:proposalId/moderator-decision",
			middleware.RequireRoles(models.RoleModerator, models.RoleAdmin), proposalHandler.ModeratorDecision)
		sets.POST("/:id/entries/:proposalId/head-decision",
			middleware.RequireRoles(models.RoleHead, models.RoleAdmin), proposalHandler.HeadDecision)
		sets.POST("/:id/mark-as-thesis", middleware.RequireRoles(models.RoleStudent), proposalHandler.MarkAsThesis)
		sets.GET("/:id/reviews", proposalHandler.Reviews)
	}

	notifications := protected.Group("/notifications")
	{
		notifications.GET("", notificationHandler.List)
		notifications.POST("/:id/read", notificationHandler.MarkRead)
	}

	protected.GET("/system/metrics", middleware.RequireRoles(models.RoleAdmin), metricsHandler.Snapshot)

	if exportHandler != nil {
		api.GET("/exports/download", exportHandler.Download)
		protected.POST("/groups/:groupId/exports/history", exportHandler.GroupHistory)
		protected.POST("/proposal-sets/:id/exports/reviews", exportHandler.ReviewLog)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-rootCtx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
