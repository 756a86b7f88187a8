package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"community_inbox/internal/config"
	"community_inbox/internal/handler"
	"community_inbox/internal/middleware"
	"community_inbox/internal/repository"
	"community_inbox/internal/service"
	"community_inbox/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger := logger.New(cfg.Log.Level)

	dbPool, err := pgxpool.New(context.Background(), cfg.Database.DSN)
	if err != nil {
		appLogger.Fatal("Failed to connect to database", "error", err)
	}
	defer dbPool.Close()

	if err := dbPool.Ping(context.Background()); err != nil {
		appLogger.Fatal("Failed to ping database", "error", err)
	}
	appLogger.Info("Database connection established")

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	if err := rdb.Ping(context.Background()).Err(); err != nil {
		appLogger.Fatal("Failed to connect to Redis", "error", err)
	}
	appLogger.Info("Redis connection established")

	repos := repository.NewRepositories(dbPool, rdb, appLogger)
	services := service.NewServices(repos, cfg, appLogger)

	authMiddleware := middleware.NewAuthMiddleware(services.Auth, cfg.Inbox, appLogger)
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(
		services.RateLimit, cfg.Inbox.SendRateLimit, cfg.Inbox.SendRateWindow, appLogger,
	)

	handlers := handler.NewHandlers(services, cfg, appLogger)

	router := setupRouter(handlers, authMiddleware, rateLimitMiddleware, cfg, appLogger)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		appLogger.Info("Starting server", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal("Failed to start server", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Fatal("Server forced to shutdown", "error", err)
	}

	appLogger.Info("Server exited")
}

func setupRouter(
	handlers *handler.Handlers,
	authMiddleware *middleware.AuthMiddleware,
	rateLimitMiddleware *middleware.RateLimitMiddleware,
	cfg *config.Config,
	log logger.Logger,
) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS())
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.ErrorHandler())

	router.GET("/health", handlers.Health.Check)

	v1 := router.Group("/api/v1")
	{
		// The unread badge answers anonymously instead of redirecting.
		v1.GET("/inbox/unread-count", authMiddleware.OptionalAuth(), handlers.Inbox.UnreadCount)

		inbox := v1.Group("/inbox")
		inbox.Use(authMiddleware.RequireAuth())
		{
			inbox.GET("/conversations", handlers.Inbox.ListConversations)
			inbox.GET("/conversations/:id", handlers.Inbox.GetConversation)
			inbox.POST("/conversations/:id/reply", rateLimitMiddleware.Limit(), handlers.Inbox.Reply)
			inbox.POST("/conversations/:id/read", handlers.Inbox.MarkRead)
			inbox.POST("/conversations/:id/archive", handlers.Inbox.Archive)
			inbox.DELETE("/conversations/:id", handlers.Inbox.Delete)
			inbox.POST("/messages/direct", rateLimitMiddleware.Limit(), handlers.Inbox.SendDirect)
			inbox.POST("/messages/business", rateLimitMiddleware.Limit(), handlers.Inbox.SendBusiness)
			inbox.GET("/users/search", handlers.Inbox.SearchUsers)
		}

		admin := v1.Group("/admin")
		admin.Use(authMiddleware.RequireAuth())
		{
			// The admin-role gate itself lives in the messaging service.
			admin.POST("/broadcasts", handlers.Broadcast.Send)
			admin.GET("/broadcasts/recipient-count", handlers.Broadcast.RecipientCount)
		}

		internal := v1.Group("/internal")
		internal.Use(handlers.Internal.RequireSecret())
		{
			internal.POST("/notifications", handlers.Internal.SendNotification)
			internal.POST("/events/member-approved", handlers.Internal.MemberApproved)
			internal.POST("/events/member-rejected", handlers.Internal.MemberRejected)
			internal.POST("/events/listing-approved", handlers.Internal.ListingApproved)
			internal.POST("/events/listing-rejected", handlers.Internal.ListingRejected)
			internal.POST("/events/incident-alert", handlers.Internal.IncidentAlert)
		}
	}

	return router
}
