package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Abdullah-608/gigpanda/config"
	"github.com/Abdullah-608/gigpanda/db"
	"github.com/Abdullah-608/gigpanda/handler"
	"github.com/Abdullah-608/gigpanda/middleware"
	"github.com/Abdullah-608/gigpanda/mq"
	"github.com/Abdullah-608/gigpanda/pkg/logger"
	"github.com/Abdullah-608/gigpanda/service"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Load configuration
	cfg, err := config.Load("config.yaml")
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.Init(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})

	slog.Info("configuration loaded successfully")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Postgres
	pool, err := db.NewPool(ctx, cfg.Database.URL)
	if err != nil {
		slog.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	// RabbitMQ producer for the outbox dispatcher
	producer, err := mq.NewProducer(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange)
	if err != nil {
		slog.Error("failed to connect to rabbitmq", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	// Object storage for submission files
	storage, err := service.NewStorageService(&cfg.Minio)
	if err != nil {
		slog.Error("failed to initialize object storage", "error", err)
		os.Exit(1)
	}
	if err := storage.EnsureBucket(ctx); err != nil {
		slog.Error("failed to ensure bucket", "error", err)
		os.Exit(1)
	}

	// Services
	hub := service.NewHub()
	presence := service.NewPresenceService(rdb)
	repo := service.NewRepository(pool)
	contracts := service.NewContractService(pool, repo, hub)
	marketplace := service.NewMarketplaceService(pool, repo, hub)
	messages := service.NewMessageService(pool, hub, presence)
	notifications := service.NewNotificationService(pool)
	users := service.NewUserService(pool)
	dispatcher := service.NewOutboxDispatcher(pool, producer, cfg.Outbox.PollInterval, cfg.Outbox.BatchSize)

	// Handlers
	authHandler := handler.NewAuthHandler(users, &cfg.Auth)
	contractHandler := handler.NewContractHandler(contracts, storage)
	jobHandler := handler.NewJobHandler(marketplace)
	messageHandler := handler.NewMessageHandler(messages, hub, presence)
	notificationHandler := handler.NewNotificationHandler(notifications)

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.Metrics())
	router.Use(middleware.RateLimit(100, time.Minute))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Public routes
	api := router.Group("/api")
	{
		api.POST("/auth/register", authHandler.Register)
		api.POST("/auth/login", authHandler.Login)
	}

	// Protected routes
	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(&cfg.Auth))
	{
		protected.GET("/auth/me", authHandler.Me)

		protected.POST("/jobs", middleware.RequireRole("client"), jobHandler.Create)
		protected.GET("/jobs", jobHandler.List)
		protected.GET("/jobs/:id", jobHandler.Get)
		protected.POST("/jobs/:id/proposals", middleware.RequireRole("freelancer"), jobHandler.CreateProposal)
		protected.GET("/jobs/:id/proposals", jobHandler.ListProposals)
		protected.POST("/jobs/:id/bookmark", jobHandler.ToggleBookmark)
		protected.GET("/bookmarks", jobHandler.ListBookmarks)
		protected.POST("/proposals/:id/accept", middleware.RequireRole("client"), jobHandler.AcceptProposal)

		protected.GET("/contracts", contractHandler.List)
		protected.GET("/contracts/:id", contractHandler.Get)
		protected.POST("/contracts/:id/fund", contractHandler.Fund)
		protected.POST("/contracts/:id/activate", contractHandler.Activate)
		protected.POST("/contracts/:id/complete", contractHandler.Complete)
		protected.POST("/contracts/:id/cancel", contractHandler.Cancel)
		protected.POST("/contracts/:id/milestones/:mid/submit", contractHandler.Submit)
		protected.POST("/contracts/:id/milestones/:mid/review", contractHandler.Review)
		protected.POST("/contracts/:id/milestones/:mid/release", contractHandler.Release)

		protected.GET("/events", messageHandler.Stream)
		protected.POST("/messages", messageHandler.Send)
		protected.GET("/messages/:uid", messageHandler.Conversation)

		protected.GET("/notifications", notificationHandler.List)
		protected.POST("/notifications/:id/read", notificationHandler.MarkRead)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		slog.Info("outbox dispatcher starting", "interval", cfg.Outbox.PollInterval)
		if err := dispatcher.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("server exited with error", "error", err)
		os.Exit(1)
	}

	slog.Info("server exited gracefully")
}
