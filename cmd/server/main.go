package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/voxscribe/api/internal/config"
	"github.com/voxscribe/api/internal/handler"
	"github.com/voxscribe/api/internal/middleware"
	"github.com/voxscribe/api/internal/model"
	"github.com/voxscribe/api/internal/queue"
	"github.com/voxscribe/api/internal/service"
	"github.com/voxscribe/api/internal/storage"
	"github.com/voxscribe/api/internal/store"
	"github.com/voxscribe/api/internal/transcriber"
	"github.com/voxscribe/api/internal/worker"
	ws "github.com/voxscribe/api/internal/websocket"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zapLogger, err := newLogger(cfg.Server.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zapLogger.Sync()

	// Initialize Postgres
	db, err := store.Open(cfg.Postgres.DSN)
	if err != nil {
		zapLogger.Fatal("Failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()
	if err := store.EnsureSchema(db); err != nil {
		zapLogger.Fatal("Failed to ensure schema", zap.Error(err))
	}

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		zapLogger.Warn("Redis not available", zap.Error(err))
	}

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}

	// Initialize Asynq client
	asynqClient := asynq.NewClient(redisOpt)
	defer asynqClient.Close()

	// Initialize stores
	subscriptionStore := store.NewSubscriptionStore(db, zapLogger)
	jobStore := store.NewJobStore(db, zapLogger)
	errorStore := store.NewErrorStore(db)
	planStore := store.NewPlanStore(db)
	paymentStore := store.NewPaymentStore(db)

	// Seed the plan catalog and resolve the default plan
	if err := planStore.Seed(ctx, []model.Plan{
		{
			Name:              model.PlanNameFree,
			Description:       "Free tier with a daily minute allowance",
			TotalLimitMinutes: cfg.Plans.FreeMinutes,
			Currency:          cfg.Plans.Currency,
		},
		{
			Name:              model.PlanNamePro,
			Description:       "Paid tier with priority scheduling",
			TotalLimitMinutes: cfg.Plans.ProMinutes,
			PriceCents:        cfg.Plans.ProPrice,
			Currency:          cfg.Plans.Currency,
			IsPaid:            true,
		},
	}); err != nil {
		zapLogger.Fatal("Failed to seed plans", zap.Error(err))
	}
	freePlan, err := planStore.GetByName(ctx, model.PlanNameFree)
	if err != nil {
		zapLogger.Fatal("Failed to load free plan", zap.Error(err))
	}

	// Initialize object storage
	objectStorage, err := storage.NewMinioStorage(cfg.Storage)
	if err != nil {
		zapLogger.Fatal("Failed to create object storage", zap.Error(err))
	}

	// Initialize validator
	validate := validator.New()

	// Initialize WebSocket hub
	hub := ws.NewHub()
	go hub.Run()

	// Initialize services
	queueClient := queue.NewClient(asynqClient, cfg.Queue.MaxAttempts, cfg.Queue.AdmissionDelay, cfg.Queue.Retention, zapLogger)
	priorityService := service.NewPriorityService(redisClient, cfg.Priority.PaidBase, cfg.Priority.FreeBase)
	admissionService := service.NewAdmissionService(subscriptionStore, jobStore, priorityService, queueClient, freePlan, zapLogger)
	subscriptionService := service.NewSubscriptionService(subscriptionStore, planStore, freePlan, zapLogger)
	paymentService := service.NewPaymentService(paymentStore, planStore, subscriptionService, cfg.Stripe, zapLogger)

	// Initialize handlers
	transcriptionHandler := handler.NewTranscriptionHandler(admissionService, objectStorage, validate)
	subscriptionHandler := handler.NewSubscriptionHandler(subscriptionService)
	paymentHandler := handler.NewPaymentHandler(paymentService, validate)

	// Initialize middleware
	authMiddleware := middleware.NewAuthMiddleware(cfg.JWT.Secret)
	rateLimiter := middleware.NewRateLimiter(redisClient)

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization,Stripe-Signature",
	}))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Stripe signs the webhook payload itself; no bearer auth here
	app.Post("/api/v1/payments/webhook", paymentHandler.Webhook)

	// API routes
	api := app.Group("/api/v1", authMiddleware.Authenticate())

	transcription := api.Group("/transcription")
	transcription.Post("/presign", rateLimiter.PresignLimit(cfg.RateLimit.PresignPerHour), transcriptionHandler.Presign)
	transcription.Post("/queue-job", rateLimiter.SubmitLimit(cfg.RateLimit.SubmitPerHour), transcriptionHandler.QueueJob)
	transcription.Get("/job/:jobId", rateLimiter.StatusLimit(cfg.RateLimit.StatusPerMin), transcriptionHandler.GetJob)

	api.Get("/subscription/usage", subscriptionHandler.Usage)
	api.Get("/plans", subscriptionHandler.Plans)
	api.Post("/payments/checkout", paymentHandler.Checkout)

	// WebSocket routes
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/jobs/:jobId", websocket.New(func(c *websocket.Conn) {
		jobID := c.Params("jobId")
		hub.HandleConnection(c, jobID)
	}))

	// Start Asynq worker server and scheduler
	go startWorkerServer(cfg, redisOpt, jobStore, subscriptionStore, errorStore, subscriptionService, hub, zapLogger)
	go startScheduler(cfg, redisOpt, zapLogger)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		zapLogger.Info("Shutting down server...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			zapLogger.Error("Server shutdown error", zap.Error(err))
		}
	}()

	// Start server
	addr := ":" + cfg.Server.Port
	zapLogger.Info("Server starting", zap.String("addr", addr))
	if err := app.Listen(addr); err != nil {
		zapLogger.Fatal("Server error", zap.Error(err))
	}
}

func startWorkerServer(
	cfg *config.Config,
	redisOpt asynq.RedisClientOpt,
	jobStore *store.JobStore,
	subscriptionStore *store.SubscriptionStore,
	errorStore *store.ErrorStore,
	subscriptionService *service.SubscriptionService,
	hub *ws.Hub,
	zapLogger *zap.Logger,
) {
	outcome := worker.NewOutcomeHandler(jobStore, subscriptionStore, errorStore, hub, zapLogger)

	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: cfg.Queue.Concurrency,
		Queues: map[string]int{
			queue.QueuePaid: cfg.Queue.PaidQueueWeight,
			queue.QueueFree: cfg.Queue.FreeQueueWeight,
		},
		ErrorHandler: asynq.ErrorHandlerFunc(outcome.HandleError),
		RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
			// 30s, 60s, 120s, ...
			return time.Duration(30*(1<<uint(n))) * time.Second
		},
	})

	// Create workers
	transcriptionWorker := worker.NewTranscriptionWorker(jobStore, transcriber.NewSimulated(0.3), hub, zapLogger)
	resetWorker := worker.NewResetWorker(subscriptionService, zapLogger)

	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TaskTypeTranscription, transcriptionWorker.ProcessTask)
	mux.HandleFunc(queue.TaskTypeUsageReset, resetWorker.ProcessTask)

	if err := srv.Run(mux); err != nil {
		zapLogger.Error("Asynq worker error", zap.Error(err))
	}
}

func startScheduler(cfg *config.Config, redisOpt asynq.RedisClientOpt, zapLogger *zap.Logger) {
	scheduler := asynq.NewScheduler(redisOpt, nil)

	if _, err := scheduler.Register(cfg.Queue.ResetCronSpec, queue.NewUsageResetTask(),
		asynq.Queue(queue.QueueFree)); err != nil {
		zapLogger.Error("Failed to register usage reset task", zap.Error(err))
		return
	}

	if err := scheduler.Run(); err != nil {
		zapLogger.Error("Asynq scheduler error", zap.Error(err))
	}
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "SERVICE_ERROR",
			"message": message,
		},
	})
}
