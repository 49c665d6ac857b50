package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rankstream/internal/api/handlers"
	"rankstream/internal/config"
	"rankstream/internal/eventbus"
	"rankstream/internal/jobs"
	"rankstream/internal/metrics"
	"rankstream/internal/repository"
	"rankstream/internal/service"
	"rankstream/internal/store"
	"rankstream/internal/websocket"
	"rankstream/internal/worker"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	fiberws "github.com/gofiber/websocket/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	metrics.Init()

	db, err := initPostgres(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}
	log.Println("Connected to PostgreSQL")

	redisClient, err := initRedis(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	log.Println("Connected to Redis")

	postgresRepo := repository.NewPostgresRepository(db)
	if err := postgresRepo.AutoMigrate(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Database migrations completed")

	scoreStore := store.NewRedisStore(redisClient, store.TTLs{
		Weekly:  cfg.Engine.WeeklyTTL,
		Monthly: cfg.Engine.MonthlyTTL,
	})

	workerPool := worker.NewPool(20, 1000, postgresRepo)
	workerPool.Start()

	bus, err := initBus(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize event bus: %v", err)
	}

	rankingService := service.NewRankingService(scoreStore, postgresRepo)
	scoringService := service.NewScoringService(scoreStore, rankingService, bus, workerPool)

	hub := websocket.NewHub(rankingService, bus, cfg.Engine.HeartbeatInterval, cfg.Engine.MaxConnAge)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	reconciler := jobs.NewReconciler(scoreStore, postgresRepo, workerPool,
		cfg.Engine.ReconcileInterval, cfg.Engine.SnapshotLimit)
	if err := reconciler.RebuildOnStartup(ctx); err != nil {
		log.Printf("Startup rebuild failed (continuing, store recovers on next sync): %v", err)
	}
	go reconciler.Run(ctx)

	var simulator *jobs.Simulator
	if cfg.Engine.SimulatorEnabled {
		simulator = jobs.NewSimulator(scoringService, postgresRepo, jobs.SimulatorConfig{
			TickInterval: cfg.Engine.SimulatorTick,
		})
		if err := simulator.Start(ctx); err != nil {
			log.Printf("Failed to start simulator: %v", err)
		}
	}

	leaderboardHandler := handlers.NewLeaderboardHandler(
		scoringService, rankingService, hub, scoreStore, postgresRepo)

	app := fiber.New(fiber.Config{
		AppName:      "rankstream",
		ErrorHandler: customErrorHandler,
	})

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format:     "${time} | ${status} | ${latency} | ${method} ${path}\n",
		TimeFormat: "2006-01-02 15:04:05",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept",
	}))

	api := app.Group("/api/v1")
	api.Post("/scores", leaderboardHandler.AwardScore)
	api.Get("/leaderboard", leaderboardHandler.GetLeaderboard)
	api.Get("/standings/:userId", leaderboardHandler.GetStandings)
	api.Get("/status", leaderboardHandler.GetStatus)
	api.Get("/health", leaderboardHandler.HealthCheck)

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	app.Use("/ws", func(c *fiber.Ctx) error {
		if fiberws.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", fiberws.New(func(c *fiberws.Conn) {
		leaderboardHandler.HandleWebSocket(c)
	}))

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		log.Println("Shutting down server...")

		if simulator != nil {
			simulator.Stop()
		}

		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancelShutdown()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			log.Printf("Server forced to shutdown: %v", err)
		}

		// final durable sync so the loss window closes at shutdown
		if err := reconciler.SyncAll(shutdownCtx); err != nil {
			log.Printf("Final sync failed: %v", err)
		}

		cancel() // stops hub and reconciler loops

		if err := workerPool.Shutdown(30 * time.Second); err != nil {
			log.Printf("Worker pool shutdown error: %v", err)
		}
		if err := bus.Close(); err != nil {
			log.Printf("Error closing event bus: %v", err)
		}
		if err := scoreStore.Close(); err != nil {
			log.Printf("Error closing Redis: %v", err)
		}
		if err := postgresRepo.Close(); err != nil {
			log.Printf("Error closing PostgreSQL: %v", err)
		}

		log.Println("Server shutdown complete")
	}()

	port := cfg.Server.Port
	log.Printf("Server starting on port %d...", port)
	if err := app.Listen(fmt.Sprintf(":%d", port)); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// initPostgres initializes PostgreSQL connection with connection pooling
func initPostgres(cfg *config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.GetDSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// pool sized for the async writers plus request-path reads
	sqlDB.SetMaxOpenConns(30)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)
	sqlDB.SetConnMaxIdleTime(2 * time.Minute)

	ctx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelPing()
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, err
	}

	return db, nil
}

// initRedis initializes Redis connection with connection pooling
func initRedis(cfg *config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.GetRedisAddr(),
		Username:     cfg.Redis.Username,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     20,
		MinIdleConns: 5,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelPing()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return client, nil
}

// initBus selects the event bus backend. "nats" lets increments handled by
// one process reach viewer connections held by another.
func initBus(cfg *config.Config) (eventbus.Bus, error) {
	switch cfg.Engine.EventBus {
	case "nats":
		log.Printf("Using NATS event bus at %s", cfg.Engine.NATSURL)
		return eventbus.NewNATSBus(cfg.Engine.NATSURL)
	default:
		return eventbus.NewLocalBus(1024), nil
	}
}

// customErrorHandler handles errors globally
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	return c.Status(code).JSON(fiber.Map{
		"error":   "Request failed",
		"message": err.Error(),
	})
}
