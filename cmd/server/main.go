// Package main is the entry point for the application.
// It initializes all dependencies, sets up the HTTP server,
// and starts the application.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/LILIANSRL/chibank/internal/chain"
	"github.com/LILIANSRL/chibank/internal/config"
	"github.com/LILIANSRL/chibank/internal/handlers"
	"github.com/LILIANSRL/chibank/internal/metrics"
	"github.com/LILIANSRL/chibank/internal/middleware"
	"github.com/LILIANSRL/chibank/internal/repositories"
	"github.com/LILIANSRL/chibank/internal/repositories/cache"
	"github.com/LILIANSRL/chibank/internal/routes"
	"github.com/LILIANSRL/chibank/internal/services/walletauth"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/zeromicro/go-zero/core/logx"
)

// main initializes and starts the HTTP server.
// It performs the following setup:
// - Loads configuration
// - Initializes database and Redis connections
// - Dials the configured EVM nodes
// - Configures routes and the nonce sweeper
// - Starts the HTTP server and waits for a shutdown signal
func main() {
	cfg := config.Load()

	logx.MustSetup(logx.LogConf{
		ServiceName: "chibank-api",
		Mode:        cfg.LogMode,
		Level:       cfg.LogLevel,
	})
	defer logx.Close()

	db, err := repositories.Connect(cfg.DB)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := repositories.Migrate(db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("Failed to get database instance: %v", err)
	}
	if err := sqlDB.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}
	logx.Info("Successfully connected to database with connection pooling")

	// Add a periodic check of connection pool stats
	go func() {
		ticker := time.NewTicker(1 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			stats := sqlDB.Stats()
			logx.Infof("DB Stats: Open=%d, Idle=%d, InUse=%d, WaitCount=%d, WaitDuration=%s",
				stats.OpenConnections, stats.Idle, stats.InUse, stats.WaitCount, stats.WaitDuration)
		}
	}()

	redisClient := cache.NewRedisClient(cfg.Redis)
	if err := cache.Ping(context.Background(), redisClient); err != nil {
		logx.Errorf("Redis unavailable, continuing without a warm cache: %v", err)
	}
	cacheService := cache.NewCacheService(redisClient, cfg.Redis.TTL)

	broadcasters := chain.NewBroadcasterRegistry()
	for name, rpcURL := range cfg.EVMRPC {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		b, client, err := chain.DialEVM(ctx, rpcURL)
		cancel()
		if err != nil {
			logx.Errorf("Skipping %s broadcaster: %v", name, err)
			continue
		}
		defer client.Close()
		broadcasters.Register(name, b)
		logx.Infof("Registered %s broadcaster", name)
	}

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName: "chibank-api",
	})

	// CORS middleware
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowMethods:     "GET,POST,HEAD,PUT,DELETE,PATCH",
		AllowCredentials: true,
	}))

	// Middleware
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(middleware.Metrics())

	app.Use("/api/auth/wallet", limiter.New(limiter.Config{
		Max:        5,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests. Please try again later.",
			})
		},
	}))

	// Routes
	svc := routes.SetupRoutes(app, routes.Dependencies{
		Config:      cfg,
		Repos:       repositories.New(db),
		Cache:       cacheService,
		Broadcaster: broadcasters,
		Verifiers:   chain.DefaultVerifiers(),
		Metrics:     metrics.NewCollector(),
		HealthChecks: map[string]handlers.HealthCheckFunc{
			"database": sqlDB.PingContext,
			"redis": func(ctx context.Context) error {
				return cache.Ping(ctx, redisClient)
			},
		},
	})

	sweeper, err := walletauth.StartNonceSweeper(svc.WalletAuth, cfg.NonceSweepInterval)
	if err != nil {
		log.Fatalf("Failed to start nonce sweeper: %v", err)
	}

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			logx.Errorf("Server stopped: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logx.Info("Shutting down server...")

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logx.Errorf("Server forced to shutdown: %v", err)
	}
	if err := sweeper.Shutdown(); err != nil {
		logx.Errorf("Failed to stop nonce sweeper: %v", err)
	}
	if err := cacheService.Close(); err != nil {
		logx.Errorf("Failed to close Redis connection: %v", err)
	}
	if err := sqlDB.Close(); err != nil {
		logx.Errorf("Failed to close database connection: %v", err)
	}
}
