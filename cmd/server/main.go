package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"haryali/internal/config"
	"haryali/internal/database"
	"haryali/internal/handler"
	"haryali/internal/middleware"
	"haryali/internal/queue"
	"haryali/internal/repository"
	"haryali/internal/router"
	"haryali/internal/service"
)

// sweepInterval controls how often naturally expired refresh-token rows are
// pruned from the store.
const sweepInterval = time.Hour

func main() {
	// .env is a development convenience; production gets real env vars.
	if os.Getenv("APP_ENV") != "production" {
		_ = godotenv.Load()
	}

	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := database.EnsureSchema(ctx, db); err != nil {
		cancel()
		log.Fatalf("schema: %v", err)
	}
	cancel()

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)

	// Redis is optional: without it the limiter becomes a no-op.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Println("redis unavailable, rate limiting disabled")
	}
	limiter := middleware.RateLimit(config.LoadRateLimitConfig(), rdb)

	authHandler := handler.NewAuthHandler(cfg, users, tokens, service.NewPublisher())

	e := echo.New()
	e.HideBanner = true
	router.RegisterRoutes(e)
	router.RegisterAuth(e, authHandler, handler.NewDashboardHandler(), users, limiter)

	// Background: prune expired refresh tokens and record signup events.
	go sweepExpiredTokens(tokens)
	go func() {
		if err := queue.StartRegistrationConsumer(); err != nil {
			log.Printf("signup consumer stopped: %v", err)
		}
	}()

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}

func sweepExpiredTokens(tokens *repository.TokenRepo) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for range ticker.C {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		n, err := tokens.DeleteExpired(ctx)
		cancel()
		if err != nil {
			log.Printf("token sweep failed: %v", err)
			continue
		}
		if n > 0 {
			log.Printf("token sweep removed %d expired refresh tokens", n)
		}
	}
}
