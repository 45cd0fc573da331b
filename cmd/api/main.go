package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	redisclient "github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	mongoadapter "github.com/mhorvath/tickethall/internal/adapters/mongo"
	"github.com/mhorvath/tickethall/internal/adapters/pg"
	redisadapter "github.com/mhorvath/tickethall/internal/adapters/redis"
	"github.com/mhorvath/tickethall/internal/admin"
	"github.com/mhorvath/tickethall/internal/booking"
	"github.com/mhorvath/tickethall/internal/clock"
	"github.com/mhorvath/tickethall/internal/config"
	"github.com/mhorvath/tickethall/internal/event"
	httphandler "github.com/mhorvath/tickethall/internal/http"
	"github.com/mhorvath/tickethall/internal/observability"
	"github.com/mhorvath/tickethall/internal/rateLimit"
	"github.com/mhorvath/tickethall/migrations"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	shutdown, err := observability.SetupOTel(context.Background(), cfg)
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdown()

	logger := observability.NewLogger()
	clk := clock.NewSystem()

	pool, err := pgxpool.New(context.Background(), cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()
	if err := migrations.Apply(context.Background(), pool); err != nil {
		log.Fatalf("failed to apply migrations: %v", err)
	}
	repo := pg.NewRepository(pool)

	var audit *mongoadapter.AuditLogger
	if cfg.MongoURI != "" {
		mongoClient, err := mongo.Connect(context.Background(), options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			log.Fatalf("failed to connect to mongo: %v", err)
		}
		defer mongoClient.Disconnect(context.Background())
		audit = mongoadapter.NewAuditLogger(mongoClient.Database("tickethall"), logger)
	}

	redisClient := redisclient.NewClient(&redisclient.Options{Addr: cfg.RedisAddr})
	cache := redisadapter.NewCache(redisClient)
	idemp := redisadapter.NewIdempotency(redisClient, cfg.IdempotencyTTL)
	rl := rateLimit.NewRateLimiter(redisClient, 100, time.Minute)

	bookingSvc := booking.NewService(repo, clk, logger)
	eventSvc := event.NewService(repo, clk, logger)
	var adminAudit admin.AuditLogger
	if audit != nil {
		adminAudit = audit
	}
	adminSvc := admin.NewService(repo, adminAudit, logger)

	var bookingAudit httphandler.BookingAuditor
	if audit != nil {
		bookingAudit = audit
	}
	handlers := httphandler.NewHandlers(bookingSvc, eventSvc, adminSvc,
		cache, cfg.AvailabilityTTL, idemp, bookingAudit, logger)

	r := httphandler.SetupRouter(handlers, logger, repo, rl)

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutdown Server ...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server Shutdown:", err)
	}
	logger.Info("Server exiting")
}
