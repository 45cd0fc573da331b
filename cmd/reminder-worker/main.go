package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/mhorvath/tickethall/internal/adapters/pg"
	"github.com/mhorvath/tickethall/internal/adapters/rabbit"
	"github.com/mhorvath/tickethall/internal/config"
	"github.com/mhorvath/tickethall/internal/domain"
	"github.com/mhorvath/tickethall/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	shutdownOtel, err := observability.SetupOTel(context.Background(), cfg)
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdownOtel()

	logger := observability.NewLogger()

	pool, err := pgxpool.New(context.Background(), cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()
	repo := pg.NewRepository(pool)

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("failed to connect to rabbitmq: %v", err)
	}
	defer conn.Close()
	rabbitPub, err := rabbit.NewPublisher(conn)
	if err != nil {
		log.Fatalf("failed to create publisher: %v", err)
	}

	worker := NewReminderWorker(repo, rabbitPub, logger, cfg.ReminderWindow)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go worker.Run(ctx, time.Minute)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("Shutdown reminder worker")
}

type reminderBroker interface {
	Publish(ctx context.Context, key string, msg amqp.Publishing) error
}

// ReminderWorker publishes an event.starting_soon message once per published
// event whose start falls inside the lookahead window.
type ReminderWorker struct {
	repo      *pg.Repository
	rabbitPub reminderBroker
	logger    observability.Logger
	window    time.Duration
}

func NewReminderWorker(repo *pg.Repository, rabbitPub reminderBroker, logger observability.Logger, window time.Duration) *ReminderWorker {
	return &ReminderWorker{repo: repo, rabbitPub: rabbitPub, logger: logger, window: window}
}

func (w *ReminderWorker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			events, err := w.repo.ListEventsDueReminder(ctx, now, now.Add(w.window))
			if err != nil {
				w.logger.WithError(err).Error("failed to list events due reminder")
				continue
			}
			for _, e := range events {
				if err := w.remindWithRetry(ctx, e); err != nil {
					w.logger.WithField("event_id", e.ID.String()).
						WithError(err).
						Error("failed to publish reminder after retries")
					continue
				}
				if err := w.repo.MarkReminderSent(ctx, e.ID, time.Now().UTC()); err != nil {
					w.logger.WithError(err).Error("failed to mark reminder sent")
				}
			}
		}
	}
}

func (w *ReminderWorker) remindWithRetry(ctx context.Context, e domain.Event) error {
	payload, _ := json.Marshal(map[string]interface{}{
		"event_id":  e.ID,
		"title":     e.Title,
		"starts_at": e.StartsAt.Format(time.RFC3339),
	})
	msg := amqp.Publishing{
		MessageId:   uuid.New().String(),
		ContentType: "application/json",
		Body:        payload,
	}

	maxRetries := 3
	var err error
	for i := 0; i < maxRetries; i++ {
		if i > 0 {
			backoff := time.Duration(1<<(i-1)) * time.Second
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}
		if err = w.rabbitPub.Publish(ctx, "event.starting_soon", msg); err == nil {
			return nil
		}
	}
	return fmt.Errorf("publish reminder after %d attempts: %w", maxRetries, err)
}
