package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/mhorvath/tickethall/internal/clock"
	"github.com/mhorvath/tickethall/internal/domain"
	"github.com/mhorvath/tickethall/internal/observability"
)

const (
	batchSize    = 100
	maxAttempts  = 3
	retryBackoff = 200 * time.Millisecond
)

// Store is the outbox slice of the postgres repository.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	UnpublishedOutbox(ctx context.Context, limit int) ([]domain.OutboxMessage, error)
	MarkOutboxPublished(ctx context.Context, id uuid.UUID, publishedAt time.Time) error
	OldestUnpublishedAge(ctx context.Context, now time.Time) (time.Duration, error)
}

type Broker interface {
	Publish(ctx context.Context, key string, msg amqp.Publishing) error
}

// Publisher relays NEW outbox rows to the message broker. Messages carry the
// dedupe key as MessageId so consumers can drop re-deliveries after a crash
// between publish and mark.
type Publisher struct {
	store  Store
	broker Broker
	clock  clock.Clock
	logger observability.Logger
	period time.Duration
}

func NewPublisher(store Store, broker Broker, clk clock.Clock, logger observability.Logger, period time.Duration) *Publisher {
	return &Publisher{store: store, broker: broker, clock: clk, logger: logger, period: period}
}

// Run drains the outbox on a fixed period until ctx is cancelled.
func (p *Publisher) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := p.drain(ctx); err != nil {
				p.logger.WithError(err).Error("outbox drain failed")
			}
			p.reportLag(ctx)
		}
	}
}

// drain selects and marks inside one transaction so the row locks taken by
// SKIP LOCKED are held until commit and concurrent relay instances pick
// disjoint batches. A crash between publish and commit re-delivers; the
// MessageId dedupe key covers that.
func (p *Publisher) drain(ctx context.Context) error {
	return p.store.WithTx(ctx, func(ctx context.Context) error {
		msgs, err := p.store.UnpublishedOutbox(ctx, batchSize)
		if err != nil {
			return err
		}

		for _, msg := range msgs {
			if err := p.publishWithRetry(ctx, msg); err != nil {
				p.logger.WithField("outbox_id", msg.ID.String()).WithError(err).Error("publish failed, leaving message in outbox")
				continue
			}
			if err := p.store.MarkOutboxPublished(ctx, msg.ID, p.clock.Now()); err != nil {
				return err
			}
		}
		return nil
	})
}

func (p *Publisher) publishWithRetry(ctx context.Context, msg domain.OutboxMessage) error {
	pub := amqp.Publishing{
		MessageId:   msg.DedupeKey,
		ContentType: "application/json",
		Timestamp:   msg.CreatedAt,
		Body:        msg.Payload,
	}

	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			observability.RabbitPublishRetries.Inc()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retryBackoff << attempt):
			}
		}
		if err = p.broker.Publish(ctx, msg.EventType, pub); err == nil {
			return nil
		}
	}
	return err
}

func (p *Publisher) reportLag(ctx context.Context) {
	age, err := p.store.OldestUnpublishedAge(ctx, p.clock.Now())
	if err != nil {
		p.logger.WithError(err).Warn("outbox lag probe failed")
		return
	}
	observability.OutboxLag.Set(age.Seconds())
}
