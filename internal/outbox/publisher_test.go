package outbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/mhorvath/tickethall/internal/clock"
	"github.com/mhorvath/tickethall/internal/domain"
	"github.com/mhorvath/tickethall/internal/observability"
)

type txMark struct{}

// fakeStore tracks which calls arrive on the transaction context handed out
// by WithTx.
type fakeStore struct {
	msgs      []domain.OutboxMessage
	published map[uuid.UUID]time.Time

	selectInTx bool
	markInTx   bool
}

func newFakeStore(msgs ...domain.OutboxMessage) *fakeStore {
	return &fakeStore{msgs: msgs, published: make(map[uuid.UUID]time.Time)}
}

func (s *fakeStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(context.WithValue(ctx, txMark{}, true))
}

func (s *fakeStore) UnpublishedOutbox(ctx context.Context, limit int) ([]domain.OutboxMessage, error) {
	s.selectInTx = ctx.Value(txMark{}) != nil
	var out []domain.OutboxMessage
	for _, m := range s.msgs {
		if _, ok := s.published[m.ID]; !ok {
			out = append(out, m)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *fakeStore) MarkOutboxPublished(ctx context.Context, id uuid.UUID, publishedAt time.Time) error {
	s.markInTx = ctx.Value(txMark{}) != nil
	s.published[id] = publishedAt
	return nil
}

func (s *fakeStore) OldestUnpublishedAge(ctx context.Context, now time.Time) (time.Duration, error) {
	return 0, nil
}

type fakeBroker struct {
	sent     []amqp.Publishing
	keys     []string
	failKeys map[string]int
}

func (b *fakeBroker) Publish(_ context.Context, key string, msg amqp.Publishing) error {
	if b.failKeys[key] > 0 {
		b.failKeys[key]--
		return errors.New("channel closed")
	}
	b.sent = append(b.sent, msg)
	b.keys = append(b.keys, key)
	return nil
}

func outboxMessage(eventType string) domain.OutboxMessage {
	return domain.OutboxMessage{
		ID:            uuid.New(),
		AggregateType: "booking",
		AggregateID:   uuid.New(),
		EventType:     eventType,
		Payload:       []byte(`{"booking_id":"x"}`),
		DedupeKey:     uuid.NewString(),
		CreatedAt:     time.Now().UTC(),
	}
}

func TestPublisherDrain(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	logger := observability.NewLogger()

	t.Run("selects and marks inside one transaction", func(t *testing.T) {
		msg := outboxMessage("booking.created")
		store := newFakeStore(msg)
		broker := &fakeBroker{}
		p := NewPublisher(store, broker, clock.NewFixed(now), logger, time.Second)

		if err := p.drain(context.Background()); err != nil {
			t.Fatal(err)
		}
		if !store.selectInTx || !store.markInTx {
			t.Errorf("selectInTx = %v, markInTx = %v, want both inside the transaction", store.selectInTx, store.markInTx)
		}
		if got := store.published[msg.ID]; !got.Equal(now) {
			t.Errorf("published at %v, want %v", got, now)
		}
		if len(broker.sent) != 1 || broker.sent[0].MessageId != msg.DedupeKey {
			t.Errorf("sent = %+v, want one publishing with MessageId %s", broker.sent, msg.DedupeKey)
		}
		if broker.keys[0] != "booking.created" {
			t.Errorf("routing key = %s, want booking.created", broker.keys[0])
		}
	})

	t.Run("transient publish failure is retried", func(t *testing.T) {
		msg := outboxMessage("booking.created")
		store := newFakeStore(msg)
		broker := &fakeBroker{failKeys: map[string]int{"booking.created": 2}}
		p := NewPublisher(store, broker, clock.NewFixed(now), logger, time.Second)

		if err := p.drain(context.Background()); err != nil {
			t.Fatal(err)
		}
		if _, ok := store.published[msg.ID]; !ok {
			t.Error("message not marked published after retries succeeded")
		}
	})

	t.Run("exhausted publish leaves the row for the next drain", func(t *testing.T) {
		failing := outboxMessage("booking.created")
		healthy := outboxMessage("event.starting_soon")
		store := newFakeStore(failing, healthy)
		broker := &fakeBroker{failKeys: map[string]int{"booking.created": maxAttempts}}
		p := NewPublisher(store, broker, clock.NewFixed(now), logger, time.Second)

		if err := p.drain(context.Background()); err != nil {
			t.Fatal(err)
		}
		if _, ok := store.published[failing.ID]; ok {
			t.Error("failed message was marked published")
		}
		if _, ok := store.published[healthy.ID]; !ok {
			t.Error("healthy message was not published past the failing one")
		}
	})
}
