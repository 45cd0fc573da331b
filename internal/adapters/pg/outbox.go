package pg

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/mhorvath/tickethall/internal/domain"
)

// InsertOutbox stores an integration event in the same transaction as the
// state change it belongs to; a relay publishes it later.
func (r *Repository) InsertOutbox(ctx context.Context, msg domain.OutboxMessage) error {
	_, err := r.exec(ctx, `
		INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload_json, status, dedupe_key)
		VALUES ($1, $2, $3, $4, $5, 'NEW', $6)
	`, msg.ID, msg.AggregateType, msg.AggregateID, msg.EventType, msg.Payload, msg.DedupeKey)
	if err != nil {
		return errors.Wrap(err, "insert outbox")
	}
	return nil
}

// UnpublishedOutbox returns up to limit oldest NEW messages. Callers run it
// inside WithTx; the SKIP LOCKED row locks then last until commit, so
// concurrent relay instances pick disjoint batches.
func (r *Repository) UnpublishedOutbox(ctx context.Context, limit int) ([]domain.OutboxMessage, error) {
	rows, err := r.query(ctx, `
		SELECT id, aggregate_type, aggregate_id, event_type, payload_json, dedupe_key, created_at, published_at
		FROM outbox WHERE status = 'NEW' ORDER BY created_at ASC LIMIT $1 FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "select unpublished outbox")
	}
	defer rows.Close()

	var out []domain.OutboxMessage
	for rows.Next() {
		var msg domain.OutboxMessage
		err := rows.Scan(&msg.ID, &msg.AggregateType, &msg.AggregateID, &msg.EventType,
			&msg.Payload, &msg.DedupeKey, &msg.CreatedAt, &msg.PublishedAt)
		if err != nil {
			return nil, errors.Wrap(err, "scan outbox row")
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}

func (r *Repository) MarkOutboxPublished(ctx context.Context, id uuid.UUID, publishedAt time.Time) error {
	_, err := r.exec(ctx, `
		UPDATE outbox SET status = 'PUBLISHED', published_at = $2 WHERE id = $1
	`, id, publishedAt)
	if err != nil {
		return errors.Wrap(err, "mark outbox published")
	}
	return nil
}

// OldestUnpublishedAge feeds the outbox lag gauge; zero when the backlog is
// empty.
func (r *Repository) OldestUnpublishedAge(ctx context.Context, now time.Time) (time.Duration, error) {
	var oldest *time.Time
	err := r.queryRow(ctx, `SELECT MIN(created_at) FROM outbox WHERE status = 'NEW'`).Scan(&oldest)
	if err != nil {
		return 0, errors.Wrap(err, "oldest unpublished outbox")
	}
	if oldest == nil {
		return 0, nil
	}
	return now.Sub(*oldest), nil
}
