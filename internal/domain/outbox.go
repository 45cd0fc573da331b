package domain

import (
	"time"

	"github.com/google/uuid"
)

// OutboxMessage is an integration event persisted in the same transaction as
// the state change it describes and relayed to the broker asynchronously.
type OutboxMessage struct {
	ID            uuid.UUID
	AggregateType string
	AggregateID   uuid.UUID
	EventType     string
	Payload       []byte
	DedupeKey     string
	CreatedAt     time.Time
	PublishedAt   *time.Time
}
