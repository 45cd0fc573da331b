package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type EventStatus string

const (
	EventStatusDraft     EventStatus = "draft"
	EventStatusPublished EventStatus = "published"
	EventStatusCancelled EventStatus = "cancelled"
)

func (s EventStatus) Valid() bool {
	switch s {
	case EventStatusDraft, EventStatusPublished, EventStatusCancelled:
		return true
	}
	return false
}

// DefaultMaxTicketsPerUser is applied when an event is created without an
// explicit per-identity quota.
const DefaultMaxTicketsPerUser = 5

type Event struct {
	ID          uuid.UUID
	CreatedBy   uuid.UUID
	Title       string
	Description string
	StartsAt    time.Time
	Location    string
	Category    string
	// Capacity is the total sellable quantity; nil means unlimited.
	Capacity *int
	// Price is the per-ticket price; nil means free.
	Price *decimal.Decimal
	// MaxTicketsPerUser <= 0 disables booking entirely (quota of zero).
	MaxTicketsPerUser int
	Status            EventStatus
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// BookableAt reports whether the event accepts bookings at the given instant:
// it must be published and start strictly in the future.
func (e Event) BookableAt(now time.Time) bool {
	return e.Status == EventStatusPublished && e.StartsAt.After(now)
}

// UnitPrice returns the per-ticket price, zero for free events.
func (e Event) UnitPrice() decimal.Decimal {
	if e.Price == nil {
		return decimal.Zero
	}
	return *e.Price
}

// RemainingQuota computes how many more tickets the identity may book given
// the quantity it already holds. A non-positive MaxTicketsPerUser yields zero.
func (e Event) RemainingQuota(alreadyBooked int) int {
	if e.MaxTicketsPerUser <= 0 {
		return 0
	}
	remaining := e.MaxTicketsPerUser - alreadyBooked
	if remaining < 0 {
		return 0
	}
	return remaining
}

// AvailableSeats computes remaining capacity given the confirmed quantity sum.
// Returns nil for unlimited-capacity events.
func (e Event) AvailableSeats(bookedQuantity int) *int {
	if e.Capacity == nil {
		return nil
	}
	available := *e.Capacity - bookedQuantity
	if available < 0 {
		available = 0
	}
	return &available
}
