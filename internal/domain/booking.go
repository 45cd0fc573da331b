package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type BookingStatus string

const (
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
)

// Booking attributes a ticket quantity for one event to one identity.
// Exactly one of UserID or the guest pair is populated; the Identity
// constructor in NewBooking enforces the split.
type Booking struct {
	ID         uuid.UUID
	EventID    uuid.UUID
	UserID     *uuid.UUID
	GuestName  string
	GuestEmail string
	Quantity   int
	TotalPrice decimal.Decimal
	// StartAt snapshots event.StartsAt at booking time; later event edits do
	// not follow through.
	StartAt   time.Time
	Status    BookingStatus
	CreatedAt time.Time
}

// NewBooking builds a confirmed booking for the given event and identity.
// TotalPrice is quantity times unit price, rounded half-up to two decimals.
func NewBooking(event Event, identity Identity, quantity int, now time.Time) Booking {
	b := Booking{
		ID:         uuid.New(),
		EventID:    event.ID,
		Quantity:   quantity,
		TotalPrice: event.UnitPrice().Mul(decimal.NewFromInt(int64(quantity))).Round(2),
		StartAt:    event.StartsAt,
		Status:     BookingStatusConfirmed,
		CreatedAt:  now,
	}
	if identity.IsRegistered() {
		userID := identity.UserID()
		b.UserID = &userID
	} else {
		b.GuestName = identity.GuestName()
		b.GuestEmail = identity.GuestEmail()
	}
	return b
}

// FormattedTotal renders the total with exactly two decimal digits, a dot
// separator and no grouping.
func (b Booking) FormattedTotal() string {
	return b.TotalPrice.StringFixed(2)
}
