package booking

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/mhorvath/tickethall/internal/clock"
	"github.com/mhorvath/tickethall/internal/domain"
	"github.com/mhorvath/tickethall/internal/observability"
)

// Repository is the persistence surface the admission controller needs.
// WithTx runs fn inside one transaction; all repository calls made with the
// context it passes to fn observe that transaction.
type Repository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	// GetEventForUpdate reads the event row under an exclusive row lock held
	// until the surrounding transaction ends.
	GetEventForUpdate(ctx context.Context, id uuid.UUID) (domain.Event, error)
	GetEvent(ctx context.Context, id uuid.UUID) (domain.Event, error)
	// SumConfirmedQuantity is the total confirmed quantity for the event.
	SumConfirmedQuantity(ctx context.Context, eventID uuid.UUID) (int, error)
	// SumConfirmedQuantityForIdentity sums confirmed quantity attributed to
	// one identity: by user id for registered bookings, by guest email with a
	// null user id otherwise.
	SumConfirmedQuantityForIdentity(ctx context.Context, eventID uuid.UUID, identity domain.Identity) (int, error)
	CreateBooking(ctx context.Context, b domain.Booking) error
	InsertOutbox(ctx context.Context, msg domain.OutboxMessage) error
	ListBookingsByEvent(ctx context.Context, eventID uuid.UUID) ([]domain.Booking, error)
}

// Service decides whether a booking request may proceed. All admission
// guards run inside a single transaction against the locked event row, so
// concurrent requests for the same event are serialized and never admit more
// than capacity or quota allow.
type Service struct {
	repo   Repository
	clock  clock.Clock
	logger observability.Logger
}

func NewService(repo Repository, clk clock.Clock, logger observability.Logger) *Service {
	return &Service{repo: repo, clock: clk, logger: logger}
}

// CreateRequest carries the resolved requester and the raw guest fields from
// the request body. Requester nil means an unauthenticated caller, which must
// supply both guest fields.
type CreateRequest struct {
	Requester  *domain.User
	GuestName  string
	GuestEmail string
	Quantity   int
}

const (
	rejectNotBookable = "not_bookable"
	rejectQuota       = "quota_exceeded"
	rejectCapacity    = "capacity_exceeded"
)

// CreateBooking runs the admission transaction for one event: lock the event
// row, re-check bookability, per-identity quota, and capacity against the
// locked state, then persist exactly one confirmed booking together with its
// outbox message. Any guard failure rolls the transaction back with no
// partial writes.
func (s *Service) CreateBooking(ctx context.Context, eventID uuid.UUID, req CreateRequest) (domain.Booking, error) {
	identity, err := resolveIdentity(req)
	if err != nil {
		return domain.Booking{}, err
	}

	var booking domain.Booking
	start := time.Now()
	err = s.repo.WithTx(ctx, func(txCtx context.Context) error {
		event, err := s.repo.GetEventForUpdate(txCtx, eventID)
		if err != nil {
			return err
		}

		if !event.BookableAt(s.clock.Now()) {
			observability.BookingRejections.WithLabelValues(rejectNotBookable).Inc()
			return domain.ErrNotBookable
		}

		alreadyBooked, err := s.repo.SumConfirmedQuantityForIdentity(txCtx, eventID, identity)
		if err != nil {
			return err
		}
		remaining := event.RemainingQuota(alreadyBooked)
		if req.Quantity > remaining {
			observability.BookingRejections.WithLabelValues(rejectQuota).Inc()
			return &domain.QuotaExceededError{Remaining: remaining}
		}

		if event.Capacity != nil {
			booked, err := s.repo.SumConfirmedQuantity(txCtx, eventID)
			if err != nil {
				return err
			}
			available := *event.AvailableSeats(booked)
			if req.Quantity > available {
				observability.BookingRejections.WithLabelValues(rejectCapacity).Inc()
				return &domain.CapacityExceededError{Available: available}
			}
		}

		booking = domain.NewBooking(event, identity, req.Quantity, s.clock.Now())
		if err := s.repo.CreateBooking(txCtx, booking); err != nil {
			return err
		}
		return s.repo.InsertOutbox(txCtx, bookingCreatedMessage(booking))
	})
	observability.DBTxDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return domain.Booking{}, err
	}

	observability.BookingsTotal.Inc()
	s.logger.WithField("booking_id", booking.ID.String()).
		WithField("event_id", eventID.String()).
		WithField("quantity", booking.Quantity).
		Info("booking confirmed")
	return booking, nil
}

// AvailableSeats reports remaining capacity for display purposes; nil means
// unlimited. It reads without locking, so the value is advisory: the
// admission transaction is the source of truth.
func (s *Service) AvailableSeats(ctx context.Context, eventID uuid.UUID) (*int, error) {
	event, err := s.repo.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.Capacity == nil {
		return nil, nil
	}
	booked, err := s.repo.SumConfirmedQuantity(ctx, eventID)
	if err != nil {
		return nil, err
	}
	return event.AvailableSeats(booked), nil
}

// RemainingQuota reports how many more tickets the identity may book for the
// event, for display purposes.
func (s *Service) RemainingQuota(ctx context.Context, eventID uuid.UUID, identity domain.Identity) (int, error) {
	event, err := s.repo.GetEvent(ctx, eventID)
	if err != nil {
		return 0, err
	}
	alreadyBooked, err := s.repo.SumConfirmedQuantityForIdentity(ctx, eventID, identity)
	if err != nil {
		return 0, err
	}
	return event.RemainingQuota(alreadyBooked), nil
}

// ListByEvent returns the event's bookings for the organizer view. Only
// admins and the event's owner may see them.
func (s *Service) ListByEvent(ctx context.Context, actor domain.User, eventID uuid.UUID) ([]domain.Booking, error) {
	event, err := s.repo.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !actor.CanEditEvent(event) {
		return nil, domain.ErrForbidden
	}
	return s.repo.ListBookingsByEvent(ctx, eventID)
}

func resolveIdentity(req CreateRequest) (domain.Identity, error) {
	fields := domain.FieldErrors{}
	if req.Quantity < 1 {
		fields.Add("quantity", "quantity must be at least 1")
	}
	if req.Requester == nil {
		if req.GuestName == "" {
			fields.Add("guest_name", "guest name is required for guest bookings")
		}
		if req.GuestEmail == "" {
			fields.Add("guest_email", "guest email is required for guest bookings")
		}
	}
	if len(fields) > 0 {
		return domain.Identity{}, &domain.ValidationError{Fields: fields}
	}
	if req.Requester != nil {
		return domain.RegisteredIdentity(req.Requester.ID), nil
	}
	return domain.GuestIdentity(req.GuestName, req.GuestEmail), nil
}

func bookingCreatedMessage(b domain.Booking) domain.OutboxMessage {
	payload, _ := json.Marshal(map[string]interface{}{
		"booking_id":  b.ID,
		"event_id":    b.EventID,
		"quantity":    b.Quantity,
		"total_price": b.FormattedTotal(),
	})
	return domain.OutboxMessage{
		ID:            uuid.New(),
		AggregateType: "booking",
		AggregateID:   b.ID,
		EventType:     "booking.created",
		Payload:       payload,
		DedupeKey:     uuid.New().String(),
	}
}
