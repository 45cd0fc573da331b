package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	redisadapter "github.com/mhorvath/tickethall/internal/adapters/redis"
	"github.com/mhorvath/tickethall/internal/admin"
	"github.com/mhorvath/tickethall/internal/booking"
	"github.com/mhorvath/tickethall/internal/domain"
	"github.com/mhorvath/tickethall/internal/event"
	"github.com/mhorvath/tickethall/internal/observability"
)

type BookingService interface {
	CreateBooking(ctx context.Context, eventID uuid.UUID, req booking.CreateRequest) (domain.Booking, error)
	ListByEvent(ctx context.Context, actor domain.User, eventID uuid.UUID) ([]domain.Booking, error)
}

type EventService interface {
	Create(ctx context.Context, creator domain.User, in event.CreateInput) (domain.Event, error)
	Update(ctx context.Context, actor domain.User, id uuid.UUID, in event.UpdateInput) (domain.Event, error)
	Delete(ctx context.Context, actor domain.User, id uuid.UUID) error
	ChangeStatus(ctx context.Context, actor domain.User, id uuid.UUID, status domain.EventStatus) (domain.Event, error)
	Get(ctx context.Context, viewer *domain.User, id uuid.UUID) (event.Details, error)
	List(ctx context.Context, viewer *domain.User, f event.ListFilter) ([]domain.Event, error)
}

type AdminService interface {
	ListUsers(ctx context.Context, f admin.UserFilter) ([]domain.User, int, error)
	SetEnabled(ctx context.Context, acting domain.User, targetID uuid.UUID, enabled bool) (domain.User, error)
}

// AvailabilityCache is the redis slice the read path uses; nil disables it.
type AvailabilityCache interface {
	GetAvailability(ctx context.Context, eventID uuid.UUID) (*int, bool, error)
	SetAvailability(ctx context.Context, eventID uuid.UUID, seats *int, ttl time.Duration) error
	InvalidateAvailability(ctx context.Context, eventID uuid.UUID) error
}

// BookingAuditor records confirmed bookings; nil disables auditing.
type BookingAuditor interface {
	LogBookingCreated(ctx context.Context, b domain.Booking) error
}

type Handlers struct {
	bookings BookingService
	events   EventService
	admins   AdminService
	cache    AvailabilityCache
	cacheTTL time.Duration
	idemp    *redisadapter.Idempotency
	audit    BookingAuditor
	logger   observability.Logger
}

func NewHandlers(bookings BookingService, events EventService, admins AdminService,
	cache AvailabilityCache, cacheTTL time.Duration, idemp *redisadapter.Idempotency,
	audit BookingAuditor, logger observability.Logger) *Handlers {
	return &Handlers{
		bookings: bookings,
		events:   events,
		admins:   admins,
		cache:    cache,
		cacheTTL: cacheTTL,
		idemp:    idemp,
		audit:    audit,
		logger:   logger,
	}
}

func eventIDParam(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	return id, err == nil
}

// CreateBooking admits a booking request for one event. Repeated POSTs with
// the same Idempotency-Key replay the stored response instead of booking
// twice.
func (h *Handlers) CreateBooking(w http.ResponseWriter, r *http.Request) {
	logger := loggerFrom(r.Context(), h.logger)
	key := r.Header.Get("Idempotency-Key")
	if h.idemp != nil && key != "" {
		existing, err := h.idemp.Get(r.Context(), key)
		if err != nil {
			logger.WithError(err).Warn("idempotency lookup failed")
		}
		if existing != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(existing.Status)
			w.Write(existing.Result)
			return
		}
	}

	eventID, ok := eventIDParam(r)
	if !ok {
		renderMessage(w, http.StatusNotFound, "Event not found.")
		return
	}

	var req struct {
		Quantity   int    `json:"quantity"`
		GuestName  string `json:"guest_name"`
		GuestEmail string `json:"guest_email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderMessage(w, http.StatusBadRequest, "malformed request body")
		return
	}

	b, err := h.bookings.CreateBooking(r.Context(), eventID, booking.CreateRequest{
		Requester:  UserFrom(r.Context()),
		GuestName:  req.GuestName,
		GuestEmail: req.GuestEmail,
		Quantity:   req.Quantity,
	})
	if err != nil {
		renderError(w, err)
		return
	}

	if h.cache != nil {
		if err := h.cache.InvalidateAvailability(r.Context(), eventID); err != nil {
			logger.WithError(err).Warn("availability invalidation failed")
		}
	}
	if h.audit != nil {
		if err := h.audit.LogBookingCreated(r.Context(), b); err != nil {
			logger.WithError(err).Warn("booking audit write failed")
		}
	}

	data := renderJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Booking created successfully.",
		"data":    newBookingResource(b),
	})
	if h.idemp != nil && key != "" {
		if err := h.idemp.Set(r.Context(), key, redisadapter.StoredResponse{Status: http.StatusCreated, Result: data}); err != nil {
			logger.WithError(err).Warn("idempotency store failed")
		}
	}
}

// ListBookings returns an event's bookings for organizers and admins.
func (h *Handlers) ListBookings(w http.ResponseWriter, r *http.Request) {
	user := UserFrom(r.Context())
	if user == nil {
		renderError(w, domain.ErrForbidden)
		return
	}
	eventID, ok := eventIDParam(r)
	if !ok {
		renderMessage(w, http.StatusNotFound, "Event not found.")
		return
	}

	bookings, err := h.bookings.ListByEvent(r.Context(), *user, eventID)
	if err != nil {
		renderError(w, err)
		return
	}

	resources := make([]bookingResource, 0, len(bookings))
	for _, b := range bookings {
		resources = append(resources, newBookingResource(b))
	}
	renderJSON(w, http.StatusOK, map[string]interface{}{"data": resources})
}

func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *Handlers) Readyz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Ready"))
}
