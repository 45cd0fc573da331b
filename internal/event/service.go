package event

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/mhorvath/tickethall/internal/clock"
	"github.com/mhorvath/tickethall/internal/domain"
	"github.com/mhorvath/tickethall/internal/observability"
)

// ListFilter narrows the event listing. Statuses is the visibility set the
// caller may see; Status is an optional user-supplied filter within it.
type ListFilter struct {
	Statuses []domain.EventStatus
	DraftsBy *uuid.UUID
	Status   domain.EventStatus
	Category string
	Search   string
	Limit    int
	Offset   int
}

type Repository interface {
	CreateEvent(ctx context.Context, e domain.Event) error
	GetEvent(ctx context.Context, id uuid.UUID) (domain.Event, error)
	UpdateEvent(ctx context.Context, e domain.Event) error
	DeleteEvent(ctx context.Context, id uuid.UUID) error
	ListEvents(ctx context.Context, f ListFilter) ([]domain.Event, error)
	SumConfirmedQuantity(ctx context.Context, eventID uuid.UUID) (int, error)
	SumConfirmedQuantityForIdentity(ctx context.Context, eventID uuid.UUID, identity domain.Identity) (int, error)
}

// Service owns event CRUD and status transitions. Booking admission is not
// here; see the booking package.
type Service struct {
	repo   Repository
	clock  clock.Clock
	logger observability.Logger
}

func NewService(repo Repository, clk clock.Clock, logger observability.Logger) *Service {
	return &Service{repo: repo, clock: clk, logger: logger}
}

type CreateInput struct {
	Title             string
	Description       string
	StartsAt          time.Time
	Location          string
	Category          string
	Capacity          *int
	Price             *decimal.Decimal
	MaxTicketsPerUser *int
	Status            domain.EventStatus
}

func (s *Service) Create(ctx context.Context, creator domain.User, in CreateInput) (domain.Event, error) {
	if !creator.CanManageEvents() {
		return domain.Event{}, domain.ErrForbidden
	}
	if err := validateInput(in.Title, in.StartsAt, in.Capacity, in.Price); err != nil {
		return domain.Event{}, err
	}

	now := s.clock.Now()
	e := domain.Event{
		ID:                uuid.New(),
		CreatedBy:         creator.ID,
		Title:             in.Title,
		Description:       in.Description,
		StartsAt:          in.StartsAt,
		Location:          in.Location,
		Category:          in.Category,
		Capacity:          in.Capacity,
		Price:             in.Price,
		MaxTicketsPerUser: domain.DefaultMaxTicketsPerUser,
		Status:            domain.EventStatusDraft,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if in.MaxTicketsPerUser != nil {
		e.MaxTicketsPerUser = *in.MaxTicketsPerUser
	}
	if in.Status != "" {
		if !in.Status.Valid() {
			return domain.Event{}, domain.NewValidationError("status", "invalid status")
		}
		e.Status = in.Status
	}

	if err := s.repo.CreateEvent(ctx, e); err != nil {
		return domain.Event{}, err
	}
	s.logger.WithField("event_id", e.ID.String()).Info("event created")
	return e, nil
}

type UpdateInput struct {
	Title             *string
	Description       *string
	StartsAt          *time.Time
	Location          *string
	Category          *string
	Capacity          *int
	CapacitySet       bool
	Price             *decimal.Decimal
	PriceSet          bool
	MaxTicketsPerUser *int
}

func (s *Service) Update(ctx context.Context, actor domain.User, id uuid.UUID, in UpdateInput) (domain.Event, error) {
	e, err := s.repo.GetEvent(ctx, id)
	if err != nil {
		return domain.Event{}, err
	}
	if !actor.CanEditEvent(e) {
		return domain.Event{}, domain.ErrForbidden
	}

	if in.Title != nil {
		e.Title = *in.Title
	}
	if in.Description != nil {
		e.Description = *in.Description
	}
	if in.StartsAt != nil {
		e.StartsAt = *in.StartsAt
	}
	if in.Location != nil {
		e.Location = *in.Location
	}
	if in.Category != nil {
		e.Category = *in.Category
	}
	if in.CapacitySet {
		e.Capacity = in.Capacity
	}
	if in.PriceSet {
		e.Price = in.Price
	}
	if in.MaxTicketsPerUser != nil {
		e.MaxTicketsPerUser = *in.MaxTicketsPerUser
	}
	if err := validateInput(e.Title, e.StartsAt, e.Capacity, e.Price); err != nil {
		return domain.Event{}, err
	}

	e.UpdatedAt = s.clock.Now()
	if err := s.repo.UpdateEvent(ctx, e); err != nil {
		return domain.Event{}, err
	}
	return e, nil
}

func (s *Service) Delete(ctx context.Context, actor domain.User, id uuid.UUID) error {
	e, err := s.repo.GetEvent(ctx, id)
	if err != nil {
		return err
	}
	if !actor.CanEditEvent(e) {
		return domain.ErrForbidden
	}
	// bookings go with the event via FK cascade
	return s.repo.DeleteEvent(ctx, id)
}

// ChangeStatus moves an event between draft, published and cancelled.
// Publishing an event that already started is refused.
func (s *Service) ChangeStatus(ctx context.Context, actor domain.User, id uuid.UUID, status domain.EventStatus) (domain.Event, error) {
	if !status.Valid() {
		return domain.Event{}, domain.NewValidationError("status", "invalid status")
	}
	e, err := s.repo.GetEvent(ctx, id)
	if err != nil {
		return domain.Event{}, err
	}
	if !actor.CanEditEvent(e) {
		return domain.Event{}, domain.ErrForbidden
	}
	if status == domain.EventStatusPublished && !e.StartsAt.After(s.clock.Now()) {
		return domain.Event{}, domain.NewValidationError("status", "cannot publish an event that already started")
	}

	e.Status = status
	e.UpdatedAt = s.clock.Now()
	if err := s.repo.UpdateEvent(ctx, e); err != nil {
		return domain.Event{}, err
	}
	s.logger.WithField("event_id", e.ID.String()).
		WithField("status", string(status)).
		Info("event status changed")
	return e, nil
}

// Details is the event plus the display aggregates the resource layer renders.
type Details struct {
	Event          domain.Event
	AvailableSeats *int
	RemainingQuota *int
}

// Get returns the event with its availability and, when a viewer identity is
// known, that identity's remaining quota. Drafts are visible only to their
// creator and admins; everyone else gets not-found.
func (s *Service) Get(ctx context.Context, viewer *domain.User, id uuid.UUID) (Details, error) {
	e, err := s.repo.GetEvent(ctx, id)
	if err != nil {
		return Details{}, err
	}
	if !s.canView(viewer, e) {
		return Details{}, domain.ErrEventNotFound
	}

	d := Details{Event: e}
	g, gctx := errgroup.WithContext(ctx)
	if e.Capacity != nil {
		g.Go(func() error {
			booked, err := s.repo.SumConfirmedQuantity(gctx, e.ID)
			if err != nil {
				return err
			}
			d.AvailableSeats = e.AvailableSeats(booked)
			return nil
		})
	}
	if viewer != nil {
		identity := domain.RegisteredIdentity(viewer.ID)
		g.Go(func() error {
			booked, err := s.repo.SumConfirmedQuantityForIdentity(gctx, e.ID, identity)
			if err != nil {
				return err
			}
			remaining := e.RemainingQuota(booked)
			d.RemainingQuota = &remaining
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Details{}, err
	}
	return d, nil
}

// List applies role-based visibility: guests and users see published and
// cancelled events, organizers additionally their own drafts, admins all.
func (s *Service) List(ctx context.Context, viewer *domain.User, f ListFilter) ([]domain.Event, error) {
	switch {
	case viewer != nil && viewer.IsAdmin():
		f.Statuses = nil
	case viewer != nil && viewer.IsOrganizer():
		f.Statuses = []domain.EventStatus{domain.EventStatusPublished, domain.EventStatusCancelled}
		f.DraftsBy = &viewer.ID
	default:
		f.Statuses = []domain.EventStatus{domain.EventStatusPublished, domain.EventStatusCancelled}
	}
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 15
	}
	return s.repo.ListEvents(ctx, f)
}

func (s *Service) canView(viewer *domain.User, e domain.Event) bool {
	if e.Status == domain.EventStatusPublished || e.Status == domain.EventStatusCancelled {
		return true
	}
	if viewer == nil {
		return false
	}
	return viewer.CanEditEvent(e)
}

func validateInput(title string, startsAt time.Time, capacity *int, price *decimal.Decimal) error {
	fields := domain.FieldErrors{}
	if title == "" {
		fields.Add("title", "title is required")
	}
	if startsAt.IsZero() {
		fields.Add("starts_at", "start time is required")
	}
	if capacity != nil && *capacity < 0 {
		fields.Add("capacity", "capacity cannot be negative")
	}
	if price != nil && price.IsNegative() {
		fields.Add("price", "price cannot be negative")
	}
	if len(fields) > 0 {
		return &domain.ValidationError{Fields: fields}
	}
	return nil
}
