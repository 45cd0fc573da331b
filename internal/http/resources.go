package http

import (
	"time"

	"github.com/mhorvath/tickethall/internal/domain"
	"github.com/mhorvath/tickethall/internal/event"
)

type bookingResource struct {
	ID         string `json:"id"`
	EventID    string `json:"eventId"`
	UserID     string `json:"userId,omitempty"`
	GuestName  string `json:"guestName,omitempty"`
	GuestEmail string `json:"guestEmail,omitempty"`
	Quantity   int    `json:"quantity"`
	TotalPrice string `json:"totalPrice"`
	StartAt    string `json:"startAt"`
	Status     string `json:"status"`
	CreatedAt  string `json:"createdAt"`
}

func newBookingResource(b domain.Booking) bookingResource {
	res := bookingResource{
		ID:         b.ID.String(),
		EventID:    b.EventID.String(),
		GuestName:  b.GuestName,
		GuestEmail: b.GuestEmail,
		Quantity:   b.Quantity,
		TotalPrice: b.FormattedTotal(),
		StartAt:    b.StartAt.Format(time.RFC3339),
		Status:     string(b.Status),
		CreatedAt:  b.CreatedAt.Format(time.RFC3339),
	}
	if b.UserID != nil {
		res.UserID = b.UserID.String()
	}
	return res
}

type eventResource struct {
	ID                string  `json:"id"`
	Title             string  `json:"title"`
	Description       string  `json:"description"`
	StartsAt          string  `json:"startsAt"`
	Location          string  `json:"location"`
	Category          string  `json:"category"`
	Capacity          *int    `json:"capacity"`
	Price             *string `json:"price"`
	MaxTicketsPerUser int     `json:"maxTicketsPerUser"`
	Status            string  `json:"status"`
	AvailableSeats    *int    `json:"availableSeats,omitempty"`
	RemainingQuota    *int    `json:"remainingUserQuota,omitempty"`
	CreatedAt         string  `json:"createdAt"`
	UpdatedAt         string  `json:"updatedAt"`
}

func newEventResource(e domain.Event) eventResource {
	res := eventResource{
		ID:                e.ID.String(),
		Title:             e.Title,
		Description:       e.Description,
		StartsAt:          e.StartsAt.Format(time.RFC3339),
		Location:          e.Location,
		Category:          e.Category,
		Capacity:          e.Capacity,
		MaxTicketsPerUser: e.MaxTicketsPerUser,
		Status:            string(e.Status),
		CreatedAt:         e.CreatedAt.Format(time.RFC3339),
		UpdatedAt:         e.UpdatedAt.Format(time.RFC3339),
	}
	if e.Price != nil {
		price := e.Price.StringFixed(2)
		res.Price = &price
	}
	return res
}

func newEventDetailsResource(d event.Details) eventResource {
	res := newEventResource(d.Event)
	res.AvailableSeats = d.AvailableSeats
	res.RemainingQuota = d.RemainingQuota
	return res
}

type userResource struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	Enabled   bool   `json:"enabled"`
	CreatedAt string `json:"createdAt"`
}

func newUserResource(u domain.User) userResource {
	return userResource{
		ID:        u.ID.String(),
		Name:      u.Name,
		Email:     u.Email,
		Role:      string(u.Role),
		Enabled:   u.Enabled,
		CreatedAt: u.CreatedAt.Format(time.RFC3339),
	}
}
