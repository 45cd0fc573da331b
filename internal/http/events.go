package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mhorvath/tickethall/internal/domain"
	"github.com/mhorvath/tickethall/internal/event"
)

type eventRequest struct {
	Title             string           `json:"title"`
	Description       string           `json:"description"`
	StartsAt          time.Time        `json:"starts_at"`
	Location          string           `json:"location"`
	Category          string           `json:"category"`
	Capacity          *int             `json:"capacity"`
	Price             *decimal.Decimal `json:"price"`
	MaxTicketsPerUser *int             `json:"max_tickets_per_user"`
	Status            string           `json:"status"`
}

func (h *Handlers) CreateEvent(w http.ResponseWriter, r *http.Request) {
	user := UserFrom(r.Context())
	if user == nil {
		renderError(w, domain.ErrForbidden)
		return
	}

	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderMessage(w, http.StatusBadRequest, "malformed request body")
		return
	}

	e, err := h.events.Create(r.Context(), *user, event.CreateInput{
		Title:             req.Title,
		Description:       req.Description,
		StartsAt:          req.StartsAt,
		Location:          req.Location,
		Category:          req.Category,
		Capacity:          req.Capacity,
		Price:             req.Price,
		MaxTicketsPerUser: req.MaxTicketsPerUser,
		Status:            domain.EventStatus(req.Status),
	})
	if err != nil {
		renderError(w, err)
		return
	}
	renderJSON(w, http.StatusCreated, map[string]interface{}{"data": newEventResource(e)})
}

// UpdateEvent decodes the body field by field so that an explicit null (clear
// capacity, make free) is distinguishable from an absent key.
func (h *Handlers) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	user := UserFrom(r.Context())
	if user == nil {
		renderError(w, domain.ErrForbidden)
		return
	}
	id, ok := eventIDParam(r)
	if !ok {
		renderMessage(w, http.StatusNotFound, "Event not found.")
		return
	}

	var raw map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		renderMessage(w, http.StatusBadRequest, "malformed request body")
		return
	}

	var in event.UpdateInput
	bad := func() {
		renderMessage(w, http.StatusBadRequest, "malformed request body")
	}
	if v, ok := raw["title"]; ok {
		if json.Unmarshal(v, &in.Title) != nil {
			bad()
			return
		}
	}
	if v, ok := raw["description"]; ok {
		if json.Unmarshal(v, &in.Description) != nil {
			bad()
			return
		}
	}
	if v, ok := raw["starts_at"]; ok {
		if json.Unmarshal(v, &in.StartsAt) != nil {
			bad()
			return
		}
	}
	if v, ok := raw["location"]; ok {
		if json.Unmarshal(v, &in.Location) != nil {
			bad()
			return
		}
	}
	if v, ok := raw["category"]; ok {
		if json.Unmarshal(v, &in.Category) != nil {
			bad()
			return
		}
	}
	if v, ok := raw["capacity"]; ok {
		in.CapacitySet = true
		if json.Unmarshal(v, &in.Capacity) != nil {
			bad()
			return
		}
	}
	if v, ok := raw["price"]; ok {
		in.PriceSet = true
		if json.Unmarshal(v, &in.Price) != nil {
			bad()
			return
		}
	}
	if v, ok := raw["max_tickets_per_user"]; ok {
		if json.Unmarshal(v, &in.MaxTicketsPerUser) != nil {
			bad()
			return
		}
	}

	e, err := h.events.Update(r.Context(), *user, id, in)
	if err != nil {
		renderError(w, err)
		return
	}
	renderJSON(w, http.StatusOK, map[string]interface{}{"data": newEventResource(e)})
}

func (h *Handlers) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	user := UserFrom(r.Context())
	if user == nil {
		renderError(w, domain.ErrForbidden)
		return
	}
	id, ok := eventIDParam(r)
	if !ok {
		renderMessage(w, http.StatusNotFound, "Event not found.")
		return
	}

	if err := h.events.Delete(r.Context(), *user, id); err != nil {
		renderError(w, err)
		return
	}
	renderJSON(w, http.StatusOK, map[string]string{"message": "Event deleted successfully."})
}

func (h *Handlers) ChangeEventStatus(w http.ResponseWriter, r *http.Request) {
	user := UserFrom(r.Context())
	if user == nil {
		renderError(w, domain.ErrForbidden)
		return
	}
	id, ok := eventIDParam(r)
	if !ok {
		renderMessage(w, http.StatusNotFound, "Event not found.")
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderMessage(w, http.StatusBadRequest, "malformed request body")
		return
	}

	e, err := h.events.ChangeStatus(r.Context(), *user, id, domain.EventStatus(req.Status))
	if err != nil {
		renderError(w, err)
		return
	}
	renderJSON(w, http.StatusOK, map[string]interface{}{"data": newEventResource(e)})
}

// GetEvent returns one event with its availability. The cached count is used
// when fresh; otherwise the computed value is cached for the next read.
func (h *Handlers) GetEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := eventIDParam(r)
	if !ok {
		renderMessage(w, http.StatusNotFound, "Event not found.")
		return
	}

	d, err := h.events.Get(r.Context(), UserFrom(r.Context()), id)
	if err != nil {
		renderError(w, err)
		return
	}

	res := newEventDetailsResource(d)
	if h.cache != nil && d.Event.Capacity != nil {
		cached, hit, err := h.cache.GetAvailability(r.Context(), id)
		switch {
		case err != nil:
			h.logger.WithError(err).Warn("availability cache read failed")
		case hit:
			res.AvailableSeats = cached
		default:
			if err := h.cache.SetAvailability(r.Context(), id, d.AvailableSeats, h.cacheTTL); err != nil {
				h.logger.WithError(err).Warn("availability cache write failed")
			}
		}
	}
	renderJSON(w, http.StatusOK, map[string]interface{}{"data": res})
}

func (h *Handlers) ListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	if offset < 0 {
		offset = 0
	}

	events, err := h.events.List(r.Context(), UserFrom(r.Context()), event.ListFilter{
		Status:   domain.EventStatus(q.Get("status")),
		Category: q.Get("category"),
		Search:   q.Get("search"),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		renderError(w, err)
		return
	}

	resources := make([]eventResource, 0, len(events))
	for _, e := range events {
		resources = append(resources, newEventResource(e))
	}
	renderJSON(w, http.StatusOK, map[string]interface{}{"data": resources})
}
