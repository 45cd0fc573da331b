package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mhorvath/tickethall/internal/admin"
	"github.com/mhorvath/tickethall/internal/domain"
)

func (h *Handlers) requireAdmin(w http.ResponseWriter, r *http.Request) *domain.User {
	user := UserFrom(r.Context())
	if user == nil || !user.IsAdmin() {
		renderError(w, domain.ErrForbidden)
		return nil
	}
	return user
}

func (h *Handlers) ListUsers(w http.ResponseWriter, r *http.Request) {
	if h.requireAdmin(w, r) == nil {
		return
	}

	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	if offset < 0 {
		offset = 0
	}
	f := admin.UserFilter{
		Search: q.Get("search"),
		Role:   domain.Role(q.Get("role")),
		Limit:  limit,
		Offset: offset,
	}
	if v := q.Get("enabled"); v != "" {
		enabled := v == "true" || v == "1"
		f.Enabled = &enabled
	}

	users, total, err := h.admins.ListUsers(r.Context(), f)
	if err != nil {
		renderError(w, err)
		return
	}

	resources := make([]userResource, 0, len(users))
	for _, u := range users {
		resources = append(resources, newUserResource(u))
	}
	renderJSON(w, http.StatusOK, map[string]interface{}{
		"data": resources,
		"meta": map[string]int{"total": total},
	})
}

func (h *Handlers) SetUserEnabled(w http.ResponseWriter, r *http.Request) {
	acting := h.requireAdmin(w, r)
	if acting == nil {
		return
	}

	targetID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		renderMessage(w, http.StatusNotFound, "User not found.")
		return
	}

	var req struct {
		Enabled *bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Enabled == nil {
		renderMessage(w, http.StatusBadRequest, "malformed request body")
		return
	}

	user, err := h.admins.SetEnabled(r.Context(), *acting, targetID, *req.Enabled)
	if err != nil {
		renderError(w, err)
		return
	}
	renderJSON(w, http.StatusOK, map[string]interface{}{"data": newUserResource(user)})
}
