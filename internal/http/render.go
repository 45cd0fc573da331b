package http

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/cockroachdb/errors"

	"github.com/mhorvath/tickethall/internal/domain"
)

func renderJSON(w http.ResponseWriter, status int, body interface{}) []byte {
	data, _ := json.Marshal(body)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
	return data
}

func renderMessage(w http.ResponseWriter, status int, message string) {
	renderJSON(w, status, map[string]string{"message": message})
}

func renderFieldErrors(w http.ResponseWriter, fields domain.FieldErrors) {
	renderJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
		"message": "The given data was invalid.",
		"errors":  fields,
	})
}

// renderError maps domain failures to the HTTP surface: missing entities get
// 404, authorization failures 403, guard and validation rejections 422 with
// field-attributed messages. Anything unrecognized is a 500.
func renderError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrEventNotFound):
		renderMessage(w, http.StatusNotFound, "Event not found.")
	case errors.Is(err, domain.ErrBookingNotFound):
		renderMessage(w, http.StatusNotFound, "Booking not found.")
	case errors.Is(err, domain.ErrUserNotFound):
		renderMessage(w, http.StatusNotFound, "User not found.")
	case errors.Is(err, domain.ErrForbidden):
		renderMessage(w, http.StatusForbidden, "This action is unauthorized.")
	case errors.Is(err, domain.ErrNotBookable):
		fields := domain.FieldErrors{}
		fields.Add("event", "This event is not open for booking.")
		renderFieldErrors(w, fields)
	default:
		var validation *domain.ValidationError
		var quota *domain.QuotaExceededError
		var capacity *domain.CapacityExceededError
		switch {
		case errors.As(err, &validation):
			renderFieldErrors(w, validation.Fields)
		case errors.As(err, &quota):
			fields := domain.FieldErrors{}
			fields.Add("quantity", fmt.Sprintf("You can book at most %d more ticket(s) for this event.", quota.Remaining))
			renderFieldErrors(w, fields)
		case errors.As(err, &capacity):
			fields := domain.FieldErrors{}
			fields.Add("quantity", fmt.Sprintf("Only %d ticket(s) left for this event.", capacity.Available))
			renderFieldErrors(w, fields)
		default:
			renderMessage(w, http.StatusInternalServerError, "Internal server error.")
		}
	}
}
