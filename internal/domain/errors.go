package domain

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
)

var (
	ErrEventNotFound   = errors.New("event not found")
	ErrUserNotFound    = errors.New("user not found")
	ErrBookingNotFound = errors.New("booking not found")
	// ErrNotBookable rejects bookings against events that are not published
	// or have already started.
	ErrNotBookable = errors.New("event cannot be booked now")
	ErrForbidden   = errors.New("forbidden")
)

// FieldErrors collects validation messages keyed by input field.
type FieldErrors map[string][]string

func (f FieldErrors) Add(field, message string) {
	f[field] = append(f[field], message)
}

// ValidationError is a field-attributed rejection of a request. It never
// escalates to a generic fault; callers render it as an unprocessable-entity
// response.
type ValidationError struct {
	Fields FieldErrors
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return "validation failed: " + strings.Join(keys, ", ")
}

// NewValidationError builds a single-field validation error.
func NewValidationError(field, message string) *ValidationError {
	fields := FieldErrors{}
	fields.Add(field, message)
	return &ValidationError{Fields: fields}
}

// QuotaExceededError rejects a booking whose quantity exceeds the remaining
// per-identity quota. Remaining carries what the identity may still book.
type QuotaExceededError struct {
	Remaining int
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("quota exceeded: %d remaining", e.Remaining)
}

// CapacityExceededError rejects a booking whose quantity exceeds the seats
// still available for the event.
type CapacityExceededError struct {
	Available int
}

func (e *CapacityExceededError) Error() string {
	return fmt.Sprintf("capacity exceeded: %d available", e.Available)
}
