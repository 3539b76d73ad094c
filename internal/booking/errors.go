package booking

import (
	"errors"
	"fmt"
)

var (
	// ErrSlotTaken is returned when another active appointment holds the slot.
	ErrSlotTaken = errors.New("booking: slot already taken")

	// ErrSlotNotBookable is returned when the requested time is not one of the
	// doctor's generated slots for that date.
	ErrSlotNotBookable = errors.New("booking: requested time is not a bookable slot")

	// ErrAppointmentNotFound is returned when no appointment matches a lookup.
	ErrAppointmentNotFound = errors.New("booking: appointment not found")

	// ErrInvalidTransition is returned for illegal lifecycle moves.
	ErrInvalidTransition = errors.New("booking: invalid status transition")

	// ErrPersistenceFailed is returned when storage is unavailable. The
	// attempt is safe to retry: compensation runs before this surfaces.
	ErrPersistenceFailed = errors.New("booking: persistence failed")
)

// ValidationError reports a field-level problem with a booking request.
// It is always recoverable by the caller correcting input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("booking: invalid %s: %s", e.Field, e.Reason)
}

func invalidField(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
