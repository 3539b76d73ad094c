package availability

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrInvalidWindow is returned when a window fails validation.
	ErrInvalidWindow = errors.New("availability: invalid window")

	// ErrWindowNotFound is returned when no window matches a lookup.
	ErrWindowNotFound = errors.New("availability: window not found")
)

// Window is one recurring weekly interval during which a doctor accepts
// bookings. Day-of-week and times are UTC wall-clock; local presentation
// happens at the edges via the timezone projector.
type Window struct {
	ID        uuid.UUID    `json:"id"`
	DoctorID  uuid.UUID    `json:"doctor_id"`
	DayOfWeek time.Weekday `json:"day_of_week"`
	Start     TimeOfDay    `json:"start_time"`
	End       TimeOfDay    `json:"end_time"`
	Enabled   bool         `json:"enabled"`
}

// Validate checks the window's structural invariants.
func (w Window) Validate() error {
	if w.DoctorID == uuid.Nil {
		return fmt.Errorf("%w: doctor id required", ErrInvalidWindow)
	}
	if w.DayOfWeek < time.Sunday || w.DayOfWeek > time.Saturday {
		return fmt.Errorf("%w: day of week out of range", ErrInvalidWindow)
	}
	if !w.Start.Valid() || !w.End.Valid() {
		return fmt.Errorf("%w: time of day out of range", ErrInvalidWindow)
	}
	if w.Start >= w.End {
		return fmt.Errorf("%w: start %s must precede end %s", ErrInvalidWindow, w.Start, w.End)
	}
	return nil
}
