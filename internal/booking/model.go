// Package booking implements the appointment booking and availability engine:
// slot listing, the booking pipeline with credit exchange and conflict
// detection, and the appointment lifecycle.
package booking

import (
	"time"

	"github.com/google/uuid"

	"github.com/medlink/telehealth-platform/internal/availability"
)

// Status is the appointment lifecycle state.
type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusNoShow     Status = "no_show"
)

// Active reports whether the appointment still holds its slot. Only active
// appointments participate in conflict detection.
func (s Status) Active() bool {
	return s == StatusScheduled || s == StatusInProgress
}

var legalTransitions = map[Status][]Status{
	StatusScheduled:  {StatusInProgress, StatusCancelled, StatusNoShow},
	StatusInProgress: {StatusCompleted, StatusCancelled},
}

// CanTransition reports whether from -> to is a legal lifecycle move.
func CanTransition(from, to Status) bool {
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Appointment is one reserved consultation. It is a ledger entry: its
// existence with an active status is the source of truth for "this slot is
// taken". Appointments are never deleted, only status-transitioned, so the
// credit and audit trail stays intact.
type Appointment struct {
	ID               uuid.UUID              `json:"id"`
	DoctorID         uuid.UUID              `json:"doctor_id"`
	PatientID        uuid.UUID              `json:"patient_id"`
	CalendarDate     time.Time              `json:"calendar_date"`
	SlotTimeUTC      availability.TimeOfDay `json:"slot_time_utc"`
	SlotTimeLocal    string                 `json:"slot_time_local"`
	PatientTimezone  string                 `json:"patient_timezone"`
	DoctorTimezone   string                 `json:"doctor_timezone"`
	DurationMinutes  int                    `json:"duration_minutes"`
	Status           Status                 `json:"status"`
	ConsultationFee  int                    `json:"consultation_fee"`
	ConsultationType string                 `json:"consultation_type"`
	Topic            string                 `json:"topic"`
	Description      string                 `json:"description,omitempty"`
	VideoSessionID   string                 `json:"video_session_id,omitempty"`
	VideoJoinURL     string                 `json:"video_join_url,omitempty"`
	CreatedAt        time.Time              `json:"created_at"`
	UpdatedAt        time.Time              `json:"updated_at"`
}

// StartsAt returns the absolute UTC instant of the appointment.
func (a *Appointment) StartsAt() time.Time {
	return availability.InstantUTC(a.SlotTimeUTC, a.CalendarDate)
}

// BookingRequest is the ephemeral input envelope for one booking attempt.
type BookingRequest struct {
	DoctorID         uuid.UUID `json:"doctor_id"`
	PatientID        uuid.UUID `json:"-"`
	Date             string    `json:"date"`
	LocalTime        string    `json:"local_time"`
	Timezone         string    `json:"timezone"`
	Topic            string    `json:"topic"`
	Description      string    `json:"description,omitempty"`
	ConsultationType string    `json:"consultation_type"`
}

// SlotView is one availability listing entry, projected into the caller's
// timezone. Informational only; it carries no reservation.
type SlotView struct {
	LocalTime string `json:"local_time"`
	UTCTime   string `json:"utc_time"`
	Available bool   `json:"available"`
}
