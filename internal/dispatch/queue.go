// Package dispatch moves post-booking side effects off the request path.
// Confirmation emails, low-balance notices, and audit records ride a queue so
// a slow or failing downstream never changes a booking outcome.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// queueClient carries side-effect envelopes. The event kind travels next to
// the body (an SQS message attribute on the real queue) so operators can
// filter and alarm per kind without parsing payloads.
type queueClient interface {
	Send(ctx context.Context, kind EventKind, body string) error
	Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]queueMessage, error)
	Delete(ctx context.Context, receiptHandle string) error
}

type queueMessage struct {
	ID            string
	Kind          EventKind
	Body          string
	ReceiptHandle string
}

// EventKind identifies the side effect carried by an envelope.
type EventKind string

const (
	KindBookingConfirmed     EventKind = "booking_confirmed.v1"
	KindAppointmentCancelled EventKind = "appointment_cancelled.v1"
	KindLowBalance           EventKind = "low_balance.v1"
)

// BookingConfirmedV1 is published after an appointment is durably recorded.
type BookingConfirmedV1 struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
	DoctorID      uuid.UUID `json:"doctor_id"`
	PatientID     uuid.UUID `json:"patient_id"`
	StartsAtUTC   time.Time `json:"starts_at_utc"`
	LocalTime     string    `json:"local_time"`
	Timezone      string    `json:"timezone"`
	Topic         string    `json:"topic"`
	JoinURL       string    `json:"join_url,omitempty"`
}

// AppointmentCancelledV1 is published when an appointment leaves an active state.
type AppointmentCancelledV1 struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
	DoctorID      uuid.UUID `json:"doctor_id"`
	PatientID     uuid.UUID `json:"patient_id"`
	Refunded      bool      `json:"refunded"`
	Reason        string    `json:"reason"`
}

// LowBalanceV1 is published when a deduction leaves the account at or below
// the configured threshold.
type LowBalanceV1 struct {
	PatientID uuid.UUID `json:"patient_id"`
	Balance   int       `json:"balance"`
	Threshold int       `json:"threshold"`
}

// Envelope is the wire format for queued side effects.
type Envelope struct {
	ID        string                  `json:"id"`
	Kind      EventKind               `json:"kind"`
	Booking   *BookingConfirmedV1     `json:"booking,omitempty"`
	Cancelled *AppointmentCancelledV1 `json:"cancelled,omitempty"`
	Balance   *LowBalanceV1           `json:"balance,omitempty"`
}

func encodeEnvelope(env Envelope) (Envelope, string, error) {
	if env.ID == "" {
		env.ID = uuid.NewString()
	}
	body, err := json.Marshal(env)
	if err != nil {
		return Envelope{}, "", fmt.Errorf("dispatch: failed to encode envelope: %w", err)
	}
	return env, string(body), nil
}
