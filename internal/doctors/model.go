// Package doctors holds doctor profiles consumed by the booking engine.
package doctors

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrDoctorNotFound is returned when a doctor is not found
var ErrDoctorNotFound = errors.New("doctors: doctor not found")

// Doctor is the read-mostly profile the booking path needs. ConsultationFee
// is the doctor's current price in credits; it is frozen onto each
// appointment at booking time, so later edits never reprice past bookings.
type Doctor struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	Email           string    `json:"email"`
	Specialty       string    `json:"specialty"`
	Timezone        string    `json:"timezone"`
	ConsultationFee int       `json:"consultation_fee"`
	CreatedAt       time.Time `json:"created_at"`
}
