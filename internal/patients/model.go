// Package patients holds patient profiles consumed by the booking engine.
package patients

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrPatientNotFound is returned when a patient is not found
var ErrPatientNotFound = errors.New("patients: patient not found")

// Patient is the minimal profile the booking path and notifications need.
type Patient struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Timezone  string    `json:"timezone"`
	CreatedAt time.Time `json:"created_at"`
}
