// Package credits manages per-patient consultation credit balances.
package credits

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrAccountNotFound is returned when no account exists for a patient.
	ErrAccountNotFound = errors.New("credits: account not found")

	// ErrInsufficientCredit is returned when a deduction exceeds the balance.
	ErrInsufficientCredit = errors.New("credits: insufficient balance")

	// ErrInvalidAmount is returned for zero or negative amounts.
	ErrInvalidAmount = errors.New("credits: amount must be a positive integer")
)

// Account is one patient's credit balance plus reporting totals.
// The balance is never negative; deductions are conditional.
type Account struct {
	PatientID     uuid.UUID `json:"patient_id"`
	Balance       int       `json:"balance"`
	TotalSpent    int       `json:"total_spent"`
	Consultations int       `json:"consultations"`
	UpdatedAt     time.Time `json:"updated_at"`
}
