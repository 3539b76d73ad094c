package credits

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store defines the credit account operations the booking engine needs.
// Deduct must be atomic: concurrent deductions can never drive a balance
// below zero. Refund is unconditional and exists only as a compensating
// action for bookings that fail after deduction.
type Store interface {
	Get(ctx context.Context, patientID uuid.UUID) (*Account, error)
	Deduct(ctx context.Context, patientID uuid.UUID, amount int) (int, error)
	Refund(ctx context.Context, patientID uuid.UUID, amount int) (int, error)
}

// InMemoryStore holds accounts behind a mutex; used in tests and demos.
type InMemoryStore struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]*Account
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{accounts: make(map[uuid.UUID]*Account)}
}

// Seed creates or overwrites an account with the given balance.
func (s *InMemoryStore) Seed(patientID uuid.UUID, balance int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[patientID] = &Account{
		PatientID: patientID,
		Balance:   balance,
		UpdatedAt: time.Now().UTC(),
	}
}

// Get returns a copy of the account.
func (s *InMemoryStore) Get(ctx context.Context, patientID uuid.UUID) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accounts[patientID]
	if !ok {
		return nil, ErrAccountNotFound
	}
	copied := *acct
	return &copied, nil
}

// Deduct removes amount from the balance, failing without mutation when the
// balance is too low.
func (s *InMemoryStore) Deduct(ctx context.Context, patientID uuid.UUID, amount int) (int, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accounts[patientID]
	if !ok {
		return 0, ErrAccountNotFound
	}
	if acct.Balance < amount {
		return acct.Balance, ErrInsufficientCredit
	}
	acct.Balance -= amount
	acct.TotalSpent += amount
	acct.Consultations++
	acct.UpdatedAt = time.Now().UTC()
	return acct.Balance, nil
}

// Refund returns amount to the balance and reverses the reporting totals.
func (s *InMemoryStore) Refund(ctx context.Context, patientID uuid.UUID, amount int) (int, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accounts[patientID]
	if !ok {
		return 0, ErrAccountNotFound
	}
	acct.Balance += amount
	acct.TotalSpent -= amount
	if acct.Consultations > 0 {
		acct.Consultations--
	}
	acct.UpdatedAt = time.Now().UTC()
	return acct.Balance, nil
}

var _ Store = (*InMemoryStore)(nil)
