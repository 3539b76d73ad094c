package credits

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore persists credit accounts in the relational database.
type PostgresStore struct {
	db rowQuerier
}

// NewPostgresStore initializes a store backed by pgxpool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	if pool == nil {
		panic("credits: pgx pool required")
	}
	return &PostgresStore{db: pool}
}

func newPostgresStoreWithDB(db rowQuerier) *PostgresStore {
	return &PostgresStore{db: db}
}

// Get loads an account.
func (s *PostgresStore) Get(ctx context.Context, patientID uuid.UUID) (*Account, error) {
	query := `
		SELECT patient_id, balance, total_spent, consultations, updated_at
		FROM credit_accounts
		WHERE patient_id = $1
	`
	var acct Account
	err := s.db.QueryRow(ctx, query, patientID).Scan(
		&acct.PatientID,
		&acct.Balance,
		&acct.TotalSpent,
		&acct.Consultations,
		&acct.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("credits: load account: %w", err)
	}
	return &acct, nil
}

// Deduct decrements the balance in a single conditional UPDATE. The
// balance >= amount predicate makes the operation safe under concurrency:
// of two racing deductions that would overdraw, only one matches the row.
func (s *PostgresStore) Deduct(ctx context.Context, patientID uuid.UUID, amount int) (int, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	query := `
		UPDATE credit_accounts
		SET balance = balance - $2,
		    total_spent = total_spent + $2,
		    consultations = consultations + 1,
		    updated_at = now()
		WHERE patient_id = $1 AND balance >= $2
		RETURNING balance
	`
	var balance int
	err := s.db.QueryRow(ctx, query, patientID, amount).Scan(&balance)
	if err == nil {
		return balance, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("credits: deduct: %w", err)
	}

	// No row matched: either the account is missing or the balance is short.
	acct, getErr := s.Get(ctx, patientID)
	if getErr != nil {
		return 0, getErr
	}
	return acct.Balance, ErrInsufficientCredit
}

// Refund adds amount back unconditionally (compensation path).
func (s *PostgresStore) Refund(ctx context.Context, patientID uuid.UUID, amount int) (int, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	query := `
		UPDATE credit_accounts
		SET balance = balance + $2,
		    total_spent = greatest(total_spent - $2, 0),
		    consultations = greatest(consultations - 1, 0),
		    updated_at = now()
		WHERE patient_id = $1
		RETURNING balance
	`
	var balance int
	err := s.db.QueryRow(ctx, query, patientID, amount).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrAccountNotFound
		}
		return 0, fmt.Errorf("credits: refund: %w", err)
	}
	return balance, nil
}

var _ Store = (*PostgresStore)(nil)
