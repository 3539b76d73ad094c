package patients

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository defines the interface for patient profile storage
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
}

// InMemoryRepository is a map-backed Repository for tests and demos.
type InMemoryRepository struct {
	mu       sync.RWMutex
	patients map[uuid.UUID]*Patient
}

// NewInMemoryRepository creates a new in-memory repository
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{patients: make(map[uuid.UUID]*Patient)}
}

// Put stores or replaces a patient profile.
func (r *InMemoryRepository) Put(p *Patient) {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *p
	r.patients[p.ID] = &copied
}

// GetByID retrieves a patient by ID
func (r *InMemoryRepository) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	copied := *p
	return &copied, nil
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores patient profiles in the relational database.
type PostgresRepository struct {
	db rowQuerier
}

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("patients: pgx pool required")
	}
	return &PostgresRepository{db: pool}
}

func newPostgresRepositoryWithDB(db rowQuerier) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID fetches a patient profile.
func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	query := `
		SELECT id, name, email, timezone, created_at
		FROM patients
		WHERE id = $1
	`
	var p Patient
	err := r.db.QueryRow(ctx, query, id).Scan(&p.ID, &p.Name, &p.Email, &p.Timezone, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, fmt.Errorf("patients: select failed: %w", err)
	}
	return &p, nil
}

var (
	_ Repository = (*InMemoryRepository)(nil)
	_ Repository = (*PostgresRepository)(nil)
)
