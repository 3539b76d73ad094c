package doctors

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

// PostgresRepository stores doctor profiles in the relational database.
type PostgresRepository struct {
	db rowQuerier
}

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("doctors: pgx pool required")
	}
	return &PostgresRepository{db: pool}
}

func newPostgresRepositoryWithDB(db rowQuerier) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID fetches a doctor profile.
func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	query := `
		SELECT id, name, email, specialty, timezone, consultation_fee, created_at
		FROM doctors
		WHERE id = $1
	`
	var doc Doctor
	err := r.db.QueryRow(ctx, query, id).Scan(
		&doc.ID,
		&doc.Name,
		&doc.Email,
		&doc.Specialty,
		&doc.Timezone,
		&doc.ConsultationFee,
		&doc.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, fmt.Errorf("doctors: select failed: %w", err)
	}
	return &doc, nil
}

var _ Repository = (*PostgresRepository)(nil)
