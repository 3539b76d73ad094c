package availability

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type querierBeginner interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresRepository stores availability templates in the relational database.
type PostgresRepository struct {
	db querierBeginner
}

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("availability: pgx pool required")
	}
	return &PostgresRepository{db: pool}
}

func newPostgresRepositoryWithDB(db querierBeginner) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// ListForDoctor returns the doctor's current weekly template.
func (r *PostgresRepository) ListForDoctor(ctx context.Context, doctorID uuid.UUID) ([]Window, error) {
	query := `
		SELECT id, doctor_id, day_of_week, start_minutes, end_minutes, enabled
		FROM availability_windows
		WHERE doctor_id = $1
		ORDER BY day_of_week, start_minutes
	`
	rows, err := r.db.Query(ctx, query, doctorID)
	if err != nil {
		return nil, fmt.Errorf("availability: list windows: %w", err)
	}
	defer rows.Close()

	var windows []Window
	for rows.Next() {
		var w Window
		var day, start, end int
		if err := rows.Scan(&w.ID, &w.DoctorID, &day, &start, &end, &w.Enabled); err != nil {
			return nil, fmt.Errorf("availability: scan window: %w", err)
		}
		w.DayOfWeek = time.Weekday(day)
		w.Start = TimeOfDay(start)
		w.End = TimeOfDay(end)
		windows = append(windows, w)
	}
	return windows, rows.Err()
}

// ReplaceForDoctor swaps the doctor's template in one transaction so readers
// never observe a half-written week.
func (r *PostgresRepository) ReplaceForDoctor(ctx context.Context, doctorID uuid.UUID, windows []Window) error {
	for i := range windows {
		windows[i].DoctorID = doctorID
		if windows[i].ID == uuid.Nil {
			windows[i].ID = uuid.New()
		}
		if err := windows[i].Validate(); err != nil {
			return err
		}
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("availability: begin replace: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM availability_windows WHERE doctor_id = $1`, doctorID); err != nil {
		return fmt.Errorf("availability: clear windows: %w", err)
	}
	insert := `
		INSERT INTO availability_windows (id, doctor_id, day_of_week, start_minutes, end_minutes, enabled)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	for _, w := range windows {
		if _, err := tx.Exec(ctx, insert, w.ID, w.DoctorID, int(w.DayOfWeek), w.Start.Minutes(), w.End.Minutes(), w.Enabled); err != nil {
			return fmt.Errorf("availability: insert window: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("availability: commit replace: %w", err)
	}
	return nil
}

var _ Repository = (*PostgresRepository)(nil)
