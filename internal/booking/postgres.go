package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medlink/telehealth-platform/internal/availability"
)

// uniqueViolation is the postgres error code raised by the partial unique
// index on (doctor_id, calendar_date, slot_minutes) over active statuses.
const uniqueViolation = "23505"

type pgDB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores appointments in the relational database. The
// active-slot uniqueness constraint lives in the schema; a violated insert is
// the authoritative conflict signal under concurrent booking attempts.
type PostgresRepository struct {
	db pgDB
}

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("booking: pgx pool required")
	}
	return &PostgresRepository{db: pool}
}

func newPostgresRepositoryWithDB(db pgDB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const appointmentColumns = `
	id, doctor_id, patient_id, calendar_date, slot_minutes, slot_time_local,
	patient_timezone, doctor_timezone, duration_minutes, status,
	consultation_fee, consultation_type, topic, description,
	video_session_id, video_join_url, created_at, updated_at
`

// Create inserts a new appointment row. A unique violation on the active-slot
// index maps to ErrSlotTaken so the coordinator can compensate and report the
// conflict; all other failures are persistence errors.
func (r *PostgresRepository) Create(ctx context.Context, appt *Appointment) error {
	query := `
		INSERT INTO appointments (
			id, doctor_id, patient_id, calendar_date, slot_minutes, slot_time_local,
			patient_timezone, doctor_timezone, duration_minutes, status,
			consultation_fee, consultation_type, topic, description,
			video_session_id, video_join_url
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		appt.ID,
		appt.DoctorID,
		appt.PatientID,
		appt.CalendarDate,
		appt.SlotTimeUTC.Minutes(),
		appt.SlotTimeLocal,
		appt.PatientTimezone,
		appt.DoctorTimezone,
		appt.DurationMinutes,
		string(appt.Status),
		appt.ConsultationFee,
		appt.ConsultationType,
		appt.Topic,
		appt.Description,
		appt.VideoSessionID,
		appt.VideoJoinURL,
	).Scan(&appt.CreatedAt, &appt.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrSlotTaken
		}
		return fmt.Errorf("booking: insert appointment: %w", err)
	}
	return nil
}

// GetByID fetches one appointment.
func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = $1`
	appt, err := scanAppointment(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, fmt.Errorf("booking: load appointment: %w", err)
	}
	return appt, nil
}

// UpdateStatus transitions with an optimistic status check. Zero rows means
// the appointment is missing or no longer in the expected state.
func (r *PostgresRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) error {
	query := `
		UPDATE appointments
		SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2
	`
	ct, err := r.db.Exec(ctx, query, id, string(from), string(to))
	if err != nil {
		return fmt.Errorf("booking: update status: %w", err)
	}
	if ct.RowsAffected() == 0 {
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return getErr
		}
		return fmt.Errorf("%w: appointment not in %s", ErrInvalidTransition, from)
	}
	return nil
}

// IsTaken reports whether an active appointment holds the slot.
func (r *PostgresRepository) IsTaken(ctx context.Context, doctorID uuid.UUID, date time.Time, slot availability.TimeOfDay) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE doctor_id = $1 AND calendar_date = $2 AND slot_minutes = $3
			  AND status IN ('scheduled', 'in_progress')
		)
	`
	var taken bool
	if err := r.db.QueryRow(ctx, query, doctorID, date.UTC(), slot.Minutes()).Scan(&taken); err != nil {
		return false, fmt.Errorf("booking: conflict check: %w", err)
	}
	return taken, nil
}

// ListTaken returns all slots held by active appointments on the date.
func (r *PostgresRepository) ListTaken(ctx context.Context, doctorID uuid.UUID, date time.Time) (map[availability.TimeOfDay]struct{}, error) {
	query := `
		SELECT slot_minutes FROM appointments
		WHERE doctor_id = $1 AND calendar_date = $2
		  AND status IN ('scheduled', 'in_progress')
	`
	rows, err := r.db.Query(ctx, query, doctorID, date.UTC())
	if err != nil {
		return nil, fmt.Errorf("booking: list taken: %w", err)
	}
	defer rows.Close()

	taken := make(map[availability.TimeOfDay]struct{})
	for rows.Next() {
		var minutes int
		if err := rows.Scan(&minutes); err != nil {
			return nil, fmt.Errorf("booking: scan taken slot: %w", err)
		}
		taken[availability.TimeOfDay(minutes)] = struct{}{}
	}
	return taken, rows.Err()
}

// ListForDoctor returns upcoming appointments for a doctor, soonest first.
func (r *PostgresRepository) ListForDoctor(ctx context.Context, doctorID uuid.UUID, from time.Time, limit int) ([]*Appointment, error) {
	return r.listBy(ctx, "doctor_id", doctorID, from, limit)
}

// ListForPatient returns upcoming appointments for a patient, soonest first.
func (r *PostgresRepository) ListForPatient(ctx context.Context, patientID uuid.UUID, from time.Time, limit int) ([]*Appointment, error) {
	return r.listBy(ctx, "patient_id", patientID, from, limit)
}

func (r *PostgresRepository) listBy(ctx context.Context, column string, id uuid.UUID, from time.Time, limit int) ([]*Appointment, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE ` + column + ` = $1
		  AND calendar_date + make_interval(mins => slot_minutes) >= $2
		ORDER BY calendar_date, slot_minutes
		LIMIT $3`
	rows, err := r.db.Query(ctx, query, id, from.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("booking: list appointments: %w", err)
	}
	defer rows.Close()

	var out []*Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("booking: scan appointment: %w", err)
		}
		out = append(out, appt)
	}
	return out, rows.Err()
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var appt Appointment
	var slotMinutes int
	var status string
	err := row.Scan(
		&appt.ID,
		&appt.DoctorID,
		&appt.PatientID,
		&appt.CalendarDate,
		&slotMinutes,
		&appt.SlotTimeLocal,
		&appt.PatientTimezone,
		&appt.DoctorTimezone,
		&appt.DurationMinutes,
		&status,
		&appt.ConsultationFee,
		&appt.ConsultationType,
		&appt.Topic,
		&appt.Description,
		&appt.VideoSessionID,
		&appt.VideoJoinURL,
		&appt.CreatedAt,
		&appt.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	appt.SlotTimeUTC = availability.TimeOfDay(slotMinutes)
	appt.Status = Status(status)
	return &appt, nil
}

var _ Repository = (*PostgresRepository)(nil)
