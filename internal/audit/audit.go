// Package audit keeps an immutable trail of booking activity for clinical
// record-keeping. Events are append-only; nothing in the platform updates or
// deletes them.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// EventType represents the type of audited action.
type EventType string

const (
	EventAppointmentBooked    EventType = "appointment.booked"
	EventAppointmentStarted   EventType = "appointment.started"
	EventAppointmentCompleted EventType = "appointment.completed"
	EventAppointmentCancelled EventType = "appointment.cancelled"
	EventAppointmentNoShow    EventType = "appointment.no_show"
	EventCreditDeducted       EventType = "credit.deducted"
	EventCreditRefunded       EventType = "credit.refunded"
	EventScheduleReplaced     EventType = "schedule.replaced"
)

// Event is one immutable audit record.
type Event struct {
	ID        uuid.UUID       `json:"id"`
	EventType EventType       `json:"event_type"`
	ActorID   uuid.UUID       `json:"actor_id"`
	TargetID  uuid.UUID       `json:"target_id"`
	Details   json.RawMessage `json:"details,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Service appends audit events to postgres.
type Service struct {
	db execer
}

// NewService creates an audit service backed by pgxpool.
func NewService(pool *pgxpool.Pool) *Service {
	if pool == nil {
		panic("audit: pgx pool required")
	}
	return &Service{db: pool}
}

func newServiceWithExec(db execer) *Service {
	return &Service{db: db}
}

// Record appends one event. Details may be nil.
func (s *Service) Record(ctx context.Context, eventType EventType, actorID, targetID uuid.UUID, details map[string]any) error {
	var raw json.RawMessage
	if len(details) > 0 {
		data, err := json.Marshal(details)
		if err != nil {
			return fmt.Errorf("audit: failed to encode details: %w", err)
		}
		raw = data
	}

	query := `
		INSERT INTO audit_events (id, event_type, actor_id, target_id, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.db.Exec(ctx, query,
		uuid.New(),
		string(eventType),
		actorID,
		targetID,
		raw,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("audit: failed to record event: %w", err)
	}
	return nil
}
