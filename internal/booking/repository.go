package booking

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/medlink/telehealth-platform/internal/availability"
)

// Ledger answers "is this slot held" questions against active appointments.
// The coordinator uses it as a fast pre-check only; the storage-layer
// uniqueness constraint remains the authoritative arbiter under races.
type Ledger interface {
	IsTaken(ctx context.Context, doctorID uuid.UUID, date time.Time, slot availability.TimeOfDay) (bool, error)
	ListTaken(ctx context.Context, doctorID uuid.UUID, date time.Time) (map[availability.TimeOfDay]struct{}, error)
}

// Repository persists appointments. Create must enforce at most one active
// appointment per (doctor, date, slot) and report violations as ErrSlotTaken.
type Repository interface {
	Ledger
	Create(ctx context.Context, appt *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) error
	ListForDoctor(ctx context.Context, doctorID uuid.UUID, from time.Time, limit int) ([]*Appointment, error)
	ListForPatient(ctx context.Context, patientID uuid.UUID, from time.Time, limit int) ([]*Appointment, error)
}

type slotKey struct {
	doctorID uuid.UUID
	date     string
	slot     availability.TimeOfDay
}

func keyFor(doctorID uuid.UUID, date time.Time, slot availability.TimeOfDay) slotKey {
	return slotKey{doctorID: doctorID, date: date.UTC().Format("2006-01-02"), slot: slot}
}

// InMemoryRepository enforces the active-slot uniqueness invariant under a
// mutex, mirroring what the partial unique index does in postgres.
type InMemoryRepository struct {
	mu     sync.Mutex
	byID   map[uuid.UUID]*Appointment
	active map[slotKey]uuid.UUID
}

// NewInMemoryRepository creates an empty in-memory repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		byID:   make(map[uuid.UUID]*Appointment),
		active: make(map[slotKey]uuid.UUID),
	}
}

// Create inserts the appointment, failing with ErrSlotTaken when another
// active appointment already holds the triple.
func (r *InMemoryRepository) Create(ctx context.Context, appt *Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := keyFor(appt.DoctorID, appt.CalendarDate, appt.SlotTimeUTC)
	if _, held := r.active[key]; held {
		return ErrSlotTaken
	}
	copied := *appt
	r.byID[appt.ID] = &copied
	if appt.Status.Active() {
		r.active[key] = appt.ID
	}
	return nil
}

// GetByID returns a copy of the appointment.
func (r *InMemoryRepository) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	appt, ok := r.byID[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	copied := *appt
	return &copied, nil
}

// UpdateStatus transitions the appointment with an optimistic from-check and
// releases the slot when the appointment leaves the active states.
func (r *InMemoryRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	appt, ok := r.byID[id]
	if !ok {
		return ErrAppointmentNotFound
	}
	if appt.Status != from {
		return fmt.Errorf("%w: appointment is %s, not %s", ErrInvalidTransition, appt.Status, from)
	}
	appt.Status = to
	appt.UpdatedAt = time.Now().UTC()

	key := keyFor(appt.DoctorID, appt.CalendarDate, appt.SlotTimeUTC)
	if !to.Active() {
		delete(r.active, key)
	} else {
		r.active[key] = id
	}
	return nil
}

// IsTaken reports whether an active appointment holds the slot.
func (r *InMemoryRepository) IsTaken(ctx context.Context, doctorID uuid.UUID, date time.Time, slot availability.TimeOfDay) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, held := r.active[keyFor(doctorID, date, slot)]
	return held, nil
}

// ListTaken returns all slots held by active appointments on the date.
func (r *InMemoryRepository) ListTaken(ctx context.Context, doctorID uuid.UUID, date time.Time) (map[availability.TimeOfDay]struct{}, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	day := date.UTC().Format("2006-01-02")
	taken := make(map[availability.TimeOfDay]struct{})
	for key := range r.active {
		if key.doctorID == doctorID && key.date == day {
			taken[key.slot] = struct{}{}
		}
	}
	return taken, nil
}

// ListForDoctor returns appointments starting at or after from, soonest first.
func (r *InMemoryRepository) ListForDoctor(ctx context.Context, doctorID uuid.UUID, from time.Time, limit int) ([]*Appointment, error) {
	return r.list(func(a *Appointment) bool { return a.DoctorID == doctorID }, from, limit), nil
}

// ListForPatient returns appointments starting at or after from, soonest first.
func (r *InMemoryRepository) ListForPatient(ctx context.Context, patientID uuid.UUID, from time.Time, limit int) ([]*Appointment, error) {
	return r.list(func(a *Appointment) bool { return a.PatientID == patientID }, from, limit), nil
}

func (r *InMemoryRepository) list(match func(*Appointment) bool, from time.Time, limit int) []*Appointment {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Appointment
	for _, appt := range r.byID {
		if !match(appt) || appt.StartsAt().Before(from) {
			continue
		}
		copied := *appt
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt().Before(out[j].StartsAt()) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

var _ Repository = (*InMemoryRepository)(nil)
