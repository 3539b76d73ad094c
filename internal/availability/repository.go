package availability

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Repository defines storage for weekly availability templates.
type Repository interface {
	ListForDoctor(ctx context.Context, doctorID uuid.UUID) ([]Window, error)
	ReplaceForDoctor(ctx context.Context, doctorID uuid.UUID, windows []Window) error
}

// InMemoryRepository keeps templates in memory; used in tests and demos.
type InMemoryRepository struct {
	mu      sync.RWMutex
	windows map[uuid.UUID][]Window
}

// NewInMemoryRepository creates an empty in-memory repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{windows: make(map[uuid.UUID][]Window)}
}

// ListForDoctor returns the doctor's current template.
func (r *InMemoryRepository) ListForDoctor(ctx context.Context, doctorID uuid.UUID) ([]Window, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stored := r.windows[doctorID]
	out := make([]Window, len(stored))
	copy(out, stored)
	return out, nil
}

// ReplaceForDoctor overwrites the doctor's weekly template. Existing
// appointments are untouched; the template only governs future slot listings.
func (r *InMemoryRepository) ReplaceForDoctor(ctx context.Context, doctorID uuid.UUID, windows []Window) error {
	next := make([]Window, 0, len(windows))
	for _, w := range windows {
		w.DoctorID = doctorID
		if w.ID == uuid.Nil {
			w.ID = uuid.New()
		}
		if err := w.Validate(); err != nil {
			return err
		}
		next = append(next, w)
	}

	r.mu.Lock()
	r.windows[doctorID] = next
	r.mu.Unlock()
	return nil
}

var _ Repository = (*InMemoryRepository)(nil)
