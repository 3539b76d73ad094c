package doctors

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Repository defines the interface for doctor profile storage
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
}

// InMemoryRepository is a map-backed Repository for tests and demos.
type InMemoryRepository struct {
	mu      sync.RWMutex
	doctors map[uuid.UUID]*Doctor
}

// NewInMemoryRepository creates a new in-memory repository
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{doctors: make(map[uuid.UUID]*Doctor)}
}

// Put stores or replaces a doctor profile.
func (r *InMemoryRepository) Put(doc *Doctor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *doc
	r.doctors[doc.ID] = &copied
}

// GetByID retrieves a doctor by ID
func (r *InMemoryRepository) GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.doctors[id]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	copied := *doc
	return &copied, nil
}

var _ Repository = (*InMemoryRepository)(nil)
