package doctors

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"
)

func TestInMemoryGetByID(t *testing.T) {
	repo := NewInMemoryRepository()
	doc := &Doctor{ID: uuid.New(), Name: "Dr. Reyes", Timezone: "America/Chicago", ConsultationFee: 2}
	repo.Put(doc)

	got, err := repo.GetByID(context.Background(), doc.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "Dr. Reyes" || got.ConsultationFee != 2 {
		t.Fatalf("unexpected doctor: %+v", got)
	}

	if _, err := repo.GetByID(context.Background(), uuid.New()); !errors.Is(err, ErrDoctorNotFound) {
		t.Fatalf("expected ErrDoctorNotFound, got %v", err)
	}
}

func TestPostgresGetByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	repo := newPostgresRepositoryWithDB(mock)
	id := uuid.New()
	created := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)

	rows := pgxmock.NewRows([]string{"id", "name", "email", "specialty", "timezone", "consultation_fee", "created_at"}).
		AddRow(id, "Dr. Osei", "osei@clinic.example", "cardiology", "Europe/London", 3, created)
	mock.ExpectQuery("SELECT id, name").WithArgs(id).WillReturnRows(rows)

	doc, err := repo.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if doc.Specialty != "cardiology" || doc.ConsultationFee != 3 {
		t.Fatalf("unexpected doctor: %+v", doc)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
