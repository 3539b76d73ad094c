package availability

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/medlink/telehealth-platform/internal/identity"
	"github.com/medlink/telehealth-platform/pkg/logging"
)

func newScheduleRouter(repo Repository) *chi.Mux {
	handler := NewHandler(repo, logging.Default())
	r := chi.NewRouter()
	r.Get("/doctors/{doctorID}/schedule", handler.GetSchedule)
	r.Put("/doctors/{doctorID}/schedule", handler.PutSchedule)
	return r
}

func asActor(req *http.Request, actor identity.Actor) *http.Request {
	return req.WithContext(identity.WithActor(req.Context(), actor))
}

func TestPutScheduleReplacesTemplate(t *testing.T) {
	repo := NewInMemoryRepository()
	router := newScheduleRouter(repo)
	doctorID := uuid.New()

	body := `{"windows":[{"day_of_week":1,"start_time":"09:00","end_time":"11:00","enabled":true}]}`
	req := httptest.NewRequest(http.MethodPut, "/doctors/"+doctorID.String()+"/schedule", strings.NewReader(body))
	req = asActor(req, identity.Actor{ID: doctorID, Role: identity.RoleDoctor})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", rec.Code, rec.Body.String())
	}

	windows, err := repo.ListForDoctor(context.Background(), doctorID)
	if err != nil {
		t.Fatal(err)
	}
	if len(windows) != 1 || windows[0].DayOfWeek != time.Monday {
		t.Fatalf("unexpected windows: %+v", windows)
	}
}

func TestPutScheduleForbiddenForOtherDoctor(t *testing.T) {
	repo := NewInMemoryRepository()
	router := newScheduleRouter(repo)

	body := `{"windows":[]}`
	req := httptest.NewRequest(http.MethodPut, "/doctors/"+uuid.NewString()+"/schedule", strings.NewReader(body))
	req = asActor(req, identity.Actor{ID: uuid.New(), Role: identity.RoleDoctor})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestPutScheduleRejectsInvertedWindow(t *testing.T) {
	repo := NewInMemoryRepository()
	router := newScheduleRouter(repo)
	doctorID := uuid.New()

	body := `{"windows":[{"day_of_week":1,"start_time":"12:00","end_time":"09:00","enabled":true}]}`
	req := httptest.NewRequest(http.MethodPut, "/doctors/"+doctorID.String()+"/schedule", strings.NewReader(body))
	req = asActor(req, identity.Actor{ID: doctorID, Role: identity.RoleDoctor})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestGetScheduleRendersTimesAsStrings(t *testing.T) {
	repo := NewInMemoryRepository()
	doctorID := uuid.New()
	if err := repo.ReplaceForDoctor(context.Background(), doctorID, []Window{
		{DayOfWeek: time.Friday, Start: mustTime(t, "08:30"), End: mustTime(t, "12:00"), Enabled: true},
	}); err != nil {
		t.Fatal(err)
	}

	router := newScheduleRouter(repo)
	req := httptest.NewRequest(http.MethodGet, "/doctors/"+doctorID.String()+"/schedule", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var payload schedulePayload
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatal(err)
	}
	if len(payload.Windows) != 1 || payload.Windows[0].StartTime != "08:30" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}
