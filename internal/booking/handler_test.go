package booking

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/medlink/telehealth-platform/internal/identity"
	"github.com/medlink/telehealth-platform/pkg/logging"
)

func newBookingRouter(svc *Service) *chi.Mux {
	handler := NewHandler(svc, logging.New("error"))
	r := chi.NewRouter()
	r.Get("/doctors/{doctorID}/slots", handler.GetSlots)
	r.Get("/appointments", handler.ListMyAppointments)
	r.Post("/appointments", handler.CreateAppointment)
	r.Get("/appointments/{appointmentID}", handler.GetAppointment)
	r.Post("/appointments/{appointmentID}/start", handler.StartAppointment)
	r.Post("/appointments/{appointmentID}/complete", handler.CompleteAppointment)
	r.Post("/appointments/{appointmentID}/cancel", handler.CancelAppointment)
	r.Post("/appointments/{appointmentID}/no-show", handler.NoShowAppointment)
	return r
}

func asActor(req *http.Request, actor identity.Actor) *http.Request {
	return req.WithContext(identity.WithActor(req.Context(), actor))
}

func bookingBody(f *fixture) string {
	return fmt.Sprintf(
		`{"doctor_id":%q,"date":%q,"local_time":"10:00","timezone":"America/New_York","topic":"follow-up","consultation_type":"video"}`,
		f.doctor.ID, mondayDate)
}

func TestCreateAppointmentEndpoint(t *testing.T) {
	f := newFixture(t, 5)
	router := newBookingRouter(f.svc)

	req := httptest.NewRequest(http.MethodPost, "/appointments", strings.NewReader(bookingBody(f)))
	req = asActor(req, identity.Actor{ID: f.patient.ID, Role: identity.RolePatient})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var appt Appointment
	if err := json.NewDecoder(rec.Body).Decode(&appt); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if appt.PatientID != f.patient.ID {
		t.Fatalf("patient identity must come from the token, got %s", appt.PatientID)
	}
	if appt.SlotTimeUTC.String() != "14:00" {
		t.Fatalf("expected 14:00 UTC slot, got %s", appt.SlotTimeUTC)
	}
}

func TestCreateAppointmentConflictMapsTo409(t *testing.T) {
	f := newFixture(t, 5)
	router := newBookingRouter(f.svc)

	first := httptest.NewRequest(http.MethodPost, "/appointments", strings.NewReader(bookingBody(f)))
	first = asActor(first, identity.Actor{ID: f.patient.ID, Role: identity.RolePatient})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, first)
	if rec.Code != http.StatusCreated {
		t.Fatalf("seed booking failed: %d", rec.Code)
	}

	second := httptest.NewRequest(http.MethodPost, "/appointments", strings.NewReader(bookingBody(f)))
	second = asActor(second, identity.Actor{ID: f.patient.ID, Role: identity.RolePatient})
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, second)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for taken slot, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestCreateAppointmentInsufficientCreditMapsTo402(t *testing.T) {
	f := newFixture(t, 0)
	router := newBookingRouter(f.svc)

	req := httptest.NewRequest(http.MethodPost, "/appointments", strings.NewReader(bookingBody(f)))
	req = asActor(req, identity.Actor{ID: f.patient.ID, Role: identity.RolePatient})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestCreateAppointmentRequiresPatientRole(t *testing.T) {
	f := newFixture(t, 5)
	router := newBookingRouter(f.svc)

	req := httptest.NewRequest(http.MethodPost, "/appointments", strings.NewReader(bookingBody(f)))
	req = asActor(req, identity.Actor{ID: f.doctor.ID, Role: identity.RoleDoctor})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for doctor actor, got %d", rec.Code)
	}

	anon := httptest.NewRequest(http.MethodPost, "/appointments", strings.NewReader(bookingBody(f)))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, anon)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without actor, got %d", rec.Code)
	}
}

func TestCreateAppointmentUnofferedSlotMapsTo422(t *testing.T) {
	f := newFixture(t, 5)
	router := newBookingRouter(f.svc)

	body := strings.Replace(bookingBody(f), `"10:00"`, `"10:10"`, 1)
	req := httptest.NewRequest(http.MethodPost, "/appointments", strings.NewReader(body))
	req = asActor(req, identity.Actor{ID: f.patient.ID, Role: identity.RolePatient})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for off-grid time, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestGetSlotsEndpoint(t *testing.T) {
	f := newFixture(t, 5)
	router := newBookingRouter(f.svc)

	url := fmt.Sprintf("/doctors/%s/slots?date=%s&timezone=America/New_York", f.doctor.ID, mondayDate)
	req := httptest.NewRequest(http.MethodGet, url, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var payload struct {
		Slots []SlotView `json:"slots"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(payload.Slots) != 6 {
		t.Fatalf("expected 6 slots, got %d", len(payload.Slots))
	}
	if payload.Slots[0].LocalTime != "09:00" {
		t.Fatalf("expected projection into New York, got %s", payload.Slots[0].LocalTime)
	}
}

func TestGetSlotsBadTimezone(t *testing.T) {
	f := newFixture(t, 5)
	router := newBookingRouter(f.svc)

	url := fmt.Sprintf("/doctors/%s/slots?date=%s&timezone=Nope/Nope", f.doctor.ID, mondayDate)
	req := httptest.NewRequest(http.MethodGet, url, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown timezone, got %d", rec.Code)
	}
}

func TestLifecycleEndpoints(t *testing.T) {
	f := newFixture(t, 5)
	router := newBookingRouter(f.svc)

	appt, err := f.svc.Book(httptest.NewRequest(http.MethodGet, "/", nil).Context(), validRequest(f))
	if err != nil {
		t.Fatalf("seed booking: %v", err)
	}
	base := "/appointments/" + appt.ID.String()

	// Patients cannot start consultations.
	req := asActor(httptest.NewRequest(http.MethodPost, base+"/start", nil), identity.Actor{ID: f.patient.ID, Role: identity.RolePatient})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for patient start, got %d", rec.Code)
	}

	req = asActor(httptest.NewRequest(http.MethodPost, base+"/start", nil), identity.Actor{ID: f.doctor.ID, Role: identity.RoleDoctor})
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("start: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	req = asActor(httptest.NewRequest(http.MethodPost, base+"/complete", nil), identity.Actor{ID: f.doctor.ID, Role: identity.RoleDoctor})
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("complete: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	// Completed appointments cannot be cancelled.
	req = asActor(httptest.NewRequest(http.MethodPost, base+"/cancel", strings.NewReader(`{"reason":"x"}`)), identity.Actor{ID: f.patient.ID, Role: identity.RolePatient})
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for illegal transition, got %d", rec.Code)
	}
}

func TestCancelAppointmentRequiresParty(t *testing.T) {
	f := newFixture(t, 5)
	router := newBookingRouter(f.svc)

	appt, err := f.svc.Book(httptest.NewRequest(http.MethodGet, "/", nil).Context(), validRequest(f))
	if err != nil {
		t.Fatalf("seed booking: %v", err)
	}
	base := "/appointments/" + appt.ID.String()

	stranger := asActor(
		httptest.NewRequest(http.MethodPost, base+"/cancel", strings.NewReader(`{"reason":"mine now"}`)),
		identity.Actor{ID: uuid.New(), Role: identity.RolePatient})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, stranger)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("stranger cancel: expected 403, got %d: %s", rec.Code, rec.Body.String())
	}

	kept, err := f.repo.GetByID(stranger.Context(), appt.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if kept.Status != StatusScheduled {
		t.Fatalf("stranger cancel must not release the slot, status is %s", kept.Status)
	}

	// The patient on the appointment still can.
	owner := asActor(
		httptest.NewRequest(http.MethodPost, base+"/cancel", strings.NewReader(`{"reason":"conflict"}`)),
		identity.Actor{ID: f.patient.ID, Role: identity.RolePatient})
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, owner)
	if rec.Code != http.StatusOK {
		t.Fatalf("owner cancel: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestLifecycleRequiresOwnDoctor(t *testing.T) {
	f := newFixture(t, 5)
	router := newBookingRouter(f.svc)

	appt, err := f.svc.Book(httptest.NewRequest(http.MethodGet, "/", nil).Context(), validRequest(f))
	if err != nil {
		t.Fatalf("seed booking: %v", err)
	}
	base := "/appointments/" + appt.ID.String()

	otherDoctor := identity.Actor{ID: uuid.New(), Role: identity.RoleDoctor}
	for _, action := range []string{"/start", "/complete", "/no-show"} {
		req := asActor(httptest.NewRequest(http.MethodPost, base+action, nil), otherDoctor)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("%s by unrelated doctor: expected 403, got %d", action, rec.Code)
		}
	}

	kept, err := f.repo.GetByID(httptest.NewRequest(http.MethodGet, "/", nil).Context(), appt.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if kept.Status != StatusScheduled {
		t.Fatalf("unrelated doctor must not move the appointment, status is %s", kept.Status)
	}

	// Admins retain full control.
	admin := asActor(httptest.NewRequest(http.MethodPost, base+"/start", nil), identity.Actor{ID: uuid.New(), Role: identity.RoleAdmin})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, admin)
	if rec.Code != http.StatusOK {
		t.Fatalf("admin start: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestGetAppointmentAuthorization(t *testing.T) {
	f := newFixture(t, 5)
	router := newBookingRouter(f.svc)

	appt, err := f.svc.Book(httptest.NewRequest(http.MethodGet, "/", nil).Context(), validRequest(f))
	if err != nil {
		t.Fatalf("seed booking: %v", err)
	}
	base := "/appointments/" + appt.ID.String()

	req := asActor(httptest.NewRequest(http.MethodGet, base, nil), identity.Actor{ID: f.patient.ID, Role: identity.RolePatient})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("owner read: expected 200, got %d", rec.Code)
	}

	stranger := asActor(httptest.NewRequest(http.MethodGet, base, nil), identity.Actor{ID: uuid.New(), Role: identity.RolePatient})
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, stranger)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("stranger read: expected 403, got %d", rec.Code)
	}

	missing := asActor(httptest.NewRequest(http.MethodGet, "/appointments/"+uuid.NewString(), nil), identity.Actor{ID: f.patient.ID, Role: identity.RolePatient})
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, missing)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing appointment: expected 404, got %d", rec.Code)
	}
}

func TestListMyAppointments(t *testing.T) {
	f := newFixture(t, 5)
	router := newBookingRouter(f.svc)

	if _, err := f.svc.Book(httptest.NewRequest(http.MethodGet, "/", nil).Context(), validRequest(f)); err != nil {
		t.Fatalf("seed booking: %v", err)
	}

	req := asActor(httptest.NewRequest(http.MethodGet, "/appointments", nil), identity.Actor{ID: f.patient.ID, Role: identity.RolePatient})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var payload struct {
		Appointments []*Appointment `json:"appointments"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(payload.Appointments) != 1 {
		t.Fatalf("expected 1 appointment, got %d", len(payload.Appointments))
	}

	docReq := asActor(httptest.NewRequest(http.MethodGet, "/appointments", nil), identity.Actor{ID: f.doctor.ID, Role: identity.RoleDoctor})
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, docReq)
	if rec.Code != http.StatusOK {
		t.Fatalf("doctor list: expected 200, got %d", rec.Code)
	}
}
