package booking

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/medlink/telehealth-platform/internal/availability"
	"github.com/medlink/telehealth-platform/internal/credits"
	"github.com/medlink/telehealth-platform/internal/doctors"
	"github.com/medlink/telehealth-platform/internal/identity"
	"github.com/medlink/telehealth-platform/internal/patients"
	"github.com/medlink/telehealth-platform/pkg/logging"
)

// Handler exposes the booking engine over HTTP.
type Handler struct {
	svc    *Service
	logger *logging.Logger
}

// NewHandler creates a booking handler.
func NewHandler(svc *Service, logger *logging.Logger) *Handler {
	if svc == nil {
		panic("booking: service cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{svc: svc, logger: logger}
}

// GetSlots handles GET /doctors/{doctorID}/slots?date=YYYY-MM-DD&timezone=...
func (h *Handler) GetSlots(w http.ResponseWriter, r *http.Request) {
	doctorID, err := uuid.Parse(chi.URLParam(r, "doctorID"))
	if err != nil {
		http.Error(w, "invalid doctor id", http.StatusBadRequest)
		return
	}
	date := r.URL.Query().Get("date")
	tz := r.URL.Query().Get("timezone")
	if tz == "" {
		tz = "UTC"
	}

	views, err := h.svc.ListAvailableSlots(r.Context(), doctorID, date, tz)
	if err != nil {
		h.writeError(w, r, err, "failed to list slots")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"doctor_id": doctorID,
		"date":      date,
		"timezone":  tz,
		"slots":     views,
	})
}

// CreateAppointment handles POST /appointments. The patient identity comes
// from the access token, never the payload.
func (h *Handler) CreateAppointment(w http.ResponseWriter, r *http.Request) {
	actor, ok := identity.FromContext(r.Context())
	if !ok {
		http.Error(w, "missing actor", http.StatusUnauthorized)
		return
	}
	if actor.Role != identity.RolePatient {
		http.Error(w, "only patients can book appointments", http.StatusForbidden)
		return
	}

	var req BookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	req.PatientID = actor.ID

	appt, err := h.svc.Book(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err, "booking failed")
		return
	}

	h.logger.Info("appointment booked",
		"appointment_id", appt.ID,
		"doctor_id", appt.DoctorID,
		"patient_id", appt.PatientID)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(appt)
}

// GetAppointment handles GET /appointments/{appointmentID}.
func (h *Handler) GetAppointment(w http.ResponseWriter, r *http.Request) {
	appt, _, ok := h.loadAuthorized(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(appt)
}

// StartAppointment handles POST /appointments/{appointmentID}/start. Only the
// appointment's own doctor opens the consultation room.
func (h *Handler) StartAppointment(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, doctorParty, func(actor identity.Actor, id uuid.UUID) (*Appointment, error) {
		return h.svc.Start(r.Context(), actor.ID, id)
	})
}

// CompleteAppointment handles POST /appointments/{appointmentID}/complete.
func (h *Handler) CompleteAppointment(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, doctorParty, func(actor identity.Actor, id uuid.UUID) (*Appointment, error) {
		return h.svc.Complete(r.Context(), actor.ID, id)
	})
}

// CancelAppointment handles POST /appointments/{appointmentID}/cancel.
// Either party to the appointment may cancel.
func (h *Handler) CancelAppointment(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Reason string `json:"reason"`
	}
	// Body is optional.
	_ = json.NewDecoder(r.Body).Decode(&body)
	if body.Reason == "" {
		body.Reason = "cancelled"
	}

	h.lifecycle(w, r, anyParty, func(actor identity.Actor, id uuid.UUID) (*Appointment, error) {
		return h.svc.Cancel(r.Context(), actor.ID, id, body.Reason)
	})
}

// NoShowAppointment handles POST /appointments/{appointmentID}/no-show.
func (h *Handler) NoShowAppointment(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, doctorParty, func(actor identity.Actor, id uuid.UUID) (*Appointment, error) {
		return h.svc.NoShow(r.Context(), actor.ID, id)
	})
}

// ListMyAppointments handles GET /appointments. Doctors see their calendar,
// patients their own bookings.
func (h *Handler) ListMyAppointments(w http.ResponseWriter, r *http.Request) {
	actor, ok := identity.FromContext(r.Context())
	if !ok {
		http.Error(w, "missing actor", http.StatusUnauthorized)
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	var (
		appts []*Appointment
		err   error
	)
	switch actor.Role {
	case identity.RoleDoctor:
		appts, err = h.svc.ListForDoctor(r.Context(), actor.ID, limit)
	case identity.RolePatient:
		appts, err = h.svc.ListForPatient(r.Context(), actor.ID, limit)
	default:
		http.Error(w, "unsupported role", http.StatusForbidden)
		return
	}
	if err != nil {
		h.writeError(w, r, err, "failed to list appointments")
		return
	}
	if appts == nil {
		appts = []*Appointment{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"appointments": appts})
}

// party scopes a lifecycle endpoint to a subset of the appointment's parties.
type party int

const (
	// anyParty admits the appointment's doctor, its patient, or an admin.
	anyParty party = iota
	// doctorParty admits only the appointment's own doctor or an admin.
	doctorParty
)

func (h *Handler) lifecycle(w http.ResponseWriter, r *http.Request, who party, fn func(identity.Actor, uuid.UUID) (*Appointment, error)) {
	appt, actor, ok := h.loadAuthorized(w, r)
	if !ok {
		return
	}
	if who == doctorParty && actor.Role != identity.RoleAdmin && actor.ID != appt.DoctorID {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	updated, err := fn(actor, appt.ID)
	if err != nil {
		h.writeError(w, r, err, "transition failed")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(updated)
}

func (h *Handler) loadAuthorized(w http.ResponseWriter, r *http.Request) (*Appointment, identity.Actor, bool) {
	actor, ok := identity.FromContext(r.Context())
	if !ok {
		http.Error(w, "missing actor", http.StatusUnauthorized)
		return nil, identity.Actor{}, false
	}
	id, err := uuid.Parse(chi.URLParam(r, "appointmentID"))
	if err != nil {
		http.Error(w, "invalid appointment id", http.StatusBadRequest)
		return nil, identity.Actor{}, false
	}

	appt, err := h.svc.GetAppointment(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err, "failed to load appointment")
		return nil, identity.Actor{}, false
	}
	if actor.Role != identity.RoleAdmin && actor.ID != appt.DoctorID && actor.ID != appt.PatientID {
		http.Error(w, "forbidden", http.StatusForbidden)
		return nil, identity.Actor{}, false
	}
	return appt, actor, true
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		http.Error(w, verr.Error(), http.StatusBadRequest)
	case errors.Is(err, availability.ErrInvalidTimezone):
		http.Error(w, "unknown timezone", http.StatusBadRequest)
	case errors.Is(err, ErrSlotNotBookable):
		http.Error(w, "requested time is not a bookable slot", http.StatusUnprocessableEntity)
	case errors.Is(err, ErrSlotTaken):
		http.Error(w, "slot already booked", http.StatusConflict)
	case errors.Is(err, credits.ErrInsufficientCredit):
		http.Error(w, "insufficient consultation credits", http.StatusPaymentRequired)
	case errors.Is(err, credits.ErrAccountNotFound):
		http.Error(w, "no credit account", http.StatusPaymentRequired)
	case errors.Is(err, ErrAppointmentNotFound):
		http.Error(w, "appointment not found", http.StatusNotFound)
	case errors.Is(err, doctors.ErrDoctorNotFound):
		http.Error(w, "doctor not found", http.StatusNotFound)
	case errors.Is(err, patients.ErrPatientNotFound):
		http.Error(w, "patient not found", http.StatusNotFound)
	case errors.Is(err, ErrInvalidTransition):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, ErrPersistenceFailed):
		h.logger.Error(fallback, "error", err, "path", r.URL.Path)
		http.Error(w, "temporarily unable to book", http.StatusServiceUnavailable)
	default:
		h.logger.Error(fallback, "error", err, "path", r.URL.Path)
		http.Error(w, fallback, http.StatusInternalServerError)
	}
}
