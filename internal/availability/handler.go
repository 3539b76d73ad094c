package availability

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/medlink/telehealth-platform/internal/identity"
	"github.com/medlink/telehealth-platform/pkg/logging"
)

// Handler exposes doctor schedule management over HTTP.
type Handler struct {
	repo   Repository
	logger *logging.Logger
}

// NewHandler creates a schedule handler.
func NewHandler(repo Repository, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{repo: repo, logger: logger}
}

type windowPayload struct {
	DayOfWeek int    `json:"day_of_week"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Enabled   bool   `json:"enabled"`
}

type schedulePayload struct {
	Windows []windowPayload `json:"windows"`
}

// GetSchedule handles GET /doctors/{doctorID}/schedule.
func (h *Handler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	doctorID, err := uuid.Parse(chi.URLParam(r, "doctorID"))
	if err != nil {
		http.Error(w, "invalid doctor id", http.StatusBadRequest)
		return
	}

	windows, err := h.repo.ListForDoctor(r.Context(), doctorID)
	if err != nil {
		h.logger.Error("failed to load schedule", "error", err, "doctor_id", doctorID)
		http.Error(w, "failed to load schedule", http.StatusInternalServerError)
		return
	}

	payload := schedulePayload{Windows: make([]windowPayload, 0, len(windows))}
	for _, win := range windows {
		payload.Windows = append(payload.Windows, windowPayload{
			DayOfWeek: int(win.DayOfWeek),
			StartTime: win.Start.String(),
			EndTime:   win.End.String(),
			Enabled:   win.Enabled,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(payload)
}

// PutSchedule handles PUT /doctors/{doctorID}/schedule. Only the doctor
// themself (or an admin) may replace the weekly template.
func (h *Handler) PutSchedule(w http.ResponseWriter, r *http.Request) {
	doctorID, err := uuid.Parse(chi.URLParam(r, "doctorID"))
	if err != nil {
		http.Error(w, "invalid doctor id", http.StatusBadRequest)
		return
	}

	actor, ok := identity.FromContext(r.Context())
	if !ok {
		http.Error(w, "missing actor", http.StatusUnauthorized)
		return
	}
	if actor.Role != identity.RoleAdmin && actor.ID != doctorID {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	var payload schedulePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	windows := make([]Window, 0, len(payload.Windows))
	for _, in := range payload.Windows {
		start, err := ParseTimeOfDay(in.StartTime)
		if err != nil {
			http.Error(w, "invalid start_time", http.StatusBadRequest)
			return
		}
		end, err := ParseTimeOfDay(in.EndTime)
		if err != nil {
			http.Error(w, "invalid end_time", http.StatusBadRequest)
			return
		}
		windows = append(windows, Window{
			DoctorID:  doctorID,
			DayOfWeek: time.Weekday(in.DayOfWeek),
			Start:     start,
			End:       end,
			Enabled:   in.Enabled,
		})
	}

	if err := h.repo.ReplaceForDoctor(r.Context(), doctorID, windows); err != nil {
		if errors.Is(err, ErrInvalidWindow) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.logger.Error("failed to replace schedule", "error", err, "doctor_id", doctorID)
		http.Error(w, "failed to replace schedule", http.StatusInternalServerError)
		return
	}

	h.logger.Info("schedule replaced", "doctor_id", doctorID, "windows", len(windows))
	w.WriteHeader(http.StatusNoContent)
}
