package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/medlink/telehealth-platform/internal/audit"
	"github.com/medlink/telehealth-platform/internal/availability"
	"github.com/medlink/telehealth-platform/internal/credits"
	"github.com/medlink/telehealth-platform/internal/dispatch"
	"github.com/medlink/telehealth-platform/internal/doctors"
	"github.com/medlink/telehealth-platform/internal/observability/metrics"
	"github.com/medlink/telehealth-platform/internal/patients"
	"github.com/medlink/telehealth-platform/internal/video"
	"github.com/medlink/telehealth-platform/pkg/logging"
)

// DoctorDirectory resolves doctor records during booking.
type DoctorDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*doctors.Doctor, error)
}

// PatientDirectory resolves patient records during booking.
type PatientDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*patients.Patient, error)
}

// VideoProvider provisions consultation rooms.
type VideoProvider interface {
	CreateSession(ctx context.Context, key string) (*video.Session, error)
}

// EventPublisher fans post-commit side effects out to the dispatch queue.
type EventPublisher interface {
	PublishBookingConfirmed(ctx context.Context, evt dispatch.BookingConfirmedV1) error
	PublishAppointmentCancelled(ctx context.Context, evt dispatch.AppointmentCancelledV1) error
	PublishLowBalance(ctx context.Context, evt dispatch.LowBalanceV1) error
}

// AuditRecorder appends booking activity to the audit trail.
type AuditRecorder interface {
	Record(ctx context.Context, eventType audit.EventType, actorID, targetID uuid.UUID, details map[string]any) error
}

// Options carries the tunables of the booking pipeline.
type Options struct {
	GranularityMinutes   int
	DurationMinutes      int
	LowBalanceThreshold  int
	CancelRefundLeadTime time.Duration
	ConsultationTypes    []string
	VideoTimeout         time.Duration
}

func (o *Options) fill() {
	if o.GranularityMinutes <= 0 {
		o.GranularityMinutes = 30
	}
	if o.DurationMinutes <= 0 {
		o.DurationMinutes = o.GranularityMinutes
	}
	if o.LowBalanceThreshold < 0 {
		o.LowBalanceThreshold = 0
	}
	if o.CancelRefundLeadTime <= 0 {
		o.CancelRefundLeadTime = 24 * time.Hour
	}
	if len(o.ConsultationTypes) == 0 {
		o.ConsultationTypes = []string{"video", "audio", "chat"}
	}
	if o.VideoTimeout <= 0 {
		o.VideoTimeout = 5 * time.Second
	}
}

// Service is the booking coordinator. It owns the credit-for-slot exchange:
// a credit is only spent on a booking that lands, and a booking only lands
// with a spent credit. The ordering is deduct first, insert second, refund on
// any insert failure; the database's active-slot uniqueness makes the insert
// the single serialization point under races.
type Service struct {
	repo      Repository
	windows   availability.Repository
	credits   credits.Store
	doctors   DoctorDirectory
	patients  PatientDirectory
	video     VideoProvider
	publisher EventPublisher
	auditor   AuditRecorder
	cache     *SlotCache
	metrics   *metrics.BookingMetrics
	logger    *logging.Logger
	tracer    trace.Tracer
	opts      Options

	now func() time.Time
}

// ServiceOption customizes the coordinator.
type ServiceOption func(*Service)

// WithSlotCache wires the redis listing cache.
func WithSlotCache(cache *SlotCache) ServiceOption {
	return func(s *Service) { s.cache = cache }
}

// WithMetrics wires booking counters.
func WithMetrics(m *metrics.BookingMetrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

// WithPublisher wires the side-effect queue.
func WithPublisher(p EventPublisher) ServiceOption {
	return func(s *Service) { s.publisher = p }
}

// WithAuditor wires the audit trail.
func WithAuditor(a AuditRecorder) ServiceOption {
	return func(s *Service) { s.auditor = a }
}

// WithVideoProvider wires a real video backend. Without one, bookings get
// placeholder sessions.
func WithVideoProvider(p VideoProvider) ServiceOption {
	return func(s *Service) { s.video = p }
}

// WithClock overrides the time source for tests.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// NewService wires the booking coordinator.
func NewService(repo Repository, windows availability.Repository, creditStore credits.Store, docs DoctorDirectory, pats PatientDirectory, opts Options, logger *logging.Logger, options ...ServiceOption) *Service {
	if repo == nil {
		panic("booking: repository cannot be nil")
	}
	if windows == nil {
		panic("booking: availability repository cannot be nil")
	}
	if creditStore == nil {
		panic("booking: credit store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	opts.fill()

	s := &Service{
		repo:     repo,
		windows:  windows,
		credits:  creditStore,
		doctors:  docs,
		patients: pats,
		logger:   logger,
		tracer:   otel.Tracer("telehealth.internal.booking"),
		opts:     opts,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// ListAvailableSlots projects a doctor's bookable day into the requested
// timezone. Taken slots are included and flagged so clients can render a full
// grid.
func (s *Service) ListAvailableSlots(ctx context.Context, doctorID uuid.UUID, dateStr, tz string) ([]SlotView, error) {
	ctx, span := s.tracer.Start(ctx, "booking.list_slots")
	defer span.End()

	date, err := parseDate(dateStr)
	if err != nil {
		return nil, err
	}
	if _, err := availability.LoadZone(tz); err != nil {
		return nil, err
	}

	if s.cache != nil {
		if views, ok := s.cache.Get(ctx, doctorID, date, tz); ok {
			s.metrics.ObserveSlotListing()
			return views, nil
		}
	}

	if _, err := s.doctors.GetByID(ctx, doctorID); err != nil {
		return nil, err
	}

	windows, err := s.windows.ListForDoctor(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	slots := availability.GenerateSlots(windows, date, s.opts.GranularityMinutes)

	taken, err := s.repo.ListTaken(ctx, doctorID, date)
	if err != nil {
		return nil, err
	}

	views := make([]SlotView, 0, len(slots))
	for _, slot := range slots {
		local, err := availability.ToLocal(slot, date, tz)
		if err != nil {
			return nil, err
		}
		_, isTaken := taken[slot]
		views = append(views, SlotView{
			LocalTime: local.String(),
			UTCTime:   slot.String(),
			Available: !isTaken,
		})
	}

	if s.cache != nil {
		s.cache.Set(ctx, doctorID, date, tz, views)
	}
	s.metrics.ObserveSlotListing()
	return views, nil
}

// Book runs the booking pipeline for one request.
func (s *Service) Book(ctx context.Context, req BookingRequest) (*Appointment, error) {
	ctx, span := s.tracer.Start(ctx, "booking.book")
	defer span.End()

	started := s.now()
	appt, err := s.book(ctx, req)
	elapsed := s.now().Sub(started).Seconds()

	switch {
	case err == nil:
		s.metrics.ObserveBooking("booked", elapsed)
	case errors.Is(err, ErrSlotTaken):
		s.metrics.ObserveBooking("slot_taken", elapsed)
	case errors.Is(err, credits.ErrInsufficientCredit):
		s.metrics.ObserveBooking("insufficient_credit", elapsed)
	case errors.Is(err, ErrPersistenceFailed):
		s.metrics.ObserveBooking("persistence_failed", elapsed)
	default:
		s.metrics.ObserveBooking("rejected", elapsed)
	}
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return appt, nil
}

func (s *Service) book(ctx context.Context, req BookingRequest) (*Appointment, error) {
	if err := validateRequest(req, s.opts.ConsultationTypes); err != nil {
		return nil, err
	}

	localDate, err := parseDate(req.Date)
	if err != nil {
		return nil, err
	}
	localTime, err := availability.ParseTimeOfDay(req.LocalTime)
	if err != nil {
		return nil, invalidField("local_time", "must be HH:MM")
	}

	patient, err := s.patients.GetByID(ctx, req.PatientID)
	if err != nil {
		return nil, err
	}
	doctor, err := s.doctors.GetByID(ctx, req.DoctorID)
	if err != nil {
		return nil, err
	}

	// Everything downstream works in UTC. The requested local wall time is
	// resolved to a UTC calendar date and slot; the two may fall on
	// different calendar days near the date line.
	utcInstant, utcSlot, err := availability.ResolveLocal(localTime, localDate, req.Timezone)
	if err != nil {
		return nil, err
	}
	utcDate := time.Date(utcInstant.Year(), utcInstant.Month(), utcInstant.Day(), 0, 0, 0, 0, time.UTC)

	if !utcInstant.After(s.now()) {
		return nil, invalidField("local_time", "must be in the future")
	}

	windows, err := s.windows.ListForDoctor(ctx, req.DoctorID)
	if err != nil {
		return nil, err
	}
	if !slotOffered(windows, utcDate, utcSlot, s.opts.GranularityMinutes) {
		return nil, ErrSlotNotBookable
	}

	// Fast-path conflict check. Advisory only: the insert below is what
	// actually serializes concurrent attempts.
	taken, err := s.repo.IsTaken(ctx, req.DoctorID, utcDate, utcSlot)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistenceFailed, err)
	}
	if taken {
		return nil, ErrSlotTaken
	}

	appt := &Appointment{
		ID:               uuid.New(),
		DoctorID:         req.DoctorID,
		PatientID:        req.PatientID,
		CalendarDate:     utcDate,
		SlotTimeUTC:      utcSlot,
		SlotTimeLocal:    localTime.String(),
		PatientTimezone:  req.Timezone,
		DoctorTimezone:   doctor.Timezone,
		DurationMinutes:  s.opts.DurationMinutes,
		Status:           StatusScheduled,
		ConsultationFee:  doctor.ConsultationFee,
		ConsultationType: req.ConsultationType,
		Topic:            req.Topic,
		Description:      req.Description,
	}
	s.attachVideoSession(ctx, appt)

	balance, err := s.credits.Deduct(ctx, req.PatientID, appt.ConsultationFee)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, appt); err != nil {
		s.refund(ctx, req.PatientID, appt.ConsultationFee, appt.ID)
		if errors.Is(err, ErrSlotTaken) {
			return nil, ErrSlotTaken
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistenceFailed, err)
	}

	s.afterBooking(ctx, appt, patient, balance)
	return appt, nil
}

// attachVideoSession decorates the appointment with a consultation room. The
// room is provisioned before credits move so a failure costs nothing; if the
// provider is down or slow, the appointment goes out with a placeholder the
// care team can swap later.
func (s *Service) attachVideoSession(ctx context.Context, appt *Appointment) {
	if appt.ConsultationType != "video" {
		return
	}
	session := s.createVideoSession(ctx, appt.ID.String())
	appt.VideoSessionID = session.ID
	appt.VideoJoinURL = session.JoinURL
}

func (s *Service) createVideoSession(ctx context.Context, key string) *video.Session {
	if s.video == nil {
		return video.PlaceholderSession(key)
	}
	vctx, cancel := context.WithTimeout(ctx, s.opts.VideoTimeout)
	defer cancel()

	session, err := s.video.CreateSession(vctx, key)
	if err != nil || session == nil {
		s.logger.Warn("video session unavailable, using placeholder", "error", err, "appointment_id", key)
		return video.PlaceholderSession(key)
	}
	return session
}

func (s *Service) refund(ctx context.Context, patientID uuid.UUID, amount int, apptID uuid.UUID) {
	if _, err := s.credits.Refund(ctx, patientID, amount); err != nil {
		// The deduction stands but the booking does not. This needs a
		// human; surface loudly.
		s.logger.Error("compensating refund failed",
			"error", err,
			"patient_id", patientID,
			"appointment_id", apptID,
			"amount", amount)
	}
}

func (s *Service) afterBooking(ctx context.Context, appt *Appointment, patient *patients.Patient, balance int) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, appt.DoctorID, appt.CalendarDate)
	}
	if s.auditor != nil {
		if err := s.auditor.Record(ctx, audit.EventAppointmentBooked, appt.PatientID, appt.ID, map[string]any{
			"doctor_id":     appt.DoctorID.String(),
			"slot_time_utc": appt.SlotTimeUTC.String(),
			"fee":           appt.ConsultationFee,
		}); err != nil {
			s.logger.Warn("audit record failed", "error", err, "appointment_id", appt.ID)
		}
	}
	if s.publisher == nil {
		return
	}
	evt := dispatch.BookingConfirmedV1{
		AppointmentID: appt.ID,
		DoctorID:      appt.DoctorID,
		PatientID:     appt.PatientID,
		StartsAtUTC:   appt.StartsAt(),
		LocalTime:     appt.SlotTimeLocal,
		Timezone:      appt.PatientTimezone,
		Topic:         appt.Topic,
		JoinURL:       appt.VideoJoinURL,
	}
	if err := s.publisher.PublishBookingConfirmed(ctx, evt); err != nil {
		s.logger.Warn("failed to enqueue confirmation", "error", err, "appointment_id", appt.ID)
		s.metrics.ObserveSideEffectFailure("enqueue_confirmation")
	}
	if balance <= s.opts.LowBalanceThreshold {
		notice := dispatch.LowBalanceV1{
			PatientID: patient.ID,
			Balance:   balance,
			Threshold: s.opts.LowBalanceThreshold,
		}
		if err := s.publisher.PublishLowBalance(ctx, notice); err != nil {
			s.logger.Warn("failed to enqueue low balance notice", "error", err, "patient_id", patient.ID)
			s.metrics.ObserveSideEffectFailure("enqueue_low_balance")
		}
	}
}

// GetAppointment loads one appointment for an authorized party.
func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetByID(ctx, id)
}

// ListForDoctor returns a doctor's upcoming appointments.
func (s *Service) ListForDoctor(ctx context.Context, doctorID uuid.UUID, limit int) ([]*Appointment, error) {
	return s.repo.ListForDoctor(ctx, doctorID, s.now(), limit)
}

// ListForPatient returns a patient's upcoming appointments.
func (s *Service) ListForPatient(ctx context.Context, patientID uuid.UUID, limit int) ([]*Appointment, error) {
	return s.repo.ListForPatient(ctx, patientID, s.now(), limit)
}

// Start moves a scheduled appointment into progress.
func (s *Service) Start(ctx context.Context, actorID, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, actorID, id, StatusInProgress, audit.EventAppointmentStarted, false, "")
}

// Complete finishes an in-progress consultation.
func (s *Service) Complete(ctx context.Context, actorID, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, actorID, id, StatusCompleted, audit.EventAppointmentCompleted, false, "")
}

// Cancel releases the slot. The consultation credit is returned when the
// cancellation lands far enough ahead of the start time.
func (s *Service) Cancel(ctx context.Context, actorID, id uuid.UUID, reason string) (*Appointment, error) {
	return s.transition(ctx, actorID, id, StatusCancelled, audit.EventAppointmentCancelled, true, reason)
}

// NoShow marks a missed appointment. The credit is forfeited.
func (s *Service) NoShow(ctx context.Context, actorID, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, actorID, id, StatusNoShow, audit.EventAppointmentNoShow, false, "patient did not attend")
}

func (s *Service) transition(ctx context.Context, actorID, id uuid.UUID, to Status, auditKind audit.EventType, mayRefund bool, reason string) (*Appointment, error) {
	ctx, span := s.tracer.Start(ctx, "booking.transition")
	defer span.End()

	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(appt.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, appt.Status, to)
	}
	from := appt.Status
	if err := s.repo.UpdateStatus(ctx, id, from, to); err != nil {
		return nil, err
	}
	appt.Status = to

	refunded := false
	if mayRefund && s.refundEligible(appt) {
		if _, err := s.credits.Refund(ctx, appt.PatientID, appt.ConsultationFee); err != nil {
			s.logger.Error("cancellation refund failed", "error", err, "appointment_id", id)
		} else {
			refunded = true
		}
	}

	if s.cache != nil && !to.Active() {
		s.cache.Invalidate(ctx, appt.DoctorID, appt.CalendarDate)
	}
	if s.auditor != nil {
		if err := s.auditor.Record(ctx, auditKind, actorID, id, map[string]any{
			"from":     string(from),
			"to":       string(to),
			"refunded": refunded,
		}); err != nil {
			s.logger.Warn("audit record failed", "error", err, "appointment_id", id)
		}
	}
	if s.publisher != nil && (to == StatusCancelled || to == StatusNoShow) {
		evt := dispatch.AppointmentCancelledV1{
			AppointmentID: id,
			DoctorID:      appt.DoctorID,
			PatientID:     appt.PatientID,
			Refunded:      refunded,
			Reason:        reason,
		}
		if err := s.publisher.PublishAppointmentCancelled(ctx, evt); err != nil {
			s.logger.Warn("failed to enqueue cancellation notice", "error", err, "appointment_id", id)
			s.metrics.ObserveSideEffectFailure("enqueue_cancellation")
		}
	}
	return appt, nil
}

func (s *Service) refundEligible(appt *Appointment) bool {
	return appt.StartsAt().Sub(s.now()) >= s.opts.CancelRefundLeadTime
}

func validateRequest(req BookingRequest, allowedTypes []string) error {
	if req.DoctorID == uuid.Nil {
		return invalidField("doctor_id", "is required")
	}
	if req.PatientID == uuid.Nil {
		return invalidField("patient_id", "is required")
	}
	if req.Timezone == "" {
		return invalidField("timezone", "is required")
	}
	if req.Topic == "" {
		return invalidField("topic", "is required")
	}
	if req.ConsultationType == "" {
		return invalidField("consultation_type", "is required")
	}
	for _, t := range allowedTypes {
		if req.ConsultationType == t {
			return nil
		}
	}
	return invalidField("consultation_type", "is not offered")
}

func slotOffered(windows []availability.Window, utcDate time.Time, slot availability.TimeOfDay, granularity int) bool {
	for _, candidate := range availability.GenerateSlots(windows, utcDate, granularity) {
		if candidate == slot {
			return true
		}
	}
	return false
}

func parseDate(s string) (time.Time, error) {
	date, err := time.ParseInLocation("2006-01-02", s, time.UTC)
	if err != nil {
		return time.Time{}, invalidField("date", "must be YYYY-MM-DD")
	}
	return date, nil
}
