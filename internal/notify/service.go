// Package notify turns booking events into patient and doctor emails. It is
// driven by the dispatch worker, off the request path, so a broken email
// provider never blocks a booking.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/medlink/telehealth-platform/internal/dispatch"
	"github.com/medlink/telehealth-platform/internal/doctors"
	"github.com/medlink/telehealth-platform/internal/patients"
	"github.com/medlink/telehealth-platform/pkg/logging"
)

// DoctorDirectory resolves doctor contact details.
type DoctorDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*doctors.Doctor, error)
}

// PatientDirectory resolves patient contact details.
type PatientDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*patients.Patient, error)
}

// Service handles sending appointment notifications.
type Service struct {
	email    EmailSender
	doctors  DoctorDirectory
	patients PatientDirectory
	logger   *logging.Logger
}

// NewService creates a notification service.
func NewService(email EmailSender, docs DoctorDirectory, pats PatientDirectory, logger *logging.Logger) *Service {
	if email == nil {
		panic("notify: email sender cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		email:    email,
		doctors:  docs,
		patients: pats,
		logger:   logger,
	}
}

var _ dispatch.Handler = (*Service)(nil)

// HandleBookingConfirmed emails both parties, each in their own timezone.
func (s *Service) HandleBookingConfirmed(ctx context.Context, evt dispatch.BookingConfirmedV1) error {
	patient, err := s.patients.GetByID(ctx, evt.PatientID)
	if err != nil {
		return fmt.Errorf("notify: resolve patient: %w", err)
	}
	doctor, err := s.doctors.GetByID(ctx, evt.DoctorID)
	if err != nil {
		return fmt.Errorf("notify: resolve doctor: %w", err)
	}

	patientWhen := formatInZone(evt.StartsAtUTC, patient.Timezone)
	doctorWhen := formatInZone(evt.StartsAtUTC, doctor.Timezone)

	patientMsg := EmailMessage{
		To:      patient.Email,
		ToName:  patient.Name,
		Subject: fmt.Sprintf("Appointment confirmed with Dr. %s", doctor.Name),
		Body: fmt.Sprintf(
			"Hi %s,\n\nYour consultation with Dr. %s is confirmed for %s (%s).\nTopic: %s\n%s\nSee you then.",
			patient.Name, doctor.Name, patientWhen, patient.Timezone, evt.Topic, joinLine(evt.JoinURL)),
	}
	if err := s.email.Send(ctx, patientMsg); err != nil {
		return err
	}

	doctorMsg := EmailMessage{
		To:      doctor.Email,
		ToName:  doctor.Name,
		Subject: fmt.Sprintf("New appointment: %s", doctorWhen),
		Body: fmt.Sprintf(
			"Dr. %s,\n\nA consultation with %s is booked for %s (%s).\nTopic: %s\n%s",
			doctor.Name, patient.Name, doctorWhen, doctor.Timezone, evt.Topic, joinLine(evt.JoinURL)),
	}
	if err := s.email.Send(ctx, doctorMsg); err != nil {
		return err
	}

	s.logger.Info("booking confirmation sent",
		"appointment_id", evt.AppointmentID,
		"patient_id", evt.PatientID,
		"doctor_id", evt.DoctorID)
	return nil
}

// HandleAppointmentCancelled informs the patient, noting whether a credit was
// returned.
func (s *Service) HandleAppointmentCancelled(ctx context.Context, evt dispatch.AppointmentCancelledV1) error {
	patient, err := s.patients.GetByID(ctx, evt.PatientID)
	if err != nil {
		return fmt.Errorf("notify: resolve patient: %w", err)
	}

	refundLine := "No credit was returned for this cancellation."
	if evt.Refunded {
		refundLine = "Your consultation credit has been returned to your account."
	}
	msg := EmailMessage{
		To:      patient.Email,
		ToName:  patient.Name,
		Subject: "Your appointment was cancelled",
		Body: fmt.Sprintf("Hi %s,\n\nYour appointment has been cancelled (%s).\n%s",
			patient.Name, evt.Reason, refundLine),
	}
	if err := s.email.Send(ctx, msg); err != nil {
		return err
	}

	s.logger.Info("cancellation notice sent", "appointment_id", evt.AppointmentID, "patient_id", evt.PatientID)
	return nil
}

// HandleLowBalance nudges the patient to top up.
func (s *Service) HandleLowBalance(ctx context.Context, evt dispatch.LowBalanceV1) error {
	patient, err := s.patients.GetByID(ctx, evt.PatientID)
	if err != nil {
		return fmt.Errorf("notify: resolve patient: %w", err)
	}

	msg := EmailMessage{
		To:      patient.Email,
		ToName:  patient.Name,
		Subject: "Your consultation credits are running low",
		Body: fmt.Sprintf("Hi %s,\n\nYou have %d consultation credit(s) remaining. Top up to keep booking appointments.",
			patient.Name, evt.Balance),
	}
	if err := s.email.Send(ctx, msg); err != nil {
		return err
	}

	s.logger.Info("low balance notice sent", "patient_id", evt.PatientID, "balance", evt.Balance)
	return nil
}

func formatInZone(utc time.Time, tz string) string {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc = time.UTC
	}
	return utc.In(loc).Format("Monday, January 2 at 3:04 PM")
}

func joinLine(url string) string {
	if url == "" {
		return ""
	}
	return fmt.Sprintf("Join link: %s\n", url)
}
