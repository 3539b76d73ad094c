package notify

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/medlink/telehealth-platform/internal/dispatch"
	"github.com/medlink/telehealth-platform/internal/doctors"
	"github.com/medlink/telehealth-platform/internal/patients"
	"github.com/medlink/telehealth-platform/pkg/logging"
)

type fakeSender struct {
	sent []EmailMessage
}

func (f *fakeSender) Send(_ context.Context, msg EmailMessage) error {
	f.sent = append(f.sent, msg)
	return nil
}

func newTestService(t *testing.T) (*Service, *fakeSender, *doctors.Doctor, *patients.Patient) {
	t.Helper()
	sender := &fakeSender{}
	docRepo := doctors.NewInMemoryRepository()
	patRepo := patients.NewInMemoryRepository()

	doc := &doctors.Doctor{
		ID:       uuid.New(),
		Name:     "Okafor",
		Email:    "okafor@example.com",
		Timezone: "Europe/London",
	}
	docRepo.Put(doc)

	pat := &patients.Patient{
		ID:       uuid.New(),
		Name:     "Maya",
		Email:    "maya@example.com",
		Timezone: "America/New_York",
	}
	patRepo.Put(pat)

	svc := NewService(sender, docRepo, patRepo, logging.New("error"))
	return svc, sender, doc, pat
}

func TestBookingConfirmationEmailsBothPartiesInTheirZones(t *testing.T) {
	svc, sender, doc, pat := newTestService(t)

	// 14:00 UTC on a July day: 10:00 in New York, 15:00 in London.
	startsAt := time.Date(2025, 7, 14, 14, 0, 0, 0, time.UTC)
	evt := dispatch.BookingConfirmedV1{
		AppointmentID: uuid.New(),
		DoctorID:      doc.ID,
		PatientID:     pat.ID,
		StartsAtUTC:   startsAt,
		Topic:         "follow-up",
		JoinURL:       "https://meet.example.com/abc",
	}
	if err := svc.HandleBookingConfirmed(context.Background(), evt); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(sender.sent) != 2 {
		t.Fatalf("expected 2 emails, got %d", len(sender.sent))
	}

	patientMail := sender.sent[0]
	if patientMail.To != pat.Email {
		t.Fatalf("first email should go to the patient, went to %s", patientMail.To)
	}
	if !strings.Contains(patientMail.Body, "10:00 AM") {
		t.Fatalf("patient email should show New York time, got: %s", patientMail.Body)
	}
	if !strings.Contains(patientMail.Body, "https://meet.example.com/abc") {
		t.Fatalf("patient email should carry the join link")
	}

	doctorMail := sender.sent[1]
	if doctorMail.To != doc.Email {
		t.Fatalf("second email should go to the doctor, went to %s", doctorMail.To)
	}
	if !strings.Contains(doctorMail.Body, "3:00 PM") {
		t.Fatalf("doctor email should show London time, got: %s", doctorMail.Body)
	}
}

func TestCancellationNoticeMentionsRefund(t *testing.T) {
	svc, sender, doc, pat := newTestService(t)

	evt := dispatch.AppointmentCancelledV1{
		AppointmentID: uuid.New(),
		DoctorID:      doc.ID,
		PatientID:     pat.ID,
		Refunded:      true,
		Reason:        "cancelled by patient",
	}
	if err := svc.HandleAppointmentCancelled(context.Background(), evt); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected 1 email, got %d", len(sender.sent))
	}
	if !strings.Contains(sender.sent[0].Body, "credit has been returned") {
		t.Fatalf("refunded cancellation should mention the returned credit: %s", sender.sent[0].Body)
	}
}

func TestLowBalanceNotice(t *testing.T) {
	svc, sender, _, pat := newTestService(t)

	evt := dispatch.LowBalanceV1{PatientID: pat.ID, Balance: 1, Threshold: 2}
	if err := svc.HandleLowBalance(context.Background(), evt); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected 1 email, got %d", len(sender.sent))
	}
	if !strings.Contains(sender.sent[0].Body, "1 consultation credit") {
		t.Fatalf("notice should state the remaining balance: %s", sender.sent[0].Body)
	}
}

func TestUnknownPatientFailsHandler(t *testing.T) {
	svc, sender, _, _ := newTestService(t)

	evt := dispatch.LowBalanceV1{PatientID: uuid.New(), Balance: 0}
	if err := svc.HandleLowBalance(context.Background(), evt); err == nil {
		t.Fatalf("expected error for unknown patient")
	}
	if len(sender.sent) != 0 {
		t.Fatalf("no email should be sent for unknown patient")
	}
}
