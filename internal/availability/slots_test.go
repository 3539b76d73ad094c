package availability

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func mustTime(t *testing.T, s string) TimeOfDay {
	t.Helper()
	tod, err := ParseTimeOfDay(s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return tod
}

func TestGenerateSlotsMondayWindow(t *testing.T) {
	doctorID := uuid.New()
	windows := []Window{{
		ID:        uuid.New(),
		DoctorID:  doctorID,
		DayOfWeek: time.Monday,
		Start:     mustTime(t, "09:00"),
		End:       mustTime(t, "11:00"),
		Enabled:   true,
	}}

	monday := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	slots := GenerateSlots(windows, monday, 30)

	want := []string{"09:00", "09:30", "10:00", "10:30"}
	if len(slots) != len(want) {
		t.Fatalf("expected %d slots, got %d (%v)", len(want), len(slots), slots)
	}
	for i, s := range slots {
		if s.String() != want[i] {
			t.Fatalf("slot %d: got %s, want %s", i, s, want[i])
		}
	}
}

func TestGenerateSlotsSkipsDisabledAndOtherDays(t *testing.T) {
	doctorID := uuid.New()
	windows := []Window{
		{DoctorID: doctorID, DayOfWeek: time.Monday, Start: mustTime(t, "09:00"), End: mustTime(t, "10:00"), Enabled: false},
		{DoctorID: doctorID, DayOfWeek: time.Tuesday, Start: mustTime(t, "09:00"), End: mustTime(t, "10:00"), Enabled: true},
	}

	monday := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	if slots := GenerateSlots(windows, monday, 30); len(slots) != 0 {
		t.Fatalf("expected no slots, got %v", slots)
	}
}

func TestGenerateSlotsNeverSpansWindowEnd(t *testing.T) {
	windows := []Window{{
		DoctorID:  uuid.New(),
		DayOfWeek: time.Friday,
		Start:     mustTime(t, "09:00"),
		End:       mustTime(t, "09:50"),
		Enabled:   true,
	}}

	friday := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)
	slots := GenerateSlots(windows, friday, 30)
	// a 09:30 slot would run past 09:50
	if len(slots) != 1 || slots[0].String() != "09:00" {
		t.Fatalf("expected single 09:00 slot, got %v", slots)
	}
}

func TestGenerateSlotsMergesOverlappingWindows(t *testing.T) {
	doctorID := uuid.New()
	windows := []Window{
		{DoctorID: doctorID, DayOfWeek: time.Wednesday, Start: mustTime(t, "10:00"), End: mustTime(t, "12:00"), Enabled: true},
		{DoctorID: doctorID, DayOfWeek: time.Wednesday, Start: mustTime(t, "11:00"), End: mustTime(t, "13:00"), Enabled: true},
	}

	wednesday := time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC)
	slots := GenerateSlots(windows, wednesday, 60)

	want := []string{"10:00", "11:00", "12:00"}
	if len(slots) != len(want) {
		t.Fatalf("expected %d slots, got %v", len(want), slots)
	}
	for i, s := range slots {
		if s.String() != want[i] {
			t.Fatalf("slot %d: got %s, want %s", i, s, want[i])
		}
	}
}

func TestGenerateSlotsSortedWithinWindowSpacing(t *testing.T) {
	windows := []Window{{
		DoctorID:  uuid.New(),
		DayOfWeek: time.Monday,
		Start:     mustTime(t, "08:15"),
		End:       mustTime(t, "10:15"),
		Enabled:   true,
	}}

	monday := time.Date(2025, 3, 10, 12, 30, 0, 0, time.UTC)
	slots := GenerateSlots(windows, monday, 20)
	if len(slots) == 0 {
		t.Fatal("expected slots")
	}
	for i := 1; i < len(slots); i++ {
		if slots[i]-slots[i-1] != 20 {
			t.Fatalf("expected 20 minute spacing, got %v", slots)
		}
	}
	// alignment starts from the window start, not from the hour
	if slots[0].String() != "08:15" {
		t.Fatalf("expected first slot 08:15, got %s", slots[0])
	}
}

func TestGenerateSlotsRejectsNonPositiveGranularity(t *testing.T) {
	windows := []Window{{
		DoctorID:  uuid.New(),
		DayOfWeek: time.Monday,
		Start:     mustTime(t, "09:00"),
		End:       mustTime(t, "10:00"),
		Enabled:   true,
	}}
	monday := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	if slots := GenerateSlots(windows, monday, 0); slots != nil {
		t.Fatalf("expected nil, got %v", slots)
	}
}
