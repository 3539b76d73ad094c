package availability

import (
	"fmt"
	"time"
)

// TimeOfDay is a wall-clock time expressed as minutes since midnight.
// It carries no date or zone; callers track those separately.
type TimeOfDay int

// ParseTimeOfDay parses an "HH:MM" string.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("availability: invalid time of day %q: %w", s, err)
	}
	return TimeOfDay(t.Hour()*60 + t.Minute()), nil
}

// String renders the time as "HH:MM".
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// Minutes returns the minutes-since-midnight value.
func (t TimeOfDay) Minutes() int {
	return int(t)
}

// Valid reports whether the value falls within a single day.
func (t TimeOfDay) Valid() bool {
	return t >= 0 && t < 24*60
}

// At anchors the time of day on the given date in loc.
func (t TimeOfDay) At(date time.Time, loc *time.Location) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), int(t)/60, int(t)%60, 0, 0, loc)
}
