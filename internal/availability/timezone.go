package availability

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidTimezone is returned for strings that are not IANA zone identifiers.
var ErrInvalidTimezone = errors.New("availability: unrecognized timezone")

// LoadZone resolves an IANA zone identifier. The empty string is rejected
// rather than treated as UTC the way time.LoadLocation would.
func LoadZone(tz string) (*time.Location, error) {
	if tz == "" {
		return nil, fmt.Errorf("%w: empty zone name", ErrInvalidTimezone)
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimezone, tz)
	}
	return loc, nil
}

// ToLocal projects a UTC time of day on the given calendar date into the
// zone's wall clock. The date matters: DST-observing zones shift offset
// between dates, so the projection is computed on the concrete instant.
func ToLocal(utc TimeOfDay, date time.Time, tz string) (TimeOfDay, error) {
	loc, err := LoadZone(tz)
	if err != nil {
		return 0, err
	}
	instant := utc.At(date.UTC(), time.UTC).In(loc)
	return TimeOfDay(instant.Hour()*60 + instant.Minute()), nil
}

// ToUTC projects a local wall-clock time of day on the given calendar date
// (interpreted in tz) to the corresponding UTC time of day.
func ToUTC(local TimeOfDay, date time.Time, tz string) (TimeOfDay, error) {
	loc, err := LoadZone(tz)
	if err != nil {
		return 0, err
	}
	instant := local.At(date, loc).UTC()
	return TimeOfDay(instant.Hour()*60 + instant.Minute()), nil
}

// InstantUTC returns the absolute instant of a UTC time of day on a date.
func InstantUTC(utc TimeOfDay, date time.Time) time.Time {
	return utc.At(date.UTC(), time.UTC)
}

// ResolveLocal interprets a local wall-clock time on a calendar date in tz and
// returns the UTC calendar date and UTC time of day of that instant. Around
// midnight the UTC date can differ from the local one; storage always uses the
// UTC pair so conflict detection and slot generation agree.
func ResolveLocal(local TimeOfDay, date time.Time, tz string) (time.Time, TimeOfDay, error) {
	loc, err := LoadZone(tz)
	if err != nil {
		return time.Time{}, 0, err
	}
	instant := local.At(date, loc).UTC()
	utcDate := time.Date(instant.Year(), instant.Month(), instant.Day(), 0, 0, 0, 0, time.UTC)
	return utcDate, TimeOfDay(instant.Hour()*60 + instant.Minute()), nil
}
