package availability

import (
	"sort"
	"time"
)

// GenerateSlots expands a doctor's weekly template into candidate slot start
// times for one calendar date, in UTC. Only enabled windows matching the UTC
// day-of-week participate. Slots are granularity-aligned from each window's
// start and never cross the window end. The result is sorted ascending and
// deduplicated; an empty result is not an error.
func GenerateSlots(windows []Window, date time.Time, granularityMinutes int) []TimeOfDay {
	if granularityMinutes <= 0 {
		return nil
	}
	day := date.UTC().Weekday()

	seen := make(map[TimeOfDay]struct{})
	var slots []TimeOfDay
	for _, w := range windows {
		if !w.Enabled || w.DayOfWeek != day {
			continue
		}
		for t := w.Start; t+TimeOfDay(granularityMinutes) <= w.End; t += TimeOfDay(granularityMinutes) {
			if _, dup := seen[t]; dup {
				continue
			}
			seen[t] = struct{}{}
			slots = append(slots, t)
		}
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i] < slots[j] })
	return slots
}
