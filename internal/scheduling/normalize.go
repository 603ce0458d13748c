package scheduling

import "time"

// NormalizeStart resolves the first usable occurrence of a weekly window.
//
// Starting at startDate it walks forward to the first date whose weekday is
// dayOfWeek (0 = Sunday). When that occurrence has already started relative to
// now, evaluated in loc, it moves one week ahead. The boolean is false when the
// resulting date falls after endDate.
func NormalizeStart(startDate, endDate Date, dayOfWeek int, startTime TimeOfDay, now time.Time, loc *time.Location) (Date, bool) {
	if loc == nil {
		loc = time.UTC
	}
	if dayOfWeek < 0 || dayOfWeek > 6 || !startDate.Valid() || !endDate.Valid() {
		return "", false
	}

	candidate := startDate
	for candidate.Weekday() != dayOfWeek {
		candidate = candidate.AddDays(1)
	}

	occurrence, ok := startTime.On(candidate, loc)
	if !ok {
		return "", false
	}
	if !occurrence.After(now) {
		candidate = candidate.AddDays(7)
	}

	if candidate > endDate {
		return "", false
	}
	return candidate, true
}
