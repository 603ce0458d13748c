package scheduling

// WindowSlot is the conflict-relevant projection of a recurring weekly window.
type WindowSlot struct {
	ResourceID string
	DayOfWeek  int
	StartDate  Date
	EndDate    Date
	StartTime  TimeOfDay
	EndTime    TimeOfDay
}

// BookingSlot is the conflict-relevant projection of a dated booking.
type BookingSlot struct {
	ResourceID string
	Date       Date
	StartTime  TimeOfDay
	EndTime    TimeOfDay
}

// DateRangesOverlap reports whether two closed date ranges intersect.
func DateRangesOverlap(aStart, aEnd, bStart, bEnd Date) bool {
	return aStart <= bEnd && aEnd >= bStart
}

// TimeRangesOverlap reports whether two half-open time ranges intersect.
// Ranges that only touch at an endpoint do not overlap.
func TimeRangesOverlap(aStart, aEnd, bStart, bEnd TimeOfDay) bool {
	return aStart.Seconds() < bEnd.Seconds() && aEnd.Seconds() > bStart.Seconds()
}

// WindowsOverlap reports whether two windows of the same resource claim the
// same weekday, dates and times.
func WindowsOverlap(a, b WindowSlot) bool {
	if a.ResourceID != b.ResourceID || a.DayOfWeek != b.DayOfWeek {
		return false
	}
	return DateRangesOverlap(a.StartDate, a.EndDate, b.StartDate, b.EndDate) &&
		TimeRangesOverlap(a.StartTime, a.EndTime, b.StartTime, b.EndTime)
}

// BookingsOverlap reports whether two bookings of the same resource collide on
// the same date.
func BookingsOverlap(a, b BookingSlot) bool {
	if a.ResourceID != b.ResourceID || a.Date != b.Date {
		return false
	}
	return TimeRangesOverlap(a.StartTime, a.EndTime, b.StartTime, b.EndTime)
}
