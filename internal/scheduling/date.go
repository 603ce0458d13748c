package scheduling

import (
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04:05"
)

// Date is a calendar date in canonical YYYY-MM-DD form. Canonical values
// compare correctly as strings.
type Date string

// timestampLayouts are the longer forms whose date part ParseDate accepts.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// ParseDate validates and canonicalises a YYYY-MM-DD value. A full timestamp
// is accepted and reduced to its literal date part; any other trailing text
// is rejected.
func ParseDate(raw string) (Date, error) {
	raw = strings.TrimSpace(raw)
	if len(raw) > len(dateLayout) {
		if !validTimestamp(raw) {
			return "", fmt.Errorf("invalid date %q: expected YYYY-MM-DD", raw)
		}
		raw = raw[:len(dateLayout)]
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return "", fmt.Errorf("invalid date %q: expected YYYY-MM-DD", raw)
	}
	return Date(t.Format(dateLayout)), nil
}

func validTimestamp(raw string) bool {
	if sep := raw[len(dateLayout)]; sep != 'T' && sep != ' ' {
		return false
	}
	for _, layout := range timestampLayouts {
		if _, err := time.Parse(layout, raw); err == nil {
			return true
		}
	}
	return false
}

// DateOf returns the calendar date of t in its own location.
func DateOf(t time.Time) Date {
	return Date(t.Format(dateLayout))
}

// Time returns midnight of the date in loc.
func (d Date) Time(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(dateLayout, string(d), loc)
	if err != nil {
		return time.Time{}
	}
	return t
}

// AddDays shifts the date by n calendar days.
func (d Date) AddDays(n int) Date {
	return DateOf(d.Time(time.UTC).AddDate(0, 0, n))
}

// Weekday returns the day of week, 0 = Sunday.
func (d Date) Weekday() int {
	return int(d.Time(time.UTC).Weekday())
}

// Valid reports whether the value is a canonical date.
func (d Date) Valid() bool {
	_, err := time.Parse(dateLayout, string(d))
	return err == nil && len(d) == len(dateLayout)
}

func (d Date) String() string { return string(d) }

// Scan implements sql.Scanner. Postgres DATE columns arrive as time.Time.
func (d *Date) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*d = ""
		return nil
	case time.Time:
		*d = Date(v.Format(dateLayout))
		return nil
	case []byte:
		parsed, err := ParseDate(string(v))
		if err != nil {
			return err
		}
		*d = parsed
		return nil
	case string:
		parsed, err := ParseDate(v)
		if err != nil {
			return err
		}
		*d = parsed
		return nil
	}
	return fmt.Errorf("cannot scan %T into scheduling.Date", src)
}

// Value implements driver.Valuer.
func (d Date) Value() (driver.Value, error) {
	if d == "" {
		return nil, nil
	}
	return string(d), nil
}

// TimeOfDay is a wall-clock time in canonical HH:MM:SS form.
type TimeOfDay string

// ParseTimeOfDay accepts HH:MM or HH:MM:SS and returns the canonical form.
func ParseTimeOfDay(raw string) (TimeOfDay, error) {
	raw = strings.TrimSpace(raw)
	parts := strings.Split(raw, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return "", fmt.Errorf("invalid time %q: expected HH:MM or HH:MM:SS", raw)
	}
	limits := []int{23, 59, 59}
	values := make([]int, 3)
	for i, part := range parts {
		if len(part) != 2 {
			return "", fmt.Errorf("invalid time %q: expected HH:MM or HH:MM:SS", raw)
		}
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 || n > limits[i] {
			return "", fmt.Errorf("invalid time %q: expected HH:MM or HH:MM:SS", raw)
		}
		values[i] = n
	}
	return TimeOfDay(fmt.Sprintf("%02d:%02d:%02d", values[0], values[1], values[2])), nil
}

// Seconds returns seconds since midnight, or -1 for a malformed value.
func (t TimeOfDay) Seconds() int {
	canonical, err := ParseTimeOfDay(string(t))
	if err != nil {
		return -1
	}
	var h, m, s int
	_, _ = fmt.Sscanf(string(canonical), "%d:%d:%d", &h, &m, &s)
	return h*3600 + m*60 + s
}

// On returns the instant at which this wall-clock time occurs on d in loc.
func (t TimeOfDay) On(d Date, loc *time.Location) (time.Time, bool) {
	secs := t.Seconds()
	if secs < 0 || !d.Valid() {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.UTC
	}
	day := d.Time(time.UTC)
	return time.Date(day.Year(), day.Month(), day.Day(), secs/3600, (secs%3600)/60, secs%60, 0, loc), true
}

// Short renders HH:MM.
func (t TimeOfDay) Short() string {
	if len(t) >= 5 {
		return string(t[:5])
	}
	return string(t)
}

func (t TimeOfDay) String() string { return string(t) }

// Scan implements sql.Scanner. Postgres TIME columns arrive as text.
func (t *TimeOfDay) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*t = ""
		return nil
	case time.Time:
		*t = TimeOfDay(v.Format(timeLayout))
		return nil
	case []byte:
		return t.scanString(string(v))
	case string:
		return t.scanString(v)
	}
	return fmt.Errorf("cannot scan %T into scheduling.TimeOfDay", src)
}

func (t *TimeOfDay) scanString(raw string) error {
	// drop fractional seconds
	if idx := strings.IndexByte(raw, '.'); idx >= 0 {
		raw = raw[:idx]
	}
	parsed, err := ParseTimeOfDay(raw)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Value implements driver.Valuer.
func (t TimeOfDay) Value() (driver.Value, error) {
	if t == "" {
		return nil, nil
	}
	return string(t), nil
}
