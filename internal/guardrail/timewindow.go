package guardrail

import (
	"strings"
	"time"
)

// TimeRange is a validated [Start, End) window.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// Days returns the span of the range in (possibly fractional) days.
func (r TimeRange) Days() float64 {
	return r.End.Sub(r.Start).Hours() / 24
}

// accepted timestamp layouts, most specific first. Layouts without a
// zone are interpreted in the caller-supplied location.
var (
	zonedLayouts = []string{
		time.RFC3339Nano,
		"2006-01-02T15:04Z07:00",
		"2006-01-02T15:04:05.999999999Z0700",
		"2006-01-02T15:04Z0700",
		"2006-01-02T15:04:05.999999999Z07",
		"2006-01-02T15:04Z07",
	}
	localLayouts = []string{
		"2006-01-02T15:04:05.999999999",
		"2006-01-02T15:04",
		"2006-01-02",
	}
)

// ParseTimestamp parses an ISO-8601 timestamp. A trailing "Z" is
// equivalent to "+00:00". Timestamps without an offset are read in loc
// (UTC when loc is nil).
func ParseTimestamp(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, reject(InvalidFormat, "timestamp is required")
	}
	if loc == nil {
		loc = time.UTC
	}
	// Lower-case "z" is accepted by ISO-8601 but not by time.RFC3339.
	if strings.HasSuffix(s, "z") {
		s = strings.TrimSuffix(s, "z") + "Z"
	}
	// ISO-8601 allows a space between date and time.
	if len(s) > 10 && s[10] == ' ' {
		s = s[:10] + "T" + s[11:]
	}
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, reject(InvalidFormat, "invalid ISO datetime %q, use e.g. 2026-02-25T09:00:00+00:00", s)
}

// ParseRange parses both endpoints of a range. Ordering is checked by
// ClampRange, not here.
func ParseRange(startISO, endISO string, loc *time.Location) (TimeRange, error) {
	if strings.TrimSpace(startISO) == "" || strings.TrimSpace(endISO) == "" {
		return TimeRange{}, reject(InvalidFormat, "start_iso and end_iso are required")
	}
	start, err := ParseTimestamp(startISO, loc)
	if err != nil {
		return TimeRange{}, err
	}
	end, err := ParseTimestamp(endISO, loc)
	if err != nil {
		return TimeRange{}, err
	}
	return TimeRange{Start: start, End: end}, nil
}

// ClampRange rejects a range whose end is not after its start and
// shortens End to Start+maxDays when the span is wider. Shortening is
// silent. maxDays <= 0 disables the cap.
func ClampRange(r TimeRange, maxDays int) (TimeRange, error) {
	if !r.End.After(r.Start) {
		return TimeRange{}, reject(InvalidRange, "end_iso must be after start_iso")
	}
	if maxDays > 0 {
		limit := time.Duration(maxDays) * 24 * time.Hour
		if r.End.Sub(r.Start) > limit {
			r.End = r.Start.Add(limit)
		}
	}
	return r, nil
}

// TodayRange returns local midnight to the next local midnight for the
// calendar day containing now. Days that cross a DST switch are 23 or
// 25 hours long.
func TodayRange(loc *time.Location, now time.Time) TimeRange {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	y, m, d := local.Date()
	return TimeRange{
		Start: time.Date(y, m, d, 0, 0, 0, 0, loc),
		End:   time.Date(y, m, d+1, 0, 0, 0, 0, loc),
	}
}
