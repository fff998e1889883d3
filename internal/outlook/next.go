package outlook

import (
	"context"
	"time"

	"github.com/ppiankov/toolgate/internal/guardrail"
)

// NextMeeting returns the first event starting at or after now within
// the next withinDays days, or nil when there is none. Events already in
// progress are ignored.
func NextMeeting(ctx context.Context, b Backend, now time.Time, withinDays int, loc *time.Location, maxEvents int) (*Event, error) {
	if loc == nil {
		loc = time.UTC
	}
	now = now.In(loc)
	end := now.AddDate(0, 0, withinDays)

	events, err := b.CalendarView(ctx, now, end, loc.String(), maxEvents)
	if err != nil {
		return nil, err
	}
	for i := range events {
		start, err := guardrail.ParseTimestamp(events[i].Start.DateTime, eventLocation(events[i].Start.TimeZone, loc))
		if err != nil {
			continue
		}
		if !start.Before(now) {
			return &events[i], nil
		}
	}
	return nil, nil
}

// eventLocation resolves the zone Graph reported for an event, falling
// back to the requested zone. Graph echoes the Prefer header as an IANA
// name, or "UTC" when none was honoured.
func eventLocation(name string, fallback *time.Location) *time.Location {
	if name == "" {
		return fallback
	}
	if loc, err := time.LoadLocation(name); err == nil {
		return loc
	}
	return fallback
}
