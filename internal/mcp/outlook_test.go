package mcp

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ppiankov/toolgate/internal/config"
	"github.com/ppiankov/toolgate/internal/guardrail"
	"github.com/ppiankov/toolgate/internal/outlook"
)

type fakeCalendar struct {
	events []outlook.Event
	err    error

	calls      int
	start, end time.Time
	tz         string
	top        int
}

func (f *fakeCalendar) CalendarView(_ context.Context, start, end time.Time, tz string, top int) ([]outlook.Event, error) {
	f.calls++
	f.start, f.end, f.tz, f.top = start, end, tz, top
	return f.events, f.err
}

// fixedNow is Monday 2 March 2026, 10:30 in London.
var fixedNow = time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC)

func newOutlookServer(t *testing.T, fake *fakeCalendar) *Server {
	t.Helper()
	cfg := &config.Outlook{
		TenantID:        "tenant",
		ClientID:        "client",
		Scopes:          "Calendars.Read",
		TokenCache:      config.TokenCacheFile,
		TokenCachePath:  "cache.json",
		UserTimezone:    "Europe/London",
		MaxDaysRange:    14,
		MaxEventsReturn: 50,
	}
	cfg.Port = 8080
	cfg.LogLevel = "info"
	cfg.TokensJSON = `{"t":"x"}`
	if err := cfg.Validate(); err != nil {
		t.Fatalf("config: %v", err)
	}
	return NewOutlook(cfg, fake, Options{Now: func() time.Time { return fixedNow }})
}

func TestTodayMeetings(t *testing.T) {
	fake := &fakeCalendar{events: []outlook.Event{{Subject: "Standup"}}}
	s := newOutlookServer(t, fake)

	_, out, err := s.handleToday(context.Background(), &mcpsdk.CallToolRequest{}, TodayInput{})
	if err != nil {
		t.Fatal(err)
	}
	if !out.OK || out.Count != 1 || out.Events[0].Subject != "Standup" {
		t.Fatalf("unexpected output %+v", out)
	}
	wantStart := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	if !out.Range.Start.Equal(wantStart) || !out.Range.End.Equal(wantStart.Add(24*time.Hour)) {
		t.Fatalf("unexpected range %v..%v", out.Range.Start, out.Range.End)
	}
	if fake.tz != "Europe/London" || fake.top != 50 {
		t.Fatalf("unexpected tz/top %q/%d", fake.tz, fake.top)
	}
}

func TestMeetingsClampsRangeAndCount(t *testing.T) {
	fake := &fakeCalendar{}
	s := newOutlookServer(t, fake)

	_, out, err := s.handleMeetings(context.Background(), &mcpsdk.CallToolRequest{}, MeetingsInput{
		StartISO:  "2026-01-01T00:00:00Z",
		EndISO:    "2026-02-01T00:00:00Z",
		MaxEvents: intp(500),
	})
	if err != nil {
		t.Fatal(err)
	}
	wantEnd := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	if !out.Range.End.Equal(wantEnd) || !fake.end.Equal(wantEnd) {
		t.Fatalf("expected end clamped to %v, got %v", wantEnd, out.Range.End)
	}
	if fake.top != 50 {
		t.Fatalf("expected max_events clamped to 50, got %d", fake.top)
	}
	if out.Events == nil || out.Count != 0 {
		t.Fatalf("expected empty event list, got %+v", out)
	}
}

func TestMeetingsNaiveTimesUseUserTimezone(t *testing.T) {
	fake := &fakeCalendar{}
	s := newOutlookServer(t, fake)

	// BST starts 29 March 2026.
	_, _, err := s.handleMeetings(context.Background(), &mcpsdk.CallToolRequest{}, MeetingsInput{
		StartISO: "2026-04-01T09:00:00",
		EndISO:   "2026-04-01T17:00:00",
	})
	if err != nil {
		t.Fatal(err)
	}
	if want := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC); !fake.start.Equal(want) {
		t.Fatalf("expected start %v, got %v", want, fake.start.UTC())
	}
}

func TestMeetingsRejections(t *testing.T) {
	tests := []struct {
		name  string
		input MeetingsInput
		kind  guardrail.Kind
	}{
		{"missing end", MeetingsInput{StartISO: "2026-01-01T00:00:00Z"}, guardrail.InvalidFormat},
		{"garbage", MeetingsInput{StartISO: "yesterday", EndISO: "today"}, guardrail.InvalidFormat},
		{"end before start", MeetingsInput{StartISO: "2026-01-02T00:00:00Z", EndISO: "2026-01-01T00:00:00Z"}, guardrail.InvalidRange},
		{"empty span", MeetingsInput{StartISO: "2026-01-01T00:00:00Z", EndISO: "2026-01-01T00:00:00+00:00"}, guardrail.InvalidRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeCalendar{}
			s := newOutlookServer(t, fake)
			_, _, err := s.handleMeetings(context.Background(), &mcpsdk.CallToolRequest{}, tt.input)
			if kind, ok := guardrail.KindOf(err); !ok || kind != tt.kind {
				t.Fatalf("expected %s, got %v", tt.kind, err)
			}
			if fake.calls != 0 {
				t.Fatal("rejected request reached Graph")
			}
		})
	}
}

func TestNextMeeting(t *testing.T) {
	fake := &fakeCalendar{events: []outlook.Event{
		{Subject: "Earlier", Start: outlook.DateTimeZone{DateTime: "2026-03-02T10:00:00.0000000", TimeZone: "Europe/London"}},
		{Subject: "Review", Start: outlook.DateTimeZone{DateTime: "2026-03-02T14:00:00.0000000", TimeZone: "Europe/London"}},
	}}
	s := newOutlookServer(t, fake)

	_, out, err := s.handleNextMeeting(context.Background(), &mcpsdk.CallToolRequest{}, NextInput{WithinDays: intp(90)})
	if err != nil {
		t.Fatal(err)
	}
	if out.WithinDays != 14 {
		t.Fatalf("expected within_days clamped to 14, got %d", out.WithinDays)
	}
	if out.Next == nil || out.Next.Subject != "Review" {
		t.Fatalf("unexpected next %+v", out.Next)
	}

	_, out, err = s.handleNextMeeting(context.Background(), &mcpsdk.CallToolRequest{}, NextInput{})
	if err != nil {
		t.Fatal(err)
	}
	if out.WithinDays != 7 {
		t.Fatalf("expected default of 7 days, got %d", out.WithinDays)
	}
}

func TestNextMeetingGraphError(t *testing.T) {
	fake := &fakeCalendar{err: &outlook.GraphError{Status: 401, Code: "InvalidAuthenticationToken", Message: "expired"}}
	s := newOutlookServer(t, fake)
	_, _, err := s.handleNextMeeting(context.Background(), &mcpsdk.CallToolRequest{}, NextInput{})
	var ge *outlook.GraphError
	if !errors.As(err, &ge) {
		t.Fatalf("expected GraphError, got %v", err)
	}
}

func TestOutlookOverMCP(t *testing.T) {
	s := newOutlookServer(t, &fakeCalendar{events: []outlook.Event{{Subject: "1:1"}}})
	cs := connect(t, s)

	if names := toolNames(t, cs); len(names) != 3 {
		t.Fatalf("unexpected tools %v", names)
	}
	res, err := cs.CallTool(context.Background(), &mcpsdk.CallToolParams{Name: "outlook_today_meetings"})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if res.IsError || !strings.Contains(resultText(res), `"count":1`) {
		t.Fatalf("unexpected result %q", resultText(res))
	}
}
