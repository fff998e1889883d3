package outlook

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const calendarJSON = `{"value":[
 {"subject":"Standup","start":{"dateTime":"2026-03-02T09:00:00.0000000","timeZone":"Europe/London"},
  "end":{"dateTime":"2026-03-02T09:15:00.0000000","timeZone":"Europe/London"},
  "organizer":{"emailAddress":{"name":"Alice","address":"alice@example.com"}},
  "location":{"displayName":"Room 1"},"isOnlineMeeting":true,
  "onlineMeeting":{"joinUrl":"https://teams.example/join"},"webLink":"https://outlook.example/1"},
 {"subject":"Lunch","start":{"dateTime":"2026-03-02T12:00:00.0000000","timeZone":"Europe/London"},
  "end":{"dateTime":"2026-03-02T13:00:00.0000000","timeZone":"Europe/London"},
  "organizer":null,"location":null,"onlineMeeting":null}
]}`

func newGraphServer(t *testing.T, status int, body string) (*GraphClient, *http.Request) {
	t.Helper()
	var seen http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = *r.Clone(context.Background())
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return NewGraphClient(srv.Client(), srv.URL+"/v1.0/"), &seen
}

func TestCalendarView(t *testing.T) {
	c, seen := newGraphServer(t, http.StatusOK, calendarJSON)
	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	events, err := c.CalendarView(context.Background(), start, start.Add(24*time.Hour), "Europe/London", 10)
	if err != nil {
		t.Fatalf("CalendarView: %v", err)
	}

	if seen.URL.Path != "/v1.0/me/calendarView" {
		t.Errorf("unexpected path %s", seen.URL.Path)
	}
	q := seen.URL.Query()
	if q.Get("startDateTime") != "2026-03-02T00:00:00Z" || q.Get("endDateTime") != "2026-03-03T00:00:00Z" {
		t.Errorf("unexpected window %s..%s", q.Get("startDateTime"), q.Get("endDateTime"))
	}
	if q.Get("$top") != "10" || q.Get("$orderby") != "start/dateTime" || q.Get("$select") != eventFields {
		t.Errorf("unexpected query %v", q)
	}
	if got := seen.Header.Get("Prefer"); got != `outlook.timezone="Europe/London"` {
		t.Errorf("unexpected Prefer header %q", got)
	}

	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	e := events[0]
	if e.Subject != "Standup" || e.Organizer.Address != "alice@example.com" || e.Location.DisplayName != "Room 1" {
		t.Errorf("unexpected event %+v", e)
	}
	if !e.IsOnlineMeeting || e.OnlineMeetingJoinURL != "https://teams.example/join" {
		t.Errorf("unexpected online meeting fields %+v", e)
	}
	if e.Start.DateTime != "2026-03-02T09:00:00.0000000" || e.Start.TimeZone != "Europe/London" {
		t.Errorf("unexpected start %+v", e.Start)
	}
	if events[1].Organizer != (Organizer{}) || events[1].OnlineMeetingJoinURL != "" {
		t.Errorf("null fields should normalize to zero values, got %+v", events[1])
	}
}

func TestCalendarViewTrimsToTop(t *testing.T) {
	c, _ := newGraphServer(t, http.StatusOK, calendarJSON)
	events, err := c.CalendarView(context.Background(), time.Now(), time.Now().Add(time.Hour), "", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
}

func TestCalendarViewGraphError(t *testing.T) {
	c, _ := newGraphServer(t, http.StatusUnauthorized,
		`{"error":{"code":"InvalidAuthenticationToken","message":"Access token has expired."}}`)

	_, err := c.CalendarView(context.Background(), time.Now(), time.Now().Add(time.Hour), "UTC", 5)
	var ge *GraphError
	if !errors.As(err, &ge) {
		t.Fatalf("expected GraphError, got %v", err)
	}
	if ge.Status != 401 || ge.Code != "InvalidAuthenticationToken" {
		t.Fatalf("unexpected error %+v", ge)
	}
}

func TestCalendarViewNonJSONError(t *testing.T) {
	c, _ := newGraphServer(t, http.StatusBadGateway, `upstream down`)
	_, err := c.CalendarView(context.Background(), time.Now(), time.Now().Add(time.Hour), "UTC", 5)
	var ge *GraphError
	if !errors.As(err, &ge) || ge.Message != "Bad Gateway" {
		t.Fatalf("expected status text fallback, got %v", err)
	}
}

func TestNewGraphClientDefaultURL(t *testing.T) {
	if c := NewGraphClient(http.DefaultClient, ""); c.baseURL != DefaultGraphURL {
		t.Fatalf("expected default URL, got %s", c.baseURL)
	}
}
