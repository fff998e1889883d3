// Package outlook reads the signed-in user's calendar from Microsoft Graph.
package outlook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultGraphURL is the Graph v1.0 endpoint.
const DefaultGraphURL = "https://graph.microsoft.com/v1.0"

const eventFields = "subject,start,end,organizer,location,isOnlineMeeting,onlineMeeting,webLink"

// DateTimeZone is a Graph wall-clock time with its zone name.
type DateTimeZone struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

// Organizer identifies who sent the invitation.
type Organizer struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

// Location is where the event takes place.
type Location struct {
	DisplayName string `json:"displayName"`
}

// Event is a normalized calendar event.
type Event struct {
	Subject              string       `json:"subject"`
	Start                DateTimeZone `json:"start"`
	End                  DateTimeZone `json:"end"`
	Organizer            Organizer    `json:"organizer"`
	Location             Location     `json:"location"`
	IsOnlineMeeting      bool         `json:"isOnlineMeeting"`
	OnlineMeetingJoinURL string       `json:"onlineMeetingJoinUrl"`
	WebLink              string       `json:"webLink"`
}

// Backend is the calendar surface the tool handlers depend on.
type Backend interface {
	// CalendarView lists up to top events overlapping [start, end),
	// ordered by start, with times rendered in the IANA zone tz.
	CalendarView(ctx context.Context, start, end time.Time, tz string, top int) ([]Event, error)
}

// GraphError is a non-2xx Graph response.
type GraphError struct {
	Status  int
	Code    string
	Message string
}

func (e *GraphError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("graph: %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("graph: %d %s", e.Status, e.Message)
}

// GraphClient implements Backend over HTTP. The http.Client must attach
// a bearer token, as oauth2.NewClient does.
type GraphClient struct {
	http    *http.Client
	baseURL string
}

// NewGraphClient returns a client for baseURL, or DefaultGraphURL when empty.
func NewGraphClient(hc *http.Client, baseURL string) *GraphClient {
	if baseURL == "" {
		baseURL = DefaultGraphURL
	}
	return &GraphClient{http: hc, baseURL: strings.TrimRight(baseURL, "/")}
}

type graphEvent struct {
	Subject   string        `json:"subject"`
	Start     *DateTimeZone `json:"start"`
	End       *DateTimeZone `json:"end"`
	Organizer *struct {
		EmailAddress *Organizer `json:"emailAddress"`
	} `json:"organizer"`
	Location        *Location `json:"location"`
	IsOnlineMeeting bool      `json:"isOnlineMeeting"`
	OnlineMeeting   *struct {
		JoinURL string `json:"joinUrl"`
	} `json:"onlineMeeting"`
	WebLink string `json:"webLink"`
}

func (g graphEvent) normalize() Event {
	e := Event{
		Subject:         g.Subject,
		IsOnlineMeeting: g.IsOnlineMeeting,
		WebLink:         g.WebLink,
	}
	if g.Start != nil {
		e.Start = *g.Start
	}
	if g.End != nil {
		e.End = *g.End
	}
	if g.Organizer != nil && g.Organizer.EmailAddress != nil {
		e.Organizer = *g.Organizer.EmailAddress
	}
	if g.Location != nil {
		e.Location = *g.Location
	}
	if g.OnlineMeeting != nil {
		e.OnlineMeetingJoinURL = g.OnlineMeeting.JoinURL
	}
	return e
}

// CalendarView calls GET /me/calendarView.
func (c *GraphClient) CalendarView(ctx context.Context, start, end time.Time, tz string, top int) ([]Event, error) {
	q := url.Values{}
	q.Set("startDateTime", start.Format(time.RFC3339))
	q.Set("endDateTime", end.Format(time.RFC3339))
	q.Set("$top", strconv.Itoa(top))
	q.Set("$orderby", "start/dateTime")
	q.Set("$select", eventFields)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/me/calendarView?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build calendarView request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if tz != "" {
		req.Header.Set("Prefer", fmt.Sprintf("outlook.timezone=%q", tz))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calendarView: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("read calendarView response: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		return nil, parseGraphError(resp.StatusCode, body)
	}

	var page struct {
		Value []graphEvent `json:"value"`
	}
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("decode calendarView response: %w", err)
	}

	events := make([]Event, 0, len(page.Value))
	for _, g := range page.Value {
		events = append(events, g.normalize())
	}
	if top > 0 && len(events) > top {
		events = events[:top]
	}
	return events, nil
}

func parseGraphError(status int, body []byte) error {
	var env struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	ge := &GraphError{Status: status, Message: http.StatusText(status)}
	if json.Unmarshal(body, &env) == nil && env.Error.Message != "" {
		ge.Code = env.Error.Code
		ge.Message = env.Error.Message
	}
	return ge
}
