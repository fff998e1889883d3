package mcp

import (
	"context"
	"fmt"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ppiankov/toolgate/internal/config"
	"github.com/ppiankov/toolgate/internal/guardrail"
	"github.com/ppiankov/toolgate/internal/outlook"
)

const defaultWithinDays = 7

// Range is the window a calendar query covered.
type Range struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// TodayInput is empty; the window is today in the user's timezone.
type TodayInput struct{}

// MeetingsInput defines parameters for the outlook_meetings tool.
type MeetingsInput struct {
	StartISO  string `json:"start_iso" jsonschema:"window start, ISO 8601 e.g. 2026-02-25T09:00:00+00:00"`
	EndISO    string `json:"end_iso" jsonschema:"window end, ISO 8601"`
	MaxEvents *int   `json:"max_events,omitempty" jsonschema:"maximum events returned"`
}

// MeetingsOutput lists events in a window.
type MeetingsOutput struct {
	OK     bool            `json:"ok"`
	Range  Range           `json:"range"`
	Count  int             `json:"count"`
	Events []outlook.Event `json:"events"`
}

// NextInput defines parameters for the outlook_next_meeting tool.
type NextInput struct {
	WithinDays *int `json:"within_days,omitempty" jsonschema:"look-ahead in days, default 7"`
}

// NextOutput carries the next upcoming meeting, or null.
type NextOutput struct {
	OK         bool           `json:"ok"`
	WithinDays int            `json:"within_days"`
	Next       *outlook.Event `json:"next"`
}

type outlookTools struct {
	backend outlook.Backend
	cfg     *config.Outlook
	loc     *time.Location
}

// NewOutlook returns a server exposing the read-only calendar tools.
func NewOutlook(cfg *config.Outlook, backend outlook.Backend, opts Options) *Server {
	s := newServer(config.OutlookService, opts)
	s.outlook = &outlookTools{backend: backend, cfg: cfg, loc: cfg.Location()}

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "outlook_today_meetings",
		Description: "Returns today's meetings (calendarView) for the signed-in user.",
	}, s.handleToday)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "outlook_meetings",
		Description: "Returns meetings within [start_iso, end_iso] for the signed-in user. ISO example: 2026-02-25T09:00:00+00:00",
	}, s.handleMeetings)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "outlook_next_meeting",
		Description: "Returns the next upcoming meeting within N days (default 7).",
	}, s.handleNextMeeting)
	return s
}

func (s *Server) handleToday(ctx context.Context, req *mcpsdk.CallToolRequest, _ TodayInput) (*mcpsdk.CallToolResult, MeetingsOutput, error) {
	c := s.begin("outlook_today_meetings")
	r := guardrail.TodayRange(s.outlook.loc, s.now())
	c.target = r.Start.Format(time.DateOnly)
	out, err := s.listMeetings(ctx, r, s.outlook.cfg.MaxEventsReturn)
	if err := s.finish(ctx, c, err); err != nil {
		return nil, MeetingsOutput{}, err
	}
	return nil, out, nil
}

func (s *Server) handleMeetings(ctx context.Context, req *mcpsdk.CallToolRequest, input MeetingsInput) (*mcpsdk.CallToolResult, MeetingsOutput, error) {
	c := s.begin("outlook_meetings")
	out, err := s.meetings(ctx, c, input)
	if err := s.finish(ctx, c, err); err != nil {
		return nil, MeetingsOutput{}, err
	}
	return nil, out, nil
}

func (s *Server) meetings(ctx context.Context, c *call, input MeetingsInput) (MeetingsOutput, error) {
	ol := s.outlook
	r, err := guardrail.ParseRange(input.StartISO, input.EndISO, ol.loc)
	if err != nil {
		return MeetingsOutput{}, err
	}
	r, err = guardrail.ClampRange(r, ol.cfg.MaxDaysRange)
	if err != nil {
		return MeetingsOutput{}, err
	}
	c.target = r.Start.UTC().Format(time.RFC3339) + "/" + r.End.UTC().Format(time.RFC3339)

	limit := guardrail.Clamp(input.MaxEvents, ol.cfg.MaxEventsReturn, 1, ol.cfg.MaxEventsReturn)
	return s.listMeetings(ctx, r, limit)
}

func (s *Server) listMeetings(ctx context.Context, r guardrail.TimeRange, limit int) (MeetingsOutput, error) {
	events, err := s.outlook.backend.CalendarView(ctx, r.Start, r.End, s.outlook.loc.String(), limit)
	if err != nil {
		return MeetingsOutput{}, fmt.Errorf("calendar view: %w", err)
	}
	if len(events) > limit {
		events = events[:limit]
	}
	if events == nil {
		events = []outlook.Event{}
	}
	return MeetingsOutput{
		OK:     true,
		Range:  Range{Start: r.Start, End: r.End},
		Count:  len(events),
		Events: events,
	}, nil
}

func (s *Server) handleNextMeeting(ctx context.Context, req *mcpsdk.CallToolRequest, input NextInput) (*mcpsdk.CallToolResult, NextOutput, error) {
	c := s.begin("outlook_next_meeting")
	ol := s.outlook
	days := guardrail.Clamp(input.WithinDays, defaultWithinDays, 1, ol.cfg.MaxDaysRange)
	c.target = fmt.Sprintf("%dd", days)

	next, err := outlook.NextMeeting(ctx, ol.backend, s.now(), days, ol.loc, ol.cfg.MaxEventsReturn)
	if err != nil {
		err = fmt.Errorf("next meeting: %w", err)
	}
	if err := s.finish(ctx, c, err); err != nil {
		return nil, NextOutput{}, err
	}
	return nil, NextOutput{OK: true, WithinDays: days, Next: next}, nil
}
