package guardrail

import (
	"errors"
	"testing"
	"time"
)

func mustParse(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return ts
}

func TestClampRangeShortensWideRange(t *testing.T) {
	r, err := ParseRange("2026-01-01T00:00:00Z", "2026-02-01T00:00:00Z", time.UTC)
	if err != nil {
		t.Fatal(err)
	}
	got, err := ClampRange(r, 14)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := mustParse(t, "2026-01-15T00:00:00Z")
	if !got.End.Equal(want) {
		t.Errorf("end = %s, want %s", got.End, want)
	}
	if !got.Start.Equal(r.Start) {
		t.Errorf("start changed: %s", got.Start)
	}
}

func TestClampRangeKeepsNarrowRange(t *testing.T) {
	r, err := ParseRange("2026-02-25T09:00:00+01:00", "2026-02-26T09:00:00+01:00", time.UTC)
	if err != nil {
		t.Fatal(err)
	}
	got, err := ClampRange(r, 14)
	if err != nil {
		t.Fatal(err)
	}
	if !got.End.Equal(r.End) {
		t.Errorf("narrow range should be unchanged, got end %s", got.End)
	}
	if got.Start.Format(time.RFC3339) != "2026-02-25T09:00:00+01:00" {
		t.Errorf("offset not preserved: %s", got.Start.Format(time.RFC3339))
	}
}

func TestClampRangeRejectsNonPositiveSpan(t *testing.T) {
	same := "2026-01-01T00:00:00Z"
	r, err := ParseRange(same, same, time.UTC)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ClampRange(r, 14); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("expected invalid_range for equal endpoints, got %v", err)
	}

	r, err = ParseRange("2026-01-02T00:00:00Z", "2026-01-01T00:00:00Z", time.UTC)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ClampRange(r, 14); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("expected invalid_range for reversed endpoints, got %v", err)
	}
}

func TestZuluEquivalentToOffset(t *testing.T) {
	a, err := ParseTimestamp("2026-02-25T09:00:00Z", nil)
	if err != nil {
		t.Fatal(err)
	}
	b, err := ParseTimestamp("2026-02-25T09:00:00+00:00", nil)
	if err != nil {
		t.Fatal(err)
	}
	if !a.Equal(b) {
		t.Errorf("Z and +00:00 differ: %s vs %s", a, b)
	}
}

func TestParseTimestampNaiveUsesLocation(t *testing.T) {
	loc := time.FixedZone("test", 2*60*60)
	ts, err := ParseTimestamp("2026-02-25T09:00:00", loc)
	if err != nil {
		t.Fatal(err)
	}
	if ts.UTC().Hour() != 7 {
		t.Errorf("expected 07:00 UTC, got %s", ts.UTC())
	}
}

func TestParseTimestampISOForms(t *testing.T) {
	want := time.Date(2026, 2, 25, 9, 0, 0, 0, time.UTC)
	inputs := []string{
		"2026-02-25T09:00:00Z",
		"2026-02-25T09:00:00.000+00:00",
		"2026-02-25T09:00+00:00",
		"2026-02-25 09:00:00+00:00",
		"2026-02-25T09:00:00+0000",
		"2026-02-25T09:00+0000",
		"2026-02-25T09:00:00+00",
		"2026-02-25T10:00:00+01:00",
		"2026-02-25 10:00+0100",
	}
	for _, in := range inputs {
		got, err := ParseTimestamp(in, time.FixedZone("elsewhere", 5*60*60))
		if err != nil {
			t.Errorf("ParseTimestamp(%q): %v", in, err)
			continue
		}
		if !got.Equal(want) {
			t.Errorf("ParseTimestamp(%q) = %s, want %s", in, got.UTC(), want)
		}
	}
}

func TestParseTimestampNaiveSpaceSeparator(t *testing.T) {
	loc := time.FixedZone("test", 2*60*60)
	ts, err := ParseTimestamp("2026-02-25 09:00", loc)
	if err != nil {
		t.Fatal(err)
	}
	if ts.UTC().Hour() != 7 {
		t.Errorf("expected 07:00 UTC, got %s", ts.UTC())
	}
}

func TestParseRangeRejectsBadInput(t *testing.T) {
	tests := []struct {
		start, end string
	}{
		{"", "2026-01-01T00:00:00Z"},
		{"2026-01-01T00:00:00Z", ""},
		{"yesterday", "2026-01-01T00:00:00Z"},
		{"2026-01-01T00:00:00Z", "2026-13-01T00:00:00Z"},
		{"2026-01-01X00:00:00Z", "2026-01-02T00:00:00Z"},
	}
	for _, tt := range tests {
		if _, err := ParseRange(tt.start, tt.end, time.UTC); !errors.Is(err, ErrInvalidFormat) {
			t.Errorf("ParseRange(%q, %q): expected invalid_format, got %v", tt.start, tt.end, err)
		}
	}
}

func TestTodayRange(t *testing.T) {
	loc, err := time.LoadLocation("Europe/London")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	now := time.Date(2026, 3, 10, 15, 30, 0, 0, loc)
	r := TodayRange(loc, now)
	if r.Start.Format(time.RFC3339) != "2026-03-10T00:00:00Z" {
		t.Errorf("start = %s", r.Start.Format(time.RFC3339))
	}
	if r.End.Format(time.RFC3339) != "2026-03-11T00:00:00Z" {
		t.Errorf("end = %s", r.End.Format(time.RFC3339))
	}
}

func TestTodayRangeAcrossDSTSwitch(t *testing.T) {
	loc, err := time.LoadLocation("Europe/London")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	// Clocks go forward on 2026-03-29.
	r := TodayRange(loc, time.Date(2026, 3, 29, 12, 0, 0, 0, loc))
	if got := r.End.Sub(r.Start); got != 23*time.Hour {
		t.Errorf("expected 23h day, got %s", got)
	}
}

func TestTodayRangeUsesZoneNotUTC(t *testing.T) {
	loc := time.FixedZone("UTC+10", 10*60*60)
	// 20:00 UTC on Jan 1 is already Jan 2 in UTC+10.
	r := TodayRange(loc, time.Date(2026, 1, 1, 20, 0, 0, 0, time.UTC))
	if r.Start.Day() != 2 {
		t.Errorf("expected local day 2, got %s", r.Start)
	}
}
