package audit

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const separator = "──────────────────────────────────────────────────────────────────"

// FormatTimeline renders a Report as a human-readable table.
func FormatTimeline(report *Report) string {
	if len(report.Entries) == 0 {
		return "No entries found.\n"
	}

	var b strings.Builder
	s := report.Summary
	fmt.Fprintf(&b, "%s – %s UTC\n", formatDateTime(s.FirstTimestamp), formatTimeOnly(s.LastTimestamp))
	b.WriteString(separator + "\n")

	for _, e := range report.Entries {
		detail := e.Target
		if e.Decision != DecisionAllow && e.Kind != "" {
			detail = e.Kind + ": " + e.Target
		}
		fmt.Fprintf(&b, "%-10s %-7s %-14s %-34s %-32s %6dms\n",
			formatTimeOnly(e.Timestamp),
			strings.ToUpper(e.Decision),
			truncate(e.TokenLabel, 14),
			truncate(e.Tool, 34),
			truncate(detail, 32),
			e.DurationMS)
	}

	b.WriteString(separator + "\n")
	b.WriteString(formatSummary(s))
	return b.String()
}

// FormatJSON renders a Report as indented JSON.
func FormatJSON(report *Report) (string, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal audit report: %w", err)
	}
	return string(data), nil
}

func formatDateTime(ts string) string {
	t, err := time.Parse(TimestampFormat, ts)
	if err != nil {
		return ts
	}
	return t.Format("2006-01-02 15:04:05")
}

func formatTimeOnly(ts string) string {
	t, err := time.Parse(TimestampFormat, ts)
	if err != nil {
		return ts
	}
	return t.Format("15:04:05")
}

func formatSummary(s Summary) string {
	parts := []string{fmt.Sprintf("%d allow", s.AllowCount)}
	if s.RejectCount > 0 {
		parts = append(parts, fmt.Sprintf("%d reject", s.RejectCount))
	}
	if s.ErrorCount > 0 {
		parts = append(parts, fmt.Sprintf("%d error", s.ErrorCount))
	}
	line := "Summary: " + strings.Join(parts, ", ")
	if len(s.Rejections) > 0 {
		kinds := make([]string, len(s.Rejections))
		for i, k := range s.Rejections {
			kinds[i] = fmt.Sprintf("%s=%d", k.Kind, k.Count)
		}
		line += " | " + strings.Join(kinds, " ")
	}
	return line + "\n"
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
