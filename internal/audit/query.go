package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"
)

// Filter selects entries from an audit log. Zero fields match everything.
type Filter struct {
	TokenLabel string
	Tool       string
	Decision   string
	From       time.Time
	To         time.Time
	// Last keeps only the most recent N matches when positive.
	Last int
}

func (f Filter) match(e Entry) bool {
	if f.TokenLabel != "" && e.TokenLabel != f.TokenLabel {
		return false
	}
	if f.Tool != "" && e.Tool != f.Tool {
		return false
	}
	if f.Decision != "" && e.Decision != f.Decision {
		return false
	}
	if f.From.IsZero() && f.To.IsZero() {
		return true
	}
	ts, err := time.Parse(TimestampFormat, e.Timestamp)
	if err != nil {
		return false
	}
	if !f.From.IsZero() && ts.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && ts.After(f.To) {
		return false
	}
	return true
}

// KindCount is the number of rejections for one guardrail kind.
type KindCount struct {
	Kind  string `json:"kind"`
	Count int    `json:"count"`
}

// Summary holds decision counts over a set of entries.
type Summary struct {
	Total          int         `json:"total"`
	AllowCount     int         `json:"allow_count"`
	RejectCount    int         `json:"reject_count"`
	ErrorCount     int         `json:"error_count"`
	Rejections     []KindCount `json:"rejections,omitempty"`
	FirstTimestamp string      `json:"first_timestamp,omitempty"`
	LastTimestamp  string      `json:"last_timestamp,omitempty"`
}

// Report holds filtered entries and their summary.
type Report struct {
	Entries []Entry `json:"entries"`
	Summary Summary `json:"summary"`
}

// Query reads the audit log and returns entries matching the filter.
// Malformed lines are skipped.
func Query(path string, filter Filter) (*Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	var entries []Entry
	scanner := newScanner(f)
	for scanner.Scan() {
		var entry Entry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			continue
		}
		if filter.match(entry) {
			entries = append(entries, entry)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read audit log: %w", err)
	}

	if filter.Last > 0 && len(entries) > filter.Last {
		entries = entries[len(entries)-filter.Last:]
	}
	return &Report{Entries: entries, Summary: summarize(entries)}, nil
}

func summarize(entries []Entry) Summary {
	var s Summary
	kinds := map[string]int{}
	for _, e := range entries {
		s.Total++
		switch e.Decision {
		case DecisionAllow:
			s.AllowCount++
		case DecisionReject:
			s.RejectCount++
			kinds[e.Kind]++
		case DecisionError:
			s.ErrorCount++
		}
		if s.FirstTimestamp == "" {
			s.FirstTimestamp = e.Timestamp
		}
		s.LastTimestamp = e.Timestamp
	}
	for k, n := range kinds {
		s.Rejections = append(s.Rejections, KindCount{Kind: k, Count: n})
	}
	sort.Slice(s.Rejections, func(i, j int) bool {
		if s.Rejections[i].Count != s.Rejections[j].Count {
			return s.Rejections[i].Count > s.Rejections[j].Count
		}
		return s.Rejections[i].Kind < s.Rejections[j].Kind
	})
	return s
}
