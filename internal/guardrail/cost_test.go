package guardrail

import (
	"errors"
	"testing"
)

func int64p(v int64) *int64 { return &v }

func TestEnforceEstimate(t *testing.T) {
	tests := []struct {
		name     string
		estimate *int64
		max      int64
		wantErr  bool
	}{
		{"over cap", int64p(6_000_000_000), 5_000_000_000, true},
		{"at cap", int64p(5_000_000_000), 5_000_000_000, false},
		{"under cap", int64p(1), 5_000_000_000, false},
		{"unknown estimate", nil, 5_000_000_000, false},
		{"cap disabled", int64p(6_000_000_000), 0, false},
		{"negative cap disabled", int64p(6_000_000_000), -1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := EnforceEstimate(tt.estimate, tt.max)
			if tt.wantErr {
				if !errors.Is(err, ErrCostExceeded) {
					t.Fatalf("expected cost_exceeded, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestRequireSelect(t *testing.T) {
	for _, st := range []string{"SELECT", "select", " Select "} {
		if err := RequireSelect(st); err != nil {
			t.Errorf("RequireSelect(%q): unexpected error %v", st, err)
		}
	}
	for _, st := range []string{"", "INSERT", "SCRIPT", "CREATE_TABLE_AS_SELECT", "DELETE"} {
		if err := RequireSelect(st); !errors.Is(err, ErrNotSelect) {
			t.Errorf("RequireSelect(%q): expected not_select, got %v", st, err)
		}
	}
}

func TestCheckEstimateOrder(t *testing.T) {
	// Statement type is checked before cost.
	err := CheckEstimate(Estimate{StatementType: "DELETE", Bytes: int64p(10)}, 1)
	if kind, _ := KindOf(err); kind != NotSelect {
		t.Fatalf("expected not_select first, got %v", err)
	}

	err = CheckEstimate(Estimate{StatementType: "SELECT", Bytes: int64p(10)}, 1)
	if kind, _ := KindOf(err); kind != CostExceeded {
		t.Fatalf("expected cost_exceeded, got %v", err)
	}

	if err := CheckEstimate(Estimate{StatementType: "SELECT"}, 1); err != nil {
		t.Fatalf("unknown bytes should pass: %v", err)
	}
}

func TestErrorMessageNamesGuardrail(t *testing.T) {
	err := EnforceEstimate(int64p(6), 5)
	want := "rejected (cost_exceeded): estimated bytes processed (6) exceeds cap (5)"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
}
