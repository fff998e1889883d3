package guardrail

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestParseAllowlist(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{" , ,", nil},
		{"acme/*", []string{"acme/*"}},
		{" acme/* , me/repo1,,other/x ", []string{"acme/*", "me/repo1", "other/x"}},
	}
	for _, tt := range tests {
		got := ParseAllowlist(tt.in).Patterns()
		if len(got) == 0 && len(tt.want) == 0 {
			continue
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("ParseAllowlist(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestAllowlistEmptyAllowsAll(t *testing.T) {
	al := ParseAllowlist("")
	if !al.IsAllowed("acme", "api") {
		t.Error("empty allowlist should allow acme/api")
	}
	if err := al.Require("anyone", "anything"); err != nil {
		t.Errorf("empty allowlist Require: %v", err)
	}
}

func TestAllowlistGlob(t *testing.T) {
	al := ParseAllowlist("acme/*")
	if !al.IsAllowed("acme", "api") {
		t.Error("acme/api should match acme/*")
	}
	if al.IsAllowed("other", "api") {
		t.Error("other/api should not match acme/*")
	}
}

func TestAllowlistCaseSensitive(t *testing.T) {
	al := ParseAllowlist("Acme/API")
	if al.IsAllowed("acme", "api") {
		t.Error("matching must be case-sensitive")
	}
	if !al.IsAllowed("Acme", "API") {
		t.Error("exact case should match")
	}
}

func TestAllowlistWildcards(t *testing.T) {
	al := ParseAllowlist("me/repo?, team-*/svc-*")
	cases := map[string]bool{
		"me/repo1":          true,
		"me/repo12":         false,
		"team-a/svc-orders": true,
		"team-a/web":        false,
	}
	for target, want := range cases {
		owner, repo, _ := strings.Cut(target, "/")
		if got := al.IsAllowed(owner, repo); got != want {
			t.Errorf("IsAllowed(%s) = %v, want %v", target, got, want)
		}
	}
}

func TestAllowlistWildcardsCrossSlash(t *testing.T) {
	tests := []struct {
		pattern string
		target  string
		want    bool
	}{
		{"*", "acme/api", true},
		{"**", "anyone/anything", true},
		{"*api*", "acme/api", true},
		{"*api*", "acme/web", false},
		{"acme*", "acme/api", true},
		{"acme*", "acme-labs/tool", true},
		{"acme*", "other/acme", false},
		{"*/api", "acme/api", true},
		{"acme?api", "acme/api", true},
		{"acme/[aw]*", "acme/web", true},
		{"acme/[!aw]*", "acme/web", false},
	}
	for _, tt := range tests {
		owner, repo, _ := strings.Cut(tt.target, "/")
		if got := NewAllowlist(tt.pattern).IsAllowed(owner, repo); got != tt.want {
			t.Errorf("%q matching %s = %v, want %v", tt.pattern, tt.target, got, tt.want)
		}
	}
}

func TestAllowlistRequire(t *testing.T) {
	al := ParseAllowlist("acme/*")
	err := al.Require("other", "api")
	if !errors.Is(err, ErrRepoNotAllowed) {
		t.Fatalf("expected repo_not_allowed, got %v", err)
	}
	if !strings.Contains(err.Error(), "GITHUB_ALLOWED_REPOS") || !strings.Contains(err.Error(), "other/api") {
		t.Errorf("reason should name the repository and the setting to change: %v", err)
	}
	if err := al.Require("acme", "api"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAllowlistValidate(t *testing.T) {
	if err := ParseAllowlist("acme/*,me/[abc]").Validate(); err != nil {
		t.Errorf("valid patterns rejected: %v", err)
	}
	if err := ParseAllowlist("acme/[").Validate(); err == nil {
		t.Error("expected error for unterminated character class")
	}
	if ParseAllowlist("acme/[").IsAllowed("acme", "[") {
		t.Error("malformed pattern must not match")
	}
}
