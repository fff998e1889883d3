package guardrail

import (
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Allowlist restricts "owner/repo" identifiers to a set of glob patterns.
// An empty allowlist allows everything (fail open).
type Allowlist struct {
	patterns []string
}

// ParseAllowlist splits a comma-separated pattern list. Blank entries are
// dropped; empty input yields an empty (allow-all) list.
func ParseAllowlist(csv string) Allowlist {
	var patterns []string
	for _, p := range strings.Split(csv, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			patterns = append(patterns, p)
		}
	}
	return Allowlist{patterns: patterns}
}

// NewAllowlist builds an allowlist from already-split patterns.
func NewAllowlist(patterns ...string) Allowlist {
	return ParseAllowlist(strings.Join(patterns, ","))
}

// Patterns returns a copy of the configured patterns.
func (a Allowlist) Patterns() []string {
	return append([]string(nil), a.patterns...)
}

// Empty reports whether no patterns are configured.
func (a Allowlist) Empty() bool {
	return len(a.patterns) == 0
}

// flat hides '/' from the matcher so wildcards span the owner/repo
// boundary, as in shell fnmatch.
const flat = "\x00"

func flatten(s string) string {
	return strings.ReplaceAll(s, "/", flat)
}

// Validate reports the first syntactically invalid pattern.
func (a Allowlist) Validate() error {
	for _, p := range a.patterns {
		if !doublestar.ValidatePattern(flatten(p)) {
			return fmt.Errorf("invalid allowlist pattern %q", p)
		}
	}
	return nil
}

// IsAllowed reports whether owner/repo matches any pattern. Matching is
// case-sensitive fnmatch: '*' matches any run of characters including
// '/', so "*" and "acme*" cover acme/api. '?' matches one character and
// [...] a character class. A malformed pattern never matches.
func (a Allowlist) IsAllowed(owner, repo string) bool {
	if len(a.patterns) == 0 {
		return true
	}
	target := flatten(owner + "/" + repo)
	for _, p := range a.patterns {
		if ok, err := doublestar.Match(flatten(p), target); err == nil && ok {
			return true
		}
	}
	return false
}

// Require returns a RepoNotAllowed error when owner/repo is not allowed.
func (a Allowlist) Require(owner, repo string) error {
	if !a.IsAllowed(owner, repo) {
		return reject(RepoNotAllowed, "repository '%s/%s' is not allowed by server policy; ask an admin to add it to GITHUB_ALLOWED_REPOS", owner, repo)
	}
	return nil
}
