package config

import (
	"net/url"
	"time"

	"github.com/ppiankov/toolgate/internal/guardrail"
)

// GitHub configures the github service.
type GitHub struct {
	Common `yaml:",inline"`

	APIBaseURL       string `yaml:"github_api_base_url"`
	UserAgent        string `yaml:"github_user_agent"`
	TimeoutSeconds   int    `yaml:"github_timeout_seconds"`
	Token            string `yaml:"github_token,omitempty"`
	MaxReposScan     int    `yaml:"github_max_repos_scan"`
	MaxCommitsReturn int    `yaml:"github_max_commits_return"`
	AllowedRepos     string `yaml:"github_allowed_repos,omitempty"`
}

// GitHub loads and validates the github service config. A platform-injected
// GITHUB_TOKEN_SECRET_PAYLOAD takes precedence over GITHUB_TOKEN.
func (l *Loader) GitHub() (*GitHub, error) {
	r := l.reader()
	c := &GitHub{
		Common:           r.common(),
		APIBaseURL:       r.str("GITHUB_API_BASE_URL", "https://api.github.com"),
		UserAgent:        r.str("GITHUB_USER_AGENT", "toolgate-github-mcp"),
		TimeoutSeconds:   r.int("GITHUB_TIMEOUT_SECONDS", 15),
		Token:            r.str("GITHUB_TOKEN_SECRET_PAYLOAD", r.raw("GITHUB_TOKEN")),
		MaxReposScan:     r.int("GITHUB_MAX_REPOS_SCAN", 25),
		MaxCommitsReturn: r.int("GITHUB_MAX_COMMITS_RETURN", 20),
		AllowedRepos:     r.raw("GITHUB_ALLOWED_REPOS"),
	}
	if err := r.err(); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *GitHub) Base() Common { return c.Common }

func (c *GitHub) Validate() error {
	v := &validation{}
	c.Common.validate(v)
	u, err := url.Parse(c.APIBaseURL)
	v.check(err == nil && (u.Scheme == "https" || u.Scheme == "http") && u.Host != "",
		"GITHUB_API_BASE_URL must be an absolute http(s) URL, got %q", c.APIBaseURL)
	v.positive("GITHUB_TIMEOUT_SECONDS", int64(c.TimeoutSeconds))
	v.positive("GITHUB_MAX_REPOS_SCAN", int64(c.MaxReposScan))
	v.positive("GITHUB_MAX_COMMITS_RETURN", int64(c.MaxCommitsReturn))
	if err := c.Allowlist().Validate(); err != nil {
		v.check(false, "GITHUB_ALLOWED_REPOS: %v", err)
	}
	return v.err()
}

// Timeout is the per-request GitHub API timeout.
func (c *GitHub) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Allowlist parses GITHUB_ALLOWED_REPOS.
func (c *GitHub) Allowlist() guardrail.Allowlist {
	return guardrail.ParseAllowlist(c.AllowedRepos)
}

func (c *GitHub) Redacted() Config {
	out := *c
	out.Common = c.Common.redacted()
	out.Token = redact(c.Token)
	return &out
}
