package config

import (
	"strings"
	"time"
)

// Token cache backends for the Outlook device-code flow.
const (
	TokenCacheFile    = "file"
	TokenCacheKeyring = "keyring"
)

// Outlook configures the outlook service.
type Outlook struct {
	Common `yaml:",inline"`

	TenantID        string `yaml:"ms_tenant_id"`
	ClientID        string `yaml:"ms_client_id"`
	Scopes          string `yaml:"ms_scopes"`
	TokenCache      string `yaml:"ms_token_cache"`
	TokenCachePath  string `yaml:"ms_token_cache_path"`
	UserTimezone    string `yaml:"user_timezone"`
	MaxDaysRange    int    `yaml:"outlook_max_days_range"`
	MaxEventsReturn int    `yaml:"outlook_max_events_return"`

	location *time.Location
}

// Outlook loads and validates the outlook service config.
func (l *Loader) Outlook() (*Outlook, error) {
	r := l.reader()
	c := &Outlook{
		Common:          r.common(),
		TenantID:        r.raw("MS_TENANT_ID"),
		ClientID:        r.raw("MS_CLIENT_ID"),
		Scopes:          r.str("MS_SCOPES", "Calendars.Read offline_access"),
		TokenCache:      strings.ToLower(r.str("MS_TOKEN_CACHE", TokenCacheFile)),
		TokenCachePath:  r.str("MS_TOKEN_CACHE_PATH", ".ms_token_cache.json"),
		UserTimezone:    r.str("USER_TIMEZONE", "Europe/London"),
		MaxDaysRange:    r.int("OUTLOOK_MAX_DAYS_RANGE", 14),
		MaxEventsReturn: r.int("OUTLOOK_MAX_EVENTS_RETURN", 50),
	}
	if err := r.err(); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Outlook) Base() Common { return c.Common }

func (c *Outlook) Validate() error {
	v := &validation{}
	c.Common.validate(v)
	v.check(c.TenantID != "", "MS_TENANT_ID is required")
	v.check(c.ClientID != "", "MS_CLIENT_ID is required")
	v.check(len(c.ScopeList()) > 0, "MS_SCOPES must name at least one scope")
	v.check(c.TokenCache == TokenCacheFile || c.TokenCache == TokenCacheKeyring,
		"MS_TOKEN_CACHE must be %q or %q, got %q", TokenCacheFile, TokenCacheKeyring, c.TokenCache)
	v.check(c.TokenCache != TokenCacheFile || c.TokenCachePath != "", "MS_TOKEN_CACHE_PATH is required for the file cache")
	v.positive("OUTLOOK_MAX_DAYS_RANGE", int64(c.MaxDaysRange))
	v.positive("OUTLOOK_MAX_EVENTS_RETURN", int64(c.MaxEventsReturn))

	loc, err := time.LoadLocation(c.UserTimezone)
	v.check(err == nil, "USER_TIMEZONE %q is not a known timezone", c.UserTimezone)
	c.location = loc
	return v.err()
}

// Location returns the user's timezone. It falls back to UTC before Validate runs.
func (c *Outlook) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

// ScopeList splits MS_SCOPES on whitespace or commas.
func (c *Outlook) ScopeList() []string {
	return strings.FieldsFunc(c.Scopes, func(r rune) bool {
		return r == ' ' || r == ',' || r == '\t'
	})
}

func (c *Outlook) Redacted() Config {
	out := *c
	out.Common = c.Common.redacted()
	return &out
}
