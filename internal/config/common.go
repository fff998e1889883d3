package config

import (
	"strings"

	"github.com/ppiankov/toolgate/internal/auth"
)

// Common holds settings shared by every service.
type Common struct {
	Env      string `yaml:"env"`
	Port     int    `yaml:"port"`
	LogLevel string `yaml:"log_level"`

	TokensJSON          string `yaml:"mcp_tokens_json,omitempty"`
	TokensSecretPayload string `yaml:"mcp_tokens_secret_payload,omitempty"`
	TokensSecretName    string `yaml:"mcp_tokens_secret_name,omitempty"`
	TokensSecretVersion string `yaml:"mcp_tokens_secret_version"`
	// GCPProjectID is the project used for Secret Manager lookups.
	GCPProjectID string `yaml:"gcp_project_id,omitempty"`

	AllowQueryParamToken bool   `yaml:"allow_query_param_token"`
	AuditLog             string `yaml:"audit_log,omitempty"`
	MetricsEnabled       bool   `yaml:"metrics_enabled"`
}

func (r *reader) common() Common {
	project := r.str("GCP_PROJECT_ID", "")
	if project == "" {
		project = r.str("BQ_PROJECT_ID", "")
	}
	return Common{
		Env:                  r.str("ENV", "dev"),
		Port:                 r.int("PORT", 8080),
		LogLevel:             strings.ToLower(r.str("LOG_LEVEL", "info")),
		TokensJSON:           r.raw("MCP_TOKENS_JSON"),
		TokensSecretPayload:  r.raw("MCP_TOKENS_SECRET_PAYLOAD"),
		TokensSecretName:     r.raw("MCP_TOKENS_SECRET_NAME"),
		TokensSecretVersion:  r.str("MCP_TOKENS_SECRET_VERSION", "latest"),
		GCPProjectID:         project,
		AllowQueryParamToken: r.bool("ALLOW_QUERY_PARAM_TOKEN", false),
		AuditLog:             r.raw("AUDIT_LOG"),
		MetricsEnabled:       r.bool("METRICS_ENABLED", true),
	}
}

// Common loads only the shared settings.
func (l *Loader) Common() (Common, error) {
	r := l.reader()
	c := r.common()
	if err := r.err(); err != nil {
		return Common{}, err
	}
	v := &validation{}
	c.validate(v)
	return c, v.err()
}

// IsProduction reports whether ENV names a production deployment.
func (c Common) IsProduction() bool {
	switch strings.ToLower(c.Env) {
	case "prod", "production":
		return true
	}
	return false
}

// TokenSource describes where the bearer-token registry is read from.
func (c Common) TokenSource() auth.Source {
	return auth.Source{
		JSON:          c.TokensJSON,
		Payload:       c.TokensSecretPayload,
		SecretName:    c.TokensSecretName,
		SecretVersion: c.TokensSecretVersion,
		ProjectID:     c.GCPProjectID,
	}
}

func (c Common) validate(v *validation) {
	v.check(c.Port >= 1 && c.Port <= 65535, "PORT must be in 1..65535, got %d", c.Port)
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		v.check(false, "LOG_LEVEL must be debug, info, warn or error, got %q", c.LogLevel)
	}
	v.check(c.TokensJSON != "" || c.TokensSecretPayload != "" || c.TokensSecretName != "",
		"no MCP token source configured (MCP_TOKENS_JSON, MCP_TOKENS_SECRET_PAYLOAD or MCP_TOKENS_SECRET_NAME)")
}

func (c Common) redacted() Common {
	c.TokensJSON = redact(c.TokensJSON)
	c.TokensSecretPayload = redact(c.TokensSecretPayload)
	return c
}
