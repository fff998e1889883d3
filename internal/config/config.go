// Package config loads service settings from the environment and an
// optional .env file. Every value is read once and validated before a
// service starts; the resulting structs are never mutated afterwards.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// Service names one of the three tool services.
type Service string

const (
	BigQueryService Service = "bigquery"
	GitHubService   Service = "github"
	OutlookService  Service = "outlook"
)

// Services lists every service in display order.
var Services = []Service{BigQueryService, GitHubService, OutlookService}

// DisplayName is the name the service reports to clients and logs,
// such as "bigquery-mcp".
func (s Service) DisplayName() string {
	return string(s) + "-mcp"
}

// ParseService maps a command-line name to a Service.
func ParseService(name string) (Service, error) {
	for _, s := range Services {
		if strings.EqualFold(name, string(s)) {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown service %q (want bigquery, github or outlook)", name)
}

// DefaultEnvFile is read when present and no --env-file was given.
const DefaultEnvFile = ".env"

// Loader reads keys from the process environment, falling back to an
// env file. Environment variables always win over the file.
type Loader struct {
	v       *viper.Viper
	envFile string
}

// NewLoader creates a loader. An explicit envFile must exist; the default
// .env is used only when present.
func NewLoader(envFile string) (*Loader, error) {
	v := viper.New()
	v.AutomaticEnv()

	path := envFile
	if path == "" {
		if _, err := os.Stat(DefaultEnvFile); err == nil {
			path = DefaultEnvFile
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read env file %s: %w", path, err)
		}
	}
	return &Loader{v: v, envFile: path}, nil
}

// EnvFile returns the env file in use, or "" when reading only the environment.
func (l *Loader) EnvFile() string {
	return l.envFile
}

// Reload re-reads the env file so that subsequent loads see its new contents.
func (l *Loader) Reload() error {
	if l.envFile == "" {
		return nil
	}
	if err := l.v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to re-read env file %s: %w", l.envFile, err)
	}
	return nil
}

// Load returns the validated config for svc.
func (l *Loader) Load(svc Service) (Config, error) {
	switch svc {
	case BigQueryService:
		return l.BigQuery()
	case GitHubService:
		return l.GitHub()
	case OutlookService:
		return l.Outlook()
	default:
		return nil, fmt.Errorf("unknown service %q", svc)
	}
}

// Config is implemented by every service config.
type Config interface {
	Base() Common
	Validate() error
	// Redacted returns a copy safe to print.
	Redacted() Config
}

// reader accumulates parse errors so that one run reports every bad key.
type reader struct {
	v    *viper.Viper
	errs []error
}

func (l *Loader) reader() *reader {
	return &reader{v: l.v}
}

func (r *reader) raw(key string) string {
	return strings.TrimSpace(r.v.GetString(key))
}

func (r *reader) str(key, def string) string {
	if s := r.raw(key); s != "" {
		return s
	}
	return def
}

func (r *reader) int(key string, def int) int {
	s := r.raw(key)
	if s == "" {
		return def
	}
	n, err := cast.ToIntE(s)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: invalid integer %q", key, s))
		return def
	}
	return n
}

func (r *reader) int64(key string, def int64) int64 {
	s := r.raw(key)
	if s == "" {
		return def
	}
	n, err := cast.ToInt64E(s)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: invalid integer %q", key, s))
		return def
	}
	return n
}

func (r *reader) bool(key string, def bool) bool {
	s := r.raw(key)
	if s == "" {
		return def
	}
	b, err := cast.ToBoolE(strings.ToLower(s))
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: invalid boolean %q", key, s))
		return def
	}
	return b
}

func (r *reader) err() error {
	return errors.Join(r.errs...)
}

// validation collects range violations.
type validation struct {
	errs []error
}

func (v *validation) check(ok bool, format string, args ...any) {
	if !ok {
		v.errs = append(v.errs, fmt.Errorf(format, args...))
	}
}

func (v *validation) positive(key string, n int64) {
	v.check(n > 0, "%s must be positive, got %d", key, n)
}

func (v *validation) err() error {
	if len(v.errs) == 0 {
		return nil
	}
	return fmt.Errorf("invalid configuration: %w", errors.Join(v.errs...))
}

const redactedValue = "[REDACTED]"

func redact(s string) string {
	if s == "" {
		return ""
	}
	return redactedValue
}
