package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"unicode"

	"go.uber.org/zap"
)

type labelKey struct{}

// WithLabel returns a copy of ctx carrying the authenticated token label.
func WithLabel(ctx context.Context, label string) context.Context {
	return context.WithValue(ctx, labelKey{}, label)
}

// LabelFromContext returns the token label stored by Middleware, or "".
func LabelFromContext(ctx context.Context) string {
	v, _ := ctx.Value(labelKey{}).(string)
	return v
}

// ExtractToken reads "Authorization: Bearer <token>". The scheme is
// case-insensitive and may be followed by any run of whitespace. When
// allowQuery is set, ?access_token= is used as a fallback.
func ExtractToken(r *http.Request, allowQuery bool) string {
	if h := r.Header.Get("Authorization"); h != "" {
		h = strings.TrimSpace(h)
		if i := strings.IndexFunc(h, unicode.IsSpace); i > 0 && strings.EqualFold(h[:i], "bearer") {
			if t := strings.TrimSpace(h[i:]); t != "" {
				return t
			}
		}
	}
	if allowQuery {
		return strings.TrimSpace(r.URL.Query().Get("access_token"))
	}
	return ""
}

// MiddlewareOptions configures Middleware.
type MiddlewareOptions struct {
	// AllowQueryParam accepts ?access_token= in addition to the header.
	AllowQueryParam bool
	// Public paths skip authentication.
	Public []string
	Logger *zap.Logger
	// OnFailure is called for every rejected request.
	OnFailure func(kind FailureKind)
}

// Authenticator resolves a presented token to its label.
type Authenticator interface {
	Authenticate(token string) (string, error)
}

// Middleware rejects requests that do not present a registered token
// with 401 {"error":"unauthorized","detail":...}. Authenticated requests
// carry the token label in their context.
func Middleware(reg Authenticator, opts MiddlewareOptions) func(http.Handler) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	public := make(map[string]bool, len(opts.Public))
	for _, p := range opts.Public {
		public[p] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if public[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			label, err := reg.Authenticate(ExtractToken(r, opts.AllowQueryParam))
			if err != nil {
				var ae *Error
				kind := InvalidToken
				if errors.As(err, &ae) {
					kind = ae.Kind
				}
				if opts.OnFailure != nil {
					opts.OnFailure(kind)
				}
				logger.Warn("auth failed",
					zap.String("path", r.URL.Path),
					zap.String("reason", string(kind)),
					zap.String("remote", r.RemoteAddr))
				writeUnauthorized(w, err.Error())
				return
			}

			next.ServeHTTP(w, r.WithContext(WithLabel(r.Context(), label)))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="mcp"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":  "unauthorized",
		"detail": detail,
	})
}
