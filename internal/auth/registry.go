// Package auth resolves the static bearer-token registry at startup and
// authenticates inbound requests against it.
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"sort"
)

// FailureKind distinguishes a missing credential from a wrong one.
type FailureKind string

const (
	MissingToken FailureKind = "missing_token"
	InvalidToken FailureKind = "invalid_token"
)

// Error is returned when a request cannot be authenticated. Its message
// never includes the presented or configured token.
type Error struct {
	Kind FailureKind
}

func (e *Error) Error() string {
	switch e.Kind {
	case MissingToken:
		return "Missing Bearer token"
	default:
		return "Invalid token"
	}
}

// Is matches any *Error with the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrMissingToken = &Error{Kind: MissingToken}
	ErrInvalidToken = &Error{Kind: InvalidToken}
)

// ErrEmptyRegistry is returned when no usable tokens were configured.
var ErrEmptyRegistry = errors.New("no MCP tokens configured; provide MCP_TOKENS_JSON, MCP_TOKENS_SECRET_PAYLOAD or MCP_TOKENS_SECRET_NAME")

type entry struct {
	digest [sha256.Size]byte
	label  string
}

// Registry maps secret tokens to human-readable labels. It is immutable
// after construction and safe for concurrent use.
type Registry struct {
	entries []entry
}

// NewRegistry builds a registry from a {label: token} mapping. It fails
// when the mapping is empty or two labels share one token.
func NewRegistry(labelToToken map[string]string) (*Registry, error) {
	if len(labelToToken) == 0 {
		return nil, ErrEmptyRegistry
	}

	labels := make([]string, 0, len(labelToToken))
	for label := range labelToToken {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	seen := make(map[[sha256.Size]byte]string, len(labels))
	r := &Registry{entries: make([]entry, 0, len(labels))}
	for _, label := range labels {
		d := sha256.Sum256([]byte(labelToToken[label]))
		if prev, dup := seen[d]; dup {
			return nil, fmt.Errorf("labels %q and %q share the same token", prev, label)
		}
		seen[d] = label
		r.entries = append(r.entries, entry{digest: d, label: label})
	}
	return r, nil
}

// Authenticate returns the label of the registered token equal to token.
//
// Both sides are hashed to a fixed length before comparison, and every
// entry is compared even after a match, so timing depends on neither the
// token length nor its position in the registry.
func (r *Registry) Authenticate(token string) (string, error) {
	if token == "" {
		return "", ErrMissingToken
	}
	presented := sha256.Sum256([]byte(token))

	label := ""
	found := 0
	for i := range r.entries {
		eq := subtle.ConstantTimeCompare(presented[:], r.entries[i].digest[:])
		if eq == 1 {
			label = r.entries[i].label
		}
		found |= eq
	}
	if found != 1 {
		return "", ErrInvalidToken
	}
	return label, nil
}

// Labels returns the registered labels in sorted order.
func (r *Registry) Labels() []string {
	out := make([]string, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.label
	}
	return out
}

// Len returns the number of registered tokens.
func (r *Registry) Len() int {
	return len(r.entries)
}
