// Package guardrail bounds untrusted tool input before it reaches a paid,
// rate-limited or security-sensitive backend. Every function is pure and
// reports rejections as *Error values.
package guardrail

import (
	"errors"
	"fmt"
	"strings"
)

// Kind identifies which guardrail rejected an input.
type Kind string

const (
	EmptyInput     Kind = "empty_input"
	MultiStatement Kind = "multi_statement"
	NotSelect      Kind = "not_select"
	CostExceeded   Kind = "cost_exceeded"
	RepoNotAllowed Kind = "repo_not_allowed"
	InvalidRange   Kind = "invalid_range"
	InvalidFormat  Kind = "invalid_format"
)

// Sentinels for errors.Is. Only the Kind is compared.
var (
	ErrEmptyInput     = &Error{Kind: EmptyInput}
	ErrMultiStatement = &Error{Kind: MultiStatement}
	ErrNotSelect      = &Error{Kind: NotSelect}
	ErrCostExceeded   = &Error{Kind: CostExceeded}
	ErrRepoNotAllowed = &Error{Kind: RepoNotAllowed}
	ErrInvalidRange   = &Error{Kind: InvalidRange}
	ErrInvalidFormat  = &Error{Kind: InvalidFormat}
)

// Error is returned when a guardrail rejects its input.
// Reason is caller-visible and never carries configured secrets.
type Error struct {
	Kind   Kind
	Reason string
}

func (e *Error) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("rejected (%s)", e.Kind)
	}
	return fmt.Sprintf("rejected (%s): %s", e.Kind, e.Reason)
}

// Is reports whether target is a guardrail error of the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind, true
	}
	return "", false
}

func reject(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

// Required trims value and rejects it when blank. name is the parameter
// as the caller knows it.
func Required(name, value string) (string, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return "", reject(EmptyInput, "%s is required", name)
	}
	return v, nil
}
