package guardrail

import (
	"regexp"
	"strings"
)

var (
	blockComment = regexp.MustCompile(`(?s)/\*.*?\*/`)
	lineComment  = regexp.MustCompile(`(?m)(--|#).*$`)
)

// NormalizeSQL strips /* */ block comments, -- and # line comments and
// surrounding whitespace. Nothing else in the statement is rewritten.
//
// This is not a SQL parser: comment markers inside string literals are
// removed too. The authoritative gate is the statement type reported by
// the backend dry run.
func NormalizeSQL(sql string) (string, error) {
	s := strings.TrimSpace(sql)
	if s == "" {
		return "", reject(EmptyInput, "SQL is empty")
	}

	// Removing one block comment can splice two halves into a new one,
	// so strip until nothing changes. Keeps the result a fixed point.
	for {
		next := blockComment.ReplaceAllString(s, "")
		if next == s {
			break
		}
		s = next
	}
	s = lineComment.ReplaceAllString(s, "")

	s = strings.TrimSpace(s)
	if s == "" {
		return "", reject(EmptyInput, "SQL is empty after removing comments")
	}
	return s, nil
}

// RejectMultipleStatements allows any number of trailing semicolons and
// rejects input with a semicolon anywhere else.
//
// Heuristic: a ';' inside a string literal is a false positive, and a
// script whose statements are not separated by ';' is a false negative.
func RejectMultipleStatements(sql string) error {
	s := strings.TrimSpace(sql)
	for strings.HasSuffix(s, ";") {
		s = strings.TrimRightFunc(strings.TrimSuffix(s, ";"), isSpace)
	}
	if strings.Contains(s, ";") {
		return reject(MultiStatement, "multiple statements are not allowed (possible script detected); provide a single SELECT query")
	}
	return nil
}

func isSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return false
}
