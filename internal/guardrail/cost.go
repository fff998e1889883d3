package guardrail

import "strings"

// Estimate is the outcome of a backend dry run. Bytes is nil when the
// backend did not report a figure.
type Estimate struct {
	StatementType string
	Bytes         *int64
}

// RequireSelect rejects any dry-run statement type other than SELECT.
func RequireSelect(statementType string) error {
	if strings.ToUpper(strings.TrimSpace(statementType)) != "SELECT" {
		return reject(NotSelect, "only SELECT queries are allowed, detected statement_type=%q", statementType)
	}
	return nil
}

// EnforceEstimate rejects an estimate above maxBytes. It is a no-op when
// the estimate is unknown or maxBytes <= 0 (cap disabled).
func EnforceEstimate(estimatedBytes *int64, maxBytes int64) error {
	if estimatedBytes == nil || maxBytes <= 0 {
		return nil
	}
	if *estimatedBytes > maxBytes {
		return reject(CostExceeded, "estimated bytes processed (%d) exceeds cap (%d)", *estimatedBytes, maxBytes)
	}
	return nil
}

// CheckEstimate applies RequireSelect then EnforceEstimate. Callers must
// not start execution unless it returns nil.
func CheckEstimate(e Estimate, maxBytes int64) error {
	if err := RequireSelect(e.StatementType); err != nil {
		return err
	}
	return EnforceEstimate(e.Bytes, maxBytes)
}
