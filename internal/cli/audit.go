package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/toolgate/internal/audit"
)

var (
	tailLines int

	summaryLabel    string
	summaryTool     string
	summaryDecision string
	summarySince    string
	summaryFormat   string
)

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditVerifyCmd)
	auditCmd.AddCommand(auditTailCmd)
	auditCmd.AddCommand(auditSummaryCmd)
	auditTailCmd.Flags().IntVarP(&tailLines, "lines", "n", 10, "Number of recent entries to show")

	auditSummaryCmd.Flags().StringVar(&summaryLabel, "label", "", "Only entries for this token label")
	auditSummaryCmd.Flags().StringVar(&summaryTool, "tool", "", "Only entries for this tool")
	auditSummaryCmd.Flags().StringVar(&summaryDecision, "decision", "", "Only entries with this decision (allow|reject|error)")
	auditSummaryCmd.Flags().StringVar(&summarySince, "since", "", "Only entries newer than this duration (e.g. 24h) or RFC3339 time")
	auditSummaryCmd.Flags().StringVarP(&summaryFormat, "format", "f", "text", "Output format (text|json)")
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Audit log operations",
	Long:  "Commands for verifying and inspecting the hash-chained tool call log.",
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify <path>",
	Short: "Verify hash chain integrity of an audit log",
	Long:  "Walks the JSONL audit log and validates that every entry's prev_hash\nmatches the SHA-256 of the previous line. Exits 0 if valid, 1 if tampered.",
	Args:  cobra.ExactArgs(1),
	RunE:  runAuditVerify,
}

var auditTailCmd = &cobra.Command{
	Use:   "tail <path>",
	Short: "Show recent audit log entries",
	Long:  "Reads the last N entries from the JSONL audit log and pretty-prints them.",
	Args:  cobra.ExactArgs(1),
	RunE:  runAuditTail,
}

var auditSummaryCmd = &cobra.Command{
	Use:   "summary <path>",
	Short: "Summarize tool calls in an audit log",
	Long:  "Filters the audit log and renders a call timeline with allow, reject and\nerror counts and the most frequent guardrail rejections.",
	Args:  cobra.ExactArgs(1),
	RunE:  runAuditSummary,
}

func runAuditVerify(cmd *cobra.Command, args []string) error {
	result := audit.Verify(args[0])
	if !result.Valid {
		return fmt.Errorf("audit chain broken at line %d: %s", result.ErrorLine, result.Error)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "OK: %d entries verified\n", result.Lines)
	return nil
}

func runAuditTail(cmd *cobra.Command, args []string) error {
	report, err := audit.Query(args[0], audit.Filter{Last: tailLines})
	if err != nil {
		return err
	}
	for _, e := range report.Entries {
		out, err := json.MarshalIndent(e, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
	}
	return nil
}

func runAuditSummary(cmd *cobra.Command, args []string) error {
	filter := audit.Filter{
		TokenLabel: summaryLabel,
		Tool:       summaryTool,
		Decision:   summaryDecision,
	}
	if summarySince != "" {
		from, err := parseSince(summarySince, time.Now())
		if err != nil {
			return err
		}
		filter.From = from
	}

	report, err := audit.Query(args[0], filter)
	if err != nil {
		return err
	}

	switch summaryFormat {
	case "json":
		out, err := audit.FormatJSON(report)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)
	case "text":
		fmt.Fprint(cmd.OutOrStdout(), audit.FormatTimeline(report))
	default:
		return fmt.Errorf("unknown format %q (want text or json)", summaryFormat)
	}
	return nil
}

// parseSince accepts a Go duration relative to now or an RFC3339 time.
func parseSince(s string, now time.Time) (time.Time, error) {
	if d, err := time.ParseDuration(s); err == nil {
		return now.Add(-d), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --since %q: want a duration like 24h or an RFC3339 time", s)
	}
	return t, nil
}
