package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/toolgate/internal/audit"
	"github.com/ppiankov/toolgate/internal/config"
)

// run executes the root command with args and returns its stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
		envFile = ""
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func writeAuditLog(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	log, err := audit.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer log.Close()
	entries := []audit.Entry{
		{TokenLabel: "alice", Service: "github", Tool: "github_latest_commit", Target: "acme/api", Decision: audit.DecisionAllow},
		{TokenLabel: "bob", Service: "github", Tool: "github_latest_commit", Target: "acme/secret", Decision: audit.DecisionReject, Kind: "repo_not_allowed"},
		{TokenLabel: "alice", Service: "github", Tool: "github_list_repos", Target: "acme", Decision: audit.DecisionAllow},
	}
	for _, e := range entries {
		if err := log.Record(e); err != nil {
			t.Fatal(err)
		}
	}
	return path
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	var info map[string]string
	if err := json.Unmarshal([]byte(out), &info); err != nil {
		t.Fatalf("version output is not JSON: %v\n%s", err, out)
	}
	if info["name"] != "toolgate" || info["version"] == "" {
		t.Errorf("unexpected version info %v", info)
	}
}

func TestAuditVerifyCommand(t *testing.T) {
	path := writeAuditLog(t)
	out, err := run(t, "audit", "verify", path)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !strings.Contains(out, "OK: 3 entries verified") {
		t.Errorf("unexpected output %q", out)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	tampered := strings.Replace(string(data), "acme/secret", "acme/public", 1)
	if err := os.WriteFile(path, []byte(tampered), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := run(t, "audit", "verify", path); err == nil || !strings.Contains(err.Error(), "line 3") {
		t.Errorf("expected broken chain at line 3, got %v", err)
	}
}

func TestAuditTailCommand(t *testing.T) {
	path := writeAuditLog(t)
	out, err := run(t, "audit", "tail", path, "-n", "1")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "github_list_repos") || strings.Contains(out, "acme/secret") {
		t.Errorf("tail -n 1 should show only the last entry:\n%s", out)
	}
}

func TestAuditSummaryCommand(t *testing.T) {
	path := writeAuditLog(t)
	out, err := run(t, "audit", "summary", path, "--label", "bob", "--format", "json")
	if err != nil {
		t.Fatal(err)
	}
	var report audit.Report
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("summary output is not JSON: %v\n%s", err, out)
	}
	if report.Summary.Total != 1 || report.Summary.RejectCount != 1 {
		t.Errorf("unexpected summary %+v", report.Summary)
	}
	if len(report.Summary.Rejections) != 1 || report.Summary.Rejections[0].Kind != "repo_not_allowed" {
		t.Errorf("unexpected rejections %+v", report.Summary.Rejections)
	}
}

func TestParseSince(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

	got, err := parseSince("24h", now)
	if err != nil || !got.Equal(now.Add(-24*time.Hour)) {
		t.Errorf("parseSince(24h) = %v, %v", got, err)
	}
	got, err = parseSince("2026-03-01T00:00:00Z", now)
	if err != nil || !got.Equal(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("parseSince(RFC3339) = %v, %v", got, err)
	}
	if _, err := parseSince("yesterday", now); err == nil {
		t.Error("expected error for unparseable --since")
	}
}

func TestConfigCommandRedactsSecrets(t *testing.T) {
	for _, k := range []string{"PORT", "MCP_TOKENS_JSON", "GITHUB_TOKEN", "GITHUB_TOKEN_SECRET_PAYLOAD", "GITHUB_ALLOWED_REPOS"} {
		t.Setenv(k, "")
	}
	env := filepath.Join(t.TempDir(), "test.env")
	content := strings.Join([]string{
		`MCP_TOKENS_JSON='{"alice":"tok-alice"}'`,
		"GITHUB_TOKEN=ghp_secret",
		"GITHUB_ALLOWED_REPOS=acme/*",
		"PORT=9090",
	}, "\n") + "\n"
	if err := os.WriteFile(env, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, "--env-file", env, "config", "github")
	if err != nil {
		t.Fatalf("config github: %v", err)
	}
	if strings.Contains(out, "ghp_secret") || strings.Contains(out, "tok-alice") {
		t.Fatalf("secrets leaked into config output:\n%s", out)
	}
	for _, want := range []string{"port: 9090", "github_allowed_repos: acme/*", "[REDACTED]"} {
		if !strings.Contains(out, want) {
			t.Errorf("config output missing %q:\n%s", want, out)
		}
	}
}

func TestConfigCommandUnknownService(t *testing.T) {
	if _, err := run(t, "config", "jira"); err == nil {
		t.Fatal("expected error for unknown service")
	}
}

func TestOutlookAuthenticatorCache(t *testing.T) {
	c := &config.Outlook{TenantID: "t", ClientID: "c", TokenCache: config.TokenCacheFile, TokenCachePath: filepath.Join(t.TempDir(), "cache.json")}
	a := outlookAuthenticator(c, nil)
	if _, err := a.TokenSource(t.Context()); err == nil {
		t.Fatal("expected missing-token error from an empty file cache")
	}
}
