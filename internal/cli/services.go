package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/ppiankov/toolgate/internal/bigquery"
	"github.com/ppiankov/toolgate/internal/config"
	"github.com/ppiankov/toolgate/internal/github"
	"github.com/ppiankov/toolgate/internal/logging"
	"github.com/ppiankov/toolgate/internal/mcp"
	"github.com/ppiankov/toolgate/internal/outlook"
)

// keyringService is the OS keyring service name for cached Microsoft tokens.
const keyringService = "toolgate-outlook"

var (
	bigqueryFlags serveFlags
	githubFlags   serveFlags
	outlookFlags  serveFlags
)

func init() {
	rootCmd.AddCommand(bigqueryCmd, githubCmd, outlookCmd)
	bigqueryFlags.register(bigqueryCmd)
	githubFlags.register(githubCmd)
	outlookFlags.register(outlookCmd)
	outlookCmd.AddCommand(outlookLoginCmd)
}

var bigqueryCmd = &cobra.Command{
	Use:   "bigquery",
	Short: "Serve the bigquery_select tool",
	Long:  "Runs the BigQuery MCP service. Queries must be a single SELECT and are\ndry-run first; anything estimated above BQ_MAX_BYTES_BILLED is refused.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runService(config.BigQueryService, &bigqueryFlags, buildBigQuery)
	},
}

var githubCmd = &cobra.Command{
	Use:   "github",
	Short: "Serve the read-only GitHub commit tools",
	Long:  "Runs the GitHub MCP service. Repository access is limited by\nGITHUB_ALLOWED_REPOS when set.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runService(config.GitHubService, &githubFlags, buildGitHub)
	},
}

var outlookCmd = &cobra.Command{
	Use:   "outlook",
	Short: "Serve the read-only Outlook calendar tools",
	Long:  "Runs the Outlook MCP service against Microsoft Graph. Sign in once with\n`toolgate outlook login` to populate the token cache.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runService(config.OutlookService, &outlookFlags, buildOutlook)
	},
}

var outlookLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to Microsoft with the device code flow",
	Long:  "Prints a verification URL and code, waits for the sign-in to complete\nand stores the token in the configured cache (MS_TOKEN_CACHE).",
	Args:  cobra.NoArgs,
	RunE:  runOutlookLogin,
}

func buildBigQuery(ctx context.Context, cfg config.Config, opts mcp.Options) (*mcp.Server, func() error, error) {
	c, ok := cfg.(*config.BigQuery)
	if !ok {
		return nil, nil, errWrongConfig
	}
	client, err := bigquery.NewClient(ctx, c.ProjectID, c.Location)
	if err != nil {
		return nil, nil, err
	}
	return mcp.NewBigQuery(c, client, opts), client.Close, nil
}

func buildGitHub(_ context.Context, cfg config.Config, opts mcp.Options) (*mcp.Server, func() error, error) {
	c, ok := cfg.(*config.GitHub)
	if !ok {
		return nil, nil, errWrongConfig
	}
	if c.Token == "" {
		opts.Logger.Warn("no GITHUB_TOKEN configured, requests are unauthenticated and heavily rate limited")
	}
	client, err := github.NewClient(github.Options{
		BaseURL:   c.APIBaseURL,
		Token:     c.Token,
		UserAgent: c.UserAgent,
		Timeout:   c.Timeout(),
	})
	if err != nil {
		return nil, nil, err
	}
	return mcp.NewGitHub(c, client, opts), noCleanup, nil
}

func buildOutlook(ctx context.Context, cfg config.Config, opts mcp.Options) (*mcp.Server, func() error, error) {
	c, ok := cfg.(*config.Outlook)
	if !ok {
		return nil, nil, errWrongConfig
	}
	authn := outlookAuthenticator(c, opts.Logger)
	ts, err := authn.TokenSource(ctx)
	if err != nil {
		return nil, nil, err
	}
	graph := outlook.NewGraphClient(oauth2.NewClient(ctx, ts), "")
	return mcp.NewOutlook(c, graph, opts), noCleanup, nil
}

func outlookAuthenticator(c *config.Outlook, logger *zap.Logger) *outlook.Authenticator {
	var cache outlook.TokenCache = outlook.FileCache{Path: c.TokenCachePath}
	if c.TokenCache == config.TokenCacheKeyring {
		cache = outlook.KeyringCache{Service: keyringService, User: c.TenantID + "/" + c.ClientID}
	}
	return outlook.NewAuthenticator(outlook.AuthConfig{
		TenantID: c.TenantID,
		ClientID: c.ClientID,
		Scopes:   c.ScopeList(),
	}, cache, logger)
}

func runOutlookLogin(cmd *cobra.Command, args []string) error {
	loader, err := config.NewLoader(envFile)
	if err != nil {
		return err
	}
	c, err := loader.Outlook()
	if err != nil {
		return err
	}
	logger, err := logging.NewTo(c.LogLevel, c.IsProduction(), "stderr")
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tok, err := outlookAuthenticator(c, logger).Login(ctx, os.Stderr)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return errors.New("sign-in cancelled")
		}
		return err
	}
	fmt.Fprintf(os.Stderr, "Signed in. Token cached, expires %s\n", tok.Expiry.Local().Format("2006-01-02 15:04"))
	return nil
}
