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

	"github.com/ppiankov/toolgate/internal/audit"
	"github.com/ppiankov/toolgate/internal/auth"
	"github.com/ppiankov/toolgate/internal/config"
	"github.com/ppiankov/toolgate/internal/logging"
	"github.com/ppiankov/toolgate/internal/mcp"
	"github.com/ppiankov/toolgate/internal/server"
)

// serveFlags are shared by the three service commands.
type serveFlags struct {
	port  int
	stdio bool
}

func (f *serveFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.port, "port", 0, "HTTP listen port (overrides PORT)")
	cmd.Flags().BoolVar(&f.stdio, "stdio", false, "Serve MCP over stdin/stdout instead of HTTP, without token auth")
}

// buildFunc constructs the tool server for a loaded config. The returned
// cleanup runs after the server stops.
type buildFunc func(ctx context.Context, cfg config.Config, opts mcp.Options) (*mcp.Server, func() error, error)

// runService loads the config for svc and serves it until SIGINT or
// SIGTERM.
func runService(svc config.Service, flags *serveFlags, build buildFunc) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loader, err := config.NewLoader(envFile)
	if err != nil {
		return err
	}
	cfg, err := loader.Load(svc)
	if err != nil {
		return err
	}
	common := cfg.Base()

	output := "stdout"
	if flags.stdio {
		output = "stderr"
	}
	base, err := logging.NewTo(common.LogLevel, common.IsProduction(), output)
	if err != nil {
		return err
	}
	defer func() { _ = base.Sync() }()
	logger := logging.ForService(base, string(svc))

	recorder, closeAudit, err := openAudit(common.AuditLog)
	if err != nil {
		return err
	}
	defer closeAudit()

	app, cleanup, err := build(ctx, cfg, mcp.Options{
		Version: version,
		Audit:   recorder,
		Logger:  logger,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := cleanup(); err != nil {
			logger.Warn("backend close failed", zap.Error(err))
		}
	}()

	if flags.stdio {
		logger.Info("serving MCP on stdio")
		return app.Run(ctx)
	}

	secrets, closeSecrets, err := secretReader(ctx, common)
	if err != nil {
		return err
	}
	defer closeSecrets()

	reg, err := auth.LoadRegistry(ctx, common.TokenSource(), secrets, logger)
	if err != nil {
		return err
	}
	store := auth.NewStore(reg)

	rebuild := func(ctx context.Context) (*auth.Registry, error) {
		if err := loader.Reload(); err != nil {
			return nil, err
		}
		c, err := loader.Common()
		if err != nil {
			return nil, err
		}
		return auth.LoadRegistry(ctx, c.TokenSource(), secrets, logger)
	}
	reloader, err := server.NewReloader(store, rebuild, loader.EnvFile(), logger)
	if err != nil {
		logger.Warn("token hot-reload disabled", zap.Error(err))
	} else {
		go func() { _ = reloader.Run(ctx) }()
	}

	port := common.Port
	if flags.port > 0 {
		port = flags.port
	}
	srv := server.New(server.Config{
		Addr:                 fmt.Sprintf(":%d", port),
		MetricsEnabled:       common.MetricsEnabled,
		AllowQueryParamToken: common.AllowQueryParamToken,
	}, app, store, logger)

	logger.Info("service starting",
		zap.Int("port", port),
		zap.String("env", common.Env),
		zap.String("token_source", common.TokenSource().Describe()),
		zap.Bool("audit", common.AuditLog != ""))
	return srv.Start(ctx)
}

func openAudit(path string) (audit.Recorder, func(), error) {
	if path == "" {
		return audit.Discard{}, func() {}, nil
	}
	log, err := audit.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open audit log: %w", err)
	}
	return log, func() { _ = log.Close() }, nil
}

// secretReader connects to Secret Manager only when a secret name is the
// configured token source.
func secretReader(ctx context.Context, common config.Common) (auth.SecretReader, func(), error) {
	src := common.TokenSource()
	if src.JSON != "" || src.Payload != "" || src.SecretName == "" {
		return nil, func() {}, nil
	}
	sm, err := auth.NewSecretManager(ctx)
	if err != nil {
		return nil, nil, err
	}
	return sm, func() { _ = sm.Close() }, nil
}

// noCleanup is the cleanup for backends holding no resources.
func noCleanup() error { return nil }

var errWrongConfig = errors.New("config does not match service")
