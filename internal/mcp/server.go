package mcp

import (
	"context"
	"errors"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/ppiankov/toolgate/internal/audit"
	"github.com/ppiankov/toolgate/internal/auth"
	"github.com/ppiankov/toolgate/internal/config"
	"github.com/ppiankov/toolgate/internal/guardrail"
	"github.com/ppiankov/toolgate/internal/metrics"
)

// Options holds what every service shares.
type Options struct {
	Version string
	// Audit receives one entry per tool call. Defaults to audit.Discard.
	Audit  audit.Recorder
	Logger *zap.Logger
	// Now is the clock used for calendar windows. Defaults to time.Now.
	Now func() time.Time
}

// Server is the application context for one service: the MCP SDK server,
// its backend and limits, and the audit and metrics sinks every tool
// handler reports to.
type Server struct {
	mcpServer *mcpsdk.Server
	service   config.Service
	audit     audit.Recorder
	logger    *zap.Logger
	now       func() time.Time

	bigquery *bigqueryTools
	github   *githubTools
	outlook  *outlookTools
}

func newServer(svc config.Service, opts Options) *Server {
	if opts.Audit == nil {
		opts.Audit = audit.Discard{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	version := opts.Version
	if version == "" {
		version = "dev"
	}

	s := &Server{
		service: svc,
		audit:   opts.Audit,
		logger:  opts.Logger,
		now:     opts.Now,
	}
	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    svc.DisplayName(),
			Version: version,
		},
		nil,
	)
	return s
}

// MCP returns the SDK server for mounting on a transport.
func (s *Server) MCP() *mcpsdk.Server {
	return s.mcpServer
}

// Service names the backend this server fronts.
func (s *Server) Service() config.Service {
	return s.service
}

// Run serves MCP on stdio. Blocks until ctx is cancelled or the client
// disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

// call tracks one tool invocation from guardrails to response.
type call struct {
	tool   string
	target string
	start  time.Time
}

func (s *Server) begin(tool string) *call {
	return &call{tool: tool, start: time.Now()}
}

// finish records the outcome of c in metrics, the audit log and the
// service log, and returns err unchanged.
func (s *Server) finish(ctx context.Context, c *call, err error) error {
	elapsed := time.Since(c.start)
	entry := audit.Entry{
		TokenLabel: auth.LabelFromContext(ctx),
		Service:    string(s.service),
		Tool:       c.tool,
		Target:     c.target,
		Decision:   audit.DecisionAllow,
		DurationMS: elapsed.Milliseconds(),
	}
	outcome := metrics.OutcomeOK

	fields := []zap.Field{
		zap.String("tool", c.tool),
		zap.String("token_label", entry.TokenLabel),
		zap.String("target", c.target),
		zap.Duration("duration", elapsed),
	}

	var ge *guardrail.Error
	switch {
	case err == nil:
		s.logger.Info("tool call", fields...)
	case errors.As(err, &ge):
		outcome = metrics.OutcomeRejected
		entry.Decision = audit.DecisionReject
		entry.Kind = string(ge.Kind)
		entry.Reason = ge.Reason
		metrics.RecordRejection(string(s.service), c.tool, string(ge.Kind))
		s.logger.Warn("tool call rejected", append(fields, zap.String("kind", string(ge.Kind)), zap.String("reason", ge.Reason))...)
	default:
		outcome = metrics.OutcomeError
		entry.Decision = audit.DecisionError
		entry.Reason = err.Error()
		s.logger.Error("tool call failed", append(fields, zap.Error(err))...)
	}

	metrics.RecordToolCall(string(s.service), c.tool, outcome, elapsed)
	if aerr := s.audit.Record(entry); aerr != nil {
		s.logger.Error("audit write failed", zap.Error(aerr))
	}
	return err
}
