package mcp

import (
	"context"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/ppiankov/toolgate/internal/audit"
	"github.com/ppiankov/toolgate/internal/bigquery"
	"github.com/ppiankov/toolgate/internal/config"
	"github.com/ppiankov/toolgate/internal/guardrail"
	"github.com/ppiankov/toolgate/internal/metrics"
)

// SelectInput defines parameters for the bigquery_select tool.
type SelectInput struct {
	SQL     string `json:"sql" jsonschema:"SQL query string. Only SELECT queries are allowed."`
	MaxRows *int   `json:"max_rows,omitempty" jsonschema:"maximum rows returned to the client (server-enforced cap)"`
}

// SelectOutput is the verification-friendly query envelope.
type SelectOutput struct {
	OK     bool                  `json:"ok"`
	Query  string                `json:"query"`
	DryRun bigquery.DryRunResult `json:"dry_run"`
	Job    SelectJob             `json:"job"`
	Result SelectResult          `json:"result"`
}

// SelectJob describes the executed job.
type SelectJob struct {
	JobID               string `json:"job_id"`
	Location            string `json:"location"`
	StatementType       string `json:"statement_type"`
	TotalBytesProcessed *int64 `json:"total_bytes_processed"`
	TotalBytesBilled    *int64 `json:"total_bytes_billed"`
}

// SelectResult carries the returned rows.
type SelectResult struct {
	MaxRows      int              `json:"max_rows"`
	ReturnedRows int              `json:"returned_rows"`
	Schema       []bigquery.Field `json:"schema"`
	Rows         []map[string]any `json:"rows"`
}

type bigqueryTools struct {
	backend bigquery.Backend
	cfg     *config.BigQuery
}

// NewBigQuery returns a server exposing bigquery_select.
func NewBigQuery(cfg *config.BigQuery, backend bigquery.Backend, opts Options) *Server {
	s := newServer(config.BigQueryService, opts)
	s.bigquery = &bigqueryTools{backend: backend, cfg: cfg}
	if !cfg.CostCapEnabled() {
		s.logger.Warn("BQ_MAX_BYTES_BILLED is not positive, cost cap disabled",
			zap.Int64("max_bytes_billed", cfg.MaxBytesBilled))
	}

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "bigquery_select",
		Description: "Run a READ-ONLY BigQuery query (SELECT only). The query is dry-run first and refused if it would scan more than the configured byte cap.",
	}, s.handleSelect)
	return s
}

func (s *Server) handleSelect(ctx context.Context, req *mcpsdk.CallToolRequest, input SelectInput) (*mcpsdk.CallToolResult, SelectOutput, error) {
	c := s.begin("bigquery_select")
	out, err := s.runSelect(ctx, c, input)
	if err := s.finish(ctx, c, err); err != nil {
		return nil, SelectOutput{}, err
	}
	return nil, out, nil
}

// runSelect applies the guardrails in order: normalize, single
// statement, dry run, SELECT only, cost cap, row clamp. Execution never
// starts once any of them has failed.
func (s *Server) runSelect(ctx context.Context, c *call, input SelectInput) (SelectOutput, error) {
	bq := s.bigquery

	cleaned, err := guardrail.NormalizeSQL(input.SQL)
	if err != nil {
		return SelectOutput{}, err
	}
	c.target = audit.Digest(cleaned)
	if err := guardrail.RejectMultipleStatements(cleaned); err != nil {
		return SelectOutput{}, err
	}

	dry, err := bq.backend.DryRun(ctx, cleaned)
	if err != nil {
		return SelectOutput{}, fmt.Errorf("bigquery dry run: %w", err)
	}
	if dry.TotalBytesProcessed != nil {
		metrics.RecordBytesEstimated(*dry.TotalBytesProcessed)
	}
	estimate := guardrail.Estimate{StatementType: dry.StatementType, Bytes: dry.TotalBytesProcessed}
	if err := guardrail.CheckEstimate(estimate, bq.cfg.MaxBytesBilled); err != nil {
		return SelectOutput{}, err
	}

	rows := guardrail.Clamp(input.MaxRows, bq.cfg.DefaultLimit, 1, bq.cfg.MaxReturnRows)

	res, err := bq.backend.Execute(ctx, cleaned, rows, bq.cfg.MaxBytesBilled)
	if err != nil {
		return SelectOutput{}, fmt.Errorf("bigquery execute: %w", err)
	}
	if len(res.Rows) > rows {
		res.Rows = res.Rows[:rows]
	}
	if res.Rows == nil {
		res.Rows = []map[string]any{}
	}

	return SelectOutput{
		OK:     true,
		Query:  cleaned,
		DryRun: *dry,
		Job: SelectJob{
			JobID:               res.JobID,
			Location:            res.Location,
			StatementType:       res.StatementType,
			TotalBytesProcessed: res.TotalBytesProcessed,
			TotalBytesBilled:    res.TotalBytesBilled,
		},
		Result: SelectResult{
			MaxRows:      rows,
			ReturnedRows: len(res.Rows),
			Schema:       res.Schema,
			Rows:         res.Rows,
		},
	}, nil
}
