// Package bigquery runs guarded read-only queries against Google BigQuery.
package bigquery

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"
)

// DryRunResult is what a dry run reveals about a query before it runs.
type DryRunResult struct {
	StatementType       string `json:"statement_type"`
	TotalBytesProcessed *int64 `json:"total_bytes_processed"`
}

// Field describes one result column.
type Field struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Mode string `json:"mode"`
}

// QueryResult is a finished query with at most the requested rows.
type QueryResult struct {
	JobID               string           `json:"job_id"`
	Location            string           `json:"location"`
	StatementType       string           `json:"statement_type"`
	TotalBytesProcessed *int64           `json:"total_bytes_processed"`
	TotalBytesBilled    *int64           `json:"total_bytes_billed"`
	Schema              []Field          `json:"schema"`
	Rows                []map[string]any `json:"rows"`
}

// Backend is the query surface the tool handlers depend on.
type Backend interface {
	DryRun(ctx context.Context, sql string) (*DryRunResult, error)
	Execute(ctx context.Context, sql string, maxRows int, maxBytesBilled int64) (*QueryResult, error)
}

// Client implements Backend with the BigQuery SDK.
type Client struct {
	bq       *bigquery.Client
	location string
}

// NewClient connects to BigQuery for projectID using application
// default credentials. location may be empty to let BigQuery choose.
func NewClient(ctx context.Context, projectID, location string) (*Client, error) {
	bq, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("bigquery client: %w", err)
	}
	if location != "" {
		bq.Location = location
	}
	return &Client{bq: bq, location: location}, nil
}

// Close releases the client.
func (c *Client) Close() error {
	return c.bq.Close()
}

// DryRun validates sql and estimates its cost without running it. The
// query cache is disabled so the estimate reflects a real scan.
func (c *Client) DryRun(ctx context.Context, sql string) (*DryRunResult, error) {
	q := c.bq.Query(sql)
	q.DryRun = true
	q.DisableQueryCache = true
	q.Location = c.location

	job, err := q.Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("dry run: %w", err)
	}
	status := job.LastStatus()
	if status == nil {
		return &DryRunResult{}, nil
	}
	if err := status.Err(); err != nil {
		return nil, fmt.Errorf("dry run: %w", err)
	}

	res := &DryRunResult{}
	if stats := status.Statistics; stats != nil {
		res.TotalBytesProcessed = int64Ptr(stats.TotalBytesProcessed)
		if qs, ok := stats.Details.(*bigquery.QueryStatistics); ok {
			res.StatementType = qs.StatementType
		}
	}
	return res, nil
}

// Execute runs sql with a billing cap and reads at most maxRows rows.
// maxBytesBilled <= 0 leaves the project default in place.
func (c *Client) Execute(ctx context.Context, sql string, maxRows int, maxBytesBilled int64) (*QueryResult, error) {
	q := c.bq.Query(sql)
	q.Location = c.location
	if maxBytesBilled > 0 {
		q.MaxBytesBilled = maxBytesBilled
	}

	job, err := q.Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("start query: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return nil, fmt.Errorf("wait for job %s: %w", job.ID(), err)
	}
	if err := status.Err(); err != nil {
		return nil, fmt.Errorf("job %s: %w", job.ID(), err)
	}

	it, err := job.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("read job %s: %w", job.ID(), err)
	}
	it.PageInfo().MaxSize = maxRows

	rows := make([]map[string]any, 0, min(maxRows, 1024))
	for len(rows) < maxRows {
		var row map[string]bigquery.Value
		err := it.Next(&row)
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read rows: %w", err)
		}
		rows = append(rows, JSONRow(row, it.Schema))
	}

	res := &QueryResult{
		JobID:    job.ID(),
		Location: job.Location(),
		Schema:   SchemaFields(it.Schema),
		Rows:     rows,
	}
	if stats := status.Statistics; stats != nil {
		res.TotalBytesProcessed = int64Ptr(stats.TotalBytesProcessed)
		if qs, ok := stats.Details.(*bigquery.QueryStatistics); ok {
			res.StatementType = qs.StatementType
			res.TotalBytesBilled = int64Ptr(qs.TotalBytesBilled)
		}
	}
	return res, nil
}

func int64Ptr(v int64) *int64 {
	return &v
}
