package config

// BigQuery configures the bigquery service.
type BigQuery struct {
	Common `yaml:",inline"`

	ProjectID      string `yaml:"bq_project_id"`
	Location       string `yaml:"bq_location,omitempty"`
	MaxBytesBilled int64  `yaml:"bq_max_bytes_billed"`
	DefaultLimit   int    `yaml:"bq_default_limit"`
	MaxReturnRows  int    `yaml:"bq_max_return_rows"`
}

// BigQuery loads and validates the bigquery service config.
func (l *Loader) BigQuery() (*BigQuery, error) {
	r := l.reader()
	c := &BigQuery{
		Common:         r.common(),
		Location:       r.raw("BQ_LOCATION"),
		MaxBytesBilled: r.int64("BQ_MAX_BYTES_BILLED", 5_000_000_000),
		DefaultLimit:   r.int("BQ_DEFAULT_LIMIT", 500),
		MaxReturnRows:  r.int("BQ_MAX_RETURN_ROWS", 1000),
	}
	c.ProjectID = r.str("BQ_PROJECT_ID", c.GCPProjectID)
	if err := r.err(); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *BigQuery) Base() Common { return c.Common }

func (c *BigQuery) Validate() error {
	v := &validation{}
	c.Common.validate(v)
	v.check(c.ProjectID != "", "BQ_PROJECT_ID or GCP_PROJECT_ID is required")
	v.positive("BQ_DEFAULT_LIMIT", int64(c.DefaultLimit))
	v.positive("BQ_MAX_RETURN_ROWS", int64(c.MaxReturnRows))
	v.check(c.DefaultLimit <= c.MaxReturnRows,
		"BQ_DEFAULT_LIMIT (%d) must not exceed BQ_MAX_RETURN_ROWS (%d)", c.DefaultLimit, c.MaxReturnRows)
	return v.err()
}

// CostCapEnabled reports whether BQ_MAX_BYTES_BILLED is positive. A zero
// or negative cap turns off the dry-run cost gate and the billing limit.
func (c *BigQuery) CostCapEnabled() bool {
	return c.MaxBytesBilled > 0
}

func (c *BigQuery) Redacted() Config {
	out := *c
	out.Common = c.Common.redacted()
	return &out
}
