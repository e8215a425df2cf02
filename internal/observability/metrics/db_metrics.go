package metrics

import (
	"context"
	"database/sql"
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const storeQueryTimeout = 5 * time.Second

// storeCollector reports persisted mapping volume at scrape time.
type storeCollector struct {
	db       *sql.DB
	logger   *log.Logger
	mappings *prometheus.Desc
	years    *prometheus.Desc
}

func newStoreCollector(db *sql.DB, logger *log.Logger) *storeCollector {
	return &storeCollector{
		db:     db,
		logger: logger,
		mappings: prometheus.NewDesc(
			metricPrefix+"persisted_mappings",
			"Persisted product program mappings by current status",
			[]string{"status"}, nil,
		),
		years: prometheus.NewDesc(
			metricPrefix+"persisted_year_rows",
			"Persisted financial year rows by start year",
			[]string{"start_year"}, nil,
		),
	}
}

func (c *storeCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.mappings
	ch <- c.years
}

func (c *storeCollector) Collect(ch chan<- prometheus.Metric) {
	if c.db == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), storeQueryTimeout)
	defer cancel()
	c.collectGrouped(ctx, ch, c.mappings,
		"SELECT COALESCE(NULLIF(current_status, ''), 'none'), COUNT(*) FROM product_program_mappings GROUP BY 1")
	c.collectGrouped(ctx, ch, c.years,
		"SELECT start_year::text, COUNT(*) FROM product_program_years GROUP BY 1")
}

func (c *storeCollector) collectGrouped(ctx context.Context, ch chan<- prometheus.Metric, desc *prometheus.Desc, query string) {
	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		c.logf("metrics query failed: %v", err)
		return
	}
	defer rows.Close()
	for rows.Next() {
		var (
			label string
			count int64
		)
		if err := rows.Scan(&label, &count); err != nil {
			c.logf("metrics scan failed: %v", err)
			return
		}
		ch <- prometheus.MustNewConstMetric(desc, prometheus.GaugeValue, float64(count), label)
	}
	if err := rows.Err(); err != nil {
		c.logf("metrics rows failed: %v", err)
	}
}

func (c *storeCollector) logf(format string, args ...any) {
	if c.logger != nil {
		c.logger.Printf(format, args...)
	}
}
