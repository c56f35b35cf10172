package collector

import (
	"context"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

type PostgresCollector struct {
	baseCollector
}

func newPostgresCollector(cfg ConnectionConfig) (*PostgresCollector, error) {
	if cfg.Port == 0 {
		cfg.Port = 5432
	}
	sslMode := strings.ToLower(strings.TrimSpace(cfg.SSLMode))
	if sslMode == "" {
		sslMode = "disable"
	}
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s", cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, sslMode)
	db, err := openDatabase("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}
	return &PostgresCollector{baseCollector{cfg: cfg, db: db}}, nil
}

func quotePostgres(s string) string { return `"` + s + `"` }

func (c *PostgresCollector) TestConnection(ctx context.Context) error {
	if err := c.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

func (c *PostgresCollector) LatestValue(ctx context.Context, q MetricQuery) (float64, error) {
	table, value, ts, err := quoteMetricQuery(q, 2, quotePostgres)
	if err != nil {
		return 0, fmt.Errorf("invalid postgres metric query: %w", err)
	}
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY %s DESC LIMIT 1", value, table, ts)
	v, err := scanValue(c.db.QueryRowContext(ctx, query))
	if err != nil {
		return 0, fmt.Errorf("query postgres latest value: %w", err)
	}
	return v, nil
}

func (c *PostgresCollector) AggregateOver(ctx context.Context, q MetricQuery, agg string, since time.Time) (float64, error) {
	table, value, ts, err := quoteMetricQuery(q, 2, quotePostgres)
	if err != nil {
		return 0, fmt.Errorf("invalid postgres metric query: %w", err)
	}
	fn, err := aggregateFunc(agg)
	if err != nil {
		return 0, err
	}
	query := fmt.Sprintf("SELECT %s(%s) FROM %s WHERE %s >= $1", fn, value, table, ts)
	v, err := scanValue(c.db.QueryRowContext(ctx, query, since.UTC()))
	if err != nil {
		return 0, fmt.Errorf("query postgres aggregate: %w", err)
	}
	return v, nil
}
