package collector

import (
	"context"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

type MySQLCollector struct {
	baseCollector
}

func newMySQLCollector(cfg ConnectionConfig) (*MySQLCollector, error) {
	if cfg.Port == 0 {
		cfg.Port = 3306
	}
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true", cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database)
	sslMode := strings.ToLower(strings.TrimSpace(cfg.SSLMode))
	if sslMode == "disable" {
		dsn += "&tls=false"
	} else if sslMode != "" {
		dsn += "&tls=true"
	}
	db, err := openDatabase("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql connection: %w", err)
	}
	return &MySQLCollector{baseCollector{cfg: cfg, db: db}}, nil
}

func quoteMySQL(s string) string { return "`" + s + "`" }

func (c *MySQLCollector) TestConnection(ctx context.Context) error {
	if err := c.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping mysql: %w", err)
	}
	return nil
}

func (c *MySQLCollector) LatestValue(ctx context.Context, q MetricQuery) (float64, error) {
	table, value, ts, err := quoteMetricQuery(q, 1, quoteMySQL)
	if err != nil {
		return 0, fmt.Errorf("invalid mysql metric query: %w", err)
	}
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY %s DESC LIMIT 1", value, table, ts)
	v, err := scanValue(c.db.QueryRowContext(ctx, query))
	if err != nil {
		return 0, fmt.Errorf("query mysql latest value: %w", err)
	}
	return v, nil
}

func (c *MySQLCollector) AggregateOver(ctx context.Context, q MetricQuery, agg string, since time.Time) (float64, error) {
	table, value, ts, err := quoteMetricQuery(q, 1, quoteMySQL)
	if err != nil {
		return 0, fmt.Errorf("invalid mysql metric query: %w", err)
	}
	fn, err := aggregateFunc(agg)
	if err != nil {
		return 0, err
	}
	query := fmt.Sprintf("SELECT %s(%s) FROM %s WHERE %s >= ?", fn, value, table, ts)
	v, err := scanValue(c.db.QueryRowContext(ctx, query, since.UTC()))
	if err != nil {
		return 0, fmt.Errorf("query mysql aggregate: %w", err)
	}
	return v, nil
}
