package collector

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	_ "github.com/microsoft/go-mssqldb"
)

type MSSQLCollector struct {
	baseCollector
}

func newMSSQLCollector(cfg ConnectionConfig) (*MSSQLCollector, error) {
	if cfg.Port == 0 {
		cfg.Port = 1433
	}
	encrypt := "true"
	if strings.EqualFold(strings.TrimSpace(cfg.SSLMode), "disable") {
		encrypt = "disable"
	}
	user := url.QueryEscape(cfg.User)
	pass := url.QueryEscape(cfg.Password)
	dsn := fmt.Sprintf("sqlserver://%s:%s@%s:%d?database=%s&encrypt=%s", user, pass, cfg.Host, cfg.Port, cfg.Database, encrypt)
	db, err := openDatabase("sqlserver", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mssql connection: %w", err)
	}
	return &MSSQLCollector{baseCollector{cfg: cfg, db: db}}, nil
}

func quoteMSSQL(s string) string { return "[" + s + "]" }

func (c *MSSQLCollector) TestConnection(ctx context.Context) error {
	if err := c.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping mssql: %w", err)
	}
	return nil
}

func (c *MSSQLCollector) LatestValue(ctx context.Context, q MetricQuery) (float64, error) {
	table, value, ts, err := quoteMetricQuery(q, 2, quoteMSSQL)
	if err != nil {
		return 0, fmt.Errorf("invalid mssql metric query: %w", err)
	}
	query := fmt.Sprintf("SELECT TOP 1 %s FROM %s ORDER BY %s DESC", value, table, ts)
	v, err := scanValue(c.db.QueryRowContext(ctx, query))
	if err != nil {
		return 0, fmt.Errorf("query mssql latest value: %w", err)
	}
	return v, nil
}

func (c *MSSQLCollector) AggregateOver(ctx context.Context, q MetricQuery, agg string, since time.Time) (float64, error) {
	table, value, ts, err := quoteMetricQuery(q, 2, quoteMSSQL)
	if err != nil {
		return 0, fmt.Errorf("invalid mssql metric query: %w", err)
	}
	fn, err := aggregateFunc(agg)
	if err != nil {
		return 0, err
	}
	query := fmt.Sprintf("SELECT %s(%s) FROM %s WHERE %s >= @p1", fn, value, table, ts)
	v, err := scanValue(c.db.QueryRowContext(ctx, query, since.UTC()))
	if err != nil {
		return 0, fmt.Errorf("query mssql aggregate: %w", err)
	}
	return v, nil
}
