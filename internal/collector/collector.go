// Package collector reads indicator values out of the business databases the
// indicators watch. Connectors exist for MySQL, Postgres and SQL Server; all
// of them build on database/sql and validate identifiers before they are
// interpolated into a query.
package collector

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Collector is one reachable metric source.
type Collector interface {
	TestConnection(ctx context.Context) error

	// LatestValue returns the newest value of q's value column.
	LatestValue(ctx context.Context, q MetricQuery) (float64, error)

	// AggregateOver folds the value column over rows newer than since.
	AggregateOver(ctx context.Context, q MetricQuery, agg string, since time.Time) (float64, error)

	Close() error
}

type ConnectionConfig struct {
	Type     string `yaml:"type"` // mysql | postgres | mssql
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"sslmode"`
}

// MetricQuery names where an indicator's value lives.
type MetricQuery struct {
	Table           string
	ValueColumn     string
	TimestampColumn string
}

func New(cfg ConnectionConfig) (Collector, error) {
	if strings.TrimSpace(cfg.Type) == "" {
		return nil, errors.New("connection type is required")
	}
	switch strings.ToLower(cfg.Type) {
	case "mysql":
		return newMySQLCollector(cfg)
	case "postgres", "postgresql":
		return newPostgresCollector(cfg)
	case "mssql", "sqlserver":
		return newMSSQLCollector(cfg)
	default:
		return nil, fmt.Errorf("unsupported database type %q", cfg.Type)
	}
}

type baseCollector struct {
	cfg ConnectionConfig
	db  *sql.DB
}

func (b *baseCollector) Close() error {
	if b.db == nil {
		return nil
	}
	return b.db.Close()
}

func openDatabase(driverName, dsn string) (*sql.DB, error) {
	return sql.Open(driverName, dsn)
}

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$]*$`)

func splitIdentifier(ident string) ([]string, error) {
	trimmed := strings.TrimSpace(ident)
	if trimmed == "" {
		return nil, errors.New("identifier is empty")
	}
	parts := strings.Split(trimmed, ".")
	for _, part := range parts {
		if part == "" {
			return nil, errors.New("identifier contains empty segment")
		}
		if !identPattern.MatchString(part) {
			return nil, fmt.Errorf("identifier segment %q is invalid", part)
		}
	}
	return parts, nil
}

func quoteQualified(ident string, maxSegments int, quote func(string) string) (string, error) {
	parts, err := splitIdentifier(ident)
	if err != nil {
		return "", err
	}
	if maxSegments > 0 && len(parts) > maxSegments {
		return "", fmt.Errorf("identifier %q has too many segments", ident)
	}
	quoted := make([]string, len(parts))
	for i, part := range parts {
		quoted[i] = quote(part)
	}
	return strings.Join(quoted, "."), nil
}

var aggregations = map[string]string{
	"avg":   "AVG",
	"sum":   "SUM",
	"min":   "MIN",
	"max":   "MAX",
	"count": "COUNT",
}

func aggregateFunc(agg string) (string, error) {
	fn, ok := aggregations[strings.ToLower(strings.TrimSpace(agg))]
	if !ok {
		return "", fmt.Errorf("unsupported aggregation %q", agg)
	}
	return fn, nil
}

// quoteMetricQuery validates and quotes all three identifiers of q with the
// dialect's quote function.
func quoteMetricQuery(q MetricQuery, tableSegments int, quote func(string) string) (table, value, ts string, err error) {
	table, err = quoteQualified(q.Table, tableSegments, quote)
	if err != nil {
		return "", "", "", fmt.Errorf("invalid table: %w", err)
	}
	value, err = quoteQualified(q.ValueColumn, 1, quote)
	if err != nil {
		return "", "", "", fmt.Errorf("invalid value column: %w", err)
	}
	ts, err = quoteQualified(q.TimestampColumn, 1, quote)
	if err != nil {
		return "", "", "", fmt.Errorf("invalid timestamp column: %w", err)
	}
	return table, value, ts, nil
}

func scanValue(row *sql.Row) (float64, error) {
	var v sql.NullFloat64
	if err := row.Scan(&v); err != nil {
		return 0, err
	}
	if !v.Valid {
		return 0, errors.New("value is null")
	}
	return v.Float64, nil
}
