package scheduler

import (
	"context"
	"time"

	"pulsewatch-backend/internal/alerts"
)

// Indicator is a monitored metric with a schedule and a threshold rule.
// Run-state (the running flag, start time and execution context) lives in the
// LockTable while the process is up; the persisted copy exists only so a
// restart can detect and clear executions abandoned by a crash.
type Indicator struct {
	ID                string
	Name              string
	SourceRef         string
	Source            SourceSpec
	Aggregation       string // latest | avg | sum | min | max | count
	FrequencyMinutes  int
	DataWindowMinutes int
	Threshold         ThresholdRule
	CooldownMinutes   int
	Enabled           bool
	LastRun           time.Time
	LastRunResult     string
}

type SourceSpec struct {
	Table           string
	ValueColumn     string
	TimestampColumn string
}

type ThresholdRule struct {
	Field string
	Op    string // > | >= | < | <= | == | != | between
	Value float64
	Min   *float64
	Max   *float64
}

// ExecutionRecord is one historical entry per completed run. Immutable once
// written.
type ExecutionRecord struct {
	IndicatorID string
	StartedAt   time.Time
	FinishedAt  time.Time
	Value       float64
	Success     bool
	Error       string
	Duration    time.Duration
}

// Store is the persistence boundary consumed by the monitoring loop and the
// executor. All methods must be safe for concurrent use by executor tasks.
type Store interface {
	LoadActiveIndicators(ctx context.Context) ([]Indicator, error)
	SaveExecutionRecord(ctx context.Context, rec ExecutionRecord) error
	UpdateIndicatorRunState(ctx context.Context, id string, running bool, startedAt time.Time, execContext string) error
	UpdateIndicatorLastRun(ctx context.Context, id string, lastRun time.Time, result string) error
	// LastAlertTime returns the trigger time of the indicator's most recent
	// alert, or the zero time when it has never alerted.
	LastAlertTime(ctx context.Context, indicatorID string) (time.Time, error)
	CreateAlert(ctx context.Context, alert alerts.Alert) error
}

// Evaluator measures an indicator over its data window and decides whether
// the value breaches the threshold. Any error counts as an execution failure,
// never as a breach.
type Evaluator interface {
	Evaluate(ctx context.Context, ind Indicator) (value float64, breached bool, err error)
}
