package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"pulsewatch-backend/internal/alerts"
	"pulsewatch-backend/internal/scheduler"
)

// Repository implements the scheduler and alert store boundaries over
// Postgres. All methods are safe for concurrent use; pgxpool serializes
// nothing, the queries themselves carry the discipline (conditional updates
// for alert transitions).
type Repository struct {
	Store *Store
}

func NewRepository(store *Store) *Repository {
	return &Repository{Store: store}
}

const indicatorColumns = `
	id, name, source_ref, metric_table, value_column, timestamp_column,
	aggregation, frequency_minutes, data_window_minutes,
	threshold_field, threshold_op, threshold_value, threshold_min, threshold_max,
	cooldown_minutes, enabled, last_run_at, last_run_result`

func (r *Repository) LoadActiveIndicators(ctx context.Context) ([]scheduler.Indicator, error) {
	rows, err := r.Store.Pool.Query(ctx, `
		SELECT`+indicatorColumns+`
		FROM indicators WHERE enabled = true ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	results := []scheduler.Indicator{}
	for rows.Next() {
		ind, err := scanIndicator(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, ind)
	}
	return results, rows.Err()
}

func scanIndicator(rows pgx.Rows) (scheduler.Indicator, error) {
	var ind scheduler.Indicator
	var lastRun *time.Time
	var lastResult *string
	err := rows.Scan(
		&ind.ID, &ind.Name, &ind.SourceRef,
		&ind.Source.Table, &ind.Source.ValueColumn, &ind.Source.TimestampColumn,
		&ind.Aggregation, &ind.FrequencyMinutes, &ind.DataWindowMinutes,
		&ind.Threshold.Field, &ind.Threshold.Op, &ind.Threshold.Value,
		&ind.Threshold.Min, &ind.Threshold.Max,
		&ind.CooldownMinutes, &ind.Enabled, &lastRun, &lastResult)
	if err != nil {
		return scheduler.Indicator{}, err
	}
	if lastRun != nil {
		ind.LastRun = lastRun.UTC()
	}
	if lastResult != nil {
		ind.LastRunResult = *lastResult
	}
	return ind, nil
}

// GetIndicator loads one indicator regardless of its enabled flag. Returns
// ErrNotFound for an unknown id.
func (r *Repository) GetIndicator(ctx context.Context, id string) (scheduler.Indicator, error) {
	rows, err := r.Store.Pool.Query(ctx, `
		SELECT`+indicatorColumns+`
		FROM indicators WHERE id = $1`, id)
	if err != nil {
		return scheduler.Indicator{}, err
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return scheduler.Indicator{}, err
		}
		return scheduler.Indicator{}, ErrNotFound
	}
	return scanIndicator(rows)
}

func (r *Repository) SaveExecutionRecord(ctx context.Context, rec scheduler.ExecutionRecord) error {
	var errMsg *string
	if rec.Error != "" {
		errMsg = &rec.Error
	}
	_, err := r.Store.Pool.Exec(ctx, `
		INSERT INTO execution_records (indicator_id, started_at, finished_at, value, success, error, duration_ms)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		rec.IndicatorID, rec.StartedAt, rec.FinishedAt, rec.Value, rec.Success, errMsg, rec.Duration.Milliseconds())
	return err
}

// UpdateIndicatorRunState writes the running flag and the start time and
// execution context together, so the persisted trio is never partially set.
func (r *Repository) UpdateIndicatorRunState(ctx context.Context, id string, running bool, startedAt time.Time, execContext string) error {
	var started *time.Time
	var execCtx *string
	if running {
		started = &startedAt
		execCtx = &execContext
	}
	_, err := r.Store.Pool.Exec(ctx, `
		UPDATE indicators SET is_running=$1, execution_started_at=$2, execution_context=$3, updated_at=now()
		WHERE id=$4`, running, started, execCtx, id)
	return err
}

// ResetRunState clears run-state left behind by a crashed process. Called
// once at startup; returns how many indicators were recovered.
func (r *Repository) ResetRunState(ctx context.Context) (int64, error) {
	tag, err := r.Store.Pool.Exec(ctx, `
		UPDATE indicators SET is_running=false, execution_started_at=NULL, execution_context=NULL, updated_at=now()
		WHERE is_running = true`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *Repository) UpdateIndicatorLastRun(ctx context.Context, id string, lastRun time.Time, result string) error {
	_, err := r.Store.Pool.Exec(ctx, `
		UPDATE indicators SET last_run_at=$1, last_run_result=$2, updated_at=now() WHERE id=$3`,
		lastRun, result, id)
	return err
}

func (r *Repository) LastAlertTime(ctx context.Context, indicatorID string) (time.Time, error) {
	row := r.Store.Pool.QueryRow(ctx, `
		SELECT triggered_at FROM alerts WHERE indicator_id=$1 ORDER BY triggered_at DESC LIMIT 1`, indicatorID)
	var ts time.Time
	if err := row.Scan(&ts); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, nil
		}
		return time.Time{}, err
	}
	return ts.UTC(), nil
}

func (r *Repository) CreateAlert(ctx context.Context, alert alerts.Alert) error {
	_, err := r.Store.Pool.Exec(ctx, `
		INSERT INTO alerts (id, indicator_id, triggered_at, current_value, historical_value, deviation,
			state, escalate_after, auto_resolve_after)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		alert.ID, alert.IndicatorID, alert.TriggeredAt, alert.CurrentValue, alert.HistoricalValue,
		alert.Deviation, string(alert.State), alert.EscalateAfter, alert.AutoResolveAfter)
	return err
}

func (r *Repository) LoadOpenAlerts(ctx context.Context, limit int) ([]alerts.Alert, error) {
	rows, err := r.Store.Pool.Query(ctx, `
		SELECT id, indicator_id, triggered_at, current_value, historical_value, deviation,
			state, escalate_after, auto_resolve_after, escalated_at, resolved_at, resolved_by
		FROM alerts WHERE state IN ('open','escalated')
		ORDER BY triggered_at ASC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	results := []alerts.Alert{}
	for rows.Next() {
		var a alerts.Alert
		var state string
		var resolvedBy *string
		if err := rows.Scan(&a.ID, &a.IndicatorID, &a.TriggeredAt, &a.CurrentValue, &a.HistoricalValue,
			&a.Deviation, &state, &a.EscalateAfter, &a.AutoResolveAfter,
			&a.EscalatedAt, &a.ResolvedAt, &resolvedBy); err != nil {
			return nil, err
		}
		a.State = alerts.State(state)
		if resolvedBy != nil {
			a.ResolvedBy = *resolvedBy
		}
		results = append(results, a)
	}
	return results, rows.Err()
}

// TransitionAlert applies a state transition only when the alert is still in
// the expected state. The conditional WHERE makes concurrent or repeated
// scans idempotent.
func (r *Repository) TransitionAlert(ctx context.Context, id string, from, to alerts.State, at time.Time, by string) (bool, error) {
	var tagQuery string
	var args []any
	switch to {
	case alerts.StateEscalated:
		tagQuery = `UPDATE alerts SET state=$1, escalated_at=$2 WHERE id=$3 AND state=$4`
		args = []any{string(to), at, id, string(from)}
	case alerts.StateResolved, alerts.StateAutoResolved:
		tagQuery = `UPDATE alerts SET state=$1, resolved_at=$2, resolved_by=$3 WHERE id=$4 AND state=$5`
		args = []any{string(to), at, by, id, string(from)}
	default:
		return false, errors.New("unsupported alert transition target")
	}
	tag, err := r.Store.Pool.Exec(ctx, tagQuery, args...)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
