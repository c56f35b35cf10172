package scheduler

import (
	"context"
	"log/slog"
	"time"

	"pulsewatch-backend/internal/alerts"
)

// Outcome classifies one execution attempt. Skipped is expected contention,
// not a failure: the indicator simply runs at its next due time.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeFailed    Outcome = "failed"
)

// Executor runs a single indicator end to end: lock, evaluate under timeout,
// persist the outcome, raise an alert on breach outside cooldown, release.
type Executor struct {
	store     Store
	eval      Evaluator
	locks     *LockTable
	notifier  alerts.Notifier
	deadlines func() alerts.Deadlines
	timeout   time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

func NewExecutor(store Store, eval Evaluator, locks *LockTable, notifier alerts.Notifier, deadlines func() alerts.Deadlines, timeout time.Duration, logger *slog.Logger) *Executor {
	return &Executor{
		store:     store,
		eval:      eval,
		locks:     locks,
		notifier:  notifier,
		deadlines: deadlines,
		timeout:   timeout,
		logger:    logger,
		now:       time.Now,
	}
}

func (e *Executor) Execute(ctx context.Context, ind Indicator) Outcome {
	tok, ok := e.locks.TryAcquire(ind.ID)
	if !ok {
		e.logger.Debug("execution lock contended, skipping", slog.String("indicator", ind.ID))
		return OutcomeSkipped
	}
	defer e.locks.Release(tok)

	started := tok.StartedAt
	if err := e.store.UpdateIndicatorRunState(ctx, ind.ID, true, started, tok.Context); err != nil {
		e.logger.Error("failed to mark indicator running",
			slog.String("indicator", ind.ID), slog.String("error", err.Error()))
		return OutcomeFailed
	}
	defer func() {
		// The clear must survive cancellation of the tick context.
		clearCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := e.store.UpdateIndicatorRunState(clearCtx, ind.ID, false, time.Time{}, ""); err != nil {
			e.logger.Error("failed to clear indicator run state",
				slog.String("indicator", ind.ID), slog.String("error", err.Error()))
		}
	}()

	evalCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	value, breached, evalErr := e.eval.Evaluate(evalCtx, ind)
	finished := e.now().UTC()

	rec := ExecutionRecord{
		IndicatorID: ind.ID,
		StartedAt:   started,
		FinishedAt:  finished,
		Value:       value,
		Success:     evalErr == nil,
		Duration:    finished.Sub(started),
	}
	if evalErr != nil {
		rec.Error = evalErr.Error()
	}
	if err := e.store.SaveExecutionRecord(ctx, rec); err != nil {
		e.logger.Error("failed to save execution record",
			slog.String("indicator", ind.ID), slog.String("error", err.Error()))
	}
	result := "ok"
	if evalErr != nil {
		result = "failed"
	} else if breached {
		result = "breach"
	}
	if err := e.store.UpdateIndicatorLastRun(ctx, ind.ID, started, result); err != nil {
		e.logger.Error("failed to update last run",
			slog.String("indicator", ind.ID), slog.String("error", err.Error()))
	}
	if evalErr != nil {
		e.logger.Error("evaluator failed",
			slog.String("indicator", ind.ID), slog.String("error", evalErr.Error()))
		return OutcomeFailed
	}
	if breached {
		e.raiseAlert(ctx, ind, value)
	}
	return OutcomeCompleted
}

func (e *Executor) raiseAlert(ctx context.Context, ind Indicator, value float64) {
	now := e.now().UTC()
	if ind.CooldownMinutes > 0 {
		last, err := e.store.LastAlertTime(ctx, ind.ID)
		if err != nil {
			e.logger.Error("failed to load last alert time",
				slog.String("indicator", ind.ID), slog.String("error", err.Error()))
			return
		}
		if WithinCooldown(last, ind.CooldownMinutes, now) {
			e.logger.Debug("breach suppressed by cooldown",
				slog.String("indicator", ind.ID), slog.Time("lastAlert", last))
			return
		}
	}
	alert := alerts.New(ind.ID, value, ind.Threshold.Value, now, e.deadlines())
	if err := e.store.CreateAlert(ctx, alert); err != nil {
		e.logger.Error("failed to create alert",
			slog.String("indicator", ind.ID), slog.String("error", err.Error()))
		return
	}
	e.logger.Warn("threshold breached, alert raised",
		slog.String("indicator", ind.ID),
		slog.String("alert", alert.ID),
		slog.Float64("value", value))
	e.notifier.Notify(ctx, alert, alerts.KindTriggered)
}

// WithinCooldown reports whether now is still inside the indicator's cooldown
// window after the last alert. A zero last alert time means no suppression.
func WithinCooldown(last time.Time, cooldownMinutes int, now time.Time) bool {
	if last.IsZero() {
		return false
	}
	return now.Sub(last) < time.Duration(cooldownMinutes)*time.Minute
}
