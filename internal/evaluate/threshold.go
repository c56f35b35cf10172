// Package evaluate measures an indicator against its threshold rule. It is
// one implementation of the scheduler's Evaluator boundary; deployments can
// substitute their own.
package evaluate

import (
	"context"
	"fmt"
	"time"

	"pulsewatch-backend/internal/collector"
	"pulsewatch-backend/internal/scheduler"
)

// ThresholdEvaluator reads the indicator's value from its source and compares
// it with the threshold rule.
type ThresholdEvaluator struct {
	registry *collector.Registry
	now      func() time.Time
}

func NewThresholdEvaluator(registry *collector.Registry) *ThresholdEvaluator {
	return &ThresholdEvaluator{registry: registry, now: time.Now}
}

func (e *ThresholdEvaluator) Evaluate(ctx context.Context, ind scheduler.Indicator) (float64, bool, error) {
	col, err := e.registry.For(ind.SourceRef)
	if err != nil {
		return 0, false, err
	}
	q := collector.MetricQuery{
		Table:           ind.Source.Table,
		ValueColumn:     ind.Source.ValueColumn,
		TimestampColumn: ind.Source.TimestampColumn,
	}
	var value float64
	if ind.Aggregation == "" || ind.Aggregation == "latest" {
		value, err = col.LatestValue(ctx, q)
	} else {
		since := e.now().UTC().Add(-time.Duration(ind.DataWindowMinutes) * time.Minute)
		value, err = col.AggregateOver(ctx, q, ind.Aggregation, since)
	}
	if err != nil {
		return 0, false, err
	}
	breached, err := Breached(ind.Threshold, value)
	if err != nil {
		return value, false, err
	}
	return value, breached, nil
}

// Breached compares a measured value with a threshold rule.
func Breached(rule scheduler.ThresholdRule, value float64) (bool, error) {
	switch rule.Op {
	case ">":
		return value > rule.Value, nil
	case ">=":
		return value >= rule.Value, nil
	case "<":
		return value < rule.Value, nil
	case "<=":
		return value <= rule.Value, nil
	case "==":
		return value == rule.Value, nil
	case "!=":
		return value != rule.Value, nil
	case "between":
		if rule.Min == nil || rule.Max == nil {
			return false, fmt.Errorf("between rule requires min and max")
		}
		// Breach means the value left the allowed band.
		return value < *rule.Min || value > *rule.Max, nil
	default:
		return false, fmt.Errorf("unsupported comparator %q", rule.Op)
	}
}
