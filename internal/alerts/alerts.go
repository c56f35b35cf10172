package alerts

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type State string

const (
	StateOpen         State = "open"
	StateEscalated    State = "escalated"
	StateResolved     State = "resolved"
	StateAutoResolved State = "auto_resolved"
)

// Kind classifies notifications sent for an alert.
type Kind string

const (
	KindTriggered Kind = "triggered"
	KindEscalated Kind = "escalated"
)

type Alert struct {
	ID               string     `json:"id"`
	IndicatorID      string     `json:"indicatorId"`
	TriggeredAt      time.Time  `json:"triggeredAt"`
	CurrentValue     float64    `json:"currentValue"`
	HistoricalValue  float64    `json:"historicalValue"`
	Deviation        float64    `json:"deviation"`
	State            State      `json:"state"`
	EscalateAfter    time.Time  `json:"escalateAfter"`
	AutoResolveAfter time.Time  `json:"autoResolveAfter"`
	EscalatedAt      *time.Time `json:"escalatedAt,omitempty"`
	ResolvedAt       *time.Time `json:"resolvedAt,omitempty"`
	ResolvedBy       string     `json:"resolvedBy,omitempty"`
}

// Terminal reports whether the alert can take no further transitions.
func (a Alert) Terminal() bool {
	return a.State == StateResolved || a.State == StateAutoResolved
}

// Deadlines are the lifecycle timers stamped onto an alert at creation.
type Deadlines struct {
	Escalation     time.Duration
	AutoResolution time.Duration
}

// New builds an open alert for an indicator breach. The escalation and
// auto-resolution deadlines are fixed at creation; later policy changes do
// not move the clocks of alerts already raised.
func New(indicatorID string, current, baseline float64, now time.Time, d Deadlines) Alert {
	now = now.UTC()
	return Alert{
		ID:               uuid.NewString(),
		IndicatorID:      indicatorID,
		TriggeredAt:      now,
		CurrentValue:     current,
		HistoricalValue:  baseline,
		Deviation:        current - baseline,
		State:            StateOpen,
		EscalateAfter:    now.Add(d.Escalation),
		AutoResolveAfter: now.Add(d.AutoResolution),
	}
}

// Notifier delivers alert notifications. Delivery is fire-and-forget: the
// implementation logs its own failures and the caller never retries.
type Notifier interface {
	Notify(ctx context.Context, alert Alert, kind Kind)
}

// Store is the persistence boundary for alert lifecycle processing.
// TransitionAlert must be a compare-and-swap: the write applies only when the
// alert is still in the expected state, and the result reports whether it did.
type Store interface {
	LoadOpenAlerts(ctx context.Context, limit int) ([]Alert, error)
	TransitionAlert(ctx context.Context, id string, from, to State, at time.Time, by string) (bool, error)
}
