package alerts

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"pulsewatch-backend/internal/health"
)

// ErrNotTransitionable is returned by Resolve when the alert does not exist
// or is already in a terminal state.
var ErrNotTransitionable = errors.New("alert not found or already resolved")

// Manager drives the alert state machine on its own polling loop:
// Open → Escalated when the escalation deadline elapses unresolved,
// Escalated → AutoResolved when the auto-resolution deadline elapses,
// Open|Escalated → Resolved on an operator call. Terminal states are final.
//
// Every transition goes through the store's compare-and-swap, so scanning the
// same alert twice in one tick cannot double-escalate.
type Manager struct {
	store     Store
	notifier  Notifier
	tick      time.Duration
	batchSize int
	heartbeat *health.Heartbeat
	logger    *slog.Logger

	running  atomic.Bool
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
	now      func() time.Time
}

func NewManager(store Store, notifier Notifier, tick time.Duration, batchSize int, hb *health.Heartbeat, logger *slog.Logger) *Manager {
	return &Manager{
		store:     store,
		notifier:  notifier,
		tick:      tick,
		batchSize: batchSize,
		heartbeat: hb,
		logger:    logger,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
		now:       time.Now,
	}
}

func (m *Manager) Name() string { return "alert-lifecycle" }

func (m *Manager) Run(ctx context.Context) {
	if !m.running.CompareAndSwap(false, true) {
		return
	}
	defer close(m.done)
	m.logger.Info("alert lifecycle loop started",
		slog.Duration("tick", m.tick), slog.Int("batchSize", m.batchSize))
	ticker := time.NewTicker(m.tick)
	defer ticker.Stop()
	m.runTick(ctx)
	for {
		select {
		case <-ticker.C:
			m.runTick(ctx)
		case <-m.stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (m *Manager) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
}

// Drain waits for the loop goroutine to finish its current tick.
func (m *Manager) Drain(ctx context.Context) error {
	select {
	case <-m.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) runTick(ctx context.Context) {
	batch, err := m.store.LoadOpenAlerts(ctx, m.batchSize)
	if err != nil {
		m.logger.Error("failed to load open alerts", slog.String("error", err.Error()))
		return
	}
	now := m.now().UTC()
	for _, a := range batch {
		m.process(ctx, a, now)
	}
	m.heartbeat.Beat()
}

func (m *Manager) process(ctx context.Context, a Alert, now time.Time) {
	switch a.State {
	case StateOpen:
		if now.Before(a.EscalateAfter) {
			return
		}
		ok, err := m.store.TransitionAlert(ctx, a.ID, StateOpen, StateEscalated, now, "")
		if err != nil {
			m.logger.Error("failed to escalate alert",
				slog.String("alert", a.ID), slog.String("error", err.Error()))
			return
		}
		if !ok {
			// Resolved or escalated since the scan; nothing to do.
			return
		}
		m.logger.Warn("alert escalated",
			slog.String("alert", a.ID), slog.String("indicator", a.IndicatorID))
		a.State = StateEscalated
		a.EscalatedAt = &now
		m.notifier.Notify(ctx, a, KindEscalated)
	case StateEscalated:
		if now.Before(a.AutoResolveAfter) {
			return
		}
		ok, err := m.store.TransitionAlert(ctx, a.ID, StateEscalated, StateAutoResolved, now, "auto")
		if err != nil {
			m.logger.Error("failed to auto-resolve alert",
				slog.String("alert", a.ID), slog.String("error", err.Error()))
			return
		}
		if ok {
			m.logger.Info("alert auto-resolved",
				slog.String("alert", a.ID), slog.String("indicator", a.IndicatorID))
		}
	}
}

// Resolve is the operator entry point. It pre-empts the automatic
// transitions and is terminal.
func (m *Manager) Resolve(ctx context.Context, id, by string) error {
	now := m.now().UTC()
	for _, from := range []State{StateOpen, StateEscalated} {
		ok, err := m.store.TransitionAlert(ctx, id, from, StateResolved, now, by)
		if err != nil {
			return err
		}
		if ok {
			m.logger.Info("alert resolved",
				slog.String("alert", id), slog.String("by", by))
			return nil
		}
	}
	return ErrNotTransitionable
}
