package scheduler

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"pulsewatch-backend/internal/health"
)

type loopState int32

const (
	loopStopped loopState = iota
	loopRunning
	loopStopping
)

// MonitoringLoop wakes on a fixed tick, loads the active indicators, and
// dispatches the due ones to the executor as independent goroutines. The loop
// never blocks on an execution; outstanding work is tracked only so shutdown
// can drain it.
type MonitoringLoop struct {
	store     Store
	executor  *Executor
	locks     *LockTable
	tick      time.Duration
	heartbeat *health.Heartbeat
	logger    *slog.Logger

	state    atomic.Int32
	stop     chan struct{}
	stopOnce sync.Once
	poke     chan struct{}
	inflight sync.WaitGroup
	now      func() time.Time
}

func NewMonitoringLoop(store Store, executor *Executor, locks *LockTable, tick time.Duration, hb *health.Heartbeat, logger *slog.Logger) *MonitoringLoop {
	return &MonitoringLoop{
		store:     store,
		executor:  executor,
		locks:     locks,
		tick:      tick,
		heartbeat: hb,
		logger:    logger,
		stop:      make(chan struct{}),
		poke:      make(chan struct{}, 1),
		now:       time.Now,
	}
}

func (l *MonitoringLoop) Name() string { return "monitoring" }

// Run blocks until Stop is called or ctx is cancelled. The first pass runs
// immediately rather than waiting out a full tick.
func (l *MonitoringLoop) Run(ctx context.Context) {
	if !l.state.CompareAndSwap(int32(loopStopped), int32(loopRunning)) {
		return
	}
	l.logger.Info("monitoring loop started", slog.Duration("tick", l.tick))
	ticker := time.NewTicker(l.tick)
	defer ticker.Stop()
	l.runTick(ctx)
	for {
		select {
		case <-ticker.C:
			l.runTick(ctx)
		case <-l.poke:
			l.runTick(ctx)
		case <-l.stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Poke requests an early pass, used when indicator configuration changes
// arrive over the bus. Non-blocking; a pending poke is not duplicated.
func (l *MonitoringLoop) Poke() {
	select {
	case l.poke <- struct{}{}:
	default:
	}
}

// Stop flips the loop to stopping: no new work is dispatched, in-flight
// executions keep running until Drain.
func (l *MonitoringLoop) Stop() {
	if l.state.CompareAndSwap(int32(loopRunning), int32(loopStopping)) {
		l.stopOnce.Do(func() { close(l.stop) })
	}
}

// Drain waits for outstanding executions, bounded by ctx.
func (l *MonitoringLoop) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		l.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		l.state.Store(int32(loopStopped))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *MonitoringLoop) runTick(ctx context.Context) {
	if loopState(l.state.Load()) != loopRunning {
		return
	}
	indicators, err := l.store.LoadActiveIndicators(ctx)
	if err != nil {
		// Store outages never crash the loop; the next tick retries.
		l.logger.Error("failed to load indicators", slog.String("error", err.Error()))
		return
	}
	// Stable order so same-tick ties are reproducible.
	sort.Slice(indicators, func(i, j int) bool { return indicators[i].ID < indicators[j].ID })
	now := l.now().UTC()
	for _, ind := range indicators {
		if loopState(l.state.Load()) != loopRunning {
			break
		}
		if l.locks.Held(ind.ID) {
			continue
		}
		due, err := IsDue(ind.FrequencyMinutes, ind.LastRun, now)
		if err != nil {
			l.logger.Error("indicator has invalid frequency",
				slog.String("indicator", ind.ID),
				slog.Int("frequencyMinutes", ind.FrequencyMinutes))
			continue
		}
		if !due {
			continue
		}
		ind := ind
		l.inflight.Add(1)
		go func() {
			defer l.inflight.Done()
			l.executor.Execute(ctx, ind)
		}()
	}
	l.heartbeat.Beat()
}
