package scheduler

import (
	"context"
	"log/slog"
	"time"
)

// Loop is any background loop the coordinator manages. Stop must flip the
// loop to stopping without waiting; Drain waits for in-flight work.
type Loop interface {
	Name() string
	Stop()
	Drain(ctx context.Context) error
}

// ShutdownCoordinator stops every loop, waits a bounded grace period for
// in-flight executions, then force-releases whatever locks survive so the
// next process start does not inherit stuck running indicators.
type ShutdownCoordinator struct {
	loops  []Loop
	locks  *LockTable
	grace  time.Duration
	logger *slog.Logger
}

func NewShutdownCoordinator(locks *LockTable, grace time.Duration, logger *slog.Logger, loops ...Loop) *ShutdownCoordinator {
	return &ShutdownCoordinator{loops: loops, locks: locks, grace: grace, logger: logger}
}

func (s *ShutdownCoordinator) Shutdown(ctx context.Context) {
	for _, l := range s.loops {
		l.Stop()
	}
	drainCtx, cancel := context.WithTimeout(ctx, s.grace)
	defer cancel()
	for _, l := range s.loops {
		if err := l.Drain(drainCtx); err != nil {
			s.logger.Warn("loop did not drain before deadline",
				slog.String("loop", l.Name()), slog.String("error", err.Error()))
		}
	}
	for _, tok := range s.locks.ForceReleaseAll() {
		s.logger.Warn("force-released execution lock on shutdown",
			slog.String("indicator", tok.IndicatorID),
			slog.Time("heldSince", tok.StartedAt))
	}
	s.logger.Info("shutdown complete")
}
