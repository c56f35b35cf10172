package scheduler

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

// LockToken identifies one execution of one indicator. Only the holder that
// acquired it may release it; a token that has been reclaimed as stale no
// longer releases anything.
type LockToken struct {
	IndicatorID string
	Context     string
	StartedAt   time.Time
}

// LockTable enforces at-most-one concurrent execution per indicator and
// bounds total parallelism across all indicators with a weighted semaphore.
// It is deliberately separate from the Indicator entity: run-state is
// coordination data, not business data.
type LockTable struct {
	mu         sync.Mutex
	held       map[string]LockToken
	sem        *semaphore.Weighted
	staleAfter time.Duration
	logger     *slog.Logger
	now        func() time.Time
}

func NewLockTable(maxParallel int64, staleAfter time.Duration, logger *slog.Logger) *LockTable {
	return &LockTable{
		held:       map[string]LockToken{},
		sem:        semaphore.NewWeighted(maxParallel),
		staleAfter: staleAfter,
		logger:     logger,
		now:        time.Now,
	}
}

// TryAcquire is non-blocking: it fails when the indicator is already running
// and the lock is fresh, or when no parallel slot is free. A lock older than
// staleAfter is presumed abandoned by a crashed worker and is reclaimed in
// place; the semaphore slot transfers to the new holder.
func (t *LockTable) TryAcquire(indicatorID string) (LockToken, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now().UTC()
	if cur, ok := t.held[indicatorID]; ok {
		if now.Sub(cur.StartedAt) <= t.staleAfter {
			return LockToken{}, false
		}
		tok := LockToken{IndicatorID: indicatorID, Context: uuid.NewString(), StartedAt: now}
		t.held[indicatorID] = tok
		t.logger.Warn("reclaimed stale execution lock",
			slog.String("indicator", indicatorID),
			slog.Time("heldSince", cur.StartedAt),
			slog.String("staleContext", cur.Context))
		return tok, true
	}
	if !t.sem.TryAcquire(1) {
		return LockToken{}, false
	}
	tok := LockToken{IndicatorID: indicatorID, Context: uuid.NewString(), StartedAt: now}
	t.held[indicatorID] = tok
	return tok, true
}

// Release frees the indicator and returns the semaphore slot. It is a no-op
// when the token is not the current holder, so a stale holder waking up after
// reclamation cannot release the new owner's lock.
func (t *LockTable) Release(tok LockToken) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cur, ok := t.held[tok.IndicatorID]
	if !ok || cur.Context != tok.Context {
		return
	}
	delete(t.held, tok.IndicatorID)
	t.sem.Release(1)
}

// Held reports whether an execution is currently in flight for the indicator.
func (t *LockTable) Held(indicatorID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.held[indicatorID]
	return ok
}

func (t *LockTable) ActiveCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.held)
}

// Snapshot returns a copy of every held lock, for operational visibility.
func (t *LockTable) Snapshot() []LockToken {
	t.mu.Lock()
	defer t.mu.Unlock()
	tokens := make([]LockToken, 0, len(t.held))
	for _, tok := range t.held {
		tokens = append(tokens, tok)
	}
	return tokens
}

// ForceReleaseAll drops every held lock and returns the abandoned tokens.
// Only the shutdown coordinator calls this, after the drain grace period.
func (t *LockTable) ForceReleaseAll() []LockToken {
	t.mu.Lock()
	defer t.mu.Unlock()
	tokens := make([]LockToken, 0, len(t.held))
	for id, tok := range t.held {
		tokens = append(tokens, tok)
		delete(t.held, id)
		t.sem.Release(1)
	}
	return tokens
}
