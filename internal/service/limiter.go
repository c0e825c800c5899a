package service

import (
	"context"
	"sync"
	"time"
)

// AttemptLimiter counts failed logins per client key and locks the key once the
// limit is reached inside the window.
type AttemptLimiter interface {
	// Locked returns how long key stays locked; zero means not locked.
	Locked(ctx context.Context, key string) (time.Duration, error)
	// Fail records a failure and returns the attempts left before lockout.
	Fail(ctx context.Context, key string) (int, error)
	Reset(ctx context.Context, key string) error
}

// LimiterPolicy holds the throttling knobs shared by all limiter backends.
type LimiterPolicy struct {
	MaxAttempts  int
	Window       time.Duration
	LockDuration time.Duration
}

type attemptState struct {
	count        int
	firstAttempt time.Time
	lockedUntil  time.Time
}

// MemoryAttemptLimiter keeps counters in process memory.
type MemoryAttemptLimiter struct {
	policy LimiterPolicy
	now    func() time.Time

	mu        sync.Mutex
	attempts  map[string]*attemptState
	lastSweep time.Time
}

func NewMemoryAttemptLimiter(p LimiterPolicy) *MemoryAttemptLimiter {
	return &MemoryAttemptLimiter{
		policy:   p,
		now:      time.Now,
		attempts: make(map[string]*attemptState),
	}
}

var _ AttemptLimiter = (*MemoryAttemptLimiter)(nil)

// stale reports whether state no longer affects any decision: its window has
// passed and any lock has lapsed.
func (l *MemoryAttemptLimiter) stale(state *attemptState, now time.Time) bool {
	return now.Sub(state.firstAttempt) > l.policy.Window && !now.Before(state.lockedUntil)
}

// sweep drops stale entries, at most once per window. Caller holds l.mu.
func (l *MemoryAttemptLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < l.policy.Window {
		return
	}
	for key, state := range l.attempts {
		if l.stale(state, now) {
			delete(l.attempts, key)
		}
	}
	l.lastSweep = now
}

func (l *MemoryAttemptLimiter) Locked(_ context.Context, key string) (time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	state, ok := l.attempts[key]
	if !ok {
		return 0, nil
	}
	now := l.now()
	if l.stale(state, now) {
		delete(l.attempts, key)
		return 0, nil
	}
	if !now.Before(state.lockedUntil) {
		return 0, nil
	}
	return state.lockedUntil.Sub(now), nil
}

func (l *MemoryAttemptLimiter) Fail(_ context.Context, key string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)

	state, ok := l.attempts[key]
	lapsed := ok && !state.lockedUntil.IsZero() && !now.Before(state.lockedUntil)
	if !ok || lapsed || now.Sub(state.firstAttempt) > l.policy.Window {
		state = &attemptState{firstAttempt: now}
		l.attempts[key] = state
	}

	state.count++
	if state.count >= l.policy.MaxAttempts {
		state.lockedUntil = now.Add(l.policy.LockDuration)
		state.count = l.policy.MaxAttempts
	}
	return l.policy.MaxAttempts - state.count, nil
}

func (l *MemoryAttemptLimiter) Reset(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.attempts, key)
	return nil
}
