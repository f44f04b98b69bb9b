package governor

import (
	"context"
	"sync"
	"time"

	"sjsage522/carpriceworker/pkg/errors"

	"golang.org/x/time/rate"
)

// Budget gates every outbound dispatch
type Budget interface {
	Acquire(ctx context.Context) error
}

// RateBudget enforces a minimum interval between dispatches across the
// whole process, plus an optional requests-per-second ceiling. The mutex is
// held while waiting so dispatches leave strictly one at a time.
type RateBudget struct {
	interval time.Duration
	limiter  *rate.Limiter
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error

	mu         sync.Mutex
	last       time.Time
	dispatches int64
}

// NewRateBudget creates a budget. rps <= 0 disables the ceiling.
func NewRateBudget(interval time.Duration, rps float64) *RateBudget {
	b := &RateBudget{
		interval: interval,
		now:      time.Now,
		sleep:    sleepContext,
	}
	if rps > 0 {
		b.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
	return b
}

// Acquire blocks until a dispatch is allowed or ctx ends
func (b *RateBudget) Acquire(ctx context.Context) error {
	if b.limiter != nil {
		if err := b.limiter.Wait(ctx); err != nil {
			return errors.NewBudgetExceeded("governor", "rate ceiling wait aborted", err)
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.last.IsZero() {
		if wait := b.interval - b.now().Sub(b.last); wait > 0 {
			if err := b.sleep(ctx, wait); err != nil {
				return errors.NewBudgetExceeded("governor", "dispatch spacing wait aborted", err)
			}
		}
	}
	b.last = b.now()
	b.dispatches++
	return nil
}

// Dispatches returns how many dispatches were admitted
func (b *RateBudget) Dispatches() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dispatches
}

// LastDispatch returns when the last dispatch was admitted
func (b *RateBudget) LastDispatch() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.last
}

// NoopBudget admits everything immediately
type NoopBudget struct{}

// Acquire implements Budget
func (NoopBudget) Acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return errors.NewBudgetExceeded("governor", "context done", err)
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
