package governor

import (
	"context"
	"sync"
	"time"

	"sjsage522/carpriceworker/logger"
	"sjsage522/carpriceworker/pkg/errors"
)

// Options configures a Governor
type Options struct {
	Workers     int
	MaxAttempts int
	Backoff     time.Duration
	Budget      Budget
}

// Governor runs independent jobs on a bounded pool with bounded retries
type Governor struct {
	workers     int
	maxAttempts int
	backoff     time.Duration
	budget      Budget
	sleep       func(ctx context.Context, d time.Duration) error
}

// New creates a governor. Non-positive limits fall back to one worker and
// one attempt.
func New(opts Options) *Governor {
	g := &Governor{
		workers:     opts.Workers,
		maxAttempts: opts.MaxAttempts,
		backoff:     opts.Backoff,
		budget:      opts.Budget,
		sleep:       sleepContext,
	}
	if g.workers < 1 {
		g.workers = 1
	}
	if g.maxAttempts < 1 {
		g.maxAttempts = 1
	}
	if g.budget == nil {
		g.budget = NoopBudget{}
	}
	return g
}

// Budget is the shared dispatch budget handed to fetch call sites
func (g *Governor) Budget() Budget {
	return g.budget
}

// Workers returns the pool size
func (g *Governor) Workers() int {
	return g.workers
}

// Result of one job
type Result[T any, R any] struct {
	Index    int
	Item     T
	Value    R
	Err      error
	Attempts int
	Elapsed  time.Duration
}

// Failed reports whether the job ended without a value
func (r Result[T, R]) Failed() bool {
	return r.Err != nil
}

// Run executes job for every item. Results keep the order of items; a
// failing item never stops the others.
func Run[T any, R any](ctx context.Context, g *Governor, items []T, job func(ctx context.Context, item T) (R, error)) []Result[T, R] {
	log := logger.ForGovernor()
	results := make([]Result[T, R], len(items))
	semaphore := make(chan struct{}, g.workers)
	var wg sync.WaitGroup

	for i, item := range items {
		results[i] = Result[T, R]{Index: i, Item: item}

		select {
		case semaphore <- struct{}{}:
		case <-ctx.Done():
			results[i].Err = errors.NewBudgetExceeded("governor", "job not started", ctx.Err())
			continue
		}

		wg.Add(1)
		go func(res *Result[T, R]) {
			defer wg.Done()
			defer func() { <-semaphore }()

			start := time.Now()
			runWithRetry(ctx, g, res, job)
			res.Elapsed = time.Since(start)

			if res.Err != nil {
				log.Warn().Err(res.Err).Int("index", res.Index).Int("attempts", res.Attempts).Msg("Job failed")
			}
		}(&results[i])
	}

	wg.Wait()
	return results
}

func runWithRetry[T any, R any](ctx context.Context, g *Governor, res *Result[T, R], job func(ctx context.Context, item T) (R, error)) {
	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		res.Attempts = attempt

		value, err := job(ctx, res.Item)
		if err == nil {
			res.Value = value
			res.Err = nil
			return
		}
		res.Err = err

		if ctx.Err() != nil {
			if !errors.Is(err, errors.ErrorTypeBudgetExceeded) {
				res.Err = errors.NewBudgetExceeded("governor", "job budget spent", err)
			}
			return
		}
		if !retryable(err) || attempt == g.maxAttempts {
			return
		}

		if err := g.sleep(ctx, time.Duration(attempt)*g.backoff); err != nil {
			res.Err = errors.NewBudgetExceeded("governor", "backoff aborted", err)
			return
		}
	}
}

func retryable(err error) bool {
	switch errors.TypeOf(err) {
	case errors.ErrorTypeValidation, errors.ErrorTypeConfiguration, errors.ErrorTypeBudgetExceeded:
		return false
	}
	return true
}
