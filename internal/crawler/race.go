package crawler

import (
	"context"
	"sync"

	"sjsage522/carpriceworker/pkg/errors"

	"golang.org/x/sync/errgroup"
)

// RaceURLs fetches every url concurrently and returns the first page fetch
// reports without error. The losers are cancelled. When every fetch fails
// the first error is returned.
func RaceURLs(ctx context.Context, urls []string, fetch func(ctx context.Context, url string) (*Page, error)) (*Page, error) {
	if len(urls) == 0 {
		return nil, errors.NewValidation("race", "no urls to fetch")
	}
	if len(urls) == 1 {
		return fetch(ctx, urls[0])
	}

	raceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		once     sync.Once
		winner   *Page
		mu       sync.Mutex
		firstErr error
	)

	g, gctx := errgroup.WithContext(raceCtx)
	for _, u := range urls {
		u := u
		g.Go(func() error {
			page, err := fetch(gctx, u)
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return nil
			}
			once.Do(func() {
				winner = page
				cancel()
			})
			return nil
		})
	}
	_ = g.Wait()

	if winner != nil {
		return winner, nil
	}
	if firstErr == nil {
		firstErr = errors.NewTransient("race", "no url produced a page", ctx.Err())
	}
	return nil, firstErr
}
