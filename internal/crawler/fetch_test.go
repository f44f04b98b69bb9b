package crawler

import (
	"context"
	"testing"
	"time"

	"sjsage522/carpriceworker/internal/taxonomy"
	"sjsage522/carpriceworker/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRequest() Request {
	pickup := time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC)
	return Request{
		Location: "Faro",
		Pickup:   pickup,
		Dropoff:  pickup.Add(7 * 24 * time.Hour),
		Locale:   "pt",
		Currency: "EUR",
	}
}

func newTestChain(budget *MockBudget, strategies ...Strategy) (*Chain, *[]time.Duration) {
	c := NewChain(ChainOptions{
		Strategies:   strategies,
		Budget:       budget,
		RetryBackoff: 100 * time.Millisecond,
	})
	var slept []time.Duration
	c.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	c.jitter = func(d time.Duration) time.Duration { return d }
	return c, &slept
}

func TestChainStopsAtFirstSuccess(t *testing.T) {
	api := NewMockStrategy(StrategyAPI, page(offersPage))
	form := NewMockStrategy(StrategyForm, page(offersPage))
	chrome := NewMockStrategy(StrategyChromedp, page(offersPage))
	rod := MockGatedStrategy{NewMockStrategy(StrategyRod, page(offersPage)), StrategyChromedp}

	budget := &MockBudget{}
	c, _ := newTestChain(budget, api, form, chrome, rod)
	res := c.Run(context.Background(), testRequest())

	require.True(t, res.OK())
	assert.Equal(t, ReasonOK, res.Reason)
	assert.Equal(t, StrategyAPI, res.Strategy)
	require.Len(t, res.Offers, 2)
	assert.Equal(t, 70.0, res.Offers[0].Price)
	assert.Equal(t, 10.0, res.Offers[0].PricePerDay)
	assert.Equal(t, taxonomy.GroupB2, res.Offers[0].Group)
	assert.Equal(t, "Goldcar", res.Offers[0].Supplier)

	assert.Equal(t, 1, api.Calls())
	assert.Zero(t, form.Calls())
	assert.Zero(t, chrome.Calls())
	assert.Zero(t, rod.Calls())
	assert.Equal(t, 1, budget.Acquired())

	require.Len(t, res.Attempts, 1)
	assert.Equal(t, OutcomeSuccess, res.Attempts[0].Outcome)
	assert.Equal(t, 2, res.Attempts[0].Records)
}

func TestChainLandingPageFallsThrough(t *testing.T) {
	api := NewMockStrategy(StrategyAPI, page(landingPage))
	form := NewMockStrategy(StrategyForm, page(offersPage))

	c, _ := newTestChain(&MockBudget{}, api, form)
	res := c.Run(context.Background(), testRequest())

	require.True(t, res.OK())
	assert.Equal(t, StrategyForm, res.Strategy)
	require.Len(t, res.Attempts, 2)
	assert.Equal(t, OutcomeEmpty, res.Attempts[0].Outcome)
	assert.Contains(t, res.Attempts[0].Detail, "landing page")
	assert.Equal(t, OutcomeSuccess, res.Attempts[1].Outcome)
}

func TestChainRetriesTransientOnce(t *testing.T) {
	api := NewMockStrategy(StrategyAPI, func(ctx context.Context, call int) (*Page, error) {
		if call == 1 {
			return nil, errors.NewTransient(StrategyAPI, "HTTP 503", nil)
		}
		return &Page{URL: "https://www.carjet.com/do/list/pt?s=abc", Body: offersPage}, nil
	})

	budget := &MockBudget{}
	c, slept := newTestChain(budget, api)
	res := c.Run(context.Background(), testRequest())

	require.True(t, res.OK())
	assert.Equal(t, 2, api.Calls())
	assert.Equal(t, 2, res.Attempts[0].Tries)
	assert.Equal(t, 2, budget.Acquired(), "every dispatch acquires the budget")
	assert.Equal(t, []time.Duration{100 * time.Millisecond}, *slept)
}

func TestChainTransientFailsAfterOneRetry(t *testing.T) {
	api := NewMockStrategy(StrategyAPI, fail(errors.NewTransient(StrategyAPI, "HTTP 429", nil)))
	form := NewMockStrategy(StrategyForm, page(offersPage))

	c, _ := newTestChain(&MockBudget{}, api, form)
	res := c.Run(context.Background(), testRequest())

	require.True(t, res.OK())
	assert.Equal(t, 2, api.Calls())
	assert.Equal(t, OutcomeTransientFailure, res.Attempts[0].Outcome)
	assert.True(t, errors.Is(res.Attempts[0].Err, errors.ErrorTypeTransientFetch))
}

func TestChainStructuralFailsImmediately(t *testing.T) {
	api := NewMockStrategy(StrategyAPI, fail(errors.NewStructural(StrategyAPI, "HTTP 404", nil)))
	form := NewMockStrategy(StrategyForm, fail(errors.NewStructural(StrategyForm, "HTTP 400", nil)))

	c, slept := newTestChain(&MockBudget{}, api, form)
	res := c.Run(context.Background(), testRequest())

	assert.False(t, res.OK())
	assert.Equal(t, ReasonAllFailed, res.Reason)
	assert.Empty(t, res.Offers)
	assert.Equal(t, 1, api.Calls())
	assert.Equal(t, 1, form.Calls())
	assert.Empty(t, *slept)
	for _, a := range res.Attempts {
		assert.Equal(t, OutcomePermanentFailure, a.Outcome)
	}
}

func TestChainSecondEngineGatedOnFirstEngine(t *testing.T) {
	t.Run("runs after empty render", func(t *testing.T) {
		chrome := NewMockStrategy(StrategyChromedp, page(emptyResultsPage))
		rod := MockGatedStrategy{NewMockStrategy(StrategyRod, page(offersPage)), StrategyChromedp}

		c, _ := newTestChain(&MockBudget{}, chrome, rod)
		res := c.Run(context.Background(), testRequest())

		require.True(t, res.OK())
		assert.Equal(t, StrategyRod, res.Strategy)
		assert.Equal(t, 1, rod.Calls())
	})

	t.Run("runs after transient browser failure", func(t *testing.T) {
		chrome := NewMockStrategy(StrategyChromedp, fail(errors.NewTransient(StrategyChromedp, "chrome not found", nil)))
		rod := MockGatedStrategy{NewMockStrategy(StrategyRod, page(offersPage)), StrategyChromedp}

		c, _ := newTestChain(&MockBudget{}, chrome, rod)
		res := c.Run(context.Background(), testRequest())

		require.True(t, res.OK(), "reason %s", res.Reason)
		assert.Equal(t, StrategyRod, res.Strategy)
		assert.Equal(t, 2, chrome.Calls())
		assert.Equal(t, 1, rod.Calls())
		require.Len(t, res.Attempts, 2)
		assert.Equal(t, OutcomeTransientFailure, res.Attempts[0].Outcome)
		assert.Len(t, res.Offers, 2)
	})

	t.Run("runs after permanent browser failure", func(t *testing.T) {
		chrome := NewMockStrategy(StrategyChromedp, fail(errors.NewStructural(StrategyChromedp, "no chrome binary", nil)))
		rod := MockGatedStrategy{NewMockStrategy(StrategyRod, page(offersPage)), StrategyChromedp}

		c, _ := newTestChain(&MockBudget{}, chrome, rod)
		res := c.Run(context.Background(), testRequest())

		require.True(t, res.OK())
		assert.Equal(t, 1, rod.Calls())
	})

	t.Run("skipped when first engine never ran", func(t *testing.T) {
		rod := MockGatedStrategy{NewMockStrategy(StrategyRod, page(offersPage)), StrategyChromedp}

		c, _ := newTestChain(&MockBudget{}, rod)
		res := c.Run(context.Background(), testRequest())

		assert.Equal(t, ReasonAllFailed, res.Reason)
		assert.Zero(t, rod.Calls())
	})
}

func TestChainNoOffersVersusAllFailed(t *testing.T) {
	api := NewMockStrategy(StrategyAPI, page(emptyResultsPage))
	form := NewMockStrategy(StrategyForm, fail(errors.NewStructural(StrategyForm, "HTTP 400", nil)))

	c, _ := newTestChain(&MockBudget{}, api, form)
	res := c.Run(context.Background(), testRequest())

	assert.Equal(t, ReasonNoOffers, res.Reason)
	assert.Empty(t, res.Offers)
	require.Len(t, res.Attempts, 2)
}

func TestChainSkipsInapplicableStrategy(t *testing.T) {
	api := MockApplicableStrategy{NewMockStrategy(StrategyAPI, page(offersPage))}
	api.applicable = func(req Request) bool { return len(req.URLs) > 0 }
	form := NewMockStrategy(StrategyForm, page(offersPage))

	c, _ := newTestChain(&MockBudget{}, api, form)
	res := c.Run(context.Background(), testRequest())

	require.True(t, res.OK())
	assert.Zero(t, api.Calls())
	assert.Equal(t, StrategyForm, res.Strategy)
	assert.Len(t, res.Attempts, 1)
}

func TestChainTimeoutAbortsRemainingStrategies(t *testing.T) {
	slow := NewMockStrategy(StrategyAPI, func(ctx context.Context, call int) (*Page, error) {
		<-ctx.Done()
		return nil, errors.NewBudgetExceeded(StrategyAPI, "request aborted", ctx.Err())
	})
	form := NewMockStrategy(StrategyForm, page(offersPage))

	c := NewChain(ChainOptions{
		Strategies: []Strategy{slow, form},
		Budget:     &MockBudget{},
		Timeout:    20 * time.Millisecond,
	})
	res := c.Run(context.Background(), testRequest())

	assert.Equal(t, ReasonTimeout, res.Reason)
	assert.Empty(t, res.Offers)
	assert.Zero(t, form.Calls())
	assert.Equal(t, []string{StrategyAPI, StrategyForm}, c.Strategies())
}

func TestChainSemanticEmptyErrorCountsAsEmpty(t *testing.T) {
	api := NewMockStrategy(StrategyAPI, fail(errors.NewSemanticEmpty(StrategyAPI, "landing marker")))

	c, _ := newTestChain(&MockBudget{}, api)
	res := c.Run(context.Background(), testRequest())

	assert.Equal(t, ReasonNoOffers, res.Reason)
	assert.Equal(t, 1, api.Calls())
	assert.Equal(t, OutcomeEmpty, res.Attempts[0].Outcome)
}
