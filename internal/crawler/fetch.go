package crawler

import (
	"context"
	"fmt"
	mathrand "math/rand"
	"time"

	"sjsage522/carpriceworker/helpers"
	"sjsage522/carpriceworker/internal/governor"
	"sjsage522/carpriceworker/internal/offer"
	"sjsage522/carpriceworker/internal/parser"
	"sjsage522/carpriceworker/logger"
	"sjsage522/carpriceworker/pkg/errors"
)

// transientRetries is how many times a transient strategy error is retried
const transientRetries = 1

// ChainOptions configures a Chain
type ChainOptions struct {
	Strategies   []Strategy
	Parser       *parser.Parser
	Normalizer   *offer.Normalizer
	Detector     *LandingDetector
	Budget       governor.Budget
	Timeout      time.Duration
	RetryBackoff time.Duration
}

// Chain tries strategies in order until one yields canonical offers
type Chain struct {
	strategies   []Strategy
	parser       *parser.Parser
	normalizer   *offer.Normalizer
	detector     *LandingDetector
	budget       governor.Budget
	timeout      time.Duration
	retryBackoff time.Duration
	sleep        func(ctx context.Context, d time.Duration) error
	jitter       func(d time.Duration) time.Duration
}

// NewChain creates a chain. Missing collaborators get defaults.
func NewChain(opts ChainOptions) *Chain {
	c := &Chain{
		strategies:   opts.Strategies,
		parser:       opts.Parser,
		normalizer:   opts.Normalizer,
		detector:     opts.Detector,
		budget:       opts.Budget,
		timeout:      opts.Timeout,
		retryBackoff: opts.RetryBackoff,
		sleep:        sleepContext,
		jitter:       jitter,
	}
	if c.parser == nil {
		c.parser = parser.New()
	}
	if c.normalizer == nil {
		c.normalizer = offer.NewNormalizer(offer.Options{})
	}
	if c.detector == nil {
		c.detector = NewLandingDetector(nil)
	}
	if c.budget == nil {
		c.budget = governor.NoopBudget{}
	}
	if c.retryBackoff <= 0 {
		c.retryBackoff = 500 * time.Millisecond
	}
	return c
}

// Strategies returns the configured strategy names in order
func (c *Chain) Strategies() []string {
	names := make([]string, len(c.strategies))
	for i, s := range c.strategies {
		names[i] = s.Name()
	}
	return names
}

// Run executes the chain for req. It never returns an error: exhaustion
// is reported through Result.Reason.
func (c *Chain) Run(ctx context.Context, req Request) Result {
	start := time.Now()
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	log := logger.ForFetcher("chain").WithField("location", req.Location).WithField("days", req.Days())
	res := Result{Offers: []offer.CanonicalOffer{}}
	outcomes := make(map[string]Outcome, len(c.strategies))

	for i, s := range c.strategies {
		if ctx.Err() != nil {
			break
		}
		if a, ok := s.(Applicable); ok && !a.Applicable(req) {
			log.Debug().Str("strategy", s.Name()).Msg("Strategy not applicable")
			continue
		}
		if g, ok := s.(Gated); ok && !ranWithoutOffers(outcomes, g.After()) {
			log.Debug().Str("strategy", s.Name()).Str("after", g.After()).Msg("Strategy gated off")
			continue
		}

		log.Debug().Msgf("Trying strategy %d/%d: %s", i+1, len(c.strategies), s.Name())
		attempt, offers := c.attempt(ctx, s, req)
		res.Attempts = append(res.Attempts, attempt)
		outcomes[s.Name()] = attempt.Outcome

		if attempt.Outcome == OutcomeSuccess {
			log.Info().Str("strategy", s.Name()).Int("offers", len(offers)).Dur("elapsed", attempt.Elapsed).Msg("Strategy succeeded")
			res.Offers = offers
			res.Strategy = s.Name()
			res.Reason = ReasonOK
			res.Elapsed = time.Since(start)
			return res
		}
	}

	res.Reason = ReasonAllFailed
	switch {
	case ctx.Err() != nil:
		res.Reason = ReasonTimeout
	case hasOutcome(res.Attempts, OutcomeEmpty):
		res.Reason = ReasonNoOffers
	}
	res.Elapsed = time.Since(start)

	exhausted := errors.NewExhausted("chain", fmt.Sprintf("%s after %d attempts", res.Reason, len(res.Attempts)))
	if res.Reason == ReasonNoOffers {
		log.Info().Err(exhausted).Msg("No offers available")
	} else {
		log.Warn().Err(exhausted).Msg("Strategy chain exhausted")
	}
	return res
}

// attempt runs one strategy, retrying a transient failure once
func (c *Chain) attempt(ctx context.Context, s Strategy, req Request) (FetchAttempt, []offer.CanonicalOffer) {
	log := logger.ForFetcher(s.Name())
	attempt := FetchAttempt{Strategy: s.Name()}
	start := time.Now()

	for try := 0; try <= transientRetries; try++ {
		attempt.Tries = try + 1

		if err := c.budget.Acquire(ctx); err != nil {
			attempt.Outcome = OutcomeTransientFailure
			attempt.Err = err
			attempt.Detail = "dispatch budget"
			attempt.Elapsed = time.Since(start)
			return attempt, nil
		}

		page, err := s.Fetch(ctx, req)
		if err == nil {
			attempt.URL = page.URL
			offers, outcome, detail := c.evaluate(ctx, page, req)
			attempt.Outcome = outcome
			attempt.Detail = detail
			attempt.Records = len(offers)
			if outcome == OutcomeEmpty {
				log.Info().Str("reason", detail).Msg("Strategy returned no offers")
				log.Debug().Str("body", helpers.Preview(helpers.CollapseSpaces(page.Body), 160)).Msg("Empty page preview")
			}
			attempt.Elapsed = time.Since(start)
			return attempt, offers
		}

		attempt.Err = err
		switch errors.TypeOf(err) {
		case errors.ErrorTypeSemanticEmpty:
			attempt.Outcome = OutcomeEmpty
			attempt.Detail = err.Error()
			log.Info().Err(err).Msg("Strategy returned no offers")
			attempt.Elapsed = time.Since(start)
			return attempt, nil
		case errors.ErrorTypeTransientFetch:
			attempt.Outcome = OutcomeTransientFailure
			if try < transientRetries && ctx.Err() == nil {
				wait := c.jitter(c.retryBackoff)
				log.Warn().Err(err).Dur("backoff", wait).Msg("Transient failure, retrying")
				if sleepErr := c.sleep(ctx, wait); sleepErr != nil {
					attempt.Err = errors.NewBudgetExceeded(s.Name(), "retry backoff aborted", sleepErr)
					attempt.Elapsed = time.Since(start)
					return attempt, nil
				}
				continue
			}
		case errors.ErrorTypeBudgetExceeded:
			attempt.Outcome = OutcomeTransientFailure
		default:
			attempt.Outcome = OutcomePermanentFailure
		}
		log.Warn().Err(err).Str("outcome", string(attempt.Outcome)).Msg("Strategy failed")
		break
	}

	attempt.Elapsed = time.Since(start)
	return attempt, nil
}

// evaluate turns a fetched page into canonical offers
func (c *Chain) evaluate(ctx context.Context, page *Page, req Request) ([]offer.CanonicalOffer, Outcome, string) {
	if landing, reason := c.detector.Detect(page); landing {
		return nil, OutcomeEmpty, "landing page: " + reason
	}

	base := page.FinalURL
	if base == "" {
		base = page.URL
	}
	parsed, err := c.parser.Parse(page.Body, base)
	if err != nil {
		return nil, OutcomePermanentFailure, err.Error()
	}

	var offers []offer.CanonicalOffer
	for _, o := range c.normalizer.Normalize(ctx, parsed.Offers, req.Days()) {
		if o.Currency == "EUR" && o.Price > 0 {
			offers = append(offers, o)
		}
	}
	if len(offers) == 0 {
		return nil, OutcomeEmpty, fmt.Sprintf("no offers parsed (%s, %d raw)", parsed.Strategy, len(parsed.Offers))
	}
	return offers, OutcomeSuccess, parsed.Strategy
}

// ranWithoutOffers reports whether the named strategy was invoked and
// produced no records, whether it came back empty or failed.
func ranWithoutOffers(outcomes map[string]Outcome, name string) bool {
	outcome, ran := outcomes[name]
	return ran && outcome != OutcomeSuccess
}

func hasOutcome(attempts []FetchAttempt, outcome Outcome) bool {
	for _, a := range attempts {
		if a.Outcome == outcome {
			return true
		}
	}
	return false
}

func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d + time.Duration(mathrand.Int63n(int64(d)/2+1))
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
