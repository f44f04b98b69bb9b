package crawler

import (
	"context"

	"sjsage522/carpriceworker/internal/parser"
	"sjsage522/carpriceworker/logger"
	"sjsage522/carpriceworker/pkg/errors"
)

// Strategy names
const (
	StrategyAPI      = "api"
	StrategyForm     = "form"
	StrategyChromedp = "chromedp"
	StrategyRod      = "rod"
)

// APIStrategy requests a session-tokenized results URL directly, racing
// it against its locale variant.
type APIStrategy struct {
	opts     HTTPOptions
	detector *LandingDetector
	parser   *parser.Parser
}

// NewAPIStrategy creates the direct results strategy
func NewAPIStrategy(opts HTTPOptions, detector *LandingDetector) *APIStrategy {
	if detector == nil {
		detector = NewLandingDetector(nil)
	}
	return &APIStrategy{opts: opts.withDefaults(), detector: detector, parser: parser.New()}
}

func (s *APIStrategy) Name() string { return StrategyAPI }

// Applicable reports whether req carries a tokenized URL
func (s *APIStrategy) Applicable(req Request) bool {
	return tokenizedURL(req) != ""
}

// Fetch implements Strategy. A race entrant only wins with a results page
// that carries offers.
func (s *APIStrategy) Fetch(ctx context.Context, req Request) (*Page, error) {
	target := tokenizedURL(req)
	if target == "" {
		return nil, errors.NewValidation(StrategyAPI, "no session-tokenized url")
	}

	urls := []string{target}
	if variant, ok := LocaleVariant(target, req.Locale); ok {
		urls = append(urls, variant)
	}

	log := logger.ForFetcher(StrategyAPI)
	return RaceURLs(ctx, urls, func(ctx context.Context, u string) (*Page, error) {
		// the chain acquired the budget for the primary url
		if u != target {
			if err := s.opts.Budget.Acquire(ctx); err != nil {
				return nil, err
			}
		}
		client, err := newSession(s.opts, req)
		if err != nil {
			return nil, err
		}
		resp, err := client.R().
			SetContext(ctx).
			SetHeader("X-Requested-With", "XMLHttpRequest").
			Get(u)
		page, err := toPage(ctx, StrategyAPI, resp, err)
		if err != nil {
			return nil, err
		}
		if landing, reason := s.detector.Detect(page); landing {
			log.Debug().Str("url", u).Str("reason", reason).Msg("Race entrant landed on home page")
			return nil, errors.NewSemanticEmpty(StrategyAPI, reason)
		}
		parsed, err := s.parser.Parse(page.Body, u)
		if err != nil {
			return nil, err
		}
		if len(parsed.Offers) == 0 {
			log.Debug().Str("url", u).Msg("Race entrant returned no offers")
			return nil, errors.NewSemanticEmpty(StrategyAPI, "results page without offers")
		}
		return page, nil
	})
}

func tokenizedURL(req Request) string {
	for _, u := range req.URLs {
		if HasSessionTokens(u) {
			return u
		}
	}
	return ""
}

// FormStrategy replays the booking form with locale and currency cookies set
type FormStrategy struct {
	opts HTTPOptions
}

// NewFormStrategy creates the form replay strategy
func NewFormStrategy(opts HTTPOptions) *FormStrategy {
	return &FormStrategy{opts: opts.withDefaults()}
}

func (s *FormStrategy) Name() string { return StrategyForm }

// Fetch implements Strategy
func (s *FormStrategy) Fetch(ctx context.Context, req Request) (*Page, error) {
	if s.opts.BaseURL == "" {
		return nil, errors.NewConfiguration("form strategy needs a base url", nil)
	}
	client, err := newSession(s.opts, req)
	if err != nil {
		return nil, err
	}

	form := FormValues(req)
	formData := make(map[string]string, len(form))
	for k := range form {
		formData[k] = form.Get(k)
	}

	resp, err := client.R().
		SetContext(ctx).
		SetHeader("Origin", s.opts.BaseURL).
		SetFormData(formData).
		Post(SearchURL(s.opts.BaseURL, req.Locale))
	return toPage(ctx, StrategyForm, resp, err)
}
