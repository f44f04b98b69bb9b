package pricing

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"sjsage522/carpriceworker/logger"
	"sjsage522/carpriceworker/pkg/errors"

	"github.com/go-resty/resty/v2"
	"golang.org/x/sync/singleflight"
)

// DefaultFXTTL bounds how often a rate is refreshed from the source
const DefaultFXTTL = time.Hour

// DefaultFallbackRates are conservative EUR-per-unit rates used when the
// rate source is unreachable.
var DefaultFallbackRates = map[string]float64{
	"GBP": 1.15,
	"USD": 0.90,
	"CHF": 1.02,
	"BRL": 0.16,
}

// RateSource returns how many units of quote one unit of base buys
type RateSource interface {
	Rate(ctx context.Context, base, quote string) (float64, error)
}

// HTTPRateSource queries a JSON rate endpoint: GET url?base=GBP&quote=EUR
// answering {"rate": 1.17}.
type HTTPRateSource struct {
	client *resty.Client
	url    string
}

// NewHTTPRateSource creates a rate source for url
func NewHTTPRateSource(url string) *HTTPRateSource {
	client := resty.New().
		SetTimeout(10*time.Second).
		SetHeader("Accept", "application/json")
	return &HTTPRateSource{client: client, url: url}
}

// Rate implements RateSource
func (s *HTTPRateSource) Rate(ctx context.Context, base, quote string) (float64, error) {
	var out struct {
		Rate float64 `json:"rate"`
	}
	res, err := s.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{"base": base, "quote": quote}).
		SetResult(&out).
		Get(s.url)
	if err != nil {
		return 0, errors.NewTransient("fx", "rate request failed", err)
	}
	if res.IsError() {
		return 0, errors.NewTransient("fx", fmt.Sprintf("rate service returned %d", res.StatusCode()), nil)
	}
	if out.Rate <= 0 {
		return 0, errors.NewValidation("fx", fmt.Sprintf("no rate for %s/%s", base, quote))
	}
	return out.Rate, nil
}

type cachedRate struct {
	rate      float64
	fetchedAt time.Time
}

// FXConverter converts amounts to EUR, caching each rate for ttl
type FXConverter struct {
	source   RateSource
	ttl      time.Duration
	fallback map[string]float64
	now      func() time.Time

	mu    sync.Mutex
	rates map[string]cachedRate
	// one source request per currency at a time
	group singleflight.Group
}

// NewFXConverter creates a converter over source. A nil source means only
// the fallback table is used.
func NewFXConverter(source RateSource) *FXConverter {
	return &FXConverter{
		source:   source,
		ttl:      DefaultFXTTL,
		fallback: DefaultFallbackRates,
		now:      time.Now,
		rates:    make(map[string]cachedRate),
	}
}

// Rate returns EUR per unit of currency
func (c *FXConverter) Rate(ctx context.Context, currency string) (float64, error) {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" || currency == "EUR" {
		return 1, nil
	}

	if rate, ok := c.cached(currency); ok {
		return rate, nil
	}

	v, err, _ := c.group.Do(currency, func() (interface{}, error) {
		if rate, ok := c.cached(currency); ok {
			return rate, nil
		}
		rate, err := c.fetch(ctx, currency)
		if err != nil {
			return 0.0, err
		}
		c.mu.Lock()
		c.rates[currency] = cachedRate{rate: rate, fetchedAt: c.now()}
		c.mu.Unlock()
		return rate, nil
	})
	if err != nil {
		return 0, err
	}
	return v.(float64), nil
}

func (c *FXConverter) cached(currency string) (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cached, ok := c.rates[currency]
	if !ok || c.now().Sub(cached.fetchedAt) >= c.ttl {
		return 0, false
	}
	return cached.rate, true
}

// fetch asks the source without holding the cache lock, falling back to
// the static table.
func (c *FXConverter) fetch(ctx context.Context, currency string) (float64, error) {
	var rate float64
	var err error
	if c.source != nil {
		rate, err = c.source.Rate(ctx, currency, "EUR")
	} else {
		err = errors.NewConfiguration("no fx rate source configured", nil)
	}
	if err == nil {
		return rate, nil
	}
	fb, ok := c.fallback[currency]
	if !ok {
		return 0, errors.NewValidation("fx", fmt.Sprintf("unsupported currency %s", currency))
	}
	logger.Warn("[FX] Using fallback rate %.4f for %s: %v", fb, currency, err)
	return fb, nil
}

// ToEUR converts amount in currency to EUR, rounded to cents
func (c *FXConverter) ToEUR(ctx context.Context, amount float64, currency string) (float64, error) {
	rate, err := c.Rate(ctx, currency)
	if err != nil {
		return 0, err
	}
	return Round2(amount * rate), nil
}
