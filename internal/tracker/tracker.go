package tracker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"sjsage522/carpriceworker/internal/crawler"
	"sjsage522/carpriceworker/internal/governor"
	"sjsage522/carpriceworker/internal/offer"
	"sjsage522/carpriceworker/logger"
	"sjsage522/carpriceworker/pkg/errors"
	"sjsage522/carpriceworker/services/cache"
)

// Runner executes the fetch chain for one request
type Runner interface {
	Run(ctx context.Context, req crawler.Request) crawler.Result
}

// Options configures a Tracker
type Options struct {
	Chain    Runner
	Cache    *cache.ResultCache
	Governor *governor.Governor

	DefaultLocale   string
	DefaultCurrency string
	PickupLead      time.Duration
	PickupTime      string
	SupplierHint    string
}

// Tracker answers price searches through the cache and the fetch chain
type Tracker struct {
	chain    Runner
	cache    *cache.ResultCache
	governor *governor.Governor

	locale       string
	currency     string
	pickupLead   time.Duration
	pickupHour   int
	pickupMinute int
	supplierHint string

	now func() time.Time
	log *logger.Logger
}

// New creates a tracker. A nil cache disables caching.
func New(opts Options) *Tracker {
	t := &Tracker{
		chain:        opts.Chain,
		cache:        opts.Cache,
		governor:     opts.Governor,
		locale:       opts.DefaultLocale,
		currency:     opts.DefaultCurrency,
		pickupLead:   opts.PickupLead,
		pickupHour:   10,
		supplierHint: opts.SupplierHint,
		now:          time.Now,
		log:          logger.ForWorker().WithField("stage", "tracker"),
	}
	if t.locale == "" {
		t.locale = "pt"
	}
	if t.currency == "" {
		t.currency = "EUR"
	}
	if t.governor == nil {
		t.governor = governor.New(governor.Options{})
	}
	if clock, err := time.Parse("15:04", opts.PickupTime); err == nil {
		t.pickupHour, t.pickupMinute = clock.Hour(), clock.Minute()
	}
	return t
}

// SearchResult is the answer to one search
type SearchResult struct {
	Location    string                 `json:"location"`
	Pickup      time.Time              `json:"pickup"`
	Dropoff     time.Time              `json:"dropoff"`
	Days        int                    `json:"days"`
	Locale      string                 `json:"locale"`
	Currency    string                 `json:"currency"`
	Offers      []offer.CanonicalOffer `json:"offers"`
	BestByGroup []offer.CanonicalOffer `json:"best_by_group"`
	Strategy    string                 `json:"strategy,omitempty"`
	Reason      crawler.Reason         `json:"reason"`
	Attempts    []crawler.FetchAttempt `json:"attempts"`
	Elapsed     time.Duration          `json:"elapsed"`
	Cache       cache.Status           `json:"cache"`
}

// OK reports whether the search produced offers
func (r *SearchResult) OK() bool {
	return r.Reason == crawler.ReasonOK && len(r.Offers) > 0
}

// Resolve fills defaults into req: locale, currency, a pickup date
// PickupLead from now at the configured time, and a one day rental.
func (t *Tracker) Resolve(req crawler.Request) (crawler.Request, error) {
	req.Location = crawler.NormalizeLocation(req.Location)
	if req.Location == "" {
		return req, errors.NewValidation("tracker", "location is required")
	}
	if req.Locale == "" {
		req.Locale = t.locale
	}
	req.Locale = strings.ToLower(req.Locale)
	if req.Currency == "" {
		req.Currency = t.currency
	}
	req.Currency = strings.ToUpper(req.Currency)
	if req.SupplierHint == "" {
		req.SupplierHint = t.supplierHint
	}
	if req.Pickup.IsZero() {
		day := t.now().UTC().Add(t.pickupLead)
		req.Pickup = time.Date(day.Year(), day.Month(), day.Day(), t.pickupHour, t.pickupMinute, 0, 0, time.UTC)
	}
	if req.Dropoff.IsZero() {
		req.Dropoff = req.Pickup.AddDate(0, 0, 1)
	}
	if !req.Dropoff.After(req.Pickup) {
		return req, errors.NewValidation("tracker", fmt.Sprintf("dropoff %s is not after pickup %s",
			req.Dropoff.Format(time.RFC3339), req.Pickup.Format(time.RFC3339)))
	}
	return req, nil
}

// Search resolves req and returns offers for it, from the cache when a
// fresh entry exists. An empty chain run is not an error; check Reason.
func (t *Tracker) Search(ctx context.Context, req crawler.Request) (*SearchResult, error) {
	req, err := t.Resolve(req)
	if err != nil {
		return nil, err
	}

	load := func(ctx context.Context) ([]byte, bool, error) {
		res := t.chain.Run(ctx, req)
		data, err := json.Marshal(res)
		if err != nil {
			return nil, false, errors.NewCache("tracker", "encode chain result", err)
		}
		// failed runs are retried by the next caller rather than served from cache
		store := res.Reason == crawler.ReasonOK || res.Reason == crawler.ReasonNoOffers
		return data, store, nil
	}

	var (
		data   []byte
		status = cache.StatusMiss
	)
	switch {
	case t.cache == nil:
		data, _, err = load(ctx)
	case req.ForceRefresh:
		data, err = t.cache.Refresh(ctx, req.Key(), load)
	default:
		data, status, err = t.cache.Fetch(ctx, req.Key(), load)
	}
	if err != nil {
		return nil, err
	}

	var res crawler.Result
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, errors.NewCache("tracker", "decode chain result", err)
	}

	out := &SearchResult{
		Location:    req.Location,
		Pickup:      req.Pickup,
		Dropoff:     req.Dropoff,
		Days:        req.Days(),
		Locale:      req.Locale,
		Currency:    req.Currency,
		Offers:      res.Offers,
		BestByGroup: offer.BestByGroup(res.Offers),
		Strategy:    res.Strategy,
		Reason:      res.Reason,
		Attempts:    res.Attempts,
		Elapsed:     res.Elapsed,
		Cache:       status,
	}
	if out.Offers == nil {
		out.Offers = []offer.CanonicalOffer{}
	}

	t.log.Info().
		Str("location", out.Location).
		Int("days", out.Days).
		Str("reason", string(out.Reason)).
		Str("cache", string(status)).
		Int("offers", len(out.Offers)).
		Msg("Search done")
	return out, nil
}
